package api

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/concierge-dev/concierge/internal/service"
	"github.com/concierge-dev/concierge/internal/store"
)

const defaultDecisionLimit = 100

// QueryHandler handles the synchronous query endpoint and the routing
// decision audit log.
type QueryHandler struct {
	queryService *service.QueryService
	decisions    store.DecisionStore
	validator    *validator.Validate
}

// NewQueryHandler creates a new QueryHandler with the given dependencies.
func NewQueryHandler(queryService *service.QueryService, decisions store.DecisionStore) *QueryHandler {
	return &QueryHandler{
		queryService: queryService,
		decisions:    decisions,
		validator:    validator.New(),
	}
}

// Query handles POST /query: routes the text and invokes the selected
// handler synchronously.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest

	if err := DecodeJSON(r, &req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	outcome, err := h.queryService.Query(r.Context(), req.Query)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	RespondWithJSON(w, r, http.StatusOK, QueryResponse{
		Reply:      outcome.Result.Text,
		Handler:    outcome.Decision.SelectedHandler,
		Tier:       outcome.Decision.TierUsed,
		Confidence: outcome.Decision.Confidence,
		OK:         outcome.Result.OK,
		Error:      outcome.Result.ErrorMessage,
	})
}

// ListDecisions handles GET /decisions with an optional limit parameter.
func (h *QueryHandler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	limit := defaultDecisionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	decisions, err := h.decisions.ListRecent(r.Context(), limit)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	RespondWithJSON(w, r, http.StatusOK, NewDecisionListResponse(decisions))
}
