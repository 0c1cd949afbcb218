package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/concierge-dev/concierge/internal/service"
)

// AuthHandler handles authentication-related API requests.
type AuthHandler struct {
	authService *service.AuthService
	validator   *validator.Validate
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validator:   validator.New(),
	}
}

// Token handles POST /auth/token: exchanges the API key for a bearer token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest

	if err := DecodeJSON(r, &req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	token, expiresAt, err := h.authService.Authenticate(r.Context(), req.APIKey)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	RespondWithJSON(w, r, http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
