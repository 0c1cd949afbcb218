package shared_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/concierge-dev/concierge/internal/api/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/tasks", strings.NewReader(`{"title":"triage inbox"}`))

	var body struct {
		Title string `json:"title"`
	}
	require.NoError(t, shared.DecodeJSON(r, &body))
	assert.Equal(t, "triage inbox", body.Title)
}

func TestDecodeJSONRejectsMalformedBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/tasks", strings.NewReader(`{"title":`))

	var body map[string]any
	assert.Error(t, shared.DecodeJSON(r, &body))
}

func TestDecodeJSONRejectsOversizedBody(t *testing.T) {
	payload := `{"title":"` + strings.Repeat("x", 2<<20) + `"}`
	r := httptest.NewRequest("POST", "/tasks", strings.NewReader(payload))

	var body map[string]any
	assert.Error(t, shared.DecodeJSON(r, &body))
}
