package shared

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// maxRequestBody caps request payloads. Task metadata is the largest
// legitimate body and stays far below this.
const maxRequestBody = 1 << 20

// DecodeJSON decodes the request body into v, rejecting bodies over the
// size cap. Struct-level validation happens in the handlers, which own
// the validator and the sanitized error messages.
func DecodeJSON(r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
