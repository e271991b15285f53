package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"

	"inkwell/internal/domain"
)

// maxBodyBytes bounds request bodies. Chapter content rides in JSON
// bodies, so the bound is generous.
const maxBodyBytes = 10 << 20

// ParseJSON decodes the request body into dest. Unknown fields pass
// through so partial-update DTOs stay forward compatible; field-level
// validation happens on the DTOs themselves. Malformed JSON maps to
// domain.ErrValidation so handlers return one consistent 400 shape.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", domain.ErrValidation, err)
	}
	return nil
}
