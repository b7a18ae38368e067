package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"labfunds/internal/core"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads one JSON object from the body into dst. Unknown fields
// and trailing data are rejected as validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return core.Invalid(errors.New("request body is empty"))
		case errors.As(err, &maxErr):
			return core.Invalid(fmt.Errorf("request body exceeds %d bytes", maxErr.Limit))
		}
		return core.Invalid(fmt.Errorf("malformed request body: %v", err))
	}
	if dec.More() {
		return core.Invalid(errors.New("request body must contain a single JSON object"))
	}
	return nil
}

// pathID parses the {name} path value as a UUID.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, core.Invalid(fmt.Errorf("invalid %s %q", name, r.PathValue(name)))
	}
	return id, nil
}

// sanitizeInput trims and strips control characters other than tab and
// newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}

// boolQuery reads a boolean query flag; absent means false.
func boolQuery(r *http.Request, name string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(name))) {
	case "1", "true", "yes":
		return true
	}
	return false
}
