package httputil

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// ParsePathUUID extracts and parses a UUID path parameter
func ParsePathUUID(r *http.Request, key string) (uuid.UUID, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return uuid.Nil, fmt.Errorf("missing path parameter: %s", key)
	}
	id, err := uuid.Parse(str)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id for %s: %s", key, str)
	}
	return id, nil
}

// ParsePathUUIDOrError extracts a UUID path parameter. An unparseable id
// cannot name any object, so it is answered with 404.
func ParsePathUUIDOrError(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := ParsePathUUID(r, key)
	if err != nil {
		WriteNotFoundError(w, err.Error())
		return uuid.Nil, false
	}
	return id, true
}

// ParseQueryUUID extracts an optional UUID query parameter. A missing
// parameter yields nil.
func ParseQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return nil, nil
	}
	id, err := uuid.Parse(str)
	if err != nil {
		return nil, fmt.Errorf("invalid id for query param %s: %s", key, str)
	}
	return &id, nil
}

// ClientIP returns the caller's address, preferring proxy headers
func ClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (if behind proxy); the first hop is the client
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
