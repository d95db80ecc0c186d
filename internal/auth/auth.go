// Package auth guards inbound requests with a shared API key.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/promptgate/gateway/internal/fault"
)

// Checker validates inbound credentials. An empty configured key disables
// the check entirely.
type Checker struct {
	key string
}

func New(key string) *Checker {
	return &Checker{key: strings.TrimSpace(key)}
}

// Enabled reports whether requests must carry a credential.
func (c *Checker) Enabled() bool { return c.key != "" }

// Authorize accepts the credential from either a bearer Authorization
// header or an x-api-key header; the two carriers are equivalent.
func (c *Checker) Authorize(r *http.Request) error {
	if !c.Enabled() {
		return nil
	}
	candidate := r.Header.Get("x-api-key")
	if candidate == "" {
		header := r.Header.Get("Authorization")
		if strings.HasPrefix(strings.ToLower(header), "bearer ") {
			candidate = strings.TrimSpace(header[len("bearer "):])
		}
	}
	if candidate == "" {
		return fault.New(fault.KindUnauthorized, "missing API key")
	}
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(c.key)) != 1 {
		return fault.New(fault.KindUnauthorized, "invalid API key")
	}
	return nil
}
