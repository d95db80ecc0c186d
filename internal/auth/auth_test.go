package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/promptgate/gateway/internal/fault"
)

func TestAuthorize(t *testing.T) {
	c := New("sk-gw")
	tests := []struct {
		name   string
		header string
		value  string
		wantOK bool
	}{
		{"bearer", "Authorization", "Bearer sk-gw", true},
		{"bearer lowercase scheme", "Authorization", "bearer sk-gw", true},
		{"api key header", "x-api-key", "sk-gw", true},
		{"wrong key", "x-api-key", "sk-other", false},
		{"wrong bearer", "Authorization", "Bearer nope", false},
		{"missing", "", "", false},
		{"basic scheme rejected", "Authorization", "Basic sk-gw", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/v1/messages", nil)
			if tt.header != "" {
				r.Header.Set(tt.header, tt.value)
			}
			err := c.Authorize(r)
			if tt.wantOK && err != nil {
				t.Errorf("Authorize: %v", err)
			}
			if !tt.wantOK {
				if err == nil {
					t.Fatal("expected rejection")
				}
				if fault.KindOf(err) != fault.KindUnauthorized {
					t.Errorf("kind = %v", fault.KindOf(err))
				}
			}
		})
	}
}

func TestDisabledChecker(t *testing.T) {
	c := New("")
	if c.Enabled() {
		t.Error("empty key should disable the check")
	}
	r := httptest.NewRequest("GET", "/v1/health", nil)
	if err := c.Authorize(r); err != nil {
		t.Errorf("Authorize with auth disabled: %v", err)
	}
}
