package common

import (
	"errors"
	"net/http"
	"testing"
)

func TestHTTPStatusMapsTaxonomy(t *testing.T) {
	transport := errors.New("dial tcp: connection refused")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", InvalidInput("locationId is required"), http.StatusBadRequest},
		{"upstream rejected", UpstreamRejected("quota exceeded"), http.StatusBadRequest},
		{"upstream unavailable", UpstreamUnavailable("submit batch", transport), http.StatusInternalServerError},
		{"not found", NotFound("file not found"), http.StatusNotFound},
		{"storage", StorageError("write credential", errors.New("disk full")), http.StatusInternalServerError},
		{"wrapped not found", WrapError(NotFound("gone"), "fetch"), http.StatusNotFound},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Fatalf("HTTPStatus = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestUpstreamUnavailableKeepsCause(t *testing.T) {
	transport := errors.New("i/o timeout")
	err := UpstreamUnavailable("poll batch", transport)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatal("expected taxonomy sentinel")
	}
	if !errors.Is(err, transport) {
		t.Fatal("expected transport cause to stay reachable")
	}
	if Message(err) != "poll batch" {
		t.Fatalf("unexpected message %q", Message(err))
	}
}

func TestValidatorNumeric(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"2311597048265282150", true},
		{" 42 ", true},
		{"", false},
		{"12a", false},
		{"../etc", false},
	}
	for _, tt := range tests {
		v := NewValidator().Field("locationId", tt.value, Required, Numeric)
		if got := !v.HasErrors(); got != tt.ok {
			t.Fatalf("value %q: valid=%v want %v (%s)", tt.value, got, tt.ok, v.ErrorMessage())
		}
	}
}
