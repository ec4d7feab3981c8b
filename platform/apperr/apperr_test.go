package apperr

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindValidation, http.StatusBadRequest},
		{KindConflict, http.StatusConflict},
		{KindTimeout, http.StatusGatewayTimeout},
		{KindUnknown, http.StatusBadRequest},
	}

	for _, tt := range tests {
		if got := New(tt.kind, "x").HTTPStatus(); got != tt.want {
			t.Errorf("kind %d: expected %d, got %d", tt.kind, tt.want, got)
		}
	}
}

func TestGetKindFindsWrappedError(t *testing.T) {
	err := fmt.Errorf("advance: %w", Conflict("lead cannot move backwards"))
	if !Is(err, KindConflict) {
		t.Fatalf("expected wrapped conflict to be detected, got kind %d", GetKind(err))
	}
	if GetKind(fmt.Errorf("plain")) != KindUnknown {
		t.Fatal("expected unknown kind for plain error")
	}
}
