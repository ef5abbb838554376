package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestToHTTPError(t *testing.T) {
	cause := errors.New("redis down")

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "plain error",
			err:         cause,
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "An internal server error occurred",
		},
		{
			name:        "http error",
			err:         Errorf(http.StatusNotFound, "document %q not found", "a"),
			wantStatus:  http.StatusNotFound,
			wantMessage: `document "a" not found`,
		},
		{
			name:        "wrapped http error",
			err:         fmt.Errorf("lookup: %w", Errorf(http.StatusConflict, "")),
			wantStatus:  http.StatusConflict,
			wantMessage: "Conflict",
		},
		{
			name:        "invalid status",
			err:         Errorf(http.StatusOK, "not an error"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "An internal server error occurred",
		},
		{
			name:        "server error hides details",
			err:         &HTTPError{StatusCode: http.StatusBadGateway, Message: "upstream 10.0.0.1", Err: cause},
			wantStatus:  http.StatusBadGateway,
			wantMessage: "An internal server error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := toHTTPError(tt.err).document()
			if doc.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", doc.StatusCode, tt.wantStatus)
			}
			if doc.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", doc.Message, tt.wantMessage)
			}
			if doc.Error != http.StatusText(tt.wantStatus) {
				t.Errorf("Error = %q, want %q", doc.Error, http.StatusText(tt.wantStatus))
			}
		})
	}
}

func TestHTTPError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := &HTTPError{StatusCode: http.StatusServiceUnavailable, Message: "unavailable", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is() = false for wrapped cause")
	}
	if err.Error() != "http 503: unavailable: cause" {
		t.Errorf("Error() = %q", err.Error())
	}
}
