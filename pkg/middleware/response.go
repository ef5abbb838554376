package middleware

import (
	"errors"
	"fmt"
	"net/http"
)

// Response is what a HandlerFunc returns.
type Response struct {
	// StatusCode defaults to 200.
	StatusCode int

	// Payload is a string, []byte, structured value (map, slice, struct),
	// or nil for no body.
	Payload any

	// Header is copied onto the outgoing response.
	Header http.Header
}

// OK returns a 200 response carrying payload.
func OK(payload any) *Response {
	return &Response{StatusCode: http.StatusOK, Payload: payload}
}

// Code sets the status code and returns r.
func (r *Response) Code(statusCode int) *Response {
	r.StatusCode = statusCode
	return r
}

// SetHeader sets a response header and returns r.
func (r *Response) SetHeader(key, value string) *Response {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(key, value)
	return r
}

// HandlerFunc produces the response for a request. A returned error is
// turned into an error document and never receives an ETag.
type HandlerFunc func(r *http.Request) (*Response, error)

// HTTPError is an error carrying the status code to respond with.
type HTTPError struct {
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("http %d: %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// Errorf returns an HTTPError with a formatted message.
func Errorf(statusCode int, format string, args ...any) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Message: fmt.Sprintf(format, args...)}
}

// errorDocument is the JSON body written for error responses.
type errorDocument struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// toHTTPError maps any error onto an HTTPError. Errors without a status
// become 500 with their details hidden from the client.
func toHTTPError(err error) *HTTPError {
	var herr *HTTPError
	if errors.As(err, &herr) {
		if herr.StatusCode < 400 || herr.StatusCode > 599 {
			return &HTTPError{StatusCode: http.StatusInternalServerError, Message: herr.Message, Err: herr.Err}
		}
		return herr
	}
	return &HTTPError{StatusCode: http.StatusInternalServerError, Err: err}
}

func (e *HTTPError) document() errorDocument {
	msg := e.Message
	switch {
	case e.StatusCode >= 500:
		msg = "An internal server error occurred"
	case msg == "":
		msg = http.StatusText(e.StatusCode)
	}
	return errorDocument{
		StatusCode: e.StatusCode,
		Error:      http.StatusText(e.StatusCode),
		Message:    msg,
	}
}
