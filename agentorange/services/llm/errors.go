package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrInvalidJSONEncoding = errors.New("llm: request body could not be encoded")
	ErrInvalidJSONDecoding = errors.New("llm: response body could not be decoded")
	ErrInvalidResponse     = errors.New("llm: invalid response")
	ErrBadResponse         = errors.New("llm: bad response status")
	ErrTransport           = errors.New("llm: transport error")
	ErrStream              = errors.New("llm: stream error")
	ErrInvalidParameters   = errors.New("llm: invalid parameters")
	ErrMissingCredential   = errors.New("llm: missing api key")
)

// BadResponseError is a non-2xx reply. Message is the vendor error message when
// the body decoded, otherwise the raw body.
type BadResponseError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *BadResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bad response: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("bad response: %d: %s", e.StatusCode, e.Message)
}

func (e *BadResponseError) Unwrap() error {
	return ErrBadResponse
}

type vendorErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Status  string `json:"status"`
	} `json:"error"`
}

func newBadResponseError(statusCode int, body []byte) *BadResponseError {
	e := &BadResponseError{StatusCode: statusCode}
	var decoded vendorErrorBody
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Error.Message != "" {
		e.Message = decoded.Error.Message
		e.Type = decoded.Error.Type
		if e.Type == "" {
			e.Type = decoded.Error.Status
		}
		return e
	}
	e.Message = strings.TrimSpace(string(body))
	return e
}

func streamError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStream, fmt.Sprintf(format, args...))
}
