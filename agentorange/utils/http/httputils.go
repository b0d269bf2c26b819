// agentorange/utils/http/httputils.go
package httputils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrEncode wraps json.Marshal failures on the request body.
var ErrEncode = errors.New("httputils: encode request body")

// StatusError is returned for any non-2xx response. Body holds at most 64KiB.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status: %s - %s", e.Status, string(e.Body))
}

func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body interface{}, resp interface{}) error {
	r, err := post(ctx, client, url, headers, body)
	if err != nil {
		return err
	}
	defer r.Close()
	if resp != nil {
		return json.NewDecoder(r).Decode(resp)
	}
	return nil
}

// PostStream posts body as JSON and hands back the open response body on a 2xx.
// The caller owns closing it.
func PostStream(ctx context.Context, client *http.Client, url string, headers map[string]string, body interface{}) (io.ReadCloser, error) {
	return post(ctx, client, url, headers, body)
}

func post(ctx context.Context, client *http.Client, url string, headers map[string]string, body interface{}) (io.ReadCloser, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if client == nil {
		client = http.DefaultClient
	}
	r, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if r.StatusCode < 200 || r.StatusCode > 299 {
		defer r.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(r.Body, 64<<10))
		return nil, &StatusError{StatusCode: r.StatusCode, Status: r.Status, Body: b}
	}
	return r.Body, nil
}
