package llm

import (
	httputils "agentorange/agentorange/utils/http"
	"agentorange/agentorange/utils/logging"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// openFunc issues the request for the prepared message list.
type openFunc func(messages []Message) (io.ReadCloser, error)

// parseFunc decodes one event payload into a text delta.
type parseFunc func(data string) (delta string, done bool, err error)

// openStream posts payload and maps failures onto the llm error kinds.
func openStream(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any) (io.ReadCloser, error) {
	body, err := httputils.PostStream(ctx, client, url, headers, payload)
	if err == nil {
		return body, nil
	}
	var statusErr *httputils.StatusError
	switch {
	case errors.Is(err, httputils.ErrEncode):
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSONEncoding, err)
	case errors.As(err, &statusErr):
		return nil, newBadResponseError(statusErr.StatusCode, statusErr.Body)
	default:
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
}

// stream runs one request for an adapter: it builds the trimmed prompt from the
// adapter history, opens the transport and forwards deltas until the stream ends,
// the adapter cancel flag is set or ctx is done. A completed exchange is
// committed to the history; a cancelled one is not.
func stream(ctx context.Context, name string, h *History, cancelled *atomic.Bool, text string, open openFunc, parse parseFunc) (<-chan string, <-chan error) {
	out := make(chan string)
	errCh := make(chan error, 1)
	cancelled.Store(false)
	user, messages := h.prompt(text)

	go func() {
		defer close(errCh)
		defer close(out)
		defer logging.LogDuration(ctx, name+"_stream")()

		body, err := open(messages)
		if err != nil {
			logging.ErrorLogger.Error("llm stream request failed", zap.String("provider", name), zap.Error(err))
			errCh <- err
			return
		}
		defer body.Close()

		var reply strings.Builder
		err = readEvents(ctx, body, cancelled, func(data string) (bool, error) {
			delta, done, err := parse(data)
			if err != nil {
				return false, err
			}
			if delta != "" {
				reply.WriteString(delta)
				select {
				case out <- delta:
				case <-ctx.Done():
					return true, nil
				}
			}
			return done, nil
		})
		if err != nil {
			logging.ErrorLogger.Error("llm stream failed", zap.String("provider", name), zap.Error(err))
			errCh <- err
			return
		}
		if cancelled.Load() || ctx.Err() != nil {
			logging.AppLogger.Info("llm stream cancelled", zap.String("provider", name), zap.Int("chars", reply.Len()))
			return
		}
		if reply.Len() > 0 {
			h.commit(user, reply.String())
		}
	}()

	return out, errCh
}

// readEvents hands every data payload of an SSE-style body to handle. It returns
// nil on EOF, on a [DONE] sentinel, when handle reports done, or once the cancel
// flag is set or ctx is done; both are checked before every line read.
func readEvents(ctx context.Context, body io.Reader, cancelled *atomic.Bool, handle func(data string) (bool, error)) error {
	reader := bufio.NewReader(body)
	for {
		if cancelled.Load() || ctx.Err() != nil {
			return nil
		}
		line, err := reader.ReadString('\n')
		if cancelled.Load() {
			return nil
		}
		if line = strings.TrimSpace(line); line != "" {
			if data, ok := eventData(line); ok {
				if data == "[DONE]" {
					return nil
				}
				done, herr := handle(data)
				if herr != nil {
					return herr
				}
				if done {
					return nil
				}
			}
		}
		if err != nil {
			if err == io.EOF || ctx.Err() != nil || cancelled.Load() {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrStream, err)
		}
	}
}

func eventData(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "data:"):
		return strings.TrimSpace(strings.TrimPrefix(line, "data:")), true
	case strings.HasPrefix(line, ":"),
		strings.HasPrefix(line, "event:"),
		strings.HasPrefix(line, "id:"),
		strings.HasPrefix(line, "retry:"):
		return "", false
	default:
		// some self-hosted servers stream bare JSON lines
		return line, true
	}
}
