package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout bounds each request with a context deadline and answers 504
// when the handler has not finished in time. Paths with one of skipPrefixes
// are passed through untouched.
//
// The handler writes into a buffer that is copied to the client only when it
// finishes in time. After a timeout its writes fail with http.ErrHandlerTimeout.
// The middleware always waits for the handler to return, so the echo.Context
// is never released to the pool while the handler still holds it.
func RequestTimeout(timeout time.Duration, skipPrefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			for _, p := range skipPrefixes {
				if strings.HasPrefix(path, p) {
					return next(c)
				}
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			res := c.Response()
			orig := res.Writer
			tw := newTimeoutWriter(orig.Header())
			res.Writer = tw

			done := make(chan handlerResult, 1)
			go func() {
				var r handlerResult
				defer func() {
					r.panicked = recover()
					done <- r
				}()
				r.err = next(c)
			}()

			var (
				r        handlerResult
				timedOut bool
			)
			select {
			case r = <-done:
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					tw.expire()
					writeGatewayTimeout(orig)
					timedOut = true
				}
				r = <-done
			}

			// The handler has returned; c is ours again.
			res.Writer = orig
			if r.panicked != nil {
				panic(r.panicked)
			}
			if timedOut {
				res.Status = http.StatusGatewayTimeout
				res.Committed = true
				return nil
			}
			tw.copyTo(orig)
			return r.err
		}
	}
}

type handlerResult struct {
	err      error
	panicked any
}

var gatewayTimeoutBody, _ = json.Marshal(map[string]string{
	"message": "request processing exceeded the allowed time limit",
})

func writeGatewayTimeout(w http.ResponseWriter) {
	h := w.Header()
	h.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	h.Set(echo.HeaderContentLength, strconv.Itoa(len(gatewayTimeoutBody)))
	w.WriteHeader(http.StatusGatewayTimeout)
	_, _ = w.Write(gatewayTimeoutBody)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// timeoutWriter buffers a handler's response until the middleware decides
// whether it reaches the client.
type timeoutWriter struct {
	mu       sync.Mutex
	header   http.Header
	buf      bytes.Buffer
	code     int
	timedOut bool
}

func newTimeoutWriter(base http.Header) *timeoutWriter {
	return &timeoutWriter{header: base.Clone()}
}

// Header is only used by the handler goroutine until it returns.
func (w *timeoutWriter) Header() http.Header { return w.header }

func (w *timeoutWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timedOut || w.code != 0 {
		return
	}
	w.code = code
}

func (w *timeoutWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.buf.Write(p)
}

// Flush is a no-op; buffered output is released by copyTo.
func (w *timeoutWriter) Flush() {}

func (w *timeoutWriter) expire() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timedOut = true
}

func (w *timeoutWriter) copyTo(dst http.ResponseWriter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	h := dst.Header()
	for k, v := range w.header {
		h[k] = v
	}
	if w.code == 0 {
		return
	}
	dst.WriteHeader(w.code)
	_, _ = dst.Write(w.buf.Bytes())
}
