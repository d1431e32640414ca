package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is one outbound POST. Headers holds every header to send,
// already merged in precedence order.
type Request struct {
	URL     string
	Headers http.Header
	Body    []byte
	Timeout time.Duration
}

type Result struct {
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Sender performs the HTTP call for a delivery attempt.
type Sender interface {
	Send(ctx context.Context, req Request) Result
}

type HTTPSender struct {
	client *http.Client
}

// NewHTTPSender returns a sender that never follows redirects: a 3xx is
// the endpoint's answer and counts as a failed delivery.
func NewHTTPSender() *HTTPSender {
	return &HTTPSender{client: &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (s *HTTPSender) Send(ctx context.Context, req Request) Result {
	start := time.Now()

	timeout := req.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return Result{Err: fmt.Errorf("create request: %w", err), Duration: time.Since(start)}
	}
	httpReq.Header = req.Headers.Clone()

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return Result{Err: fmt.Errorf("send: %w", err), Duration: time.Since(start)}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return Result{StatusCode: resp.StatusCode, Duration: time.Since(start)}
}

func statusClass(code int) string {
	if code == 0 {
		return "error"
	}
	return fmt.Sprintf("%dxx", code/100)
}
