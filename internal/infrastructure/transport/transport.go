package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"paper-reader/internal/application/port/output"
)

const maxLoggedBody = 4096

type LoggingTransport struct {
	Base   http.RoundTripper
	Logger output.LoggerPort
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Logger == nil {
		return base.RoundTrip(req)
	}

	args := []any{"method", req.Method, "url", RedactURL(req.URL)}
	if body := peekJSONBody(req); body != nil {
		args = append(args, "body", body)
	}
	t.Logger.Debug("HTTP Request", args...)

	start := time.Now()
	resp, err := base.RoundTrip(req)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		t.Logger.Warn("HTTP Request failed",
			"method", req.Method,
			"url", RedactURL(req.URL),
			"error", err,
			"duration_ms", elapsed,
		)
		return resp, err
	}

	t.Logger.Debug("HTTP Response",
		"status", resp.Status,
		"statusCode", resp.StatusCode,
		"duration_ms", elapsed,
	)
	return resp, nil
}

// peekJSONBody reads a small JSON request body and restores it for the real round trip.
func peekJSONBody(req *http.Request) map[string]any {
	if req.Body == nil || req.ContentLength > maxLoggedBody {
		return nil
	}
	if req.Header.Get("Content-Type") != "application/json" {
		return nil
	}

	bodyBytes, err := io.ReadAll(req.Body)
	req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	if err != nil || len(bodyBytes) == 0 || len(bodyBytes) > maxLoggedBody {
		return nil
	}

	var data map[string]any
	if err := json.Unmarshal(bodyBytes, &data); err != nil {
		return nil
	}
	return data
}

// RedactURL hides API keys passed as query parameters.
func RedactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	if q.Get("key") == "" {
		return u.String()
	}
	q.Set("key", "REDACTED")
	clone := *u
	clone.RawQuery = q.Encode()
	return clone.String()
}

// NewClient returns an http.Client that logs through logger. A nil logger disables logging.
func NewClient(logger output.LoggerPort, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &LoggingTransport{
			Base:   http.DefaultTransport,
			Logger: logger,
		},
	}
}
