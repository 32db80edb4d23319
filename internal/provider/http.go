package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
	"github.com/GriffinCanCode/dialogue-overlay/internal/trace"
)

const defaultHTTPTimeout = 60 * time.Second

// postJSON sends body to url and decodes a JSON reply into out. Non-2xx
// replies become AppErrors; 429 is RateLimited and 5xx Unavailable.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if tc, ok := trace.FromContext(ctx); ok {
		req.Header.Set(trace.TraceIDKey, tc.TraceID)
	}

	resp, err := client.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeUnavailable, "provider request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		code := apperrors.CodeProviderFailure
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			code = apperrors.CodeRateLimited
		case resp.StatusCode >= 500:
			code = apperrors.CodeUnavailable
		}
		return apperrors.New(code, fmt.Sprintf("provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))).
			WithMetadata("status", fmt.Sprint(resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(err, apperrors.CodeProviderFailure, "decode provider response")
	}
	return nil
}

func httpClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}
