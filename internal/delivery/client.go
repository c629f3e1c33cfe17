// Package delivery performs the outbound signed HTTP POST for a webhook job.
// It classifies outcomes uniformly and never retries; retry scheduling is the
// worker's concern.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/surveypulse/courier/internal/signing"
)

const (
	// DefaultTimeout bounds how long one endpoint can stall a delivery.
	DefaultTimeout = 10 * time.Second

	// MaxResponseBodyLen caps how much of the endpoint's response body is
	// kept, both here and in stored job rows.
	MaxResponseBodyLen = 1000

	userAgent       = "Surveypulse-Webhooks/1.0"
	headerSignature = "X-Surveypulse-Signature"
	headerTimestamp = "X-Surveypulse-Timestamp"
)

// Payload is the wire format POSTed to tenant endpoints. The signature is
// computed over its exact serialized bytes.
type Payload struct {
	SurveyID  string  `json:"survey_id"`
	SubjectID string  `json:"subject_id"`
	Score     int     `json:"score"`
	Comment   *string `json:"comment"`
	Timestamp string  `json:"timestamp"`
}

// NewPayload builds a delivery payload stamped with the current time in
// RFC 3339 / ISO-8601 form.
func NewPayload(surveyID, subjectID string, score int, comment *string) Payload {
	return Payload{
		SurveyID:  surveyID,
		SubjectID: subjectID,
		Score:     score,
		Comment:   comment,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Marshal serializes the payload to the byte string that is both signed and
// sent as the HTTP body.
func (p Payload) Marshal() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}
	return data, nil
}

// Result is the uniform outcome of one delivery attempt. Transport-level
// failures are reported as StatusCode 0 with a diagnostic Body; any received
// HTTP response is reported by its actual status code.
type Result struct {
	Success    bool
	StatusCode int
	Body       string
}

// Client sends signed webhook deliveries.
type Client struct {
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a delivery client with an OTel-instrumented transport
// and the default request timeout.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now: time.Now,
	}
}

// NewClientWithTimeout creates a delivery client with a custom timeout.
func NewClientWithTimeout(timeout time.Duration) *Client {
	c := NewClient()
	c.httpClient.Timeout = timeout
	return c
}

// Send POSTs payload to url with signature and timestamp headers. Transport
// errors are folded into the Result rather than returned, so callers treat
// every outcome the same way.
func (c *Client) Send(ctx context.Context, payload []byte, url, secret string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{Success: false, StatusCode: 0, Body: fmt.Sprintf("invalid request: %v", err)}
	}

	signature := signing.Sign(payload, secret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSignature, "sha256="+signature)
	req.Header.Set(headerTimestamp, strconv.FormatInt(c.now().Unix(), 10))
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Success: false, StatusCode: 0, Body: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBodyLen))
	if err != nil {
		body = []byte(fmt.Sprintf("failed to read response body: %v", err))
	}

	return Result{
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}
