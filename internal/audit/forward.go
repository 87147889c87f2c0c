package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Forwarder ships entries to an external collector. Errors are reported
// to the Sink, which logs and discards them.
type Forwarder interface {
	Forward(ctx context.Context, e Entry) error
}

// ForwarderFunc adapts a function to Forwarder.
type ForwarderFunc func(ctx context.Context, e Entry) error

func (f ForwarderFunc) Forward(ctx context.Context, e Entry) error { return f(ctx, e) }

// Record is the collector wire format.
type Record struct {
	ID            string    `json:"id,omitempty"`
	Event         EventType `json:"event,omitempty"`
	PrincipalID   int64     `json:"principal_id"`
	PrincipalName string    `json:"principal_name,omitempty"`
	Command       string    `json:"command"`
	Output        string    `json:"output"`
	Success       bool      `json:"success"`
	Timestamp     time.Time `json:"timestamp"`
}

// RecordOf converts e to its wire form.
func RecordOf(e Entry) Record {
	return Record{
		ID:            e.ID,
		Event:         e.Type,
		PrincipalID:   e.PrincipalID,
		PrincipalName: e.PrincipalName,
		Command:       e.Command,
		Output:        e.Output,
		Success:       e.Success,
		Timestamp:     e.Timestamp.UTC(),
	}
}

// HTTPForwarder POSTs each entry as JSON to a collector endpoint.
type HTTPForwarder struct {
	URL       string
	Token     string // sent as a bearer token when set
	UserAgent string
	Client    *http.Client
}

// NewHTTPForwarder returns a forwarder for url with its own short-lived client.
func NewHTTPForwarder(url, token string) *HTTPForwarder {
	return &HTTPForwarder{
		URL:    url,
		Token:  token,
		Client: &http.Client{Timeout: DefaultForwardTimeout},
	}
}

// Forward sends e and returns an error for transport failures and
// non-2xx responses.
func (f *HTTPForwarder) Forward(ctx context.Context, e Entry) error {
	body, err := json.Marshal(RecordOf(e))
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post audit record: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("collector returned %s", resp.Status)
	}
	return nil
}
