package action

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Dispatcher delivers an authorized action's payload to its target. The
// result never fails the execution: a failed dispatch still seals the
// action, with the failure recorded on the record.
type Dispatcher interface {
	Dispatch(ctx context.Context, target string, value int64, payload []byte) *DispatchResult
}

// WebhookDispatcher posts the payload to the target URL as JSON.
type WebhookDispatcher struct {
	client *http.Client
}

// NewWebhookDispatcher creates a WebhookDispatcher with the given timeout.
func NewWebhookDispatcher(timeout time.Duration) *WebhookDispatcher {
	return &WebhookDispatcher{client: &http.Client{Timeout: timeout}}
}

type dispatchBody struct {
	Value   int64  `json:"value"`
	Payload string `json:"payload,omitempty"`
}

// Dispatch posts the payload and records the response status and a digest
// of the response body.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, target string, value int64, payload []byte) *DispatchResult {
	result := &DispatchResult{DispatchedAt: time.Now().UTC()}

	body, err := json.Marshal(dispatchBody{
		Value:   value,
		Payload: base64.StdEncoding.EncodeToString(payload),
	})
	if err != nil {
		result.Detail = fmt.Sprintf("encode: %v", err)
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		result.Detail = fmt.Sprintf("request: %v", err)
		return result
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		result.Detail = fmt.Sprintf("dispatch: %v", err)
		return result
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		result.Detail = fmt.Sprintf("status %d, read: %v", resp.StatusCode, err)
		return result
	}

	sum := sha256.Sum256(respBody)
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	result.Detail = fmt.Sprintf("status %d, response sha256 %s", resp.StatusCode, hex.EncodeToString(sum[:]))
	return result
}
