// Package modelscope provides synchronous and asynchronous adapters for the ModelScope
// image inference API.
//
// The synchronous adapter answers in one round trip. The asynchronous adapter submits
// with the async-mode header and is polled through the task endpoint.
package modelscope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mhpenta/imagestudio"
	"github.com/tidwall/gjson"
)

// maxErrorBody bounds how much of an error response is kept for diagnostics.
const maxErrorBody = 64 << 10

// client is the HTTP plumbing shared by both adapters.
type client struct {
	cfg Config
}

// buildBody renders the request fields using the configured field names.
func (c *client) buildBody(model string, req *imagestudio.GenerationRequest) map[string]any {
	w := c.cfg.Wire
	size := req.Size
	if size == "" {
		size = c.cfg.DefaultSize
	}

	body := map[string]any{
		w.ModelField:  model,
		w.PromptField: req.Prompt,
	}
	if w.SizeField != "" && size != "" {
		body[w.SizeField] = size.String()
	}
	if req.Mode == imagestudio.ModeEdit && !req.SourceImage.IsZero() && w.ImageField != "" {
		// Base64 strips any data URI envelope; URLs pass through.
		body[w.ImageField] = req.SourceImage.Base64()
	}
	return body
}

// do sends a request and returns the response body. Non-2xx statuses become a
// ProviderError carrying the status code and raw body.
func (c *client) do(ctx context.Context, method, path string, payload any, headers map[string]string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		if k != "" {
			httpReq.Header.Set(k, v)
		}
	}

	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", c.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &imagestudio.ProviderError{
			Provider:   c.cfg.Name,
			StatusCode: resp.StatusCode,
			Body:       string(errBody),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", c.cfg.Name, err)
	}
	return data, nil
}

// parseJSON validates that data is JSON and returns it as a gjson result.
func (c *client) parseJSON(data []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, &imagestudio.ProviderError{
			Provider: c.cfg.Name,
			Body:     string(data),
			Err:      fmt.Errorf("response is not valid JSON"),
		}
	}
	return gjson.ParseBytes(data), nil
}

// lookup returns the string at path, or "" when path is empty or absent.
func lookup(doc gjson.Result, path string) string {
	if path == "" {
		return ""
	}
	return doc.Get(path).String()
}

func containsFold(states []string, s string) bool {
	for _, st := range states {
		if strings.EqualFold(st, s) {
			return true
		}
	}
	return false
}
