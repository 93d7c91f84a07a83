// Package tika provides a client for an Apache Tika extraction server.
package tika

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"ai-doc-chat-go/internal/config"
)

// Result holds the output of a Tika extraction pass.
type Result struct {
	Text     string
	Pages    int
	Metadata map[string]string
}

// Client is a client for a Tika server.
type Client struct {
	serverURL string
	client    *http.Client
}

// NewClient creates a new Tika client instance.
func NewClient(cfg config.TikaConfig) *Client {
	return &Client{serverURL: cfg.ServerURL, client: &http.Client{}}
}

// Extract sends the raw bytes to Tika and returns the plain text plus the
// page count and document metadata reported by the parser.
func (c *Client) Extract(ctx context.Context, data []byte, mimeType string) (*Result, error) {
	text, err := c.extractText(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}

	meta, err := c.extractMetadata(ctx, data, mimeType)
	if err != nil {
		// Text extraction succeeded; treat metadata as best effort.
		meta = map[string]string{}
	}

	pages := 1
	if raw, ok := meta["xmpTPg:NPages"]; ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			pages = n
		}
	}

	return &Result{Text: text, Pages: pages, Metadata: meta}, nil
}

func (c *Client) extractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "PUT", c.serverURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create tika request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", mimeType)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call tika: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("tika returned error [%d]: %s", resp.StatusCode, string(body))
	}

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return "", fmt.Errorf("failed to read tika response: %w", err)
	}
	return buf.String(), nil
}

func (c *Client) extractMetadata(ctx context.Context, data []byte, mimeType string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, "PUT", c.serverURL+"/meta", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create tika meta request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", mimeType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call tika meta: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tika meta returned error [%d]: %s", resp.StatusCode, string(body))
	}

	// Tika reports metadata values as either strings or string arrays.
	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode tika metadata: %w", err)
	}
	meta := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			meta[k] = val
		case []interface{}:
			if len(val) > 0 {
				if s, ok := val[0].(string); ok {
					meta[k] = s
				}
			}
		}
	}
	return meta, nil
}
