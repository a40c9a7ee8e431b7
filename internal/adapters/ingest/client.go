package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alejandrodnm/spreadwatch/internal/domain"
	"github.com/alejandrodnm/spreadwatch/internal/ratelimit"
)

const clientTimeout = 5 * time.Second

// Client empuja samples al endpoint de ingest del panel para que los
// persista y los difunda por WS. Best-effort: el caller decide si un fallo
// es fatal (no lo es: el siguiente tick reintenta de facto).
type Client struct {
	url  string
	http *http.Client
}

// New crea el cliente contra la URL completa del endpoint de ingest,
// p.ej. http://localhost:8000/api/ingest/spread.
func New(url string) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: clientTimeout},
	}
}

// Publish envía un sample como JSON.
func (c *Client) Publish(ctx context.Context, s domain.Sample) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("ingest.Publish: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("ingest.Publish: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ingest.Publish: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("ingest.Publish: status %d", resp.StatusCode)
	}
	return nil
}

// FetchAdminConfig descarga la config de rate limits del panel
// (GET /api/admin/config) y la convierte a ratelimit.Config. Devuelve nil
// sin error si el panel no tiene ratelimits configurados.
func FetchAdminConfig(ctx context.Context, url string) (ratelimit.Config, error) {
	client := &http.Client{Timeout: clientTimeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest.FetchAdminConfig: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingest.FetchAdminConfig: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ingest.FetchAdminConfig: status %d", resp.StatusCode)
	}

	var payload struct {
		RateLimits map[string]map[string]ratelimit.BucketConfig `json:"ratelimits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("ingest.FetchAdminConfig: decode: %w", err)
	}
	if payload.RateLimits == nil {
		return nil, nil
	}
	return ratelimit.Config(payload.RateLimits), nil
}
