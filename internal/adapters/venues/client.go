package venues

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alejandrodnm/spreadwatch/internal/ratelimit"
)

const requestTimeout = 10 * time.Second

// restClient es la sesión HTTP compartida de un adapter. Cada GET pasa
// primero por el rate limiter del proceso con el endpoint-class del caller.
// Sin retries: el siguiente tick del poller es el retry.
type restClient struct {
	venue   string
	host    string
	http    *http.Client
	limiter *ratelimit.Limiter
}

func newRESTClient(venue, host string, limiter *ratelimit.Limiter) *restClient {
	return &restClient{
		venue:   venue,
		host:    host,
		http:    &http.Client{Timeout: requestTimeout},
		limiter: limiter,
	}
}

// get hace un GET JSON con rate limiting y decodifica en out.
func (c *restClient) get(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx, c.venue, endpoint, 1); err != nil {
			return err
		}
	}

	u := c.host + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("venues.get %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("venues.get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("venues.get %s: status %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("venues.get %s: decode: %w", path, err)
	}
	return nil
}

// closeIdle cierra las conexiones keep-alive de la sesión.
func (c *restClient) closeIdle() {
	c.http.CloseIdleConnections()
}

// parseF convierte el string numérico que devuelven los venues. Devuelve
// nil si está vacío o no parsea.
func parseF(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// nextFundingApprox aproxima el próximo pago de funding alineando a los
// límites de ciclo desde epoch: next = ((now/P)+1)*P, P = cycleHours en ms.
// Un ciclo no positivo cae al estándar de 8h.
func nextFundingApprox(nowMS int64, cycleHours int) float64 {
	if cycleHours <= 0 {
		cycleHours = 8
	}
	period := int64(cycleHours) * 3600 * 1000
	return float64((nowMS/period + 1) * period)
}
