// internal/common/http/client.go
package http

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client is an http.Client that spaces requests at least `pacing` apart.
// A zero pacing disables the limiter.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

func NewClient(timeout time.Duration) *Client {
	return NewPacedClient(timeout, 0, "")
}

// NewPacedClient builds a client whose requests are released one per pacing interval.
func NewPacedClient(timeout, pacing time.Duration, userAgent string) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
	if pacing > 0 {
		c.limiter = rate.NewLimiter(rate.Every(pacing), 1)
	}
	return c
}

// Do waits for the pacing limiter, then sends req bound to ctx.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.httpClient.Do(req.WithContext(ctx))
}
