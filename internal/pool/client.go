package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"raceday-tracker/internal/constants"
	"raceday-tracker/internal/domain"

	"github.com/valyala/fasthttp"
)

// Client fetches the horse pool from a remote horse service over HTTP.
type Client struct {
	baseURL string
	client  *fasthttp.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

func (c *Client) FetchHorses(ctx context.Context) ([]domain.Horse, error) {
	var horses []domain.Horse
	if err := c.get(ctx, c.baseURL+"/horses", &horses); err != nil {
		return nil, fmt.Errorf("fetch horses: %w: %v", ErrPoolUnavailable, err)
	}
	return horses, nil
}

func (c *Client) HorseByID(ctx context.Context, id string) (domain.Horse, error) {
	var horse domain.Horse
	if err := c.get(ctx, fmt.Sprintf("%s/horses/%s", c.baseURL, id), &horse); err != nil {
		return domain.Horse{}, fmt.Errorf("horse %s: %w", id, ErrHorseNotFound)
	}
	return horse, nil
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	deadline := time.Now().Add(constants.ExternalAPITimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("request %s: unexpected status %d", url, resp.StatusCode())
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
