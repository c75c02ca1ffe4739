// Package api is the iNaturalist read-only client. Observations are fetched
// page by page in stable observed-at order so ingest ordering is well-defined.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/mmulqu/biome/internal/config"
	"github.com/mmulqu/biome/internal/constants"
	"github.com/mmulqu/biome/internal/domain"
)

type INatClient struct {
	baseURL     string
	userAgent   string
	client      *fasthttp.Client
	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
}

type RateLimitInfo struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewINatClient(cfg *config.Config) *INatClient {
	return &INatClient{
		baseURL:   cfg.INatBaseURL,
		userAgent: cfg.INatUserAgent,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		rateLimit: RateLimitInfo{
			Limit:     60,
			Remaining: 60,
			UpdatedAt: time.Now(),
		},
	}
}

func (c *INatClient) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *INatClient) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if limit := string(resp.Header.Peek("X-RateLimit-Limit")); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			c.rateLimit.Limit = val
		}
	}
	if remaining := string(resp.Header.Peek("X-RateLimit-Remaining")); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			c.rateLimit.Remaining = val
		}
	}
	c.rateLimit.UpdatedAt = time.Now()
}

// GetUser resolves an iNaturalist login to a user record. Returns
// domain.ErrNotFound when no exact login match exists.
func (c *INatClient) GetUser(ctx context.Context, login string) (*User, error) {
	u := fmt.Sprintf("%s/users/autocomplete?q=%s", c.baseURL, url.QueryEscape(login))
	resp, err := doRequest[userAutocompleteResponse](ctx, c, u)
	if err != nil {
		return nil, err
	}
	for i := range resp.Results {
		if resp.Results[i].Login == login {
			return &resp.Results[i], nil
		}
	}
	return nil, fmt.Errorf("%w: iNaturalist user %q", domain.ErrNotFound, login)
}

// GetObservations fetches one page of a user's observations, oldest first.
// Pages are 1-based.
func (c *INatClient) GetObservations(ctx context.Context, login string, page int) (*ObservationPage, error) {
	u := fmt.Sprintf("%s/observations?user_login=%s&per_page=%d&page=%d&order=asc&order_by=observed_on",
		c.baseURL, url.QueryEscape(login), constants.SourcePageSize, page)
	resp, err := doRequest[observationsResponse](ctx, c, u)
	if err != nil {
		return nil, err
	}

	return &ObservationPage{
		Records: resp.Results,
		HasMore: resp.Page*resp.PerPage < resp.TotalResults,
	}, nil
}

func doRequest[T any](ctx context.Context, client *INatClient, url string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("User-Agent", client.userAgent)
	req.Header.Set("Accept", "application/json")

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
		}
	}

	client.updateRateLimit(resp)

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("%w: iNaturalist API status %d", domain.ErrUpstream, resp.StatusCode())
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrUpstream, err)
	}
	return &result, nil
}
