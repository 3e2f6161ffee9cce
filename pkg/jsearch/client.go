// Package jsearch is a small client for the RapidAPI JSearch job listings API.
package jsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/time/rate"

	"github.com/rubiojr/jobsearch/pkg/log"
	"github.com/rubiojr/jobsearch/pkg/version"
)

const (
	DefaultBaseURL = "https://jsearch.p.rapidapi.com"
	DefaultHost    = "jsearch.p.rapidapi.com"
	DefaultTimeout = 15 * time.Second

	maxErrorBody = 4096
)

// Config configures a Client. Zero values fall back to the defaults above.
type Config struct {
	BaseURL string
	Key     string
	Host    string
	Timeout time.Duration
	// RequestsPerSecond throttles outgoing calls. Zero disables throttling.
	RequestsPerSecond float64
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// Client talks to JSearch.
type Client struct {
	baseURL string
	key     string
	host    string
	http    *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Key) == "" {
		return nil, ErrMissingKey
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	host := cfg.Host
	if host == "" {
		host = DefaultHost
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: gzhttp.Transport(http.DefaultTransport),
		}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL: baseURL,
		key:     cfg.Key,
		host:    host,
		http:    httpClient,
		limiter: limiter,
		logger:  log.ForService("jsearch"),
	}, nil
}

// Search performs GET /search for req. The request target is the cache key,
// so what is sent is exactly what is cached.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var out SearchResponse
	if err := c.get(ctx, "/search", req.CacheKey(), &out); err != nil {
		return nil, err
	}
	c.logger.Debugf("search %q page %d: %d jobs", req.Query, req.Page, len(out.Data))
	return &out, nil
}

// JobDetails performs GET /job-details and returns the first listing.
func (c *Client) JobDetails(ctx context.Context, jobID, country string) (*Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, ErrJobNotFound
	}
	if country == "" {
		country = DefaultCountry
	}
	params := url.Values{}
	params.Set("job_id", jobID)
	params.Set("country", country)

	var out detailsResponse
	if err := c.get(ctx, "/job-details", "/job-details?"+params.Encode(), &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, ErrJobNotFound
	}
	return &out.Data[0], nil
}

// get requests target, a path with its query string, relative to the base
// URL. path names the endpoint in logs and errors.
func (c *Client) get(ctx context.Context, path, target string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	endpoint := c.baseURL + target
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", c.key)
	req.Header.Set("X-RapidAPI-Host", c.host)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warnf("%s returned %d", path, resp.StatusCode)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func escape(s string) string {
	return url.QueryEscape(s)
}
