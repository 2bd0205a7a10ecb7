package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-retryablehttp"
)

// RemoteConfig is everything needed to reach the remote-cache API (spec
// §4.H "Remote-cache wire protocol").
type RemoteConfig struct {
	BaseURL      string
	Token        string
	TeamID       string
	TeamSlug     string
	FetchTimeout time.Duration
	PutTimeout   time.Duration
	MaxRetries   int
}

func (c RemoteConfig) fetchTimeout() time.Duration {
	if c.FetchTimeout > 0 {
		return c.FetchTimeout
	}
	return 30 * time.Second
}

func (c RemoteConfig) putTimeout() time.Duration {
	if c.PutTimeout > 0 {
		return c.PutTimeout
	}
	return 60 * time.Second
}

func (c RemoteConfig) maxRetries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return 2
}

// remoteClient wraps retryablehttp.Client with an exponential backoff
// policy for the retry schedule itself (spec's open question on remote
// retry policy, resolved in DESIGN.md): 5xx and transport errors retry,
// 4xx is terminal.
type remoteClient struct {
	cfg  RemoteConfig
	http *retryablehttp.Client
}

func newRemoteClient(cfg RemoteConfig) *remoteClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.maxRetries()
	rc.Logger = nil
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	rc.Backoff = func(min, max time.Duration, attempt int, resp *http.Response) time.Duration {
		bounded := backoff.WithMaxRetries(b, uint64(cfg.maxRetries()))
		d := bounded.NextBackOff()
		if d == backoff.Stop {
			return max
		}
		return d
	}
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err != nil {
			return true, nil
		}
		if resp.StatusCode >= 500 {
			return true, nil
		}
		return false, nil
	}
	return &remoteClient{cfg: cfg, http: rc}
}

func (c *remoteClient) artifactURL(hash string) string {
	q := url.Values{}
	if c.cfg.TeamID != "" {
		q.Set("teamId", c.cfg.TeamID)
	}
	if c.cfg.TeamSlug != "" {
		q.Set("slug", c.cfg.TeamSlug)
	}
	return fmt.Sprintf("%s/v8/artifacts/%s?%s", c.cfg.BaseURL, hash, q.Encode())
}

func (c *remoteClient) authorize(req *retryablehttp.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
}

// Put uploads an artifact (spec: "PUT /v8/artifacts/<hash>?teamId=…").
func (c *remoteClient) Put(ctx context.Context, hash string, body []byte, duration int, signatureTag string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.putTimeout())
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, c.artifactURL(hash), bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("x-artifact-duration", fmt.Sprintf("%d", duration))
	if signatureTag != "" {
		req.Header.Set("x-artifact-tag", signatureTag)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("uploading artifact %s: %w", hash, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("remote cache rejected upload (%d): %s", resp.StatusCode, string(b))
	}
	return nil
}

// fetchResult is what Fetch returns on a cache hit.
type fetchResult struct {
	Body         []byte
	Duration     int
	SignatureTag string
}

// Fetch downloads an artifact. A nil result with no error means "miss".
func (c *remoteClient) Fetch(ctx context.Context, hash string) (*fetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.fetchTimeout())
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.artifactURL(hash), nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching artifact %s: %w", hash, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("remote cache error (%d): %s", resp.StatusCode, string(b))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	duration := 0
	if d := resp.Header.Get("x-artifact-duration"); d != "" {
		fmt.Sscanf(d, "%d", &duration)
	}
	return &fetchResult{Body: body, Duration: duration, SignatureTag: resp.Header.Get("x-artifact-tag")}, nil
}

// Exists performs a HEAD-style existence probe (spec §4.G "exists").
func (c *remoteClient) Exists(ctx context.Context, hash string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.fetchTimeout())
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, c.artifactURL(hash), nil)
	if err != nil {
		return false, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, nil
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK, nil
}
