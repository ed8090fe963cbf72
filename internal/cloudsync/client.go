package cloudsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	pinnerrors "github.com/maruel/pinn/internal/errors"
	"github.com/maruel/pinn/internal/models"
)

// Client issues requests against the remote store, trying each candidate
// base URL in order. Each candidate is tried with the auth token first, then
// anonymously, since test-mode stores reject ?auth= from unknown keys but
// accept open access.
type Client struct {
	hc      *http.Client
	limiter *rate.Limiter
	bases   []string
	apiKey  string
}

// NewClient builds a client for the configured project.
func NewClient(cfg models.CloudConfig) *Client {
	return newClient(ResolveCandidates(cfg), cfg.APIKey)
}

func newClient(bases []string, apiKey string) *Client {
	return &Client{
		hc:      &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(10), 5),
		bases:   bases,
		apiKey:  apiKey,
	}
}

// attempt is the outcome of one request against one base URL.
type attempt struct {
	status int
	body   []byte
	err    error
}

// definitive reports whether the server answered at all, regardless of
// status.
func (a *attempt) definitive() bool {
	return a.err == nil
}

func (c *Client) do(ctx context.Context, method, base, path string, payload []byte, auth bool) attempt {
	if err := c.limiter.Wait(ctx); err != nil {
		return attempt{err: err}
	}
	url := base + "/" + path
	if auth && c.apiKey != "" {
		url += "?auth=" + c.apiKey
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return attempt{err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return attempt{err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return attempt{err: err}
	}
	return attempt{status: resp.StatusCode, body: data}
}

// tryBase runs one request against one base, falling back to an anonymous
// retry when the authenticated variant is rejected.
func (c *Client) tryBase(ctx context.Context, method, base, path string, payload []byte) attempt {
	a := c.do(ctx, method, base, path, payload, true)
	if a.err == nil && (a.status == http.StatusUnauthorized || a.status == http.StatusForbidden) && c.apiKey != "" {
		slog.Debug("Auth rejected, retrying anonymously", "base", base, "status", a.status)
		return c.do(ctx, method, base, path, payload, false)
	}
	return a
}

func statusError(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return pinnerrors.New(pinnerrors.ErrRemoteAuth,
			"The cloud store rejected the credentials. Check the API key in your cloud settings.")
	case http.StatusForbidden:
		return pinnerrors.New(pinnerrors.ErrRemoteDenied,
			"The cloud store denied access. Check the database rules for your project.")
	case http.StatusNotFound:
		return pinnerrors.New(pinnerrors.ErrRemoteNotFound,
			"The cloud store path was not found. Check the project id in your cloud settings.")
	default:
		return pinnerrors.Newf(pinnerrors.ErrNetwork,
			"The cloud store returned an unexpected status %d.", status)
	}
}

func networkError(err error) error {
	return pinnerrors.New(pinnerrors.ErrNetwork,
		"Could not connect to the cloud store. Check your internet connection and the project id.").Wrap(err)
}

func isNull(body []byte) bool {
	return string(bytes.TrimSpace(body)) == "null"
}

// Get fetches path from the first candidate that has data. A candidate
// answering null means "no data here", not success; probing continues.
// Returns (nil, nil) once any candidate answered null and none had data.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	var firstStatus error
	var lastNet error
	sawNull := false
	for _, base := range c.bases {
		a := c.tryBase(ctx, http.MethodGet, base, path, nil)
		if !a.definitive() {
			lastNet = a.err
			continue
		}
		if a.status == http.StatusOK {
			if isNull(a.body) {
				sawNull = true
				continue
			}
			return json.RawMessage(a.body), nil
		}
		if firstStatus == nil {
			firstStatus = statusError(a.status)
		}
	}
	// A null answer is an authoritative "no data here"; it beats status
	// errors from the other candidates.
	if sawNull {
		return nil, nil
	}
	if firstStatus != nil {
		return nil, firstStatus
	}
	return nil, networkError(lastNet)
}

// Put writes body (marshaled as JSON) to path on the first candidate that
// accepts it.
func (c *Client) Put(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	var firstStatus error
	var lastNet error
	for _, base := range c.bases {
		a := c.tryBase(ctx, http.MethodPut, base, path, payload)
		if !a.definitive() {
			lastNet = a.err
			continue
		}
		if a.status >= 200 && a.status < 300 {
			return nil
		}
		if firstStatus == nil {
			firstStatus = statusError(a.status)
		}
	}
	if firstStatus != nil {
		return firstStatus
	}
	return networkError(lastNet)
}

// Probe checks that the store is reachable at all. Any definitive HTTP
// response counts, including not-found: it proves a server is there.
func (c *Client) Probe(ctx context.Context, path string) error {
	var lastNet error
	for _, base := range c.bases {
		a := c.tryBase(ctx, http.MethodGet, base, path, nil)
		if a.definitive() {
			return nil
		}
		lastNet = a.err
	}
	return networkError(lastNet)
}
