// Package jellyfin queries a Jellyfin server's session list and reduces it to
// a [media.Snapshot] for a single user.
//
// Every failure (transport, status, body size, JSON shape) is reported as a
// [*ProbeError]. Callers treat a ProbeError the same as an idle snapshot.
package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"tools.zach/dev/jellycord/internal/media"
)

// maxResponseBytes caps the session list body.
const maxResponseBytes = 4 << 20

// ///////////////////////////////////////////////
// Errors
// ///////////////////////////////////////////////

// ProbeError reports a failed session query. Op names the failing step
// ("build request", "fetch", "status", "read", "decode").
type ProbeError struct {
	Op  string
	Err error
}

func (e *ProbeError) Error() string {
	return "jellyfin probe: " + e.Op + ": " + e.Err.Error()
}

func (e *ProbeError) Unwrap() error { return e.Err }

// ///////////////////////////////////////////////
// Wire Types
// ///////////////////////////////////////////////

// Session is the subset of a /Sessions entry the probe reads.
type Session struct {
	UserName       string          `json:"UserName"`
	NowPlayingItem *NowPlayingItem `json:"NowPlayingItem"`
}

// NowPlayingItem is the subset of a session's playing item the probe reads.
// Index numbers are pointers so an absent field can be told apart from 0.
type NowPlayingItem struct {
	Name              string `json:"Name"`
	Type              string `json:"Type"`
	SeriesName        string `json:"SeriesName"`
	ParentIndexNumber *int   `json:"ParentIndexNumber"`
	IndexNumber       *int   `json:"IndexNumber"`
	Path              string `json:"Path"`
}

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// Options configures a [Client].
type Options struct {
	// URL is the server base URL, e.g. "http://jellyfin.lan:8096".
	URL string
	// APIKey is sent as the api_key query parameter.
	APIKey string
	// Timeout bounds each HTTP attempt. Zero means 10 seconds.
	Timeout time.Duration
	// RetryMax is the number of retries after a failed attempt.
	RetryMax int
	// UserAgent is sent with every request when non-empty.
	UserAgent string
}

// Client fetches sessions from a Jellyfin server.
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	http      *retryablehttp.Client
}

// NewClient returns a Client for the server described by opts.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := retryablehttp.NewClient()
	hc.RetryMax = opts.RetryMax
	hc.RetryWaitMin = 500 * time.Millisecond
	hc.RetryWaitMax = 2 * time.Second
	hc.HTTPClient.Timeout = timeout
	hc.Logger = nil

	return &Client{
		baseURL:   opts.URL,
		apiKey:    opts.APIKey,
		userAgent: opts.UserAgent,
		http:      hc,
	}
}

// sessionsURL builds {base}/Sessions?api_key={key}.
func (c *Client) sessionsURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base URL %q must include scheme and host", c.baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/Sessions"
	q := u.Query()
	q.Set("api_key", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Sessions fetches and decodes the server's current session list.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	endpoint, err := c.sessionsURL()
	if err != nil {
		return nil, &ProbeError{Op: "build request", Err: err}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &ProbeError{Op: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ProbeError{Op: "fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ProbeError{Op: "status", Err: fmt.Errorf("GET /Sessions: status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, &ProbeError{Op: "read", Err: err}
	}
	if len(body) > maxResponseBytes {
		return nil, &ProbeError{Op: "read", Err: fmt.Errorf("response exceeds %d bytes", maxResponseBytes)}
	}

	var sessions []Session
	if err := json.Unmarshal(body, &sessions); err != nil {
		return nil, &ProbeError{Op: "decode", Err: err}
	}
	return sessions, nil
}

// Probe returns what username is currently watching. An empty username
// always yields [media.Idle] without contacting the server.
func (c *Client) Probe(ctx context.Context, username string) (media.Snapshot, error) {
	if username == "" {
		return media.Idle(), nil
	}
	sessions, err := c.Sessions(ctx)
	if err != nil {
		return media.Idle(), err
	}
	return Classify(sessions, username), nil
}
