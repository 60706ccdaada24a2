// Package update checks GitHub for a newer jellycord release.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"tools.zach/dev/jellycord/internal/remote"
)

// Release is the subset of the GitHub release object the check reads.
type Release struct {
	Tag string `json:"tag_name"`
	URL string `json:"html_url"`
}

// Version returns the tag without its "v" prefix.
func (r Release) Version() string {
	return strings.TrimPrefix(r.Tag, "v")
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// Check looks up the latest release and logs when it is newer than current.
// Failures are logged at debug level and otherwise ignored.
func Check(ctx context.Context, current string) {
	url := remote.LatestReleaseURL()
	if url == "" {
		slog.Debug("skipping version check: no remote repository configured")
		return
	}
	rel, newer, err := check(ctx, url, current)
	if err != nil {
		slog.Debug("version check failed", "error", err)
		return
	}
	if newer {
		slog.Info("new version available", "current", current, "latest", rel.Version(), "url", rel.URL)
	}
}

// ///////////////////////////////////////////////
// Internal helpers
// ///////////////////////////////////////////////

// check fetches the release at url and reports whether it is newer than current.
func check(ctx context.Context, url, current string) (Release, bool, error) {
	rel, err := fetchLatest(ctx, url)
	if err != nil {
		return Release{}, false, err
	}
	if rel.Tag == "" {
		return rel, false, nil
	}
	return rel, semverLess(current, rel.Version()), nil
}

// fetchLatest downloads and decodes the release object at url.
func fetchLatest(ctx context.Context, url string) (Release, error) {
	hc := retryablehttp.NewClient()
	hc.RetryMax = 1
	hc.RetryWaitMin = 500 * time.Millisecond
	hc.RetryWaitMax = time.Second
	hc.HTTPClient.Timeout = 5 * time.Second
	hc.Logger = nil

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Release{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := hc.Do(req)
	if err != nil {
		return Release{}, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Release{}, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Release{}, fmt.Errorf("reading response: %w", err)
	}

	var rel Release
	if err := json.Unmarshal(body, &rel); err != nil {
		return Release{}, fmt.Errorf("parsing release: %w", err)
	}
	return rel, nil
}

// semverLess returns true if a < b using simple numeric comparison.
// Handles versions like "0.1.0", "1.2.3". Non-semver strings are not compared.
// Per semver, a pre-release version is less than the same version without one
// (e.g., "0.1.0-dev" < "0.1.0").
func semverLess(a, b string) bool {
	pa := parseSemver(a)
	pb := parseSemver(b)
	if pa == nil || pb == nil {
		return false
	}
	for i := range 3 {
		if pa[i] < pb[i] {
			return true
		}
		if pa[i] > pb[i] {
			return false
		}
	}
	// Numeric parts are equal; a pre-release version is less than a release.
	aPre := hasPreRelease(a)
	bPre := hasPreRelease(b)
	if aPre && !bPre {
		return true
	}
	return false
}

// hasPreRelease reports whether a version string contains a pre-release suffix
// (e.g., "0.1.0-dev" or "v1.0.0-beta+build").
func hasPreRelease(s string) bool {
	s = strings.TrimPrefix(s, "v")
	return strings.ContainsAny(s, "-")
}

// parseSemver splits a version string like "v1.2.3" or "0.1.0-dev" into a
// three-element int slice [major, minor, patch]. Pre-release suffixes after
// "-" or "+" are stripped. Returns nil if the string is not valid semver.
func parseSemver(s string) []int {
	s = strings.TrimPrefix(s, "v")
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 {
		return nil
	}
	result := make([]int, 3)
	for i, p := range parts {
		// Strip pre-release suffixes (e.g., "0-dev+abc")
		if idx := strings.IndexAny(p, "-+"); idx >= 0 {
			p = p[:idx]
		}
		n := 0
		for _, c := range p {
			if c < '0' || c > '9' {
				return nil
			}
			n = n*10 + int(c-'0')
		}
		result[i] = n
	}
	return result
}
