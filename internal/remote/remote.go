// Package remote locates the project's GitHub repository for release lookups.
//
// Owner and repo are determined lazily on first access. Values set at build
// time via ldflags take precedence; otherwise the package derives them from
// the local git remote origin.
package remote

import (
	"context"
	"log/slog"
	"os/exec"
	"regexp"
	"sync"
	"time"
)

// Set at build time via:
//
//	-X tools.zach/dev/jellycord/internal/remote.ldOwner=...
//	-X tools.zach/dev/jellycord/internal/remote.ldRepo=...
var (
	ldOwner string
	ldRepo  string
)

var (
	initOnce sync.Once
	owner    string
	repo     string
)

// githubRemoteRe extracts owner and repo from GitHub remote URLs.
// Matches both HTTPS (github.com/) and SSH (github.com:) formats.
var githubRemoteRe = regexp.MustCompile(`github\.com[:/]([^/]+)/([^/.]+)`)

// ensureInit resolves owner and repo once, preferring ldflags over git.
func ensureInit() {
	initOnce.Do(func() {
		if ldOwner != "" && ldRepo != "" {
			owner = ldOwner
			repo = ldRepo
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		out, err := exec.CommandContext(ctx, "git", "remote", "get-url", "origin").Output()
		if err != nil {
			slog.Debug("remote: ldflags not set and git remote unavailable", "error", err)
			return
		}
		owner, repo = parseRemote(string(out))
	})
}

// parseRemote returns the owner and repo named by a GitHub remote URL, or two
// empty strings for anything else.
func parseRemote(u string) (string, string) {
	m := githubRemoteRe.FindStringSubmatch(u)
	if len(m) != 3 {
		return "", ""
	}
	return m[1], m[2]
}

// Owner returns the GitHub repository owner.
func Owner() string {
	ensureInit()
	return owner
}

// Repo returns the GitHub repository name.
func Repo() string {
	ensureInit()
	return repo
}

// LatestReleaseURL returns the GitHub API endpoint for the newest release, or
// an empty string if the repository is unknown.
func LatestReleaseURL() string {
	ensureInit()
	if owner == "" || repo == "" {
		return ""
	}
	return "https://api.github.com/repos/" + owner + "/" + repo + "/releases/latest"
}
