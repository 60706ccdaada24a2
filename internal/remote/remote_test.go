package remote

import (
	"testing"
)

// ///////////////////////////////////////////////
// githubRemoteRe Tests
// ///////////////////////////////////////////////

func TestParseRemote(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantOwner string
		wantRepo  string
	}{
		{"HTTPS URL", "https://github.com/user/jellycord", "user", "jellycord"},
		{"HTTPS URL with .git", "https://github.com/user/jellycord.git\n", "user", "jellycord"},
		{"SSH URL", "git@github.com:user/jellycord.git", "user", "jellycord"},
		{"SSH URL without .git", "git@github.com:user/jellycord", "user", "jellycord"},
		{"org name", "https://github.com/my-org/my-project", "my-org", "my-project"},
		{"GitLab HTTPS", "https://gitlab.com/user/repo", "", ""},
		{"GitLab SSH", "git@gitlab.com:user/repo.git", "", ""},
		{"random string", "just some text", "", ""},
		{"empty string", "", "", ""},
		{"partial URL", "github.com", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, r := parseRemote(tt.input)
			if o != tt.wantOwner || r != tt.wantRepo {
				t.Errorf("parseRemote(%q) = (%q, %q), want (%q, %q)", tt.input, o, r, tt.wantOwner, tt.wantRepo)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Owner / Repo Tests
// ///////////////////////////////////////////////

// setOwnerRepo overrides the package-level owner and repo for testing.
// It first triggers ensureInit so the sync.Once is consumed (preventing
// git commands from running during test), then sets the desired values.
// Original values are restored via t.Cleanup.
func setOwnerRepo(t *testing.T, o, r string) {
	t.Helper()

	// Ensure initOnce is consumed so ensureInit is a no-op.
	ensureInit()

	origOwner, origRepo := owner, repo
	owner = o
	repo = r

	t.Cleanup(func() {
		owner = origOwner
		repo = origRepo
	})
}

func TestOwner(t *testing.T) {
	setOwnerRepo(t, "myowner", "myrepo")
	if got := Owner(); got != "myowner" {
		t.Errorf("Owner() = %q, want %q", got, "myowner")
	}
}

func TestRepo(t *testing.T) {
	setOwnerRepo(t, "myowner", "myrepo")
	if got := Repo(); got != "myrepo" {
		t.Errorf("Repo() = %q, want %q", got, "myrepo")
	}
}

func TestOwnerRepo_Empty(t *testing.T) {
	setOwnerRepo(t, "", "")
	if got := Owner(); got != "" {
		t.Errorf("Owner() = %q, want empty", got)
	}
	if got := Repo(); got != "" {
		t.Errorf("Repo() = %q, want empty", got)
	}
}

func TestLatestReleaseURL(t *testing.T) {
	tests := []struct {
		name  string
		owner string
		repo  string
		want  string
	}{
		{"configured", "testowner", "jellycord", "https://api.github.com/repos/testowner/jellycord/releases/latest"},
		{"not configured", "", "", ""},
		{"owner only", "testowner", "", ""},
		{"repo only", "", "jellycord", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setOwnerRepo(t, tt.owner, tt.repo)
			if got := LatestReleaseURL(); got != tt.want {
				t.Errorf("LatestReleaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
