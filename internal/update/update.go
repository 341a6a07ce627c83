package update

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	repo        = "letsur-dev/claude-peak"
	httpTimeout = 15 * time.Second
)

// Result reports whether a newer release exists on GitHub.
type Result struct {
	LatestVersion   string
	UpdateAvailable bool
}

type ghRelease struct {
	TagName string `json:"tag_name"`
}

// Checker queries the GitHub releases API. The API URL is a field so
// tests can point it at a local server.
type Checker struct {
	http   *http.Client
	apiURL string
}

func NewChecker() *Checker {
	return &Checker{
		http:   &http.Client{Timeout: httpTimeout},
		apiURL: "https://api.github.com/repos/" + repo + "/releases/latest",
	}
}

// Check fetches the latest release tag and compares it numerically
// against currentVersion.
func (c *Checker) Check(ctx context.Context, currentVersion string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("check update: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("check update: GitHub API returned %d", resp.StatusCode)
	}

	var rel ghRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return Result{}, fmt.Errorf("check update: %w", err)
	}

	latest := strings.TrimPrefix(rel.TagName, "v")
	return Result{
		LatestVersion:   latest,
		UpdateAvailable: isNewer(latest, strings.TrimPrefix(currentVersion, "v")),
	}, nil
}

// isNewer compares dotted numeric versions component-wise; missing
// components count as zero, non-numeric components as zero too.
func isNewer(remote, local string) bool {
	r := strings.Split(remote, ".")
	l := strings.Split(local, ".")
	n := len(r)
	if len(l) > n {
		n = len(l)
	}
	for i := 0; i < n; i++ {
		rv, lv := 0, 0
		if i < len(r) {
			rv, _ = strconv.Atoi(r[i])
		}
		if i < len(l) {
			lv, _ = strconv.Atoi(l[i])
		}
		if rv > lv {
			return true
		}
		if rv < lv {
			return false
		}
	}
	return false
}
