package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
)

const updateRepo = "blurkit/blurkit"

type releaseAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// knownOSes guards against picking another platform's binary when no asset
// matches the running one.
var knownOSes = []string{"darwin", "linux", "windows", "freebsd", "openbsd", "netbsd"}

// selectAssetFor picks the download for the running platform: first an asset
// naming both the OS and architecture, then one naming just the OS. Assets
// that name a different OS are never chosen; an asset with no OS token at all
// (a source tarball, a universal script) is the final fallback.
func selectAssetFor(assets []releaseAsset, goos, goarch string) string {
	for _, a := range assets {
		n := strings.ToLower(a.Name)
		if strings.Contains(n, goos) && strings.Contains(n, goarch) {
			return a.BrowserDownloadURL
		}
	}
	for _, a := range assets {
		if strings.Contains(strings.ToLower(a.Name), goos) {
			return a.BrowserDownloadURL
		}
	}
	for _, a := range assets {
		n := strings.ToLower(a.Name)
		foreign := false
		for _, other := range knownOSes {
			if other != goos && strings.Contains(n, other) {
				foreign = true
				break
			}
		}
		if !foreign {
			return a.BrowserDownloadURL
		}
	}
	return ""
}

// detectLatestRelease queries the GitHub Releases API and returns the
// highest published, non-prerelease semver release it can find, together
// with a downloadable asset URL. Returns (nil, false, nil) when no suitable
// release exists.
func detectLatestRelease(repo string) (*selfupdate.Release, bool, error) {
	apiURL := fmt.Sprintf("https://api.github.com/repos/%s/releases", repo)
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(apiURL)
	if err != nil {
		return nil, false, fmt.Errorf("github API request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("github API returned status %d: %s", resp.StatusCode, string(body))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed reading github response: %w", err)
	}

	var releases []struct {
		TagName    string         `json:"tag_name"`
		Name       string         `json:"name"`
		Draft      bool           `json:"draft"`
		Prerelease bool           `json:"prerelease"`
		Assets     []releaseAsset `json:"assets"`
	}
	if err := json.Unmarshal(body, &releases); err != nil {
		return nil, false, fmt.Errorf("failed to decode github releases: %w", err)
	}

	type candidate struct {
		ver      semver.Version
		assetURL string
	}
	semverRe := regexp.MustCompile(`v?\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?`)

	var candidates []candidate
	for _, r := range releases {
		if r.Draft || r.Prerelease {
			continue
		}
		match := semverRe.FindString(r.TagName)
		if match == "" {
			match = semverRe.FindString(r.Name)
			if match == "" {
				continue
			}
		}
		v, perr := semver.Parse(strings.TrimPrefix(match, "v"))
		if perr != nil {
			continue
		}
		candidates = append(candidates, candidate{
			ver:      v,
			assetURL: selectAssetFor(r.Assets, runtime.GOOS, runtime.GOARCH),
		})
	}
	if len(candidates) == 0 {
		return nil, false, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ver.GT(candidates[j].ver)
	})
	best := candidates[0]
	return &selfupdate.Release{Version: best.ver, AssetURL: best.assetURL}, true, nil
}

// CheckForUpdates compares the running version against the latest GitHub
// release and, after confirmation, replaces the current executable.
func CheckForUpdates() error {
	fmt.Printf("Current version: %s\n", Version)
	latest, found, err := detectLatestRelease(updateRepo)
	if err != nil {
		return fmt.Errorf("update check failed: %w", err)
	}
	if !found || latest == nil {
		fmt.Printf("No releases found for %s.\n", updateRepo)
		return nil
	}
	fmt.Printf("Latest version: %s\n", latest.Version)

	currentVer, perr := semver.Parse(strings.TrimPrefix(Version, "v"))
	if perr != nil {
		fmt.Printf("warning: could not parse current version %q: %v\n", Version, perr)
	}
	if latest.Version.Equals(currentVer) {
		fmt.Printf("You are already running the latest version: %s.\n", currentVer)
		return nil
	}
	if latest.AssetURL == "" {
		fmt.Printf("A new version (%s) is available but there is no downloadable asset.\n", latest.Version)
		fmt.Println("Please visit the project releases page to download it.")
		return nil
	}

	answer, perr := PromptLine(fmt.Sprintf("A new version (%s) is available. Update now? (y/N): ", latest.Version))
	if perr != nil {
		return fmt.Errorf("failed reading input: %w", perr)
	}
	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer != "y" && answer != "yes" {
		fmt.Println("Update cancelled.")
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("could not locate executable: %w", err)
	}
	if err := selfupdate.UpdateTo(latest.AssetURL, exe); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	fmt.Printf("Updated to version %s. Restart to use the new binary.\n", latest.Version)
	return nil
}
