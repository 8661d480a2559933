package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
	"github.com/ColonelPanicX/comply-with-me/internal/transport"
)

const githubAPI = "https://api.github.com"

// GitHubDiscoverer lists documents published through a GitHub repo,
// either directory contents or the latest release's assets. Discovery
// hits the API; the download URLs it returns point at raw content and
// release storage, which are not rate limited.
type GitHubDiscoverer struct {
	Client transport.Client
	// Token raises the API rate limit from 60 to 5000 requests/hour.
	// Empty means unauthenticated, which is fine for a handful of calls.
	Token  string
	Logger *events.Logger
}

func (d *GitHubDiscoverer) Discover(ctx context.Context, src *sources.Source) ([]models.ManifestEntry, error) {
	if src.GitHub.Releases {
		return d.releaseAssets(ctx, src)
	}
	return d.contents(ctx, src)
}

type repoItem struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

func (d *GitHubDiscoverer) contents(ctx context.Context, src *sources.Source) ([]models.ManifestEntry, error) {
	var entries []models.ManifestEntry
	seen := make(map[string]bool)

	var lastErr error
	for _, contentPath := range src.GitHub.Paths {
		apiURL := fmt.Sprintf("%s/repos/%s/contents/%s",
			githubAPI, src.GitHub.Repo, strings.Trim(contentPath, "/"))

		var items []repoItem
		if err := d.apiGet(ctx, apiURL, &items); err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			// One unreadable directory should not sink the rest.
			lastErr = fmt.Errorf("list %s: %w", contentPath, err)
			d.Logger.WithError(err).WithFields(map[string]interface{}{
				"source": src.ID,
				"path":   contentPath,
			}).Warn("github contents listing failed")
			continue
		}

		for _, item := range items {
			if item.Type != "file" || item.DownloadURL == "" {
				continue
			}
			// Minified siblings duplicate the full catalogs.
			if strings.HasSuffix(item.Name, "-min.json") {
				continue
			}
			if seen[item.DownloadURL] {
				continue
			}
			seen[item.DownloadURL] = true

			class, note := classify(src, item.DownloadURL)
			entries = append(entries, models.ManifestEntry{
				ResourceURL:    item.DownloadURL,
				DisplayName:    item.Name,
				Classification: class,
				Note:           note,
			})
		}
	}

	if len(entries) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, errors.New("no files found in repository contents")
	}

	return entries, nil
}

func (d *GitHubDiscoverer) releaseAssets(ctx context.Context, src *sources.Source) ([]models.ManifestEntry, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/releases/latest", githubAPI, src.GitHub.Repo)

	var release struct {
		TagName string `json:"tag_name"`
		Assets  []struct {
			Name               string `json:"name"`
			BrowserDownloadURL string `json:"browser_download_url"`
		} `json:"assets"`
	}
	if err := d.apiGet(ctx, apiURL, &release); err != nil {
		return nil, err
	}
	if len(release.Assets) == 0 {
		return nil, fmt.Errorf("latest release %s has no assets", release.TagName)
	}

	d.Logger.WithFields(map[string]interface{}{
		"source":  src.ID,
		"release": release.TagName,
		"assets":  len(release.Assets),
	}).Debug("listed release assets")

	entries := make([]models.ManifestEntry, 0, len(release.Assets))
	for _, asset := range release.Assets {
		class, note := classify(src, asset.BrowserDownloadURL)
		entries = append(entries, models.ManifestEntry{
			ResourceURL:    asset.BrowserDownloadURL,
			DisplayName:    asset.Name,
			Classification: class,
			Note:           note,
		})
	}

	return entries, nil
}

func (d *GitHubDiscoverer) apiGet(ctx context.Context, apiURL string, out interface{}) error {
	hdr := http.Header{}
	hdr.Set("Accept", "application/vnd.github+json")
	if d.Token != "" {
		hdr.Set("Authorization", "Bearer "+d.Token)
	}

	resp, err := d.Client.Get(ctx, apiURL, hdr)
	if err != nil {
		var httpErr *models.HTTPError
		if errors.As(err, &httpErr) && httpErr.Blocked() {
			return fmt.Errorf("%w (set GITHUB_TOKEN to raise the API rate limit)", err)
		}
		return err
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode github response: %w", err)
	}
	return nil
}
