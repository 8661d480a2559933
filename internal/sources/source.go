package sources

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
)

// Kind selects the discovery strategy for a source.
type Kind string

const (
	// KindPage discovers links from one or more static listing pages.
	KindPage Kind = "page"

	// KindPaged discovers links from a page-numbered listing.
	KindPaged Kind = "paged"

	// KindProbe resolves a date-stamped archive by probing candidate
	// names over a rolling month window.
	KindProbe Kind = "probe"

	// KindGitHub lists documents from a GitHub repo (contents or
	// releases API).
	KindGitHub Kind = "github"

	// KindCurated emits a maintained list of known-good URLs.
	KindCurated Kind = "curated"

	// KindManual emits documents that automation cannot retrieve.
	KindManual Kind = "manual"
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Source describes one compliance-document publisher and how its
// documents are discovered and fetched.
type Source struct {
	ID     string `yaml:"id"`
	Label  string `yaml:"label"`
	Subdir string `yaml:"subdir,omitempty"` // content subdirectory, defaults to ID
	Kind   Kind   `yaml:"kind"`

	// Listing discovery
	Pages        []string `yaml:"pages,omitempty"`         // listing URLs (kind: page)
	PageTemplate string   `yaml:"page_template,omitempty"` // URL with {page} placeholder (kind: paged)
	LinkPattern  string   `yaml:"link_pattern,omitempty"`  // optional regexp filter on resolved hrefs
	Extensions   []string `yaml:"extensions,omitempty"`    // downloadable extensions, e.g. [pdf, xlsx]

	Referer         string `yaml:"referer,omitempty"`
	BrowserRequired bool   `yaml:"browser_required,omitempty"` // skip straight to rendered fetching
	Immutable       bool   `yaml:"immutable,omitempty"`        // published documents never change in place

	GitHub   *GitHubSpec   `yaml:"github,omitempty"`
	Probe    *ProbeSpec    `yaml:"probe,omitempty"`
	Fallback *FallbackSpec `yaml:"fallback,omitempty"`
	Manual   []ManualDoc   `yaml:"manual,omitempty"`

	pattern *regexp.Regexp
}

// GitHubSpec configures GitHub-hosted document discovery.
type GitHubSpec struct {
	Repo     string   `yaml:"repo"`               // owner/name
	Paths    []string `yaml:"paths,omitempty"`    // contents paths within the repo
	Releases bool     `yaml:"releases,omitempty"` // list latest-release assets instead of contents
}

// ProbeSpec configures dated-archive probing.
type ProbeSpec struct {
	BaseURL      string `yaml:"base_url"`
	NameTemplate string `yaml:"name_template"` // {month} and {year} placeholders
	Months       int    `yaml:"months,omitempty"`
}

// FallbackSpec is a curated list of known-good document URLs, used
// when live discovery is blocked or as the primary list for curated
// sources.
type FallbackSpec struct {
	VerifiedAt string       `yaml:"verified_at"` // YYYY-MM-DD, when the list was last checked
	Docs       []CuratedDoc `yaml:"docs"`
}

// CuratedDoc is one known-good document.
type CuratedDoc struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ManualDoc is a document that must be retrieved by a human.
type ManualDoc struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Guidance string `yaml:"guidance"`
}

// Validate checks the source definition and reports every problem at
// once rather than stopping at the first.
func (s *Source) Validate() error {
	var problems []string

	if s.ID == "" {
		problems = append(problems, "id is required")
	} else if !idPattern.MatchString(s.ID) {
		problems = append(problems, fmt.Sprintf("id %q must be a lowercase slug", s.ID))
	}

	if s.Label == "" {
		problems = append(problems, "label is required")
	}

	switch s.Kind {
	case KindPage:
		if len(s.Pages) == 0 {
			problems = append(problems, "page source needs at least one listing URL")
		}
		for _, p := range s.Pages {
			if _, err := url.ParseRequestURI(p); err != nil {
				problems = append(problems, fmt.Sprintf("invalid listing URL %q", p))
			}
		}
	case KindPaged:
		if s.PageTemplate == "" {
			problems = append(problems, "paged source needs page_template")
		} else if !strings.Contains(s.PageTemplate, "{page}") {
			problems = append(problems, "page_template must contain {page}")
		}
	case KindProbe:
		if s.Probe == nil {
			problems = append(problems, "probe source needs a probe block")
		} else {
			if s.Probe.BaseURL == "" {
				problems = append(problems, "probe base_url is required")
			}
			if s.Probe.NameTemplate == "" {
				problems = append(problems, "probe name_template is required")
			} else if !strings.Contains(s.Probe.NameTemplate, "{month}") &&
				!strings.Contains(s.Probe.NameTemplate, "{year}") {
				problems = append(problems, "probe name_template must contain {month} or {year}")
			}
			if s.Probe.Months < 0 {
				problems = append(problems, "probe months cannot be negative")
			}
		}
	case KindGitHub:
		if s.GitHub == nil {
			problems = append(problems, "github source needs a github block")
		} else {
			if !strings.Contains(s.GitHub.Repo, "/") {
				problems = append(problems, fmt.Sprintf("github repo %q must be owner/name", s.GitHub.Repo))
			}
			if !s.GitHub.Releases && len(s.GitHub.Paths) == 0 {
				problems = append(problems, "github source needs releases or at least one contents path")
			}
		}
	case KindCurated:
		if s.Fallback == nil || len(s.Fallback.Docs) == 0 {
			problems = append(problems, "curated source needs fallback docs")
		}
	case KindManual:
		if len(s.Manual) == 0 {
			problems = append(problems, "manual source needs at least one manual entry")
		}
	case "":
		problems = append(problems, "kind is required")
	default:
		problems = append(problems, fmt.Sprintf("unknown kind %q", s.Kind))
	}

	if s.LinkPattern != "" {
		if _, err := regexp.Compile(s.LinkPattern); err != nil {
			problems = append(problems, fmt.Sprintf("invalid link_pattern: %v", err))
		}
	}

	if s.Fallback != nil {
		if s.Fallback.VerifiedAt == "" {
			problems = append(problems, "fallback verified_at is required")
		} else if _, err := time.Parse("2006-01-02", s.Fallback.VerifiedAt); err != nil {
			problems = append(problems, fmt.Sprintf("fallback verified_at %q must be YYYY-MM-DD", s.Fallback.VerifiedAt))
		}
		for i, doc := range s.Fallback.Docs {
			if doc.Name == "" || doc.URL == "" {
				problems = append(problems, fmt.Sprintf("fallback doc %d needs name and url", i))
			}
		}
	}

	for i, doc := range s.Manual {
		if doc.Name == "" || doc.URL == "" {
			problems = append(problems, fmt.Sprintf("manual doc %d needs name and url", i))
		}
	}

	if len(problems) > 0 {
		id := s.ID
		if id == "" {
			id = "(unnamed)"
		}
		return fmt.Errorf("source %s: %s", id, strings.Join(problems, "; "))
	}

	return nil
}

// Pattern returns the compiled link filter, or nil when the source
// accepts any href. Compiled by the registry on registration.
func (s *Source) Pattern() *regexp.Regexp {
	return s.pattern
}

// MatchesExtensions reports whether the URL path carries one of the
// source's configured extensions. Sources without an extension list
// accept everything here and defer to the global document-extension
// classification.
func (s *Source) MatchesExtensions(rawURL string) bool {
	if len(s.Extensions) == 0 {
		return true
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(parsed.Path)), ".")
	for _, allowed := range s.Extensions {
		if ext == strings.ToLower(strings.TrimPrefix(allowed, ".")) {
			return true
		}
	}
	return false
}

// ContentDir returns the subdirectory of the content tree this source
// writes into.
func (s *Source) ContentDir() string {
	if s.Subdir != "" {
		return s.Subdir
	}
	return s.ID
}
