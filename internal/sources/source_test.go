package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validPageSource() *Source {
	return &Source{
		ID:    "test-src",
		Label: "Test Source",
		Kind:  KindPage,
		Pages: []string{"https://example.gov/documents/"},
	}
}

func TestSourceValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Source)
		wantErr string
	}{
		{
			name:   "valid page source",
			mutate: func(s *Source) {},
		},
		{
			name:    "missing id",
			mutate:  func(s *Source) { s.ID = "" },
			wantErr: "id is required",
		},
		{
			name:    "uppercase id",
			mutate:  func(s *Source) { s.ID = "Test-Src" },
			wantErr: "lowercase slug",
		},
		{
			name:    "missing label",
			mutate:  func(s *Source) { s.Label = "" },
			wantErr: "label is required",
		},
		{
			name:    "page without listing",
			mutate:  func(s *Source) { s.Pages = nil },
			wantErr: "at least one listing URL",
		},
		{
			name:    "unknown kind",
			mutate:  func(s *Source) { s.Kind = "rss" },
			wantErr: `unknown kind "rss"`,
		},
		{
			name: "paged without placeholder",
			mutate: func(s *Source) {
				s.Kind = KindPaged
				s.Pages = nil
				s.PageTemplate = "https://example.gov/pubs?p=1"
			},
			wantErr: "must contain {page}",
		},
		{
			name: "probe without template",
			mutate: func(s *Source) {
				s.Kind = KindProbe
				s.Pages = nil
				s.Probe = &ProbeSpec{BaseURL: "https://example.gov/zips/"}
			},
			wantErr: "name_template is required",
		},
		{
			name: "probe template without date placeholder",
			mutate: func(s *Source) {
				s.Kind = KindProbe
				s.Pages = nil
				s.Probe = &ProbeSpec{
					BaseURL:      "https://example.gov/zips/",
					NameTemplate: "library.zip",
				}
			},
			wantErr: "must contain {month} or {year}",
		},
		{
			name: "github repo without owner",
			mutate: func(s *Source) {
				s.Kind = KindGitHub
				s.Pages = nil
				s.GitHub = &GitHubSpec{Repo: "oscal-content"}
			},
			wantErr: "must be owner/name",
		},
		{
			name: "curated without docs",
			mutate: func(s *Source) {
				s.Kind = KindCurated
				s.Pages = nil
			},
			wantErr: "needs fallback docs",
		},
		{
			name: "manual without entries",
			mutate: func(s *Source) {
				s.Kind = KindManual
				s.Pages = nil
			},
			wantErr: "at least one manual entry",
		},
		{
			name:    "bad link pattern",
			mutate:  func(s *Source) { s.LinkPattern = "([unclosed" },
			wantErr: "invalid link_pattern",
		},
		{
			name: "bad fallback date",
			mutate: func(s *Source) {
				s.Fallback = &FallbackSpec{
					VerifiedAt: "Feb 26 2026",
					Docs:       []CuratedDoc{{Name: "Doc", URL: "https://example.gov/d.pdf"}},
				}
			},
			wantErr: "must be YYYY-MM-DD",
		},
		{
			name: "fallback doc missing url",
			mutate: func(s *Source) {
				s.Fallback = &FallbackSpec{
					VerifiedAt: "2026-02-26",
					Docs:       []CuratedDoc{{Name: "Doc"}},
				}
			},
			wantErr: "needs name and url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := validPageSource()
			tt.mutate(src)

			err := src.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	src := &Source{Kind: "rss", LinkPattern: "([bad"}

	err := src.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "id is required")
	assert.Contains(t, err.Error(), "label is required")
	assert.Contains(t, err.Error(), "unknown kind")
	assert.Contains(t, err.Error(), "invalid link_pattern")
}

func TestMatchesExtensions(t *testing.T) {
	src := &Source{Extensions: []string{"pdf", ".XLSX"}}

	assert.True(t, src.MatchesExtensions("https://example.gov/docs/baseline.pdf"))
	assert.True(t, src.MatchesExtensions("https://example.gov/docs/matrix.xlsx?rev=5"))
	assert.False(t, src.MatchesExtensions("https://example.gov/docs/page.html"))
	assert.False(t, src.MatchesExtensions("https://example.gov/docs/"))

	// No extension list accepts everything at this layer
	open := &Source{}
	assert.True(t, open.MatchesExtensions("https://example.gov/docs/page.html"))
}

func TestContentDir(t *testing.T) {
	src := &Source{ID: "disa-stig"}
	assert.Equal(t, "disa-stig", src.ContentDir())

	src.Subdir = "stigs"
	assert.Equal(t, "stigs", src.ContentDir())
}
