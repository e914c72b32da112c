// Package github finds the portfolio owner's repositories that match a
// topic and summarises their READMEs.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v66/github"

	"github.com/kalambet/folio/internal/config"
)

const (
	DefaultLimit    = 10
	maxReadme       = 500
	noDescription   = "No description"
	readmeMissing   = "README not available for this repository"
	reposPerRequest = 100
)

// Repository is one search hit.
type Repository struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Topics      []string `json:"topics"`
	Language    string   `json:"language,omitempty"`
	Stars       int      `json:"stars"`
	Readme      string   `json:"readme"`
}

// Searcher searches one owner's public repositories.
type Searcher struct {
	client *gh.Client
	owner  string
	logger *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithBaseURL points the client at another API root, such as a GitHub
// Enterprise server or a test server.
func WithBaseURL(raw string) Option {
	return func(s *Searcher) error {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parsing github base url: %w", err)
		}
		s.client.BaseURL = u
		return nil
	}
}

// New creates a Searcher for owner authenticated with token. Both are
// required.
func New(owner, token string, opts ...Option) (*Searcher, error) {
	if token == "" {
		return nil, config.Missing("github.token")
	}
	if owner == "" {
		return nil, config.Missing("github.owner")
	}
	s := &Searcher{
		client: gh.NewClient(nil).WithAuthToken(token),
		owner:  owner,
		logger: slog.Default(),
	}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Owner returns the account whose repositories are searched.
func (s *Searcher) Owner() string { return s.owner }

// Search returns up to limit repositories, most recently updated first,
// whose name, description or topics contain topic case-insensitively.
func (s *Searcher) Search(ctx context.Context, topic string, limit int) ([]Repository, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	needle := strings.ToLower(strings.TrimSpace(topic))

	opts := &gh.RepositoryListByUserOptions{
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: reposPerRequest},
	}

	var out []Repository
	for {
		repos, resp, err := s.client.Repositories.ListByUser(ctx, s.owner, opts)
		if err != nil {
			return nil, fmt.Errorf("listing repositories of %s: %w", s.owner, err)
		}
		for _, r := range repos {
			if !matches(r, needle) {
				continue
			}
			out = append(out, s.describe(ctx, r))
			if len(out) >= limit {
				return out, nil
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	if out == nil {
		out = []Repository{}
	}
	return out, nil
}

func matches(r *gh.Repository, needle string) bool {
	if strings.Contains(strings.ToLower(r.GetName()), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(r.GetDescription()), needle) {
		return true
	}
	for _, t := range r.Topics {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

func (s *Searcher) describe(ctx context.Context, r *gh.Repository) Repository {
	repo := Repository{
		Name:        r.GetName(),
		Description: r.GetDescription(),
		URL:         r.GetHTMLURL(),
		Topics:      append([]string{}, r.Topics...),
		Language:    r.GetLanguage(),
		Stars:       r.GetStargazersCount(),
		Readme:      readmeMissing,
	}
	if repo.Description == "" {
		repo.Description = noDescription
	}

	text, err := s.readme(ctx, r.GetName())
	if err != nil {
		var ghErr *gh.ErrorResponse
		if !errors.As(err, &ghErr) || ghErr.Response == nil || ghErr.Response.StatusCode != http.StatusNotFound {
			s.logger.Warn("fetching readme", "repo", repo.Name, "error", err)
		}
		return repo
	}
	repo.Readme = truncate(StripMarkup(text), maxReadme)
	return repo
}

func (s *Searcher) readme(ctx context.Context, name string) (string, error) {
	content, _, err := s.client.Repositories.GetReadme(ctx, s.owner, name, nil)
	if err != nil {
		return "", err
	}
	return content.GetContent()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// FormatResults renders hits as the agent-facing text block.
func FormatResults(topic string, repos []Repository) string {
	if len(repos) == 0 {
		return fmt.Sprintf("No repositories found matching '%s'.", topic)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d repository(ies) matching '%s':\n\n", len(repos), topic)
	for _, r := range repos {
		fmt.Fprintf(&b, "%s\nDescription: %s\nURL: %s\nTopics: %s\nREADME: %s\n\n",
			r.Name, r.Description, r.URL, strings.Join(r.Topics, ", "), r.Readme)
	}
	return b.String()
}
