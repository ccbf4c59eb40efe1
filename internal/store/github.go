package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/serroba/chatid-bot/internal/quota"
)

// ErrInvalidRepo is returned when the repository is not in owner/name form.
var ErrInvalidRepo = errors.New("github repo must be in owner/name form")

// GitHubConfig configures the GitHub contents API store.
type GitHubConfig struct {
	Token  string
	Repo   string // owner/name
	Path   string
	Branch string // empty means the default branch
	// BaseURL overrides the API endpoint, mostly for tests.
	BaseURL string
	Timeout time.Duration
}

// GitHubStore keeps the quota document as a JSON file in a GitHub repository.
// Writes go through the contents API, which requires the current file sha to
// overwrite an existing file.
type GitHubStore struct {
	client *github.Client
	owner  string
	repo   string
	path   string
	branch string
	now    func() time.Time
}

// NewGitHubStore creates a new GitHub-backed quota store.
func NewGitHubStore(cfg GitHubConfig) (*GitHubStore, error) {
	owner, repo, ok := strings.Cut(cfg.Repo, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRepo, cfg.Repo)
	}

	client := github.NewClient(&http.Client{Timeout: cfg.Timeout}).WithAuthToken(cfg.Token)

	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}

		client.BaseURL = base
	}

	path := cfg.Path
	if path == "" {
		path = "limits.json"
	}

	return &GitHubStore{
		client: client,
		owner:  owner,
		repo:   repo,
		path:   path,
		branch: cfg.Branch,
		now:    time.Now,
	}, nil
}

// Load fetches and decodes the document. A missing file yields an empty
// document.
func (g *GitHubStore) Load(ctx context.Context) (quota.Document, error) {
	file, found, err := g.getFile(ctx)
	if err != nil {
		return nil, err
	}

	if !found {
		return quota.Document{}, nil
	}

	raw, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode github content: %w", err)
	}

	doc := quota.Document{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode quota document: %w", err)
	}

	return doc, nil
}

// Save overwrites the remote file with doc. The current sha is fetched
// first; when it cannot be obtained the file is created instead, which only
// succeeds if it does not exist yet.
// There is no retry when the sha has moved on in the meantime.
func (g *GitHubStore) Save(ctx context.Context, doc quota.Document) error {
	payload, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encode quota document: %w", err)
	}

	file, found, getErr := g.getFile(ctx)

	opts := &github.RepositoryContentFileOptions{
		Message: github.String("Sync Limits: " + g.now().Format(quota.DateLayout)),
		Content: payload,
	}

	if g.branch != "" {
		opts.Branch = github.String(g.branch)
	}

	if getErr == nil && found && file.GetSHA() != "" {
		opts.SHA = github.String(file.GetSHA())

		if _, _, err := g.client.Repositories.UpdateFile(ctx, g.owner, g.repo, g.path, opts); err != nil {
			return fmt.Errorf("update github file: %w", err)
		}

		return nil
	}

	if _, _, err := g.client.Repositories.CreateFile(ctx, g.owner, g.repo, g.path, opts); err != nil {
		return fmt.Errorf("create github file: %w", errors.Join(err, getErr))
	}

	return nil
}

// Ping checks that the repository is reachable with the configured token.
func (g *GitHubStore) Ping(ctx context.Context) error {
	_, _, err := g.client.Repositories.Get(ctx, g.owner, g.repo)

	return err
}

func (g *GitHubStore) getFile(ctx context.Context) (*github.RepositoryContent, bool, error) {
	var opts *github.RepositoryContentGetOptions
	if g.branch != "" {
		opts = &github.RepositoryContentGetOptions{Ref: g.branch}
	}

	file, _, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, g.path, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("get github file: %w", err)
	}

	if file == nil {
		return nil, false, fmt.Errorf("get github file: %s is a directory", g.path)
	}

	return file, true, nil
}
