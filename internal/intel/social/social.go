// Package social implements the public profile intelligence module: GitHub
// presence and a handful of social network handles.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/raysh454/reconai/internal/config"
	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/module"
	"github.com/raysh454/reconai/internal/utils"
	"github.com/raysh454/reconai/internal/webclient"
)

const Name = "social"

var errNotFound = errors.New("not found")

type Report struct {
	Organization string             `json:"organization"`
	GitHub       *GitHub            `json:"github,omitempty"`
	Profiles     map[string]Profile `json:"profiles"`
	Errors       map[string]string  `json:"errors,omitempty"`
}

// GitHub describes the organisation account, or the user account of the
// same name when no organisation exists.
type GitHub struct {
	Kind         string       `json:"kind"`
	Login        string       `json:"login"`
	Name         string       `json:"name,omitempty"`
	Description  string       `json:"description,omitempty"`
	PublicRepos  int          `json:"public_repos"`
	Followers    int          `json:"followers"`
	CreatedAt    string       `json:"created_at,omitempty"`
	URL          string       `json:"url"`
	Repositories []Repository `json:"repositories,omitempty"`
}

type Repository struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
	Stars       int    `json:"stars"`
	Forks       int    `json:"forks"`
	URL         string `json:"url"`
}

type Profile struct {
	URL    string `json:"url"`
	Found  bool   `json:"found"`
	Status int    `json:"status,omitempty"`
}

// githubAccount is the subset of the orgs and users API responses we read.
type githubAccount struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Bio         string `json:"bio"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	CreatedAt   string `json:"created_at"`
	HTMLURL     string `json:"html_url"`
}

type githubRepo struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Language        string `json:"language"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
	HTMLURL         string `json:"html_url"`
}

type Module struct {
	cfg    config.SocialModuleConfig
	wc     webclient.WebClient
	logger logging.Logger
}

func New(cfg config.SocialModuleConfig, wc webclient.WebClient, logger logging.Logger) *Module {
	if cfg.GitHubAPI == "" {
		cfg.GitHubAPI = "https://api.github.com"
	}
	cfg.GitHubAPI = strings.TrimRight(cfg.GitHubAPI, "/")
	if cfg.RepoLimit <= 0 {
		cfg.RepoLimit = 10
	}
	return &Module{cfg: cfg, wc: wc, logger: logger.With(logging.Component("intel.social"))}
}

func (m *Module) Name() string { return Name }

func (m *Module) Gather(ctx context.Context, target string, _ model.TargetType, _ module.Options) (any, error) {
	host, err := utils.NormalizeDomain(target)
	if err != nil {
		return nil, err
	}
	org := utils.OrgName(host)
	r := &Report{Organization: org, Profiles: map[string]Profile{}}
	errs := map[string]string{}

	gh, err := m.github(ctx, org)
	switch {
	case errors.Is(err, errNotFound):
	case err != nil:
		errs["github"] = err.Error()
	default:
		r.GitHub = gh
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for name, base := range m.cfg.ProfileBases {
		g.Go(func() error {
			p, err := m.profile(gctx, base, org)
			mu.Lock()
			defer mu.Unlock()
			r.Profiles[name] = p
			if err != nil {
				errs["profile:"+name] = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		r.Errors = errs
	}
	return r, nil
}

// github tries the organisation endpoint first and falls back to a user.
func (m *Module) github(ctx context.Context, org string) (*GitHub, error) {
	for _, kind := range []string{"orgs", "users"} {
		var acct githubAccount
		err := m.getJSON(ctx, fmt.Sprintf("%s/%s/%s", m.cfg.GitHubAPI, kind, url.PathEscape(org)), &acct)
		if errors.Is(err, errNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		gh := &GitHub{
			Kind:        strings.TrimSuffix(kind, "s"),
			Login:       acct.Login,
			Name:        acct.Name,
			Description: acct.Description,
			PublicRepos: acct.PublicRepos,
			Followers:   acct.Followers,
			CreatedAt:   acct.CreatedAt,
			URL:         acct.HTMLURL,
		}
		if kind == "orgs" {
			gh.Kind = "organization"
		}
		if gh.Description == "" {
			gh.Description = acct.Bio
		}
		repos, err := m.repositories(ctx, kind, org)
		if err != nil {
			m.logger.Debug("github repositories unavailable",
				logging.Field{Key: "account", Value: org}, logging.Err(err))
		}
		gh.Repositories = repos
		return gh, nil
	}
	return nil, errNotFound
}

// repositories returns the account's most starred public repositories.
func (m *Module) repositories(ctx context.Context, kind, org string) ([]Repository, error) {
	var raw []githubRepo
	u := fmt.Sprintf("%s/%s/%s/repos?per_page=100&type=public", m.cfg.GitHubAPI, kind, url.PathEscape(org))
	if err := m.getJSON(ctx, u, &raw); err != nil {
		return nil, err
	}
	sort.SliceStable(raw, func(i, j int) bool { return raw[i].StargazersCount > raw[j].StargazersCount })
	if len(raw) > m.cfg.RepoLimit {
		raw = raw[:m.cfg.RepoLimit]
	}
	out := make([]Repository, 0, len(raw))
	for _, r := range raw {
		out = append(out, Repository{
			Name:        r.Name,
			Description: r.Description,
			Language:    r.Language,
			Stars:       r.StargazersCount,
			Forks:       r.ForksCount,
			URL:         r.HTMLURL,
		})
	}
	return out, nil
}

func (m *Module) getJSON(ctx context.Context, u string, v any) error {
	h := http.Header{"Accept": {"application/vnd.github+json"}}
	if m.cfg.GitHubToken != "" {
		h.Set("Authorization", "Bearer "+m.cfg.GitHubToken)
	}
	resp, err := m.wc.Do(ctx, &webclient.Request{Method: http.MethodGet, URL: u, Headers: h})
	if err != nil {
		return err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case !resp.OK():
		return fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("GET %s: %w", u, err)
	}
	return nil
}

func (m *Module) profile(ctx context.Context, base, handle string) (Profile, error) {
	p := Profile{URL: base + url.PathEscape(handle)}
	resp, err := m.wc.Get(ctx, p.URL)
	if err != nil {
		return p, err
	}
	p.Status = resp.StatusCode
	p.Found = resp.StatusCode == http.StatusOK
	return p, nil
}
