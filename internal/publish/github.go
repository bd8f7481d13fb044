// Package publish uploads rendered state pages to a GitHub repository
// through the contents API.
package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/signlead/internal/metrics"
	"github.com/FranksOps/signlead/pkg/httpclient"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.github.com"
	DefaultBranch  = "main"
)

// Publisher stores one file at path.
type Publisher interface {
	Publish(ctx context.Context, path string, content []byte, message string) error
}

// Error is a non-2xx answer from the contents API.
type Error struct {
	Op         string
	Path       string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("publish: %s %s: http %d", e.Op, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("publish: %s %s: http %d: %s", e.Op, e.Path, e.StatusCode, e.Message)
}

// GitHubConfig configures a GitHub publisher. Repo ("owner/name") and Token
// are required.
type GitHubConfig struct {
	Repo    string
	Branch  string
	Token   string
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond paces API calls; zero means one request per second.
	RequestsPerSecond float64
	Client            *httpclient.Client
	Logger            *slog.Logger
}

// GitHub creates or updates files with GET-sha-then-PUT.
type GitHub struct {
	repo    string
	branch  string
	token   string
	baseURL string
	client  *httpclient.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ Publisher = (*GitHub)(nil)

// NewGitHub validates cfg and builds a publisher.
func NewGitHub(cfg GitHubConfig) (*GitHub, error) {
	if owner, name, ok := strings.Cut(cfg.Repo, "/"); !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("publish: repo %q must be owner/name", cfg.Repo)
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("publish: token is required")
	}
	if cfg.Branch == "" {
		cfg.Branch = DefaultBranch
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Client == nil {
		if cfg.Timeout == 0 {
			cfg.Timeout = 30 * time.Second
		}
		c, err := httpclient.New(httpclient.Config{
			Timeout:      cfg.Timeout,
			MaxRedirects: 5,
			Headers: map[string]string{
				"Accept":     "application/vnd.github.v3+json",
				"User-Agent": "signlead",
			},
		})
		if err != nil {
			return nil, fmt.Errorf("publish: %w", err)
		}
		cfg.Client = c
	}

	return &GitHub{
		repo:    cfg.Repo,
		branch:  cfg.Branch,
		token:   cfg.Token,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  cfg.Client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  cfg.Logger,
	}, nil
}

// Publish writes content to path on the configured branch, creating the
// file or replacing its current version.
func (g *GitHub) Publish(ctx context.Context, path string, content []byte, message string) error {
	err := g.publish(ctx, path, content, message)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.PublishTotal.WithLabelValues(outcome).Inc()
	return err
}

func (g *GitHub) publish(ctx context.Context, path string, content []byte, message string) error {
	sha, err := g.currentSHA(ctx, path)
	if err != nil {
		return err
	}

	body := struct {
		Message string `json:"message"`
		Content string `json:"content"`
		Branch  string `json:"branch"`
		SHA     string `json:"sha,omitempty"`
	}{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  g.branch,
		SHA:     sha,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("publish: marshal: %w", err)
	}

	resp, err := g.do(ctx, http.MethodPut, g.contentsURL(path, false), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("publish: put %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return apiError("put", path, resp)
	}
	g.logger.Info("published page", "repo", g.repo, "path", path, "update", sha != "")
	return nil
}

// currentSHA returns the blob sha of path, or "" when it does not exist yet.
func (g *GitHub) currentSHA(ctx context.Context, path string) (string, error) {
	resp, err := g.do(ctx, http.MethodGet, g.contentsURL(path, true), nil)
	if err != nil {
		return "", fmt.Errorf("publish: get %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", nil
	default:
		return "", apiError("get", path, resp)
	}

	var file struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&file); err != nil {
		return "", fmt.Errorf("publish: decode %s: %w", path, err)
	}
	return file.SHA, nil
}

func (g *GitHub) do(ctx context.Context, method, target string, body io.Reader) (*http.Response, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+g.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return g.client.Do(ctx, req)
}

func (g *GitHub) contentsURL(path string, withRef bool) string {
	var escaped []string
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		escaped = append(escaped, url.PathEscape(seg))
	}
	u := g.baseURL + "/repos/" + g.repo + "/contents/" + strings.Join(escaped, "/")
	if withRef {
		u += "?ref=" + url.QueryEscape(g.branch)
	}
	return u
}

func apiError(op, path string, resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &body)
	return &Error{Op: op, Path: path, StatusCode: resp.StatusCode, Message: body.Message}
}
