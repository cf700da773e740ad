package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fairlens/fairlens/pkg/net"
	"github.com/google/go-github/v83/github"
	"github.com/mchmarny/reputer/pkg/score"
)

// FetchSummary describes one dataset file fetched from GitHub.
type FetchSummary struct {
	Owner      string  `json:"owner" yaml:"owner"`
	Repo       string  `json:"repo" yaml:"repo"`
	Path       string  `json:"path" yaml:"path"`
	Ref        string  `json:"ref,omitempty" yaml:"ref,omitempty"`
	File       string  `json:"file" yaml:"file"`
	Bytes      int64   `json:"bytes" yaml:"bytes"`
	Reputation float64 `json:"source_reputation" yaml:"sourceReputation"`
	Duration   string  `json:"duration" yaml:"duration"`
}

// FetchDataset downloads one file from a GitHub repository to dest and
// scores the publishing account's public profile as a provenance
// signal. Works unauthenticated for public repositories; a token raises
// the rate limit and reaches private ones.
func FetchDataset(ctx context.Context, token, owner, repo, path, ref, dest string) (*FetchSummary, error) {
	if owner == "" || repo == "" || path == "" || dest == "" {
		return nil, errors.New("owner, repo, path, and dest are required")
	}

	start := time.Now()

	client := github.NewClient(nil)
	if token != "" {
		client = github.NewClient(net.GetOAuthClient(ctx, token))
	}

	opts := &github.RepositoryContentGetOptions{Ref: ref}
	fc, _, resp, err := client.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return nil, fmt.Errorf("error getting %s/%s %s: %w", owner, repo, path, err)
	}
	checkRateLimit(resp)

	if fc == nil {
		return nil, fmt.Errorf("%s is a directory, not a file", path)
	}

	if err := saveContent(fc, dest); err != nil {
		return nil, err
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("error checking downloaded file %s: %w", dest, err)
	}

	sum := &FetchSummary{
		Owner:      owner,
		Repo:       repo,
		Path:       path,
		Ref:        ref,
		File:       dest,
		Bytes:      info.Size(),
		Reputation: sourceReputation(ctx, client, owner),
		Duration:   time.Since(start).String(),
	}

	slog.Info("dataset fetched", "repo", owner+"/"+repo, "path", path, "bytes", sum.Bytes)

	return sum, nil
}

// saveContent writes the file body to dest. The contents API inlines
// small files; larger ones only carry a download URL.
func saveContent(fc *github.RepositoryContent, dest string) error {
	content, err := fc.GetContent()
	if err == nil && content != "" {
		if err := os.WriteFile(dest, []byte(content), 0600); err != nil {
			return fmt.Errorf("error writing %s: %w", dest, err)
		}
		return nil
	}

	url := fc.GetDownloadURL()
	if url == "" {
		return fmt.Errorf("no content or download URL for %s", fc.GetPath())
	}
	if err := net.Download(url, dest); err != nil {
		return fmt.Errorf("error downloading %s: %w", url, err)
	}
	return nil
}

// sourceReputation scores the account publishing the dataset from its
// public profile signals. Best effort: a failed lookup logs and scores
// zero rather than failing the fetch.
func sourceReputation(ctx context.Context, client *github.Client, owner string) float64 {
	usr, resp, err := client.Users.Get(ctx, owner)
	if err != nil {
		slog.Debug("error getting publisher profile", "owner", owner, "error", err)
		return 0
	}
	checkRateLimit(resp)

	var s score.Signals
	if usr.CreatedAt != nil {
		s.AgeDays = int64(time.Since(usr.CreatedAt.Time).Hours() / 24)
	}
	s.Followers = int64(usr.GetFollowers())
	s.Following = int64(usr.GetFollowing())
	s.PublicRepos = int64(usr.GetPublicRepos())
	s.PrivateRepos = usr.GetOwnedPrivateRepos()
	s.StrongAuth = usr.GetTwoFactorAuthentication()
	s.Suspended = usr.SuspendedAt != nil

	return score.Compute(s)
}
