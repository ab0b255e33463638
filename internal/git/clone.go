package git

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Service manages repository checkouts under a base directory.
type Service struct {
	basePath string
	logger   *slog.Logger
}

func NewService(basePath string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{basePath: basePath, logger: logger}
}

// Clone makes a shallow checkout of a repository under the base path and
// returns its directory. An existing checkout is refreshed with a pull
// instead.
func (s *Service) Clone(ctx context.Context, url, branch string) (string, error) {
	repoName := ExtractRepoName(url)
	repoPath := s.RepoPath(repoName)

	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err == nil {
		s.logger.Info("checkout exists, pulling", "repo", repoName)
		return repoPath, s.Pull(ctx, repoPath)
	}

	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return "", fmt.Errorf("failed to create repos directory: %w", err)
	}

	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, repoPath)

	s.logger.Info("cloning repository", "url", url, "branch", branch)
	if out, err := runGit(ctx, "", args...); err != nil {
		return "", fmt.Errorf("git clone failed: %w: %s", err, out)
	}

	return repoPath, nil
}

// Pull fast-forwards an existing checkout.
func (s *Service) Pull(ctx context.Context, repoPath string) error {
	if out, err := runGit(ctx, repoPath, "pull", "--ff-only"); err != nil {
		return fmt.Errorf("git pull failed: %w: %s", err, out)
	}
	return nil
}

// CurrentCommit returns the checkout's HEAD hash.
func (s *Service) CurrentCommit(ctx context.Context, repoPath string) (string, error) {
	out, err := runGit(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get commit hash: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ListFiles returns the tracked files of a checkout, relative to its root.
func (s *Service) ListFiles(ctx context.Context, repoPath string) ([]string, error) {
	out, err := runGit(ctx, repoPath, "ls-files")
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	var files []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// RepoPath returns the checkout directory for a repository name.
func (s *Service) RepoPath(repoName string) string {
	return filepath.Join(s.basePath, repoName)
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}

// ExtractRepoName extracts the repository name from a clone URL.
func ExtractRepoName(url string) string {
	url = strings.TrimSuffix(url, ".git")

	if strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "http://") {
		parts := strings.Split(url, "/")
		return parts[len(parts)-1]
	}

	// SSH URLs (git@github.com:owner/repo)
	if strings.Contains(url, ":") {
		parts := strings.Split(url, ":")
		if len(parts) > 1 {
			pathParts := strings.Split(parts[1], "/")
			return pathParts[len(pathParts)-1]
		}
	}

	return url
}
