// Package secrets keeps the GitHub token in the OS keychain for hosts where
// it should not live in the environment.
package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups signlead's secrets in the OS keychain.
	KeyringService = "signlead"
)

// ErrNotFound is returned when the keychain holds no token for the account.
var ErrNotFound = errors.New("secrets: github token not found (set it in the keychain or via GITHUB_TOKEN)")

// GitHubAccount is the keychain account for a repository's token.
func GitHubAccount(repo string) string {
	return fmt.Sprintf("signlead:github:%s", strings.ToLower(strings.TrimSpace(repo)))
}

func GetGitHubToken(repo string) (string, error) {
	if strings.TrimSpace(repo) == "" {
		return "", errors.New("secrets: repository is empty")
	}
	tok, err := keyring.Get(KeyringService, GitHubAccount(repo))
	if errors.Is(err, keyring.ErrNotFound) || (err == nil && strings.TrimSpace(tok) == "") {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("secrets: keychain: %w", err)
	}
	return strings.TrimSpace(tok), nil
}

func SetGitHubToken(repo, token string) error {
	if strings.TrimSpace(repo) == "" {
		return errors.New("secrets: repository is empty")
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("secrets: token is empty")
	}
	return keyring.Set(KeyringService, GitHubAccount(repo), strings.TrimSpace(token))
}

func DeleteGitHubToken(repo string) error {
	if strings.TrimSpace(repo) == "" {
		return errors.New("secrets: repository is empty")
	}
	err := keyring.Delete(KeyringService, GitHubAccount(repo))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// ResolveGitHubToken returns envToken when set, otherwise the keychain
// token for repo. A missing keychain entry is not an error: the result is
// simply empty and publishing stays off.
func ResolveGitHubToken(repo, envToken string) (string, error) {
	if t := strings.TrimSpace(envToken); t != "" {
		return t, nil
	}
	if strings.TrimSpace(repo) == "" {
		return "", nil
	}
	tok, err := GetGitHubToken(repo)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return tok, err
}
