package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FranksOps/signlead/internal/secrets"
)

func newTokenCmd(a *app) *cobra.Command {
	var repo string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the GitHub token kept in the OS keychain",
	}
	cmd.PersistentFlags().StringVar(&repo, "repo", "", "owner/name of the pages repository (default github.repo)")

	resolve := func() (string, error) {
		if repo != "" {
			return repo, nil
		}
		if a.cfg.GitHub.Repo != "" {
			return a.cfg.GitHub.Repo, nil
		}
		return "", errors.New("no repository: pass --repo or set GITHUB_REPO")
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Read a token from stdin and store it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := resolve()
			if err != nil {
				return err
			}
			token, err := readLine(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := secrets.SetGitHubToken(r, token); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "token stored for %s\n", r)
			return nil
		},
	}
	del := &cobra.Command{
		Use:   "delete",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := resolve()
			if err != nil {
				return err
			}
			if err := secrets.DeleteGitHubToken(r); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "token removed for %s\n", r)
			return nil
		},
	}
	cmd.AddCommand(set, del)
	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
