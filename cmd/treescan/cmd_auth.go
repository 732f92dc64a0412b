package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	dErrors "rehla/pkg/domainerrors"
)

const passwordEnv = "TREESCAN_PASSWORD"

func (a *app) loginCmd() *cobra.Command {
	var identifier, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the CMS and keep the session for later commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv(passwordEnv)
			}
			if password == "" {
				var err error
				if password, err = promptPassword(cmd.InOrStdin(), cmd.ErrOrStderr()); err != nil {
					return err
				}
			}
			m, err := a.manager()
			if err != nil {
				return err
			}
			session, err := m.Login(cmd.Context(), identifier, password)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if session.ExpiresAt.IsZero() {
				_, err = fmt.Fprintf(out, "logged in as %s\n", session.User.Username)
				return err
			}
			_, err = fmt.Fprintf(out, "logged in as %s until %s\n", session.User.Username, session.ExpiresAt.Local().Format("2006-01-02 15:04"))
			return err
		},
	}
	cmd.Flags().StringVarP(&identifier, "identifier", "u", "", "username or email")
	cmd.Flags().StringVar(&password, "password", "", "password (default: $"+passwordEnv+" or prompt)")
	_ = cmd.MarkFlagRequired("identifier")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			if err := m.Logout(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return err
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in CMS user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			session, err := m.Current(cmd.Context())
			if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
				return err
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", session.User.Username, session.User.Email)
			return err
		},
	}
}

func promptPassword(in io.Reader, prompt io.Writer) (string, error) {
	_, _ = io.WriteString(prompt, "password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
