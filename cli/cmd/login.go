package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"orchestrator/cli/session"
	"orchestrator/cli/style"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save an access token for later commands",
	Long: `Save an access token to the session file. The token is read from
--token, or prompted for without echo.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the saved session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.Remove(cfg.SessionFile); err != nil && !os.IsNotExist(err) {
			return err
		}
		fmt.Println(style.DimText.Render("Logged out."))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	token := cfg.Token
	if token == "" {
		var err error
		if token, err = readToken(); err != nil {
			return err
		}
	}
	if token == "" {
		return session.ErrNoToken
	}

	s := session.FromToken(token)
	if c, err := s.Claims(); err == nil {
		s.User.Role = c.Role
		s.User.ID = c.Subject
		if c.UserID != nil {
			s.User.ID = fmt.Sprint(c.UserID)
		}
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SessionFile), 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := s.Save(cfg.SessionFile); err != nil {
		return err
	}

	msg := "✓ Session saved to " + cfg.SessionFile
	if role := s.Role(); role != "" {
		msg += " (role " + role + ")"
	}
	fmt.Println(style.SuccessBox.Render(msg))
	return nil
}

func readToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Access token: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
