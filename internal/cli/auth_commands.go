package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/firstbutton/docucal/internal/core"
	"github.com/firstbutton/docucal/internal/session"
	"github.com/firstbutton/docucal/internal/util/sanitize"
)

const (
	msgServerUnreachable = "Unable to communicate with the server."
	msgLoginFirst        = "Please sign in first!"
)

// newLoginCmd creates the 'login' command.
func newLoginCmd() *cobra.Command {
	var (
		email     string
		noBrowser bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with your Google account",
		Long: `Sign in to the docucal backend.

The backend provides a Google sign-in page which is opened in your browser
(or printed with --no-browser). After signing in, enter the email address
of the account you used; it is stored in the session file and sent with
every upload.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(GetContext(), appOptions{noBrowser: noBrowser})
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if s := a.page.Session(); s.Authenticated() && email == "" {
				fmt.Fprintf(out, "Already signed in as %s. Run 'docucal logout' first to switch accounts.\n", s.DisplayName())
				return nil
			}

			_, err = runLogin(a.page, out, email)
			return err
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address of the account you signed in with (skips the prompt)")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the sign-in URL instead of opening a browser")

	return cmd
}

// runLogin walks through sign-in: fetch and show the URL, then record email
// (prompting for it when empty).
func runLogin(page *core.Page, out io.Writer, email string) (session.Session, error) {
	loginURL, err := page.SignIn(GetContext())
	if err != nil {
		GetLogger().Error().Err(err).Msg("Failed to get login URL")
		return page.Session(), fmt.Errorf("%s: %w", msgServerUnreachable, err)
	}
	return finishLogin(page, out, loginURL, email)
}

func finishLogin(page *core.Page, out io.Writer, loginURL, email string) (session.Session, error) {
	fmt.Fprintln(out, "Sign in with your browser:")
	fmt.Fprintf(out, "  %s\n\n", loginURL)

	for email == "" {
		input, err := promptLine(stdinReader, out, "Email address you signed in with: ")
		if err != nil {
			return page.Session(), err
		}
		email = sanitize.Field(input)
	}

	s, err := page.CompleteSignIn(sanitize.Field(email))
	if err != nil {
		return s, err
	}
	fmt.Fprintf(out, "Hello, %s!\n", s.DisplayName())
	return s, nil
}

// newLogoutCmd creates the 'logout' command.
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(GetContext(), appOptions{noBrowser: true})
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.page.SignOut()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed out (%s).\n", s)
			return nil
		},
	}
}

// newWhoamiCmd creates the 'whoami' command.
func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(GetContext(), appOptions{noBrowser: true})
			if err != nil {
				return err
			}
			defer a.Close()

			s := a.page.Session()
			if !s.Authenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in. Run 'docucal login'.")
				return errNotSignedIn
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Hello, %s!\n", s.DisplayName())
			return nil
		},
	}
}

var errNotSignedIn = errors.New("not signed in")

// isLoginRequired reports whether err came from the sign-in gate.
func isLoginRequired(err error) bool {
	return errors.Is(err, core.ErrLoginRequired)
}
