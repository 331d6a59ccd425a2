package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/dbdev/pkg/auth"
	"github.com/matzehuels/dbdev/pkg/errors"
	"github.com/matzehuels/dbdev/pkg/session"
)

// sessionTTL is the lifetime of a stored CLI session.
const sessionTTL = 30 * 24 * time.Hour

// authTimeout bounds one call to the auth provider.
const authTimeout = 30 * time.Second

// authCommand creates the auth command with subcommands.
func (c *CLI) authCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in to the registry",
		Long: `Sign in with your database.dev account.

The session is stored in $XDG_CONFIG_HOME/dbdev/sessions/ and its access
token is sent with registry queries.`,
	}
	cmd.AddCommand(c.authLoginCommand())
	cmd.AddCommand(c.authLogoutCommand())
	cmd.AddCommand(c.authWhoamiCommand())
	cmd.AddCommand(c.authRefreshCommand())
	return cmd
}

// requireAuthClient returns the auth client or an error when the
// configuration has no auth provider.
func (c *CLI) requireAuthClient() (*auth.Client, error) {
	client, err := c.authClient()
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New(errors.ErrCodeValidation, "no auth provider configured (set supabase.anon_key)")
	}
	return client, nil
}

func (c *CLI) authLoginCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Long: `Sign in with email and password.

The password is read from standard input:

  echo "$DBDEV_PASSWORD" | dbdev auth login --email me@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := session.NewCLIStore("")
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			if existing, _ := store.GetSession(ctx); existing != nil {
				printInfo("Already signed in as %s", displayUser(existing))
				printDetail("Run 'dbdev auth logout' first to sign in again")
				return nil
			}

			client, err := c.requireAuthClient()
			if err != nil {
				return err
			}
			in := bufio.NewReader(cmd.InOrStdin())
			if email == "" {
				if email, err = prompt(cmd.ErrOrStderr(), in, "Email: "); err != nil {
					return err
				}
			}
			password, err := prompt(cmd.ErrOrStderr(), in, "Password: ")
			if err != nil {
				return err
			}

			sess, err := signIn(ctx, client, store, email, password)
			if err != nil {
				return err
			}
			printSuccess("Signed in as %s", displayUser(sess))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

// prompt writes label to w and reads one trimmed line from in.
func prompt(w io.Writer, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(w, label)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(strings.TrimSuffix(label, ": ")), err)
	}
	return strings.TrimSpace(line), nil
}

func signIn(ctx context.Context, client *auth.Client, store *session.CLIStore, email, password string) (*session.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	spinner := newSpinnerWithContext(ctx, "Signing in...")
	spinner.Start()
	tokens, user, err := client.SignInWithPassword(ctx, email, password)
	spinner.Stop()
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if user != nil && user.Handle == "" {
		if claims, err := auth.ParseUnverified(tokens.AccessToken); err == nil {
			user.Handle = claims.Handle()
		}
	}

	sess, err := session.New(tokens, user, sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

func (c *CLI) authLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := session.NewCLIStore("")
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			sess, err := store.GetSession(ctx)
			if err != nil {
				return err
			}
			if sess == nil {
				printInfo("Not signed in")
				return nil
			}

			if client, _ := c.authClient(); client != nil {
				ctx, cancel := context.WithTimeout(ctx, authTimeout)
				defer cancel()
				if err := client.SignOut(ctx, sess.Tokens.AccessToken); err != nil {
					loggerFromContext(ctx).Warn("sign out", "error", err)
				}
			}
			if err := store.DeleteSession(ctx); err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
			printSuccess("Signed out")
			return nil
		},
	}
}

func (c *CLI) authWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadCLISession(cmd.Context())
			if err != nil {
				return err
			}

			printSuccess("Signed in")
			if h := sess.Handle(); h != "" {
				printKeyValue("Handle", "@"+h)
			}
			if sess.User != nil && sess.User.Email != "" {
				printKeyValue("Email", sess.User.Email)
			}
			printKeyValue("Signed in", sess.CreatedAt.Format("Jan 2, 2006"))
			if claims, err := auth.ParseUnverified(sess.Tokens.AccessToken); err == nil && claims.ExpiresAt != nil {
				printKeyValue("Token", tokenStatus(claims.ExpiresAt.Time, time.Now()))
			}
			printKeyValue("Expires", sess.ExpiresAt.Format("Jan 2, 2006"))
			return nil
		},
	}
}

// tokenStatus describes when an access token expires relative to now.
func tokenStatus(expiresAt, now time.Time) string {
	if !expiresAt.After(now) {
		return "expired (run 'dbdev auth refresh')"
	}
	return "valid for " + expiresAt.Sub(now).Round(time.Second).String()
}

func (c *CLI) authRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for a new access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.requireAuthClient()
			if err != nil {
				return err
			}
			store, err := session.NewCLIStore("")
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), authTimeout)
			defer cancel()
			spinner := newSpinnerWithContext(ctx, "Refreshing session...")
			spinner.Start()
			err = auth.NewSessionRefresher(client, store.Store(), store.SessionID()).RefreshSession(ctx)
			if err != nil {
				spinner.StopWithError("Refresh failed")
				return err
			}
			spinner.StopWithSuccess("Session refreshed")
			return nil
		},
	}
}

func loadCLISession(ctx context.Context) (*session.Session, error) {
	store, err := session.NewCLIStore("")
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	sess, err := store.GetSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, fmt.Errorf("not signed in (run 'dbdev auth login' first)")
	}
	return sess, nil
}

func displayUser(sess *session.Session) string {
	if h := sess.Handle(); h != "" {
		return "@" + h
	}
	if sess.User != nil {
		return sess.User.Email
	}
	return "unknown user"
}
