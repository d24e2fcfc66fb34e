package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/raphaelgruber/wikidesk/internal/auth"
	"github.com/raphaelgruber/wikidesk/internal/client"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var passwordStdin bool

var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Sign in and store the session token",
	Long: `Sign in to the wiki backend. The token is stored in the state file and
used by every following command until it expires or you log out.`,
	Example: `  wikidesk login alice@example.com
  echo "$PASSWORD" | wikidesk login alice@example.com --password-stdin`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := wikiAPI.Logout(); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
		fmt.Println(defaultTheme.successStyle().Render("✓ Logged out"))
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
}

func runLogin(cmd *cobra.Command, args []string) error {
	in := bufio.NewReader(os.Stdin)

	var email string
	if len(args) == 1 {
		email = args[0]
	} else {
		fmt.Print("Email: ")
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read email: %w", err)
		}
		email = line
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}

	password, err := readPassword(in)
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	// A 401 here means bad credentials, not an expired session.
	quietExpiry = true
	err = wikiAPI.Login(cmd.Context(), email, password)
	quietExpiry = false
	if err != nil {
		var apiErr *client.APIError
		if errors.Is(err, client.ErrSessionExpired) || (errors.As(err, &apiErr) && apiErr.Status == 400) {
			logger.Debug("login rejected", "email", email, "error", err)
			return fmt.Errorf("invalid email or password")
		}
		return fail(err, "Login failed.")
	}

	expiryNotice = sync.Once{}
	logger.Info("logged in", "email", email)
	fmt.Println(defaultTheme.successStyle().Render("✓ Logged in as " + email))
	if fs, ok := store.(*auth.FileStore); ok {
		fmt.Println(defaultTheme.hintStyle().Render("Session saved to " + fs.Path()))
	}
	return nil
}

// readPassword reads without echo from a terminal, or a single line from
// stdin with --password-stdin.
func readPassword(in *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if passwordStdin || !term.IsTerminal(fd) {
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Print("Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	if !creds.LoggedIn() {
		return fmt.Errorf("not logged in; run 'wikidesk login'")
	}

	me, err := wikiAPI.Me(cmd.Context())
	if err != nil {
		return fail(err, "Could not load your profile.")
	}
	if jsonOut {
		return printJSON(me)
	}

	describeUser(me)

	tok, err := creds.Token()
	if err != nil {
		return nil
	}
	claims, err := auth.ParseClaims(tok.AccessToken)
	if err != nil {
		logger.Debug("token claims unavailable", "error", err)
		return nil
	}
	expires := ""
	if claims.ExpiresAt != nil {
		expires = formatTime(*claims.ExpiresAt)
	}
	printFields("Expires", expires)
	return nil
}
