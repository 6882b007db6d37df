package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	nextcrm "github.com/MrEthical07/nextcrm"
	"github.com/MrEthical07/nextcrm/gateway"
	"github.com/MrEthical07/nextcrm/jwt"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginUsername string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session cookies",
	Long: `Sign in with a username and password. The password is read from
NEXTCRM_PASSWORD or prompted for on the terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		username := loginUsername
		if username == "" {
			username = app.cfg.CLI.Username
		}
		if username == "" {
			return errors.New("username required: pass --username or set NEXTCRM_USERNAME")
		}
		password, err := readPassword()
		if err != nil {
			return err
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()
		profile, err := app.client.Session().Login(ctx, nextcrm.LoginCredentials{
			Username: username,
			Password: password,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s\n", profile.FullName())
		return nil
	},
}

func readPassword() (string, error) {
	if p := os.Getenv("NEXTCRM_PASSWORD"); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		app.client.Session().Logout(ctx)
		fmt.Println("Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Confirm the session with the backend and show the profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		st := app.client.Session().CheckAuth(ctx)
		if !st.IsAuthenticated || st.Profile == nil {
			return nextcrm.ErrSessionExpired
		}
		p := st.Profile
		return stdout(p, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "USERNAME\t%s\n", p.Username)
			fmt.Fprintf(tw, "NAME\t%s\n", p.FullName())
			fmt.Fprintf(tw, "EMAIL\t%s\n", orDash(p.Email))
			fmt.Fprintf(tw, "COMPANY\t%s\n", orDash(p.Company))
			fmt.Fprintf(tw, "MFA\t%t\n", p.IsMFAEnabled)
		})
	},
}

type statusReport struct {
	Phase            string     `json:"phase"`
	Authenticated    bool       `json:"authenticated"`
	Username         string     `json:"username,omitempty"`
	AccessExpiresAt  *time.Time `json:"access_expires_at,omitempty"`
	RefreshExpiresAt *time.Time `json:"refresh_expires_at,omitempty"`
	CanRefresh       bool       `json:"can_refresh"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session without calling the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		st := app.client.Session().State()
		gw := app.client.Gateway()
		rep := statusReport{
			Phase:         st.Phase.String(),
			Authenticated: st.IsAuthenticated,
			CanRefresh:    gw.HasRefreshCredential(),
		}
		if st.Profile != nil {
			rep.Username = st.Profile.Username
		}
		rep.AccessExpiresAt = cookieExpiry(gw, gateway.AccessCookie)
		rep.RefreshExpiresAt = cookieExpiry(gw, gateway.RefreshCookie)

		return stdout(rep, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "PHASE\t%s\n", rep.Phase)
			fmt.Fprintf(tw, "AUTHENTICATED\t%t\n", rep.Authenticated)
			fmt.Fprintf(tw, "USER\t%s\n", orDash(rep.Username))
			fmt.Fprintf(tw, "ACCESS EXPIRES\t%s\n", formatExpiry(rep.AccessExpiresAt))
			fmt.Fprintf(tw, "REFRESH EXPIRES\t%s\n", formatExpiry(rep.RefreshExpiresAt))
			fmt.Fprintf(tw, "CAN REFRESH\t%t\n", rep.CanRefresh)
		})
	},
}

func cookieExpiry(gw *gateway.Gateway, name string) *time.Time {
	v, ok := gw.Cookie(name)
	if !ok {
		return nil
	}
	exp, ok := jwt.ExpiresAt(v)
	if !ok {
		return nil
	}
	return &exp
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return "-"
	}
	left := time.Until(*t).Round(time.Second)
	if left <= 0 {
		return t.Local().Format(time.RFC3339) + " (expired)"
	}
	return fmt.Sprintf("%s (in %s)", t.Local().Format(time.RFC3339), left)
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username (or NEXTCRM_USERNAME)")
}
