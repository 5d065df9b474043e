package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/fxdesk/api"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session token",
	Long: `Sign in with email and password. The token is written to backend.token_file
(or the user config directory) and used by every other command until it
expires or the backend rejects it.

The password is read from --password, FXDESK_PASSWORD, or stdin.`,
	Args: cobra.NoArgs,
	RunE: guarded("login", runLogin),
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	Args:  cobra.NoArgs,
	RunE:  guarded("register", runRegister),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored token",
	Args:  cobra.NoArgs,
	RunE:  guarded("logout", runLogout),
}

var (
	authEmail    string
	authPassword string
	regName      string
	regPhone     string
	regCountry   string
)

func init() {
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd)

	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&authEmail, "email", "e", "", "account email (required)")
		c.Flags().StringVarP(&authPassword, "password", "p", "", "password")
		_ = c.MarkFlagRequired("email")
	}
	registerCmd.Flags().StringVar(&regName, "name", "", "full name (required)")
	registerCmd.Flags().StringVar(&regPhone, "phone", "", "phone number")
	registerCmd.Flags().StringVar(&regCountry, "country", "", "country code")
	_ = registerCmd.MarkFlagRequired("name")
}

// password resolves the password from the flag, the environment, or the
// first line of in.
func password(flag string, in io.Reader) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if v := os.Getenv("FXDESK_PASSWORD"); v != "" {
		return v, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("password is required")
	}
	return line, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	pw, err := password(authPassword, cmd.InOrStdin())
	if err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Login(cmdContext(cmd), api.Credentials{Email: authEmail, Password: pw}); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Signed in as", authEmail)
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	pw, err := password(authPassword, cmd.InOrStdin())
	if err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	err = client.Register(cmdContext(cmd), api.Registration{
		Name:     regName,
		Email:    authEmail,
		Password: pw,
		Phone:    regPhone,
		Country:  regCountry,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Registered and signed in as", authEmail)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	client.Logout(cmdContext(cmd))
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Signed out")
	return nil
}
