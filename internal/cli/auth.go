package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mbeoliero/tutorchat/pkg/jwt"
)

func loginCmd(e *env) *cobra.Command {
	var userId, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the token",
		Long: `Sign in with a user id and password. Defaults come from auth.user_id and
auth.password in the config (or TUTORCHAT_AUTH_USER_ID / TUTORCHAT_AUTH_PASSWORD).
With redis configured the token is kept under the auth.profile key for later runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userId == "" {
				userId = e.cfg.Auth.UserId
			}
			if password == "" {
				password = e.cfg.Auth.Password
			}
			if userId == "" || password == "" {
				return fmt.Errorf("user id and password are required")
			}

			ctx, cancel := commandContext(cmd, 30*time.Second)
			defer cancel()

			api, err := e.newAPI()
			if err != nil {
				return err
			}
			resp, err := api.LoginWithUserId(ctx, userId, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if err := e.tokens.Save(ctx, resp.Token); err != nil {
				return fmt.Errorf("save token: %w", err)
			}

			fmt.Printf("Signed in as %s (%s)\n", color.New(color.Bold).Sprint(resp.User.Name), resp.User.Role)
			if e.rdb == nil {
				fmt.Println("No redis configured; export the token to reuse it:")
				fmt.Printf("  export TUTORCHAT_AUTH_TOKEN=%s\n", resp.Token)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userId, "user", "u", "", "user id")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	return cmd
}

func logoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd, 10*time.Second)
			defer cancel()
			if err := e.tokens.Clear(ctx); err != nil {
				return err
			}
			fmt.Println("Signed out")
			return nil
		},
	}
}

// whoami decodes the token locally; the server verifies it on every call
func whoami(token string) (*jwt.Claims, error) {
	claims, err := jwt.ParseUnverified(token)
	if err != nil {
		return nil, fmt.Errorf("stored token is unreadable: %w", err)
	}
	return claims, nil
}
