package cmd

import (
	"fmt"
	"strings"

	"github.com/amirphl/tv-slot-pool/app/services"
	"github.com/spf13/cobra"
)

func newTokenCmd(app *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API access token",
		Long:  "Mint an API access token signed with the service's JWT settings. Admin tokens may mutate the pool; operator tokens are read-only plus notes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			role, _ := cmd.Flags().GetString("role")
			subject, _ := cmd.Flags().GetString("subject")
			subject = strings.TrimSpace(subject)
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}
			if !services.ValidRole(role) {
				return fmt.Errorf("unknown role %q (want %s or %s)", role, services.RoleAdmin, services.RoleOperator)
			}

			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			tokens, err := services.NewTokenService(
				cfg.JWT.AccessTokenTTL,
				cfg.JWT.Issuer,
				cfg.JWT.Audience,
				cfg.JWT.UseRSAKeys,
				cfg.JWT.PrivateKey,
				cfg.JWT.PublicKey,
				cfg.JWT.SecretKey,
			)
			if err != nil {
				return err
			}

			token, err := tokens.GenerateToken(subject, role)
			if err != nil {
				return err
			}

			if app.isJSON() {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"token":      token,
					"subject":    subject,
					"role":       role,
					"expires_in": int64(cfg.JWT.AccessTokenTTL.Seconds()),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("role", services.RoleOperator, "token role: admin or operator")
	cmd.Flags().String("subject", "", "who the token identifies; recorded as the actor in slot history")
	return cmd
}
