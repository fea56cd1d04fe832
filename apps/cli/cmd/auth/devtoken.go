package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/venuedesk/platform/go/auth/devtoken"
)

// Command groups token helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication helpers for local development",
	}
	cmd.AddCommand(devTokenCommand())
	return cmd
}

func devTokenCommand() *cobra.Command {
	var (
		params     devtoken.Params
		signingKey string
		unsigned   bool
	)

	cmd := &cobra.Command{
		Use:   "devtoken",
		Short: "Generate a JWT for dev/local use (unsigned for AUTH_PROVIDER=dev, HS256 for AUTH_PROVIDER=jwt)",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()

			var (
				token string
				err   error
			)
			switch {
			case unsigned:
				token, err = devtoken.BuildUnsignedToken(params, now)
			case signingKey != "":
				token, err = devtoken.BuildSignedToken(params, []byte(signingKey), now)
			default:
				return errors.New("either --unsigned or --signing-key is required")
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	// Required claims
	cmd.Flags().StringVar(&params.UserID, "user-id", "", "sub/uid claim")
	cmd.Flags().StringVar(&params.Email, "email", "", "email claim")

	// Optional claims
	cmd.Flags().StringVar(&params.TenantID, "tenant-id", "", "tenantId claim (tenant UUID)")
	cmd.Flags().StringVar(&params.Role, "role", "", "tenant role claim (tenant_admin or staff)")
	cmd.Flags().StringVar(&params.Name, "name", "", "display name")
	cmd.Flags().BoolVar(&params.IsAdmin, "admin", false, "set isAdmin=true (platform operator)")
	cmd.Flags().DurationVar(&params.ExpiresIn, "expires-in", time.Hour, "token lifetime (e.g. 30m, 2h)")
	cmd.Flags().StringVar(&params.Audience, "audience", "", "aud claim")
	cmd.Flags().StringVar(&params.Issuer, "issuer", "", "override iss")
	cmd.Flags().BoolVar(&unsigned, "unsigned", false, "emit an alg=none token")
	cmd.Flags().StringVar(&signingKey, "signing-key", "", "HS256 key; must match JWT_SIGNING_KEY")

	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
