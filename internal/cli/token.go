package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pandeptwidyaop/pm2-remote/internal/models"
	"github.com/pandeptwidyaop/pm2-remote/internal/services"
)

const cliUserAgent = "pm2-remote-cli"

func tokenCmd(rf *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage namespace tokens directly in the token store",
	}
	cmd.AddCommand(tokenCreateCmd(rf))
	cmd.AddCommand(tokenListCmd(rf))
	cmd.AddCommand(tokenGetCmd(rf))
	cmd.AddCommand(tokenDeleteCmd(rf))
	return cmd
}

// withTokens opens the store, runs fn and closes the store again.
func (rf *rootFlags) withTokens(fn func(tokens *services.TokenService, audit *services.AuditService) error) error {
	cfg, err := rf.loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(services.NewTokenService(db, cfg.Auth.BcryptCost), services.NewAuditService(db))
}

func tokenCreateCmd(rf *rootFlags) *cobra.Command {
	var req models.CreateTokenRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint a token for a namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rf.withTokens(func(tokens *services.TokenService, audit *services.AuditService) error {
				created, err := tokens.CreateToken(req)
				if err != nil {
					return err
				}
				audit.LogTokenCreate(models.RootScope(), created, "", cliUserAgent)

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:        %s\n", created.ID)
				fmt.Fprintf(out, "Namespace: %s\n", created.Namespace)
				fmt.Fprintf(out, "Token:     %s\n", created.Token)
				fmt.Fprintln(out, "The token is shown only once.")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Namespace, "namespace", "", "namespace the token is bound to")
	cmd.Flags().StringVar(&req.Description, "description", "", "free-form note")
	_ = cmd.MarkFlagRequired("namespace")
	return cmd
}

func tokenListCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List namespace tokens, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rf.withTokens(func(tokens *services.TokenService, _ *services.AuditService) error {
				list, err := tokens.ListTokens()
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAMESPACE\tDESCRIPTION\tCREATED")
				for _, t := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Namespace, t.Description, t.CreatedAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
}

func tokenGetCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one namespace token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rf.withTokens(func(tokens *services.TokenService, _ *services.AuditService) error {
				t, err := tokens.GetToken(args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:          %s\n", t.ID)
				fmt.Fprintf(out, "Namespace:   %s\n", t.Namespace)
				fmt.Fprintf(out, "Description: %s\n", t.Description)
				fmt.Fprintf(out, "Created:     %s\n", t.CreatedAt.Format(time.RFC3339))
				fmt.Fprintf(out, "Updated:     %s\n", t.UpdatedAt.Format(time.RFC3339))
				return nil
			})
		},
	}
}

func tokenDeleteCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Revoke a namespace token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rf.withTokens(func(tokens *services.TokenService, audit *services.AuditService) error {
				deleted, err := tokens.DeleteToken(args[0])
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("%w: %s", services.ErrTokenNotFound, args[0])
				}
				audit.LogTokenDelete(models.RootScope(), args[0], "", cliUserAgent)

				fmt.Fprintf(cmd.OutOrStdout(), "Token %s deleted\n", args[0])
				return nil
			})
		},
	}
}
