package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/creditgate/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"version": version.Version,
					"commit":  version.Commit,
					"date":    version.Date,
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "creditctl %s\n", version.String())
			return nil
		},
	}
}

func newMigrateCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long:  "Open the configured store, applying pending migrations for SQL backends.",
		Args:  cobra.NoArgs,
		RunE: s.run(func(cmd *cobra.Command, app *App, _ []string) error {
			status := map[string]string{"driver": app.Driver, "status": "up to date"}
			return render(cmd, status, []string{"driver", "status"},
				[][]string{{status["driver"], status["status"]}})
		}),
	}
}

type tokenOutput struct {
	Email       string    `json:"email"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func newTokenCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "token EMAIL",
		Short: "Issue an access token for a principal",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, app *App, args []string) error {
			tok, err := app.Accounts.IssueToken(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), tokenOutput{
					Email:       args[0],
					AccessToken: tok.Token,
					ExpiresAt:   tok.ExpiresAt.UTC(),
				})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		}),
	}
}
