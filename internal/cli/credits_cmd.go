package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/creditgate/internal/domain/principal"
)

type creditsOutput struct {
	Email   string `json:"email"`
	UserID  string `json:"user_id"`
	Credits *int64 `json:"credits"`
}

func (c creditsOutput) rows() [][]string {
	credits := "-"
	if c.Credits != nil {
		credits = strconv.FormatInt(*c.Credits, 10)
	}
	return [][]string{{c.Email, c.UserID, credits}}
}

var creditsHeader = []string{"email", "user_id", "credits"}

func newCreditsCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Read and set credit balances",
	}
	cmd.AddCommand(newCreditsGetCmd(s))
	cmd.AddCommand(newCreditsSetCmd(s))
	return cmd
}

func newCreditsGetCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "get EMAIL",
		Short: "Show the balance of a principal",
		Long:  "Show the balance of a principal. A balance that was never materialized prints as '-'.",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, app *App, args []string) error {
			a, err := app.Admin.FindAccount(cmd.Context(), principal.Operator(), args[0])
			if err != nil {
				return err
			}
			out := creditsOutput{Email: a.Principal().Email(), UserID: a.Principal().ID()}
			if b, ok := a.Balance(); ok {
				credits := b.Credits()
				out.Credits = &credits
			}
			return render(cmd, out, creditsHeader, out.rows())
		}),
	}
}

func newCreditsSetCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "set EMAIL CREDITS",
		Short: "Overwrite the balance of a principal",
		Args:  cobra.ExactArgs(2),
		RunE: s.run(func(cmd *cobra.Command, app *App, args []string) error {
			value, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid credits %q: must be an integer", args[1])
			}

			ctx := cmd.Context()
			a, err := app.Admin.FindAccount(ctx, principal.Operator(), args[0])
			if err != nil {
				return err
			}
			b, err := app.Admin.SetCredits(ctx, principal.Operator(), a.Principal().ID(), value)
			if err != nil {
				return err
			}
			credits := b.Credits()
			out := creditsOutput{Email: a.Principal().Email(), UserID: b.PrincipalID(), Credits: &credits}
			return render(cmd, out, creditsHeader, out.rows())
		}),
	}
}
