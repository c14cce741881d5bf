package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/creditgate/internal/domain/account"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
)

// userOutput is the printable form of an account.
type userOutput struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`
	IsAdmin    bool      `json:"is_admin"`
	Credits    *int64    `json:"credits"`
	CreatedAt  time.Time `json:"created_at"`
}

var userHeader = []string{"id", "email", "active", "verified", "admin", "credits"}

func toUserOutput(a account.Account) userOutput {
	p := a.Principal()
	out := userOutput{
		ID:         p.ID(),
		Email:      p.Email(),
		IsActive:   p.IsActive(),
		IsVerified: p.IsVerified(),
		IsAdmin:    p.IsAdmin(),
		CreatedAt:  time.UnixMilli(p.CreatedAt()).UTC(),
	}
	if b, ok := a.Balance(); ok {
		credits := b.Credits()
		out.Credits = &credits
	}
	return out
}

func (u userOutput) row() []string {
	credits := "-"
	if u.Credits != nil {
		credits = strconv.FormatInt(*u.Credits, 10)
	}
	return []string{
		u.ID, u.Email,
		strconv.FormatBool(u.IsActive), strconv.FormatBool(u.IsVerified), strconv.FormatBool(u.IsAdmin),
		credits,
	}
}

func renderUser(cmd *cobra.Command, a account.Account) error {
	out := toUserOutput(a)
	return render(cmd, out, userHeader, [][]string{out.row()})
}

func newUserCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage principals",
	}
	cmd.AddCommand(newUserCreateCmd(s))
	cmd.AddCommand(newUserListCmd(s))
	cmd.AddCommand(newUserDeleteCmd(s))
	cmd.AddCommand(newUserSetAdminCmd(s))
	return cmd
}

func newUserCreateCmd(s *session) *cobra.Command {
	var admin bool
	cmd := &cobra.Command{
		Use:   "create EMAIL PASSWORD",
		Short: "Create an active, verified principal with the default balance",
		Args:  cobra.ExactArgs(2),
		RunE: s.run(func(cmd *cobra.Command, app *App, args []string) error {
			ctx := cmd.Context()
			p, err := app.Accounts.Register(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			verified := true
			patch := account.Patch{Verified: &verified}
			if admin {
				patch.Admin = &admin
			}
			if _, err := app.Admin.UpdateAccount(ctx, principal.Operator(), p.ID(), patch); err != nil {
				return fmt.Errorf("mark verified: %w", err)
			}
			if _, err := app.Metering.Balance(ctx, p); err != nil {
				return fmt.Errorf("materialize balance: %w", err)
			}

			a, err := app.Admin.GetAccount(ctx, principal.Operator(), p.ID())
			if err != nil {
				return err
			}
			return renderUser(cmd, a)
		}),
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant admin privileges")
	return cmd
}

type userListOutput struct {
	Items    []userOutput `json:"items"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Pages    int          `json:"pages"`
}

func newUserListCmd(s *session) *cobra.Command {
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List principals with their balances",
		Args:  cobra.NoArgs,
		RunE: s.run(func(cmd *cobra.Command, app *App, _ []string) error {
			out, err := app.Admin.ListBalances(cmd.Context(), principal.Operator(), page, pageSize)
			if err != nil {
				return err
			}

			list := userListOutput{
				Items:    make([]userOutput, 0, len(out.Items)),
				Total:    out.Total,
				Page:     out.Page,
				PageSize: out.PageSize,
				Pages:    out.Pages(),
			}
			rows := make([][]string, 0, len(out.Items))
			for _, a := range out.Items {
				u := toUserOutput(a)
				list.Items = append(list.Items, u)
				rows = append(rows, u.row())
			}
			return render(cmd, list, userHeader, rows)
		}),
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Page size (default: configured)")
	return cmd
}

func newUserDeleteCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "delete EMAIL",
		Short: "Delete a principal and its balance",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, app *App, args []string) error {
			ctx := cmd.Context()
			a, err := app.Admin.FindAccount(ctx, principal.Operator(), args[0])
			if err != nil {
				return err
			}
			if err := app.Admin.DeleteAccount(ctx, principal.Operator(), a.Principal().ID()); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": a.Principal().ID()})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s)\n", a.Principal().Email(), a.Principal().ID())
			return nil
		}),
	}
}

func newUserSetAdminCmd(s *session) *cobra.Command {
	var admin bool
	cmd := &cobra.Command{
		Use:   "set-admin EMAIL",
		Short: "Grant or revoke admin privileges",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, app *App, args []string) error {
			ctx := cmd.Context()
			a, err := app.Admin.FindAccount(ctx, principal.Operator(), args[0])
			if err != nil {
				return err
			}
			updated, err := app.Admin.UpdateAccount(ctx, principal.Operator(), a.Principal().ID(),
				account.Patch{Admin: &admin})
			if err != nil {
				return err
			}
			return renderUser(cmd, updated)
		}),
	}
	cmd.Flags().BoolVar(&admin, "admin", true, "Admin flag to set")
	return cmd
}
