// Package cli implements creditctl, the operator command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/creditgate/internal/config"
	"github.com/kailas-cloud/creditgate/internal/domain"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd(OpenConfigured)
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]any{
				"error": err.Error(),
			}
			if code := errorCode(err); code != "" {
				errObj["code"] = code
			}
			_ = printJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// errorCode names the domain sentinel behind err, if any.
func errorCode(err error) string {
	codes := []struct {
		sentinel error
		code     string
	}{
		{domain.ErrValidation, "validation_failed"},
		{domain.ErrNotFound, "not_found"},
		{domain.ErrAlreadyExists, "already_exists"},
		{domain.ErrForbidden, "forbidden"},
		{domain.ErrStorageUnavailable, "storage_unavailable"},
	}
	for _, c := range codes {
		if errors.Is(err, c.sentinel) {
			return c.code
		}
	}
	return ""
}

// session opens the App once per command and closes it afterwards.
type session struct {
	open Opener
	env  string
}

// run returns a RunE that hands an open App to fn.
func (s *session) run(fn func(cmd *cobra.Command, app *App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		app, err := s.open(ctx, s.env)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()
		return fn(cmd, app, args)
	}
}

func newRootCmd(open Opener) *cobra.Command {
	var output string
	s := &session{open: open}

	rootCmd := &cobra.Command{
		Use:           "creditctl",
		Short:         "creditgate operator CLI",
		Long:          "Manage principals and credit balances directly against the configured store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("env") && s.env == "" {
				s.env = config.GetEnv()
			}
			return validateOutputFormat(output)
		},
	}

	rootCmd.PersistentFlags().StringVar(&s.env, "env", "", "Config environment (default: $ENV or local)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newMigrateCmd(s))
	rootCmd.AddCommand(newUserCmd(s))
	rootCmd.AddCommand(newCreditsCmd(s))
	rootCmd.AddCommand(newTokenCmd(s))

	return rootCmd
}
