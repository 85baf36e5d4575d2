// Package cli implements importctl, the operator tool for the invoice import flow.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-invoice-importflow/internal/app"
)

// AppFactory builds the dependency graph a command runs against.
type AppFactory func(ctx context.Context) (*app.App, error)

// NewRootCmd returns the importctl command tree.
func NewRootCmd(newApp AppFactory) *cobra.Command {
	var output string

	rootCmd := &cobra.Command{
		Use:           "importctl",
		Short:         "Inspect and maintain invoice import transactions",
		Long:          "Command line tool to look up upload transactions and invoices, and to time out stuck transactions.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "Output format: text or json")

	rootCmd.AddCommand(newStatusCmd(newApp, &output))
	rootCmd.AddCommand(newInvoiceCmd(newApp, &output))
	rootCmd.AddCommand(newSweepCmd(newApp, &output))

	return rootCmd
}

// Execute runs importctl against the real AWS environment.
func Execute() error {
	return NewRootCmd(app.New).Execute()
}
