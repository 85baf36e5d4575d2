package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-invoice-importflow/internal/invoices"
	"github.com/imrishuroy/go-invoice-importflow/internal/sweep"
	"github.com/imrishuroy/go-invoice-importflow/internal/transactions"
)

func newStatusCmd(newApp AppFactory, output *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <transactionId>",
		Short: "Show the status of an upload transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			tx, err := a.Transactions.Get(cmd.Context(), args[0])
			if errors.Is(err, transactions.ErrNotFound) {
				return render(cmd.OutOrStdout(), *output, map[string]string{
					"transactionId": args[0],
					"status":        string(transactions.StatusNotFound),
				})
			}
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), *output, map[string]interface{}{
				"transactionId": tx.TransactionID,
				"status":        tx.Status,
				"connectionId":  tx.ConnectionID,
				"createdAt":     tx.CreatedAt().UTC().Format(time.RFC3339),
				"expiresAt":     tx.ExpiresAt().UTC().Format(time.RFC3339),
			})
		},
	}
}

func newInvoiceCmd(newApp AppFactory, output *string) *cobra.Command {
	return &cobra.Command{
		Use:   "invoice <customer> [invoiceNumber]",
		Short: "Show one invoice, or list a customer's invoices",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				list, err := a.Invoices.ListByCustomer(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), *output, list)
			}
			inv, err := a.Invoices.Get(cmd.Context(), args[0], args[1])
			if errors.Is(err, invoices.ErrNotFound) {
				return fmt.Errorf("no invoice %s for customer %s", args[1], args[0])
			}
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), *output, inv)
		},
	}
}

func newSweepCmd(newApp AppFactory, output *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Time out transactions whose time box has passed",
		Long: `Time out transactions whose time box has passed but which DynamoDB has not purged yet.
Each client is told TIMEOUT and disconnected. Safe to run repeatedly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Sweeper().Run(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), *output, res)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", sweep.DefaultLimit, "Maximum transactions to time out")
	return cmd
}

func render(w io.Writer, format string, v interface{}) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	switch val := v.(type) {
	case map[string]string:
		for _, k := range []string{"transactionId", "status"} {
			fmt.Fprintf(w, "%-14s %s\n", k+":", val[k])
		}
	case map[string]interface{}:
		for _, k := range []string{"transactionId", "status", "connectionId", "createdAt", "expiresAt"} {
			fmt.Fprintf(w, "%-14s %v\n", k+":", val[k])
		}
	case []invoices.Invoice:
		fmt.Fprintf(w, "%-16s %-12s %-10s %-8s %s\n", "INVOICE", "PRODUCT", "TOTAL", "QTY", "TRANSACTION")
		for _, inv := range val {
			fmt.Fprintf(w, "%-16s %-12s %-10.2f %-8d %s\n", inv.InvoiceNumber, inv.ProductID, inv.TotalValue, inv.Quantity, inv.TransactionID)
		}
	case *invoices.Invoice:
		fmt.Fprintf(w, "customer:      %s\ninvoice:       %s\nproduct:       %s\ntotal:         %.2f\nquantity:      %d\ntransaction:   %s\n",
			val.CustomerName(), val.InvoiceNumber, val.ProductID, val.TotalValue, val.Quantity, val.TransactionID)
	case sweep.Result:
		fmt.Fprintf(w, "scanned=%d timed_out=%d skipped=%d failed=%d\n", val.Scanned, val.TimedOut, val.Skipped, val.Failed)
	default:
		fmt.Fprintf(w, "%v\n", val)
	}
	return nil
}
