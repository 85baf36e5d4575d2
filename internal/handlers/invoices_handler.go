package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-invoice-importflow/internal/invoices"
	"github.com/imrishuroy/go-invoice-importflow/internal/logger"
	"github.com/imrishuroy/go-invoice-importflow/internal/sweep"
	"github.com/imrishuroy/go-invoice-importflow/internal/transactions"
	"github.com/imrishuroy/go-invoice-importflow/internal/validation"
)

// TransactionReader reads transactions.
type TransactionReader interface {
	Get(ctx context.Context, id string) (*transactions.Transaction, error)
}

// InvoiceReader reads committed invoices.
type InvoiceReader interface {
	Get(ctx context.Context, customer, number string) (*invoices.Invoice, error)
	ListByCustomer(ctx context.Context, customer string) ([]invoices.Invoice, error)
}

// Sweeper runs one expiry sweep.
type Sweeper interface {
	Run(ctx context.Context, limit int) (sweep.Result, error)
}

// HandlerConfig groups dependencies for the query API.
type HandlerConfig struct {
	Transactions TransactionReader
	Invoices     InvoiceReader
	Sweeper      Sweeper // optional; POST /admin/sweep is not registered without it
}

// RegisterRoutes registers the read-only invoice and transaction routes.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()

	r.GET("/transactions/:id", func(c *gin.Context) {
		ctx := c.Request.Context()
		tx, err := cfg.Transactions.Get(ctx, c.Param("id"))
		if errors.Is(err, transactions.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"transactionId": c.Param("id"), "status": transactions.StatusNotFound})
			return
		}
		if err != nil {
			logger.Errorf(ctx, err, "[api] get transaction %s", c.Param("id"))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "transaction_lookup_failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"transactionId": tx.TransactionID,
			"status":        tx.Status,
			"createdAt":     tx.CreatedAt().UTC().Format(time.RFC3339),
			"expiresAt":     tx.ExpiresAt().UTC().Format(time.RFC3339),
			"expiresIn":     tx.ExpiresIn,
		})
	})

	r.GET("/invoices/:customer/:number", func(c *gin.Context) {
		ctx := c.Request.Context()
		inv, err := cfg.Invoices.Get(ctx, c.Param("customer"), c.Param("number"))
		if errors.Is(err, invoices.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invoice_not_found"})
			return
		}
		if err != nil {
			logger.Errorf(ctx, err, "[api] get invoice %s/%s", c.Param("customer"), c.Param("number"))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "invoice_lookup_failed"})
			return
		}
		c.JSON(http.StatusOK, invoiceView(*inv))
	})

	r.GET("/invoices/:customer", func(c *gin.Context) {
		ctx := c.Request.Context()
		list, err := cfg.Invoices.ListByCustomer(ctx, c.Param("customer"))
		if err != nil {
			logger.Errorf(ctx, err, "[api] list invoices %s", c.Param("customer"))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "invoice_lookup_failed"})
			return
		}
		out := make([]gin.H, 0, len(list))
		for _, inv := range list {
			out = append(out, invoiceView(inv))
		}
		c.JSON(http.StatusOK, gin.H{"customerName": c.Param("customer"), "invoices": out})
	})

	if cfg.Sweeper == nil {
		return
	}
	r.POST("/admin/sweep", func(c *gin.Context) {
		ctx := c.Request.Context()
		var req validation.SweepRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		res, err := cfg.Sweeper.Run(ctx, req.Limit)
		if err != nil {
			logger.Errorf(ctx, err, "[api] sweep")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep_failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"scanned":  res.Scanned,
			"timedOut": res.TimedOut,
			"skipped":  res.Skipped,
			"failed":   res.Failed,
		})
	})
}

func invoiceView(inv invoices.Invoice) gin.H {
	return gin.H{
		"customerName":  inv.CustomerName(),
		"invoiceNumber": inv.InvoiceNumber,
		"totalValue":    inv.TotalValue,
		"productId":     inv.ProductID,
		"quantity":      inv.Quantity,
		"transactionId": inv.TransactionID,
		"createdAt":     inv.CreatedAt,
	}
}
