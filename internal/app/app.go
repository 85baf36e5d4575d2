// Package app builds the shared dependency graph every entry point starts from.
package app

import (
	"context"
	"fmt"

	"github.com/imrishuroy/go-invoice-importflow/internal/aws"
	"github.com/imrishuroy/go-invoice-importflow/internal/broker"
	"github.com/imrishuroy/go-invoice-importflow/internal/cancel"
	"github.com/imrishuroy/go-invoice-importflow/internal/channel"
	"github.com/imrishuroy/go-invoice-importflow/internal/config"
	"github.com/imrishuroy/go-invoice-importflow/internal/eventlog"
	"github.com/imrishuroy/go-invoice-importflow/internal/handlers"
	"github.com/imrishuroy/go-invoice-importflow/internal/importer"
	"github.com/imrishuroy/go-invoice-importflow/internal/invoices"
	"github.com/imrishuroy/go-invoice-importflow/internal/logger"
	"github.com/imrishuroy/go-invoice-importflow/internal/metrics"
	"github.com/imrishuroy/go-invoice-importflow/internal/objects"
	"github.com/imrishuroy/go-invoice-importflow/internal/reaper"
	"github.com/imrishuroy/go-invoice-importflow/internal/sweep"
	"github.com/imrishuroy/go-invoice-importflow/internal/transactions"
)

// App holds configured stores and collaborators. Handlers are built on demand so each
// binary only constructs what it serves.
type App struct {
	Config       *config.Config
	Clients      *aws.AWSClients
	Transactions *transactions.Store
	Invoices     *invoices.Store
	Objects      *objects.Store
	Notifier     *channel.Channel
	Metrics      metrics.Recorder
}

// New loads configuration, initialises logging and AWS clients, and wires the stores.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel)

	clients, err := aws.NewAWSClients(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init aws clients: %w", err)
	}
	return FromClients(cfg, clients), nil
}

// FromClients wires an App around already constructed clients.
func FromClients(cfg *config.Config, clients *aws.AWSClients) *App {
	return &App{
		Config:       cfg,
		Clients:      clients,
		Transactions: transactions.NewStore(clients.DynamoDB, cfg.InvoicesTable),
		Invoices:     invoices.NewStore(clients.DynamoDB, cfg.InvoicesTable),
		Objects:      objects.NewStore(clients.S3, clients.Presign, cfg.InvoicesBucket),
		Notifier:     channel.New(clients.Connections),
		Metrics:      metrics.New(clients.CloudWatch, cfg.MetricsNamespace),
	}
}

// WebSocketHandler serves getImportUrl and cancelImport.
func (a *App) WebSocketHandler() *handlers.WebSocketHandler {
	b := broker.New(a.Objects, a.Transactions, a.Notifier, a.Metrics, broker.Options{
		Timebox:   a.Config.TransactionTimeBox,
		URLExpiry: a.Config.UploadURLExpires,
		Endpoint:  aws.ManagementEndpoint(a.Config.WebSocketEndpoint),
	})
	return handlers.NewWebSocketHandler(b, cancel.New(a.Transactions, a.Notifier, a.Metrics))
}

// S3Handler serves object-created notifications.
func (a *App) S3Handler() *handlers.S3Handler {
	p := importer.NewProcessor(a.Transactions, a.Invoices, a.Objects, a.Notifier)
	return handlers.NewS3Handler(p, aws.NewPublisher(a.Clients.SQS, a.Config.FailuresQueueURL), a.Metrics)
}

// StreamHandler serves invoices-table stream records.
func (a *App) StreamHandler() *handlers.StreamHandler {
	return handlers.NewStreamHandler(
		reaper.New(a.Notifier, a.Metrics),
		eventlog.NewRecorder(a.Clients.DynamoDB, a.Config.EventsTable, a.Config.EventTTL),
	)
}

// Sweeper times out expired transactions on demand.
func (a *App) Sweeper() *sweep.Sweeper {
	return sweep.New(a.Transactions, a.Notifier, a.Metrics)
}

// HandlerConfig is the query API's dependency set.
func (a *App) HandlerConfig() handlers.HandlerConfig {
	return handlers.HandlerConfig{
		Transactions: a.Transactions,
		Invoices:     a.Invoices,
		Sweeper:      a.Sweeper(),
	}
}
