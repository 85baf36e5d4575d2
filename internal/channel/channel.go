// Package channel pushes status frames to WebSocket clients through the API Gateway
// management API. Delivery is best effort: nothing here returns an error.
package channel

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apitypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"

	"github.com/imrishuroy/go-invoice-importflow/internal/aws"
	"github.com/imrishuroy/go-invoice-importflow/internal/logger"
	"github.com/imrishuroy/go-invoice-importflow/internal/transactions"
)

// Notifier is what the workflow handlers need from a session channel.
type Notifier interface {
	Send(ctx context.Context, connID string, payload interface{})
	SendStatus(ctx context.Context, txID, connID string, status transactions.Status)
	Disconnect(ctx context.Context, connID string)
}

// StatusFrame is pushed on every status change.
type StatusFrame struct {
	TransactionID string              `json:"transactionId"`
	Status        transactions.Status `json:"status"`
}

// URLFrame answers getImportUrl.
type URLFrame struct {
	URL              string `json:"url"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
	TransactionID    string `json:"transactionId"`
}

// Channel implements Notifier on top of PostToConnection and DeleteConnection.
type Channel struct {
	client aws.ConnectionsAPI
}

var _ Notifier = (*Channel)(nil)

// New returns a Channel. A nil client yields a channel that only logs.
func New(client aws.ConnectionsAPI) *Channel {
	return &Channel{client: client}
}

// Send marshals payload to JSON and posts it as one text frame.
func (c *Channel) Send(ctx context.Context, connID string, payload interface{}) {
	if connID == "" {
		logger.Warn(ctx, "[channel] send skipped: no connection id")
		return
	}
	if c.client == nil {
		logger.Warnf(ctx, "[channel] send to %s skipped: management endpoint not configured", connID)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf(ctx, err, "[channel] marshal frame for %s", connID)
		return
	}

	_, err = c.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: &connID,
		Data:         data,
	})
	if err != nil {
		c.logFailure(ctx, err, "send", connID)
		return
	}
	logger.Debugf(ctx, "[channel] sent %d bytes to %s", len(data), connID)
}

// SendStatus pushes {transactionId, status}.
func (c *Channel) SendStatus(ctx context.Context, txID, connID string, status transactions.Status) {
	c.Send(ctx, connID, StatusFrame{TransactionID: txID, Status: status})
}

// Disconnect closes the connection.
func (c *Channel) Disconnect(ctx context.Context, connID string) {
	if connID == "" || c.client == nil {
		return
	}
	_, err := c.client.DeleteConnection(ctx, &apigatewaymanagementapi.DeleteConnectionInput{
		ConnectionId: &connID,
	})
	if err != nil {
		c.logFailure(ctx, err, "disconnect", connID)
		return
	}
	logger.Infof(ctx, "[channel] closed connection %s", connID)
}

func (c *Channel) logFailure(ctx context.Context, err error, op, connID string) {
	var gone *apitypes.GoneException
	if errors.As(err, &gone) {
		logger.Infof(ctx, "[channel] %s: connection %s already gone", op, connID)
		return
	}
	logger.Errorf(ctx, err, "[channel] %s to %s failed", op, connID)
}
