package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-invoice-importflow/internal/broker"
	"github.com/imrishuroy/go-invoice-importflow/internal/logger"
	"github.com/imrishuroy/go-invoice-importflow/internal/transactions"
	"github.com/imrishuroy/go-invoice-importflow/internal/validation"
)

// WebSocket route keys
const (
	RouteGetImportURL = "getImportUrl"
	RouteCancelImport = "cancelImport"
)

// UploadBroker issues upload URLs.
type UploadBroker interface {
	RequestUpload(ctx context.Context, connID, requestID string) (*broker.Ticket, error)
}

// ImportCanceller cancels uploads.
type ImportCanceller interface {
	Cancel(ctx context.Context, connID, txID string) (transactions.Status, error)
}

// WebSocketHandler dispatches API Gateway WebSocket routes.
type WebSocketHandler struct {
	broker    UploadBroker
	canceller ImportCanceller
	validate  *validatorv10.Validate
}

// NewWebSocketHandler creates a WebSocketHandler.
func NewWebSocketHandler(b UploadBroker, c ImportCanceller) *WebSocketHandler {
	return &WebSocketHandler{broker: b, canceller: c, validate: validation.New()}
}

// Handle is the Lambda entry point. Results reach the client as pushed frames; the
// returned response only tells API Gateway whether the route ran.
func (h *WebSocketHandler) Handle(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID
	requestID := req.RequestContext.RequestID
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		requestID = lc.AwsRequestID
	}
	ctx = logger.WithFields(ctx, "requestId", requestID, "connectionId", connID, "route", req.RequestContext.RouteKey)

	switch req.RequestContext.RouteKey {
	case RouteGetImportURL:
		if _, err := h.broker.RequestUpload(ctx, connID, requestID); err != nil {
			logger.Errorf(ctx, err, "[wsapi] getImportUrl failed")
			return respond(http.StatusInternalServerError), nil
		}
		return respond(http.StatusOK), nil

	case RouteCancelImport:
		var body validation.CancelImportRequest
		if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
			logger.Warnf(ctx, "[wsapi] cancelImport: bad body: %v", err)
			return respond(http.StatusBadRequest), nil
		}
		if err := h.validate.Struct(body); err != nil {
			logger.Warnf(ctx, "[wsapi] cancelImport: %v", validation.FieldErrors(err))
			return respond(http.StatusBadRequest), nil
		}
		if _, err := h.canceller.Cancel(ctx, connID, body.TransactionID); err != nil {
			logger.Errorf(ctx, err, "[wsapi] cancelImport failed")
			return respond(http.StatusInternalServerError), nil
		}
		return respond(http.StatusOK), nil
	}

	logger.Warnf(ctx, "[wsapi] unknown route %q", req.RequestContext.RouteKey)
	return respond(http.StatusBadRequest), nil
}

func respond(status int) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{StatusCode: status, Body: http.StatusText(status)}
}
