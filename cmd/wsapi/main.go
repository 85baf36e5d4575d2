package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-invoice-importflow/internal/app"
	"github.com/imrishuroy/go-invoice-importflow/internal/logger"
)

func main() {
	ctx := context.Background()
	a, err := app.New(ctx)
	if err != nil {
		logger.Fatal(ctx, err, "failed to init app")
	}
	if a.Config.WebSocketEndpoint == "" {
		logger.Warn(ctx, "INVOICE_WSAPI_ENDPOINT not set; frames will not be delivered")
	}

	lambda.Start(a.WebSocketHandler().Handle)
}
