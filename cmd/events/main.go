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

	lambda.Start(a.StreamHandler().Handle)
}
