package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
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
	h := a.S3Handler()

	// RUN_LOCAL=true processes LOCAL_OBJECT_KEY once instead of waiting for S3.
	if a.Config.RunLocal {
		key := os.Getenv("LOCAL_OBJECT_KEY")
		if key == "" {
			logger.Fatal(ctx, nil, "LOCAL_OBJECT_KEY is required when RUN_LOCAL=true")
		}
		event := events.S3Event{
			Records: []events.S3EventRecord{{
				S3: events.S3Entity{
					Bucket: events.S3Bucket{Name: a.Config.InvoicesBucket},
					Object: events.S3Object{Key: key},
				},
			}},
		}
		if err := h.Handle(ctx, event); err != nil {
			logger.Fatal(ctx, err, "local handler error")
		}
		return
	}

	lambda.Start(h.Handle)
}
