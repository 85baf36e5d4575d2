package main

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-invoice-importflow/internal/app"
	"github.com/imrishuroy/go-invoice-importflow/internal/handlers"
	"github.com/imrishuroy/go-invoice-importflow/internal/logger"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterRoutes(r, cfg)

	return r
}

func main() {
	ctx := context.Background()
	a, err := app.New(ctx)
	if err != nil {
		logger.Fatal(ctx, err, "failed to init app")
	}

	r := setupRouter(a.HandlerConfig())

	// RUN_LOCAL=true serves plain HTTP for development.
	if a.Config.RunLocal {
		addr := ":" + a.Config.Port
		logger.Infof(ctx, "running local server on %s", addr)
		if err := r.Run(addr); err != nil {
			logger.Fatal(ctx, err, "failed to run local server")
		}
		return
	}

	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
