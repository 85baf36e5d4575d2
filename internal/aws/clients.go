package aws

import (
	"context"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/imrishuroy/go-invoice-importflow/internal/config"
)

// AWSClients bundles all service clients for convenience.
type AWSClients struct {
	DynamoDB    DynamoDBAPI
	S3          S3API
	Presign     PresignAPI
	Connections ConnectionsAPI
	SQS         SQSAPI
	CloudWatch  CloudWatchAPI
}

// NewAWSClients loads AWS config and returns concrete service clients that implement our interfaces.
func NewAWSClients(ctx context.Context, cfg *config.Config) (*AWSClients, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg.AWSRegion, cfg.EndpointOverride)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// LocalStack only serves path-style bucket addressing
		o.UsePathStyle = cfg.EndpointOverride != ""
	})

	clients := &AWSClients{
		DynamoDB:   dynamodb.NewFromConfig(awsCfg),
		S3:         s3Client,
		Presign:    s3.NewPresignClient(s3Client),
		SQS:        sqs.NewFromConfig(awsCfg),
		CloudWatch: cloudwatch.NewFromConfig(awsCfg),
	}

	if endpoint := ManagementEndpoint(cfg.WebSocketEndpoint); endpoint != "" {
		clients.Connections = apigatewaymanagementapi.NewFromConfig(awsCfg, func(o *apigatewaymanagementapi.Options) {
			o.BaseEndpoint = sdkaws.String(endpoint)
		})
	}

	return clients, nil
}

// ManagementEndpoint turns the public WebSocket URL (wss://id.execute-api.region.amazonaws.com/stage)
// into the HTTPS endpoint of the connections management API.
func ManagementEndpoint(wsEndpoint string) string {
	wsEndpoint = strings.TrimSpace(wsEndpoint)
	switch {
	case wsEndpoint == "":
		return ""
	case strings.HasPrefix(wsEndpoint, "wss://"):
		return "https://" + strings.TrimPrefix(wsEndpoint, "wss://")
	case strings.HasPrefix(wsEndpoint, "ws://"):
		return "http://" + strings.TrimPrefix(wsEndpoint, "ws://")
	default:
		return wsEndpoint
	}
}
