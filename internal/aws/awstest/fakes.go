package awstest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apitypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/imrishuroy/go-invoice-importflow/internal/aws"
)

var (
	_ aws.S3API          = (*FakeS3)(nil)
	_ aws.PresignAPI     = (*FakeS3)(nil)
	_ aws.ConnectionsAPI = (*FakeConnections)(nil)
	_ aws.SQSAPI         = (*FakeSQS)(nil)
	_ aws.CloudWatchAPI  = (*FakeCloudWatch)(nil)
)

// FakeS3 keeps objects in memory and signs nothing.
type FakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string

	GetErr     error
	DeleteErr  error
	PresignErr error
}

func NewFakeS3() *FakeS3 {
	return &FakeS3{objects: map[string][]byte{}}
}

// PutObject stores body under bucket/key, standing in for the client's upload.
func (f *FakeS3) PutObject(bucket, key string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = body
}

// Has reports whether bucket/key is still stored.
func (f *FakeS3) Has(bucket, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[bucket+"/"+key]
	return ok
}

// Deleted returns the bucket/key pairs removed so far.
func (f *FakeS3) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *FakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	body, ok := f.objects[*params.Bucket+"/"+*params.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: strPtr("The specified key does not exist.")}
	}
	n := int64(len(body))
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: &n,
	}, nil
}

func (f *FakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return nil, f.DeleteErr
	}
	k := *params.Bucket + "/" + *params.Key
	delete(f.objects, k)
	f.deleted = append(f.deleted, k)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *FakeS3) PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if f.PresignErr != nil {
		return nil, f.PresignErr
	}
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &v4.PresignedHTTPRequest{
		URL:          fmt.Sprintf("https://%s.s3.local/%s?X-Amz-Expires=%d", *params.Bucket, *params.Key, int(opts.Expires.Seconds())),
		Method:       http.MethodPut,
		SignedHeader: http.Header{},
	}, nil
}

// Post is one frame pushed to a connection.
type Post struct {
	ConnectionID string
	Data         []byte
}

// FakeConnections records frames and closes instead of talking to API Gateway.
type FakeConnections struct {
	mu      sync.Mutex
	posts   []Post
	deleted []string
	gone    map[string]bool

	PostErr   error
	DeleteErr error
}

func NewFakeConnections() *FakeConnections {
	return &FakeConnections{gone: map[string]bool{}}
}

// MarkGone makes the connection behave as if the client already hung up.
func (f *FakeConnections) MarkGone(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gone[connID] = true
}

// Posts returns every frame sent to connID, in order.
func (f *FakeConnections) Posts(connID string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for _, p := range f.posts {
		if p.ConnectionID == connID {
			out = append(out, p.Data)
		}
	}
	return out
}

// Closed reports how many times connID was closed.
func (f *FakeConnections) Closed(connID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.deleted {
		if id == connID {
			n++
		}
	}
	return n
}

func (f *FakeConnections) PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone[*params.ConnectionId] {
		return nil, &apitypes.GoneException{Message: strPtr("Gone")}
	}
	if f.PostErr != nil {
		return nil, f.PostErr
	}
	f.posts = append(f.posts, Post{ConnectionID: *params.ConnectionId, Data: append([]byte(nil), params.Data...)})
	return &apigatewaymanagementapi.PostToConnectionOutput{}, nil
}

func (f *FakeConnections) DeleteConnection(ctx context.Context, params *apigatewaymanagementapi.DeleteConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.DeleteConnectionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone[*params.ConnectionId] {
		return nil, &apitypes.GoneException{Message: strPtr("Gone")}
	}
	if f.DeleteErr != nil {
		return nil, f.DeleteErr
	}
	f.deleted = append(f.deleted, *params.ConnectionId)
	f.gone[*params.ConnectionId] = true
	return &apigatewaymanagementapi.DeleteConnectionOutput{}, nil
}

// FakeSQS records sent messages.
type FakeSQS struct {
	mu       sync.Mutex
	Messages []sqs.SendMessageInput
	Err      error
}

func (f *FakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Messages = append(f.Messages, *params)
	id := fmt.Sprintf("msg-%d", len(f.Messages))
	return &sqs.SendMessageOutput{MessageId: &id}, nil
}

// Sent returns a snapshot of the recorded messages.
func (f *FakeSQS) Sent() []sqs.SendMessageInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sqs.SendMessageInput(nil), f.Messages...)
}

// FakeCloudWatch records metric data.
type FakeCloudWatch struct {
	mu    sync.Mutex
	data  []cwtypes.MetricDatum
	Err   error
	Calls int
}

func (f *FakeCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	f.data = append(f.data, params.MetricData...)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

// Count sums the values recorded under name.
func (f *FakeCloudWatch) Count(name string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total float64
	for _, d := range f.data {
		if d.MetricName != nil && *d.MetricName == name && d.Value != nil {
			total += *d.Value
		}
	}
	return total
}
