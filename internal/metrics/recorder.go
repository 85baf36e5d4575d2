// Package metrics counts workflow outcomes in CloudWatch.
package metrics

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/imrishuroy/go-invoice-importflow/internal/aws"
	"github.com/imrishuroy/go-invoice-importflow/internal/logger"
)

// Metric names
const (
	ImportProcessed    = "ImportProcessed"
	ImportRejected     = "ImportRejected"
	ImportTransient    = "ImportTransient"
	ImportFatal        = "ImportFatal"
	ImportIgnored      = "ImportIgnored"
	TransactionTimeout = "TransactionTimeout"
	UploadURLIssued    = "UploadUrlIssued"
	ImportCancelled    = "ImportCancelled"
)

// Recorder counts events. Implementations never fail the caller.
type Recorder interface {
	Incr(ctx context.Context, name string, dims map[string]string)
}

type noopRecorder struct{}

func (noopRecorder) Incr(context.Context, string, map[string]string) {}

// Noop returns a Recorder that drops everything.
func Noop() Recorder { return noopRecorder{} }

// CloudWatchRecorder publishes one Count datum per Incr.
type CloudWatchRecorder struct {
	client    aws.CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// New returns a CloudWatch-backed Recorder, or a noop one when namespace is empty.
func New(client aws.CloudWatchAPI, namespace string) Recorder {
	if client == nil || namespace == "" {
		return noopRecorder{}
	}
	return &CloudWatchRecorder{client: client, namespace: namespace, nowFunc: time.Now}
}

func (r *CloudWatchRecorder) Incr(ctx context.Context, name string, dims map[string]string) {
	datum := cwtypes.MetricDatum{
		MetricName: &name,
		Unit:       cwtypes.StandardUnitCount,
		Value:      float64Ptr(1),
		Timestamp:  timePtr(r.nowFunc()),
		Dimensions: dimensions(dims),
	}
	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &r.namespace,
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		logger.Errorf(ctx, err, "[metrics] put %s failed", name)
	}
}

// dimensions are sorted so identical maps produce identical series.
func dimensions(dims map[string]string) []cwtypes.Dimension {
	if len(dims) == 0 {
		return nil
	}
	keys := make([]string, 0, len(dims))
	for k, v := range dims {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]cwtypes.Dimension, 0, len(keys))
	for _, k := range keys {
		name, value := k, dims[k]
		out = append(out, cwtypes.Dimension{Name: &name, Value: &value})
	}
	return out
}

func float64Ptr(f float64) *float64 { return &f }

func timePtr(t time.Time) *time.Time { return &t }
