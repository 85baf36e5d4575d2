package handlers

import (
	"context"
	"net/url"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/go-invoice-importflow/internal/aws"
	"github.com/imrishuroy/go-invoice-importflow/internal/importer"
	"github.com/imrishuroy/go-invoice-importflow/internal/logger"
	"github.com/imrishuroy/go-invoice-importflow/internal/metrics"
)

// ContentProcessor imports one uploaded object.
type ContentProcessor interface {
	Process(ctx context.Context, bucket, key string) importer.Outcome
}

// ImportFailure is the message queued for an upload that hit an infrastructure error.
type ImportFailure struct {
	Bucket        string `json:"bucket"`
	Key           string `json:"key"`
	TransactionID string `json:"transactionId"`
	Reason        string `json:"reason"`
}

// S3Handler maps processing outcomes to logs, metrics and the failures queue.
type S3Handler struct {
	processor ContentProcessor
	failures  *aws.Publisher
	metrics   metrics.Recorder
}

// NewS3Handler creates an S3Handler. failures may be nil.
func NewS3Handler(p ContentProcessor, failures *aws.Publisher, rec metrics.Recorder) *S3Handler {
	if rec == nil {
		rec = metrics.Noop()
	}
	return &S3Handler{processor: p, failures: failures, metrics: rec}
}

// Handle processes every record and always reports success so the platform does not retry.
func (h *S3Handler) Handle(ctx context.Context, ev events.S3Event) error {
	for _, rec := range ev.Records {
		bucket := rec.S3.Bucket.Name
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			logger.Errorf(ctx, err, "[importer] undecodable object key %q", rec.S3.Object.Key)
			continue
		}
		h.handleOutcome(ctx, bucket, key, h.processor.Process(ctx, bucket, key))
	}
	return nil
}

func (h *S3Handler) handleOutcome(ctx context.Context, bucket, key string, out importer.Outcome) {
	ctx = logger.WithFields(ctx, "transactionId", key, "outcome", out.Kind.String())

	switch out.Kind {
	case importer.Success:
		h.metrics.Incr(ctx, metrics.ImportProcessed, nil)
	case importer.Ignored:
		logger.Infof(ctx, "[importer] ignored %s/%s: %s", bucket, key, out.Reason)
		h.metrics.Incr(ctx, metrics.ImportIgnored, nil)
	case importer.ValidationRejected:
		h.metrics.Incr(ctx, metrics.ImportRejected, nil)
	case importer.Fatal:
		logger.Errorf(ctx, out.Err, "[importer] cannot import %s/%s", bucket, key)
		h.metrics.Incr(ctx, metrics.ImportFatal, nil)
	case importer.Transient:
		logger.Errorf(ctx, out.Err, "[importer] import of %s/%s failed", bucket, key)
		h.metrics.Incr(ctx, metrics.ImportTransient, nil)
		h.enqueueFailure(ctx, bucket, key, out)
	}
}

func (h *S3Handler) enqueueFailure(ctx context.Context, bucket, key string, out importer.Outcome) {
	if !h.failures.Enabled() {
		return
	}
	msg := ImportFailure{Bucket: bucket, Key: key, TransactionID: out.TransactionID}
	if out.Err != nil {
		msg.Reason = out.Err.Error()
	}
	attrs := map[string]string{"transactionId": out.TransactionID, "outcome": out.Kind.String()}
	if err := h.failures.SendJSON(ctx, msg, attrs); err != nil {
		logger.Errorf(ctx, err, "[importer] could not queue failure for %s/%s", bucket, key)
	}
}
