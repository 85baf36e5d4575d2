package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type recordingSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (r *recordingSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.inputs = append(r.inputs, params)
	return &sqs.SendMessageOutput{}, nil
}

func TestPublisherEnabled(t *testing.T) {
	var nilPub *Publisher
	if nilPub.Enabled() {
		t.Fatal("nil publisher must be disabled")
	}
	if NewPublisher(&recordingSQS{}, "").Enabled() {
		t.Fatal("publisher without queue url must be disabled")
	}
	if !NewPublisher(&recordingSQS{}, "https://sqs/q").Enabled() {
		t.Fatal("expected enabled publisher")
	}
}

func TestSendJSONSkipsEmptyAttributes(t *testing.T) {
	fake := &recordingSQS{}
	p := NewPublisher(fake, "https://sqs/q")

	err := p.SendJSON(context.Background(), map[string]string{"key": "tx-1"}, map[string]string{
		"transactionId": "tx-1",
		"empty":         "",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.inputs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fake.inputs))
	}
	in := fake.inputs[0]
	if *in.MessageBody != `{"key":"tx-1"}` {
		t.Fatalf("unexpected body %s", *in.MessageBody)
	}
	if _, ok := in.MessageAttributes["empty"]; ok {
		t.Fatal("empty attribute should be skipped")
	}
	if got := *in.MessageAttributes["transactionId"].StringValue; got != "tx-1" {
		t.Fatalf("unexpected attribute %s", got)
	}
}

func TestSendMessageWrapsError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPublisher(&recordingSQS{err: boom}, "https://sqs/q")
	if err := p.SendMessage(context.Background(), "{}", nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
