package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-invoice-importflow/internal/aws"
	"github.com/imrishuroy/go-invoice-importflow/internal/aws/awstest"
	"github.com/imrishuroy/go-invoice-importflow/internal/broker"
	"github.com/imrishuroy/go-invoice-importflow/internal/cancel"
	"github.com/imrishuroy/go-invoice-importflow/internal/channel"
	"github.com/imrishuroy/go-invoice-importflow/internal/eventlog"
	"github.com/imrishuroy/go-invoice-importflow/internal/importer"
	"github.com/imrishuroy/go-invoice-importflow/internal/invoices"
	"github.com/imrishuroy/go-invoice-importflow/internal/metrics"
	"github.com/imrishuroy/go-invoice-importflow/internal/objects"
	"github.com/imrishuroy/go-invoice-importflow/internal/reaper"
	"github.com/imrishuroy/go-invoice-importflow/internal/sweep"
	"github.com/imrishuroy/go-invoice-importflow/internal/transactions"
)

const (
	table  = "invoices"
	bucket = "uploads"
)

// system wires every component over one set of fakes, the way the cmd packages do.
type system struct {
	db       *awstest.FakeDynamo
	s3       *awstest.FakeS3
	conns    *awstest.FakeConnections
	sqs      *awstest.FakeSQS
	cw       *awstest.FakeCloudWatch
	txs      *transactions.Store
	invoices *invoices.Store

	ws     *WebSocketHandler
	s3h    *S3Handler
	stream *StreamHandler
	router *gin.Engine
}

func newSystem(t *testing.T) *system {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &system{
		db:    awstest.NewFakeDynamo(),
		s3:    awstest.NewFakeS3(),
		conns: awstest.NewFakeConnections(),
		sqs:   &awstest.FakeSQS{},
		cw:    &awstest.FakeCloudWatch{},
	}
	s.txs = transactions.NewStore(s.db, table)
	s.invoices = invoices.NewStore(s.db, table)
	objs := objects.NewStore(s.s3, s.s3, bucket)
	notifier := channel.New(s.conns)
	rec := metrics.New(s.cw, "Invoices")

	b := broker.New(objs, s.txs, notifier, rec, broker.Options{Timebox: 5 * time.Minute, URLExpiry: 5 * time.Minute})
	s.ws = NewWebSocketHandler(b, cancel.New(s.txs, notifier, rec))
	s.s3h = NewS3Handler(importer.NewProcessor(s.txs, s.invoices, objs, notifier), aws.NewPublisher(s.sqs, "https://sqs/failures"), rec)
	s.stream = NewStreamHandler(reaper.New(notifier, rec), eventlog.NewRecorder(s.db, "events", time.Hour))

	s.router = gin.New()
	RegisterRoutes(s.router, HandlerConfig{
		Transactions: s.txs,
		Invoices:     s.invoices,
		Sweeper:      sweep.New(s.txs, notifier, rec),
	})
	return s
}

func wsRequest(route, connID, body string) events.APIGatewayWebsocketProxyRequest {
	return events.APIGatewayWebsocketProxyRequest{
		Body: body,
		RequestContext: events.APIGatewayWebsocketProxyRequestContext{
			RouteKey:     route,
			ConnectionID: connID,
			RequestID:    "req-" + connID,
		},
	}
}

func s3Event(key string) events.S3Event {
	return events.S3Event{Records: []events.S3EventRecord{{
		EventName: "ObjectCreated:Put",
		S3: events.S3Entity{
			Bucket: events.S3Bucket{Name: bucket},
			Object: events.S3Object{Key: key},
		},
	}}}
}

func (s *system) frames(t *testing.T, connID string) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, p := range s.conns.Posts(connID) {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(p, &m))
		out = append(out, m)
	}
	return out
}

func (s *system) requestUpload(t *testing.T, connID string) string {
	t.Helper()
	resp, err := s.ws.Handle(context.Background(), wsRequest(RouteGetImportURL, connID, `{"action":"getImportUrl"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	frames := s.frames(t, connID)
	require.NotEmpty(t, frames)
	return frames[0]["transactionId"].(string)
}

func TestEndToEnd_HappyPath(t *testing.T) {
	s := newSystem(t)
	id := s.requestUpload(t, "conn-1")

	first := s.frames(t, "conn-1")[0]
	assert.Equal(t, float64(300), first["expiresInSeconds"])
	assert.Contains(t, first["url"], id)

	s.s3.PutObject(bucket, id, []byte(`{"invoiceNumber":"AB123","customerName":"Jane","totalValue":42.5,"productId":"P9","quantity":2}`))
	require.NoError(t, s.s3h.Handle(context.Background(), s3Event(id)))

	frames := s.frames(t, "conn-1")
	require.Len(t, frames, 3)
	assert.Equal(t, "RECEIVED", frames[1]["status"])
	assert.Equal(t, "PROCESSED", frames[2]["status"])
	assert.Equal(t, float64(1), s.cw.Count(metrics.ImportProcessed))

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invoices/Jane/AB123", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var inv map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inv))
	assert.Equal(t, 42.5, inv["totalValue"])
	assert.Equal(t, id, inv["transactionId"])

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transactions/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"PROCESSED"`)
}

func TestEndToEnd_TimeoutViaStream(t *testing.T) {
	s := newSystem(t)
	id := s.requestUpload(t, "conn-2")
	tx, err := s.txs.Get(context.Background(), id)
	require.NoError(t, err)

	ev := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{{
		EventID:   "1",
		EventName: "REMOVE",
		Change: events.DynamoDBStreamRecord{OldImage: map[string]events.DynamoDBAttributeValue{
			"pk":                events.NewStringAttribute(tx.PK),
			"sk":                events.NewStringAttribute(tx.TransactionID),
			"ttl":               events.NewNumberAttribute("1700000300"),
			"connectionId":      events.NewStringAttribute(tx.ConnectionID),
			"transactionStatus": events.NewStringAttribute(string(tx.Status)),
		}},
		UserIdentity: &events.DynamoDBUserIdentity{Type: "Service", PrincipalID: aws.TTLPrincipal},
	}}}
	require.NoError(t, s.stream.Handle(context.Background(), ev))

	frames := s.frames(t, "conn-2")
	require.Len(t, frames, 2)
	assert.Equal(t, "TIMEOUT", frames[1]["status"])
	assert.Equal(t, 1, s.conns.Closed("conn-2"))
}

func TestStream_ExplicitDeleteDoesNotTimeOut(t *testing.T) {
	s := newSystem(t)
	ev := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{{
		EventName: "REMOVE",
		Change: events.DynamoDBStreamRecord{OldImage: map[string]events.DynamoDBAttributeValue{
			"pk":                events.NewStringAttribute(transactions.Partition),
			"sk":                events.NewStringAttribute("tx"),
			"connectionId":      events.NewStringAttribute("conn-x"),
			"transactionStatus": events.NewStringAttribute("GENERATED"),
		}},
	}}}
	require.NoError(t, s.stream.Handle(context.Background(), ev))
	assert.Empty(t, s.conns.Posts("conn-x"))
}

func TestStream_InvoiceInsertRecordsEvent(t *testing.T) {
	s := newSystem(t)
	ev := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		{
			EventName: "INSERT",
			Change: events.DynamoDBStreamRecord{NewImage: map[string]events.DynamoDBAttributeValue{
				"pk":                events.NewStringAttribute(transactions.Partition),
				"sk":                events.NewStringAttribute("tx"),
				"transactionStatus": events.NewStringAttribute("GENERATED"),
			}},
		},
		{
			EventName: "INSERT",
			Change: events.DynamoDBStreamRecord{NewImage: map[string]events.DynamoDBAttributeValue{
				"pk":            events.NewStringAttribute("#invoice_Jane"),
				"sk":            events.NewStringAttribute("AB123"),
				"ttl":           events.NewNumberAttribute("0"),
				"totalValue":    events.NewNumberAttribute("42.5"),
				"productId":     events.NewStringAttribute("P9"),
				"quantity":      events.NewNumberAttribute("2"),
				"transactionId": events.NewStringAttribute("T1"),
				"createdAt":     events.NewNumberAttribute("1700000000123"),
			}},
		},
	}}
	require.NoError(t, s.stream.Handle(context.Background(), ev))

	assert.Equal(t, 1, s.db.Len("events"))
	assert.NotNil(t, s.db.Get("events", "#invoice_AB123", "INVOICE_CREATED#1700000000123"))
}

func TestS3Handler_TransientOutcomeIsQueued(t *testing.T) {
	s := newSystem(t)
	s.db.FailOn("GetItem", errors.New("throttled"))

	require.NoError(t, s.s3h.Handle(context.Background(), s3Event("tx-1")))

	sent := s.sqs.Sent()
	require.Len(t, sent, 1)
	var msg ImportFailure
	require.NoError(t, json.Unmarshal([]byte(*sent[0].MessageBody), &msg))
	assert.Equal(t, ImportFailure{Bucket: bucket, Key: "tx-1", TransactionID: "tx-1", Reason: msg.Reason}, msg)
	assert.Contains(t, msg.Reason, "throttled")
	assert.Equal(t, float64(1), s.cw.Count(metrics.ImportTransient))
}

func TestS3Handler_IgnoredOutcomeIsNotQueued(t *testing.T) {
	s := newSystem(t)
	require.NoError(t, s.s3h.Handle(context.Background(), s3Event("unknown")))
	assert.Empty(t, s.sqs.Sent())
	assert.Equal(t, float64(1), s.cw.Count(metrics.ImportIgnored))
}

func TestS3Handler_DecodesKey(t *testing.T) {
	s := newSystem(t)
	require.NoError(t, s.txs.Create(context.Background(), transactions.Transaction{
		TransactionID: "a b", TTL: time.Now().Add(time.Minute).Unix(), ConnectionID: "conn-ab", Status: transactions.StatusGenerated,
	}))
	s.s3.PutObject(bucket, "a b", []byte(`{"invoiceNumber":"AB123","customerName":"Jane","totalValue":1,"productId":"P9","quantity":1}`))

	require.NoError(t, s.s3h.Handle(context.Background(), s3Event("a+b")))
	assert.Equal(t, float64(1), s.cw.Count(metrics.ImportProcessed))
}

func TestWebSocket_CancelImport(t *testing.T) {
	s := newSystem(t)
	id := s.requestUpload(t, "conn-3")

	resp, err := s.ws.Handle(context.Background(), wsRequest(RouteCancelImport, "conn-3", `{"action":"cancelImport","transactionId":"`+id+`"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	frames := s.frames(t, "conn-3")
	assert.Equal(t, "CANCELLED", frames[len(frames)-1]["status"])

	// an upload arriving after the cancel only hears the terminal status again
	s.s3.PutObject(bucket, id, []byte(`{"invoiceNumber":"AB123","customerName":"Jane","totalValue":1,"productId":"P9","quantity":1}`))
	require.NoError(t, s.s3h.Handle(context.Background(), s3Event(id)))
	frames = s.frames(t, "conn-3")
	assert.Equal(t, "CANCELLED", frames[len(frames)-1]["status"])
}

func TestWebSocket_BadRequests(t *testing.T) {
	s := newSystem(t)

	resp, err := s.ws.Handle(context.Background(), wsRequest(RouteCancelImport, "conn-4", `{"transactionId":""}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = s.ws.Handle(context.Background(), wsRequest(RouteCancelImport, "conn-4", `not json`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = s.ws.Handle(context.Background(), wsRequest("$default", "conn-4", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_NotFound(t *testing.T) {
	s := newSystem(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transactions/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invoices/Jane/AB123", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_ListInvoices(t *testing.T) {
	s := newSystem(t)
	for _, n := range []string{"AB123", "AB124"} {
		require.NoError(t, s.invoices.Create(context.Background(), invoices.New(invoices.File{
			InvoiceNumber: n, CustomerName: "Jane", TotalValue: 1, ProductID: "P9", Quantity: 1,
		}, "tx-"+n, time.Now())))
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invoices/Jane", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Invoices []map[string]interface{} `json:"invoices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Invoices, 2)
}

func TestAPI_Sweep(t *testing.T) {
	s := newSystem(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/sweep", strings.NewReader(`{"limit":5000}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/sweep", strings.NewReader(`{"limit":10}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"scanned":0`)
}
