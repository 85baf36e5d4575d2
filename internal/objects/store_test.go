package objects

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-invoice-importflow/internal/aws/awstest"
)

func TestPresignPutCarriesExpiry(t *testing.T) {
	fake := awstest.NewFakeS3()
	s := NewStore(fake, fake, "uploads")

	url, err := s.PresignPut(context.Background(), "tx-1", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.Contains(url, "uploads"))
	assert.True(t, strings.Contains(url, "/tx-1"))
	assert.True(t, strings.Contains(url, "X-Amz-Expires=300"))
}

func TestPresignPutError(t *testing.T) {
	fake := awstest.NewFakeS3()
	fake.PresignErr = errors.New("no credentials")
	_, err := NewStore(fake, fake, "uploads").PresignPut(context.Background(), "tx-1", time.Minute)
	require.Error(t, err)
}

func TestReadAndDelete(t *testing.T) {
	fake := awstest.NewFakeS3()
	fake.PutObject("uploads", "tx-1", []byte(`{"invoiceNumber":"ABCDE"}`))
	s := NewStore(fake, fake, "uploads")
	ctx := context.Background()

	body, err := s.Read(ctx, "", "tx-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"invoiceNumber":"ABCDE"}`, string(body))

	require.NoError(t, s.Delete(ctx, "uploads", "tx-1"))
	assert.False(t, fake.Has("uploads", "tx-1"))

	_, err = s.Read(ctx, "uploads", "tx-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReadRejectsOversizedObject(t *testing.T) {
	fake := awstest.NewFakeS3()
	fake.PutObject("uploads", "big", bytes.Repeat([]byte("x"), MaxObjectSize+1))

	_, err := NewStore(fake, fake, "uploads").Read(context.Background(), "uploads", "big")
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestReadTreatsGenericNoSuchKeyAsNotFound(t *testing.T) {
	fake := awstest.NewFakeS3()
	fake.GetErr = &smithy.GenericAPIError{Code: "NoSuchKey", Message: "not here"}

	_, err := NewStore(fake, fake, "uploads").Read(context.Background(), "uploads", "tx-1")
	require.ErrorIs(t, err, ErrNotFound)

	fake.GetErr = &smithy.GenericAPIError{Code: "AccessDenied"}
	_, err = NewStore(fake, fake, "uploads").Read(context.Background(), "uploads", "tx-1")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNotFound))
}
