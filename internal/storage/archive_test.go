package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/listmonk-relay/internal/mailersend"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestArchiveChunk(t *testing.T) {
	fake := &fakeS3{}
	a := NewS3ArchiveWithClient(fake, "relay-archive", "failed-chunks")
	a.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	emails := []mailersend.Email{{
		From:    mailersend.Address{Email: "news@example.com"},
		To:      []mailersend.Address{{Email: "reader@example.com"}},
		Subject: "Hi",
	}}
	err := a.ArchiveChunk(context.Background(), "cycle-1", 2, emails, "provider response: 422 Unprocessable Entity")
	require.NoError(t, err)

	assert.Equal(t, "relay-archive", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "failed-chunks/2026/03/01/cycle-1-002.json", aws.ToString(fake.input.Key))
	assert.Equal(t, "application/json", aws.ToString(fake.input.ContentType))

	var doc ArchivedChunk
	require.NoError(t, json.Unmarshal(fake.body, &doc))
	assert.Equal(t, "cycle-1", doc.CycleID)
	assert.Equal(t, 2, doc.Index)
	assert.Equal(t, "provider response: 422 Unprocessable Entity", doc.Reason)
	assert.Equal(t, emails, doc.Emails)
}

func TestArchiveChunkError(t *testing.T) {
	a := NewS3ArchiveWithClient(&fakeS3{err: errors.New("AccessDenied")}, "relay-archive", "failed-chunks")

	err := a.ArchiveChunk(context.Background(), "cycle-1", 0, nil, "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay-archive")
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestArchiveKeyWithoutCycle(t *testing.T) {
	a := NewS3ArchiveWithClient(&fakeS3{}, "b", "")
	at := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026/12/31/adhoc-010.json", a.Key(at, "", 10))
}
