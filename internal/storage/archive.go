// Package storage archives chunks the provider rejected so operators can
// inspect them later.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/listmonk-relay/internal/config"
	"github.com/ignite/listmonk-relay/internal/mailersend"
)

// ObjectPutter is the subset of the S3 client the archive uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchivedChunk is the JSON document written for each rejected chunk.
type ArchivedChunk struct {
	CycleID    string             `json:"cycle_id"`
	Index      int                `json:"chunk_index"`
	Reason     string             `json:"reason"`
	ArchivedAt time.Time          `json:"archived_at"`
	Emails     []mailersend.Email `json:"emails"`
}

// S3Archive writes rejected chunks to an S3 bucket.
type S3Archive struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Archive loads AWS config (optionally from a named profile) and
// creates the archive.
func NewS3Archive(ctx context.Context, cfg config.ArchiveConfig) (*S3Archive, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.AWSProfile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewS3ArchiveWithClient(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.Prefix), nil
}

// NewS3ArchiveWithClient wraps an existing S3 client.
func NewS3ArchiveWithClient(client ObjectPutter, bucket, prefix string) *S3Archive {
	return &S3Archive{
		client: client,
		bucket: bucket,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Key returns the object key for a chunk, partitioned by day.
func (a *S3Archive) Key(at time.Time, cycleID string, index int) string {
	if cycleID == "" {
		cycleID = "adhoc"
	}
	return path.Join(a.prefix, at.Format("2006/01/02"), fmt.Sprintf("%s-%03d.json", cycleID, index))
}

// ArchiveChunk writes the chunk as JSON.
func (a *S3Archive) ArchiveChunk(ctx context.Context, cycleID string, index int, emails []mailersend.Email, reason string) error {
	now := a.now()
	data, err := json.Marshal(ArchivedChunk{
		CycleID:    cycleID,
		Index:      index,
		Reason:     reason,
		ArchivedAt: now,
		Emails:     emails,
	})
	if err != nil {
		return fmt.Errorf("marshaling chunk: %w", err)
	}

	key := a.Key(now, cycleID, index)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting object to S3 bucket %s: %w", a.bucket, err)
	}
	return nil
}
