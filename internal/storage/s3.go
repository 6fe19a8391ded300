package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hatemosphere/backup-janitor/internal/retention"
)

// DeleteObjects accepts at most 1000 keys per request.
const s3DeleteBatchSize = 1000

// S3Config holds configuration for the S3 client.
type S3Config struct {
	Bucket         string
	Prefix         string // key prefix (directory) holding the backups
	Region         string // default: "us-east-1"
	Endpoint       string // custom endpoint for MinIO, R2, B2, etc.
	ForcePathStyle bool   // force path-style addressing (for MinIO)
	MaxKeys        int32  // listing cap per run (default: 1000)
}

// S3Client implements Client for S3-compatible storage.
type S3Client struct {
	client  *s3.Client
	bucket  string
	prefix  string
	maxKeys int32
}

// NewS3Client creates a client for an S3-compatible store, using the
// default AWS credential chain.
func NewS3Client(ctx context.Context, cfg S3Config) (*S3Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("S3 bucket name is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		optFns = append(optFns, awsconfig.WithBaseEndpoint(cfg.Endpoint))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	clientOpts := []func(*s3.Options){}
	if cfg.ForcePathStyle {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return newS3Client(s3.NewFromConfig(awsCfg, clientOpts...), cfg), nil
}

// newS3Client wraps an already configured SDK client.
func newS3Client(client *s3.Client, cfg S3Config) *S3Client {
	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}
	return &S3Client{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, maxKeys: maxKeys}
}

func (c *S3Client) Name() string { return "s3" }

// List performs a single ListObjectsV2 call. Deliberately no
// continuation loop: a sweep works on a bounded window and the caller
// re-runs while the backend reports the listing as truncated.
func (c *S3Client) List(ctx context.Context) ([]retention.Backup, bool, error) {
	out, err := c.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.bucket),
		Prefix:  aws.String(c.prefix),
		MaxKeys: aws.Int32(c.maxKeys),
	})
	if err != nil {
		return nil, false, fmt.Errorf("list s3://%s/%s: %w", c.bucket, c.prefix, err)
	}

	backups := make([]retention.Backup, 0, len(out.Contents))
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		backups = append(backups, retention.Backup{
			ID:        key,
			DisplayID: strings.TrimPrefix(key, c.prefix),
			Timestamp: aws.ToTime(obj.LastModified).UTC(),
			Size:      aws.ToInt64(obj.Size),
		})
	}
	return backups, aws.ToBool(out.IsTruncated), nil
}

// Delete removes the given backups with batched DeleteObjects calls and
// returns the number of deletions the backend confirmed.
func (c *S3Client) Delete(ctx context.Context, backups []retention.Backup) (int, error) {
	deleted := 0
	for start := 0; start < len(backups); start += s3DeleteBatchSize {
		end := start + s3DeleteBatchSize
		if end > len(backups) {
			end = len(backups)
		}
		batch := backups[start:end]

		objects := make([]types.ObjectIdentifier, len(batch))
		for i, b := range batch {
			objects[i] = types.ObjectIdentifier{Key: aws.String(b.ID)}
		}

		out, err := c.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucket),
			Delete: &types.Delete{Objects: objects},
		})
		if err != nil {
			return deleted, fmt.Errorf("delete %d objects from s3://%s: %w", len(batch), c.bucket, err)
		}
		deleted += len(out.Deleted)
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return deleted, fmt.Errorf("delete s3://%s/%s: %s (%d of %d keys failed)",
				c.bucket, aws.ToString(e.Key), aws.ToString(e.Message), len(out.Errors), len(batch))
		}

		slog.Info("deleted backups", "backend", "s3", "bucket", c.bucket, "count", len(batch))
	}
	return deleted, nil
}
