package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/terra-graph/newsgraph/internal/util"
)

// Archive stores raw fetch snapshots in an S3 bucket so pipeline runs can
// be replayed long after the state-store copies expired.
type Archive struct {
	client *s3.Client
	bucket string
}

// NewArchive builds the archive from the AWS_* environment variables.
// Returns nil when no bucket is configured; callers treat a nil archive as
// archiving disabled.
func NewArchive(ctx context.Context) *Archive {
	bucket := util.GetEnvString("AWS_BUCKET", "")
	if bucket == "" {
		return nil
	}

	region := util.GetEnv("AWS_REGION")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	)
	if err != nil {
		return nil
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return &Archive{client: client, bucket: bucket}
}

// PutSnapshot writes one raw response body under the given key.
func (a *Archive) PutSnapshot(ctx context.Context, key string, body []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot to S3: %v", err)
	}
	return nil
}

// GetSnapshot reads a previously archived response body.
func (a *Archive) GetSnapshot(ctx context.Context, key string) ([]byte, error) {
	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot from S3: %v", err)
	}
	defer result.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, result.Body); err != nil {
		return nil, fmt.Errorf("failed to read snapshot contents: %v", err)
	}
	return buf.Bytes(), nil
}
