// Package s3archive mirrors archived manifests to S3 as JSON documents.
package s3archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/example/galley/internal/ports/secondary"
)

// putObjectAPI is the part of *s3.Client the mirror uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Mirror implements secondary.ArchiveMirror on an S3 bucket.
type Mirror struct {
	client putObjectAPI
	bucket string
	prefix string
}

var _ secondary.ArchiveMirror = (*Mirror)(nil)

// New loads the default AWS configuration (env, shared config, instance role) for region.
func New(ctx context.Context, region, bucket, prefix string) (*Mirror, error) {
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewWithClient builds a mirror around an existing client.
func NewWithClient(client putObjectAPI, bucket, prefix string) *Mirror {
	return &Mirror{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key for an archived manifest: <prefix><delivery date>/<id>.json.
func (m *Mirror) Key(a *secondary.ArchivedManifestRecord) string {
	return m.prefix + path.Join(a.Manifest.DeliveryDate, a.Manifest.ID+".json")
}

// Mirror uploads the archived manifest. Re-mirroring overwrites the object.
func (m *Mirror) Mirror(ctx context.Context, a *secondary.ArchivedManifestRecord) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode archived manifest: %w", err)
	}
	key := m.Key(a)
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", m.bucket, key, err)
	}
	return nil
}
