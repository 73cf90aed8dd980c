package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioSink writes training records as JSON objects under
// training/<yyyy-mm-dd>/<id>.json so date ranges can be exported for
// training runs with a simple prefix listing.
type MinioSink struct {
	client *minio.Client
	bucket string
}

type MinioConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// NewMinioSink connects and ensures the bucket exists. Connection problems
// here are startup-fatal, matching the rest of the backends.
func NewMinioSink(ctx context.Context, cfg MinioConfig) (*MinioSink, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}

	return &MinioSink{client: cli, bucket: cfg.Bucket}, nil
}

func (s *MinioSink) Store(ctx context.Context, rec TrainingRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal training record: %w", err)
	}

	key := fmt.Sprintf("training/%s/%s.json", rec.CreatedAt.Format("2006-01-02"), rec.ID)

	_, err = s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return fmt.Errorf("minio put %s: %w", key, err)
	}

	return nil
}
