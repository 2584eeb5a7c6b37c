package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/agronomy/pkg/config"
)

var tracer = otel.Tracer("github.com/platinummonkey/agronomy/pkg/storage")

// S3API is the part of the S3 client the object reader uses
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Reader reads whole objects addressed by s3:// URLs
type S3Reader struct {
	client S3API
}

// NewS3Reader builds an S3 client from the inference settings. Static keys
// are used when both are set; otherwise the default credential chain.
func NewS3Reader(ctx context.Context, cfg config.InferenceConfig) (*S3Reader, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})
	return &S3Reader{client: client}, nil
}

// NewS3ReaderWithClient wraps an existing client
func NewS3ReaderWithClient(client S3API) *S3Reader {
	return &S3Reader{client: client}
}

// ParseS3URL splits s3://bucket/key
func ParseS3URL(raw string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 URL: %q", raw)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 URL needs a bucket and a key: %q", raw)
	}
	return bucket, key, nil
}

// ReadObject fetches the object at an s3:// URL
func (r *S3Reader) ReadObject(ctx context.Context, url string) ([]byte, error) {
	bucket, key, err := ParseS3URL(url)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "S3.GetObject",
		trace.WithAttributes(
			attribute.String("s3.bucket", bucket),
			attribute.String("s3.key", key),
		),
	)
	defer span.End()

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get object from s3")
		return nil, fmt.Errorf("failed to get object from s3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read object body")
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	span.SetAttributes(attribute.Int("content.size", len(data)))
	return data, nil
}
