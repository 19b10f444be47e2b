package catalog

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/kiranshivaraju/propchat/internal/config"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

// ObjectGetter is the slice of the S3 API the object-store source needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ObjectStoreSource reads <prefix>/<tenant>/properties.json from an
// S3-compatible bucket (AWS, GCS interoperability endpoint, MinIO).
type ObjectStoreSource struct {
	client ObjectGetter
	bucket string
	prefix string
}

// NewObjectStoreSource creates a source over an existing client.
func NewObjectStoreSource(client ObjectGetter, bucket, prefix string) *ObjectStoreSource {
	return &ObjectStoreSource{client: client, bucket: bucket, prefix: prefix}
}

// NewS3Client builds an S3 client from config. Static credentials are used when
// both keys are set, otherwise the default credential chain applies.
func NewS3Client(ctx context.Context, cfg config.ObjectStoreConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	}), nil
}

func (s *ObjectStoreSource) Name() string { return "objectstore" }

func (s *ObjectStoreSource) Key(tenantID string) string {
	return path.Join(s.prefix, models.TenantDomain(tenantID), "properties.json")
}

func (s *ObjectStoreSource) Load(ctx context.Context, tenantID string) ([]models.Property, error) {
	if _, err := safeName(tenantID); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.Key(tenantID)),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", s.Key(tenantID), err)
	}
	defer out.Body.Close()

	return decodeCatalog(out.Body)
}
