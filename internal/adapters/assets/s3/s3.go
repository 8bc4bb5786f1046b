package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "dog-adoption-service/internal/config"
	"dog-adoption-service/internal/ports/storage"
)

// Store sirve los binarios desde un bucket S3 (o compatible, tipo MinIO).
// El content-type se persiste como metadato del objeto.
type Store struct {
	client    *awss3.Client
	uploader  *manager.Uploader
	bucket    string
	publicURL string
}

func New(ctx context.Context, cfg *appconfig.Config) (*Store, error) {
	if cfg.S3Bucket == "" || cfg.S3Region == "" {
		return nil, errors.New("s3 bucket and region must be configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	return &Store{
		client:    client,
		uploader:  manager.NewUploader(client),
		bucket:    cfg.S3Bucket,
		publicURL: strings.TrimRight(cfg.S3PublicURL, "/"),
	}, nil
}

func key(kind storage.Kind, id string) string {
	return string(kind) + "/" + id
}

func (s *Store) Upload(ctx context.Context, kind storage.Kind, id string, r io.Reader, contentType string) error {
	_, err := s.uploader.Upload(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key(kind, id)),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key(kind, id), err)
	}
	return nil
}

func (s *Store) Open(ctx context.Context, kind storage.Kind, id string) (io.ReadCloser, storage.ObjectInfo, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key(kind, id)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
		}
		return nil, storage.ObjectInfo{}, fmt.Errorf("get %s: %w", key(kind, id), err)
	}

	return out.Body, storage.ObjectInfo{
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
	}, nil
}

func (s *Store) Stat(ctx context.Context, kind storage.Kind, id string) (storage.ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key(kind, id)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return storage.ObjectInfo{}, storage.ErrObjectNotFound
		}
		return storage.ObjectInfo{}, fmt.Errorf("head %s: %w", key(kind, id), err)
	}

	return storage.ObjectInfo{
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
	}, nil
}

// Delete es idempotente: S3 responde OK aunque el objeto no exista.
func (s *Store) Delete(ctx context.Context, kind storage.Kind, id string) error {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key(kind, id)),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key(kind, id), err)
	}
	return nil
}

func (s *Store) PublicURL(kind storage.Kind, id string) string {
	if s.publicURL == "" {
		return ""
	}
	return s.publicURL + "/" + key(kind, id)
}

// CloudBacked: con URL pública configurada el read path redirige en vez de
// proxyear bytes.
func (s *Store) CloudBacked() bool {
	return s.publicURL != ""
}
