package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store складывает исходные и выгруженные книги в S3/R2. Ошибки только логируются.
type Store struct {
	client putter
	bucket string
	log    *slog.Logger
	now    func() time.Time
}

func New(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Store{client: client, bucket: cfg.Bucket, log: log, now: time.Now}, nil
}

func ImportKey(userID uuid.UUID, at time.Time, name string) string {
	return path.Join("imports", userID.String(), at.UTC().Format("20060102T150405Z")+"_"+safeName(name))
}

func ExportKey(userID uuid.UUID, name string) string {
	return path.Join("exports", userID.String(), safeName(name))
}

func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file.xlsx"
	}
	return strings.ReplaceAll(name, " ", "_")
}

func (s *Store) SaveImport(ctx context.Context, userID uuid.UUID, name string, data []byte) {
	if s == nil {
		return
	}
	s.put(ctx, ImportKey(userID, s.now(), name), data)
}

func (s *Store) SaveExport(ctx context.Context, userID uuid.UUID, name string, data []byte) {
	s.put(ctx, ExportKey(userID, name), data)
}

func (s *Store) put(ctx context.Context, key string, data []byte) {
	if s == nil {
		return
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(xlsxContentType),
	})
	if err != nil {
		s.log.Warn("archive upload failed", "key", key, "err", err)
		return
	}
	s.log.Debug("archived", "key", key, "bytes", len(data))
}
