// Package s3backup stores board snapshots in S3 or any S3-compatible object store.
package s3backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/charmbracelet/log"

	"github.com/hylla/tavla/internal/app"
)

// keyLayout sorts lexically in time order.
const keyLayout = "20060102T150405.000Z"

// ErrNoBackup reports a missing backup object or an empty prefix.
var ErrNoBackup = errors.New("backup not found")

// Config holds connection and placement settings.
type Config struct {
	Endpoint     string
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	Prefix       string
}

// ObjectStore is the subset of the S3 API used for backups.
type ObjectStore interface {
	PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// NewClient builds an S3 client. A custom endpoint targets MinIO and similar services.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// Store pushes and pulls snapshots under one bucket prefix.
type Store struct {
	client ObjectStore
	bucket string
	prefix string
	clock  func() time.Time
	logger *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to name new backups.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger for backup diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new value for this package.
func New(client ObjectStore, cfg Config, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("object store client is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("backup bucket is required")
	}
	s := &Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
		clock:  time.Now,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ObjectKey returns the object key for a backup taken at the given time.
func ObjectKey(prefix string, at time.Time) string {
	name := at.UTC().Format(keyLayout) + ".json"
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// Push uploads a snapshot as JSON and returns its object key.
func (s *Store) Push(ctx context.Context, snap app.Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := app.EncodeSnapshot(&buf, snap, app.SnapshotFormatJSON); err != nil {
		return "", fmt.Errorf("encode backup: %w", err)
	}
	key := ObjectKey(s.prefix, s.clock())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload backup %s: %w", key, err)
	}
	s.logger.Info("backup pushed", "bucket", s.bucket, "key", key, "boards", len(snap.Boards), "bytes", buf.Len())
	return key, nil
}

// Pull downloads one snapshot. An empty key selects the newest backup.
func (s *Store) Pull(ctx context.Context, key string) (app.Snapshot, string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		latest, err := s.Latest(ctx)
		if err != nil {
			return app.Snapshot{}, "", err
		}
		key = latest
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return app.Snapshot{}, "", fmt.Errorf("%w: %s", ErrNoBackup, key)
		}
		return app.Snapshot{}, "", fmt.Errorf("download backup %s: %w", key, err)
	}
	defer out.Body.Close()
	snap, err := app.DecodeSnapshot(out.Body, app.SnapshotFormatJSON)
	if err != nil {
		return app.Snapshot{}, "", fmt.Errorf("backup %s: %w", key, err)
	}
	s.logger.Info("backup pulled", "bucket", s.bucket, "key", key, "boards", len(snap.Boards))
	return snap, key, nil
}

// List returns every backup key under the prefix, oldest first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix + "/")
	}
	var keys []string
	pager := s3.NewListObjectsV2Paginator(s.client, input)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list backups: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, ".json") {
				keys = append(keys, key)
			}
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Latest returns the newest backup key.
func (s *Store) Latest(ctx context.Context) (string, error) {
	keys, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", fmt.Errorf("%w: no backups under %q", ErrNoBackup, s.prefix)
	}
	return keys[len(keys)-1], nil
}

// isNotFound reports whether err is a missing-object API error.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound":
		return true
	default:
		return false
	}
}
