package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gtstats/internal/domain"
)

var (
	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gtstats",
			Subsystem: "game_store",
			Name:      "operation_duration_seconds",
			Help:      "Histogram of object store operation latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"operation"},
	)

	storeOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gtstats",
			Subsystem: "game_store",
			Name:      "operation_errors_total",
			Help:      "Total number of failed object store operations",
		},
		[]string{"operation"},
	)
)

// GamePrefix is the key prefix under which saved games live.
const GamePrefix = "games/"

// S3API is the subset of the S3 client used by GameStore.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// GameStore keeps saved games as JSON documents at games/<id>.json.
// It makes no ordering promise; callers sort what List returns.
type GameStore struct {
	client S3API
	bucket string
	logger *slog.Logger
	now    func() time.Time
}

// NewGameStore creates a new GameStore over bucket.
func NewGameStore(client S3API, bucket string, logger *slog.Logger) *GameStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &GameStore{
		client: client,
		bucket: bucket,
		logger: logger,
		now:    time.Now,
	}
}

func observeStore(operation string, start time.Time, err error) {
	storeOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		storeOperationErrors.WithLabelValues(operation).Inc()
	}
}

// GameKey returns the object key for a game ID.
func GameKey(id string) string {
	return GamePrefix + id + ".json"
}

// NewGameID derives a key-safe ID from a timestamp, e.g. 2024-03-02T10-04-05-120Z.
func NewGameID(t time.Time) string {
	return strings.NewReplacer(":", "-", ".", "-").Replace(formatCreatedAt(t))
}

func formatCreatedAt(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// List loads every saved game. A record that fails to decode fails the
// whole listing with domain.ErrMalformedRecord.
func (s *GameStore) List(ctx context.Context) ([]*domain.GameRecord, error) {
	start := time.Now()

	keys, err := s.listKeys(ctx)
	if err != nil {
		observeStore("list", start, err)
		return nil, err
	}

	games := make([]*domain.GameRecord, 0, len(keys))
	for _, key := range keys {
		game, err := s.getByKey(ctx, key)
		if err != nil {
			observeStore("list", start, err)
			return nil, err
		}
		games = append(games, game)
	}

	observeStore("list", start, nil)
	s.logger.Debug("listed games",
		slog.String("bucket", s.bucket),
		slog.Int("count", len(games)),
		slog.Duration("duration", time.Since(start)),
	)
	return games, nil
}

func (s *GameStore) listKeys(ctx context.Context) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(GamePrefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list games: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, ".json") {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

// Get loads one game by ID. It returns domain.ErrNotFound when no such
// object exists.
func (s *GameStore) Get(ctx context.Context, id string) (*domain.GameRecord, error) {
	start := time.Now()
	game, err := s.getByKey(ctx, GameKey(id))
	if errors.Is(err, domain.ErrNotFound) {
		observeStore("get", start, nil)
		return nil, err
	}
	observeStore("get", start, err)
	return game, err
}

func (s *GameStore) getByKey(ctx context.Context, key string) (*domain.GameRecord, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	var game domain.GameRecord
	if err := json.Unmarshal(body, &game); err != nil {
		s.logger.Error("stored game is not valid JSON",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w: %v", key, domain.ErrMalformedRecord, err)
	}
	return &game, nil
}

// Put stores a new game. It assigns the record's ID and CreatedAt from the
// current time, overwriting whatever the caller set.
func (s *GameStore) Put(ctx context.Context, game *domain.GameRecord) error {
	start := time.Now()

	now := s.now()
	game.ID = NewGameID(now)
	game.CreatedAt = formatCreatedAt(now)

	body, err := json.MarshalIndent(game, "", "  ")
	if err != nil {
		observeStore("put", start, err)
		return fmt.Errorf("failed to encode game: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(GameKey(game.ID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	observeStore("put", start, err)
	if err != nil {
		s.logger.Error("failed to store game",
			slog.String("id", game.ID),
			slog.String("bucket", s.bucket),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to store game %s: %w", game.ID, err)
	}

	s.logger.Info("game stored",
		slog.String("id", game.ID),
		slog.String("bucket", s.bucket),
		slog.Int("size", len(body)),
	)
	return nil
}

// Ping checks that the bucket is reachable.
func (s *GameStore) Ping(ctx context.Context) error {
	start := time.Now()
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	observeStore("ping", start, err)
	if err != nil {
		return fmt.Errorf("bucket %s unreachable: %w", s.bucket, err)
	}
	return nil
}

// S3Config holds what is needed to build an S3 client. Endpoint is only set
// for S3-compatible stores such as MinIO or R2.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// NewS3Client builds an S3 client. Static credentials are used when given,
// otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}
