package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	kafkalib "github.com/segmentio/kafka-go"

	"gtstats/internal/kafka"
	"gtstats/internal/repository"
)

// AppContext is the central dependency injection container for the application.
// It holds all initialized connections, configuration, and provides lifecycle management.
type AppContext struct {
	Config      *Config
	Logger      *slog.Logger
	S3          *s3.Client
	Producer    *kafkalib.Writer
	Consumer    *kafkalib.Reader
	RetryWriter *kafkalib.Writer
	DeadWriter  *kafkalib.Writer
	ClickHouse  driver.Conn
	Servers     []*http.Server

	stopHooks  []func()
	shutdownCh chan struct{}
}

// ContextOptions configures which components to initialize.
type ContextOptions struct {
	InitStore    bool // S3 client for saved games (API server)
	InitProducer bool // checkpoint writer (API server)
	InitConsumer bool // checkpoint reader plus retry and dead letter writers (consumer)
}

// NewContext creates and initializes a new AppContext with all dependencies.
// ClickHouse is always connected; opts selects the rest.
func NewContext(ctx context.Context, cfg *Config, logger *slog.Logger, opts ContextOptions) (*AppContext, error) {
	c := &AppContext{
		Config:     cfg,
		Logger:     logger,
		shutdownCh: make(chan struct{}),
	}

	if err := c.initClickHouse(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize ClickHouse: %w", err)
	}
	logger.Info("ClickHouse connection established",
		slog.String("host", cfg.ClickHouse.Host),
		slog.Int("port", cfg.ClickHouse.Port),
		slog.String("database", cfg.ClickHouse.Database),
		slog.Bool("dsn", cfg.ClickHouse.DSN != ""),
	)

	if opts.InitStore {
		if err := c.initS3(ctx); err != nil {
			_ = c.ClickHouse.Close()
			return nil, fmt.Errorf("failed to initialize S3: %w", err)
		}
		logger.Info("S3 client initialized",
			slog.String("bucket", cfg.Storage.Bucket),
			slog.String("region", cfg.Storage.Region),
			slog.String("endpoint", cfg.Storage.Endpoint),
		)
	}

	if opts.InitProducer {
		c.Producer = c.newWriter(cfg.Kafka.TopicCheckpoints)
		logger.Info("Kafka producer initialized",
			slog.Any("brokers", cfg.Kafka.Brokers),
			slog.String("topic", cfg.Kafka.TopicCheckpoints),
		)
	}

	if opts.InitConsumer {
		c.Consumer = kafka.NewReader(kafka.DefaultReaderConfig(
			cfg.Kafka.Brokers,
			cfg.Kafka.TopicCheckpoints,
			cfg.Consumer.ConsumerGroup,
			cfg.Consumer.FlushInterval,
		))
		c.RetryWriter = c.newWriter(cfg.Kafka.TopicRetry)
		c.DeadWriter = c.newWriter(cfg.Kafka.TopicDead)
		logger.Info("Kafka consumer initialized",
			slog.Any("brokers", cfg.Kafka.Brokers),
			slog.String("topic", cfg.Kafka.TopicCheckpoints),
			slog.String("retry_topic", cfg.Kafka.TopicRetry),
			slog.String("dead_topic", cfg.Kafka.TopicDead),
			slog.String("group", cfg.Consumer.ConsumerGroup),
		)
	}

	return c, nil
}

// NewServerContext creates an AppContext for the API server.
func NewServerContext(ctx context.Context, cfg *Config, logger *slog.Logger) (*AppContext, error) {
	return NewContext(ctx, cfg, logger, ContextOptions{InitStore: true, InitProducer: true})
}

// NewConsumerContext creates an AppContext for the checkpoint consumer.
func NewConsumerContext(ctx context.Context, cfg *Config, logger *slog.Logger) (*AppContext, error) {
	return NewContext(ctx, cfg, logger, ContextOptions{InitConsumer: true})
}

func (c *AppContext) initClickHouse(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	ch := c.Config.ClickHouse
	if ch.DSN != "" {
		conn, err := repository.NewConnectionFromDSN(ctx, ch.DSN)
		if err != nil {
			return err
		}
		c.ClickHouse = conn
		return nil
	}

	connCfg := repository.DefaultConnectionConfig()
	connCfg.Hosts = []string{ch.Host + ":" + strconv.Itoa(ch.Port)}
	connCfg.Database = ch.Database
	connCfg.Username = ch.User
	connCfg.Password = ch.Password

	conn, err := repository.NewConnection(ctx, connCfg)
	if err != nil {
		return err
	}
	c.ClickHouse = conn
	return nil
}

func (c *AppContext) initS3(ctx context.Context) error {
	st := c.Config.Storage
	client, err := repository.NewS3Client(ctx, repository.S3Config{
		Region:          st.Region,
		Endpoint:        st.Endpoint,
		AccessKeyID:     st.AccessKeyID,
		SecretAccessKey: st.SecretAccessKey,
		UsePathStyle:    st.UsePathStyle,
	})
	if err != nil {
		return err
	}
	c.S3 = client
	return nil
}

func (c *AppContext) newWriter(topic string) *kafkalib.Writer {
	return kafka.NewWriter(kafka.DefaultWriterConfig(c.Config.Kafka.Brokers, topic, c.Config.Kafka.ProducerTimeout))
}

// AddServer registers an HTTP server to be shut down first.
func (c *AppContext) AddServer(server *http.Server) {
	c.Servers = append(c.Servers, server)
}

// OnShutdown registers fn to run before any connection is closed, e.g. to
// stop a consumer loop so it can flush.
func (c *AppContext) OnShutdown(fn func()) {
	c.stopHooks = append(c.stopHooks, fn)
}

// ShutdownChan returns the channel that signals application shutdown.
func (c *AppContext) ShutdownChan() <-chan struct{} {
	return c.shutdownCh
}

// Shutdown gracefully closes everything in dependency order: HTTP servers,
// stop hooks, the checkpoint producer, the consumer side, then ClickHouse.
func (c *AppContext) Shutdown(ctx context.Context) error {
	c.Logger.Info("Starting graceful shutdown")

	var errs []error
	closeWith := func(name string, fn func() error) {
		c.Logger.Info("Closing " + name)
		if err := fn(); err != nil {
			c.Logger.Error(name+" close error", slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s close: %w", name, err))
		}
	}

	close(c.shutdownCh)

	for _, server := range c.Servers {
		c.Logger.Info("Shutting down HTTP server", slog.String("address", server.Addr))
		if err := server.Shutdown(ctx); err != nil {
			c.Logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("HTTP server %s shutdown: %w", server.Addr, err))
		}
	}

	for _, fn := range c.stopHooks {
		fn()
	}

	if c.Producer != nil {
		closeWith("Kafka producer", c.Producer.Close)
	}
	if c.Consumer != nil {
		closeWith("Kafka consumer", c.Consumer.Close)
	}
	if c.RetryWriter != nil {
		closeWith("Kafka retry writer", c.RetryWriter.Close)
	}
	if c.DeadWriter != nil {
		closeWith("Kafka dead letter writer", c.DeadWriter.Close)
	}
	if c.ClickHouse != nil {
		closeWith("ClickHouse connection", c.ClickHouse.Close)
	}

	if len(errs) > 0 {
		c.Logger.Error("Shutdown completed with errors", slog.Int("error_count", len(errs)))
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	c.Logger.Info("Graceful shutdown completed successfully")
	return nil
}
