package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/time/rate"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/terra-graph/newsgraph/internal/db"
	"github.com/terra-graph/newsgraph/internal/queue"
	"github.com/terra-graph/newsgraph/internal/storage"
	"github.com/terra-graph/newsgraph/internal/util"
	"github.com/terra-graph/newsgraph/pkg/ai"
	oai "github.com/terra-graph/newsgraph/pkg/ai/ollama"
	gai "github.com/terra-graph/newsgraph/pkg/ai/openai"
	"github.com/terra-graph/newsgraph/pkg/community"
	"github.com/terra-graph/newsgraph/pkg/extract"
	"github.com/terra-graph/newsgraph/pkg/logger"
	"github.com/terra-graph/newsgraph/pkg/logger/console"
	"github.com/terra-graph/newsgraph/pkg/pipeline"
	"github.com/terra-graph/newsgraph/pkg/state"
	neo4jstore "github.com/terra-graph/newsgraph/pkg/store/neo4j"
	pgxstore "github.com/terra-graph/newsgraph/pkg/store/pgx"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	// AI client, token-bucket limited across every pipeline consumer
	aiClient := newAIClient()

	// pgx pool with pgvector types
	poolConfig, err := pgxpool.ParseConfig(util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Invalid DATABASE_URL", "err", err)
	}
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pgConn, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	if err := db.Migrate(util.GetEnv("DATABASE_URL")); err != nil {
		logger.Fatal("Migration failed", "err", err)
	}

	// redis-backed pipeline state
	stateStore, err := state.NewRedisStore(ctx, state.RedisStoreParams{
		Addr:     util.GetEnv("REDIS_ADDR"),
		Password: util.GetEnvString("REDIS_PASSWORD", ""),
		DB:       int(util.GetEnvNumeric("REDIS_DB", 0)),
	})
	if err != nil {
		logger.Fatal("Unable to connect to redis", "err", err)
	}
	defer stateStore.Close()

	// neo4j graph store
	graphClient, err := neo4jstore.NewClient(ctx, neo4jstore.ClientParams{
		URI:      util.GetEnv("NEO4J_URI"),
		Username: util.GetEnv("NEO4J_USER"),
		Password: util.GetEnv("NEO4J_PASSWORD"),
		Database: util.GetEnvString("NEO4J_DATABASE", "neo4j"),
	})
	if err != nil {
		logger.Fatal("Unable to connect to neo4j", "err", err)
	}
	defer graphClient.Close(ctx)

	pgStore := pgxstore.NewStore(pgConn, aiClient)

	// extraction stage and ingestor
	stage := extract.NewDefaultStage(aiClient, int(util.GetEnvNumeric("EXTRACT_PARALLEL", 4)))
	ingestor := queue.NewIngestor(queue.IngestorParams{
		Storage:   pgStore,
		Graph:     graphClient,
		State:     stateStore,
		Stage:     stage,
		Encoder:   util.GetEnvString("EXTRACT_ENCODER", "cl100k_base"),
		MaxTokens: int(util.GetEnvNumeric("EXTRACT_MAX_TOKENS", 600)),
	})

	// rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to setup queues", "err", err)
	}

	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	go consumeIngest(ctx, consumerCh, ch, ingestor, aiClient)

	// scheduled pipelines
	archive := storage.NewArchive(ctx)
	var archiver pipeline.Archiver
	if archive != nil {
		archiver = archive
	}

	fetcher := pipeline.NewFetcher(pipeline.FetcherParams{
		Limiter:   rate.NewLimiter(rate.Limit(util.GetEnvNumeric("FETCH_RATE_LIMIT", 2)), 1),
		State:     stateStore,
		Namespace: pipeline.NewsNamespace,
		Archive:   archiver,
	})

	newsPipeline := pipeline.NewNewsPipeline(pipeline.NewsPipelineParams{
		Fetcher:   fetcher,
		Articles:  pgStore,
		State:     stateStore,
		Publisher: queue.NewPublisher(ch),
		APIURL:    util.GetEnvString("NEWS_API_URL", "https://api.worldnewsapi.com/search-news"),
		APIKey:    util.GetEnv("NEWS_API_KEY"),
		Sources:   util.GetEnvList("NEWS_SOURCES"),
	})

	communityPipeline := pipeline.NewCommunityPipeline(pipeline.CommunityPipelineParams{
		Detector: community.NewDetector(community.DetectorParams{
			Client:         aiClient,
			MaxClusterSize: int(util.GetEnvNumeric("COMMUNITY_MAX_CLUSTER_SIZE", community.DefaultMaxClusterSize)),
		}),
		Storage: pgStore,
	})

	orchestrator := pipeline.NewOrchestrator(stateStore, 0, newsPipeline, communityPipeline)
	go func() {
		_ = orchestrator.Run(ctx)
	}()

	logger.Info("Worker running")
	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

func newAIClient() ai.Client {
	adapter := util.GetEnv("AI_ADAPTER")
	var base ai.Client

	switch adapter {
	case "ollama":
		client, err := oai.NewClient(oai.ClientParams{
			EmbeddingModel:   util.GetEnv("AI_EMBED_MODEL"),
			DescriptionModel: util.GetEnv("AI_CHAT_DESCRIBE_MODEL"),
			ExtractionModel:  util.GetEnv("AI_CHAT_EXTRACT_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		base = client
	default:
		base = gai.NewClient(gai.ClientParams{
			EmbeddingModel:   util.GetEnv("AI_EMBED_MODEL"),
			DescriptionModel: util.GetEnv("AI_CHAT_DESCRIBE_MODEL"),
			ExtractionModel:  util.GetEnv("AI_CHAT_EXTRACT_MODEL"),

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),
		})
	}

	limit := rate.Limit(util.GetEnvNumeric("AI_RATE_LIMIT", 2))
	return ai.NewLimitedClient(base, rate.NewLimiter(limit, 1))
}

func consumeIngest(ctx context.Context, consumerCh *amqp.Channel, publishCh *amqp.Channel, ingestor *queue.Ingestor, aiClient ai.Client) {
	msgs, err := consumerCh.Consume(
		queue.IngestQueue,
		queue.IngestQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.IngestQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.IngestQueue)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping consumer", "queue", queue.IngestQueue)
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed", "queue", queue.IngestQueue)
				return
			}

			startTime := time.Now()
			correlationID := string(msg.Body)
			logger.Info("Received message", "queue", queue.IngestQueue, "correlation_id", correlationID)

			processingErr := ingestor.ProcessBatch(ctx, correlationID)
			if processingErr != nil {
				logger.Error("Error processing message", "queue", queue.IngestQueue, "err", processingErr)
				handleProcessingError(publishCh, msg, queue.IngestQueue)
			} else {
				if err := msg.Ack(false); err != nil {
					logger.Error("Failed to ack message", "err", err)
				}
				logger.Info("Message processed successfully", "queue", queue.IngestQueue)
			}

			if metricsProvider, ok := aiClient.(ai.MetricsProvider); ok {
				metrics := metricsProvider.GetMetrics()
				logger.Info(
					"AI Metrics",
					"input_tokens", metrics.InputTokens,
					"output_tokens", metrics.OutputTokens,
					"total_tokens", metrics.TotalTokens,
					"duration_ms", metrics.DurationMs,
				)
				metricsProvider.ResetMetrics()
			}
			logger.Info("Processing time", "duration", time.Since(startTime).Round(time.Second).String())
		}
	}
}

func handleProcessingError(ch *amqp.Channel, msg amqp.Delivery, queueName string) {
	retries := 0
	if val, ok := msg.Headers["x-retries"]; ok {
		if v, ok := val.(int32); ok {
			retries = int(v)
		}
	}

	// after 10 delivery attempts the message parks in the DLQ
	if retries >= 10 {
		dlqName := queueName + "_dlq"
		logger.Info("Sending message to DLQ", "dlq", dlqName)
		pubErr := ch.Publish(
			"",
			dlqName,
			false,
			false,
			amqp.Publishing{
				ContentType: "text/plain",
				Body:        msg.Body,
				Headers:     msg.Headers,
			},
		)
		if pubErr != nil {
			logger.Error("Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			msg.Nack(false, true)
			return
		}
		msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := msg.Headers
	if headers == nil {
		headers = amqp.Table{}
	}
	headers["x-retries"] = retries + 1

	pubErr := ch.Publish(
		"",
		retryName,
		false,
		false,
		amqp.Publishing{
			ContentType: "text/plain",
			Body:        msg.Body,
			Headers:     headers,
		},
	)
	if pubErr != nil {
		logger.Error("Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}
