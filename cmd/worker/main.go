package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/listhub/listing-backend/config"
	"github.com/listhub/listing-backend/pkg/ai/openai"
	"github.com/listhub/listing-backend/pkg/embedder"
	"github.com/listhub/listing-backend/pkg/encoder"
	"github.com/listhub/listing-backend/pkg/logger"
	"github.com/listhub/listing-backend/pkg/notifier"
	"github.com/listhub/listing-backend/pkg/objectstore"
	"github.com/listhub/listing-backend/pkg/repository"

	database "github.com/listhub/listing-backend/pkg/db"
	listingworker "github.com/listhub/listing-backend/pkg/worker"
)

const gracefulShutdownWaitPeriod = 15 * time.Second // Wait period before stopping worker
const gracefulShutdownTimeout = 10 * time.Minute    // Maximum time for in-flight workflows to complete

func main() {
	if err := config.Init(config.ParseConfigFlag()); err != nil {
		log.Fatal(err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logx, _ := logger.GetZapLogger(ctx)
	defer func() {
		// can't handle the error due to https://github.com/uber-go/zap/issues/880
		_ = logx.Sync()
	}()

	db := database.GetSharedConnection()
	repo := repository.NewRepository(db)

	redisClient := redis.NewClient(&config.Config.Cache.Redis.RedisOptions)
	defer redisClient.Close()

	vectorDB, vclose, err := repository.NewVectorDatabase(ctx, config.Config.Milvus.Host, config.Config.Milvus.Port)
	if err != nil {
		logx.Fatal("Unable to create milvus client", zap.Error(err))
	}
	defer func() { _ = vclose() }()

	// The collection must exist before the first embedding activity runs.
	if err := vectorDB.CreateCollection(ctx, uint32(config.Config.Embedding.Dimension)); err != nil {
		logx.Fatal("Unable to create embedding collection", zap.Error(err))
	}

	minioClient, err := objectstore.NewMinioClientAndInitBucket(ctx)
	if err != nil {
		logx.Fatal("Unable to create minio client", zap.Error(err))
	}

	analyzer, err := openai.NewAnalyzer(ctx, config.Config.OpenAI.APIKey, config.Config.OpenAI.Model)
	if err != nil {
		logx.Fatal("Unable to create vision analyzer", zap.Error(err))
	}
	defer analyzer.Close()

	enc, err := encoder.NewEncoder(config.Config.Embedding.Dimension)
	if err != nil {
		logx.Fatal("Unable to create encoder", zap.Error(err))
	}

	temporalClient, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  config.Config.Temporal.HostPort,
		Namespace: config.Config.Temporal.Namespace,
	})
	if err != nil {
		logx.Fatal("Unable to create Temporal client", zap.Error(err))
	}
	defer temporalClient.Close()

	cw, err := listingworker.New(listingworker.Config{
		Repository:  repo,
		VectorDB:    vectorDB,
		Embedder:    embedder.NewEmbedder(repo, vectorDB, enc),
		Analyzer:    analyzer,
		ObjectStore: minioClient,
		Notifier:    notifier.NewRedisNotifier(redisClient),
	}, logx)
	if err != nil {
		logx.Fatal("Unable to create worker", zap.Error(err))
	}

	w := worker.New(temporalClient, listingworker.TaskQueue, worker.Options{
		WorkflowPanicPolicy:                    worker.BlockWorkflow,
		WorkerStopTimeout:                      gracefulShutdownTimeout,
		MaxConcurrentActivityExecutionSize:     config.Config.Worker.MaxConcurrentActivities,
		MaxConcurrentWorkflowTaskExecutionSize: config.Config.Worker.MaxConcurrentWorkflowTasks,
	})

	w.RegisterWorkflow(cw.EnrichListingWorkflow)
	w.RegisterWorkflow(cw.SweepStuckListingsWorkflow)

	w.RegisterActivity(cw.GetListingActivity)
	w.RegisterActivity(cw.AnalyzeListingActivity)
	w.RegisterActivity(cw.ApplySuggestionsActivity)
	w.RegisterActivity(cw.EmbedListingActivity)
	w.RegisterActivity(cw.CompleteListingActivity)
	w.RegisterActivity(cw.FailListingActivity)
	w.RegisterActivity(cw.NotifyEnrichmentActivity)
	w.RegisterActivity(cw.SweepStuckListingsActivity)

	if err := w.Start(); err != nil {
		logx.Fatal("Unable to start worker", zap.Error(err))
	}

	logx.Info("Temporal worker started successfully and is polling for tasks")

	// Start the stuck-listing sweeper as a singleton. A fixed workflow ID
	// ensures at most one instance runs per namespace; starting it when it is
	// already running is a no-op.
	sweeperTrigger := listingworker.NewSweepStuckListingsWorkflow(temporalClient, cw)
	if err := sweeperTrigger.Execute(ctx, listingworker.SweepStuckListingsWorkflowParam{
		Interval:     config.Config.Sweeper.Interval,
		StaleTimeout: config.Config.Sweeper.StaleTimeout,
	}); err != nil {
		logx.Error("Failed to start stuck-listing sweeper", zap.Error(err))
	} else {
		logx.Info("Stuck-listing sweeper running",
			zap.Duration("interval", config.Config.Sweeper.Interval),
			zap.Duration("staleTimeout", config.Config.Sweeper.StaleTimeout))
	}

	quitSig := make(chan os.Signal, 1)
	signal.Notify(quitSig, syscall.SIGINT, syscall.SIGTERM)
	<-quitSig

	// Allow in-flight workflows to complete gracefully.
	logx.Info("Shutdown signal received, waiting for in-flight workflows to complete...")
	time.Sleep(gracefulShutdownWaitPeriod)

	logx.Info("Shutting down worker...")
	w.Stop()
}
