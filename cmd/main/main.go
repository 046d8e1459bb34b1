package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/listhub/listing-backend/config"
	"github.com/listhub/listing-backend/pkg/embedder"
	"github.com/listhub/listing-backend/pkg/encoder"
	"github.com/listhub/listing-backend/pkg/handler"
	"github.com/listhub/listing-backend/pkg/logger"
	"github.com/listhub/listing-backend/pkg/notifier"
	"github.com/listhub/listing-backend/pkg/repository"
	"github.com/listhub/listing-backend/pkg/service"

	database "github.com/listhub/listing-backend/pkg/db"
	listingworker "github.com/listhub/listing-backend/pkg/worker"
)

const gracefulShutdownTimeout = 15 * time.Second

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

	if err := vectorDB.CreateCollection(ctx, uint32(config.Config.Embedding.Dimension)); err != nil {
		logx.Fatal("Unable to create embedding collection", zap.Error(err))
	}

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

	notif := notifier.NewRedisNotifier(redisClient)
	emb := embedder.NewEmbedder(repo, vectorDB, enc)

	// The API process only starts and cancels workflows; activities run in
	// cmd/worker. The analyzer and object store are therefore not wired here.
	cw, err := listingworker.New(listingworker.Config{
		Repository: repo,
		VectorDB:   vectorDB,
		Embedder:   emb,
		Notifier:   notif,
	}, logx)
	if err != nil {
		logx.Fatal("Unable to create workflow triggers", zap.Error(err))
	}

	svc := service.NewService(service.Config{
		Repository:     repo,
		VectorDB:       vectorDB,
		Encoder:        enc,
		Embedder:       emb,
		Notifier:       notif,
		EnrichTrigger:  listingworker.NewEnrichListingWorkflow(temporalClient, cw),
		SweeperTrigger: listingworker.NewSweepStuckListingsWorkflow(temporalClient, cw),
	})

	mode := gin.ReleaseMode
	if config.Config.Server.Debug {
		mode = gin.DebugMode
	}
	router := handler.SetupRouter(handler.RouterConfig{
		Service:     svc,
		DB:          db,
		RedisClient: redisClient,
		VectorDB:    vectorDB,
		Logger:      logx,
		Mode:        mode,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Config.Server.PublicPort),
		Handler: router,
	}

	go func() {
		logx.Info("HTTP server listening", zap.Int("port", config.Config.Server.PublicPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quitSig := make(chan os.Signal, 1)
	signal.Notify(quitSig, syscall.SIGINT, syscall.SIGTERM)
	<-quitSig

	logx.Info("Shutdown signal received, draining connections...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error("HTTP server shutdown failed", zap.Error(err))
	}
}
