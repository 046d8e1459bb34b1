package worker

import (
	"time"

	"go.uber.org/zap"

	"github.com/listhub/listing-backend/pkg/ai"
	"github.com/listhub/listing-backend/pkg/embedder"
	"github.com/listhub/listing-backend/pkg/notifier"
	"github.com/listhub/listing-backend/pkg/objectstore"
	"github.com/listhub/listing-backend/pkg/repository"
)

// TaskQueue is the Temporal task queue name for all workflows and activities.
const TaskQueue = "listing-backend"

// ActivityTimeoutStandard is timeout for normal activities. ActivityTimeoutLong is for heavy operations.
// Too short = premature failures. Too long = blocked worker slots.
const (
	ActivityTimeoutStandard = 5 * time.Minute  // DB, MinIO, redis
	ActivityTimeoutLong     = 10 * time.Minute // Vision analysis, embeddings
)

// RetryInitialInterval, RetryBackoffCoefficient, RetryMaximumInterval*, and RetryMaximumAttempts control retry behavior.
// Prevents retry storms under high concurrency.
const (
	RetryInitialInterval         = 1 * time.Second
	RetryBackoffCoefficient      = 2.0
	RetryMaximumIntervalStandard = 30 * time.Second
	RetryMaximumIntervalLong     = 100 * time.Second
	RetryMaximumAttempts         = 3
)

// Config defines the configuration for the worker
type Config struct {
	Repository  repository.Repository
	VectorDB    repository.VectorDatabase
	Embedder    *embedder.Embedder
	Analyzer    ai.Analyzer
	ObjectStore objectstore.ObjectStore
	Notifier    notifier.Notifier
}

// Worker implements the Temporal worker with all workflows and activities
type Worker struct {
	repository  repository.Repository
	vectorDB    repository.VectorDatabase
	embedder    *embedder.Embedder
	analyzer    ai.Analyzer
	objectStore objectstore.ObjectStore
	notifier    notifier.Notifier
	log         *zap.Logger
}

// New creates a new worker instance
func New(config Config, log *zap.Logger) (*Worker, error) {
	w := &Worker{
		repository:  config.Repository,
		vectorDB:    config.VectorDB,
		embedder:    config.Embedder,
		analyzer:    config.Analyzer,
		objectStore: config.ObjectStore,
		notifier:    config.Notifier,
		log:         log,
	}
	return w, nil
}
