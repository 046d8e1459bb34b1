package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	qt "github.com/frankban/quicktest"

	"github.com/listhub/listing-backend/pkg/embedder"
	"github.com/listhub/listing-backend/pkg/encoder"
	"github.com/listhub/listing-backend/pkg/notifier"
	"github.com/listhub/listing-backend/pkg/repository"
	"github.com/listhub/listing-backend/pkg/types"
	"github.com/listhub/listing-backend/pkg/worker"
)

const testVectorDimension = 64

// fakeVectorDB is an in-memory VectorDatabase with scripted search results.
type fakeVectorDB struct {
	mu            sync.Mutex
	vectors       map[types.ListingUIDType]repository.ListingVector
	searchResults []repository.SimilarListingVector
	lastSearch    repository.SearchVectorParam
}

func newFakeVectorDB() *fakeVectorDB {
	return &fakeVectorDB{vectors: map[types.ListingUIDType]repository.ListingVector{}}
}

func (f *fakeVectorDB) CreateCollection(context.Context, uint32) error { return nil }

func (f *fakeVectorDB) UpsertListingVector(_ context.Context, vector repository.ListingVector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[vector.ListingUID] = vector
	return nil
}

func (f *fakeVectorDB) DeleteListingVector(_ context.Context, listingUID types.ListingUIDType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vectors, listingUID)
	return nil
}

func (f *fakeVectorDB) SearchSimilarListings(_ context.Context, p repository.SearchVectorParam) ([]repository.SimilarListingVector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSearch = p
	return f.searchResults, nil
}

func (f *fakeVectorDB) CollectionExists(context.Context) (bool, error) { return true, nil }
func (f *fakeVectorDB) FlushCollection(context.Context) error          { return nil }

// fakeEnrichmentTrigger records workflow starts and cancellations.
type fakeEnrichmentTrigger struct {
	executed   []worker.EnrichListingWorkflowParam
	cancelled  []types.ListingUIDType
	executeErr error
}

func (f *fakeEnrichmentTrigger) Execute(_ context.Context, param worker.EnrichListingWorkflowParam) error {
	if f.executeErr != nil {
		return f.executeErr
	}
	f.executed = append(f.executed, param)
	return nil
}

func (f *fakeEnrichmentTrigger) Cancel(_ context.Context, listingUID types.ListingUIDType) error {
	f.cancelled = append(f.cancelled, listingUID)
	return nil
}

type fakeSweeperTrigger struct{}

func (fakeSweeperTrigger) Execute(context.Context, worker.SweepStuckListingsWorkflowParam) error {
	return nil
}

type fakeNotifier struct{}

func (fakeNotifier) PublishEnrichmentEvent(context.Context, notifier.EnrichmentEvent) error {
	return nil
}

func (fakeNotifier) SubscribeUserEvents(context.Context, types.OwnerUIDType) *redis.PubSub {
	return nil
}

type testServiceDeps struct {
	repo     repository.Repository
	vectorDB *fakeVectorDB
	trigger  *fakeEnrichmentTrigger
}

var testDBCounter int64

func newTestService(t *testing.T) (Service, *testServiceDeps) {
	t.Helper()
	c := qt.New(t)

	dsn := fmt.Sprintf("file:servicetest%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	c.Assert(err, qt.IsNil)
	err = db.AutoMigrate(&repository.ListingModel{}, &repository.ImageModel{}, &repository.EmbeddingModel{})
	c.Assert(err, qt.IsNil)

	repo := repository.NewRepository(db)
	enc, err := encoder.NewEncoder(testVectorDimension)
	c.Assert(err, qt.IsNil)

	deps := &testServiceDeps{
		repo:     repo,
		vectorDB: newFakeVectorDB(),
		trigger:  &fakeEnrichmentTrigger{},
	}

	svc := NewService(Config{
		Repository:     repo,
		VectorDB:       deps.vectorDB,
		Encoder:        enc,
		Embedder:       embedder.NewEmbedder(repo, deps.vectorDB, enc),
		Notifier:       fakeNotifier{},
		EnrichTrigger:  deps.trigger,
		SweeperTrigger: fakeSweeperTrigger{},
	})

	return svc, deps
}
