package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	qt "github.com/frankban/quicktest"

	"github.com/listhub/listing-backend/pkg/ai"
	"github.com/listhub/listing-backend/pkg/embedder"
	"github.com/listhub/listing-backend/pkg/encoder"
	"github.com/listhub/listing-backend/pkg/notifier"
	"github.com/listhub/listing-backend/pkg/repository"
	"github.com/listhub/listing-backend/pkg/types"
)

const testVectorDimension = 64

// fakeVectorDB is an in-memory VectorDatabase.
type fakeVectorDB struct {
	mu        sync.Mutex
	vectors   map[types.ListingUIDType]repository.ListingVector
	upsertErr error
}

func newFakeVectorDB() *fakeVectorDB {
	return &fakeVectorDB{vectors: map[types.ListingUIDType]repository.ListingVector{}}
}

func (f *fakeVectorDB) CreateCollection(context.Context, uint32) error { return nil }

func (f *fakeVectorDB) UpsertListingVector(_ context.Context, vector repository.ListingVector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.vectors[vector.ListingUID] = vector
	return nil
}

func (f *fakeVectorDB) DeleteListingVector(_ context.Context, listingUID types.ListingUIDType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vectors, listingUID)
	return nil
}

func (f *fakeVectorDB) SearchSimilarListings(context.Context, repository.SearchVectorParam) ([]repository.SimilarListingVector, error) {
	return nil, nil
}

func (f *fakeVectorDB) CollectionExists(context.Context) (bool, error) { return true, nil }
func (f *fakeVectorDB) FlushCollection(context.Context) error          { return nil }

// fakeAnalyzer returns a canned suggestion.
type fakeAnalyzer struct {
	suggestion *ai.ListingSuggestion
	err        error
}

func (f *fakeAnalyzer) AnalyzeListingImage(context.Context, []byte, string) (*ai.ListingSuggestion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.suggestion, nil
}

func (f *fakeAnalyzer) Name() string { return "fake" }
func (f *fakeAnalyzer) Close() error { return nil }

// fakeObjectStore serves objects from memory.
type fakeObjectStore struct {
	objects map[string][]byte
}

func (f *fakeObjectStore) GetObject(_ context.Context, objectPath string) ([]byte, string, error) {
	return f.objects[objectPath], "image/jpeg", nil
}

func (f *fakeObjectStore) UploadObject(_ context.Context, objectPath string, content []byte, _ string) error {
	f.objects[objectPath] = content
	return nil
}

func (f *fakeObjectStore) DeleteObject(_ context.Context, objectPath string) error {
	delete(f.objects, objectPath)
	return nil
}

// fakeNotifier records the published events.
type fakeNotifier struct {
	mu         sync.Mutex
	events     []notifier.EnrichmentEvent
	publishErr error
}

func (f *fakeNotifier) PublishEnrichmentEvent(_ context.Context, event notifier.EnrichmentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeNotifier) SubscribeUserEvents(context.Context, types.OwnerUIDType) *redis.PubSub {
	return nil
}

func (f *fakeNotifier) published() []notifier.EnrichmentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifier.EnrichmentEvent{}, f.events...)
}

type testWorkerDeps struct {
	repo     repository.Repository
	db       *gorm.DB
	vectorDB *fakeVectorDB
	analyzer *fakeAnalyzer
	store    *fakeObjectStore
	notifier *fakeNotifier
}

var testDBCounter int64

// newTestWorker builds a Worker on an in-memory database and fakes for the
// external services. The shared cache keeps every pooled connection on the
// same database, the unique name isolates tests from each other.
func newTestWorker(t *testing.T) (*Worker, *testWorkerDeps) {
	t.Helper()
	c := qt.New(t)

	dsn := fmt.Sprintf("file:workertest%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
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

	deps := &testWorkerDeps{
		repo:     repo,
		db:       db,
		vectorDB: newFakeVectorDB(),
		analyzer: &fakeAnalyzer{suggestion: &ai.ListingSuggestion{
			Title:       "Vintage Camera",
			Description: "A 35mm film camera in great shape.",
		}},
		store:    &fakeObjectStore{objects: map[string][]byte{}},
		notifier: &fakeNotifier{},
	}

	w, err := New(Config{
		Repository:  deps.repo,
		VectorDB:    deps.vectorDB,
		Embedder:    embedder.NewEmbedder(deps.repo, deps.vectorDB, enc),
		Analyzer:    deps.analyzer,
		ObjectStore: deps.store,
		Notifier:    deps.notifier,
	}, zap.NewNop())
	c.Assert(err, qt.IsNil)

	return w, deps
}
