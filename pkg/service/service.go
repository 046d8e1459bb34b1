// Package service implements the application use cases on top of the
// repositories, the vector database and the enrichment workflows.
package service

import (
	"context"

	"github.com/listhub/listing-backend/pkg/embedder"
	"github.com/listhub/listing-backend/pkg/encoder"
	"github.com/listhub/listing-backend/pkg/notifier"
	"github.com/listhub/listing-backend/pkg/repository"
	"github.com/listhub/listing-backend/pkg/types"
	"github.com/listhub/listing-backend/pkg/worker"
)

// Service is the interface for the application use cases.
type Service interface {
	// Enrichment pipeline
	StartEnrichment(ctx context.Context, listingUID types.ListingUIDType, ownerUID types.OwnerUIDType) (string, error)
	CancelEnrichment(ctx context.Context, listingUID types.ListingUIDType) error
	EnrichmentStatus(ctx context.Context, listingUID types.ListingUIDType) (*EnrichmentStatus, error)
	EnrichmentResult(ctx context.Context, workflowID string) (*EnrichmentResult, error)
	GetListing(ctx context.Context, listingUID types.ListingUIDType) (*repository.ListingModel, error)

	// Similarity search
	FindSimilar(ctx context.Context, query string, topK uint32) ([]SimilarListing, error)
	SimilarToListing(ctx context.Context, listingUID types.ListingUIDType, topK uint32) ([]SimilarListing, error)

	// Direct-edit hook: recompute the embedding after a seller edits the
	// listing text outside the enrichment pipeline.
	RefreshListingEmbedding(ctx context.Context, listingUID types.ListingUIDType) error

	// Accessors for the transport layer
	Repository() repository.Repository
	Notifier() notifier.Notifier
}

type service struct {
	repository     repository.Repository
	vectorDB       repository.VectorDatabase
	encoder        *encoder.Encoder
	embedder       *embedder.Embedder
	notifier       notifier.Notifier
	enrichTrigger  worker.EnrichmentTrigger
	sweeperTrigger worker.SweeperTrigger
}

// Config defines the dependencies of the service.
type Config struct {
	Repository     repository.Repository
	VectorDB       repository.VectorDatabase
	Encoder        *encoder.Encoder
	Embedder       *embedder.Embedder
	Notifier       notifier.Notifier
	EnrichTrigger  worker.EnrichmentTrigger
	SweeperTrigger worker.SweeperTrigger
}

// NewService initiates a service instance
func NewService(config Config) Service {
	return &service{
		repository:     config.Repository,
		vectorDB:       config.VectorDB,
		encoder:        config.Encoder,
		embedder:       config.Embedder,
		notifier:       config.Notifier,
		enrichTrigger:  config.EnrichTrigger,
		sweeperTrigger: config.SweeperTrigger,
	}
}

// Repository returns the repository
func (s *service) Repository() repository.Repository {
	return s.repository
}

// Notifier returns the notifier
func (s *service) Notifier() notifier.Notifier {
	return s.notifier
}
