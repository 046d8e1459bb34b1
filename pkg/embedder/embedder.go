// Package embedder computes and persists listing embeddings, keeping the
// relational store and the vector database in sync. It is shared by the
// enrichment workflow and by the direct-edit path in the service layer.
package embedder

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/listhub/listing-backend/pkg/encoder"
	"github.com/listhub/listing-backend/pkg/logger"
	"github.com/listhub/listing-backend/pkg/repository"
)

// Embedder refreshes listing embeddings.
type Embedder struct {
	repository repository.Repository
	vectorDB   repository.VectorDatabase
	encoder    *encoder.Encoder
}

// NewEmbedder returns an Embedder.
func NewEmbedder(repo repository.Repository, vectorDB repository.VectorDatabase, enc *encoder.Encoder) *Embedder {
	return &Embedder{
		repository: repo,
		vectorDB:   vectorDB,
		encoder:    enc,
	}
}

// RefreshListingEmbedding recomputes the embedding of a listing from its
// current text and writes it to both stores. The relational write and the
// vector database write share a transaction, so a vector database failure
// rolls the embedding row back.
//
// It returns false when the listing has no text to embed. In that case any
// previously stored embedding is removed: a listing without text has no
// meaningful position in the similarity space.
func (e *Embedder) RefreshListingEmbedding(ctx context.Context, listing *repository.ListingModel) (bool, error) {
	log, _ := logger.GetZapLogger(ctx)
	log = log.With(zap.String("listing_uid", listing.UID.String()))

	text := encoder.ListingText(listing.Name, listing.Description, listing.Category)
	vector, err := e.encoder.Encode(text)
	if err != nil {
		return false, fmt.Errorf("encoding listing text: %w", err)
	}

	if vector == nil {
		log.Info("Listing has no text to embed, removing any stored embedding")
		if err := e.repository.DeleteEmbeddingByListingUID(ctx, listing.UID); err != nil {
			return false, fmt.Errorf("deleting embedding: %w", err)
		}
		if err := e.vectorDB.DeleteListingVector(ctx, listing.UID); err != nil {
			return false, fmt.Errorf("deleting listing vector: %w", err)
		}
		return false, nil
	}

	embedding := repository.EmbeddingModel{
		ListingUID: listing.UID,
		Vector:     vector,
		OwnerUID:   listing.OwnerUID,
	}

	_, err = e.repository.UpsertListingEmbedding(ctx, embedding, func(stored repository.EmbeddingModel) error {
		return e.vectorDB.UpsertListingVector(ctx, repository.ListingVector{
			ListingUID: stored.ListingUID,
			OwnerUID:   listing.OwnerUID,
			Vector:     stored.Vector,
		})
	})
	if err != nil {
		return false, fmt.Errorf("upserting listing embedding: %w", err)
	}

	log.Info("Listing embedding refreshed")
	return true, nil
}
