package service

import (
	"context"
	"fmt"

	"github.com/listhub/listing-backend/pkg/repository"
	"github.com/listhub/listing-backend/pkg/types"

	errorsx "github.com/listhub/listing-backend/pkg/errors"
)

// defaultTopK bounds similarity results when the client doesn't ask for a
// specific amount.
const defaultTopK = 10

// maxTopK caps the result size of a similarity search.
const maxTopK = 100

// SimilarListing is a listing returned by a similarity search, ordered by
// ascending cosine distance to the query.
type SimilarListing struct {
	Listing  repository.ListingModel `json:"listing"`
	Distance float32                 `json:"distance"`
}

// FindSimilar searches the similarity index with free-form text.
func (s *service) FindSimilar(ctx context.Context, query string, topK uint32) ([]SimilarListing, error) {
	vector, err := s.encoder.Encode(query)
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}
	if vector == nil {
		return nil, fmt.Errorf("empty query: %w", errorsx.ErrInvalidArgument)
	}

	return s.searchSimilar(ctx, repository.SearchVectorParam{
		Vector: vector,
		TopK:   clampTopK(topK),
	})
}

// SimilarToListing returns the listings closest to a given listing in the
// similarity space. The listing itself is excluded from the results.
func (s *service) SimilarToListing(ctx context.Context, listingUID types.ListingUIDType, topK uint32) ([]SimilarListing, error) {
	embedding, err := s.repository.GetEmbeddingByListingUID(ctx, listingUID)
	if err != nil {
		return nil, err
	}

	return s.searchSimilar(ctx, repository.SearchVectorParam{
		Vector:            embedding.Vector,
		TopK:              clampTopK(topK),
		ExcludeListingUID: listingUID,
	})
}

// searchSimilar runs the vector search and hydrates the matches from the
// relational store, preserving the distance ordering. Matches whose listing
// was deleted since indexing are dropped.
func (s *service) searchSimilar(ctx context.Context, param repository.SearchVectorParam) ([]SimilarListing, error) {
	matches, err := s.vectorDB.SearchSimilarListings(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("searching similar listings: %w", err)
	}
	if len(matches) == 0 {
		return []SimilarListing{}, nil
	}

	uids := make([]types.ListingUIDType, len(matches))
	for i, match := range matches {
		uids[i] = match.ListingUID
	}

	listings, err := s.repository.ListListingsByUIDs(ctx, uids)
	if err != nil {
		return nil, fmt.Errorf("hydrating similar listings: %w", err)
	}

	byUID := make(map[types.ListingUIDType]repository.ListingModel, len(listings))
	for _, listing := range listings {
		byUID[listing.UID] = listing
	}

	results := make([]SimilarListing, 0, len(matches))
	for _, match := range matches {
		listing, ok := byUID[match.ListingUID]
		if !ok {
			continue
		}
		results = append(results, SimilarListing{
			Listing:  listing,
			Distance: match.Distance,
		})
	}

	return results, nil
}

func clampTopK(topK uint32) uint32 {
	if topK == 0 {
		return defaultTopK
	}
	if topK > maxTopK {
		return maxTopK
	}
	return topK
}
