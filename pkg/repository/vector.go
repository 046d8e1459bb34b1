package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/listhub/listing-backend/pkg/logger"
	"github.com/listhub/listing-backend/pkg/types"

	errorsx "github.com/listhub/listing-backend/pkg/errors"
)

// ListingVector is the vector representation of a listing in the similarity
// collection.
type ListingVector struct {
	ListingUID types.ListingUIDType
	OwnerUID   types.OwnerUIDType
	Vector     []float32
}

// SimilarListingVector extends ListingVector with the similarity search
// distance. Distance is the cosine distance to the query vector: 0 means
// identical direction, 2 means opposite.
type SimilarListingVector struct {
	ListingVector
	Distance float32
}

// SearchVectorParam contains the parameters for a similarity vector search.
type SearchVectorParam struct {
	Vector []float32
	TopK   uint32
	// ExcludeListingUID drops a listing from the results. It is used to
	// exclude the query listing itself from its similar-listings feed.
	ExcludeListingUID types.ListingUIDType
	// OwnerUID, when set, restricts the search to a single owner's listings.
	OwnerUID types.OwnerUIDType
}

// VectorDatabase implements the necessary use cases to interact with a vector
// database (e.g., Milvus).
type VectorDatabase interface {
	CreateCollection(ctx context.Context, dimensionality uint32) error
	UpsertListingVector(ctx context.Context, vector ListingVector) error
	DeleteListingVector(ctx context.Context, listingUID types.ListingUIDType) error
	SearchSimilarListings(ctx context.Context, p SearchVectorParam) ([]SimilarListingVector, error)
	CollectionExists(ctx context.Context) (bool, error)
	FlushCollection(ctx context.Context) error
}

// Milvus implementation constants
const (
	// ListingCollectionName is the milvus collection holding one vector per
	// published listing.
	ListingCollectionName = "listing_embedding"

	scanNList  = 1024
	metricType = entity.COSINE
	withRaw    = true

	nProbe   = 250
	reorderK = 250

	listingCollectionFieldListingUID = "listing_uid"
	listingCollectionFieldOwnerUID   = "owner_uid"
	listingCollectionFieldEmbedding  = "embedding"
)

type milvusClient struct {
	c client.Client
}

// NewVectorDatabase returns a VectorDatabase implementation (milvus).
func NewVectorDatabase(ctx context.Context, host, port string) (db VectorDatabase, closeFn func() error, _ error) {
	c, err := client.NewGrpcClient(ctx, host+":"+port)
	if err != nil {
		return nil, nil, err
	}

	return &milvusClient{
		c: c,
	}, c.Close, nil
}

// CreateCollection creates the listing embedding collection and its indexes.
// It is a no-op when the collection already exists.
func (m *milvusClient) CreateCollection(ctx context.Context, dimensionality uint32) error {
	log, _ := logger.GetZapLogger(ctx)
	log = log.With(zap.String("collection_name", ListingCollectionName), zap.Uint32("dimensionality", dimensionality))

	has, err := m.c.HasCollection(ctx, ListingCollectionName)
	if err != nil {
		return fmt.Errorf("checking collection existence: %w", err)
	}
	if has {
		log.Info("Skipping collection creation: already exists.")
		return nil
	}

	vectorDimStr := fmt.Sprintf("%d", dimensionality)
	schema := &entity.Schema{
		CollectionName: ListingCollectionName,
		Description:    "",
		Fields: []*entity.Field{
			{Name: listingCollectionFieldListingUID, DataType: entity.FieldTypeVarChar, PrimaryKey: true, TypeParams: map[string]string{"max_length": "255"}},
			{Name: listingCollectionFieldOwnerUID, DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "255"}},
			{Name: listingCollectionFieldEmbedding, DataType: entity.FieldTypeFloatVector, TypeParams: map[string]string{"dim": vectorDimStr}},
		},
	}

	err = m.c.CreateCollection(ctx, schema, 1)
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	vectorIdx, err := entity.NewIndexSCANN(metricType, scanNList, withRaw)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	for field, idx := range map[string]entity.Index{
		listingCollectionFieldEmbedding: vectorIdx,
		listingCollectionFieldOwnerUID:  entity.NewScalarIndexWithType(entity.Inverted),
	} {
		err = m.c.CreateIndex(ctx, ListingCollectionName, field, idx, false)
		if err != nil {
			return fmt.Errorf("creating index for field %s: %w", field, err)
		}
	}

	log.Info("Collection created successfully.")
	return nil
}

// UpsertListingVector writes the vector of a listing, replacing the previous
// one when the listing was already indexed.
func (m *milvusClient) UpsertListingVector(ctx context.Context, vector ListingVector) error {
	log, _ := logger.GetZapLogger(ctx)
	log = log.With(zap.String("collection_name", ListingCollectionName), zap.String("listing_uid", vector.ListingUID.String()))

	has, err := m.c.HasCollection(ctx, ListingCollectionName)
	if err != nil {
		return fmt.Errorf("checking collection existence: %w", err)
	}
	if !has {
		return fmt.Errorf("collection does not exist: %w", errorsx.ErrNotFound)
	}

	columns := []entity.Column{
		entity.NewColumnVarChar(listingCollectionFieldListingUID, []string{vector.ListingUID.String()}),
		entity.NewColumnVarChar(listingCollectionFieldOwnerUID, []string{vector.OwnerUID.String()}),
		entity.NewColumnFloatVector(listingCollectionFieldEmbedding, len(vector.Vector), [][]float32{vector.Vector}),
	}

	// Upsert with retry
	maxRetries := 3
	for attempt := 1; attempt <= maxRetries; attempt++ {
		_, err = m.c.Upsert(ctx, ListingCollectionName, "", columns...)
		if err == nil {
			break
		}
		log.Warn("Failed to upsert vector, retrying", zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(time.Second * time.Duration(attempt))
	}
	if err != nil {
		return fmt.Errorf("upserting vector: %w", err)
	}

	log.Info("Successfully upserted vector")
	return nil
}

// DeleteListingVector removes a listing from the similarity collection.
func (m *milvusClient) DeleteListingVector(ctx context.Context, listingUID types.ListingUIDType) error {
	log, _ := logger.GetZapLogger(ctx)
	log = log.With(zap.String("collection_name", ListingCollectionName), zap.String("listing_uid", listingUID.String()))

	has, err := m.c.HasCollection(ctx, ListingCollectionName)
	if err != nil {
		return fmt.Errorf("checking collection existence: %w", err)
	}
	if !has {
		log.Info("Collection does not exist, skipping delete")
		return nil
	}

	loadState, err := m.c.GetLoadState(ctx, ListingCollectionName, []string{})
	if err != nil {
		return fmt.Errorf("checking load state: %w", err)
	}
	if loadState != entity.LoadStateLoaded {
		if err = m.c.LoadCollection(ctx, ListingCollectionName, false); err != nil {
			return fmt.Errorf("loading collection for delete: %w", err)
		}
	}

	expr := fmt.Sprintf("%s == '%s'", listingCollectionFieldListingUID, listingUID.String())
	if err := m.c.Delete(ctx, ListingCollectionName, "", expr); err != nil {
		return fmt.Errorf("deleting vector: %w", err)
	}

	log.Info("Successfully deleted vector")
	return nil
}

// SearchSimilarListings performs an approximate nearest neighbor search and
// returns the matches ordered by ascending cosine distance.
func (m *milvusClient) SearchSimilarListings(ctx context.Context, p SearchVectorParam) ([]SimilarListingVector, error) {
	log, _ := logger.GetZapLogger(ctx)
	log = log.With(zap.String("collection_name", ListingCollectionName))

	t := time.Now()
	has, err := m.c.HasCollection(ctx, ListingCollectionName)
	if err != nil {
		return nil, fmt.Errorf("checking collection existence: %w", err)
	}
	if !has {
		return nil, fmt.Errorf("checking collection existence: %w", errorsx.ErrNotFound)
	}

	// Load the collection if it's not already loaded
	err = m.c.LoadCollection(ctx, ListingCollectionName, false)
	if err != nil {
		return nil, fmt.Errorf("loading collection: %w", err)
	}

	log.Info("Collection load.", zap.Duration("duration", time.Since(t)))

	outputFields := []string{
		listingCollectionFieldListingUID,
		listingCollectionFieldOwnerUID,
		listingCollectionFieldEmbedding,
	}

	var filterExpr string
	if !p.ExcludeListingUID.IsNil() {
		filterExpr = fmt.Sprintf("%s != '%s'", listingCollectionFieldListingUID, p.ExcludeListingUID.String())
	}
	if !p.OwnerUID.IsNil() {
		ownerFilter := fmt.Sprintf("%s == '%s'", listingCollectionFieldOwnerUID, p.OwnerUID.String())
		if filterExpr != "" {
			filterExpr = filterExpr + " and " + ownerFilter
		} else {
			filterExpr = ownerFilter
		}
	}

	sp, err := entity.NewIndexSCANNSearchParam(nProbe, reorderK)
	if err != nil {
		return nil, fmt.Errorf("creating search param: %w", err)
	}

	t = time.Now()
	results, err := m.c.Search(
		ctx,
		ListingCollectionName,
		nil,
		filterExpr,
		outputFields,
		[]entity.Vector{entity.FloatVector(p.Vector)},
		listingCollectionFieldEmbedding,
		metricType,
		int(p.TopK),
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	log.Info("Vector search.", zap.Duration("duration", time.Since(t)))

	var similar []SimilarListingVector
	for _, result := range results {
		if result.ResultCount == 0 {
			continue
		}
		listingUIDs, err := getStringData(result.Fields.GetColumn(listingCollectionFieldListingUID))
		if err != nil {
			return nil, fmt.Errorf("getting listing UID column value: %w", err)
		}
		ownerUIDs, err := getStringData(result.Fields.GetColumn(listingCollectionFieldOwnerUID))
		if err != nil {
			return nil, fmt.Errorf("getting owner UID column value: %w", err)
		}
		vectors := result.Fields.GetColumn(listingCollectionFieldEmbedding).(*entity.ColumnFloatVector)
		scores := result.Scores

		for i := range listingUIDs {
			similar = append(similar, SimilarListingVector{
				ListingVector: ListingVector{
					ListingUID: uuid.FromStringOrNil(listingUIDs[i]),
					OwnerUID:   uuid.FromStringOrNil(ownerUIDs[i]),
					Vector:     vectors.Data()[i],
				},
				// The COSINE metric returns a similarity score in [-1, 1].
				// Convert it to a distance so lower always means closer.
				Distance: 1 - scores[i],
			})
		}
	}

	return similar, nil
}

// CollectionExists checks if the listing collection exists in Milvus.
func (m *milvusClient) CollectionExists(ctx context.Context) (bool, error) {
	has, err := m.c.HasCollection(ctx, ListingCollectionName)
	if err != nil {
		return false, fmt.Errorf("checking collection existence: %w", err)
	}
	return has, nil
}

// FlushCollection flushes the listing collection to persist data immediately.
func (m *milvusClient) FlushCollection(ctx context.Context) error {
	log, _ := logger.GetZapLogger(ctx)
	log = log.With(zap.String("collection_name", ListingCollectionName))

	has, err := m.c.HasCollection(ctx, ListingCollectionName)
	if err != nil {
		return fmt.Errorf("checking collection existence: %w", err)
	}
	if !has {
		return fmt.Errorf("collection does not exist: %w", errorsx.ErrNotFound)
	}

	maxRetries := 3
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = m.c.Flush(ctx, ListingCollectionName, false)
		if err == nil {
			break
		}
		log.Warn("Failed to flush collection, retrying", zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(time.Second * time.Duration(attempt))
	}
	if err != nil {
		return fmt.Errorf("flushing collection: %w", err)
	}

	log.Info("Successfully flushed collection")
	return nil
}

func getStringData(col entity.Column) ([]string, error) {
	switch v := col.(type) {
	case *entity.ColumnVarChar:
		return v.Data(), nil
	case *entity.ColumnString:
		return v.Data(), nil
	default:
		return nil, fmt.Errorf("unexpected column type for string data: %T", col)
	}
}
