package catalog

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/propchat/pkg/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DocumentSource reads listings from a MongoDB collection where every document
// is one listing tagged with tenant_id.
type DocumentSource struct {
	coll *mongo.Collection
}

type propertyDocument struct {
	TenantID        string `bson:"tenant_id"`
	models.Property `bson:",inline"`
}

// NewDocumentSource creates a source over an existing collection.
func NewDocumentSource(coll *mongo.Collection) *DocumentSource {
	return &DocumentSource{coll: coll}
}

// ConnectDocumentStore opens a client and verifies connectivity.
func ConnectDocumentStore(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect document store: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping document store: %w", err)
	}
	return client, nil
}

func (s *DocumentSource) Name() string { return "document" }

func (s *DocumentSource) Load(ctx context.Context, tenantID string) ([]models.Property, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"tenant_id": models.TenantDomain(tenantID)})
	if err != nil {
		return nil, fmt.Errorf("find listings: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []propertyDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrTenantNotFound
	}

	props := make([]models.Property, len(docs))
	for i, d := range docs {
		props[i] = d.Property
	}
	return props, nil
}
