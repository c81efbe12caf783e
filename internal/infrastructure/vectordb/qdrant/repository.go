// Package qdrant provides an alias vector index using Qdrant.
package qdrant

import (
	"context"
	"errors"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/ports"
	"github.com/ersonp/newsground/internal/infrastructure/config"
)

var (
	_ ports.AliasIndex        = (*Repository)(nil)
	_ ports.CollectionManager = (*Repository)(nil)
)

// Payload keys stored with every alias point.
const (
	payloadEntityID   = "entity_id"
	payloadText       = "alias_text"
	payloadNormalized = "normalized"
	payloadType       = "alias_type"
)

// Repository implements ports.AliasIndex and ports.CollectionManager.
type Repository struct {
	client     pb.CollectionsClient
	points     pb.PointsClient
	collection string
	conn       *grpc.ClientConn
}

// NewRepository creates a new Qdrant repository.
func NewRepository(cfg config.QdrantConfig) (*Repository, error) {
	if cfg.Collection == "" {
		return nil, errors.New("qdrant collection is required")
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	return &Repository{
		client:     pb.NewCollectionsClient(conn),
		points:     pb.NewPointsClient(conn),
		collection: cfg.Collection,
		conn:       conn,
	}, nil
}

// apiKeyInterceptor attaches the Qdrant api-key header to every call.
func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Close closes the gRPC connection.
func (r *Repository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// EnsureCollection creates the collection if it doesn't exist.
func (r *Repository) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	_, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err == nil {
		return nil
	}

	_, err = r.client.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	return nil
}

// DeleteCollection removes the collection and all its points.
func (r *Repository) DeleteCollection(ctx context.Context) error {
	_, err := r.client.Delete(ctx, &pb.DeleteCollection{
		CollectionName: r.collection,
	})
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// Save stores an alias with its embedding.
func (r *Repository) Save(ctx context.Context, alias entities.Alias, embedding []float32) error {
	return r.SaveBatch(ctx, []entities.Alias{alias}, [][]float32{embedding})
}

// SaveBatch stores multiple aliases. Point IDs are the alias IDs, so saving
// an alias again replaces its point.
func (r *Repository) SaveBatch(ctx context.Context, aliases []entities.Alias, embeddings [][]float32) error {
	if len(aliases) != len(embeddings) {
		return fmt.Errorf("got %d aliases but %d embeddings", len(aliases), len(embeddings))
	}
	if len(aliases) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, 0, len(aliases))
	for i, alias := range aliases {
		if alias.ID == "" {
			return fmt.Errorf("alias %q has no id", alias.Text)
		}
		points = append(points, aliasPoint(alias, embeddings[i]))
	}

	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	return nil
}

func aliasPoint(alias entities.Alias, embedding []float32) *pb.PointStruct {
	return &pb.PointStruct{
		Id: &pb.PointId{
			PointIdOptions: &pb.PointId_Uuid{
				Uuid: alias.ID,
			},
		},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{
					Data: embedding,
				},
			},
		},
		Payload: map[string]*pb.Value{
			payloadEntityID:   {Kind: &pb.Value_StringValue{StringValue: alias.EntityID}},
			payloadText:       {Kind: &pb.Value_StringValue{StringValue: alias.Text}},
			payloadNormalized: {Kind: &pb.Value_StringValue{StringValue: alias.Normalized}},
			payloadType:       {Kind: &pb.Value_StringValue{StringValue: string(alias.Type)}},
		},
	}
}

// Search performs a semantic search and returns the closest aliases.
func (r *Repository) Search(ctx context.Context, embedding []float32, limit int) ([]entities.AliasMatch, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	return scoredPointsToMatches(resp.Result), nil
}

// Delete removes an alias by its ID.
func (r *Repository) Delete(ctx context.Context, aliasID string) error {
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{
						{PointIdOptions: &pb.PointId_Uuid{Uuid: aliasID}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting point: %w", err)
	}

	return nil
}

// Count returns the number of indexed aliases.
func (r *Repository) Count(ctx context.Context) (uint64, error) {
	resp, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("getting collection info: %w", err)
	}

	if resp.Result.PointsCount == nil {
		return 0, nil
	}

	return *resp.Result.PointsCount, nil
}

// scoredPointsToMatches converts scored points to alias matches. Cosine
// scores are clamped into [0, 1].
func scoredPointsToMatches(points []*pb.ScoredPoint) []entities.AliasMatch {
	matches := make([]entities.AliasMatch, 0, len(points))

	for _, point := range points {
		payload := point.Payload
		score := float64(point.Score)
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		matches = append(matches, entities.AliasMatch{
			AliasID:    point.Id.GetUuid(),
			EntityID:   getStringValue(payload, payloadEntityID),
			Text:       getStringValue(payload, payloadText),
			Normalized: getStringValue(payload, payloadNormalized),
			Score:      score,
			Source:     "qdrant",
		})
	}

	return matches
}

func getStringValue(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}
