package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hitoshi/lunchmate/internal/model"
)

// MongoLikedRestaurantRepo はMongoDBを使用したお気に入りリポジトリ。
type MongoLikedRestaurantRepo struct {
	collection *mongo.Collection
}

// NewMongoLikedRestaurantRepo はMongoLikedRestaurantRepoを生成する。
func NewMongoLikedRestaurantRepo(db *mongo.Database, collectionName string) *MongoLikedRestaurantRepo {
	return &MongoLikedRestaurantRepo{collection: db.Collection(collectionName)}
}

// Add はお気に入りを追加する。既に存在する場合は何もしない。
func (r *MongoLikedRestaurantRepo) Add(ctx context.Context, liked *model.LikedRestaurant) error {
	filter := bson.M{"workmateId": liked.WorkmateID, "name": liked.Name}
	update := bson.M{
		"$setOnInsert": likedRestaurantDocument{
			ID:         liked.ID,
			WorkmateID: liked.WorkmateID,
			Name:       liked.Name,
			CreatedAt:  liked.CreatedAt,
		},
	}
	if _, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to upsert liked restaurant: %w", err)
	}
	return nil
}

// Remove はお気に入りを削除し、削除件数を返す。
func (r *MongoLikedRestaurantRepo) Remove(ctx context.Context, workmateID, name string) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"workmateId": workmateID, "name": name})
	if err != nil {
		return 0, fmt.Errorf("failed to delete liked restaurant: %w", err)
	}
	return result.DeletedCount, nil
}

// Exists はお気に入りの存在を確認する。
func (r *MongoLikedRestaurantRepo) Exists(ctx context.Context, workmateID, name string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx,
		bson.M{"workmateId": workmateID, "name": name},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("failed to check liked restaurant: %w", err)
	}
	return n > 0, nil
}

// ListNames は同僚のお気に入りレストラン名を取得する。
func (r *MongoLikedRestaurantRepo) ListNames(ctx context.Context, workmateID string) ([]string, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"workmateId": workmateID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list liked restaurants: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []likedRestaurantDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode liked restaurants: %w", err)
	}

	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.Name)
	}
	return names, nil
}

// compile-time interface check
var _ LikedRestaurantRepository = (*MongoLikedRestaurantRepo)(nil)
