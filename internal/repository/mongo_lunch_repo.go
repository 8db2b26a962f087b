package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hitoshi/lunchmate/internal/model"
)

// MongoLunchRepo はMongoDBを使用したランチリポジトリ。
type MongoLunchRepo struct {
	collection *mongo.Collection
}

// NewMongoLunchRepo はMongoLunchRepoを生成する。
func NewMongoLunchRepo(db *mongo.Database, collectionName string) *MongoLunchRepo {
	return &MongoLunchRepo{collection: db.Collection(collectionName)}
}

// Upsert はランチを複合キー（同僚・日付）で書き込む。
func (r *MongoLunchRepo) Upsert(ctx context.Context, lunch *model.Lunch) error {
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": lunch.ID},
		newLunchDocument(lunch),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert lunch: %w", err)
	}
	return nil
}

// Find は条件に一致するランチを作成順で取得する。
func (r *MongoLunchRepo) Find(ctx context.Context, filter LunchFilter) ([]*model.Lunch, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, lunchFilterDocument(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find lunches: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []lunchDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode lunches: %w", err)
	}

	lunches := make([]*model.Lunch, 0, len(docs))
	for _, d := range docs {
		lunches = append(lunches, d.toModel())
	}
	return lunches, nil
}

// Count は条件に一致するランチの件数を返す。
func (r *MongoLunchRepo) Count(ctx context.Context, filter LunchFilter) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, lunchFilterDocument(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count lunches: %w", err)
	}
	return n, nil
}

// Delete は条件に一致するランチをすべて削除する。
// 件数確認と削除は別のラウンドトリップのため、間に他の書き込みが入るとmatchedとdeletedがずれる。
func (r *MongoLunchRepo) Delete(ctx context.Context, filter LunchFilter) (int64, int64, error) {
	query := lunchFilterDocument(filter)
	if len(query) == 0 {
		return 0, 0, fmt.Errorf("refusing to delete lunches without filter")
	}

	matched, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count lunches: %w", err)
	}
	if matched == 0 {
		return 0, 0, nil
	}

	result, err := r.collection.DeleteMany(ctx, query)
	if err != nil {
		return matched, 0, fmt.Errorf("failed to delete lunches: %w", err)
	}
	return matched, result.DeletedCount, nil
}

// DeleteBefore は日付キーがbeforeより前のランチを削除する。
func (r *MongoLunchRepo) DeleteBefore(ctx context.Context, before string) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"date": bson.M{"$lt": before}})
	if err != nil {
		return 0, fmt.Errorf("failed to prune lunches: %w", err)
	}
	return result.DeletedCount, nil
}

// compile-time interface check
var (
	_ LunchRepository = (*MongoLunchRepo)(nil)
	_ LunchPruner     = (*MongoLunchRepo)(nil)
)
