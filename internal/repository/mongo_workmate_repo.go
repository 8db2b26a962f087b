package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hitoshi/lunchmate/internal/model"
)

// MongoWorkmateRepo はMongoDBを使用した同僚リポジトリ。
type MongoWorkmateRepo struct {
	collection *mongo.Collection
}

// NewMongoWorkmateRepo はMongoWorkmateRepoを生成する。
func NewMongoWorkmateRepo(db *mongo.Database, collectionName string) *MongoWorkmateRepo {
	return &MongoWorkmateRepo{collection: db.Collection(collectionName)}
}

// FindByExternalID は外部IDで同僚を検索する。見つからない場合はnilを返す。
func (r *MongoWorkmateRepo) FindByExternalID(ctx context.Context, externalID string) (*model.Workmate, error) {
	var doc workmateDocument
	err := r.collection.FindOne(ctx, bson.M{"uid": externalID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find workmate by external ID: %w", err)
	}
	return doc.toModel(), nil
}

// Create は同僚を作成する。同じ外部IDが既に存在する場合は何もしない。
func (r *MongoWorkmateRepo) Create(ctx context.Context, w *model.Workmate) error {
	_, err := r.collection.InsertOne(ctx, newWorkmateDocument(w))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to insert workmate: %w", err)
	}
	return nil
}

// UpdateNotificationEnabled は通知設定を更新する。
func (r *MongoWorkmateRepo) UpdateNotificationEnabled(ctx context.Context, externalID string, enabled bool) error {
	return r.set(ctx, externalID, "notificationEnabled", enabled)
}

// UpdatePushEndpoint はプッシュ通知の配信先を更新する。
func (r *MongoWorkmateRepo) UpdatePushEndpoint(ctx context.Context, externalID, endpoint string) error {
	return r.set(ctx, externalID, "pushEndpoint", endpoint)
}

func (r *MongoWorkmateRepo) set(ctx context.Context, externalID, field string, value any) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"uid": externalID},
		bson.M{"$set": bson.M{field: value, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update workmate: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("workmate not found: %s: %w", externalID, model.ErrEmptyResult)
	}
	return nil
}

// List は全同僚を名前順で取得する。
func (r *MongoWorkmateRepo) List(ctx context.Context) ([]*model.Workmate, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "uid", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list workmates: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []workmateDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode workmates: %w", err)
	}

	workmates := make([]*model.Workmate, 0, len(docs))
	for _, d := range docs {
		workmates = append(workmates, d.toModel())
	}
	return workmates, nil
}

// Count は同僚の件数を返す。
func (r *MongoWorkmateRepo) Count(ctx context.Context) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count workmates: %w", err)
	}
	return int(n), nil
}

// compile-time interface check
var _ WorkmateRepository = (*MongoWorkmateRepo)(nil)
