package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBのコレクション名
const (
	CollectionWorkmates        = "workmates"
	CollectionLunches          = "lunches"
	CollectionLikedRestaurants = "likedRestaurants"
)

// OpenMongo はMongoDBに接続し、指定データベースのハンドルを返す。
// mongo.Connectは接続を遅延するため、接続確認にはPingMongoを使用すること。
func OpenMongo(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect mongo: %w", err)
	}

	return client, client.Database(dbName), nil
}

// MongoPinger はMongoDBクライアントをヘルスチェック用のPingContextに適合させる。
type MongoPinger struct {
	Client *mongo.Client
}

// PingContext はプライマリへのPingを行う。
func (p MongoPinger) PingContext(ctx context.Context) error {
	return p.Client.Ping(ctx, nil)
}

// EnsureMongoIndexes はドキュメントストアのインデックスを作成する。
// PostgreSQLのマイグレーションに相当し、既存インデックスがあっても成功する。
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	if _, err := db.Collection(CollectionWorkmates).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "uid", Value: 1}},
		Options: options.Index().SetName("uniq_workmate_uid").SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create workmates index: %w", err)
	}

	lunchIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "date", Value: 1}, {Key: "restaurant.name", Value: 1}},
			Options: options.Index().SetName("idx_lunch_date_restaurant_name"),
		},
		{
			Keys:    bson.D{{Key: "workmate.uid", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetName("idx_lunch_workmate_date"),
		},
	}
	if _, err := db.Collection(CollectionLunches).Indexes().CreateMany(ctx, lunchIndexes); err != nil {
		return fmt.Errorf("failed to create lunches indexes: %w", err)
	}

	if _, err := db.Collection(CollectionLikedRestaurants).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "workmateId", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetName("uniq_liked_workmate_name").SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create likedRestaurants index: %w", err)
	}

	return nil
}
