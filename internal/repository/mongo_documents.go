package repository

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/hitoshi/lunchmate/internal/model"
)

type workmateDocument struct {
	ID                  string    `bson:"_id"`
	UID                 string    `bson:"uid"`
	Name                string    `bson:"name"`
	Email               string    `bson:"email"`
	AvatarURL           string    `bson:"avatarUrl"`
	NotificationEnabled bool      `bson:"notificationEnabled"`
	PushEndpoint        string    `bson:"pushEndpoint"`
	CreatedAt           time.Time `bson:"createdAt"`
	UpdatedAt           time.Time `bson:"updatedAt"`
}

func newWorkmateDocument(w *model.Workmate) workmateDocument {
	return workmateDocument{
		ID:                  w.ID,
		UID:                 w.ExternalID,
		Name:                w.Name,
		Email:               w.Email,
		AvatarURL:           w.AvatarURL,
		NotificationEnabled: w.NotificationEnabled,
		PushEndpoint:        w.PushEndpoint,
		CreatedAt:           w.CreatedAt,
		UpdatedAt:           w.UpdatedAt,
	}
}

func (d workmateDocument) toModel() *model.Workmate {
	return &model.Workmate{
		ID:                  d.ID,
		ExternalID:          d.UID,
		Name:                d.Name,
		Email:               d.Email,
		AvatarURL:           d.AvatarURL,
		NotificationEnabled: d.NotificationEnabled,
		PushEndpoint:        d.PushEndpoint,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

type lunchDocument struct {
	ID         string                 `bson:"_id"`
	Workmate   model.WorkmateSnapshot `bson:"workmate"`
	Restaurant model.Restaurant       `bson:"restaurant"`
	Date       string                 `bson:"date"`
	CreatedAt  time.Time              `bson:"createdAt"`
}

func newLunchDocument(l *model.Lunch) lunchDocument {
	return lunchDocument{
		ID:         l.ID,
		Workmate:   l.Workmate,
		Restaurant: l.Restaurant,
		Date:       l.Date,
		CreatedAt:  l.CreatedAt,
	}
}

func (d lunchDocument) toModel() *model.Lunch {
	return &model.Lunch{
		ID:         d.ID,
		Workmate:   d.Workmate,
		Restaurant: d.Restaurant,
		Date:       d.Date,
		CreatedAt:  d.CreatedAt,
	}
}

// lunchFilterDocument はLunchFilterをドキュメントストアのクエリに変換する。
// フィールド名はドキュメントの埋め込みパス（workmate.uid, restaurant.name）を使う。
func lunchFilterDocument(filter LunchFilter) bson.D {
	query := bson.D{}
	if filter.Date != "" {
		query = append(query, bson.E{Key: "date", Value: filter.Date})
	}
	if filter.WorkmateExternalID != "" {
		query = append(query, bson.E{Key: "workmate.uid", Value: filter.WorkmateExternalID})
	}
	if filter.RestaurantName != "" {
		query = append(query, bson.E{Key: "restaurant.name", Value: filter.RestaurantName})
	}
	return query
}

type likedRestaurantDocument struct {
	ID         string    `bson:"_id"`
	WorkmateID string    `bson:"workmateId"`
	Name       string    `bson:"name"`
	CreatedAt  time.Time `bson:"createdAt"`
}
