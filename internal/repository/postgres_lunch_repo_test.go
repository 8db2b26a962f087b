package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/hitoshi/lunchmate/internal/database"
	"github.com/hitoshi/lunchmate/internal/model"
)

func TestPostgresLunchRepo_ImplementsInterface(t *testing.T) {
	var _ LunchRepository = (*PostgresLunchRepo)(nil)
}

func TestBuildLunchWhere(t *testing.T) {
	tests := []struct {
		name      string
		filter    LunchFilter
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "条件なし",
			filter:    LunchFilter{},
			wantWhere: "",
			wantArgs:  nil,
		},
		{
			name:      "日付のみ",
			filter:    LunchFilter{Date: "2024-05-01T00:00:00Z"},
			wantWhere: " WHERE date = $1",
			wantArgs:  []any{"2024-05-01T00:00:00Z"},
		},
		{
			name: "3条件すべて",
			filter: LunchFilter{
				Date:               "2024-05-01T00:00:00Z",
				WorkmateExternalID: "u1",
				RestaurantName:     "Chez A",
			},
			wantWhere: " WHERE date = $1 AND workmate_external_id = $2 AND restaurant_name = $3",
			wantArgs:  []any{"2024-05-01T00:00:00Z", "u1", "Chez A"},
		},
		{
			name:      "日付とレストラン名",
			filter:    LunchFilter{Date: "d", RestaurantName: "Chez A"},
			wantWhere: " WHERE date = $1 AND restaurant_name = $2",
			wantArgs:  []any{"d", "Chez A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildLunchWhere(tt.filter)
			if where != tt.wantWhere {
				t.Errorf("where = %q, want %q", where, tt.wantWhere)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestPostgresLunchRepo_Delete_RequiresFilter(t *testing.T) {
	repo := NewPostgresLunchRepo(nil)
	if _, _, err := repo.Delete(context.Background(), LunchFilter{}); err == nil {
		t.Error("フィルタなしの削除はエラーになるべき")
	}
}

// openTestDB はマイグレーション済みのテスト用データベースを返す。
// 接続できない場合はテストをスキップする。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := database.Open(dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	if err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	if _, err := db.Exec(`TRUNCATE lunches, liked_restaurants, workmates`); err != nil {
		t.Fatalf("テーブルの初期化に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestLunch(externalID, restaurantName, date string) *model.Lunch {
	rating := 4.5
	return &model.Lunch{
		ID:       model.LunchID(externalID, date),
		Workmate: model.WorkmateSnapshot{ExternalID: externalID, Name: "Name " + externalID},
		Restaurant: model.Restaurant{
			ID:     "place-" + restaurantName,
			Name:   restaurantName,
			Rating: &rating,
		},
		Date:      date,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestPostgresLunchRepo_UpsertReplacesSameDay(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresLunchRepo(db)
	ctx := context.Background()
	date := "2024-05-01T00:00:00Z"

	if err := repo.Upsert(ctx, newTestLunch("u1", "Chez A", date)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := repo.Upsert(ctx, newTestLunch("u1", "Chez B", date)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	lunches, err := repo.Find(ctx, LunchFilter{Date: date, WorkmateExternalID: "u1"})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(lunches) != 1 {
		t.Fatalf("len(lunches) = %d, want 1", len(lunches))
	}
	if lunches[0].Restaurant.Name != "Chez B" {
		t.Errorf("restaurant = %q, want %q", lunches[0].Restaurant.Name, "Chez B")
	}
	if lunches[0].Restaurant.Rating == nil || *lunches[0].Restaurant.Rating != 4.5 {
		t.Errorf("rating snapshot was not preserved: %v", lunches[0].Restaurant.Rating)
	}
}

func TestPostgresLunchRepo_DeleteCountsMatches(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresLunchRepo(db)
	ctx := context.Background()
	date := "2024-05-01T00:00:00Z"

	if err := repo.Upsert(ctx, newTestLunch("u1", "Chez A", date)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	matched, deleted, err := repo.Delete(ctx, LunchFilter{Date: date, WorkmateExternalID: "u1", RestaurantName: "Chez Z"})
	if err != nil || matched != 0 || deleted != 0 {
		t.Errorf("不一致の削除: matched=%d deleted=%d err=%v", matched, deleted, err)
	}

	matched, deleted, err = repo.Delete(ctx, LunchFilter{Date: date, WorkmateExternalID: "u1", RestaurantName: "Chez A"})
	if err != nil || matched != 1 || deleted != 1 {
		t.Errorf("一致の削除: matched=%d deleted=%d err=%v", matched, deleted, err)
	}
}

func TestPostgresLunchRepo_DeleteBefore(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresLunchRepo(db)
	ctx := context.Background()

	for _, date := range []string{"2024-04-01T00:00:00Z", "2024-04-30T00:00:00Z", "2024-05-01T00:00:00Z"} {
		if err := repo.Upsert(ctx, newTestLunch("u1", "Chez A", date)); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	deleted, err := repo.DeleteBefore(ctx, "2024-05-01T00:00:00Z")
	if err != nil || deleted != 2 {
		t.Fatalf("DeleteBefore = %d, %v; want 2, nil", deleted, err)
	}

	n, err := repo.Count(ctx, LunchFilter{})
	if err != nil || n != 1 {
		t.Errorf("remaining = %d, err = %v; want 1", n, err)
	}
}

func TestPostgresWorkmateRepo_CreateAndUpdate(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresWorkmateRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()

	w := &model.Workmate{
		ID: "6f1c1a52-8f7d-4a8b-9d0e-2f4b9c1a7e01", ExternalID: "ext-1", Name: "Alice",
		CreatedAt: now, UpdatedAt: now,
	}
	if err := repo.Create(ctx, w); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// 同じ外部IDの2回目は無視される
	dup := *w
	dup.ID = "6f1c1a52-8f7d-4a8b-9d0e-2f4b9c1a7e02"
	if err := repo.Create(ctx, &dup); err != nil {
		t.Fatalf("duplicate Create failed: %v", err)
	}

	if err := repo.UpdateNotificationEnabled(ctx, "ext-1", true); err != nil {
		t.Fatalf("UpdateNotificationEnabled failed: %v", err)
	}
	got, err := repo.FindByExternalID(ctx, "ext-1")
	if err != nil || got == nil {
		t.Fatalf("FindByExternalID: got=%v err=%v", got, err)
	}
	if got.ID != w.ID || !got.NotificationEnabled {
		t.Errorf("got = %+v", got)
	}

	err = repo.UpdatePushEndpoint(ctx, "missing", "arn")
	if !errors.Is(err, model.ErrEmptyResult) {
		t.Errorf("存在しない同僚の更新は ErrEmptyResult を返すべき: %v", err)
	}

	missing, err := repo.FindByExternalID(ctx, "missing")
	if err != nil || missing != nil {
		t.Errorf("見つからない場合は nil, nil: got=%v err=%v", missing, err)
	}
}
