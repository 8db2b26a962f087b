package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/lunchmate/internal/ledger"
	"github.com/hitoshi/lunchmate/internal/model"
)

func TestLunchHandler_ListTodayLunches(t *testing.T) {
	l := &mockLedger{
		fetchTodayFn: func(ctx context.Context) ([]*model.Lunch, error) {
			return []*model.Lunch{
				{ID: "u1|d", Workmate: model.WorkmateSnapshot{Name: "Alice"}, Restaurant: model.Restaurant{Name: "A"}},
				{ID: "u2|d", Workmate: model.WorkmateSnapshot{Name: "Bob"}, Restaurant: model.Restaurant{Name: "B"}},
			}, nil
		},
	}
	h := NewLunchHandler(&mockDirectory{}, l)

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/lunches/today", nil), "u1")
	w := httptest.NewRecorder()
	h.ListTodayLunches(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp []lunchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 || resp[1].Workmate.Name != "Bob" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestLunchHandler_ListTodayLunches_StoreFailure(t *testing.T) {
	l := &mockLedger{
		fetchTodayFn: func(ctx context.Context) ([]*model.Lunch, error) {
			return nil, errors.New("store down")
		},
	}
	h := NewLunchHandler(&mockDirectory{}, l)

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/lunches/today", nil), "u1")
	w := httptest.NewRecorder()
	h.ListTodayLunches(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestLunchHandler_ListTodayRestaurantNames_EmptyIsArray(t *testing.T) {
	h := NewLunchHandler(&mockDirectory{}, &mockLedger{})

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/lunches/today/restaurants", nil), "u1")
	w := httptest.NewRecorder()
	h.ListTodayRestaurantNames(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Body.String(); got != "{\"names\":[]}\n" {
		t.Errorf("body = %q", got)
	}
}

func TestLunchHandler_ListWorkmates_PassesQuery(t *testing.T) {
	all := []*model.Workmate{
		{ExternalID: "u1", Name: "Alice"},
		{ExternalID: "u2", Name: "Bob"},
	}
	dir := &mockDirectory{
		listWorkmatesFn: func(ctx context.Context) ([]*model.Workmate, error) {
			return all, nil
		},
	}
	var gotQuery string
	l := &mockLedger{
		withLunchFn: func(ctx context.Context, workmates []*model.Workmate, query string) ([]ledger.WorkmateLunch, error) {
			gotQuery = query
			if len(workmates) != 2 {
				t.Errorf("workmates = %d, want 2", len(workmates))
			}
			return []ledger.WorkmateLunch{
				{Workmate: all[0], Lunch: &model.Lunch{Restaurant: model.Restaurant{Name: "A"}}},
				{Workmate: all[1]},
			}, nil
		},
	}
	h := NewLunchHandler(dir, l)

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/workmates?q=ali", nil), "u1")
	w := httptest.NewRecorder()
	h.ListWorkmates(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotQuery != "ali" {
		t.Errorf("query = %q, want ali", gotQuery)
	}

	var resp []workmateSummaryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("resp = %d entries, want 2", len(resp))
	}
	if resp[0].Lunch == nil || resp[0].Lunch.Restaurant.Name != "A" {
		t.Errorf("resp[0].lunch = %+v", resp[0].Lunch)
	}
	if resp[1].Lunch != nil {
		t.Errorf("resp[1].lunch = %+v, want nil", resp[1].Lunch)
	}
}
