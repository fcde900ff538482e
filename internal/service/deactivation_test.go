package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"blockwatch/internal/client/platform"
)

func newFilter(t *testing.T, api *fakeAPI, batchSize int) (*DeactivationService, *stubRepo) {
	t.Helper()
	srv := api.server(t)
	repo := newStubRepo()
	return &DeactivationService{
		Client:    platform.NewClient(srv.Client(), srv.URL, "app-token"),
		Store:     repo,
		Logger:    zap.NewNop(),
		BatchSize: batchSize,
	}, repo
}

func TestFilterRemovedSpansBatches(t *testing.T) {
	api := newFakeAPI()
	api.lookups["1"] = platform.User{ID: "1", Handle: "one"}
	api.lookups["3"] = platform.User{ID: "3", Handle: "three"}
	svc, _ := newFilter(t, api, 1)

	active := svc.FilterRemoved(context.Background(), "42", []string{"1", "2", "3"})
	if len(active) != 2 || active[0] != "1" || active[1] != "3" {
		t.Fatalf("unexpected survivors: %v", active)
	}
}

func TestFilterRemovedEmptyInput(t *testing.T) {
	svc, _ := newFilter(t, newFakeAPI(), 0)
	if got := svc.FilterRemoved(context.Background(), "42", nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestFilterRemovedRefreshesDirectory(t *testing.T) {
	api := newFakeAPI()
	api.lookups["5"] = platform.User{ID: "5", Handle: "still_here", DisplayName: "Still Here"}
	svc, repo := newFilter(t, api, 0)

	if got := svc.FilterRemoved(context.Background(), "42", []string{"5"}); len(got) != 1 {
		t.Fatalf("unexpected survivors: %v", got)
	}
	items, _ := repo.ListIdentitiesByIDs(context.Background(), []string{"5"})
	if len(items) != 1 {
		t.Fatalf("directory row missing")
	}
	if items[0].Handle == nil || *items[0].Handle != "still_here" {
		t.Fatalf("handle not refreshed: %+v", items[0])
	}
	if items[0].CheckedAt == nil {
		t.Fatalf("checked timestamp not set")
	}
}

func TestFilterRemovedBatchSizeClamp(t *testing.T) {
	svc, _ := newFilter(t, newFakeAPI(), platform.LookupMaxIDs+50)
	if got := svc.batchSize(); got != platform.LookupMaxIDs {
		t.Fatalf("oversized batch not clamped: %d", got)
	}
	svc.BatchSize = 0
	if got := svc.batchSize(); got != platform.LookupMaxIDs {
		t.Fatalf("zero batch not defaulted: %d", got)
	}
}
