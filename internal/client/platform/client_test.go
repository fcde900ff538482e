package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListBlocksPaginates(t *testing.T) {
	var gotAuth, gotCursor, gotStringify string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1.1/blocks/ids.json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotCursor = r.URL.Query().Get("cursor")
		gotStringify = r.URL.Query().Get("stringify_ids")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ids":["101","102"],"next_cursor":1593007051,"next_cursor_str":"1593007051"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "app-token")
	page, err := c.ListBlocks(context.Background(), "acct-token", "")
	if err != nil {
		t.Fatalf("ListBlocks: %v", err)
	}
	if gotAuth != "Bearer acct-token" {
		t.Fatalf("expected account token, got %q", gotAuth)
	}
	if gotCursor != CursorStart {
		t.Fatalf("expected start cursor %q, got %q", CursorStart, gotCursor)
	}
	if gotStringify != "true" {
		t.Fatalf("expected stringify_ids=true, got %q", gotStringify)
	}
	if len(page.IDs) != 2 || page.IDs[0] != "101" || page.IDs[1] != "102" {
		t.Fatalf("unexpected ids: %v", page.IDs)
	}
	if page.NextCursor != "1593007051" {
		t.Fatalf("unexpected next cursor: %s", page.NextCursor)
	}
}

func TestListBlocksNumericIDsKeepExactForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ids":[1306069426958077954,55],"next_cursor":0}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "app-token")
	page, err := c.ListBlocks(context.Background(), "acct-token", CursorStart)
	if err != nil {
		t.Fatalf("ListBlocks: %v", err)
	}
	if len(page.IDs) != 2 || page.IDs[0] != "1306069426958077954" || page.IDs[1] != "55" {
		t.Fatalf("numeric ids mangled: %v", page.IDs)
	}
	if page.NextCursor != CursorEnd {
		t.Fatalf("expected end cursor, got %s", page.NextCursor)
	}
}

func TestListBlocksRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"errors":[{"code":88,"message":"Rate limit exceeded"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "app-token")
	_, err := c.ListBlocks(context.Background(), "acct-token", CursorStart)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsRateLimited(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if IsNotFound(err) {
		t.Fatalf("rate limit misread as not found")
	}
}

func TestLookupUsers(t *testing.T) {
	var gotAuth, gotUserIDs string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1.1/users/lookup.json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotAuth = r.Header.Get("Authorization")
		gotUserIDs = r.PostFormValue("user_id")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":101,"id_str":"101","screen_name":"alice","name":"Alice"},{"id":102,"id_str":"102","screen_name":"bob","name":"Bob"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "app-token")
	users, err := c.LookupUsers(context.Background(), []string{"101", "102", "103"})
	if err != nil {
		t.Fatalf("LookupUsers: %v", err)
	}
	if gotAuth != "Bearer app-token" {
		t.Fatalf("expected app token, got %q", gotAuth)
	}
	if gotUserIDs != "101,102,103" {
		t.Fatalf("unexpected user_id form value: %q", gotUserIDs)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].ID != "101" || users[0].Handle != "alice" || users[0].DisplayName != "Alice" {
		t.Fatalf("unexpected first user: %+v", users[0])
	}
}

func TestLookupUsersNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[{"code":17,"message":"No user matches for specified terms."}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "app-token")
	_, err := c.LookupUsers(context.Background(), []string{"999"})
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLookupUsersRejectsOversizedBatch(t *testing.T) {
	c := NewClient(http.DefaultClient, "http://unused", "app-token")
	ids := make([]string, LookupMaxIDs+1)
	for i := range ids {
		ids[i] = "1"
	}
	if _, err := c.LookupUsers(context.Background(), ids); err == nil {
		t.Fatalf("expected batch size error")
	}
}

func TestChunkIDs(t *testing.T) {
	ids := make([]string, 250)
	for i := range ids {
		ids[i] = "x"
	}
	chunks := ChunkIDs(ids, 100)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 100 || len(chunks[1]) != 100 || len(chunks[2]) != 50 {
		t.Fatalf("unexpected chunk sizes: %d %d %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
	if got := ChunkIDs(nil, 100); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}
