package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	db, err := InitDB(":memory:")
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := CreateTables(db); err != nil {
		t.Fatalf("CreateTables failed: %v", err)
	}
	return NewFileStore(db)
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, FileCreateRequest{
		Filename:  "hello.mlm",
		Content:   "പറയു \"ഹലോ\"",
		SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a generated id")
	}

	f, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if f.Filename != "hello.mlm" || f.Content != "പറയു \"ഹലോ\"" || f.SessionID != "s1" {
		t.Errorf("Unexpected file: %+v", f)
	}
	if f.CreatedAt.IsZero() || !f.CreatedAt.Equal(f.UpdatedAt) {
		t.Errorf("Expected equal non-zero timestamps, got %v / %v", f.CreatedAt, f.UpdatedAt)
	}
}

func TestCreateDefaultsSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, FileCreateRequest{Filename: "a.mlm", Content: ""})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	f, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if f.SessionID != DefaultSessionID {
		t.Errorf("Expected session %q, got %q", DefaultSessionID, f.SessionID)
	}
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"not-a-uuid", "3f1c2a8e-6b1d-4a63-9d55-0c3c3c0f2b11"} {
		if _, err := store.Get(ctx, id); !errors.Is(err, ErrFileNotFound) {
			t.Errorf("Get(%q): expected ErrFileNotFound, got %v", id, err)
		}
	}
}

func TestCreateValidation(t *testing.T) {
	store := newTestStore(t)
	store.maxContentBytes = 16
	ctx := context.Background()

	tests := []struct {
		name string
		req  FileCreateRequest
		want error
	}{
		{"empty filename", FileCreateRequest{Filename: "  "}, ErrInvalidFilename},
		{"slash", FileCreateRequest{Filename: "a/b.mlm"}, ErrInvalidFilename},
		{"backslash", FileCreateRequest{Filename: `a\b.mlm`}, ErrInvalidFilename},
		{"control char", FileCreateRequest{Filename: "a\tb"}, ErrInvalidFilename},
		{"too long", FileCreateRequest{Filename: strings.Repeat("ക", MaxFilenameLength+1)}, ErrInvalidFilename},
		{"too large", FileCreateRequest{Filename: "big.mlm", Content: strings.Repeat("x", 17)}, ErrContentTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Create(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := store.Create(ctx, FileCreateRequest{Filename: strings.Repeat("ക", MaxFilenameLength)}); err != nil {
		t.Errorf("Filename of exactly %d characters should be accepted: %v", MaxFilenameLength, err)
	}
}

func TestSessionQuota(t *testing.T) {
	store := newTestStore(t)
	store.maxFilesPerSession = 2
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := store.Create(ctx, FileCreateRequest{Filename: "f.mlm", SessionID: "full"}); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
	}
	if _, err := store.Create(ctx, FileCreateRequest{Filename: "f.mlm", SessionID: "full"}); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("Expected ErrQuotaExceeded, got %v", err)
	}
	if _, err := store.Create(ctx, FileCreateRequest{Filename: "f.mlm", SessionID: "other"}); err != nil {
		t.Errorf("Quota must be per session: %v", err)
	}
}

func TestSessionQuotaConcurrentCreates(t *testing.T) {
	store := newTestStore(t)
	store.maxFilesPerSession = 5
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(ctx, FileCreateRequest{Filename: "f.mlm", SessionID: "busy"})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			} else if !errors.Is(err, ErrQuotaExceeded) {
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 5 {
		t.Errorf("Expected exactly 5 files to be created, got %d", created)
	}
	files, err := store.ListBySession(ctx, "busy")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 5 {
		t.Errorf("Expected 5 stored files, got %d", len(files))
	}
}

func TestListBySessionNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	var ids []string
	for _, name := range []string{"one.mlm", "two.mlm", "three.mlm"} {
		id, err := store.Create(ctx, FileCreateRequest{Filename: name, SessionID: "s"})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		ids = append(ids, id)
	}
	if _, err := store.Create(ctx, FileCreateRequest{Filename: "elsewhere.mlm", SessionID: "t"}); err != nil {
		t.Fatal(err)
	}

	files, err := store.ListBySession(ctx, "s")
	if err != nil {
		t.Fatalf("ListBySession failed: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("Expected 3 files, got %d", len(files))
	}
	if files[0].ID != ids[2] || files[2].ID != ids[0] {
		t.Errorf("Expected newest first, got %+v", files)
	}
	if files[0].Filename != "three.mlm" {
		t.Errorf("Expected three.mlm first, got %s", files[0].Filename)
	}

	empty, err := store.ListBySession(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListBySession failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("Expected an empty non-nil slice, got %#v", empty)
	}

	if _, err := store.ListBySession(ctx, " "); !errors.Is(err, ErrInvalidSessionID) {
		t.Errorf("Expected ErrInvalidSessionID, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, FileCreateRequest{Filename: "old.mlm", Content: "പറയു \"a\"", SessionID: "s"})
	if err != nil {
		t.Fatal(err)
	}

	content := "പറയു \"b\""
	updated, err := store.Update(ctx, id, FileUpdateRequest{Content: &content})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Content != content || updated.Filename != "old.mlm" {
		t.Errorf("Unexpected update result: %+v", updated)
	}

	name := "new.mlm"
	if _, err := store.Update(ctx, id, FileUpdateRequest{Filename: &name}); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	f, err := store.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if f.Filename != "new.mlm" || f.Content != content {
		t.Errorf("Stored file not updated: %+v", f)
	}

	if _, err := store.Update(ctx, id, FileUpdateRequest{}); !errors.Is(err, ErrNothingToUpdate) {
		t.Errorf("Expected ErrNothingToUpdate, got %v", err)
	}
	bad := "x/y"
	if _, err := store.Update(ctx, id, FileUpdateRequest{Filename: &bad}); !errors.Is(err, ErrInvalidFilename) {
		t.Errorf("Expected ErrInvalidFilename, got %v", err)
	}
	if _, err := store.Update(ctx, "3f1c2a8e-6b1d-4a63-9d55-0c3c3c0f2b11", FileUpdateRequest{Content: &content}); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, FileCreateRequest{Filename: "gone.mlm"})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected deleted file to be gone, got %v", err)
	}
	if err := store.Delete(ctx, id); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound on second delete, got %v", err)
	}
}
