package archive

import (
	"context"
	"errors"
	"testing"
)

func TestLocalFS_ImplementsStorage(t *testing.T) {
	var _ Storage = (*LocalFS)(nil)
}

func TestLocalFS_WriteRead(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}

	ctx := context.Background()
	data := []byte(`{"id":"run-1"}`)

	if err := fs.Write(ctx, "2024-05-01/run.json", data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := fs.Read(ctx, "2024-05-01/run.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestLocalFS_ReadMissing(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())

	_, err := fs.Read(context.Background(), "nope/run.json")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalFS_RejectsEscape(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())

	if err := fs.Write(context.Background(), "../outside.txt", []byte("x")); err == nil {
		t.Error("expected error for path outside base")
	}
}

func TestLocalFS_Exists(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	exists, _ := fs.Exists(ctx, "nonexistent.txt")
	if exists {
		t.Error("expected false for nonexistent file")
	}

	fs.Write(ctx, "exists.txt", []byte("data"))
	exists, _ = fs.Exists(ctx, "exists.txt")
	if !exists {
		t.Error("expected true for existing file")
	}
}

func TestLocalFS_List(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	fs.Write(ctx, "2024-05-02/report.md", []byte("b"))
	fs.Write(ctx, "2024-05-02/run.json", []byte("a"))
	fs.Write(ctx, "2024-05-03/run.json", []byte("c"))

	paths, err := fs.List(ctx, "2024-05-02")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"2024-05-02/report.md", "2024-05-02/run.json"}
	if len(paths) != len(want) {
		t.Fatalf("expected %v, got %v", want, paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}

	empty, err := fs.List(ctx, "1999-01-01")
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty list for missing prefix, got %v, %v", empty, err)
	}
}

func TestLocalFS_Delete(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	fs.Write(ctx, "delete.txt", []byte("data"))
	fs.Delete(ctx, "delete.txt")

	exists, _ := fs.Exists(ctx, "delete.txt")
	if exists {
		t.Error("file should be deleted")
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"a/run.json":   "application/json",
		"a/report.md":  "text/markdown; charset=utf-8",
		"a/screen.CSV": "text/csv; charset=utf-8",
		"a/blob":       "application/octet-stream",
	}
	for p, want := range tests {
		if got := ContentType(p); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", p, got, want)
		}
	}
}
