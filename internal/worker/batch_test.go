package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/rehost/internal/model"
)

type mockImporter struct {
	failFor string
}

func (m *mockImporter) ImportFeed(ctx context.Context, feedURL string) (*model.ImportReport, error) {
	time.Sleep(5 * time.Millisecond)
	if feedURL == m.failFor {
		return nil, errors.New("import error")
	}
	return &model.ImportReport{FeedURL: feedURL}, nil
}

func writeURLFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feeds.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchProcessor_ProcessURLs(t *testing.T) {
	processor := NewBatchProcessor(&mockImporter{}, 2)

	urls := []string{
		"http://www.feedbooks.com/books/top.atom",
		"http://www.feedbooks.com/books/recent.atom",
		"http://example.com/opds.xml",
	}
	results := processor.ProcessURLs(context.Background(), urls)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.FeedURL, res.Error)
		}
		if res.FeedURL != urls[i] || res.Report == nil || res.Report.FeedURL != urls[i] {
			t.Errorf("result %d out of order: %+v", i, res)
		}
	}
}

func TestBatchProcessor_ProcessURLs_Error(t *testing.T) {
	processor := NewBatchProcessor(&mockImporter{failFor: "http://bad.example/feed"}, 2)

	results := processor.ProcessURLs(context.Background(), []string{"http://ok.example/feed", "http://bad.example/feed"})
	if results[0].Error != nil {
		t.Errorf("expected first import to succeed, got %v", results[0].Error)
	}
	if results[1].Error == nil || results[1].Report != nil {
		t.Errorf("expected second import to fail, got %+v", results[1])
	}
}

func TestBatchProcessor_ProcessURLs_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockImporter{}, 2)
	if results := processor.ProcessURLs(context.Background(), nil); len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessURLs_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	processor := NewBatchProcessor(&mockImporter{}, 1)
	results := processor.ProcessURLs(ctx, []string{"http://a.example/feed", "http://b.example/feed"})
	if len(results) != 2 {
		t.Fatalf("expected a result per URL, got %d", len(results))
	}
	for _, res := range results {
		if res.Report == nil && !errors.Is(res.Error, context.Canceled) {
			t.Errorf("expected cancellation error, got %v", res.Error)
		}
	}
}

func TestReadURLsFromFile(t *testing.T) {
	path := writeURLFile(t, "http://a.example/feed\n  # comment\n\n  http://b.example/feed  \nhttp://a.example/feed\n")

	urls, err := ReadURLsFromFile(path)
	if err != nil {
		t.Fatalf("ReadURLsFromFile failed: %v", err)
	}
	want := []string{"http://a.example/feed", "http://b.example/feed"}
	if len(urls) != len(want) {
		t.Fatalf("expected %v, got %v", want, urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("expected %s at %d, got %s", want[i], i, urls[i])
		}
	}
}

func TestReadURLsFromFile_NonExistent(t *testing.T) {
	if _, err := ReadURLsFromFile("non_existent_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestImportResult_GetError(t *testing.T) {
	r1 := &ImportResult{FeedURL: "http://example.com"}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("import failed")
	r2 := &ImportResult{FeedURL: "http://example.com", Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := writeURLFile(t, "http://a.example/feed\n# comment\n\nhttp://b.example/feed\nhttp://c.example/feed\n")

	processor := NewBatchProcessor(&mockImporter{}, 2)
	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&mockImporter{}, 2)
	if _, err := processor.ProcessFile(context.Background(), "no_such_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}
