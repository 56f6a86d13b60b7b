package reader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCleanTextCollapsesWhitespaceAndPreservesParagraphs(t *testing.T) {
	input := "  First   paragraph \n\n Second\tparagraph \r\n\r\nThird line "
	got := CleanText(input)
	want := "First paragraph\n\nSecond paragraph\n\nThird line"
	if got != want {
		t.Fatalf("CleanText mismatch\nwant: %q\ngot:  %q", want, got)
	}
}

func TestTruncateText(t *testing.T) {
	input := "abcdefghijklmnopqrstuvwxyz"

	got, truncated := TruncateText(input, 10)
	if !truncated {
		t.Fatalf("expected truncated=true")
	}
	if got != "abcdefghi…" {
		t.Fatalf("unexpected truncated text: %q", got)
	}

	full, wasTruncated := TruncateText("short", 10)
	if wasTruncated {
		t.Fatalf("expected truncated=false for short text")
	}
	if full != "short" {
		t.Fatalf("unexpected short text: %q", full)
	}
}

func TestFetchArticleTextPlainText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Raw   article body\n\nwith two paragraphs"))
	}))
	defer server.Close()

	text, err := FetchArticleText(context.Background(), server.URL, "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := "Raw article body\n\nwith two paragraphs"
	if text != want {
		t.Fatalf("unexpected text\nwant: %q\ngot:  %q", want, text)
	}
}

func TestFetchArticleTextErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	if _, err := FetchArticleText(context.Background(), server.URL, "fallback"); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestFetchArticleTextRequiresURL(t *testing.T) {
	if _, err := FetchArticleText(context.Background(), "  ", "fallback"); err == nil {
		t.Fatal("expected error for blank URL")
	}
}
