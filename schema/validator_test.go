package payloadschema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidateMentionItemPayload_Valid(t *testing.T) {
	payload := json.RawMessage(`{
		"external_id":"x-98123",
		"platform":"twitter",
		"text":"Fuel price protest gathering in Ikeja this morning",
		"url":"https://example.com/status/98123",
		"author":"@lagosreporter",
		"author_location":"Lagos, Nigeria",
		"language":"en",
		"published_at":"2026-03-01T10:00:00Z",
		"metadata":{"retweets":42}
	}`)

	item, err := ValidateMentionItemPayload(payload)
	if err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}

	if item.Platform != "twitter" {
		t.Fatalf("expected platform=twitter, got %q", item.Platform)
	}
	if item.Text == nil || *item.Text == "" {
		t.Fatalf("expected text to survive validation, got %v", item.Text)
	}
}

func TestValidateMentionItemPayload_MissingRequired(t *testing.T) {
	payload := json.RawMessage(`{
		"platform":"news",
		"title":"Missing external id"
	}`)

	_, err := ValidateMentionItemPayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for missing external_id")
	}
}

func TestValidateMentionItemPayload_NoTextSurface(t *testing.T) {
	payload := json.RawMessage(`{
		"external_id":"n-1",
		"platform":"news",
		"text":"   "
	}`)

	_, err := ValidateMentionItemPayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for whitespace-only text surface")
	}
	if !strings.Contains(err.Error(), "must be non-empty") {
		t.Fatalf("expected text-surface semantic error, got: %v", err)
	}
}

func TestValidateMentionItemPayload_BadTimestamp(t *testing.T) {
	payload := json.RawMessage(`{
		"external_id":"n-2",
		"platform":"news",
		"title":"Subsidy report",
		"published_at":"yesterday"
	}`)

	if _, err := ValidateMentionItemPayload(payload); err == nil {
		t.Fatalf("expected validation to fail for malformed published_at")
	}
}

func TestValidateMentionItemPayload_UnknownField(t *testing.T) {
	payload := json.RawMessage(`{
		"external_id":"n-3",
		"platform":"news",
		"title":"Subsidy report",
		"sentiment":"positive"
	}`)

	if _, err := ValidateMentionItemPayload(payload); err == nil {
		t.Fatalf("expected validation to reject unknown fields")
	}
}

func TestValidateMentionItemPayload_TrailingContent(t *testing.T) {
	payload := json.RawMessage(`{"external_id":"n-4","platform":"news","title":"ok"} {"extra":true}`)

	if _, err := ValidateMentionItemPayload(payload); err == nil {
		t.Fatalf("expected validation to reject trailing JSON content")
	}
}
