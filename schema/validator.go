package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed mention_item.schema.json
var mentionItemSchemaJSON string

// MentionItem is the validated shape of one collected mention payload.
type MentionItem struct {
	ExternalID     string         `json:"external_id"`
	Platform       string         `json:"platform"`
	Text           *string        `json:"text,omitempty"`
	Content        *string        `json:"content,omitempty"`
	Title          *string        `json:"title,omitempty"`
	Description    *string        `json:"description,omitempty"`
	URL            *string        `json:"url,omitempty"`
	Author         *string        `json:"author,omitempty"`
	AuthorLocation *string        `json:"author_location,omitempty"`
	Language       *string        `json:"language,omitempty"`
	PublishedAt    *string        `json:"published_at,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateMentionItemPayload validates a raw collector payload against the
// mention schema plus the semantic rules the schema cannot express, and
// returns the decoded item.
func ValidateMentionItemPayload(payload json.RawMessage) (*MentionItem, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var item MentionItem
	if err := json.Unmarshal(normalized, &item); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&item); err != nil {
		return nil, err
	}

	return &item, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("mention_item.schema.json", strings.NewReader(mentionItemSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("mention_item.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(item *MentionItem) error {
	if item == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(item.ExternalID) == "" {
		return fmt.Errorf("external_id must not be empty")
	}
	if strings.TrimSpace(item.Platform) == "" {
		return fmt.Errorf("platform must not be empty")
	}
	if !hasTextSurface(item) {
		return fmt.Errorf("at least one of text, content, title, description must be non-empty")
	}

	if item.URL != nil {
		if err := validateURI("url", *item.URL); err != nil {
			return err
		}
	}
	if item.PublishedAt != nil {
		if _, err := time.Parse(time.RFC3339, strings.TrimSpace(*item.PublishedAt)); err != nil {
			return fmt.Errorf("published_at must be RFC3339: %w", err)
		}
	}

	return nil
}

// hasTextSurface reports whether any dedup-relevant text field is non-blank.
// The schema only checks key presence; a payload of bare whitespace still has
// nothing to analyze.
func hasTextSurface(item *MentionItem) bool {
	for _, field := range []*string{item.Text, item.Content, item.Title, item.Description} {
		if field != nil && strings.TrimSpace(*field) != "" {
			return true
		}
	}
	return false
}

func validateURI(fieldName, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s must not be empty", fieldName)
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return fmt.Errorf("%s is not a valid URI: %w", fieldName, err)
	}
	return nil
}
