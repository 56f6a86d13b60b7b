package pipeline

import (
	"context"
	"strings"

	"horse.fit/vantage/internal/collector"
	"horse.fit/vantage/internal/config"
	"horse.fit/vantage/internal/langdetect"
	"horse.fit/vantage/internal/language"
	"horse.fit/vantage/internal/reader"
	payloadschema "horse.fit/vantage/schema"
)

// prepareRecords validates, normalizes and enriches collected records before
// deduplication. Records that fail payload validation are dropped with a
// warning; a bad record from one source must not abort the cycle.
func (s *Service) prepareRecords(ctx context.Context, cfg *config.Config, collected []collector.RawRecord) []collector.RawRecord {
	prepared := make([]collector.RawRecord, 0, len(collected))
	for _, record := range collected {
		if len(record.Raw) > 0 {
			item, err := payloadschema.ValidateMentionItemPayload(record.Raw)
			if err != nil {
				s.logger.Warn().
					Err(err).
					Str("source", record.Source).
					Str("external_id", record.ExternalID).
					Msg("dropping invalid mention payload")
				continue
			}
			applyValidatedItem(&record, item)
		}

		if primaryText(record) == "" {
			s.logger.Warn().
				Str("source", record.Source).
				Str("external_id", record.ExternalID).
				Msg("dropping mention without text surface")
			continue
		}

		record.Language = resolveLanguage(record)

		if cfg.ReaderEnrichment && record.Content == "" && record.URL != "" {
			if text, err := reader.FetchArticleText(ctx, record.URL, record.Title); err != nil {
				s.logger.Debug().Err(err).Str("url", record.URL).Msg("reader enrichment failed")
			} else {
				record.Content = text
			}
		}

		prepared = append(prepared, record)
	}
	return prepared
}

// applyValidatedItem overwrites the record's analysis fields with the
// schema-validated values so downstream phases never see raw collector quirks.
func applyValidatedItem(record *collector.RawRecord, item *payloadschema.MentionItem) {
	record.ExternalID = item.ExternalID
	record.Platform = item.Platform
	record.Text = stringValue(item.Text)
	record.Content = stringValue(item.Content)
	record.Title = stringValue(item.Title)
	record.Description = stringValue(item.Description)
	record.URL = stringValue(item.URL)
	record.AuthorLocation = stringValue(item.AuthorLocation)
	if item.Language != nil {
		record.Language = *item.Language
	}
}

// resolveLanguage prefers the collector-declared tag; otherwise it detects
// from the text. Either way the result is a normalized primary subtag.
func resolveLanguage(record collector.RawRecord) string {
	if code := language.NormalizeCode(record.Language); code != "" {
		return code
	}
	return langdetect.DetectISO6391(primaryText(record))
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
