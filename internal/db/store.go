package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Querier is satisfied by both *Pool and Tx so queries can run on the shared
// pool or on a batch-owned transaction.
type Querier interface {
	QueryRow(ctx context.Context, query string, args ...any) *Row
	Query(ctx context.Context, query string, args ...any) (*Rows, error)
	Exec(ctx context.Context, query string, args ...any) (CommandTag, error)
}

// Store exposes the vantage schema to the pipeline, scheduler and HTTP layer.
type Store struct {
	pool *Pool
}

func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Pool() *Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) BeginTx(ctx context.Context) (Tx, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("store is not initialized")
	}
	return s.pool.BeginTx(ctx, TxOptions{})
}

type ProfileRow struct {
	UserID      string
	DisplayName string
}

func (s *Store) ListEnabledProfiles(ctx context.Context) ([]ProfileRow, error) {
	const q = `
SELECT p.user_id, p.display_name
FROM vantage.monitor_profiles p
WHERE p.enabled
ORDER BY p.user_id
`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list enabled profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]ProfileRow, 0, 16)
	for rows.Next() {
		var row ProfileRow
		if err := rows.Scan(&row.UserID, &row.DisplayName); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return profiles, nil
}

// Profile loads one monitored user's profile.
func (s *Store) Profile(ctx context.Context, userID string) (ProfileRow, error) {
	const q = `
SELECT p.user_id, p.display_name
FROM vantage.monitor_profiles p
WHERE p.user_id = $1
`

	var row ProfileRow
	err := s.pool.QueryRow(ctx, q, strings.TrimSpace(userID)).Scan(&row.UserID, &row.DisplayName)
	if err != nil {
		return ProfileRow{}, fmt.Errorf("select profile user_id=%s: %w", userID, err)
	}
	return row, nil
}

// CorpusEntry is the text surface of one stored mention, used to build the
// dedup index for a user.
type CorpusEntry struct {
	MentionID   int64
	Text        string
	Content     string
	Title       string
	Description string
}

func (s *Store) CorpusEntries(ctx context.Context, userID string) ([]CorpusEntry, error) {
	const q = `
SELECT m.mention_id, m.text, m.content, m.title, m.description
FROM vantage.mentions m
WHERE m.user_id = $1
ORDER BY m.mention_id
`

	rows, err := s.pool.Query(ctx, q, strings.TrimSpace(userID))
	if err != nil {
		return nil, fmt.Errorf("select corpus entries user_id=%s: %w", userID, err)
	}
	defer rows.Close()

	entries := make([]CorpusEntry, 0, 256)
	for rows.Next() {
		var entry CorpusEntry
		if err := rows.Scan(&entry.MentionID, &entry.Text, &entry.Content, &entry.Title, &entry.Description); err != nil {
			return nil, fmt.Errorf("scan corpus entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corpus entries: %w", err)
	}
	return entries, nil
}

// NewMention carries the ingestion-time fields of one record. Every field has
// its default decided here, not at read time.
type NewMention struct {
	UserID         string
	Platform       string
	Source         string
	Text           string
	Content        string
	Title          string
	Description    string
	URL            *string
	AuthorLocation *string
	Language       string
	PublishedAt    *time.Time
	FetchedAt      time.Time
}

func (s *Store) InsertMention(ctx context.Context, q Querier, mention NewMention, now time.Time) (int64, error) {
	const query = `
INSERT INTO vantage.mentions (
	user_id,
	platform,
	source,
	text,
	content,
	title,
	description,
	url,
	author_location,
	language,
	published_at,
	fetched_at,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
RETURNING mention_id
`

	var mentionID int64
	err := q.QueryRow(
		ctx,
		query,
		mention.UserID,
		mention.Platform,
		mention.Source,
		mention.Text,
		mention.Content,
		mention.Title,
		mention.Description,
		mention.URL,
		mention.AuthorLocation,
		mention.Language,
		mention.PublishedAt,
		mention.FetchedAt,
		now,
	).Scan(&mentionID)
	if err != nil {
		return 0, fmt.Errorf("insert mention: %w", err)
	}
	return mentionID, nil
}

func (s *Store) UpdateMentionSentiment(ctx context.Context, q Querier, mentionID int64, score float64, label string, now time.Time) error {
	const query = `
UPDATE vantage.mentions
SET sentiment_score = $2, sentiment_label = $3, updated_at = $4
WHERE mention_id = $1
`

	if _, err := q.Exec(ctx, query, mentionID, score, label, now); err != nil {
		return fmt.Errorf("update mention sentiment mention_id=%d: %w", mentionID, err)
	}
	return nil
}

func (s *Store) UpdateMentionLocationScore(ctx context.Context, q Querier, mentionID int64, score float64, now time.Time) error {
	const query = `
UPDATE vantage.mentions
SET location_score = $2, updated_at = $3
WHERE mention_id = $1
`

	if _, err := q.Exec(ctx, query, mentionID, score, now); err != nil {
		return fmt.Errorf("update mention location score mention_id=%d: %w", mentionID, err)
	}
	return nil
}

func (s *Store) SetMentionIssue(ctx context.Context, mentionID int64, issueSlug, issueLabel string, now time.Time) error {
	const query = `
UPDATE vantage.mentions
SET issue_slug = $2, issue_label = $3, updated_at = $4
WHERE mention_id = $1
`

	if _, err := s.pool.Exec(ctx, query, mentionID, issueSlug, issueLabel, now); err != nil {
		return fmt.Errorf("set mention issue mention_id=%d: %w", mentionID, err)
	}
	return nil
}

type TopicRow struct {
	TopicKey         string
	DisplayName      string
	Category         string
	Keywords         []byte
	KeywordGroups    []byte
	RequireAllGroups bool
	Embedding        *string
}

func (s *Store) ActiveTopics(ctx context.Context) ([]TopicRow, error) {
	const q = `
SELECT
	t.topic_key,
	t.display_name,
	t.category,
	t.keywords,
	t.keyword_groups,
	t.require_all_groups,
	t.embedding::text
FROM vantage.topics t
WHERE t.active
ORDER BY t.topic_key
`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select active topics: %w", err)
	}
	defer rows.Close()

	topics := make([]TopicRow, 0, 32)
	for rows.Next() {
		var row TopicRow
		if err := rows.Scan(
			&row.TopicKey,
			&row.DisplayName,
			&row.Category,
			&row.Keywords,
			&row.KeywordGroups,
			&row.RequireAllGroups,
			&row.Embedding,
		); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}
	return topics, nil
}

type IssueRow struct {
	IssueID      int64
	IssueSlug    string
	Label        string
	TopicKey     string
	Centroid     string
	MentionCount int
}

func (s *Store) ActiveIssuesByTopic(ctx context.Context, topicKey string) ([]IssueRow, error) {
	const q = `
SELECT i.issue_id, i.issue_slug, i.label, i.topic_key, i.centroid::text, i.mention_count
FROM vantage.issues i
WHERE i.topic_key = $1
  AND i.status = 'active'
ORDER BY i.issue_id
`

	rows, err := s.pool.Query(ctx, q, strings.TrimSpace(topicKey))
	if err != nil {
		return nil, fmt.Errorf("select active issues topic_key=%s: %w", topicKey, err)
	}
	defer rows.Close()

	issues := make([]IssueRow, 0, 8)
	for rows.Next() {
		var row IssueRow
		if err := rows.Scan(&row.IssueID, &row.IssueSlug, &row.Label, &row.TopicKey, &row.Centroid, &row.MentionCount); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}
	return issues, nil
}

type TopicAssignmentRow struct {
	MentionID      int64
	TopicKey       string
	Confidence     float64
	KeywordScore   float64
	EmbeddingScore float64
}

func (s *Store) InsertTopicAssignment(ctx context.Context, q Querier, row TopicAssignmentRow, now time.Time) error {
	const query = `
INSERT INTO vantage.topic_assignments (
	mention_id,
	topic_key,
	confidence,
	keyword_score,
	embedding_score,
	created_at
)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (mention_id, topic_key) DO NOTHING
`

	if _, err := q.Exec(ctx, query, row.MentionID, row.TopicKey, row.Confidence, row.KeywordScore, row.EmbeddingScore, now); err != nil {
		return fmt.Errorf("insert topic assignment mention_id=%d topic=%s: %w", row.MentionID, row.TopicKey, err)
	}
	return nil
}

func (s *Store) InsertIssueAssignment(ctx context.Context, issueID, mentionID int64, topicKey string, similarity float64, now time.Time) error {
	const query = `
INSERT INTO vantage.issue_assignments (
	issue_id,
	mention_id,
	topic_key,
	similarity,
	created_at
)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (issue_id, mention_id) DO NOTHING
`

	if _, err := s.pool.Exec(ctx, query, issueID, mentionID, topicKey, similarity, now); err != nil {
		return fmt.Errorf("insert issue assignment issue_id=%d mention_id=%d: %w", issueID, mentionID, err)
	}
	return nil
}

// IncrementIssueMentionCount bumps the stored counter and activity timestamp.
// The authoritative count is reconciled by the external clustering batch job.
func (s *Store) IncrementIssueMentionCount(ctx context.Context, issueID int64, now time.Time) error {
	const query = `
UPDATE vantage.issues
SET mention_count = mention_count + 1,
	last_activity_at = $2,
	updated_at = $2
WHERE issue_id = $1
`

	if _, err := s.pool.Exec(ctx, query, issueID, now); err != nil {
		return fmt.Errorf("increment issue mention count issue_id=%d: %w", issueID, err)
	}
	return nil
}

func (s *Store) InsertCycleRun(ctx context.Context, runUUID, userID string, startedAt time.Time) (int64, error) {
	const query = `
INSERT INTO vantage.cycle_runs (
	run_uuid,
	user_id,
	status,
	started_at,
	created_at,
	updated_at
)
VALUES ($1, $2, 'running', $3, $3, $3)
RETURNING run_id
`

	var runID int64
	if err := s.pool.QueryRow(ctx, query, runUUID, strings.TrimSpace(userID), startedAt).Scan(&runID); err != nil {
		return 0, fmt.Errorf("insert cycle run: %w", err)
	}
	return runID, nil
}

type CycleRunCounts struct {
	Collected      int
	UniqueInserted int
	Duplicates     int
	Classified     int
	Linked         int
}

func (s *Store) CompleteCycleRun(ctx context.Context, runID int64, counts CycleRunCounts, finishedAt time.Time, duration time.Duration) error {
	const query = `
UPDATE vantage.cycle_runs
SET status = 'completed',
	collected = $2,
	unique_inserted = $3,
	duplicates = $4,
	classified = $5,
	linked = $6,
	finished_at = $7,
	duration_seconds = $8,
	updated_at = $7
WHERE run_id = $1
`

	if _, err := s.pool.Exec(
		ctx,
		query,
		runID,
		counts.Collected,
		counts.UniqueInserted,
		counts.Duplicates,
		counts.Classified,
		counts.Linked,
		finishedAt,
		duration.Seconds(),
	); err != nil {
		return fmt.Errorf("complete cycle run run_id=%d: %w", runID, err)
	}
	return nil
}

func (s *Store) FailCycleRun(ctx context.Context, runID int64, runErr error, finishedAt time.Time, duration time.Duration) error {
	const query = `
UPDATE vantage.cycle_runs
SET status = 'failed',
	error_message = $2,
	finished_at = $3,
	duration_seconds = $4,
	updated_at = $3
WHERE run_id = $1
`

	message := ""
	if runErr != nil {
		message = runErr.Error()
	}
	if len(message) > 4000 {
		message = message[:4000]
	}

	if _, err := s.pool.Exec(ctx, query, runID, message, finishedAt, duration.Seconds()); err != nil {
		return fmt.Errorf("fail cycle run run_id=%d: %w", runID, err)
	}
	return nil
}

// Stats summarizes the corpus for the HTTP stats endpoint.
type Stats struct {
	Mentions         int64
	Topics           int64
	Issues           int64
	TopicAssignments int64
	IssueAssignments int64
	RunningCycles    int64
	LastCycleAt      *time.Time
}

func (s *Store) CorpusStats(ctx context.Context) (Stats, error) {
	const q = `
SELECT
	(SELECT count(*) FROM vantage.mentions),
	(SELECT count(*) FROM vantage.topics WHERE active),
	(SELECT count(*) FROM vantage.issues WHERE status = 'active'),
	(SELECT count(*) FROM vantage.topic_assignments),
	(SELECT count(*) FROM vantage.issue_assignments),
	(SELECT count(*) FROM vantage.cycle_runs WHERE status = 'running'),
	(SELECT max(started_at) FROM vantage.cycle_runs)
`

	var stats Stats
	if err := s.pool.QueryRow(ctx, q).Scan(
		&stats.Mentions,
		&stats.Topics,
		&stats.Issues,
		&stats.TopicAssignments,
		&stats.IssueAssignments,
		&stats.RunningCycles,
		&stats.LastCycleAt,
	); err != nil {
		return Stats{}, fmt.Errorf("select corpus stats: %w", err)
	}
	return stats, nil
}
