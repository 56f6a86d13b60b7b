package db

import (
	"encoding/json"
	"time"
)

// MonitorProfile maps vantage.monitor_profiles — one row per tracked user.
type MonitorProfile struct {
	UserID      string    `gorm:"column:user_id;type:text;primaryKey"`
	DisplayName string    `gorm:"column:display_name;type:text;not null"`
	Enabled     bool      `gorm:"column:enabled;type:boolean;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt   time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (MonitorProfile) TableName() string { return "vantage.monitor_profiles" }

// Mention maps vantage.mentions. Identity is immutable once created; the
// sentiment/topic/location/issue columns are filled in by later pipeline phases.
type Mention struct {
	MentionID      int64      `gorm:"column:mention_id;primaryKey;autoIncrement"`
	MentionUUID    string     `gorm:"column:mention_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	UserID         string     `gorm:"column:user_id;type:text;not null;index"`
	Platform       string     `gorm:"column:platform;type:text;not null"`
	Source         string     `gorm:"column:source;type:text;not null;default:''"`
	Text           string     `gorm:"column:text;type:text;not null;default:''"`
	Content        string     `gorm:"column:content;type:text;not null;default:''"`
	Title          string     `gorm:"column:title;type:text;not null;default:''"`
	Description    string     `gorm:"column:description;type:text;not null;default:''"`
	URL            *string    `gorm:"column:url;type:text"`
	AuthorLocation *string    `gorm:"column:author_location;type:text"`
	Language       string     `gorm:"column:language;type:text;not null;default:''"`
	SentimentScore *float64   `gorm:"column:sentiment_score;type:double precision"`
	SentimentLabel *string    `gorm:"column:sentiment_label;type:text"`
	LocationScore  *float64   `gorm:"column:location_score;type:double precision"`
	IssueSlug      *string    `gorm:"column:issue_slug;type:text"`
	IssueLabel     *string    `gorm:"column:issue_label;type:text"`
	PublishedAt    *time.Time `gorm:"column:published_at;type:timestamptz"`
	FetchedAt      time.Time  `gorm:"column:fetched_at;type:timestamptz;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Mention) TableName() string { return "vantage.mentions" }

// Topic maps vantage.topics — classifier configuration data.
type Topic struct {
	TopicKey         string          `gorm:"column:topic_key;type:text;primaryKey"`
	DisplayName      string          `gorm:"column:display_name;type:text;not null"`
	Category         string          `gorm:"column:category;type:text;not null;default:''"`
	Keywords         json.RawMessage `gorm:"column:keywords;type:jsonb"`
	KeywordGroups    json.RawMessage `gorm:"column:keyword_groups;type:jsonb"`
	RequireAllGroups bool            `gorm:"column:require_all_groups;type:boolean;not null;default:false"`
	Embedding        *string         `gorm:"column:embedding;type:vector(1536)"`
	Active           bool            `gorm:"column:active;type:boolean;not null;default:true"`
	CreatedAt        time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Topic) TableName() string { return "vantage.topics" }

// TopicAssignment maps vantage.topic_assignments — unique per (mention, topic).
type TopicAssignment struct {
	TopicAssignmentID int64     `gorm:"column:topic_assignment_id;primaryKey;autoIncrement"`
	MentionID         int64     `gorm:"column:mention_id;type:bigint;not null;uniqueIndex:idx_topic_assignment_mention_topic"`
	TopicKey          string    `gorm:"column:topic_key;type:text;not null;uniqueIndex:idx_topic_assignment_mention_topic"`
	Confidence        float64   `gorm:"column:confidence;type:double precision;not null"`
	KeywordScore      float64   `gorm:"column:keyword_score;type:double precision;not null"`
	EmbeddingScore    float64   `gorm:"column:embedding_score;type:double precision;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (TopicAssignment) TableName() string { return "vantage.topic_assignments" }

// Issue maps vantage.issues — a cluster entity created by the external
// batch clustering job; the linker only reads it and bumps counters.
type Issue struct {
	IssueID        int64     `gorm:"column:issue_id;primaryKey;autoIncrement"`
	IssueSlug      string    `gorm:"column:issue_slug;type:text;not null;unique"`
	Label          string    `gorm:"column:label;type:text;not null"`
	TopicKey       string    `gorm:"column:topic_key;type:text;not null;index"`
	Centroid       string    `gorm:"column:centroid;type:vector(1536);not null"`
	MentionCount   int       `gorm:"column:mention_count;type:integer;not null;default:0"`
	Status         string    `gorm:"column:status;type:text;not null;default:active"`
	LastActivityAt time.Time `gorm:"column:last_activity_at;type:timestamptz;not null;default:now()"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt      time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Issue) TableName() string { return "vantage.issues" }

// IssueAssignment maps vantage.issue_assignments.
type IssueAssignment struct {
	IssueAssignmentID int64     `gorm:"column:issue_assignment_id;primaryKey;autoIncrement"`
	IssueID           int64     `gorm:"column:issue_id;type:bigint;not null;uniqueIndex:idx_issue_assignment_issue_mention"`
	MentionID         int64     `gorm:"column:mention_id;type:bigint;not null;uniqueIndex:idx_issue_assignment_issue_mention"`
	TopicKey          string    `gorm:"column:topic_key;type:text;not null"`
	Similarity        float64   `gorm:"column:similarity;type:double precision;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (IssueAssignment) TableName() string { return "vantage.issue_assignments" }

// CycleRun maps vantage.cycle_runs — one row per dispatched collection cycle.
type CycleRun struct {
	RunID           int64      `gorm:"column:run_id;primaryKey;autoIncrement"`
	RunUUID         string     `gorm:"column:run_uuid;type:uuid;not null;unique"`
	UserID          string     `gorm:"column:user_id;type:text;not null;index"`
	Status          string     `gorm:"column:status;type:text;not null;default:running"`
	Collected       int        `gorm:"column:collected;type:integer;not null;default:0"`
	UniqueInserted  int        `gorm:"column:unique_inserted;type:integer;not null;default:0"`
	Duplicates      int        `gorm:"column:duplicates;type:integer;not null;default:0"`
	Classified      int        `gorm:"column:classified;type:integer;not null;default:0"`
	Linked          int        `gorm:"column:linked;type:integer;not null;default:0"`
	StartedAt       time.Time  `gorm:"column:started_at;type:timestamptz;not null"`
	FinishedAt      *time.Time `gorm:"column:finished_at;type:timestamptz"`
	DurationSeconds *float64   `gorm:"column:duration_seconds;type:double precision"`
	ErrorMessage    *string    `gorm:"column:error_message;type:text"`
	CreatedAt       time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (CycleRun) TableName() string { return "vantage.cycle_runs" }

func autoMigrateModels() []any {
	return []any{
		&MonitorProfile{},
		&Mention{},
		&Topic{},
		&TopicAssignment{},
		&Issue{},
		&IssueAssignment{},
		&CycleRun{},
	}
}
