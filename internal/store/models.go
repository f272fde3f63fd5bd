package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StringList is a []string stored as a JSON text column.
type StringList []string

// Scan implements sql.Scanner.
func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, l)
}

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// User is a registered account. Role is either "student" or "teacher".
type User struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"type:text;check:role IN ('student', 'teacher');default:'student';not null"`
	CreatedAt    time.Time
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Chapter groups topics within a subject.
type Chapter struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Description string
	Subject     string `gorm:"default:'Physics'"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (c *Chapter) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Topic carries the teacher-authored material the tutor is steered by.
type Topic struct {
	ID          string `gorm:"primaryKey"`
	ChapterID   string `gorm:"index"`
	Name        string `gorm:"not null"`
	Description string
	Subject     string `gorm:"default:'Physics'"`

	// Teacher inputs, used only as prompt material.
	Steps          StringList `gorm:"type:text"`
	KeyPoints      StringList `gorm:"type:text"`
	CommonMistakes StringList `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *Topic) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// ChatSession is the conversation plus derived state for one
// (student, topic) pair. Exactly one row exists per pair.
//
// Two tiers of derived state decay at different rates: the current
// problem summary is cleared on every new-problem transition, while the
// learning patterns text is cumulative and replaced wholesale on each
// refinement.
type ChatSession struct {
	ID      string `gorm:"primaryKey"`
	UserID  string `gorm:"uniqueIndex:idx_sessions_user_topic,priority:1;not null"`
	TopicID string `gorm:"uniqueIndex:idx_sessions_user_topic,priority:2;not null"`

	// Tier 1: current problem tracking.
	CurrentProblemSummary      string `gorm:"default:''"`
	CurrentProblemStartIndex   int    `gorm:"default:0"`
	LastProblemSummarizedIndex int    `gorm:"default:0"`

	// Tier 2: the single evolving learning-pattern profile.
	LearningPatterns          string `gorm:"default:''"`
	LastPatternsAnalyzedIndex int    `gorm:"default:0"`
	PatternsVersion           int    `gorm:"default:0"`

	ProblemsAttempted int   `gorm:"default:0"`
	TotalTokensUsed   int64 `gorm:"default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *ChatSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// ChatMessage is one entry of a session's append-only message log.
// Ordinal is the 0-based position; the log is never reordered or
// truncated.
type ChatMessage struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"uniqueIndex:idx_messages_session_ordinal,priority:1;not null"`
	Ordinal   int    `gorm:"uniqueIndex:idx_messages_session_ordinal,priority:2;not null"`
	Role      string `gorm:"type:text;check:role IN ('user', 'assistant');not null"`
	Content   string `gorm:"not null"`
	CreatedAt time.Time
}

// LLMRequestEvent records a single call to the generation capability.
type LLMRequestEvent struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Provider     string `gorm:"not null"`
	Model        string `gorm:"not null"`
	Purpose      string `gorm:"index;not null"`
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	CostUSD      float64 `gorm:"type:real;default:0"`
	Success      bool
	ErrorMessage string
	CreatedAt    time.Time `gorm:"index"`
}
