package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionRepo manages chat sessions and their message logs.
type SessionRepo struct {
	db *gorm.DB
}

// SessionUpdate describes a partial update applied to a session in a
// single atomic UPDATE. Nil set fields are left untouched; increment
// fields add to the stored value without a read-modify-write cycle.
type SessionUpdate struct {
	CurrentProblemSummary      *string
	CurrentProblemStartIndex   *int
	LastProblemSummarizedIndex *int
	LearningPatterns           *string
	LastPatternsAnalyzedIndex  *int

	IncPatternsVersion   int
	IncProblemsAttempted int
	IncTotalTokensUsed   int64
}

// LoadOrCreate returns the session for the (user, topic) pair, creating
// it with zeroed derived state on first use. The create is idempotent:
// concurrent first calls race on the unique (user_id, topic_id) index
// and all callers end up with the same row.
func (r *SessionRepo) LoadOrCreate(ctx context.Context, userID, topicID string) (*ChatSession, error) {
	sess := &ChatSession{UserID: userID, TopicID: topicID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "topic_id"}},
			DoNothing: true,
		}).
		Create(sess).Error
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	// Re-read: on conflict the insert was a no-op and sess holds a
	// generated ID that never reached the table.
	var out ChatSession
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND topic_id = ?", userID, topicID).
		First(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &out, nil
}

// Get returns a session by ID.
func (r *SessionRepo) Get(ctx context.Context, id string) (*ChatSession, error) {
	var sess ChatSession
	err := r.db.WithContext(ctx).First(&sess, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

// Find returns the session for the pair, or ErrNotFound if none exists.
func (r *SessionRepo) Find(ctx context.Context, userID, topicID string) (*ChatSession, error) {
	var sess ChatSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND topic_id = ?", userID, topicID).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &sess, nil
}

// ApplyUpdate performs the partial field replace plus counter increments
// described by upd as one UPDATE statement.
func (r *SessionRepo) ApplyUpdate(ctx context.Context, sessionID string, upd SessionUpdate) error {
	sets := map[string]any{}

	if upd.CurrentProblemSummary != nil {
		sets["current_problem_summary"] = *upd.CurrentProblemSummary
	}
	if upd.CurrentProblemStartIndex != nil {
		sets["current_problem_start_index"] = *upd.CurrentProblemStartIndex
	}
	if upd.LastProblemSummarizedIndex != nil {
		sets["last_problem_summarized_index"] = *upd.LastProblemSummarizedIndex
	}
	if upd.LearningPatterns != nil {
		sets["learning_patterns"] = *upd.LearningPatterns
	}
	if upd.LastPatternsAnalyzedIndex != nil {
		sets["last_patterns_analyzed_index"] = *upd.LastPatternsAnalyzedIndex
	}
	if upd.IncPatternsVersion != 0 {
		sets["patterns_version"] = gorm.Expr("patterns_version + ?", upd.IncPatternsVersion)
	}
	if upd.IncProblemsAttempted != 0 {
		sets["problems_attempted"] = gorm.Expr("problems_attempted + ?", upd.IncProblemsAttempted)
	}
	if upd.IncTotalTokensUsed != 0 {
		sets["total_tokens_used"] = gorm.Expr("total_tokens_used + ?", upd.IncTotalTokensUsed)
	}

	if len(sets) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&ChatSession{}).
		Where("id = ?", sessionID).
		Updates(sets)
	if res.Error != nil {
		return fmt.Errorf("update session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessages appends messages to the session's log in the given
// order, assigning consecutive ordinals. The whole append happens in
// one transaction: either every message lands or none do.
func (r *SessionRepo) AppendMessages(ctx context.Context, sessionID string, msgs ...ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next int
		err := tx.Model(&ChatMessage{}).
			Where("session_id = ?", sessionID).
			Select("COALESCE(MAX(ordinal) + 1, 0)").
			Scan(&next).Error
		if err != nil {
			return fmt.Errorf("next ordinal: %w", err)
		}

		for i := range msgs {
			msgs[i].SessionID = sessionID
			msgs[i].Ordinal = next + i
		}

		if err := tx.Create(&msgs).Error; err != nil {
			return fmt.Errorf("append messages: %w", err)
		}
		return nil
	})
}

// Messages returns the session's full message log in insertion order.
func (r *SessionRepo) Messages(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	var msgs []ChatMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("ordinal ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	return msgs, nil
}

// DeleteByUser removes all of a user's sessions and their message
// logs. Returns the number of sessions removed.
func (r *SessionRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		err := tx.Model(&ChatSession{}).
			Where("user_id = ?", userID).
			Pluck("id", &ids).Error
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("session_id IN ?", ids).Delete(&ChatMessage{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}

		res := tx.Where("user_id = ?", userID).Delete(&ChatSession{})
		if res.Error != nil {
			return fmt.Errorf("delete sessions: %w", res.Error)
		}
		removed = res.RowsAffected
		return nil
	})
	return int(removed), err
}

// MessageCount returns the number of messages in the session's log.
func (r *SessionRepo) MessageCount(ctx context.Context, sessionID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ChatMessage{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return int(count), nil
}
