package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// UserRepo manages user accounts.
type UserRepo struct {
	db *gorm.DB
}

// Create inserts a new user. Registering an already-used email
// returns ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		// The pure Go driver reports constraint violations as plain
		// errors, so match on the SQLite message.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Get returns a user by ID.
func (r *UserRepo) Get(ctx context.Context, id string) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// GetByEmail returns a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).First(&u, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// ChapterRepo manages chapters.
type ChapterRepo struct {
	db *gorm.DB
}

// Create inserts a new chapter.
func (r *ChapterRepo) Create(ctx context.Context, c *Chapter) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create chapter: %w", err)
	}
	return nil
}

// Get returns a chapter by ID.
func (r *ChapterRepo) Get(ctx context.Context, id string) (*Chapter, error) {
	var c Chapter
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chapter: %w", err)
	}
	return &c, nil
}

// List returns all chapters ordered by creation time.
func (r *ChapterRepo) List(ctx context.Context) ([]Chapter, error) {
	var out []Chapter
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	return out, nil
}

// Update replaces the mutable fields of a chapter.
func (r *ChapterRepo) Update(ctx context.Context, c *Chapter) error {
	res := r.db.WithContext(ctx).Model(&Chapter{}).Where("id = ?", c.ID).Updates(map[string]any{
		"name":        c.Name,
		"description": c.Description,
		"subject":     c.Subject,
	})
	if res.Error != nil {
		return fmt.Errorf("update chapter: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a chapter and its topics.
func (r *ChapterRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chapter_id = ?", id).Delete(&Topic{}).Error; err != nil {
			return fmt.Errorf("delete chapter topics: %w", err)
		}
		res := tx.Delete(&Chapter{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete chapter: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// TopicRepo manages topics.
type TopicRepo struct {
	db *gorm.DB
}

// Create inserts a new topic.
func (r *TopicRepo) Create(ctx context.Context, t *Topic) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create topic: %w", err)
	}
	return nil
}

// Get returns a topic by ID.
func (r *TopicRepo) Get(ctx context.Context, id string) (*Topic, error) {
	var t Topic
	err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return &t, nil
}

// ListByChapter returns the topics belonging to a chapter.
func (r *TopicRepo) ListByChapter(ctx context.Context, chapterID string) ([]Topic, error) {
	var out []Topic
	err := r.db.WithContext(ctx).
		Where("chapter_id = ?", chapterID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return out, nil
}

// Update replaces the mutable fields of a topic.
func (r *TopicRepo) Update(ctx context.Context, t *Topic) error {
	res := r.db.WithContext(ctx).Model(&Topic{}).Where("id = ?", t.ID).Updates(map[string]any{
		"name":            t.Name,
		"description":     t.Description,
		"subject":         t.Subject,
		"steps":           t.Steps,
		"key_points":      t.KeyPoints,
		"common_mistakes": t.CommonMistakes,
	})
	if res.Error != nil {
		return fmt.Errorf("update topic: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a topic.
func (r *TopicRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&Topic{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete topic: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
