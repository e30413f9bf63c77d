// Package models contains the domain types and API error helpers.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Body is the structured content of a post. It is stored as a JSON object and
// always carries a "text" key when the post was created from plain text.
type Body map[string]any

// Text returns the "text" entry of the body, or "" when absent or not a string.
func (b Body) Text() string {
	if s, ok := b["text"].(string); ok {
		return s
	}
	return ""
}

// IsEmpty reports whether the body has no meaningful content.
func (b Body) IsEmpty() bool {
	if len(b) == 0 {
		return true
	}
	if len(b) == 1 {
		if v, ok := b["text"]; ok {
			s, isString := v.(string)
			return isString && strings.TrimSpace(s) == ""
		}
	}
	return false
}

// Value implements driver.Valuer.
func (b Body) Value() (driver.Value, error) {
	if b == nil {
		return "{}", nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode post body: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (b *Body) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*b = Body{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case map[string]any:
		*b = Body(v)
		return nil
	default:
		return fmt.Errorf("decode post body: unsupported type %T", value)
	}
	decoded := Body{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("decode post body: %w", err)
	}
	*b = decoded
	return nil
}

// Post is one row of the posts table. Email is the partition key and never
// changes; Username and Avatar are copies of the owner's profile.
type Post struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string    `gorm:"not null" json:"username"`
	Email     string    `gorm:"not null;index" json:"email"`
	Avatar    string    `gorm:"not null" json:"avatar"`
	Body      Body      `gorm:"column:post;type:jsonb;not null" json:"post"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

// TableName pins the table name used on every store.
func (Post) TableName() string {
	return "posts"
}

// BeforeCreate assigns a random UUID. Ids are never coordinated across stores.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// SortNewestFirst orders posts by creation time descending, breaking ties by id
// so merged results from several stores come out in a stable order.
func SortNewestFirst(posts []*Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
}
