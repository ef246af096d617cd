package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Violation is one denied request, kept as an audit trail for
// operators. Usage counters themselves live only in Redis for the
// duration of their window; this table records denials, not usage.
type Violation struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Timestamp   time.Time `gorm:"index" json:"timestamp"`
	Identifier  string    `gorm:"index;not null" json:"identifier"`
	FailedCheck string    `gorm:"index;not null" json:"failed_check"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	RetryAfter  int       `json:"retry_after_seconds"`
}

func (v *Violation) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

func (Violation) TableName() string {
	return "rate_limit_violations"
}
