package models

import (
	"time"
)

type Folder struct {
	ID         int64      `json:"id" db:"id"`
	UUID       string     `json:"uuid" db:"uuid"`
	ParentUUID *string    `json:"parent_uuid" db:"parent_uuid"` // NULL = top-level folder
	UserID     int64      `json:"user_id" db:"user_id"`
	PlainName  string     `json:"plain_name" db:"plain_name"`
	Bucket     string     `json:"bucket" db:"bucket"`
	Deleted    bool       `json:"deleted" db:"deleted"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	Removed    bool       `json:"removed" db:"removed"`
	RemovedAt  *time.Time `json:"removed_at,omitempty" db:"removed_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// TimeWindow is the half-open interval [Start, Until) a reconciliation run
// owns. Until is always the run's own start time; Start comes from the last
// completed run so a window missed by a failed run is retried.
type TimeWindow struct {
	Start time.Time
	Until time.Time
}
