package models

import (
	"time"
)

// FileStatus is the lifecycle state of a file row. DELETED is terminal and
// excludes the file from listings and usage accounting; it is the file-level
// analogue of Folder.Removed.
type FileStatus string

const (
	FileStatusExists  FileStatus = "EXISTS"
	FileStatusTrashed FileStatus = "TRASHED"
	FileStatusDeleted FileStatus = "DELETED"
)

type File struct {
	UUID       string     `json:"uuid" db:"uuid"`
	FolderUUID string     `json:"folder_uuid" db:"folder_uuid"`
	UserID     int64      `json:"user_id" db:"user_id"`
	Status     FileStatus `json:"status" db:"status"`
	Size       int64      `json:"size" db:"size"`
	CreatedAt  time.Time  `json:"created_at" db:"creation_time"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}
