package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// BinaryContent references a stored media file by its generated name.
type BinaryContent struct {
	ID        int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Content   string     `gorm:"size:100;not null" json:"content"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// GenerateFilename returns a timestamped name (microsecond precision) that
// keeps the extension of the uploaded file.
func GenerateFilename(original string, now time.Time) string {
	ext := filepath.Ext(original)
	return fmt.Sprintf("%s%06d%s", now.Format("20060102150405"), now.Nanosecond()/1000, ext)
}

// Filename is the stored name without any directory part.
func (b BinaryContent) Filename() string {
	parts := strings.Split(b.Content, "/")
	return parts[len(parts)-1]
}
