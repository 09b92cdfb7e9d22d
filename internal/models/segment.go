package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// TranscriptSegment is the text produced by one processed chunk. Rows are
// append-only and read back ordered by (created_at, seq).
type TranscriptSegment struct {
	ID        string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SessionID string         `gorm:"column:session_id;type:text;index:idx_segments_session_created,priority:1" json:"session_id"`
	Seq       int64          `gorm:"column:seq" json:"seq"`
	Text      string         `gorm:"column:text;type:text" json:"text"`
	Tokens    pq.StringArray `gorm:"column:tokens;type:text[]" json:"tokens,omitempty"`
	Metadata  datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamptz;index:idx_segments_session_created,priority:2" json:"created_at"`
}

func (TranscriptSegment) TableName() string { return "transcript_segments" }

// SegmentMetadata is stored as jsonb next to the segment text.
type SegmentMetadata struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	MimeType string  `json:"mimeType"`
}
