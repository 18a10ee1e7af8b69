package models

import (
	"time"

	"github.com/google/uuid"
)

type Video struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time

	// User uploaded the video, the only one allowed to delete it
	OwnerID uuid.UUID

	Title       string
	Description string
	VideoFile   string  // public URL of the video asset
	Thumbnail   string  // public URL of the thumbnail asset
	Duration    float64 // seconds, zero if unknown
	Views       int64
	IsPublished bool
}
