package models

import (
	"io"
)

// File provided by user (avatar, cover image) that has to be put to asset storage
type Asset struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}
