package storage

import "time"

// MediaType is the media_type reported by the Graph API.
type MediaType string

const (
	MediaTypeImage         MediaType = "IMAGE"
	MediaTypeVideo         MediaType = "VIDEO"
	MediaTypeCarouselAlbum MediaType = "CAROUSEL_ALBUM"

	// Child items report IMAGE/VIDEO; these names are accepted as aliases.
	MediaTypeCarouselChildImage MediaType = "CAROUSEL_CHILD_IMAGE"
	MediaTypeCarouselChildVideo MediaType = "CAROUSEL_CHILD_VIDEO"
)

// IsVideo reports whether the media should be embedded as a video player.
func (t MediaType) IsVideo() bool {
	return t == MediaTypeVideo || t == MediaTypeCarouselChildVideo
}

// Media is one staged Instagram media item. Top-level items have
// ParentID == MediaID; carousel children point at their parent.
type Media struct {
	ParentID   string
	MediaID    string
	Caption    *string // top-level items only
	MediaType  MediaType
	MediaURL   string
	Permalink  string
	TakenAt    time.Time
	PostID     *string // NULL until published
	IngestedAt time.Time
}

// IsTopLevel reports whether the item is the parent of its group.
func (m *Media) IsTopLevel() bool {
	return m.ParentID == m.MediaID
}

// Pending reports whether the item still waits for a destination post.
func (m *Media) Pending() bool {
	return m.PostID == nil
}

// CaptionText returns the caption or "" when absent.
func (m *Media) CaptionText() string {
	if m.Caption == nil {
		return ""
	}
	return *m.Caption
}
