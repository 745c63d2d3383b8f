package instagram

// Child is one item of a carousel's nested children collection.
type Child struct {
	ID           string `json:"id"`
	MediaType    string `json:"media_type"`
	MediaURL     string `json:"media_url"`
	Permalink    string `json:"permalink"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// Item is a top-level media object from /me/media
type Item struct {
	ID           string    `json:"id"`
	Caption      *string   `json:"caption"` // absent on captionless posts
	MediaType    string    `json:"media_type"`
	MediaURL     string    `json:"media_url"`
	Permalink    string    `json:"permalink"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Timestamp    string    `json:"timestamp"`
	Children     *Children `json:"children,omitempty"`
}

// Children is the nested children edge of a carousel.
type Children struct {
	Data []Child `json:"data"`
}

// Page is one response of the media edge
type Page struct {
	Data   []Item `json:"data"`
	Paging struct {
		Cursors struct {
			Before string `json:"before"`
			After  string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next,omitempty"`
	} `json:"paging"`
}

// ChildItems returns the nested children, or nil.
func (i *Item) ChildItems() []Child {
	if i.Children == nil {
		return nil
	}
	return i.Children.Data
}
