package ghost

import "time"

// Tag references a tag by name; Ghost creates missing tags.
type Tag struct {
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// Author references a staff user by email.
type Author struct {
	Email string `json:"email,omitempty"`
	Slug  string `json:"slug,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Post is the subset of the Admin API post resource the tool reads and writes.
type Post struct {
	ID              string     `json:"id,omitempty"`
	Title           string     `json:"title,omitempty"`
	Slug            string     `json:"slug,omitempty"`
	Tags            []Tag      `json:"tags,omitempty"`
	Authors         []Author   `json:"authors,omitempty"`
	MetaTitle       string     `json:"meta_title,omitempty"`
	MetaDescription string     `json:"meta_description,omitempty"`
	FeatureImage    string     `json:"feature_image,omitempty"`
	Status          string     `json:"status,omitempty"`
	Mobiledoc       string     `json:"mobiledoc,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
	URL             string     `json:"url,omitempty"`
}

// newPost is the create payload. Ghost requires title on create even when it
// is empty; edits keep using Post so unset fields stay untouched.
type newPost struct {
	*Post
	Title string `json:"title"`
}

type createEnvelope struct {
	Posts []newPost `json:"posts"`
}

type postsEnvelope struct {
	Posts []*Post `json:"posts"`
}

type uploadEnvelope struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	Media []struct {
		URL string `json:"url"`
	} `json:"media"`
}
