// Package aggregate turns pending staging rows into ready-to-publish post
// groups: one per Instagram parent post, with title, slug, tags and a
// mobiledoc body derived from the caption.
package aggregate

import (
	"errors"
	"fmt"
	"time"

	"github.com/renderinc/ig2ghost/internal/mobiledoc"
	"github.com/renderinc/ig2ghost/internal/storage"
)

// ErrUngroupedInput is returned when rows of one parent are not adjacent.
var ErrUngroupedInput = errors.New("rows for a parent are not adjacent")

// Member is one media item of a group.
type Member struct {
	MediaID   string
	MediaType storage.MediaType
	SourceURL string
	Card      int  // index into Document.Cards, -1 when not embedded
	Featured  bool // supplies the feature image
}

// PostGroup is everything needed to create one Ghost post.
type PostGroup struct {
	ParentID     string
	Title        string
	Slug         string
	Tags         []string
	Caption      string
	Summary      string
	FeatureImage string // empty when the top-level item is a video
	Permalink    string
	PublishedAt  time.Time
	Document     *mobiledoc.Document
	Members      []Member

	cardIndex int
}

// MemberMediaIDs lists the media ids to mark once the post exists.
func (g *PostGroup) MemberMediaIDs() []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.MediaID
	}
	return ids
}

// Resolve replaces member i's source URL with its uploaded URL in the card
// and feature image it supplies.
func (g *PostGroup) Resolve(i int, uploadedURL string) error {
	if i < 0 || i >= len(g.Members) {
		return fmt.Errorf("resolve member %d: out of range (%d members)", i, len(g.Members))
	}
	m := &g.Members[i]
	if m.Card >= 0 {
		g.Document.Cards[m.Card].Src = uploadedURL
	}
	if m.Featured {
		g.FeatureImage = uploadedURL
	}
	return nil
}

func newGroup(first storage.Media) *PostGroup {
	caption := first.CaptionText()
	title := Title(caption)

	g := &PostGroup{
		ParentID:    first.ParentID,
		Title:       title,
		Slug:        Slug(title),
		Tags:        Tags(caption),
		Caption:     caption,
		Summary:     Summary(caption),
		Permalink:   first.Permalink,
		PublishedAt: first.TakenAt,
		Document:    &mobiledoc.Document{},
	}
	for _, line := range Lines(caption) {
		g.Document.Sections = append(g.Document.Sections, mobiledoc.Paragraph(line))
	}

	m := Member{MediaID: first.MediaID, MediaType: first.MediaType, SourceURL: first.MediaURL, Card: -1}
	if first.MediaType.IsVideo() {
		g.embed(&m)
	} else {
		m.Featured = true
		g.FeatureImage = first.MediaURL
	}
	g.Members = append(g.Members, m)
	return g
}

func (g *PostGroup) add(rec storage.Media) {
	m := Member{MediaID: rec.MediaID, MediaType: rec.MediaType, SourceURL: rec.MediaURL}
	g.embed(&m)
	g.Members = append(g.Members, m)
}

func (g *PostGroup) embed(m *Member) {
	card := mobiledoc.ImageCard(m.SourceURL)
	if m.MediaType.IsVideo() {
		card = mobiledoc.VideoCard(m.SourceURL)
	}
	g.Document.Cards = append(g.Document.Cards, card)
	g.Document.Sections = append(g.Document.Sections, mobiledoc.CardRef(g.cardIndex))
	m.Card = g.cardIndex
	g.cardIndex++
}

// Aggregate builds one PostGroup per parent id, in order of first appearance.
// Records must be grouped by parent with the top-level item first, which is
// the order storage.DB.Pending returns; a parent whose rows are split by
// another parent's rows yields ErrUngroupedInput.
func Aggregate(records []storage.Media) ([]*PostGroup, error) {
	byParent := make(map[string]*PostGroup)
	var groups []*PostGroup
	var current *PostGroup

	for _, rec := range records {
		if current != nil && current.ParentID == rec.ParentID {
			current.add(rec)
			continue
		}
		if _, seen := byParent[rec.ParentID]; seen {
			return nil, fmt.Errorf("aggregate media %s: parent %s: %w", rec.MediaID, rec.ParentID, ErrUngroupedInput)
		}
		current = newGroup(rec)
		byParent[rec.ParentID] = current
		groups = append(groups, current)
	}
	return groups, nil
}
