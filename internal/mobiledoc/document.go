// Package mobiledoc models the subset of Ghost's mobiledoc format used for
// imported posts: image and html cards, card sections and plain paragraphs.
package mobiledoc

import (
	"encoding/json"
	"html"
)

// Version is the mobiledoc schema version Ghost expects.
const Version = "0.3.2"

// Section type identifiers.
const (
	MarkupSection = 1
	CardSection   = 10
)

// Card is an embeddable block. Video cards render as an inline html player,
// everything else as an image card.
type Card struct {
	Src   string
	Video bool
}

// ImageCard returns an image embed for src.
func ImageCard(src string) Card {
	return Card{Src: src}
}

// VideoCard returns an inline video player embed for src.
func VideoCard(src string) Card {
	return Card{Src: src, Video: true}
}

// Name is the mobiledoc card name.
func (c Card) Name() string {
	if c.Video {
		return "html"
	}
	return "image"
}

// VideoHTML is the markup of a video card.
func VideoHTML(src string) string {
	return `<p><video width="100%" controls><source src="` + html.EscapeString(src) +
		`" type="video/mp4">Your browser does not support the video tag.</video></p>`
}

func (c Card) MarshalJSON() ([]byte, error) {
	if c.Video {
		return json.Marshal([]any{c.Name(), map[string]string{"html": VideoHTML(c.Src)}})
	}
	return json.Marshal([]any{c.Name(), map[string]string{"src": c.Src, "alt": "", "title": ""}})
}

// Section is either a reference into the card list or a paragraph.
type Section struct {
	Type int
	Card int    // CardSection only
	Text string // MarkupSection only
}

// CardRef returns a section placing card index.
func CardRef(index int) Section {
	return Section{Type: CardSection, Card: index}
}

// Paragraph returns a <p> section with a single unstyled text marker.
func Paragraph(text string) Section {
	return Section{Type: MarkupSection, Text: text}
}

// IsCard reports whether the section references a card.
func (s Section) IsCard() bool {
	return s.Type == CardSection
}

func (s Section) MarshalJSON() ([]byte, error) {
	if s.IsCard() {
		return json.Marshal([]any{CardSection, s.Card})
	}
	// [typeIdentifier, tagName, markers]; marker = [textType, openMarkups, closedCount, text]
	marker := []any{0, []int{}, 0, s.Text}
	return json.Marshal([]any{MarkupSection, "p", []any{marker}})
}

// Document is the mobiledoc body of a post.
type Document struct {
	Cards    []Card
	Sections []Section
}

type wireDocument struct {
	Version  string    `json:"version"`
	Atoms    []any     `json:"atoms"`
	Markups  []any     `json:"markups"`
	Cards    []Card    `json:"cards"`
	Sections []Section `json:"sections"`
}

func (d *Document) MarshalJSON() ([]byte, error) {
	w := wireDocument{
		Version:  Version,
		Atoms:    []any{},
		Markups:  []any{},
		Cards:    d.Cards,
		Sections: d.Sections,
	}
	if w.Cards == nil {
		w.Cards = []Card{}
	}
	if w.Sections == nil {
		w.Sections = []Section{}
	}
	return json.Marshal(w)
}

// Encode returns the serialized payload Ghost stores in a post's mobiledoc field.
func (d *Document) Encode() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CardSections returns the card indices referenced by sections, in order.
func (d *Document) CardSections() []int {
	var refs []int
	for _, s := range d.Sections {
		if s.IsCard() {
			refs = append(refs, s.Card)
		}
	}
	return refs
}
