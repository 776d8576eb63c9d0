// Package chat implements the conversation orchestration core for the
// Stanley's Cafeteria assistant: the message model, the per-conversation
// transcript, the session registry, tool resolution, the turn
// orchestrator, and the live voice session controller.
//
// The package talks to a generative-AI provider exclusively through the
// Capability interface, so the provider is substitutable in tests.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Author identifies who produced a message.
type Author string

const (
	AuthorUser   Author = "user"
	AuthorBot    Author = "bot"
	AuthorSystem Author = "system"
)

// PartType tags the variant held by a Part.
type PartType string

const (
	PartText      PartType = "text"
	PartImage     PartType = "image"
	PartAudio     PartType = "audio"
	PartGrounding PartType = "grounding"
)

// Part is one ordered element of a message. Exactly one variant is
// populated, selected by Type: Text for PartText, DataURI for PartImage
// and PartAudio, Citations for PartGrounding.
type Part struct {
	Type      PartType            `json:"type"`
	Text      string              `json:"text,omitempty"`
	DataURI   string              `json:"data_uri,omitempty"`
	Citations []GroundingCitation `json:"citations,omitempty"`
}

// TextPart creates a text part.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ImagePart creates an image part from a data URI.
func ImagePart(dataURI string) Part {
	return Part{Type: PartImage, DataURI: dataURI}
}

// AudioPart creates an audio part from a data URI.
func AudioPart(dataURI string) Part {
	return Part{Type: PartAudio, DataURI: dataURI}
}

// GroundingPart creates a grounding part carrying citations.
func GroundingPart(citations []GroundingCitation) Part {
	return Part{Type: PartGrounding, Citations: citations}
}

// GroundingCitation is a normalized retrieval source attached to a bot
// message at creation time. Exactly one of Web or Place is set.
type GroundingCitation struct {
	Web   *WebSource   `json:"web,omitempty"`
	Place *PlaceSource `json:"place,omitempty"`
}

// WebSource cites a web page.
type WebSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// PlaceSource cites a place result, optionally with review snippets.
type PlaceSource struct {
	URI            string          `json:"uri"`
	Title          string          `json:"title"`
	ReviewSnippets []ReviewSnippet `json:"review_snippets,omitempty"`
}

// ReviewSnippet is a single review excerpt cited by a place source.
type ReviewSnippet struct {
	URI    string `json:"uri"`
	Text   string `json:"text"`
	Author string `json:"author"`
}

// Message is one immutable entry of a conversation transcript.
type Message struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Parts     []Part    `json:"parts"`
	Timestamp time.Time `json:"timestamp"`
}

// newMessage builds a message with a fresh unique ID. Callers guarantee
// at least one part; the transcript enforces this on append.
func newMessage(author Author, parts []Part) Message {
	return Message{
		ID:        uuid.NewString(),
		Author:    author,
		Parts:     parts,
		Timestamp: time.Now(),
	}
}

// TextContent joins the text parts of a message in order, separated by a
// single space. Non-text parts are ignored.
func (m Message) TextContent() string {
	var out string
	for _, p := range m.Parts {
		if p.Type != PartText {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p.Text
	}
	return out
}
