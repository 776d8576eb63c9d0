package chat

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// Transcript is the append-only ordered message sequence of one
// conversation. Appends are atomic; messages are immutable once added.
type Transcript struct {
	mu   sync.RWMutex
	msgs []Message
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append creates a message from the given parts and adds it to the end of
// the transcript. At least one part is required; zero parts is a
// programming error and the append is dropped.
func (t *Transcript) Append(author Author, parts ...Part) Message {
	if len(parts) == 0 {
		return Message{}
	}
	msg := newMessage(author, parts)
	t.mu.Lock()
	t.msgs = append(t.msgs, msg)
	t.mu.Unlock()
	return msg
}

// Messages returns a snapshot copy of the transcript in append order.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len returns the number of messages in the transcript.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.msgs)
}

// Search returns the ordered subsequence of messages whose text parts
// contain query, compared case-insensitively. Image, audio and grounding
// parts are never matched.
func (t *Transcript) Search(query string) []Message {
	needle := strings.ToLower(query)
	if needle == "" {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	var matches []Message
	for _, msg := range t.msgs {
		for _, p := range msg.Parts {
			if p.Type == PartText && strings.Contains(strings.ToLower(p.Text), needle) {
				matches = append(matches, msg)
				break
			}
		}
	}
	return matches
}

// HighlightMatches wraps every case-insensitive occurrence of query in
// text with <mark> tags, preserving the original casing of the match.
// Matching compares rune windows under case folding, so offsets stay
// valid when folding changes a rune's encoded length.
func HighlightMatches(text, query string) string {
	if query == "" {
		return text
	}

	var b strings.Builder
	for text != "" {
		start, end := foldIndex(text, query)
		if start < 0 {
			b.WriteString(text)
			break
		}
		b.WriteString(text[:start])
		b.WriteString("<mark>")
		b.WriteString(text[start:end])
		b.WriteString("</mark>")
		text = text[end:]
	}
	return b.String()
}

// foldIndex returns the byte bounds of the first rune window of text
// equal to query under simple case folding, or (-1, -1).
func foldIndex(text, query string) (int, int) {
	n := utf8.RuneCountInString(query)
	for i := 0; i < len(text); {
		end, count := i, 0
		for end < len(text) && count < n {
			_, size := utf8.DecodeRuneInString(text[end:])
			end += size
			count++
		}
		if count < n {
			break
		}
		if strings.EqualFold(text[i:end], query) {
			return i, end
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return -1, -1
}
