package chat

import "testing"

func TestTranscriptAppendOrder(t *testing.T) {
	t.Parallel()

	tr := NewTranscript()
	tr.Append(AuthorBot, TextPart("hello"))
	tr.Append(AuthorUser, TextPart("hi"))

	msgs := tr.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len=%d, want 2", len(msgs))
	}
	if msgs[0].Author != AuthorBot || msgs[1].Author != AuthorUser {
		t.Fatalf("authors=%s,%s, want bot,user", msgs[0].Author, msgs[1].Author)
	}
	if msgs[0].ID == msgs[1].ID {
		t.Fatalf("message IDs must be unique, both %q", msgs[0].ID)
	}
}

func TestTranscriptAppendZeroPartsDropped(t *testing.T) {
	t.Parallel()

	tr := NewTranscript()
	msg := tr.Append(AuthorUser)
	if msg.ID != "" {
		t.Fatalf("zero-part append returned message %q", msg.ID)
	}
	if tr.Len() != 0 {
		t.Fatalf("len=%d, want 0", tr.Len())
	}
}

func TestTranscriptMessagesSnapshot(t *testing.T) {
	t.Parallel()

	tr := NewTranscript()
	tr.Append(AuthorUser, TextPart("one"))

	snapshot := tr.Messages()
	tr.Append(AuthorBot, TextPart("two"))

	if len(snapshot) != 1 {
		t.Fatalf("snapshot len=%d, want 1", len(snapshot))
	}
}

func TestTranscriptSearch(t *testing.T) {
	t.Parallel()

	tr := NewTranscript()
	tr.Append(AuthorBot, TextPart("We have Tiramisu and Chocolate Lava Cake."))
	tr.Append(AuthorUser, TextPart("What pizzas do you have?"))
	tr.Append(AuthorUser, ImagePart("data:image/png;base64,dGlyYW1pc3U="))

	matches := tr.Search("TIRAMISU")
	if len(matches) != 1 {
		t.Fatalf("matches=%d, want 1", len(matches))
	}
	if got := matches[0].Author; got != AuthorBot {
		t.Fatalf("match author=%s, want bot", got)
	}

	if matches := tr.Search(""); matches != nil {
		t.Fatalf("empty query matched %d messages, want none", len(matches))
	}
	if matches := tr.Search("sushi"); matches != nil {
		t.Fatalf("unmatched query returned %d messages", len(matches))
	}
}

func TestHighlightMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		query string
		want  string
	}{
		{
			name:  "preserves original casing",
			text:  "Tiramisu is great, tiramisu forever",
			query: "tiramisu",
			want:  "<mark>Tiramisu</mark> is great, <mark>tiramisu</mark> forever",
		},
		{
			name:  "no match",
			text:  "Garlic Bread",
			query: "pizza",
			want:  "Garlic Bread",
		},
		{
			name:  "empty query",
			text:  "anything",
			query: "",
			want:  "anything",
		},
		{
			name:  "folding changes byte length",
			text:  "Ⱥab",
			query: "ab",
			want:  "Ⱥ<mark>ab</mark>",
		},
		{
			name:  "multibyte fold pair",
			text:  "Ⱥab",
			query: "ⱥa",
			want:  "<mark>Ⱥa</mark>b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := HighlightMatches(tt.text, tt.query); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessageTextContent(t *testing.T) {
	t.Parallel()

	msg := newMessage(AuthorBot, []Part{
		TextPart("first"),
		ImagePart("data:image/png;base64,AA=="),
		TextPart("second"),
	})
	if got := msg.TextContent(); got != "first second" {
		t.Fatalf("got %q, want %q", got, "first second")
	}
}
