package gemini

import (
	"context"

	"google.golang.org/genai"

	"github.com/stanley-cafeteria/stanley-chat/chat"
)

// RespondGrounded answers a prompt grounded by the Google Maps retrieval
// tool anchored at the given location.
func (p *Provider) RespondGrounded(ctx context.Context, prompt string, loc chat.Location) (*chat.Answer, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.ChatModel, genai.Text(prompt), groundedConfig(loc))
	if err != nil {
		return nil, wrapErr("generating grounded content", err)
	}
	return answerFromResponse(resp), nil
}

// groundedConfig enables the Maps retrieval tool anchored at loc.
func groundedConfig(loc chat.Location) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleMaps: &genai.GoogleMaps{}}},
		ToolConfig: &genai.ToolConfig{
			RetrievalConfig: &genai.RetrievalConfig{
				LatLng: &genai.LatLng{
					Latitude:  genai.Ptr(loc.Latitude),
					Longitude: genai.Ptr(loc.Longitude),
				},
			},
		},
	}
}

// normalizeChunks converts provider grounding chunks into the typed
// citation model. Chunks with neither a web nor a maps source are
// dropped rather than passed through opaquely.
func normalizeChunks(chunks []*genai.GroundingChunk) []chat.GroundingCitation {
	var citations []chat.GroundingCitation
	for _, chunk := range chunks {
		if chunk == nil {
			continue
		}
		switch {
		case chunk.Web != nil:
			citations = append(citations, chat.GroundingCitation{
				Web: &chat.WebSource{
					URI:   chunk.Web.URI,
					Title: chunk.Web.Title,
				},
			})
		case chunk.Maps != nil:
			citations = append(citations, chat.GroundingCitation{
				Place: &chat.PlaceSource{
					URI:            chunk.Maps.URI,
					Title:          chunk.Maps.Title,
					ReviewSnippets: normalizeReviewSnippets(chunk.Maps.PlaceAnswerSources),
				},
			})
		}
	}
	return citations
}

func normalizeReviewSnippets(sources *genai.GroundingChunkMapsPlaceAnswerSources) []chat.ReviewSnippet {
	if sources == nil {
		return nil
	}
	var snippets []chat.ReviewSnippet
	for _, review := range sources.ReviewSnippets {
		if review == nil {
			continue
		}
		snippet := chat.ReviewSnippet{
			URI:  review.GoogleMapsURI,
			Text: review.Review,
		}
		if review.AuthorAttribution != nil {
			snippet.Author = review.AuthorAttribution.DisplayName
		}
		snippets = append(snippets, snippet)
	}
	return snippets
}
