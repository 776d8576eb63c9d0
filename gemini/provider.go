// Package gemini implements chat.Capability on top of the Gemini API via
// google.golang.org/genai. It owns the session registry mapping
// conversation keys to provider-side multi-turn chats, and normalizes
// provider payloads (tool calls, grounding metadata) into the chat
// package's typed model at this boundary.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/stanley-cafeteria/stanley-chat/chat"
	"github.com/stanley-cafeteria/stanley-chat/internal/logging"
)

// Config configures the provider. Zero-value model fields fall back to
// the defaults in declarations.go.
type Config struct {
	APIKey string

	ChatModel      string
	ReasoningModel string
	FastModel      string
	TTSModel       string
	LiveModel      string

	// SessionCapacity bounds the dialogue-context registry (LRU by last
	// use). 0 means unbounded.
	SessionCapacity int

	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.ChatModel == "" {
		c.ChatModel = defaultChatModel
	}
	if c.ReasoningModel == "" {
		c.ReasoningModel = defaultReasoningModel
	}
	if c.FastModel == "" {
		c.FastModel = defaultFastModel
	}
	if c.TTSModel == "" {
		c.TTSModel = defaultTTSModel
	}
	if c.LiveModel == "" {
		c.LiveModel = defaultLiveModel
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Provider implements chat.Capability.
type Provider struct {
	client   *genai.Client
	cfg      Config
	logger   *slog.Logger
	sessions *chat.SessionRegistry
}

var _ chat.Capability = (*Provider)(nil)

// New creates a provider backed by the Gemini API.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	cfg.applyDefaults()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	p := &Provider{client: client, cfg: cfg, logger: cfg.Logger}
	p.sessions = chat.NewSessionRegistry(cfg.SessionCapacity, p.newDialogue)
	return p, nil
}

// dialogue is one provider-side multi-turn chat.
type dialogue struct {
	key  string
	chat *genai.Chat
}

func (d *dialogue) Key() string { return d.key }

// newDialogue initializes the dialogue context for a session key: the
// fixed system instruction plus the fixed tool declaration set.
func (p *Provider) newDialogue(ctx context.Context, key string) (chat.Session, error) {
	cc, err := p.client.Chats.Create(ctx, p.cfg.ChatModel, &genai.GenerateContentConfig{
		SystemInstruction: systemContent(chatSystemInstruction),
		Tools: []*genai.Tool{
			{FunctionDeclarations: functionDeclarations()},
		},
	}, nil)
	if err != nil {
		return nil, wrapErr("creating chat session", err)
	}
	return &dialogue{key: key, chat: cc}, nil
}

// Respond continues the dialogue context for sessionKey.
func (p *Provider) Respond(ctx context.Context, sessionKey string, parts []chat.PromptPart) (*chat.Answer, error) {
	session, err := p.sessions.GetOrCreate(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	d := session.(*dialogue)

	resp, err := d.chat.SendMessage(ctx, toParts(parts)...)
	if err != nil {
		return nil, wrapErr("sending message", err)
	}
	return answerFromResponse(resp), nil
}

// RespondOnce performs a stateless call over an explicit history.
func (p *Provider) RespondOnce(ctx context.Context, history []chat.HistoryTurn, parts []chat.PromptPart, profile chat.ModelProfile) (*chat.Answer, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		contents = append(contents, &genai.Content{
			Role:  string(turn.Role),
			Parts: toPartPtrs(turn.Parts),
		})
	}
	contents = append(contents, &genai.Content{
		Role:  "user",
		Parts: toPartPtrs(parts),
	})

	model := p.cfg.FastModel
	config := &genai.GenerateContentConfig{}
	if profile == chat.ProfileDeepReasoning {
		model = p.cfg.ReasoningModel
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr[int32](reasoningThinkingBudget),
		}
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, wrapErr("generating content", err)
	}
	return answerFromResponse(resp), nil
}

// Transcribe converts recorded audio to text.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: audio}},
			{Text: transcribePrompt},
		},
	}}

	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.ChatModel, contents, nil)
	if err != nil {
		return "", wrapErr("transcribing audio", err)
	}
	return resp.Text(), nil
}

// SynthesizeSpeech converts text to audio. Being unable to synthesize is
// signaled with a nil result, never an error.
func (p *Provider) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: ttsPromptPrefix + text}},
	}}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: ttsVoice},
			},
		},
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.TTSModel, contents, config)
	if err != nil {
		p.logger.Error("speech synthesis failed", logging.Err(err))
		return nil, nil
	}
	return inlineAudio(resp), nil
}

// Summarize produces a short summary of search matches.
func (p *Provider) Summarize(ctx context.Context, query string, matches []chat.Message) (string, error) {
	if len(matches) == 0 {
		return "No matching messages found to summarize.", nil
	}

	var context strings.Builder
	for i, msg := range matches {
		if i > 0 {
			context.WriteByte('\n')
		}
		speaker := "Stanley"
		if msg.Author == chat.AuthorUser {
			speaker = "User"
		}
		context.WriteString(speaker)
		context.WriteString(": ")
		context.WriteString(msg.TextContent())
	}

	prompt := fmt.Sprintf(`A user searched their chat history for the query: %q.
The following messages matched their search.
Briefly summarize the key information from these messages in one or two sentences, directly answering the user's query if possible.

Matching Messages:
%s

Summary:`, query, context.String())

	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.ChatModel, genai.Text(prompt), nil)
	if err != nil {
		return "", wrapErr("summarizing search results", err)
	}
	return resp.Text(), nil
}

// toParts converts prompt parts to genai parts for session calls.
func toParts(parts []chat.PromptPart) []genai.Part {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		switch {
		case p.Blob != nil:
			out = append(out, genai.Part{InlineData: &genai.Blob{
				MIMEType: p.Blob.MIMEType,
				Data:     p.Blob.Data,
			}})
		case p.ToolResponse != nil:
			out = append(out, genai.Part{FunctionResponse: &genai.FunctionResponse{
				Name:     p.ToolResponse.Name,
				Response: p.ToolResponse.Result,
			}})
		default:
			out = append(out, genai.Part{Text: p.Text})
		}
	}
	return out
}

func toPartPtrs(parts []chat.PromptPart) []*genai.Part {
	converted := toParts(parts)
	out := make([]*genai.Part, len(converted))
	for i := range converted {
		out[i] = &converted[i]
	}
	return out
}

// answerFromResponse maps a provider response to a chat.Answer,
// normalizing tool calls and grounding metadata.
func answerFromResponse(resp *genai.GenerateContentResponse) *chat.Answer {
	answer := &chat.Answer{Text: resp.Text()}

	for _, call := range resp.FunctionCalls() {
		answer.ToolCalls = append(answer.ToolCalls, chat.ToolCall{
			Name: call.Name,
			Args: call.Args,
		})
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].GroundingMetadata != nil {
		answer.Citations = normalizeChunks(resp.Candidates[0].GroundingMetadata.GroundingChunks)
	}
	return answer
}

// inlineAudio extracts the first inline-data payload of a response.
func inlineAudio(resp *genai.GenerateContentResponse) []byte {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}

// wrapErr converts a genai failure into the chat error taxonomy.
func wrapErr(reason string, err error) *chat.ProviderError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		retryable := apiErr.Code == 429 || apiErr.Code >= 500
		return chat.NewProviderError(reason, retryable, err)
	}
	return chat.NewProviderError(reason, false, err)
}
