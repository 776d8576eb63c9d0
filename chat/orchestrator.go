package chat

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/stanley-cafeteria/stanley-chat/internal/logging"
)

// Mode selects the response strategy for outgoing turns.
type Mode string

const (
	ModeStandard Mode = "Standard"
	ModeThinking Mode = "Thinking"
	ModeFast     Mode = "Fast"
	ModeVoice    Mode = "Voice"
)

// Fixture texts surfaced to the user.
const (
	WelcomeText          = "Welcome to Stanley's Cafeteria! How can I help you today?"
	turnFailedText       = "Sorry, I encountered an error."
	geolocationFailText  = "Could not get your location for nearby search."
	emptySearchSummary   = "No matching messages found to summarize."
	summaryFallbackText  = "Could not generate a summary for the search results."
	defaultMaxToolRounds = 1
)

// localityCues trigger the grounded strategy when present in the raw
// input text (case-insensitive substring match).
var localityCues = []string{"nearby", "around here"}

// Attachment is a binary file attached to a user turn.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// Orchestrator drives one conversation: it owns the transcript, selects a
// response strategy per user turn, consults the session registry through
// the capability, and routes tool calls through the resolver before
// producing the final bot message.
//
// Turns are serialized per transcript: submitting while a turn is in
// flight fails with ErrTurnInFlight.
type Orchestrator struct {
	capability    Capability
	locator       Locator
	resolver      *ToolResolver
	transcript    *Transcript
	sessionKey    string
	maxToolRounds int
	logger        *slog.Logger

	modeMu sync.RWMutex
	mode   Mode

	inFlight atomic.Bool
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLocator sets the geolocation source for grounded turns.
func WithLocator(l Locator) OrchestratorOption {
	return func(o *Orchestrator) { o.locator = l }
}

// WithSessionKey sets the opaque key of the provider-side dialogue
// context used by standard turns.
func WithSessionKey(key string) OrchestratorOption {
	return func(o *Orchestrator) { o.sessionKey = key }
}

// WithMaxToolRounds bounds how many tool-resolution rounds a single turn
// may perform. Calls still pending after the cap are dropped.
func WithMaxToolRounds(n int) OrchestratorOption {
	return func(o *Orchestrator) { o.maxToolRounds = n }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates an orchestrator over the given capability. The
// transcript starts with the fixture greeting from the bot.
func NewOrchestrator(capability Capability, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		capability:    capability,
		transcript:    NewTranscript(),
		sessionKey:    "stanley-chat",
		maxToolRounds: defaultMaxToolRounds,
		mode:          ModeStandard,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.resolver = NewToolResolver(o.logger)
	o.transcript.Append(AuthorBot, TextPart(WelcomeText))
	return o
}

// Transcript returns the conversation transcript.
func (o *Orchestrator) Transcript() *Transcript { return o.transcript }

// Capability returns the underlying response capability, for surfaces
// that drive voice sessions directly.
func (o *Orchestrator) Capability() Capability { return o.capability }

// Mode returns the current response strategy mode.
func (o *Orchestrator) Mode() Mode {
	o.modeMu.RLock()
	defer o.modeMu.RUnlock()
	return o.mode
}

// SetMode selects the response strategy for subsequent turns.
func (o *Orchestrator) SetMode(m Mode) {
	o.modeMu.Lock()
	o.mode = m
	o.modeMu.Unlock()
}

// SubmitTurn processes one user turn: it appends the user message, runs
// the selected strategy, and appends exactly one bot or system message.
// The returned message is the appended response. A non-nil error
// accompanies a system response for provider failures so callers can log
// or surface retry hints; the transcript is already consistent either
// way.
func (o *Orchestrator) SubmitTurn(ctx context.Context, text string, attachment *Attachment) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && attachment == nil {
		return Message{}, ErrEmptyTurn
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		return Message{}, ErrTurnInFlight
	}
	defer o.inFlight.Store(false)

	// Snapshot the visible transcript before this turn for the stateless
	// strategies.
	history := o.buildHistory()

	var userParts []Part
	if text != "" {
		userParts = append(userParts, TextPart(text))
	}
	if attachment != nil {
		userParts = append(userParts, ImagePart(encodeDataURI(attachment.MIMEType, attachment.Data)))
	}
	o.transcript.Append(AuthorUser, userParts...)

	if cue := matchLocalityCue(text); cue != "" {
		return o.runGrounded(ctx, text)
	}

	switch o.Mode() {
	case ModeThinking:
		return o.runSingleShot(ctx, history, text, attachment, ProfileDeepReasoning)
	case ModeFast:
		return o.runSingleShot(ctx, history, text, attachment, ProfileFast)
	default:
		return o.runStandard(ctx, text, attachment)
	}
}

// runStandard performs a session-continuous, tool-enabled turn.
func (o *Orchestrator) runStandard(ctx context.Context, text string, attachment *Attachment) (Message, error) {
	parts := promptParts(text, attachment)

	answer, err := o.capability.Respond(ctx, o.sessionKey, parts)
	if err != nil {
		return o.failTurn(err), err
	}

	for round := 0; round < o.maxToolRounds && len(answer.ToolCalls) > 0; round++ {
		responses := o.resolver.Resolve(answer.ToolCalls)
		if len(responses) == 0 {
			// Every call was unknown; fall through to whatever answer text
			// the provider already supplied.
			break
		}

		followUpParts := make([]PromptPart, 0, len(responses))
		for _, resp := range responses {
			followUpParts = append(followUpParts, ToolResponsePrompt(resp.Name, resp.Result))
		}

		answer, err = o.capability.Respond(ctx, o.sessionKey, followUpParts)
		if err != nil {
			return o.failTurn(err), err
		}
	}
	if dropped := len(answer.ToolCalls); dropped > 0 {
		o.logger.Debug("dropping tool calls past round cap", "count", dropped)
	}

	return o.transcript.Append(AuthorBot, TextPart(answer.Text)), nil
}

// runSingleShot performs a stateless call over the reconstructed visible
// transcript. No tool support.
func (o *Orchestrator) runSingleShot(ctx context.Context, history []HistoryTurn, text string, attachment *Attachment, profile ModelProfile) (Message, error) {
	answer, err := o.capability.RespondOnce(ctx, history, promptParts(text, attachment), profile)
	if err != nil {
		return o.failTurn(err), err
	}
	return o.transcript.Append(AuthorBot, TextPart(answer.Text)), nil
}

// runGrounded requires a geolocation fix first; if it fails the turn
// resolves to a system message and no provider call occurs.
func (o *Orchestrator) runGrounded(ctx context.Context, text string) (Message, error) {
	if o.locator == nil {
		return o.transcript.Append(AuthorSystem, TextPart(geolocationFailText)), nil
	}
	loc, err := o.locator.Locate(ctx)
	if err != nil {
		o.logger.Warn("geolocation fetch failed", logging.Err(err))
		return o.transcript.Append(AuthorSystem, TextPart(geolocationFailText)), nil
	}

	answer, err := o.capability.RespondGrounded(ctx, text, loc)
	if err != nil {
		return o.failTurn(err), err
	}

	botParts := []Part{TextPart(answer.Text)}
	if len(answer.Citations) > 0 {
		botParts = append(botParts, GroundingPart(answer.Citations))
	}
	return o.transcript.Append(AuthorBot, botParts...), nil
}

// failTurn converts a provider failure into the single system message for
// this turn.
func (o *Orchestrator) failTurn(err error) Message {
	o.logger.Error("turn failed", logging.Err(err))
	return o.transcript.Append(AuthorSystem, TextPart(turnFailedText))
}

// Dictate transcribes recorded audio for the input box. Failures are
// returned typed; the caller decides how to surface them.
func (o *Orchestrator) Dictate(ctx context.Context, audio []byte, mimeType string) (string, error) {
	text, err := o.capability.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return "", fmt.Errorf("transcribing audio: %w", err)
	}
	return text, nil
}

// Speak synthesizes speech for a bot message. A nil result means the
// provider could not synthesize; that is not an error.
func (o *Orchestrator) Speak(ctx context.Context, text string) ([]byte, error) {
	return o.capability.SynthesizeSpeech(ctx, text)
}

// SearchResult carries the outcome of a transcript search. Highlights
// holds one rendering per match with the query occurrences wrapped in
// <mark> tags, in the same order as Matches.
type SearchResult struct {
	Query      string    `json:"query"`
	Matches    []Message `json:"matches"`
	Highlights []string  `json:"highlights"`
	Summary    string    `json:"summary"`
}

// Search finds transcript messages whose text parts contain query and
// summarizes them through the capability. Zero matches short-circuit to a
// fixed summary without a provider call; a summarization failure degrades
// to a fallback summary rather than failing the search.
func (o *Orchestrator) Search(ctx context.Context, query string) SearchResult {
	matches := o.transcript.Search(query)
	result := SearchResult{Query: query, Matches: matches}
	for _, m := range matches {
		result.Highlights = append(result.Highlights, HighlightMatches(m.TextContent(), query))
	}

	if len(matches) == 0 {
		result.Summary = emptySearchSummary
		return result
	}

	summary, err := o.capability.Summarize(ctx, query, matches)
	if err != nil {
		o.logger.Error("search summarization failed", logging.Err(err))
		result.Summary = summaryFallbackText
		return result
	}
	result.Summary = summary
	return result
}

// buildHistory reconstructs the visible transcript as alternating
// user/model turns for stateless calls. Text parts map to text prompts;
// image parts are inlined as binary attachments; audio and grounding
// parts are dropped.
func (o *Orchestrator) buildHistory() []HistoryTurn {
	var history []HistoryTurn
	for _, msg := range o.transcript.Messages() {
		role := HistoryRoleModel
		if msg.Author == AuthorUser {
			role = HistoryRoleUser
		}

		var parts []PromptPart
		for _, p := range msg.Parts {
			switch p.Type {
			case PartText:
				parts = append(parts, TextPrompt(p.Text))
			case PartImage:
				if mimeType, data, ok := decodeDataURI(p.DataURI); ok {
					parts = append(parts, BlobPrompt(mimeType, data))
				}
			}
		}
		if len(parts) == 0 {
			continue
		}
		history = append(history, HistoryTurn{Role: role, Parts: parts})
	}
	return history
}

// promptParts assembles the provider input for the current turn:
// attachment first, then the prompt text, matching render order.
func promptParts(text string, attachment *Attachment) []PromptPart {
	var parts []PromptPart
	if attachment != nil {
		parts = append(parts, BlobPrompt(attachment.MIMEType, attachment.Data))
	}
	parts = append(parts, TextPrompt(text))
	return parts
}

func matchLocalityCue(text string) string {
	lower := strings.ToLower(text)
	for _, cue := range localityCues {
		if strings.Contains(lower, cue) {
			return cue
		}
	}
	return ""
}

func encodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// decodeDataURI splits a data URI back into MIME type and raw bytes.
func decodeDataURI(uri string) (mimeType string, data []byte, ok bool) {
	rest, found := strings.CutPrefix(uri, "data:")
	if !found {
		return "", nil, false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", nil, false
	}
	mimeType = strings.TrimSuffix(meta, ";base64")
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, false
	}
	return mimeType, decoded, true
}
