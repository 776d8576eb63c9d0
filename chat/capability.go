package chat

import "context"

// ModelProfile selects the latency/quality/reasoning-depth tradeoff for a
// stateless single-shot response.
type ModelProfile string

const (
	ProfileStandard      ModelProfile = "standard"
	ProfileDeepReasoning ModelProfile = "deep-reasoning"
	ProfileFast          ModelProfile = "fast"
)

// Blob is inline binary prompt data.
type Blob struct {
	MIMEType string
	Data     []byte
}

// ToolResponse carries a resolved tool result back into a dialogue
// context as a structured tool-response turn.
type ToolResponse struct {
	Name   string
	Result map[string]any
}

// PromptPart is one element of the input for a provider call. Exactly one
// field is populated.
type PromptPart struct {
	Text         string
	Blob         *Blob
	ToolResponse *ToolResponse
}

// TextPrompt creates a text prompt part.
func TextPrompt(text string) PromptPart {
	return PromptPart{Text: text}
}

// BlobPrompt creates an inline binary prompt part.
func BlobPrompt(mimeType string, data []byte) PromptPart {
	return PromptPart{Blob: &Blob{MIMEType: mimeType, Data: data}}
}

// ToolResponsePrompt creates a tool-response prompt part.
func ToolResponsePrompt(name string, result map[string]any) PromptPart {
	return PromptPart{ToolResponse: &ToolResponse{Name: name, Result: result}}
}

// ToolCall is a provider-issued request to execute a named local
// capability with arguments.
type ToolCall struct {
	Name string
	Args map[string]any
}

// Answer is the result of a provider call. It may carry final text, tool
// calls to resolve before the final answer, or both.
type Answer struct {
	Text      string
	ToolCalls []ToolCall
	Citations []GroundingCitation
}

// HistoryRole is the provider-side role of a reconstructed history turn.
type HistoryRole string

const (
	HistoryRoleUser  HistoryRole = "user"
	HistoryRoleModel HistoryRole = "model"
)

// HistoryTurn is one turn of an explicitly supplied history snapshot for
// stateless calls.
type HistoryTurn struct {
	Role  HistoryRole
	Parts []PromptPart
}

// Location is a device geolocation fix.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Locator fetches the device location for grounded turns.
type Locator interface {
	Locate(ctx context.Context) (Location, error)
}

// LiveServerEvent is one event received over an open live voice channel.
// Any combination of fields may be populated.
type LiveServerEvent struct {
	InputTranscript  string // incremental user-speech transcript delta
	OutputTranscript string // incremental bot-speech transcript delta
	TurnComplete     bool
	Audio            []byte // playback audio chunk (PCM16)
}

// LiveHandlers receive live channel lifecycle and server events. Nil
// handlers are skipped.
type LiveHandlers struct {
	OnOpen  func()
	OnEvent func(LiveServerEvent)
	OnError func(error)
	OnClose func()
}

// LiveChannel is an open duplex voice channel. Audio frames flow in via
// SendAudioFrame; transcription and playback events arrive through the
// LiveHandlers passed at open time.
type LiveChannel interface {
	SendAudioFrame(pcm []byte) error
	Close() error
}

// Capability is the sole boundary to the external generative-AI provider.
// Every operation that can fail on transport, auth or quota returns a
// *ProviderError; the orchestration layer never retries automatically.
type Capability interface {
	// Respond continues the multi-turn dialogue context identified by
	// sessionKey, creating it on first use. The answer may contain tool
	// calls instead of or alongside final text.
	Respond(ctx context.Context, sessionKey string, parts []PromptPart) (*Answer, error)

	// RespondOnce performs a stateless single-shot call over an explicitly
	// supplied history snapshot. No session continuity, no tool support.
	RespondOnce(ctx context.Context, history []HistoryTurn, parts []PromptPart, profile ModelProfile) (*Answer, error)

	// Transcribe converts recorded audio to text.
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)

	// SynthesizeSpeech converts text to audio. A nil result with a nil
	// error means the provider was unable to synthesize; this case never
	// returns an error.
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)

	// RespondGrounded answers a prompt grounded by the given location,
	// optionally attaching citations.
	RespondGrounded(ctx context.Context, prompt string, loc Location) (*Answer, error)

	// OpenLiveSession opens a duplex streaming voice channel.
	OpenLiveSession(ctx context.Context, h LiveHandlers) (LiveChannel, error)

	// Summarize produces a short summary of transcript messages that
	// matched a search query.
	Summarize(ctx context.Context, query string, matches []Message) (string, error)
}
