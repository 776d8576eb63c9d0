package gemini

import (
	"google.golang.org/genai"

	"github.com/stanley-cafeteria/stanley-chat/chat"
)

// Default model selection per operation.
const (
	defaultChatModel      = "gemini-2.5-flash"
	defaultReasoningModel = "gemini-2.5-pro"
	defaultFastModel      = "gemini-2.5-flash-lite"
	defaultTTSModel       = "gemini-2.5-flash-preview-tts"
	defaultLiveModel      = "gemini-2.5-flash-native-audio-preview-09-2025"

	reasoningThinkingBudget int32 = 32768

	ttsVoice  = "Kore"
	liveVoice = "Zephyr"
)

const (
	chatSystemInstruction = "You are a helpful and friendly assistant for Stanley's Cafeteria. " +
		"Your goal is to help users with their questions, find menu items, and place orders. " +
		"Be concise and conversational."

	liveSystemInstruction = "You are Stanley, a friendly and helpful voice assistant for " +
		"Stanley's Cafeteria. Keep your responses brief and conversational."

	transcribePrompt = "Transcribe the following audio recording precisely."

	ttsPromptPrefix = "Say this naturally: "
)

// functionDeclarations is the fixed tool declaration set attached to
// every dialogue context. The matching handlers live in chat.ToolResolver.
func functionDeclarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		{
			Name:        chat.ToolGetMenuItems,
			Description: "Retrieves a list of menu items from a specific category.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"category": {
						Type:        genai.TypeString,
						Description: `The category of menu items to retrieve (e.g., "Appetizers", "Main Courses", "Desserts").`,
					},
				},
			},
		},
		{
			Name:        chat.ToolPlaceOrder,
			Description: "Places a delivery order for the specified items.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"items": {
						Type:        genai.TypeArray,
						Description: "A list of items to order.",
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"name":     {Type: genai.TypeString},
								"quantity": {Type: genai.TypeInteger},
							},
						},
					},
					"deliveryAddress": {
						Type:        genai.TypeString,
						Description: "The address for the delivery.",
					},
				},
				Required: []string{"items", "deliveryAddress"},
			},
		},
	}
}

func systemContent(text string) *genai.Content {
	return &genai.Content{Parts: []*genai.Part{{Text: text}}}
}
