package chat

import (
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
)

// Tool names issued by the provider and resolved locally.
const (
	ToolGetMenuItems = "getMenuItems"
	ToolPlaceOrder   = "placeOrder"
)

// MenuItem is one entry of the static menu catalog.
type MenuItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// menuCatalog is the fixed menu fixture. Order placement and menu lookup
// are stubs; there is no real inventory behind them.
var menuCatalog = map[string][]MenuItem{
	"Appetizers": {
		{Name: "Spring Rolls", Price: 5.99},
		{Name: "Garlic Bread", Price: 4.50},
	},
	"Main Courses": {
		{Name: "Spaghetti Carbonara", Price: 12.99},
		{Name: "Margherita Pizza", Price: 10.50},
	},
	"Desserts": {
		{Name: "Tiramisu", Price: 6.50},
		{Name: "Chocolate Lava Cake", Price: 7.00},
	},
}

// MenuItems returns the catalog items for a category. An unknown category
// yields an empty list, not an error.
func MenuItems(category string) []MenuItem {
	return menuCatalog[category]
}

// MenuCategories returns the catalog category names in sorted order.
func MenuCategories() []string {
	categories := lo.Keys(menuCatalog)
	sort.Strings(categories)
	return categories
}

// OrderItem is one line of a delivery order.
type OrderItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// OrderConfirmation acknowledges a placed order.
type OrderConfirmation struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId"`
	Message string `json:"message"`
}

var orderEntropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)

// PlaceOrder synthesizes a time-based order identifier and acknowledges
// the order. Nothing is persisted and no payment happens.
func PlaceOrder(items []OrderItem, deliveryAddress string) OrderConfirmation {
	id := "ORD-" + ulid.MustNew(ulid.Timestamp(time.Now()), orderEntropy).String()
	return OrderConfirmation{
		Success: true,
		OrderID: id,
		Message: "Your order has been placed successfully!",
	}
}

// ToolHandler executes one provider-issued tool call and returns the
// payload sent back into the dialogue context.
type ToolHandler func(args map[string]any) map[string]any

// ToolResolver resolves provider-issued tool calls against a fixed local
// handler registry.
type ToolResolver struct {
	handlers map[string]ToolHandler
	logger   *slog.Logger
}

// NewToolResolver creates a resolver with the built-in menu and order
// handlers registered.
func NewToolResolver(logger *slog.Logger) *ToolResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolResolver{
		logger: logger,
		handlers: map[string]ToolHandler{
			ToolGetMenuItems: resolveGetMenuItems,
			ToolPlaceOrder:   resolvePlaceOrder,
		},
	}
}

// Resolve executes the given calls in order and returns one tool response
// per resolved call. A call whose name matches no handler is skipped
// silently; processing continues with any remaining calls.
func (r *ToolResolver) Resolve(calls []ToolCall) []ToolResponse {
	var responses []ToolResponse
	for _, call := range calls {
		handler, ok := r.handlers[call.Name]
		if !ok {
			r.logger.Debug("skipping unknown tool call", "tool", call.Name)
			continue
		}
		responses = append(responses, ToolResponse{
			Name:   call.Name,
			Result: handler(call.Args),
		})
	}
	return responses
}

func resolveGetMenuItems(args map[string]any) map[string]any {
	category, _ := args["category"].(string)
	items := MenuItems(category)
	result := map[string]any{"items": items}
	if items == nil {
		// Unknown category: empty result, plus the known categories so
		// the model can steer the user.
		result["items"] = []MenuItem{}
		result["categories"] = MenuCategories()
	}
	return map[string]any{"result": result}
}

func resolvePlaceOrder(args map[string]any) map[string]any {
	var items []OrderItem
	if raw, ok := args["items"].([]any); ok {
		for _, entry := range raw {
			fields, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			name, _ := fields["name"].(string)
			quantity := 0
			switch q := fields["quantity"].(type) {
			case float64:
				quantity = int(q)
			case int:
				quantity = q
			}
			items = append(items, OrderItem{Name: name, Quantity: quantity})
		}
	}
	address, _ := args["deliveryAddress"].(string)

	confirmation := PlaceOrder(items, address)
	return map[string]any{"result": map[string]any{
		"success": confirmation.Success,
		"orderId": confirmation.OrderID,
		"message": confirmation.Message,
	}}
}
