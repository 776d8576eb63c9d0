package chat

import (
	"log/slog"
	"strings"
	"testing"
)

func TestMenuItems(t *testing.T) {
	t.Parallel()

	desserts := MenuItems("Desserts")
	if len(desserts) != 2 {
		t.Fatalf("desserts=%d, want 2", len(desserts))
	}
	if desserts[0].Name != "Tiramisu" || desserts[0].Price != 6.50 {
		t.Fatalf("desserts[0]=%+v", desserts[0])
	}

	if items := MenuItems("Sushi"); items != nil {
		t.Fatalf("unknown category returned %d items", len(items))
	}
}

func TestMenuCategories(t *testing.T) {
	t.Parallel()

	got := MenuCategories()
	want := []string{"Appetizers", "Desserts", "Main Courses"}
	if len(got) != len(want) {
		t.Fatalf("categories=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("categories=%v, want %v", got, want)
		}
	}
}

func TestPlaceOrder(t *testing.T) {
	t.Parallel()

	first := PlaceOrder([]OrderItem{{Name: "Tiramisu", Quantity: 2}}, "1 Main St")
	second := PlaceOrder(nil, "")

	if !first.Success {
		t.Fatalf("order not successful: %+v", first)
	}
	if !strings.HasPrefix(first.OrderID, "ORD-") {
		t.Fatalf("OrderID=%q, want ORD- prefix", first.OrderID)
	}
	if first.OrderID == second.OrderID {
		t.Fatalf("order IDs must be unique, both %q", first.OrderID)
	}
}

func TestToolResolverResolve(t *testing.T) {
	t.Parallel()

	r := NewToolResolver(slog.Default())
	responses := r.Resolve([]ToolCall{
		{Name: ToolGetMenuItems, Args: map[string]any{"category": "Appetizers"}},
		{Name: "fireMissiles", Args: nil},
		{Name: ToolPlaceOrder, Args: map[string]any{
			"items":           []any{map[string]any{"name": "Spring Rolls", "quantity": float64(2)}},
			"deliveryAddress": "1 Main St",
		}},
	})

	if len(responses) != 2 {
		t.Fatalf("responses=%d, want 2 (unknown call skipped)", len(responses))
	}
	if responses[0].Name != ToolGetMenuItems || responses[1].Name != ToolPlaceOrder {
		t.Fatalf("response names=%s,%s", responses[0].Name, responses[1].Name)
	}

	menu := responses[0].Result["result"].(map[string]any)
	items := menu["items"].([]MenuItem)
	if len(items) != 2 || items[0].Name != "Spring Rolls" {
		t.Fatalf("items=%+v", items)
	}

	order := responses[1].Result["result"].(map[string]any)
	if order["success"] != true {
		t.Fatalf("order result=%+v", order)
	}
	if id, _ := order["orderId"].(string); !strings.HasPrefix(id, "ORD-") {
		t.Fatalf("orderId=%q", id)
	}
}

func TestToolResolverUnknownCategory(t *testing.T) {
	t.Parallel()

	r := NewToolResolver(nil)
	responses := r.Resolve([]ToolCall{
		{Name: ToolGetMenuItems, Args: map[string]any{"category": "Beverages"}},
	})
	if len(responses) != 1 {
		t.Fatalf("responses=%d, want 1", len(responses))
	}

	result := responses[0].Result["result"].(map[string]any)
	items := result["items"].([]MenuItem)
	if len(items) != 0 {
		t.Fatalf("unknown category produced %d items", len(items))
	}
	categories := result["categories"].([]string)
	if len(categories) != 3 || categories[0] != "Appetizers" {
		t.Fatalf("categories hint=%v", categories)
	}
}
