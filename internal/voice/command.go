package voice

import (
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"

	"github.com/tablevox/tablevox/pkg/enums/commandkind"
)

// MenuItemRef is one requested line on an order command.
type MenuItemRef struct {
	Name     string `json:"name" bson:"name"`
	Quantity int    `json:"quantity" bson:"quantity"`
}

// Command is the typed representation of one spoken intent. A command with
// IsIncomplete set cannot be executed and must go through the merge flow or
// be dismissed.
type Command struct {
	ID                uuid.UUID     `json:"id" bson:"id"`
	RestaurantID      uuid.UUID     `json:"restaurant_id" bson:"restaurant_id"`
	Kind              string        `json:"kind" bson:"kind"`
	OriginalText      string        `json:"original_text" bson:"original_text"`
	IsIncomplete      bool          `json:"is_incomplete" bson:"is_incomplete"`
	MissingFields     string        `json:"missing_fields,omitempty" bson:"missing_fields,omitempty"`
	TableNumber       string        `json:"table_number,omitempty" bson:"table_number,omitempty"`
	TargetTableNumber string        `json:"target_table_number,omitempty" bson:"target_table_number,omitempty"`
	MenuItems         []MenuItemRef `json:"menu_items,omitempty" bson:"menu_items,omitempty"`
	PaymentMethod     string        `json:"payment_method,omitempty" bson:"payment_method,omitempty"`
	CustomerName      string        `json:"customer_name,omitempty" bson:"customer_name,omitempty"`
	CustomerPhone     string        `json:"customer_phone,omitempty" bson:"customer_phone,omitempty"`
	CreatedAt         time.Time     `json:"created_at" bson:"created_at"`
}

func NewCommand(restaurantID uuid.UUID, kind string, originalText string) *Command {
	return &Command{
		ID:           aqm.GenerateNewID(),
		RestaurantID: restaurantID,
		Kind:         kind,
		OriginalText: originalText,
		CreatedAt:    time.Now(),
	}
}

func (c *Command) EnsureID() {
	if c.ID == uuid.Nil {
		c.ID = aqm.GenerateNewID()
	}
}

// Clone returns a shallow copy with its own menu item slice, so a coerced or
// merged command never aliases the original's items.
func (c *Command) Clone() *Command {
	clone := *c
	if c.MenuItems != nil {
		clone.MenuItems = make([]MenuItemRef, len(c.MenuItems))
		copy(clone.MenuItems, c.MenuItems)
	}
	return &clone
}

// ValidateCommand returns the minimal-field errors for the command's kind.
// An empty slice means the command can be executed. Each execution branch
// calls this rather than trusting IsIncomplete.
func ValidateCommand(c *Command) []string {
	var errors []string

	switch c.Kind {
	case commandkind.Kinds.Order.Name:
		if c.TableNumber == "" {
			errors = append(errors, "table number is required")
		}
		if len(c.MenuItems) == 0 {
			errors = append(errors, "at least one menu item is required")
		}
	case commandkind.Kinds.PlaceOrder.Name,
		commandkind.Kinds.Payment.Name,
		commandkind.Kinds.KOTPrint.Name,
		commandkind.Kinds.OrderCancel.Name,
		commandkind.Kinds.TableStatus.Name:
		if c.TableNumber == "" {
			errors = append(errors, "table number is required")
		}
	case commandkind.Kinds.TableMerge.Name, commandkind.Kinds.TableTransfer.Name:
		if c.TableNumber == "" {
			errors = append(errors, "table number is required")
		}
		if c.TargetTableNumber == "" {
			errors = append(errors, "target table number is required")
		}
	case commandkind.Kinds.Customer.Name:
		if c.CustomerName == "" && c.CustomerPhone == "" {
			errors = append(errors, "customer name or phone is required")
		}
	case commandkind.Kinds.MenuInquiry.Name:
		// No required fields.
	default:
		errors = append(errors, "unrecognized command")
	}

	return errors
}
