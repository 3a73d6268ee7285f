package event

import "time"

const (
	// CommandsTopic carries dispatched voice commands to the screens that execute them.
	CommandsTopic = "voice.commands"
	// NotificationsTopic carries transient user-facing messages (toasts).
	NotificationsTopic = "voice.notifications"
	// NavigationTopic carries navigation requests pushed to the active screen.
	NavigationTopic = "voice.navigation"

	// EventCommandDispatched identifies a dispatched command payload.
	EventCommandDispatched = "voice.command.dispatched"
	// EventNotification identifies a user-facing notification payload.
	EventNotification = "voice.notification"
	// EventNavigationRequested identifies a navigation request payload.
	EventNavigationRequested = "voice.navigation.requested"
	// EventRecoveryPrompt identifies a pending incomplete-command prompt payload.
	EventRecoveryPrompt = "voice.recovery.prompt"
)

// MenuItemPayload is one line of an ordered item list.
type MenuItemPayload struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// CommandPayload is the denormalized command shape screens receive.
// Field presence depends on the command kind.
type CommandPayload struct {
	ID                string            `json:"id"`
	Kind              string            `json:"kind"`
	OriginalText      string            `json:"original_text"`
	TableNumber       string            `json:"table_number,omitempty"`
	TargetTableNumber string            `json:"target_table_number,omitempty"`
	MenuItems         []MenuItemPayload `json:"menu_items,omitempty"`
	PaymentMethod     string            `json:"payment_method,omitempty"`
	CustomerName      string            `json:"customer_name,omitempty"`
	CustomerPhone     string            `json:"customer_phone,omitempty"`
}

// CommandSignalEvent is published on CommandsTopic when a complete command is
// dispatched. Signal names the per-kind signal screens subscribe to.
type CommandSignalEvent struct {
	EventType    string         `json:"event_type"`
	Signal       string         `json:"signal"`
	RestaurantID string         `json:"restaurant_id"`
	Command      CommandPayload `json:"command"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// NotificationEvent is a transient toast-style message for the staff UI.
type NotificationEvent struct {
	EventType    string    `json:"event_type"`
	RestaurantID string    `json:"restaurant_id"`
	Level        string    `json:"level"`
	Message      string    `json:"message"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NavigationEvent asks the active screen to move to TargetRoute before a
// deferred command can be delivered.
type NavigationEvent struct {
	EventType    string    `json:"event_type"`
	RestaurantID string    `json:"restaurant_id"`
	TargetRoute  string    `json:"target_route"`
	Action       string    `json:"action"`
	TableNumber  string    `json:"table_number,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// RecoveryPromptEvent surfaces a stored incomplete command so the UI can
// offer dismiss or retry-by-voice.
type RecoveryPromptEvent struct {
	EventType     string    `json:"event_type"`
	RestaurantID  string    `json:"restaurant_id"`
	OriginalText  string    `json:"original_text"`
	MissingFields string    `json:"missing_fields"`
	CreatedAt     time.Time `json:"created_at"`
	OccurredAt    time.Time `json:"occurred_at"`
}
