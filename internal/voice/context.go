package voice

import (
	"time"

	"github.com/google/uuid"
)

// IncompleteContext is the suspended state of a partially specified command.
// At most one exists per restaurant; a newer incomplete command overwrites it.
type IncompleteContext struct {
	RestaurantID  uuid.UUID `json:"restaurant_id" bson:"_id"`
	Command       *Command  `json:"command" bson:"command"`
	MissingFields string    `json:"missing_fields" bson:"missing_fields"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

func NewIncompleteContext(cmd *Command) *IncompleteContext {
	return &IncompleteContext{
		RestaurantID:  cmd.RestaurantID,
		Command:       cmd,
		MissingFields: cmd.MissingFields,
		CreatedAt:     time.Now(),
	}
}

// PendingCommand is a complete command whose delivery waits on the screen
// reaching TargetRoute. It stays pending until the route is reached or a
// newer deferred command supersedes it.
type PendingCommand struct {
	Command     *Command  `json:"command"`
	TargetRoute string    `json:"target_route"`
	Action      string    `json:"action"`
	StoredAt    time.Time `json:"stored_at"`
}
