package voice

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Screen routes the dispatcher gates on. Orders are placed from a dedicated
// per-table screen; payment, KOT printing and cancellation happen from the
// tables overview.
func TableOrderRoute(restaurantID uuid.UUID, tableNumber string) string {
	return fmt.Sprintf("/restaurants/%s/tables/%s/order", restaurantID, tableNumber)
}

func TablesOverviewRoute(restaurantID uuid.UUID) string {
	return fmt.Sprintf("/restaurants/%s/tables", restaurantID)
}

// RouteMatches reports whether the active route satisfies the target: an
// exact match, or any route under the target (the overview counts as reached
// from any of its subscreens).
func RouteMatches(active, target string) bool {
	if active == "" || target == "" {
		return false
	}
	active = strings.TrimSuffix(active, "/")
	target = strings.TrimSuffix(target, "/")
	return active == target || strings.HasPrefix(active, target+"/")
}
