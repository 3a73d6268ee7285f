package voice

import (
	"testing"

	"github.com/google/uuid"
)

func TestRouteBuilders(t *testing.T) {
	rid := uuid.MustParse("550e8400-e29b-41d4-a716-446655440030")

	if got, want := TablesOverviewRoute(rid), "/restaurants/"+rid.String()+"/tables"; got != want {
		t.Errorf("TablesOverviewRoute() = %q, want %q", got, want)
	}
	if got, want := TableOrderRoute(rid, "4"), "/restaurants/"+rid.String()+"/tables/4/order"; got != want {
		t.Errorf("TableOrderRoute() = %q, want %q", got, want)
	}
}

func TestRouteMatches(t *testing.T) {
	rid := uuid.MustParse("550e8400-e29b-41d4-a716-446655440030")
	overview := TablesOverviewRoute(rid)
	tableOrder := TableOrderRoute(rid, "4")

	tests := []struct {
		name   string
		active string
		target string
		want   bool
	}{
		{name: "exactMatch", active: overview, target: overview, want: true},
		{name: "tableScreenUnderOverview", active: tableOrder, target: overview, want: true},
		{name: "overviewDoesNotSatisfyTableScreen", active: overview, target: tableOrder, want: false},
		{name: "differentTable", active: TableOrderRoute(rid, "7"), target: tableOrder, want: false},
		{name: "unrelatedRoute", active: "/restaurants/" + rid.String() + "/menu", target: overview, want: false},
		{name: "emptyActive", active: "", target: overview, want: false},
		{name: "prefixWithoutSeparator", active: overview + "extra", target: overview, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RouteMatches(tt.active, tt.target); got != tt.want {
				t.Errorf("RouteMatches(%q, %q) = %v, want %v", tt.active, tt.target, got, tt.want)
			}
		})
	}
}
