package dispatch

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"pending to packing", StatusPending, StatusPacking, true},
		{"packing to packed", StatusPacking, StatusPacked, true},
		{"packed to dispatched", StatusPacked, StatusDispatched, true},
		{"dispatched to received", StatusDispatched, StatusReceived, true},
		{"skip a step", StatusPending, StatusPacked, false},
		{"backwards", StatusPacked, StatusPacking, false},
		{"same status", StatusPacking, StatusPacking, false},
		{"raise issue while pending", StatusPending, StatusIssue, true},
		{"raise issue while dispatched", StatusDispatched, StatusIssue, true},
		{"received is terminal", StatusReceived, StatusIssue, false},
		{"issue only leaves through resolve", StatusIssue, StatusPacking, false},
		{"unknown source", Status("lost"), StatusPacking, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range AllStatuses() {
		got, ok := ParseStatus(string(s))
		if !ok || got != s {
			t.Errorf("ParseStatus(%q) = %q, %v", s, got, ok)
		}
	}
	if _, ok := ParseStatus("shipped"); ok {
		t.Error("ParseStatus(\"shipped\") should fail")
	}
}

func TestStatusRank(t *testing.T) {
	if StatusPending.Rank() != 0 || StatusReceived.Rank() != 4 {
		t.Errorf("unexpected ranks: pending=%d received=%d", StatusPending.Rank(), StatusReceived.Rank())
	}
	if StatusIssue.Rank() != -1 {
		t.Errorf("issue rank = %d, want -1", StatusIssue.Rank())
	}
	if !StatusReceived.IsTerminal() || StatusIssue.IsTerminal() {
		t.Error("only received should be terminal")
	}
	if InitialStatus() != StatusPending {
		t.Errorf("InitialStatus() = %q", InitialStatus())
	}
}
