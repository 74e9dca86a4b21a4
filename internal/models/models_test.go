package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input    string
		expected Direction
		wantErr  bool
	}{
		{"outbound", Outbound, false},
		{"Inbound", Inbound, false},
		{" inbound ", Inbound, false},
		{"O", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDirection(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDirection(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.expected {
			t.Errorf("ParseDirection(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestDirectionJSON(t *testing.T) {
	b, err := json.Marshal(struct{ D Direction }{Inbound})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"D":"inbound"}` {
		t.Errorf("Marshal = %s", b)
	}
}

func TestParseOperator(t *testing.T) {
	if op, err := ParseOperator("ctb"); err != nil || op != OperatorCTB {
		t.Errorf("ParseOperator(ctb) = %q, %v", op, err)
	}
	if _, err := ParseOperator("NWFB"); err == nil {
		t.Error("ParseOperator(NWFB) should fail")
	}
}

func TestRouteSpecial(t *testing.T) {
	if (Route{ServiceVariant: "1"}).Special() {
		t.Error("variant 1 should be regular")
	}
	if !(Route{ServiceVariant: "2"}).Special() {
		t.Error("variant 2 should be special")
	}
}

func TestUpcoming(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	entries := []EtaEntry{
		{Sequence: 1, Arrival: now.Add(7 * time.Minute)},
		{Sequence: 2, Arrival: now.Add(-time.Minute)},
		{Sequence: 3, Arrival: now.Add(2 * time.Minute)},
		{Sequence: 4, Arrival: now},
	}

	got := Upcoming(entries, now)
	if len(got) != 3 {
		t.Fatalf("Upcoming returned %d entries, expected 3", len(got))
	}
	order := []int{got[0].Sequence, got[1].Sequence, got[2].Sequence}
	if order[0] != 4 || order[1] != 3 || order[2] != 1 {
		t.Errorf("order = %v, expected [4 3 1]", order)
	}
	if entries[0].Sequence != 1 {
		t.Error("input slice was reordered")
	}
}

func TestMinutesUntil(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		offset   time.Duration
		expected int
	}{
		{-time.Minute, 0},
		{30 * time.Second, 0},
		{time.Minute, 1},
		{5*time.Minute + 59*time.Second, 5},
	}
	for _, tt := range tests {
		e := EtaEntry{Arrival: now.Add(tt.offset)}
		if got := e.MinutesUntil(now); got != tt.expected {
			t.Errorf("MinutesUntil(%v) = %d, expected %d", tt.offset, got, tt.expected)
		}
	}
}

func TestFilterDirection(t *testing.T) {
	entries := []EtaEntry{{Direction: Outbound}, {Direction: Inbound}, {Direction: Outbound}}
	if got := FilterDirection(entries, Outbound); len(got) != 2 {
		t.Errorf("FilterDirection(outbound) = %d entries, expected 2", len(got))
	}
}
