package models

import (
	"math"
	"sort"
	"time"
)

// EtaEntry is one predicted arrival of a route at a stop
type EtaEntry struct {
	StopID         string    `json:"stopId"`
	Operator       Operator  `json:"operator"`
	RouteCode      string    `json:"route"`
	ServiceVariant string    `json:"serviceVariant,omitempty"`
	Direction      Direction `json:"direction"`
	Sequence       int       `json:"etaSeq"`
	Arrival        time.Time `json:"arrival"`
	Destination    string    `json:"destination,omitempty"`
	DestinationEN  string    `json:"destinationEn,omitempty"`
	Remark         string    `json:"remark,omitempty"`
}

// MinutesUntil returns whole minutes until arrival, never negative
func (e EtaEntry) MinutesUntil(now time.Time) int {
	d := e.Arrival.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Floor(d.Minutes()))
}

// FilterDirection keeps entries travelling in d
func FilterDirection(entries []EtaEntry, d Direction) []EtaEntry {
	out := make([]EtaEntry, 0, len(entries))
	for _, e := range entries {
		if e.Direction == d {
			out = append(out, e)
		}
	}
	return out
}

// Upcoming returns entries arriving at or after now, in arrival order.
// The input slice is not modified.
func Upcoming(entries []EtaEntry, now time.Time) []EtaEntry {
	out := make([]EtaEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Arrival.Before(now) {
			out = append(out, e)
		}
	}
	SortByArrival(out)
	return out
}

// SortByArrival orders entries by ascending arrival time
func SortByArrival(entries []EtaEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Arrival.Before(entries[j].Arrival)
	})
}
