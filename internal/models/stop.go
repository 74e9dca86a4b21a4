package models

// Stop is a physical bus stop
type Stop struct {
	StopID        string   `json:"stopId"`
	Operator      Operator `json:"operator"`
	DisplayName   string   `json:"name"`
	DisplayNameEN string   `json:"nameEn,omitempty"`
	Latitude      float64  `json:"lat,omitempty"`
	Longitude     float64  `json:"lon,omitempty"`
}

// StopKey identifies a Stop. Stop IDs are only unique within an operator.
type StopKey struct {
	StopID   string
	Operator Operator
}

func (s Stop) Key() StopKey {
	return StopKey{StopID: s.StopID, Operator: s.Operator}
}

// RouteStopLink places a stop at a position along one direction of a route
type RouteStopLink struct {
	RouteCode      string    `json:"route"`
	Operator       Operator  `json:"operator"`
	ServiceVariant string    `json:"serviceVariant"`
	Direction      Direction `json:"direction"`
	Sequence       int       `json:"seq"`
	StopID         string    `json:"stopId"`
}

func (l RouteStopLink) StopKey() StopKey {
	return StopKey{StopID: l.StopID, Operator: l.Operator}
}
