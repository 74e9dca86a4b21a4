package models

import (
	"fmt"
	"strings"
)

// DefaultServiceVariant is assigned to routes whose operator has no service variants
const DefaultServiceVariant = "1"

// Route is one directional service of a route code
type Route struct {
	Code              string    `json:"route"`
	Operator          Operator  `json:"operator"`
	ServiceVariant    string    `json:"serviceVariant"`
	Direction         Direction `json:"direction"`
	OriginName        string    `json:"origin"`
	DestinationName   string    `json:"destination"`
	OriginNameEN      string    `json:"originEn,omitempty"`
	DestinationNameEN string    `json:"destinationEn,omitempty"`
}

// RouteKey uniquely identifies a Route in the catalog
type RouteKey struct {
	Code           string
	Operator       Operator
	ServiceVariant string
	Direction      Direction
}

func (k RouteKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", k.Operator, k.Code, k.ServiceVariant, k.Direction)
}

func (r Route) Key() RouteKey {
	return RouteKey{Code: r.Code, Operator: r.Operator, ServiceVariant: r.ServiceVariant, Direction: r.Direction}
}

// Special reports whether the route runs a non-default service variant
func (r Route) Special() bool {
	return r.ServiceVariant != DefaultServiceVariant
}

// MatchesCode compares a normalized query against the route code ignoring case
func (r Route) MatchesCode(code string) bool {
	return strings.EqualFold(r.Code, code)
}
