package models

import (
	"fmt"
	"strings"
)

// Operator identifies a bus company
type Operator string

const (
	OperatorKMB Operator = "KMB"
	OperatorCTB Operator = "CTB"
)

// ParseOperator accepts an operator tag in any letter case
func ParseOperator(s string) (Operator, error) {
	switch Operator(strings.ToUpper(strings.TrimSpace(s))) {
	case OperatorKMB:
		return OperatorKMB, nil
	case OperatorCTB:
		return OperatorCTB, nil
	}
	return "", fmt.Errorf("unknown operator %q", s)
}

// Direction is the travel direction of a route. Operator wire codes are
// translated at the source adapter boundary and never stored here.
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

func (d Direction) String() string {
	if d == Inbound {
		return "inbound"
	}
	return "outbound"
}

// Opposite returns the reverse direction
func (d Direction) Opposite() Direction {
	if d == Inbound {
		return Outbound
	}
	return Inbound
}

// ParseDirection parses the lower-case direction name
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "outbound":
		return Outbound, nil
	case "inbound":
		return Inbound, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	parsed, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
