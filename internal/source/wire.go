package source

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Int decodes a JSON number or a numeric string
type Int int

func (n *Int) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", b, err)
	}
	*n = Int(v)
	return nil
}

// Float decodes a JSON number or a numeric string
type Float float64

func (f *Float) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", b, err)
	}
	*f = Float(v)
	return nil
}

// Envelope is the {"data": ...} wrapper both operators respond with
type Envelope[T any] struct {
	Type      string `json:"type,omitempty"`
	Version   string `json:"version,omitempty"`
	Generated string `json:"generated_timestamp,omitempty"`
	Data      T      `json:"data"`
}

// ParseTime parses an ETA timestamp. Empty or null values yield ok=false.
func ParseTime(s *string) (time.Time, bool) {
	if s == nil || *s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
