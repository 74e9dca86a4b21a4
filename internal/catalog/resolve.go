package catalog

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/pannnnl/hkbus-eta/internal/models"
)

var (
	// ErrInvalidQuery is returned for input that cannot be a route code
	ErrInvalidQuery = errors.New("route number may only contain letters and digits")

	routeCodePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// NormalizeQuery trims the input, removes all whitespace and upper-cases it
func NormalizeQuery(input string) (string, error) {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, input)
	if !routeCodePattern.MatchString(stripped) {
		return "", ErrInvalidQuery
	}
	return strings.ToUpper(stripped), nil
}

// Resolve returns every route whose code equals the normalized input,
// across operators, directions and service variants, in catalog order.
// An empty result with nil error means no route matched.
func (c *Catalog) Resolve(input string) ([]models.Route, error) {
	code, err := NormalizeQuery(input)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.state {
	case StateLoading:
		return nil, ErrLoading
	case StateFailed:
		return nil, ErrUnavailable
	}

	var matches []models.Route
	for _, r := range c.routes {
		if r.MatchesCode(code) {
			matches = append(matches, r)
		}
	}
	return matches, nil
}
