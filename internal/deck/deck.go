// internal/deck/deck.go
package deck

import "strings"

// Deck type identifiers accepted by room creation.
const (
	TypeFibonacci = "fibonacci"
	TypeNumeric   = "numeric"
	TypeCustom    = "custom"
)

// FallbackValue is the single card a deck falls back to when a custom deck
// resolves to nothing usable. A deck must never be empty.
const FallbackValue = "?"

var presets = map[string][]string{
	TypeFibonacci: {"0", "1", "2", "3", "5", "8", "13", "21", "34", "55", "89", "?", "☕"},
	TypeNumeric:   {"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"},
}

// Resolve returns the card values for a deck type. Unknown types are treated
// as custom, parsed from the user-supplied raw string.
func Resolve(deckType, custom string) []string {
	if vals, ok := presets[deckType]; ok {
		return append([]string(nil), vals...)
	}
	return ParseCustom(custom)
}

// ParseCustom splits a user-supplied card list on commas and line breaks,
// trims each entry, and drops empties and duplicates while preserving order.
// An input with no usable entries yields the single fallback card.
func ParseCustom(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	seen := make(map[string]bool, len(fields))
	values := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		values = append(values, f)
	}
	if len(values) == 0 {
		return []string{FallbackValue}
	}
	return values
}
