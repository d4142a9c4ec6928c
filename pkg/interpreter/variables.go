package interpreter

import "regexp"

// placeholderPattern matches {name}. Names may use letters and digits of any
// script, underscores and the whole Malayalam block, which also covers the
// vowel signs that are not letters on their own.
var placeholderPattern = regexp.MustCompile(`\{([\p{L}\p{N}_\x{0D00}-\x{0D7F}]+)\}`)

// Variables is the string-only variable store of a single run.
type Variables struct {
	values map[string]string
}

// NewVariables returns an empty store.
func NewVariables() *Variables {
	return &Variables{values: make(map[string]string)}
}

// Set overwrites name unconditionally.
func (v *Variables) Set(name, value string) {
	v.values[name] = value
}

// Get returns the value of name and whether it was set.
func (v *Variables) Get(name string) (string, bool) {
	value, ok := v.values[name]
	return value, ok
}

// Len returns the number of stored variables.
func (v *Variables) Len() int {
	return len(v.values)
}

// Substitute replaces every {name} whose name is set. Unknown placeholders are
// kept as written, and substituted values are not scanned again.
func (v *Variables) Substitute(text string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := v.values[name]; ok {
			return value
		}
		return match
	})
}
