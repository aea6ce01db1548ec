package mapper

import "strings"

// TypeFilter decides which transaction types are synced. Exclusions win
// over inclusions; an empty include list admits every type.
type TypeFilter struct {
	include map[string]bool
	exclude map[string]bool
}

// NewTypeFilter builds a filter. Type names compare case-insensitively.
func NewTypeFilter(include, exclude []string) *TypeFilter {
	return &TypeFilter{include: typeSet(include), exclude: typeSet(exclude)}
}

func typeSet(types []string) map[string]bool {
	if len(types) == 0 {
		return nil
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			set[t] = true
		}
	}
	return set
}

// Allows reports whether transactions of txnType should be synced.
// A nil filter allows everything.
func (f *TypeFilter) Allows(txnType string) bool {
	if f == nil {
		return true
	}
	t := strings.ToUpper(strings.TrimSpace(txnType))
	if f.exclude[t] {
		return false
	}
	if len(f.include) > 0 {
		return f.include[t]
	}
	return true
}
