package theme

import (
	"errors"
	"fmt"
)

var (
	// ErrBuilt is returned by Builder methods after Build succeeded.
	ErrBuilt = errors.New("theme: builder already built")
	// ErrNoOpenRule is returned when an instruction or EndRule has no rule to attach to.
	ErrNoOpenRule = errors.New("theme: no open rule")
	// ErrUnclosedRule is returned by Build while rules are still open.
	ErrUnclosedRule = errors.New("theme: unclosed rule")
	// ErrThemeDestroyed is returned by Retain after the last reference was released.
	ErrThemeDestroyed = errors.New("theme: destroyed")
)

// RuleError reports a malformed rule definition.
type RuleError struct {
	Field  string // "k", "v", "zoom", ...
	Value  string
	Reason string
}

func (e *RuleError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("theme: invalid rule %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("theme: invalid rule %s=%q: %s", e.Field, e.Value, e.Reason)
}
