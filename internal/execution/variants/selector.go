// Package variants selects which flow node variants a plan covers.
package variants

import (
	"strings"

	"github.com/animus-labs/flowlab/internal/domain"
)

// Mode is the selection strategy of a Selector.
type Mode int

const (
	ModeDefaultsOnly Mode = iota + 1
	ModeAll
	ModeCustom
)

func (m Mode) String() string {
	switch m {
	case ModeDefaultsOnly:
		return "defaults"
	case ModeAll:
		return "all"
	case ModeCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Selector decides whether a (node, variant) pair is planned.
type Selector struct {
	mode   Mode
	tokens []string
}

func All() Selector { return Selector{mode: ModeAll} }

func DefaultsOnly() Selector { return Selector{mode: ModeDefaultsOnly} }

// Custom selects pairs matching any token, given either as "variant" or
// "node.variant".
func Custom(tokens ...string) Selector {
	cleaned := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token != "" {
			cleaned = append(cleaned, token)
		}
	}
	return Selector{mode: ModeCustom, tokens: cleaned}
}

// Parse reads the command line form: "*" or "all", "default" or
// "defaults", otherwise a comma separated token list. Keywords are case
// insensitive; custom tokens are kept as written.
func Parse(s string) Selector {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "*", "all":
		return All()
	case "default", "defaults":
		return DefaultsOnly()
	}
	return Custom(strings.Split(s, ",")...)
}

func (s Selector) Mode() Mode {
	if s.mode == 0 {
		return ModeAll
	}
	return s.mode
}

// DefaultsOnly reports whether only default variants are planned.
func (s Selector) DefaultsOnly() bool {
	return s.Mode() == ModeDefaultsOnly
}

// Tokens returns the custom tokens.
func (s Selector) Tokens() []string {
	return append([]string(nil), s.tokens...)
}

// Enabled reports whether variant of node is selected.
func (s Selector) Enabled(node, variant string) bool {
	if s.Mode() != ModeCustom {
		return true
	}
	qualified := node + "." + variant
	for _, token := range s.tokens {
		if token == variant || token == qualified {
			return true
		}
	}
	return false
}

// Unmatched returns the custom tokens that select no variant of detail.
func (s Selector) Unmatched(detail domain.FlowVariantMap) []string {
	if s.Mode() != ModeCustom {
		return nil
	}
	var out []string
	for _, token := range s.tokens {
		matched := false
		for _, pair := range detail.Pairs() {
			if token == pair.Variant || token == pair.Node+"."+pair.Variant {
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, token)
		}
	}
	return out
}

func (s Selector) String() string {
	if s.Mode() == ModeCustom {
		return strings.Join(s.tokens, ",")
	}
	return s.Mode().String()
}
