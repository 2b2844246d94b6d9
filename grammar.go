// Package textmate tokenizes source lines using TextMate grammars, the
// pattern family used by VS Code and Sublime Text to drive syntax
// highlighting.
//
// Workflow:
//  1. Ingest a *.tmLanguage.json/.plist document into a GrammarJSON, then
//     compile it into an immutable Grammar (load.go).
//  2. Feed (grammar, stack, line) triples through TokenizeLine (tokenize.go);
//     thread the returned stack into the next line.
//  3. Hand the returned Tokens to a renderer via Spans (span.go).
package textmate

import "github.com/textmate-go/textmate/regexp"

// Operation controls what happens to the parse stack when a rule's pattern
// matches at the current position.
type Operation int

const (
	// OperationNOP is the zero value: a plain Match rule, nothing pushed.
	OperationNOP Operation = iota
	// OperationExpand tries each child rule in order; nothing is pushed.
	OperationExpand
	// OperationPush opens a begin/end (or begin/while) region.
	OperationPush
	// OperationPop closes the region the end-pattern belongs to.
	OperationPop
)

// DelimKind distinguishes the two ways a pushed region can close.
type DelimKind int

const (
	// DelimEnd closes when its end pattern matches anywhere on the line.
	DelimEnd DelimKind = iota
	// DelimWhile only continues for as long as its pattern matches on each
	// subsequent line, tried first at the line's current start position and
	// then at each later position; it never closes mid-line.
	DelimWhile
)

// IncludeKind distinguishes the four include directive shapes.
type IncludeKind int

const (
	IncludeNone IncludeKind = iota
	// IncludeSelf splices the root patterns of the grammar this rule was
	// declared in ($self).
	IncludeSelf
	// IncludeBase splices the root patterns of the outermost grammar the
	// current tokenize call started with ($base).
	IncludeBase
	// IncludeLocal resolves a #key against the active repository chain.
	IncludeLocal
	// IncludeScope resolves an external scope name (e.g. source.js)
	// through the registry.
	IncludeScope
)

// MatchRule is a single compiled, executable pattern. A MatchRule is one of:
//
//   - a Match rule (Pattern != nil, Operation == OperationNOP)
//   - a Delim rule (Pattern is the begin regex, Operation == OperationPush,
//     Rules[0] is the synthesized end/while OperationPop rule, Rules[1:]
//     are the child patterns active while the region is open)
//   - an Include rule (IncludeKind != IncludeNone)
//   - a container (Operation == OperationExpand, no Pattern, no IncludeKind)
//
// Capture entries reuse MatchRule itself: a capture carries only a scope
// name in Name; captured spans are not tokenized recursively.
type MatchRule struct {
	Name          string
	ContentName   string
	Pattern       *regexp.Regexp
	EndSource     string // raw, unparsed end/while source; may hold \1..\9
	Captures      []*MatchRule
	EndCaptures   []*MatchRule
	Rules         []*MatchRule
	Operation     Operation
	DelimKind     DelimKind
	ApplyEndLast  bool
	IncludeKind   IncludeKind
	IncludeTarget string // repository key or external scope name
	// Repository holds patterns privately scoped to this rule and its
	// descendants; include_local consults it before any outer repository.
	Repository map[string]*MatchRule
}

// Grammar is an immutable, fully compiled TextMate grammar.
type Grammar struct {
	ScopeName  string
	FileTypes  []string
	Repository map[string]*MatchRule
	Root       *MatchRule // Operation == OperationExpand, Rules == top-level patterns
}
