package textmate

import (
	"errors"
	"fmt"

	"github.com/textmate-go/textmate/regexp"
)

// ErrUnknownRepositoryKey is returned when an include_local (#key) cannot
// be resolved through the active repository chain (§7). It is fatal to the
// tokenize call that triggered it.
var ErrUnknownRepositoryKey = errors.New("unknown repository key")

// ScopeResolver looks up a grammar by its root scopeName, used to resolve
// cross-grammar include_scope directives (§4.2, §6). A nil resolver makes
// every include_scope a silent RegistryMiss.
type ScopeResolver interface {
	Lookup(scopeName string) (*Grammar, bool)
}

// Stack is the tokenizer's open-region stack, innermost region first.
type Stack []*stackElement

// stackElement is one open begin/end or begin/while region (§3).
type stackElement struct {
	rule       *MatchRule // the Operation==OperationPush rule that opened this region
	beginMatch []regexp.Range
	beginLine  string
	endRegex   *regexp.Regexp // lazily compiled, memoized across lines
	reposChain []map[string]*MatchRule
	grammar    *Grammar // grammar active when this region was entered
	scopes     []string // interior scope list
	prevScopes []string // outer scope list, one level shallower
}

func (rule *MatchRule) childPatterns() []*MatchRule {
	if len(rule.Rules) <= 1 {
		return nil
	}
	return rule.Rules[1:]
}

// tokenizerState carries the mutable state of a single TokenizeLine call.
type tokenizerState struct {
	base     *Grammar
	resolver ScopeResolver
	line     string
	stack    Stack
	pos      int
	prevEnd  int
	tokens   []Token
}

func (st *tokenizerState) emit(t Token) {
	st.tokens = append(st.tokens, t)
}

// flushGapTo emits a token covering [prevEnd, to) tagged with scopes, if
// that span is non-empty.
func (st *tokenizerState) flushGapTo(to int, scopes []string) {
	if to > st.prevEnd {
		st.emit(Token{Ending: to, Scopes: scopes})
		st.prevEnd = to
	}
}

// frame computes (scopes, patterns, repos, grammar) for the current
// position from the stack top, or the grammar's own defaults if the stack
// is empty (§4.6 step 1).
func (st *tokenizerState) frame() ([]string, []*MatchRule, []map[string]*MatchRule, *Grammar) {
	if len(st.stack) == 0 {
		return []string{st.base.ScopeName}, st.base.Root.Rules, []map[string]*MatchRule{st.base.Repository}, st.base
	}
	top := st.stack[0]
	return top.scopes, top.rule.childPatterns(), top.reposChain, top.grammar
}

// topEnd returns the stack top if it is an End-kind region, else nil.
// While-kind regions are never closed mid-line (§4.6 step 2, §4.7).
func (st *tokenizerState) topEnd() *stackElement {
	if len(st.stack) == 0 {
		return nil
	}
	top := st.stack[0]
	if top.rule.DelimKind != DelimEnd {
		return nil
	}
	return top
}

func (st *tokenizerState) endRegexFor(e *stackElement) (*regexp.Regexp, error) {
	if e.endRegex != nil {
		return e.endRegex, nil
	}
	re, err := compileEndRegex(e.rule.EndSource, e.beginLine, e.beginMatch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", regexp.ErrRegexpSyntax, err)
	}
	e.endRegex = re
	return re, nil
}

// tryClose attempts to close the stack top at st.pos (§4.6 step 2).
func (st *tokenizerState) tryClose() (bool, error) {
	top := st.stack[0]
	re, err := st.endRegexFor(top)
	if err != nil {
		return false, err
	}
	groups, ok, err := re.Exec(st.line, st.pos)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	matEnd := groups[0].End
	st.flushGapTo(st.pos, top.scopes)
	markerScopes := addScopes(top.prevScopes, top.rule.Name)
	resolveCaptures(groups, top.rule.EndCaptures, st.pos, matEnd, markerScopes, "", st.emit)
	st.emit(Token{Ending: matEnd, Scopes: markerScopes})
	st.prevEnd = matEnd
	st.pos = matEnd
	st.stack = st.stack[1:]
	return true, nil
}

// processWhilePrefixes runs §4.7: before main tokenization, re-validate
// every open While region's continuation at the start of the new line,
// outermost first. A region that fails to continue is popped, along with
// everything pushed inside it (those regions cannot outlive their
// enclosing while).
func (st *tokenizerState) processWhilePrefixes() error {
	s := st.stack
	for i := len(s) - 1; i >= 0; i-- {
		elem := s[i]
		if elem.rule.DelimKind != DelimWhile {
			continue
		}
		re, err := st.endRegexFor(elem)
		if err != nil {
			return err
		}

		matched := false
		for p := st.pos; p <= len(st.line); p++ {
			groups, ok, err := re.Exec(st.line, p)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			matEnd := groups[0].End
			st.flushGapTo(p, elem.scopes)
			markerScopes := addScopes(elem.prevScopes, elem.rule.Name)
			resolveCaptures(groups, elem.rule.EndCaptures, p, matEnd, markerScopes, "", st.emit)
			st.emit(Token{Ending: matEnd, Scopes: markerScopes})
			st.prevEnd = matEnd
			st.pos = matEnd
			matched = true
			break
		}
		if !matched {
			st.stack = s[i+1:]
			return nil
		}
	}
	return nil
}

// splicePatterns returns the pattern list an include directive resolves
// to: a container's children if the target is a bare container, or the
// target itself as a one-element list otherwise.
func splicePatterns(target *MatchRule) []*MatchRule {
	if target.Operation == OperationExpand && target.Pattern == nil && target.IncludeKind == IncludeNone {
		return target.Rules
	}
	return []*MatchRule{target}
}

func prependRepo(repos []map[string]*MatchRule, r map[string]*MatchRule) []map[string]*MatchRule {
	if r == nil {
		return repos
	}
	merged := make([]map[string]*MatchRule, 0, len(repos)+1)
	merged = append(merged, r)
	merged = append(merged, repos...)
	return merged
}

// searchFrame is one frame of the explicit include-splicing work stack
// (§9): "patterns remaining, repos, grammar" rather than deep recursion.
type searchFrame struct {
	patterns []*MatchRule
	idx      int
	repos    []map[string]*MatchRule
	grammar  *Grammar
}

// tryPatterns walks patterns (and anything they include) in order,
// returning as soon as the first anchored match succeeds at st.pos,
// regardless of match length (§4.6 step 3).
func (st *tokenizerState) tryPatterns(patterns []*MatchRule, repos []map[string]*MatchRule, grammar *Grammar, outerScopes []string) (bool, error) {
	frames := []searchFrame{{patterns: patterns, repos: repos, grammar: grammar}}

	for len(frames) > 0 {
		top := &frames[len(frames)-1]
		if top.idx >= len(top.patterns) {
			frames = frames[:len(frames)-1]
			continue
		}
		rule := top.patterns[top.idx]
		top.idx++

		if rule.IncludeKind != IncludeNone {
			switch rule.IncludeKind {
			case IncludeSelf:
				frames = append(frames, searchFrame{patterns: top.grammar.Root.Rules, repos: top.repos, grammar: top.grammar})
			case IncludeBase:
				frames = append(frames, searchFrame{patterns: st.base.Root.Rules, repos: []map[string]*MatchRule{st.base.Repository}, grammar: st.base})
			case IncludeLocal:
				var target *MatchRule
				found := false
				for _, r := range top.repos {
					if t, ok := r[rule.IncludeTarget]; ok {
						target, found = t, true
						break
					}
				}
				if !found {
					return false, fmt.Errorf("%w: #%s", ErrUnknownRepositoryKey, rule.IncludeTarget)
				}
				frames = append(frames, searchFrame{
					patterns: splicePatterns(target),
					repos:    prependRepo(top.repos, target.Repository),
					grammar:  top.grammar,
				})
			case IncludeScope:
				if st.resolver == nil {
					continue // RegistryMiss: not an error, try the next pattern
				}
				other, ok := st.resolver.Lookup(rule.IncludeTarget)
				if !ok {
					continue // RegistryMiss
				}
				frames = append(frames, searchFrame{patterns: other.Root.Rules, repos: []map[string]*MatchRule{other.Repository}, grammar: other})
			}
			continue
		}

		if rule.Operation == OperationExpand {
			frames = append(frames, searchFrame{
				patterns: rule.Rules,
				repos:    prependRepo(top.repos, rule.Repository),
				grammar:  top.grammar,
			})
			continue
		}

		if rule.Pattern == nil {
			continue
		}

		groups, ok, err := rule.Pattern.Exec(st.line, st.pos)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}

		if rule.Operation == OperationPush {
			st.openRegion(rule, groups, top.repos, top.grammar, outerScopes)
		} else {
			st.applyMatch(rule, groups, outerScopes)
		}
		return true, nil
	}

	return false, nil
}

// applyMatch handles a successful Match rule (§4.6 step 3, Match rule).
func (st *tokenizerState) applyMatch(rule *MatchRule, groups []regexp.Range, outerScopes []string) {
	matEnd := groups[0].End
	st.flushGapTo(st.pos, outerScopes)
	resolveCaptures(groups, rule.Captures, st.pos, matEnd, outerScopes, rule.Name, st.emit)
	st.emit(Token{Ending: matEnd, Scopes: addScopes(outerScopes, rule.Name)})
	st.prevEnd = matEnd
	if matEnd > st.pos {
		st.pos = matEnd
	} else {
		st.pos++ // guarantee forward progress on a zero-width match
	}
}

// openRegion handles a successful Delim rule begin-match (§4.6 step 3,
// Delim rule).
func (st *tokenizerState) openRegion(rule *MatchRule, groups []regexp.Range, parentRepos []map[string]*MatchRule, parentGrammar *Grammar, outerScopes []string) {
	matEnd := groups[0].End
	st.flushGapTo(st.pos, outerScopes)
	markerScopes := addScopes(outerScopes, rule.Name)
	resolveCaptures(groups, rule.Captures, st.pos, matEnd, markerScopes, "", st.emit)
	st.emit(Token{Ending: matEnd, Scopes: markerScopes})
	st.prevEnd = matEnd

	interiorScopes := markerScopes
	if rule.ContentName != "" {
		interiorScopes = addScopes(markerScopes, rule.ContentName)
	}

	elem := &stackElement{
		rule:       rule,
		beginMatch: groups,
		beginLine:  st.line,
		reposChain: prependRepo(parentRepos, rule.Repository),
		grammar:    parentGrammar,
		scopes:     interiorScopes,
		prevScopes: outerScopes,
	}
	st.stack = append(Stack{elem}, st.stack...)

	if rule.DelimKind == DelimWhile {
		st.flushGapTo(len(st.line), interiorScopes)
		st.pos = len(st.line)
		return
	}
	if matEnd > st.pos {
		st.pos = matEnd
	} else {
		st.pos++
	}
}

// filterZeroWidth drops tokens that cover no bytes, keeping the rest in
// order (§3, §8: "zero-width tokens never appear in the returned
// sequence").
func filterZeroWidth(toks []Token) []Token {
	out := toks[:0]
	prev := 0
	for _, t := range toks {
		if t.Ending > prev {
			out = append(out, t)
			prev = t.Ending
		}
	}
	return out
}

// TokenizeLine tokenizes a single line under grammar, threading stackIn
// from the previous line (or an empty Stack for the first line). Callers
// that want $end-anchored patterns to behave correctly must append "\n" to
// the line first, per §6.
//
// resolver resolves include_scope directives against other grammars; pass
// nil if cross-grammar includes are not needed (every include_scope will
// then be a silent RegistryMiss, §7).
func TokenizeLine(grammar *Grammar, stackIn Stack, line string, resolver ScopeResolver) ([]Token, Stack, error) {
	st := &tokenizerState{
		base:     grammar,
		resolver: resolver,
		line:     line,
		stack:    append(Stack(nil), stackIn...),
	}

	if err := st.processWhilePrefixes(); err != nil {
		return nil, nil, err
	}

	for st.pos < len(st.line) {
		scopes, patterns, repos, curGrammar := st.frame()

		if top := st.topEnd(); top != nil && !top.rule.ApplyEndLast {
			ok, err := st.tryClose()
			if err != nil {
				return nil, nil, err
			}
			if ok {
				continue
			}
		}

		matched, err := st.tryPatterns(patterns, repos, curGrammar, scopes)
		if err != nil {
			return nil, nil, err
		}
		if matched {
			continue
		}

		if top := st.topEnd(); top != nil && top.rule.ApplyEndLast {
			ok, err := st.tryClose()
			if err != nil {
				return nil, nil, err
			}
			if ok {
				continue
			}
		}

		st.pos++ // no pattern or close matched: skip one byte and retry (§4.6 step 4)
	}

	finalScopes, _, _, _ := st.frame()
	st.flushGapTo(len(st.line), finalScopes)

	return filterZeroWidth(st.tokens), st.stack, nil
}

// LineResult is one line's tokenization output from TokenizeBlock.
type LineResult struct {
	Line   string
	Tokens []Token
}

// TokenizeBlock splits text on "\n" (keeping the separators, per §6),
// threads the stack across lines starting from an empty Stack, and
// returns every line's tokens.
func TokenizeBlock(grammar *Grammar, text string, resolver ScopeResolver) ([]LineResult, error) {
	lines := splitKeepingNewlines(text)
	results := make([]LineResult, len(lines))
	var stack Stack
	for i, line := range lines {
		toks, next, err := TokenizeLine(grammar, stack, line, resolver)
		if err != nil {
			return nil, err
		}
		results[i] = LineResult{Line: line, Tokens: toks}
		stack = next
	}
	return results, nil
}

func splitKeepingNewlines(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}
