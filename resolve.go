package textmate

import "github.com/textmate-go/textmate/regexp"

// openCapture is one frame of the resolver's local "open captures" stack
// (§4.3, §9: an owned vector, not the shared imperative stack the source
// used).
type openCapture struct {
	end   int
	scope string
}

// resolveCaptures linearises a match's nested capture groups into a flat
// sequence of emitted tokens covering [matStart, matEnd), following §4.3
// step by step. captures maps group index -> scope name (index 0 is the
// whole match, like any other group); emit is called once per closed span
// with its ending offset and the scope list active at that moment.
//
// baseScopes is the scope list active outside any capture (typically the
// enclosing region's interior scopes); defaultScope is the match rule's own
// Name, used as the innermost scope for any gap not covered by a capture.
//
// It returns nothing and never emits past matEnd. The emitted tokens end at
// the furthest end of any participating capture; the caller emits the token
// that closes the rest of the match up to matEnd. With no participating
// captures nothing is emitted.
func resolveCaptures(groups []regexp.Range, captures []*MatchRule, matStart, matEnd int, baseScopes []string, defaultScope string, emit func(Token)) {
	var stack []openCapture
	cursor := matStart

	currentScopes := func() []string {
		scopes := baseScopes
		if defaultScope != "" {
			scopes = addScopes(scopes, defaultScope)
		}
		for _, oc := range stack {
			scopes = addScopes(scopes, oc.scope)
		}
		return scopes
	}

	for i := 0; i < len(groups) && i < len(captures); i++ {
		if captures[i] == nil {
			continue
		}
		g := groups[i]
		if !g.Participated() {
			continue
		}

		capStart := g.Start
		if capStart < cursor {
			capStart = cursor
		}
		if capStart < matStart {
			capStart = matStart
		}

		// Pop all stack entries whose end <= this start.
		for len(stack) > 0 && stack[len(stack)-1].end <= capStart {
			top := stack[len(stack)-1]
			if top.end > cursor {
				emit(Token{Ending: top.end, Scopes: currentScopes()})
				cursor = top.end
			}
			stack = stack[:len(stack)-1]
		}

		// Gap before this capture, tagged with the surrounding scope.
		if capStart > cursor {
			emit(Token{Ending: capStart, Scopes: currentScopes()})
			cursor = capStart
		}

		// Clamp the capture's end to its enclosing bound.
		enclosingEnd := matEnd
		if len(stack) > 0 {
			enclosingEnd = stack[len(stack)-1].end
		}
		capEnd := g.End
		if capEnd > enclosingEnd {
			capEnd = enclosingEnd
		}
		if capEnd < capStart {
			capEnd = capStart
		}

		stack = append(stack, openCapture{end: capEnd, scope: captures[i].Name})
		cursor = capStart
	}

	// Pop remaining entries in order, each emitting at its own end.
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.end > cursor {
			emit(Token{Ending: top.end, Scopes: currentScopes()})
			cursor = top.end
		}
		stack = stack[:len(stack)-1]
	}
}
