package textmate

// Span is the input a renderer's create_span(scope_list, text_slice)
// operation expects (§6): a fully qualified scope list and the slice of
// the tokenized line it covers. The core never builds styled output
// itself; Spans is the documented seam a renderer collaborator consumes.
type Span struct {
	Scopes []string
	Text   string
}

// Spans turns a line and its token sequence into renderer-ready spans. It
// is the generalization of the teacher's depth/priority-based Mapper: since
// Token already carries the full nested scope list, no post-hoc
// disambiguation by nesting depth is needed.
func Spans(line string, tokens []Token) []Span {
	spans := make([]Span, 0, len(tokens))
	start := 0
	for _, t := range tokens {
		if t.Ending <= start {
			continue
		}
		spans = append(spans, Span{Scopes: t.Scopes, Text: line[start:t.Ending]})
		start = t.Ending
	}
	return spans
}
