package textmate

// Token is a scope-annotated span boundary. Ending is the byte offset (in
// the tokenized line) where this token's scopes stop applying; Scopes is
// the fully qualified scope list, outermost first, with the grammar's root
// scope always as Scopes[0] (§3).
//
// A token sequence t0, t1, ... covers [0, t0.Ending), [t0.Ending,
// t1.Ending), and so on: Ending values are non-decreasing and the final
// one equals the tokenized line's length.
type Token struct {
	Ending int
	Scopes []string
}

// addScopes appends each non-empty name in names to base, returning a new
// slice. Absent/empty names are skipped (§4.5).
func addScopes(base []string, names ...string) []string {
	out := make([]string, len(base), len(base)+len(names))
	copy(out, base)
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}
