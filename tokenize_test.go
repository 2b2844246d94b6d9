package textmate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustCompile(t *testing.T, doc string) *Grammar {
	t.Helper()
	j, err := LoadGrammarJSON([]byte(doc))
	require.NoError(t, err)
	g, err := CompileGrammar(j)
	require.NoError(t, err)
	return g
}

// Scenario 1 (§8): a single Match rule.
func TestTokenizeLineSimpleMatch(t *testing.T) {
	g := mustCompile(t, `{
		"scopeName": "s",
		"patterns": [{"match": "foo", "name": "kw"}]
	}`)

	toks, stack, err := TokenizeLine(g, nil, "foo bar\n", nil)
	require.NoError(t, err)
	require.Empty(t, stack)

	require.Equal(t, []Token{
		{Ending: 3, Scopes: []string{"s", "kw"}},
		{Ending: 8, Scopes: []string{"s"}},
	}, toks)
}

// Scenario 2 (§8): a begin/end region with no contentName.
func TestTokenizeLineDelimRegion(t *testing.T) {
	g := mustCompile(t, `{
		"scopeName": "s",
		"patterns": [{"begin": "\"", "end": "\"", "name": "str", "patterns": []}]
	}`)

	toks, stack, err := TokenizeLine(g, nil, "x \"y\" z\n", nil)
	require.NoError(t, err)
	require.Empty(t, stack)

	require.Equal(t, []Token{
		{Ending: 2, Scopes: []string{"s"}},
		{Ending: 3, Scopes: []string{"s", "str"}},
		{Ending: 4, Scopes: []string{"s", "str"}},
		{Ending: 5, Scopes: []string{"s", "str"}},
		{Ending: 8, Scopes: []string{"s"}},
	}, toks)
}

// Scenario 3 (§8): contentName adds an extra interior scope without
// affecting the begin/end marker scopes.
func TestTokenizeLineContentName(t *testing.T) {
	g := mustCompile(t, `{
		"scopeName": "s",
		"patterns": [{"begin": "\"", "end": "\"", "name": "str", "contentName": "str.inside", "patterns": []}]
	}`)

	toks, _, err := TokenizeLine(g, nil, "x \"y\" z\n", nil)
	require.NoError(t, err)

	var interior Token
	for _, tok := range toks {
		if tok.Ending == 4 {
			interior = tok
		}
	}
	require.Equal(t, []string{"s", "str", "str.inside"}, interior.Scopes)
}

// Scenario 4 (§8): an include chain through the repository.
func TestTokenizeLineIncludeChain(t *testing.T) {
	g := mustCompile(t, `{
		"scopeName": "s",
		"patterns": [{"include": "#a"}],
		"repository": {
			"a": {"patterns": [{"include": "#b"}]},
			"b": {"patterns": [{"match": "x", "name": "kw"}]}
		}
	}`)

	toks, _, err := TokenizeLine(g, nil, "xx\n", nil)
	require.NoError(t, err)

	require.Equal(t, []Token{
		{Ending: 1, Scopes: []string{"s", "kw"}},
		{Ending: 2, Scopes: []string{"s", "kw"}},
		{Ending: 3, Scopes: []string{"s"}},
	}, toks)
}

// Scenario 5 (§8): a backreferenced end pattern.
func TestTokenizeLineBackreferenceRegion(t *testing.T) {
	g := mustCompile(t, `{
		"scopeName": "s",
		"patterns": [{"begin": "(\\w+)", "end": "\\1", "name": "region", "patterns": []}]
	}`)

	toks, stack, err := TokenizeLine(g, nil, "abc def abc\n", nil)
	require.NoError(t, err)
	require.Empty(t, stack)

	var interiorScopes []string
	for _, tok := range toks {
		if tok.Ending == 8 {
			interiorScopes = tok.Scopes
		}
	}
	require.Equal(t, []string{"s", "region"}, interiorScopes)
}

// Scenario 6 (§8): a While region spanning multiple lines, closing when
// the third line's prefix no longer matches.
func TestTokenizeLineWhileRegion(t *testing.T) {
	g := mustCompile(t, `{
		"scopeName": "s",
		"patterns": [{"begin": "> ", "while": "> ", "name": "quote", "patterns": []}]
	}`)

	var stack Stack
	toks1, stack, err := TokenizeLine(g, stack, "> a\n", nil)
	require.NoError(t, err)
	require.NotEmpty(t, stack)
	require.NotEmpty(t, toks1)
	for _, tok := range toks1 {
		require.Contains(t, tok.Scopes, "quote")
	}

	toks2, stack, err := TokenizeLine(g, stack, "> b\n", nil)
	require.NoError(t, err)
	require.NotEmpty(t, stack)
	for _, tok := range toks2 {
		require.Contains(t, tok.Scopes, "quote")
	}

	toks3, stack, err := TokenizeLine(g, stack, "c\n", nil)
	require.NoError(t, err)
	require.Empty(t, stack)
	require.NotEmpty(t, toks3)
}

// Universal invariants (§8).
func TestTokenizeLineInvariants(t *testing.T) {
	g := mustCompile(t, `{
		"scopeName": "root.scope",
		"patterns": [{"match": "foo", "name": "kw"}]
	}`)

	line := "foo bar foo\n"
	toks, _, err := TokenizeLine(g, nil, line, nil)
	require.NoError(t, err)
	require.NotEmpty(t, toks)

	prev := 0
	for _, tok := range toks {
		require.Greater(t, tok.Ending, prev, "ending offsets must be strictly increasing once zero-width tokens are filtered")
		require.Equal(t, "root.scope", tok.Scopes[0], "every scope list starts with the grammar's root scope")
		prev = tok.Ending
	}
	require.Equal(t, len(line), prev, "final ending must equal the tokenized line's length")

	toksAgain, _, err := TokenizeLine(g, nil, line, nil)
	require.NoError(t, err)
	require.Equal(t, toks, toksAgain, "tokenizing the same (grammar, stack, line) twice must be deterministic")
}

// End-of-region precedence (§8).
func TestApplyEndPatternLastPrecedence(t *testing.T) {
	endsFirst := mustCompile(t, `{
		"scopeName": "s",
		"patterns": [{
			"begin": "<", "end": "x", "name": "region", "applyEndPatternLast": false,
			"patterns": [{"match": "x", "name": "child"}]
		}]
	}`)
	toks, _, err := TokenizeLine(endsFirst, nil, "<x\n", nil)
	require.NoError(t, err)
	var markerScopes []string
	for _, tok := range toks {
		if tok.Ending == 2 {
			markerScopes = tok.Scopes
		}
	}
	require.Equal(t, []string{"s", "region"}, markerScopes, "end pattern wins when applyEndPatternLast is false")

	childFirst := mustCompile(t, `{
		"scopeName": "s",
		"patterns": [{
			"begin": "<", "end": "x", "name": "region", "applyEndPatternLast": true,
			"patterns": [{"match": "x", "name": "child"}]
		}]
	}`)
	toks, _, err = TokenizeLine(childFirst, nil, "<x\n", nil)
	require.NoError(t, err)
	var childScopes []string
	for _, tok := range toks {
		if tok.Ending == 2 {
			childScopes = tok.Scopes
		}
	}
	require.Equal(t, []string{"s", "region", "child"}, childScopes, "child pattern wins when applyEndPatternLast is true")
}

func TestTokenizeBlockThreadsStackAcrossLines(t *testing.T) {
	g := mustCompile(t, `{
		"scopeName": "s",
		"patterns": [{"begin": "<", "end": ">", "name": "region", "patterns": []}]
	}`)

	results, err := TokenizeBlock(g, "a <b\nc> d\n", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	var sawOpenRegion bool
	for _, tok := range results[0].Tokens {
		if contains(tok.Scopes, "region") {
			sawOpenRegion = true
		}
	}
	require.True(t, sawOpenRegion, "region opened on line 1 must be visible in line 1's tokens")

	var sawClose bool
	for _, tok := range results[1].Tokens {
		if contains(tok.Scopes, "region") {
			sawClose = true
		}
	}
	require.True(t, sawClose, "region must still be open at the start of line 2")
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
