package textmate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/textmate-go/textmate"
	"github.com/textmate-go/textmate/registry"
)

// TestIncludeScopeResolvesThroughRegistry exercises the cross-grammar
// include_scope path (§4.2, §6): a host grammar includes another grammar's
// root scope by name, resolved through a Registry at tokenize time.
func TestIncludeScopeResolvesThroughRegistry(t *testing.T) {
	embeddedJSON, err := textmate.LoadGrammarJSON([]byte(`{
		"scopeName": "source.embedded",
		"patterns": [{"match": "x", "name": "kw.embedded"}]
	}`))
	require.NoError(t, err)
	embedded, err := textmate.CompileGrammar(embeddedJSON)
	require.NoError(t, err)

	hostJSON, err := textmate.LoadGrammarJSON([]byte(`{
		"scopeName": "source.host",
		"patterns": [{"include": "source.embedded"}]
	}`))
	require.NoError(t, err)
	host, err := textmate.CompileGrammar(hostJSON)
	require.NoError(t, err)

	reg := registry.New()
	reg.Register(embedded)

	toks, _, err := textmate.TokenizeLine(host, nil, "x\n", reg)
	require.NoError(t, err)

	var sawEmbeddedScope bool
	for _, tok := range toks {
		for _, s := range tok.Scopes {
			if s == "kw.embedded" {
				sawEmbeddedScope = true
			}
		}
	}
	require.True(t, sawEmbeddedScope)
}

// TestIncludeScopeMissIsSilent confirms an unresolved include_scope is a
// RegistryMiss, not an error (§7): the tokenizer falls through to any later
// sibling pattern instead of failing.
func TestIncludeScopeMissIsSilent(t *testing.T) {
	hostJSON, err := textmate.LoadGrammarJSON([]byte(`{
		"scopeName": "source.host",
		"patterns": [
			{"include": "source.unregistered"},
			{"match": "x", "name": "fallback"}
		]
	}`))
	require.NoError(t, err)
	host, err := textmate.CompileGrammar(hostJSON)
	require.NoError(t, err)

	toks, _, err := textmate.TokenizeLine(host, nil, "x\n", nil)
	require.NoError(t, err)

	var sawFallback bool
	for _, tok := range toks {
		for _, s := range tok.Scopes {
			if s == "fallback" {
				sawFallback = true
			}
		}
	}
	require.True(t, sawFallback)
}
