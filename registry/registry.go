// Package registry maps external scope names (e.g. "source.js") to loaded
// grammars, so the tokenizer can resolve include_scope directives across
// grammar boundaries (§2 item 3, §4.2).
//
// Grounded on the mutex-guarded scope->language map of
// limetext/lime's textmate.LanguageProvider: a plain struct embedding its
// own sync.RWMutex, not a package-level singleton, so a process can host
// more than one independently-populated registry.
package registry

import (
	"sync"

	"github.com/textmate-go/textmate"
)

// Registry is safe for concurrent use: Register synchronizes insertions,
// Lookup takes a read lock so concurrent tokenize calls observe a
// consistent snapshot (§5).
type Registry struct {
	mu      sync.RWMutex
	byScope map[string]*textmate.Grammar
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byScope: make(map[string]*textmate.Grammar)}
}

// Register inserts grammar under its own ScopeName, replacing any grammar
// previously registered under that name.
func (r *Registry) Register(grammar *textmate.Grammar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byScope[grammar.ScopeName] = grammar
}

// Lookup implements textmate.ScopeResolver.
func (r *Registry) Lookup(scopeName string) (*textmate.Grammar, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.byScope[scopeName]
	return g, ok
}

// Scopes returns every registered scope name. The returned slice is a
// snapshot; mutating the registry afterwards does not affect it.
func (r *Registry) Scopes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byScope))
	for s := range r.byScope {
		out = append(out, s)
	}
	return out
}
