// Command tmtoken tokenizes a source file against a single TextMate grammar
// and prints each line's scope-tagged spans, one per line of output.
//
// It is a thin demonstration of the textmate package's public surface, not
// a syntax-highlighting renderer: it prints scope lists, not colors.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/textmate-go/textmate"
)

func main() {
	var grammarPath, sourcePath string
	flag.StringVar(&grammarPath, "grammar", "", "path to a *.tmLanguage.json or *.tmLanguage file")
	flag.StringVar(&sourcePath, "source", "", "path to the file to tokenize (default: stdin)")
	flag.Parse()

	if grammarPath == "" {
		fmt.Fprintln(os.Stderr, "tmtoken: -grammar is required")
		os.Exit(2)
	}

	grammar, err := loadGrammar(grammarPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tmtoken: %v\n", err)
		os.Exit(1)
	}

	var src []byte
	if sourcePath == "" {
		src, err = io.ReadAll(os.Stdin)
	} else {
		src, err = os.ReadFile(sourcePath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "tmtoken: %v\n", err)
		os.Exit(1)
	}

	results, err := textmate.TokenizeBlock(grammar, string(src), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tmtoken: tokenize: %v\n", err)
		os.Exit(1)
	}

	for _, r := range results {
		for _, span := range textmate.Spans(r.Line, r.Tokens) {
			fmt.Printf("%s\t%q\n", strings.Join(span.Scopes, " "), span.Text)
		}
	}
}

func loadGrammar(path string) (*textmate.Grammar, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var encoded *textmate.GrammarJSON
	if filepath.Ext(path) == ".json" || strings.HasSuffix(path, ".tmLanguage.json") {
		encoded, err = textmate.LoadGrammarJSON(content)
	} else {
		encoded, err = textmate.LoadGrammarPlist(content)
	}
	if err != nil {
		return nil, err
	}

	return textmate.CompileGrammar(encoded)
}
