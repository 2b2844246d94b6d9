package textmate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/textmate-go/textmate/regexp"
	"howett.net/plist"
)

// ErrGrammarShape is wrapped by every ingestion-time structural failure:
// a missing required key, conflicting match/begin, a non-integer capture
// index, or an unexpected value shape (§7).
var ErrGrammarShape = errors.New("grammar shape error")

// GrammarJSON mirrors the (subset of) TextMate JSON/plist grammar on disk.
// It is decoded as-is and only later compiled into a Grammar.
type GrammarJSON struct {
	Name       string              `json:"name" plist:"name"`
	ScopeName  string              `json:"scopeName" plist:"scopeName"`
	FileTypes  []string            `json:"fileTypes" plist:"fileTypes"`
	Repository map[string]RuleJSON `json:"repository" plist:"repository"`
	Patterns   []RuleJSON          `json:"patterns" plist:"patterns"`
}

// RuleJSON is a raw grammar rule as found in the JSON/plist source.
// Capture groups are addressed by decimal-string keys ("1", "2", ...).
type RuleJSON struct {
	Name                string              `json:"name" plist:"name"`
	ContentName         string              `json:"contentName" plist:"contentName"`
	Match               string              `json:"match" plist:"match"`
	Begin               string              `json:"begin" plist:"begin"`
	End                 string              `json:"end" plist:"end"`
	While               string              `json:"while" plist:"while"`
	ApplyEndPatternLast boolish             `json:"applyEndPatternLast" plist:"applyEndPatternLast"`
	Patterns            []RuleJSON          `json:"patterns" plist:"patterns"`
	Captures            map[string]RuleJSON `json:"captures" plist:"captures"`
	BeginCaptures       map[string]RuleJSON `json:"beginCaptures" plist:"beginCaptures"`
	EndCaptures         map[string]RuleJSON `json:"endCaptures" plist:"endCaptures"`
	WhileCaptures       map[string]RuleJSON `json:"whileCaptures" plist:"whileCaptures"`
	Include             string              `json:"include" plist:"include"`
	Repository          map[string]RuleJSON `json:"repository" plist:"repository"`
}

// boolish accepts both JSON/plist booleans and the "1"/"0"-as-string shape
// some plist exports use for applyEndPatternLast.
type boolish bool

func (b *boolish) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = boolish(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*b = s == "1" || s == "true"
	return nil
}

// LoadGrammarJSON parses a *.tmLanguage.json document.
func LoadGrammarJSON(content []byte) (*GrammarJSON, error) {
	var encoded GrammarJSON
	if err := json.Unmarshal(content, &encoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGrammarShape, err)
	}
	return &encoded, nil
}

// LoadGrammarPlist parses a *.tmLanguage (property-list) document.
func LoadGrammarPlist(content []byte) (*GrammarJSON, error) {
	var encoded GrammarJSON
	if _, err := plist.Unmarshal(content, &encoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGrammarShape, err)
	}
	return &encoded, nil
}

// CompileGrammar compiles a decoded GrammarJSON into an executable,
// immutable Grammar. It does not register the grammar anywhere; callers
// that need include_scope resolution must Register it themselves
// (see the registry package).
func CompileGrammar(j *GrammarJSON) (*Grammar, error) {
	if j.ScopeName == "" {
		return nil, fmt.Errorf("%w: missing scopeName", ErrGrammarShape)
	}

	res := &Grammar{
		ScopeName: j.ScopeName,
		FileTypes: j.FileTypes,
	}

	rules := make([]*MatchRule, len(j.Patterns))
	var err error
	for i, jp := range j.Patterns {
		rules[i], err = compileRule(jp)
		if err != nil {
			return nil, err
		}
	}
	res.Root = &MatchRule{Name: j.ScopeName, Rules: rules, Operation: OperationExpand}

	res.Repository = make(map[string]*MatchRule, len(j.Repository))
	for name, jp := range j.Repository {
		res.Repository[name], err = compileRule(jp)
		if err != nil {
			return nil, err
		}
	}

	return res, nil
}

// compileCaptures converts string-indexed captures ("1","2",...) to a slice
// sized 0..maxIndex, leaving missing indices nil. Each capture keeps only
// its scope name.
func compileCaptures(j map[string]RuleJSON) ([]*MatchRule, error) {
	if len(j) == 0 {
		return nil, nil
	}

	maxIndex := 0
	for num := range j {
		i, err := strconv.Atoi(num)
		if err != nil {
			return nil, fmt.Errorf("%w: non-integer capture index %q", ErrGrammarShape, num)
		}
		if i > maxIndex {
			maxIndex = i
		}
	}

	res := make([]*MatchRule, maxIndex+1)
	for num, jp := range j {
		i, _ := strconv.Atoi(num) // already validated above
		// A Capture is just a scope name (§3): nested "patterns" on a
		// capture object, while occasionally seen in the wild, are outside
		// this data model and are intentionally not compiled here.
		res[i] = &MatchRule{Name: jp.Name}
	}
	return res, nil
}

func compileRepository(j map[string]RuleJSON) (map[string]*MatchRule, error) {
	if len(j) == 0 {
		return nil, nil
	}
	res := make(map[string]*MatchRule, len(j))
	for name, jp := range j {
		rule, err := compileRule(jp)
		if err != nil {
			return nil, err
		}
		res[name] = rule
	}
	return res, nil
}

func classifyInclude(include string) (IncludeKind, string) {
	switch {
	case include == "$self":
		return IncludeSelf, ""
	case include == "$base":
		return IncludeBase, ""
	case strings.HasPrefix(include, "#"):
		return IncludeLocal, include[1:]
	default:
		return IncludeScope, include
	}
}

// compileRule compiles a single RuleJSON into a MatchRule. Case order
// follows TextMate convention: include, match, begin/end or begin/while,
// then bare container.
func compileRule(j RuleJSON) (*MatchRule, error) {
	repo, err := compileRepository(j.Repository)
	if err != nil {
		return nil, err
	}

	switch {
	case j.Include != "":
		kind, target := classifyInclude(j.Include)
		return &MatchRule{IncludeKind: kind, IncludeTarget: target, Repository: repo}, nil

	case j.Match != "":
		if j.Begin != "" || j.End != "" || j.While != "" {
			return nil, fmt.Errorf("%w: rule has both match and begin/end/while", ErrGrammarShape)
		}
		match, err := regexp.Compile(j.Match, regexp.OptionNone)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGrammarShape, err)
		}
		captures, err := compileCaptures(j.Captures)
		if err != nil {
			return nil, err
		}
		return &MatchRule{
			Name:       j.Name,
			Pattern:    match,
			Captures:   captures,
			Repository: repo,
		}, nil

	case j.Begin != "" && (j.End != "" || j.While != ""):
		if j.End != "" && j.While != "" {
			return nil, fmt.Errorf("%w: rule has both end and while", ErrGrammarShape)
		}
		begin, err := regexp.Compile(j.Begin, regexp.OptionNone)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGrammarShape, err)
		}

		endSource := j.End
		endCapturesJSON := j.EndCaptures
		kind := DelimEnd
		if j.While != "" {
			endSource = j.While
			endCapturesJSON = j.WhileCaptures
			kind = DelimWhile
		}

		var beginCaptures, endCaptures []*MatchRule
		if len(j.Captures) > 0 {
			captures, err := compileCaptures(j.Captures)
			if err != nil {
				return nil, err
			}
			beginCaptures = captures
			endCaptures = captures
		} else {
			beginCaptures, err = compileCaptures(j.BeginCaptures)
			if err != nil {
				return nil, err
			}
			endCaptures, err = compileCaptures(endCapturesJSON)
			if err != nil {
				return nil, err
			}
		}

		children := make([]*MatchRule, len(j.Patterns)+1)
		children[0] = &MatchRule{
			Name:        j.Name,
			EndSource:   endSource,
			EndCaptures: endCaptures,
			Operation:   OperationPop,
			DelimKind:   kind,
		}
		for i, jp := range j.Patterns {
			var err error
			children[i+1], err = compileRule(jp)
			if err != nil {
				return nil, err
			}
		}

		return &MatchRule{
			Name:         j.Name,
			ContentName:  j.ContentName,
			Pattern:      begin,
			Captures:     beginCaptures,
			EndSource:    endSource,
			EndCaptures:  endCaptures,
			Rules:        children,
			Operation:    OperationPush,
			DelimKind:    kind,
			ApplyEndLast: bool(j.ApplyEndPatternLast),
			Repository:   repo,
		}, nil

	case j.Begin != "" || j.End != "" || j.While != "":
		return nil, fmt.Errorf("%w: begin without a matching end or while (or vice versa)", ErrGrammarShape)

	default:
		rules := make([]*MatchRule, len(j.Patterns))
		var err error
		for i, jp := range j.Patterns {
			rules[i], err = compileRule(jp)
			if err != nil {
				return nil, err
			}
		}
		return &MatchRule{
			Name:       j.Name,
			Rules:      rules,
			Operation:  OperationExpand,
			Repository: repo,
		}, nil
	}
}
