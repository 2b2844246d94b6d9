// Package regexp wraps Oniguruma for anchored, capture-aware matching.
//
// TextMate grammars are written against Oniguruma's dialect (atomic groups,
// possessive quantifiers, \G, POSIX bracket expressions) so a Go-native
// regexp/syntax engine cannot execute them faithfully; this package binds
// the same library vscode-textmate and Sublime Text's `lime` embed.
package regexp

// #cgo pkg-config: oniguruma
// #include <oniguruma.h>
// #include <stdlib.h>
//
// int error_code_to_str(UChar* err_buf, int err_code, OnigErrorInfo* info) {
//     return info != NULL ? onig_error_code_to_str(err_buf, err_code, info) : onig_error_code_to_str(err_buf, err_code);
// }
import "C"
import (
	"errors"
	"fmt"
	"unsafe"
)

var (
	ErrRegexpSyntax = errors.New("syntax error")
)

// Regexp is a compiled Oniguruma pattern. The zero value is not usable;
// construct with Compile.
type Regexp struct {
	c       C.OnigRegex
	pattern string
}

// Range is a byte offset span within whatever text a match last ran
// against. A group that did not participate in the match reports
// Start == End == -1, the "not participated" sentinel, distinct from a
// true zero-length match at offset 0.
type Range struct {
	Start, End int
}

// Participated reports whether the group this Range came from matched.
func (r Range) Participated() bool {
	return r.Start >= 0 && r.End >= 0
}

func (r Range) Len() int {
	if !r.Participated() {
		return 0
	}
	return r.End - r.Start
}

func (r Range) Text(str string) string {
	if !r.Participated() {
		return ""
	}
	return str[r.Start:r.End]
}

type Option C.OnigOptionType

const (
	OptionNone             Option = C.ONIG_OPTION_NONE
	OptionIgnorecase       Option = C.ONIG_OPTION_IGNORECASE
	OptionNotBOL           Option = C.ONIG_OPTION_NOTBOL
	OptionNotEOL           Option = C.ONIG_OPTION_NOTEOL
	OptionNotBeginPosition Option = C.ONIG_OPTION_NOT_BEGIN_POSITION
)

var syntax = C.ONIG_SYNTAX_DEFAULT

// Compile builds an anchorable regex from source. option is ORed with the
// flags every grammar rule needs: ONIG_OPTION_SINGLELINE, so that $ only
// matches end-of-string and never before an embedded newline (§4.1).
func Compile(pattern string, option Option) (*Regexp, error) {
	r := Regexp{pattern: pattern}
	if len(pattern) == 0 {
		return nil, fmt.Errorf("%w: empty pattern", ErrRegexpSyntax)
	}
	raw := []byte(pattern)
	start := (*C.OnigUChar)(unsafe.Pointer(&raw[0]))
	end := (*C.OnigUChar)(unsafe.Pointer(uintptr(unsafe.Pointer(&raw[0])) + uintptr(len(raw))))

	var errinfo C.OnigErrorInfo

	opt := C.OnigOptionType(option) | C.ONIG_OPTION_SINGLELINE
	ret := C.onig_new(&r.c, start, end, opt, C.ONIG_ENCODING_UTF8, syntax, &errinfo)
	if ret != C.ONIG_NORMAL {
		var errBuf [C.ONIG_MAX_ERROR_MESSAGE_LEN]C.char
		C.error_code_to_str((*C.OnigUChar)(unsafe.Pointer(&errBuf[0])), ret, &errinfo)
		return nil, fmt.Errorf("%w: %s: %s", ErrRegexpSyntax, pattern, C.GoString(&errBuf[0]))
	}

	return &r, nil
}

func (re *Regexp) Free() {
	if re.c != nil {
		C.onig_free(re.c)
		re.c = nil
	}
}

func (re *Regexp) String() string {
	return re.pattern
}

// Exec attempts an anchored match: the match must begin exactly at pos in
// text. It returns (groups, true, nil) on success, (nil, false, nil) if the
// pattern does not match at pos, and a non-nil error only for
// Oniguruma-internal failures, never for routine "no match".
//
// onig_match, unlike onig_search, only ever reports a match starting at the
// given position, so no extra "reject mis-started matches" shim is needed
// to satisfy the engine's anchoring contract.
func (re *Regexp) Exec(text string, pos int) ([]Range, bool, error) {
	if pos < 0 || pos > len(text) {
		return nil, false, nil
	}

	raw := []byte(text)
	var base *C.OnigUChar
	if len(raw) > 0 {
		base = (*C.OnigUChar)(unsafe.Pointer(&raw[0]))
	} else {
		var empty C.OnigUChar
		base = &empty
	}
	start := (*C.OnigUChar)(unsafe.Pointer(uintptr(unsafe.Pointer(base)) + uintptr(pos)))
	end := (*C.OnigUChar)(unsafe.Pointer(uintptr(unsafe.Pointer(base)) + uintptr(len(raw))))

	region := C.onig_region_new()
	defer C.onig_region_free(region, 1)

	ret := C.onig_match(re.c, base, end, start, region, C.ONIG_OPTION_NONE)
	if ret == C.ONIG_MISMATCH {
		return nil, false, nil
	} else if ret < 0 {
		var errBuf [C.ONIG_MAX_ERROR_MESSAGE_LEN]C.char
		C.error_code_to_str((*C.OnigUChar)(unsafe.Pointer(&errBuf[0])), C.int(ret), nil)
		return nil, false, fmt.Errorf("%w: %s", ErrRegexpSyntax, C.GoString(&errBuf[0]))
	}

	groups := make([]Range, int(region.num_regs))
	for i := range groups {
		beg := *(*C.int)(unsafe.Pointer(uintptr(unsafe.Pointer(region.beg)) + uintptr(i)*unsafe.Sizeof(*region.beg)))
		e := *(*C.int)(unsafe.Pointer(uintptr(unsafe.Pointer(region.end)) + uintptr(i)*unsafe.Sizeof(*region.end)))
		if beg == -1 || e == -1 {
			groups[i] = Range{-1, -1}
			continue
		}
		groups[i] = Range{int(beg), int(e)}
	}

	return groups, true, nil
}
