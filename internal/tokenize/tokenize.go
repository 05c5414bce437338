// Package tokenize implements C1: mixed CJK/Latin normalization and
// search-oriented segmentation.
//
// Grounded on _examples/original_source/backend/app/services/graph_service.py
// (EN_STOPWORDS / ZH_STOPWORDS / SINGLE_CHAR_BLACKLIST / CJK_ENTITY_PATTERN)
// and on the teacher's rune-based scanning idiom in rag/splitter.go. The
// teacher repo has no CJK segmenter at all (it is a Latin-only stats
// assistant); jdkato/prose/v2 supplies POS tagging for the Latin half, and
// this package supplements it with a dependency-free CJK segmenter since no
// pack example wires a cgo jieba binding (see DESIGN.md).
package tokenize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
)

var (
	latinOnly = regexp.MustCompile(`^[A-Za-z0-9_\-/. ]+$`)

	cjkRun   = regexp.MustCompile(`[\x{4e00}-\x{9fff}]+`)
	latinRun = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_\-]{1,40}`)

	enStopwords = map[string]struct{}{
		"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "this": {},
		"that": {}, "into": {}, "then": {}, "than": {}, "are": {}, "is": {},
		"was": {}, "were": {}, "what": {}, "when": {}, "where": {}, "who": {},
		"why": {}, "how": {}, "can": {}, "will": {}, "should": {}, "could": {},
		"would": {}, "use": {}, "using": {}, "used": {}, "data": {}, "model": {},
	}

	zhStopwords = map[string]struct{}{
		"我们": {}, "你们": {}, "他们": {}, "这些": {}, "那些": {}, "这个": {}, "那个": {},
		"以及": {}, "或者": {}, "可以": {}, "进行": {}, "因为": {}, "所以": {}, "通过": {},
		"如果": {}, "然后": {}, "其中": {}, "一种": {}, "什么": {}, "怎么": {}, "如何": {},
		"为什么": {}, "时候": {}, "地方": {}, "人们": {}, "大家": {}, "自己": {}, "没有": {},
		"有的": {}, "还有": {}, "一些": {}, "其他": {}, "可能": {},
	}

	singleCharBlacklist = map[rune]struct{}{
		'的': {}, '是': {}, '在': {}, '了': {}, '和': {}, '与': {}, '或': {}, '有': {},
		'我': {}, '你': {}, '他': {}, '她': {}, '它': {}, '们': {}, '这': {}, '那': {},
		'就': {}, '也': {}, '都': {}, '而': {}, '及': {}, '着': {}, '被': {}, '把': {},
	}
)

// Normalize matches spec.md §4.1: collapse internal whitespace; lowercase
// pure Latin/digit/punctuation surfaces; keep CJK as-is.
func Normalize(surface string) string {
	collapsed := strings.Join(strings.Fields(surface), " ")
	if collapsed == "" {
		return ""
	}
	if latinOnly.MatchString(collapsed) {
		return strings.ToLower(collapsed)
	}
	return collapsed
}

// IsStopword reports whether a normalized token should be treated as noise.
func IsStopword(normalized string) bool {
	if normalized == "" {
		return true
	}
	if _, ok := enStopwords[normalized]; ok {
		return true
	}
	if _, ok := zhStopwords[normalized]; ok {
		return true
	}
	runes := []rune(normalized)
	if len(runes) == 1 {
		if _, ok := singleCharBlacklist[runes[0]]; ok {
			return true
		}
	}
	return false
}

// CutForSearch produces a cut_for_search-style token sequence: CJK runs are
// emitted whole plus their length-2 sub-windows (conservative longest-match
// plus sub-tokens), Latin words are emitted as single tokens. Stopwords and
// single-character noise are dropped.
func CutForSearch(text string) []string {
	var tokens []string
	seen := make(map[string]struct{})
	add := func(tok string) {
		norm := Normalize(tok)
		if norm == "" || IsStopword(norm) {
			return
		}
		if len([]rune(norm)) < 2 {
			return
		}
		if _, ok := seen[norm]; ok {
			return
		}
		seen[norm] = struct{}{}
		tokens = append(tokens, norm)
	}

	for _, run := range cjkRun.FindAllString(text, -1) {
		runes := []rune(run)
		add(run)
		for i := 0; i+2 <= len(runes); i++ {
			add(string(runes[i : i+2]))
		}
	}
	for _, word := range latinRun.FindAllString(text, -1) {
		add(word)
	}
	return tokens
}

// ProperNounCandidates runs prose's POS tagger over the Latin portions of
// text and keeps tokens tagged as proper nouns (NNP/NNPS), per spec.md
// §4.1's "part-of-speech filtering keeps only proper-name tags".
func ProperNounCandidates(text string) []string {
	if !containsLatinLetter(text) {
		return nil
	}
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil
	}
	var out []string
	for _, tok := range doc.Tokens() {
		if tok.Tag == "NNP" || tok.Tag == "NNPS" {
			if len(tok.Text) >= 2 {
				out = append(out, tok.Text)
			}
		}
	}
	return out
}

func containsLatinLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && r < unicode.MaxASCII {
			return true
		}
	}
	return false
}
