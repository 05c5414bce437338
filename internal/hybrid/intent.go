package hybrid

import (
	"regexp"
	"strings"
)

// Intents captures the keyword/regex-detected query classes of spec.md
// §4.7.1 step 1.
type Intents struct {
	Summary     bool
	Alias       bool
	Coreference bool
	Count       bool
	Roster      bool
	GroupCount  bool
}

var (
	summaryPattern     = regexp.MustCompile(`全面|总结|概述|summary|summarize|overview`)
	countPattern       = regexp.MustCompile(`几个|几位|多少|how many|how much`)
	rosterPattern      = regexp.MustCompile(`哪些|都有谁|有哪些|都是谁|who (are|is)`)
	coreferencePattern = regexp.MustCompile(`他|她|它|其|他们|她们|它们`)
	aliasPattern       = regexp.MustCompile(`外号|别名|又叫|还叫|also (known|called)`)
	countUnitPattern   = regexp.MustCompile(`[一二三四五六七八九十百千万\d]+\s*(个|位|名|人|岁|年|次|条|只|头|件|种)`)
)

var rosterNouns = []string{"师徒", "徒弟", "成员", "团队", "同伴", "同行", "取经"}

// DetectIntents runs the keyword/regex classifiers spec.md §4.7.1 step 1
// describes over the raw query.
func DetectIntents(query string) Intents {
	in := Intents{
		Summary:     summaryPattern.MatchString(query),
		Alias:       aliasPattern.MatchString(query),
		Coreference: coreferencePattern.MatchString(query),
		Count:       countPattern.MatchString(query),
		Roster:      rosterPattern.MatchString(query),
	}
	in.GroupCount = in.Count && containsAny(query, []string{"团队", "小组", "群体", "group"})
	return in
}

// HasCountSignal matches spec.md §8 scenario 7: a count-unit pattern must
// actually be near one of unitHints, not merely present anywhere (so "我今年
// 二百七十岁" alone, with no roster/person unit hint in range, doesn't count).
func HasCountSignal(text string, unitHints []string) bool {
	if !countUnitPattern.MatchString(text) {
		return false
	}
	if len(unitHints) == 0 {
		return true
	}
	for _, hint := range unitHints {
		if strings.Contains(text, hint) {
			// require the unit hint to appear within a short window of a
			// digit/count-word run, not just anywhere in the sentence.
			locs := countUnitPattern.FindAllStringIndex(text, -1)
			for _, loc := range locs {
				start := loc[0] - 12
				if start < 0 {
					start = 0
				}
				end := loc[1] + 12
				if end > len(text) {
					end = len(text)
				}
				if strings.Contains(text[start:end], hint) {
					return true
				}
			}
		}
	}
	return false
}

// HasRosterSignal reports whether text contains one of the roster nouns.
func HasRosterSignal(text string) bool {
	for _, noun := range rosterNouns {
		if strings.Contains(text, noun) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
