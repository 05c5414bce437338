// Package graph implements C4: knowledge-graph construction and query-time
// expansion over a library's chunks.
//
// Grounded on _examples/original_source/backend/app/services/graph_service.py
// for the extraction/alias/relation algorithms, and on the teacher's
// graph/edges.go and graph/aliases.go for the Go persistence idiom (that
// package's variable_aliases table tracked dataset-column aliases for a
// stats session; this package's entity graph tracks document entities for a
// knowledge library, but keeps the same create-or-merge-on-collision shape).
package graph

import (
	"regexp"
	"strings"

	"kbagent/internal/tokenize"
)

var (
	cjkEntityPattern = regexp.MustCompile(`[\x{4e00}-\x{9fff}]{2,4}`)
	latinOnlyEntity  = regexp.MustCompile(`^[A-Za-z0-9_\-/ ]+$`)
)

// titleSuffixes holds the title/role suffixes graph_service.py strips off a
// Chinese entity surface to recover the bare person name (e.g. "王芳老师"
// resolves to "王芳" once that surname-prefixed candidate exists).
var titleSuffixes = []string{
	"市长", "副市长", "省长", "副省长", "书记", "副书记", "主席", "副主席",
	"主任", "副主任", "厅长", "副厅长", "局长", "副局长", "处长", "副处长",
	"科长", "副科长", "镇长", "副镇长", "乡长", "副乡长", "行长", "副行长",
	"总裁", "副总裁", "总经理", "副总经理", "董事长", "副董事长", "总监", "副总监",
	"院长", "副院长", "校长", "副校长", "所长", "副所长",
	"部长", "副部长", "经理", "副经理", "老板",
	"组长", "副组长", "队长", "副队长",
	"教授", "副教授", "讲师", "助教", "老师", "医生", "护士", "医师",
}

// commonSurnames gates which short CJK candidates are plausible person
// names during alias resolution.
var commonSurnames = map[rune]struct{}{
	'王': {}, '李': {}, '张': {}, '刘': {}, '陈': {}, '杨': {}, '赵': {}, '黄': {}, '周': {}, '吴': {},
	'徐': {}, '孙': {}, '胡': {}, '朱': {}, '高': {}, '林': {}, '何': {}, '郭': {}, '马': {}, '罗': {},
	'梁': {}, '宋': {}, '郑': {}, '谢': {}, '韩': {}, '唐': {}, '冯': {}, '于': {}, '董': {}, '萧': {},
	'程': {}, '曹': {}, '袁': {}, '邓': {}, '许': {}, '傅': {}, '沈': {}, '曾': {}, '彭': {}, '吕': {},
	'苏': {}, '卢': {}, '蒋': {}, '蔡': {}, '贾': {}, '丁': {}, '魏': {}, '薛': {}, '叶': {}, '阎': {},
	'余': {}, '潘': {}, '杜': {}, '戴': {}, '夏': {}, '钟': {}, '汪': {}, '田': {}, '石': {}, '皮': {},
}

// entitySuffixBlacklist filters out verb/noun/adjective tails that jieba's
// POS tagger occasionally folds into a noun-phrase candidate, matching
// graph_service.py's ENTITY_SUFFIX_BLACKLIST (trimmed to the entries that
// matter once prose-based segmentation replaces jieba's cut).
var entitySuffixBlacklist = []string{
	"说", "道", "曰", "云", "称", "表示", "指出", "强调", "提出", "要求", "希望",
	"时候", "地方", "意思", "情况", "样子", "东西", "事情", "问题",
	"这样", "那样", "怎样", "如何", "大家", "我们", "你们", "他们", "自己",
	"可能", "应该", "必须", "需要", "可以", "进行", "完成", "实现", "包括", "关于",
}

// NormalizeEntity matches graph_service.normalize_entity: collapse
// whitespace, lowercase pure-Latin surfaces, keep CJK surfaces as-is.
func NormalizeEntity(name string) string {
	collapsed := strings.Join(strings.Fields(name), " ")
	if collapsed == "" {
		return ""
	}
	if latinOnlyEntity.MatchString(collapsed) {
		return strings.ToLower(collapsed)
	}
	return collapsed
}

// ResolveEntityAlias matches graph_service.resolve_entity_alias: maps a
// title-suffixed surface (e.g. "王芳老师") to a bare person name among the
// candidates (e.g. "王芳"). Only the first title suffix in titleSuffixes
// that the surface ends with is stripped; the remaining stem matches a
// surname-prefixed candidate that equals it, or else the longest such
// candidate that starts with the stem's first two characters.
func ResolveEntityAlias(entities []string) map[string]string {
	personNames := make(map[string]struct{})
	for _, e := range entities {
		runes := []rune(e)
		if len(runes) >= 2 && len(runes) <= 4 {
			if _, ok := commonSurnames[runes[0]]; ok {
				personNames[e] = struct{}{}
			}
		}
	}

	aliasMap := make(map[string]string)
	for _, e := range entities {
		runes := []rune(e)
		if len(runes) < 3 {
			continue
		}
		for _, suffix := range titleSuffixes {
			if !strings.HasSuffix(e, suffix) {
				continue
			}
			namePart := strings.TrimSuffix(e, suffix)
			namePartRunes := []rune(namePart)
			var matched string
			for person := range personNames {
				if person == namePart {
					matched = person
					break
				}
				if len(namePartRunes) >= 2 && strings.HasPrefix(person, string(namePartRunes[:2])) {
					if matched == "" || len([]rune(person)) > len([]rune(matched)) {
						matched = person
					}
				}
			}
			if matched != "" {
				aliasMap[e] = matched
			}
			break
		}
	}
	return aliasMap
}

// ExtractEntities matches graph_service.extract_entities_from_text: POS-
// filtered English proper nouns plus CJK 2-4 character runs, alias-resolved,
// stopword/blacklist-filtered, deduplicated, capped at maxEntities.
func ExtractEntities(text string, maxEntities int) []string {
	if text == "" {
		return nil
	}

	var candidates []string
	candidates = append(candidates, tokenize.ProperNounCandidates(text)...)
	candidates = append(candidates, cjkEntityPattern.FindAllString(text, -1)...)

	aliasMap := ResolveEntityAlias(candidates)
	for alias, canonical := range aliasMap {
		candidates = append(candidates, alias, canonical)
	}

	var results []string
	seen := make(map[string]struct{})
	for _, raw := range candidates {
		cleaned := strings.Trim(raw, " ,.;:()[]{}\"'")
		if len([]rune(cleaned)) < 2 {
			continue
		}
		if canonical, ok := aliasMap[cleaned]; ok {
			cleaned = canonical
		}
		norm := NormalizeEntity(cleaned)
		if norm == "" || tokenize.IsStopword(norm) {
			continue
		}
		if len([]rune(norm)) == 1 {
			continue
		}
		if hasBlacklistedSuffix(norm) {
			continue
		}
		if isAllDigits(norm) {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		results = append(results, cleaned)
		if len(results) >= maxEntities {
			break
		}
	}
	return results
}

func hasBlacklistedSuffix(s string) bool {
	for _, suffix := range entitySuffixBlacklist {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
