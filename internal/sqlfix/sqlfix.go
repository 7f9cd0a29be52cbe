// Package sqlfix deterministically rewrites known defects in
// LLM-generated SQL. Every rule is a pure, idempotent text transform;
// the package never calls the model, so normalizing the same input
// always yields the same output.
package sqlfix

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is a single named rewrite over query text. Rules are idempotent:
// applying one twice yields the same text as applying it once.
type Rule struct {
	Name  string
	Apply func(query string) string
}

// Options tunes normalization for a specific query.
type Options struct {
	// IntendedAverage suppresses the aggregate-division removal rule
	// when the caller knows the question asks for an average (for
	// example the planner extracted an AOV formula).
	IntendedAverage bool
}

// Normalize applies the full ordered rule set with default options.
func Normalize(query string) string {
	return NormalizeOpts(query, Options{})
}

// NormalizeOpts applies the full ordered rule set.
func NormalizeOpts(query string, opts Options) string {
	for _, r := range rules(opts) {
		query = r.Apply(query)
	}
	return query
}

// FixTypos applies only the lexical repairs (keyword misspellings,
// table quoting, placeholder columns). The repair loop uses this as its
// deterministic fast path before consulting the model.
func FixTypos(query string) string {
	query = fixKeywordTypos(query)
	query = quoteOrderDetails(query)
	query = fixPlaceholderColumns(query)
	return query
}

// Rules returns the full ordered rule set with default options,
// exposed so each rule can be tested in isolation.
func Rules() []Rule {
	return rules(Options{})
}

func rules(opts Options) []Rule {
	return []Rule{
		{Name: "keyword_typos", Apply: fixKeywordTypos},
		{Name: "quote_order_details", Apply: quoteOrderDetails},
		{Name: "placeholder_columns", Apply: fixPlaceholderColumns},
		{Name: "collapse_month_range", Apply: collapseMonthRange},
		{Name: "discount_default", Apply: fixDiscountDefault},
		{Name: "aggregate_division", Apply: func(q string) string {
			return removeAggregateDivision(q, opts.IntendedAverage)
		}},
		{Name: "stray_filters", Apply: dropStrayFilters},
	}
}

// reFenceLang matches a language identifier on the line that opens a
// fence, such as "sql" or "json".
var reFenceLang = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

// StripFences removes a Markdown code-fence wrapper from model output,
// including any language identifier after the opening fence.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	i := strings.Index(s, "```")
	if i < 0 {
		return s
	}
	s = s[i+len("```"):]
	if j := strings.Index(s, "```"); j >= 0 {
		s = s[:j]
	}
	if j := strings.IndexByte(s, '\n'); j >= 0 && reFenceLang.MatchString(strings.TrimSpace(s[:j])) {
		s = s[j+1:]
	}
	return strings.TrimSpace(s)
}

// ---- rule 1: keyword misspellings ----

var keywordTypos = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)\bstrf_time\b`), "strftime"},
	{regexp.MustCompile(`(?i)\bstrftme\b`), "strftime"},
	{regexp.MustCompile(`(?i)\bstrfime\b`), "strftime"},
	{regexp.MustCompile(`(?i)\bbetweeen\b`), "BETWEEN"},
	{regexp.MustCompile(`(?i)\bbetwen\b`), "BETWEEN"},
}

func fixKeywordTypos(q string) string {
	for _, t := range keywordTypos {
		q = t.re.ReplaceAllString(q, t.replacement)
	}
	return q
}

// ---- rule 2: multi-word table quoting ----

// RE2 has no lookbehind, so already-quoted occurrences are parked on a
// sentinel before the unquoted forms are rewritten. The sentinel text
// must not itself match reUnquotedOD.
const odSentinel = "\x00OD\x00"

var (
	reQuotedOD   = regexp.MustCompile(`"Order Details"|\[Order Details\]`)
	reUnquotedOD = regexp.MustCompile(`(?i)\border[ _]?details\b`)
)

func quoteOrderDetails(q string) string {
	q = reQuotedOD.ReplaceAllString(q, odSentinel)
	q = reUnquotedOD.ReplaceAllString(q, `"Order Details"`)
	return strings.ReplaceAll(q, odSentinel, `"Order Details"`)
}

// ---- rule 3: placeholder column tokens ----

var rePlaceholderCol = regexp.MustCompile(`(?i)<column>|<col>|\?column\?|\byour_column\b`)

func fixPlaceholderColumns(q string) string {
	return rePlaceholderCol.ReplaceAllString(q, "od.Discount")
}

// ---- rule 4: single-month BETWEEN collapse ----

var reMonthRange = regexp.MustCompile(
	`(?i)([A-Za-z_]\w*(?:\.\w+)?)\s+BETWEEN\s+'(\d{4})-(\d{2})-01'\s+AND\s+'(\d{4})-(\d{2})-\d{2}'`)

func collapseMonthRange(q string) string {
	return reMonthRange.ReplaceAllStringFunc(q, func(match string) string {
		m := reMonthRange.FindStringSubmatch(match)
		col, y1, mo1, y2, mo2 := m[1], m[2], m[3], m[4], m[5]
		if y1 != y2 || mo1 != mo2 {
			return match
		}
		return fmt.Sprintf("strftime('%%Y-%%m', %s) = '%s-%s'", col, y1, mo1)
	})
}

// ---- rule 5: discount null default ----

// The qualifier is optional so the bare column form is caught too.
var reDiscountDefault = regexp.MustCompile(`(?i)\b(IFNULL|COALESCE)\(\s*((?:[A-Za-z_][\w.]*)?discount)\s*,\s*-1(?:\.0)?\s*\)`)

func fixDiscountDefault(q string) string {
	return reDiscountDefault.ReplaceAllString(q, "${1}(${2}, 0)")
}

// ---- rule 6: spurious division of a total by order count ----

var (
	// The SUM body allows two levels of paren nesting, enough for
	// revenue formulas like SUM(p * q * (1 - IFNULL(d, 0))).
	reAggDivision = regexp.MustCompile(
		`(?i)(SUM\s*\((?:[^()]|\((?:[^()]|\([^()]*\))*\))*\))\s*/\s*COUNT\s*\(\s*DISTINCT\s+[\w".]*OrderID[\w".]*\s*\)(\s+AS\s+(\w+))?`)
	reAverageAlias = regexp.MustCompile(`(?i)aov|avg|average`)
)

func removeAggregateDivision(q string, intendedAverage bool) string {
	if intendedAverage {
		return q
	}
	return reAggDivision.ReplaceAllStringFunc(q, func(match string) string {
		m := reAggDivision.FindStringSubmatch(match)
		sum, asClause, alias := m[1], m[2], m[3]
		if alias != "" && reAverageAlias.MatchString(alias) {
			// The alias says the average is intentional.
			return match
		}
		return sum + asClause
	})
}

// ---- rule 7: filters on tables that were never joined ----

var (
	reFromJoin = regexp.MustCompile(
		`(?i)\b(?:FROM|JOIN)\s+("[^"]+"|\[[^\]]+\]|[A-Za-z_]\w*)(?:\s+(?:AS\s+)?([A-Za-z_]\w*))?`)
	rePredicate = regexp.MustCompile(
		`(?i)\b(WHERE|AND)\s+([A-Za-z_]\w*)\.[A-Za-z_]\w*\s*(?:<>|<=|>=|!=|=|<|>|LIKE)\s*(?:'[^']*'|[\w.]+)`)
	reWhereAnd      = regexp.MustCompile(`(?i)\bWHERE\s+AND\b`)
	reDanglingWhere = regexp.MustCompile(`(?i)\bWHERE\s*(GROUP\s+BY|ORDER\s+BY|LIMIT|HAVING|\)|;|$)`)

	sqlClauseWords = map[string]bool{
		"on": true, "where": true, "join": true, "left": true, "right": true,
		"inner": true, "outer": true, "cross": true, "natural": true,
		"group": true, "order": true, "limit": true, "having": true,
		"union": true, "using": true, "set": true, "as": true,
	}
)

func dropStrayFilters(q string) string {
	sources := make(map[string]bool)
	for _, m := range reFromJoin.FindAllStringSubmatch(q, -1) {
		name := strings.Trim(m[1], `"[]`)
		sources[strings.ToLower(name)] = true
		if alias := strings.ToLower(m[2]); alias != "" && !sqlClauseWords[alias] {
			sources[alias] = true
		}
	}
	if len(sources) == 0 {
		return q
	}

	q = rePredicate.ReplaceAllStringFunc(q, func(match string) string {
		m := rePredicate.FindStringSubmatch(match)
		keyword, qualifier := m[1], strings.ToLower(m[2])
		if sources[qualifier] {
			return match
		}
		if strings.EqualFold(keyword, "WHERE") {
			return "WHERE"
		}
		return ""
	})

	q = reWhereAnd.ReplaceAllString(q, "WHERE")
	q = reDanglingWhere.ReplaceAllString(q, "$1")
	return strings.TrimSpace(q)
}
