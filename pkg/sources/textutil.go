package sources

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// summaryLen is the rune budget for derived summaries
const summaryLen = 200

var stripPolicy = bluemonday.StrictPolicy()

var (
	reAttrFragment = regexp.MustCompile(`\s*(?:class|style)\s*=\s*["'][^"']*["']`)
	reHorizSpace   = regexp.MustCompile("[ \t 　]+")
	reSpacedNL     = regexp.MustCompile(` *\n *`)
	reBlankLines   = regexp.MustCompile(`\n{3,}`)

	reDateISO    = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})`)
	reDateCJK    = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`)
	reDateSlash  = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})`)
	reDateNoYear = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})$`)

	rePageHTML = regexp.MustCompile(`createPageHTML\((\d+),\s*(\d+)`)
)

// CleanHTML normalizes scraped text: entities are decoded, all tags are
// stripped (script and style blocks drop their contents entirely), stray
// class=/style= attribute fragments left behind by sloppy CMS markup are
// removed, horizontal whitespace runs collapse to single spaces and
// blank-line runs collapse to one. Cleaning an already-clean string is
// a no-op.
func CleanHTML(s string) string {
	if s == "" {
		return ""
	}

	// decode first so tags hidden behind entities are stripped too,
	// then undo the sanitizer's own escaping of the remaining text
	s = html.UnescapeString(s)
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)

	s = reAttrFragment.ReplaceAllString(s, "")

	s = strings.ReplaceAll(s, "\r", "")
	s = reHorizSpace.ReplaceAllString(s, " ")
	s = reSpacedNL.ReplaceAllString(s, "\n")
	s = reBlankLines.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// Summarize derives a record summary: content truncated to 200 runes
// with a truncation marker, independently re-cleaned
func Summarize(content string) string {
	runes := []rune(content)
	if len(runes) > summaryLen {
		return CleanHTML(string(runes[:summaryLen]) + "...")
	}
	return CleanHTML(content)
}

// ParseDate parses the date shapes seen across university CMS
// templates: "2025-12-22", "2025年12月22日", "2025/12/22" and the
// year-less "12-22" (current year assumed). Anything else yields
// ok=false, never an error.
func ParseDate(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if m := reDateISO.FindStringSubmatch(s); m != nil {
		return makeDate(m[1], m[2], m[3])
	}
	if m := reDateCJK.FindStringSubmatch(s); m != nil {
		return makeDate(m[1], m[2], m[3])
	}
	if m := reDateSlash.FindStringSubmatch(s); m != nil {
		return makeDate(m[1], m[2], m[3])
	}
	if m := reDateNoYear.FindStringSubmatch(s); m != nil {
		return makeDate(strconv.Itoa(time.Now().Year()), m[1], m[2])
	}

	return time.Time{}, false
}

// makeDate builds a midnight timestamp, rejecting out-of-range fields
// instead of letting time.Date normalize them into a different day
func makeDate(ys, ms, ds string) (time.Time, bool) {
	year, _ := strconv.Atoi(ys)
	month, _ := strconv.Atoi(ms)
	day, _ := strconv.Atoi(ds)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// FindLabeled scans raw page text for the first "label: value" pattern
// among the given label strings. The scan is deliberately not scoped to
// any element because label placement is inconsistent across templates.
func FindLabeled(text string, labels ...string) string {
	if len(labels) == 0 {
		return ""
	}
	re := regexp.MustCompile(`(?:` + strings.Join(labels, "|") + `)[：:]\s*([^\s` + "　" + `<|]+)`)
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// createPageInfo extracts the (total, current) page counters from the
// createPageHTML(...) call that the CMS embeds in its listing pages
func createPageInfo(body string) (total, current int, ok bool) {
	m := rePageHTML.FindStringSubmatch(body)
	if m == nil {
		return 0, 0, false
	}
	total, _ = strconv.Atoi(m[1])
	current, _ = strconv.Atoi(m[2])
	return total, current, true
}
