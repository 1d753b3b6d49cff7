package usecase

import (
	"regexp"
	"strings"
)

// lineRule rewrites a single line when its pattern matches
type lineRule struct {
	name    string
	re      *regexp.Regexp
	rewrite func(m []string) string
}

// textRule rewrites the whole message, line by line
type textRule struct {
	name  string
	apply func(lines []string) []string
}

const number = `([0-9][0-9.,]*)`

var lineRules = []lineRule{
	{
		name:    "direction_limit",
		re:      regexp.MustCompile(`(?i)^\s*(sell|buy)\s+limit\s*$`),
		rewrite: func(m []string) string { return capitalize(m[1]) },
	},
	{
		name:    "direction_bang",
		re:      regexp.MustCompile(`(?i)^\s*(sell|buy)!+\s*$`),
		rewrite: func(m []string) string { return capitalize(m[1]) },
	},
	{
		name:    "entry_label",
		re:      regexp.MustCompile(`(?i)^\s*(entry\s*price|entry|e)\b\s*[:=]?\s*` + number + `\b.*$`),
		rewrite: func(m []string) string { return "E: " + m[2] },
	},
	{
		name:    "take_profit_label",
		re:      regexp.MustCompile(`(?i)^\s*(tp|take\s*profit)\b\s*[:=]?\s*` + number + `\b.*$`),
		rewrite: func(m []string) string { return "TP: " + m[2] },
	},
	{
		name:    "stop_loss_label",
		re:      regexp.MustCompile(`(?i)^\s*(sl|stop\s*loss|stop|si)\b\s*[:=]?\s*` + number + `\b.*$`),
		rewrite: func(m []string) string { return "SL: " + m[2] },
	},
}

var textRules = []textRule{
	{name: "rebuild_canonical", apply: rebuildCanonical},
	{name: "entry_from_at", apply: entryFromAt},
}

var (
	signalDirectionRe = regexp.MustCompile(`(?i)\b(buy|sell)(?:\s+limit)?\b`)
	entryLineRe       = regexp.MustCompile(`(?i)^\s*e\s*:\s*` + number + `\s*$`)
	tpLineRe          = regexp.MustCompile(`(?i)^\s*tp\s*:\s*` + number + `\s*$`)
	slLineRe          = regexp.MustCompile(`(?i)^\s*sl\s*:\s*` + number + `\s*$`)
	slashPairRe       = regexp.MustCompile(`(?i)\b([a-z]{3})\s*/\s*([a-z]{3})\b`)
	atEntryRe         = regexp.MustCompile(`(?i)@\s*` + number)
	masterHeaderRe    = regexp.MustCompile(`(?i)^\s*master\s*:\s*master_\d+\s*$`)
)

// canonicalShape is the exact layout rebuildCanonical emits when a pair is known
var canonicalShape = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z]{3}[A-Z]{3}$`),
	regexp.MustCompile(`^(Buy|Sell)$`),
	regexp.MustCompile(`^E: ` + number + `$`),
	regexp.MustCompile(`^TP: ` + number + `$`),
	regexp.MustCompile(`^SL: ` + number + `$`),
}

// maxRulePasses bounds the fixed-point loop; the cascade settles in two
const maxRulePasses = 4

// Canonicalize rewrites a normalized signal into the converter's fixed
// field layout and prepends the "Master : <hint>" header.
// Applying it twice yields the same result as applying it once.
func Canonicalize(text, masterHint string) string {
	lines := stripMasterHeaders(strings.Split(text, "\n"), masterHint)
	if isCanonical(lines) {
		return withHeader(strings.TrimSpace(strings.Join(lines, "\n")), masterHint)
	}

	for i := 0; i < maxRulePasses; i++ {
		next := applyRules(lines)
		if equalLines(next, lines) {
			break
		}
		lines = next
	}

	return withHeader(strings.TrimSpace(strings.Join(lines, "\n")), masterHint)
}

func withHeader(body, masterHint string) string {
	if masterHint == "" {
		return body
	}
	if body == "" {
		return "Master : " + masterHint
	}
	return "Master : " + masterHint + "\n" + body
}

func applyRules(lines []string) []string {
	out := make([]string, len(lines))
	for i, ln := range lines {
		out[i] = rewriteLine(ln)
	}
	for _, r := range textRules {
		out = r.apply(out)
	}
	return out
}

func rewriteLine(line string) string {
	for _, r := range lineRules {
		if m := r.re.FindStringSubmatch(line); m != nil {
			return r.rewrite(m)
		}
	}
	return line
}

func rebuildCanonical(lines []string) []string {
	text := strings.Join(lines, "\n")
	dir := signalDirectionRe.FindStringSubmatch(text)
	entry := firstLineMatch(lines, entryLineRe)
	tp := firstLineMatch(lines, tpLineRe)
	sl := firstLineMatch(lines, slLineRe)
	if dir == nil || entry == "" || tp == "" || sl == "" {
		return lines
	}

	out := make([]string, 0, 5)
	if pair := detectPair(lines); pair != "" {
		out = append(out, pair)
	}
	return append(out, capitalize(dir[1]), "E: "+entry, "TP: "+tp, "SL: "+sl)
}

func entryFromAt(lines []string) []string {
	if firstLineMatch(lines, entryLineRe) != "" {
		return lines
	}
	m := atEntryRe.FindStringSubmatch(strings.Join(lines, "\n"))
	if m == nil {
		return lines
	}
	return append([]string{"E: " + m[1]}, lines...)
}

// detectPair only trusts the XXX/YYY form; a bare six-letter word is not a pair
func detectPair(lines []string) string {
	if m := slashPairRe.FindStringSubmatch(strings.Join(lines, "\n")); m != nil {
		return strings.ToUpper(m[1] + m[2])
	}
	return ""
}

// isCanonical reports whether the message is exactly pair, direction, E, TP and SL
func isCanonical(lines []string) bool {
	body := strings.Split(strings.TrimSpace(strings.Join(lines, "\n")), "\n")
	if len(body) != len(canonicalShape) {
		return false
	}
	for i, re := range canonicalShape {
		if !re.MatchString(body[i]) {
			return false
		}
	}
	return true
}

// stripMasterHeaders drops "Master : master_<n>" lines and the header
// this package would emit for masterHint.
func stripMasterHeaders(lines []string, masterHint string) []string {
	own := strings.ToLower("Master : " + masterHint)
	out := lines[:0:0]
	for _, ln := range lines {
		if masterHeaderRe.MatchString(ln) {
			continue
		}
		if masterHint != "" && strings.ToLower(strings.TrimSpace(ln)) == own {
			continue
		}
		out = append(out, ln)
	}
	return out
}

func firstLineMatch(lines []string, re *regexp.Regexp) string {
	for _, ln := range lines {
		if m := re.FindStringSubmatch(ln); m != nil {
			return m[1]
		}
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
