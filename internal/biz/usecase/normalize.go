package usecase

import (
	"regexp"
	"strings"
)

var (
	trailingBlanksRe = regexp.MustCompile(`[ \t]+\n`)
	newlineRunRe     = regexp.MustCompile(`\n{3,}`)

	// Trailing lines Telegram clients paste along with the message body:
	// view counters, bare numbers and the post time.
	noiseLineRes = []*regexp.Regexp{
		regexp.MustCompile(`^\d+$`),
		regexp.MustCompile(`^\d{1,2}:\d{2}$`),
		regexp.MustCompile(`^👁\x{FE0F}?\s*\d[\d.,]*[kKmM]?$`),
	}
)

// CleanText normalizes spacing without touching content lines
func CleanText(raw string) string {
	t := strings.ReplaceAll(raw, "\u00a0", " ")
	t = trailingBlanksRe.ReplaceAllString(t, "\n")
	t = newlineRunRe.ReplaceAllString(t, "\n\n")
	return strings.TrimSpace(t)
}

// Normalize strips noise from a raw chat message.
// It never fails: garbage in yields an empty string.
func Normalize(raw string) string {
	cleaned := CleanText(raw)
	if cleaned == "" {
		return ""
	}

	lines := strings.Split(cleaned, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRight(ln, " \t\r")
	}
	lines = dropTrailingBlank(lines)

	for len(lines) > 0 && isNoiseLine(lines[len(lines)-1]) {
		lines = dropTrailingBlank(lines[:len(lines)-1])
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func isNoiseLine(line string) bool {
	s := strings.TrimSpace(line)
	for _, re := range noiseLineRes {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func dropTrailingBlank(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
