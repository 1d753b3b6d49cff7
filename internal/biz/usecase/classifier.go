package usecase

import (
	"fmt"
	"regexp"
	"strings"
)

// ClassifierMode selects how strict signal detection is
type ClassifierMode string

const (
	// ClassifierStrict needs a number after every entry/tp/sl label
	ClassifierStrict ClassifierMode = "strict"
	// ClassifierLoose only needs the keywords to appear somewhere
	ClassifierLoose ClassifierMode = "loose"
)

// ParseClassifierMode validates a mode name, empty means strict
func ParseClassifierMode(s string) (ClassifierMode, error) {
	switch ClassifierMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ClassifierStrict:
		return ClassifierStrict, nil
	case ClassifierLoose:
		return ClassifierLoose, nil
	default:
		return "", fmt.Errorf("unknown classifier mode %q", s)
	}
}

var (
	spaceRunRe  = regexp.MustCompile(`\s+`)
	directionRe = regexp.MustCompile(`\b(buy|sell)(?:\s+limit)?\b`)
	entryRe     = regexp.MustCompile(`\b(entry\s*price|entry|e)\b(?:\s*[:=]\s*|\s+)[0-9]`)
	atPriceRe   = regexp.MustCompile(`@\s*[0-9]`)
	takeProfRe  = regexp.MustCompile(`\b(tp|take\s*profit)\b(?:\s*[:=]\s*|\s+)[0-9]`)
	stopLossRe  = regexp.MustCompile(`\b(sl|stop\s*loss|stop|si)\b(?:\s*[:=]\s*|\s+)[0-9]`)
)

// SignalClassifier is a pure, rule-based signal detector
type SignalClassifier struct {
	mode ClassifierMode
}

// NewSignalClassifier creates a classifier for the given mode
func NewSignalClassifier(mode ClassifierMode) *SignalClassifier {
	if mode == "" {
		mode = ClassifierStrict
	}
	return &SignalClassifier{mode: mode}
}

// LooksLikeSignal reports whether text carries direction, entry, stop and target
func (c *SignalClassifier) LooksLikeSignal(text string) bool {
	compact := strings.TrimSpace(spaceRunRe.ReplaceAllString(strings.ToLower(text), " "))
	if compact == "" {
		return false
	}
	if c.mode == ClassifierLoose {
		// strict acceptance implies loose acceptance
		return looseMatch(compact) || strictMatch(compact)
	}
	return strictMatch(compact)
}

func strictMatch(t string) bool {
	hasEntry := entryRe.MatchString(t) || atPriceRe.MatchString(t)
	return directionRe.MatchString(t) && hasEntry && takeProfRe.MatchString(t) && stopLossRe.MatchString(t)
}

func looseMatch(t string) bool {
	hasStop := strings.Contains(t, "stop") || strings.Contains(t, "sl")
	hasDirection := strings.Contains(t, "buy") || strings.Contains(t, "sell")
	return strings.Contains(t, "entry") && hasStop && strings.Contains(t, "tp") && hasDirection
}
