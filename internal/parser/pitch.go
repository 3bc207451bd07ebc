package parser

import (
	"regexp"
	"strconv"
	"time"

	"github.com/aryannaik/pitch-finder/internal/event"
)

var (
	pitchKeywordPattern = regexp.MustCompile(`(?i)\b(?:pitch|apply|demo|speaker|present|application|submit|slot|opportunit)`)
	slotCountPattern    = regexp.MustCompile(`(?i)\b(\d{1,4})\s*(?:pitch|slot|speaker)`)
	deadlinePattern     = regexp.MustCompile(`(?i)\bdeadline(?:\s+(?:is|on|by))?[:\s]+([^;\n]{1,40})`)
)

// DetectPitchSlots returns pitch-slot details when text mentions pitching
// opportunities, or nil otherwise.
func (x *DateExtractor) DetectPitchSlots(text string, now time.Time) *event.PitchSlots {
	if !pitchKeywordPattern.MatchString(text) {
		return nil
	}

	slots := &event.PitchSlots{Available: true}

	if m := slotCountPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			slots.SlotCount = &n
		}
	}

	if m := deadlinePattern.FindStringSubmatch(text); m != nil {
		if dates := x.Extract(m[1], now); len(dates) > 0 {
			deadline := dates[0].Date
			slots.ApplicationDeadline = &deadline
		}
	}

	return slots
}
