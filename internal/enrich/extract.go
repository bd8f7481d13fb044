package enrich

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/signlead/internal/lead"
)

var (
	// Only capitalised words may sit between the number and the suffix.
	streetAddress = regexp.MustCompile(`\b\d{1,6}\s+(?:[A-Z][A-Za-z0-9.'-]*\s+){0,4}?(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Way|Parkway|Pkwy|Highway|Hwy|Pike|Place|Pl|STREET|AVENUE|ROAD|BOULEVARD|DRIVE|HIGHWAY)\.?(?:[\s,;:)]|$)`)
	cityCode      = regexp.MustCompile(`\b([A-Z][A-Za-z.'-]+(?:\s[A-Z][A-Za-z.'-]+){0,2}),\s*([A-Z]{2})\b`)
	cityState     *regexp.Regexp

	phoneNumber = regexp.MustCompile(`(?:\+?1[-.\s]?)?(?:\(\d{3}\)\s?|\b\d{3}[-.\s])\d{3}[-.\s]\d{4}\b`)

	quarterShort = regexp.MustCompile(`(?i)\bQ([1-4])\s*(?:of\s+)?(\d{4})\b`)
	quarterLong  = regexp.MustCompile(`(?i)\b(first|second|third|fourth)\s+quarter\s+(?:of\s+)?(\d{4})\b`)
	monthYear    = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)\.?\s+(?:\d{1,2}(?:st|nd|rd|th)?,?\s+)?(\d{4})\b`)
	seasonYear   = regexp.MustCompile(`(?i)\b(spring|summer|fall|autumn|winter)\s+(?:of\s+)?(\d{4})\b`)
	bareYear     = regexp.MustCompile(`(?:^|[^\d.\-/#])\b(20\d{2})\b(?:[^\d\-/]|$)`)
	unitNumber   = regexp.MustCompile(`(?i)(?:\b(?:suite|ste\.?|unit|room|rm\.?)|#)\s*\d+`)
)

func init() {
	names := make([]string, len(lead.States))
	for i, s := range lead.States {
		names[i] = regexp.QuoteMeta(s.Name)
	}
	cityState = regexp.MustCompile(`\b([A-Z][A-Za-z.'-]+(?:\s[A-Z][A-Za-z.'-]+){0,2}),\s*(` + strings.Join(names, "|") + `)\b`)
}

// Location returns the best place description found in text: a street
// address, then "City, ST" within state, then the state name itself.
func Location(text, state string) string {
	if m := streetAddress.FindString(text); m != "" {
		return strings.TrimRight(m, " \t,;:).")
	}
	code := lead.Code(state)
	for _, m := range cityCode.FindAllStringSubmatch(text, -1) {
		if m[2] == code {
			return m[1] + ", " + m[2]
		}
	}
	for _, m := range cityState.FindAllStringSubmatch(text, -1) {
		if strings.EqualFold(m[2], state) {
			return m[1] + ", " + code
		}
	}
	return state
}

// Phone returns the first North American phone number in text.
func Phone(text string) string {
	if m := phoneNumber.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	return FallbackPhone
}

var (
	quarterWords = map[string]string{"first": "1", "second": "2", "third": "3", "fourth": "4"}
	monthNames   = map[string]string{
		"jan": "January", "feb": "February", "mar": "March", "apr": "April",
		"may": "May", "jun": "June", "jul": "July", "aug": "August",
		"sep": "September", "oct": "October", "nov": "November", "dec": "December",
	}
)

// Opening returns the most specific opening timeframe mentioned in text.
// Bare years only count within a year before to three years after now.
func Opening(text string, now time.Time) string {
	if m := quarterShort.FindStringSubmatch(text); m != nil {
		return "Q" + m[1] + " " + m[2]
	}
	if m := quarterLong.FindStringSubmatch(text); m != nil {
		return "Q" + quarterWords[strings.ToLower(m[1])] + " " + m[2]
	}
	if m := monthYear.FindStringSubmatch(text); m != nil {
		return monthNames[strings.ToLower(m[1])[:3]] + " " + m[2]
	}
	if m := seasonYear.FindStringSubmatch(text); m != nil {
		season := strings.ToLower(m[1])
		if season == "autumn" {
			season = "fall"
		}
		return strings.ToUpper(season[:1]) + season[1:] + " " + m[2]
	}
	year := now.Year()
	for _, m := range bareYear.FindAllStringSubmatch(withoutNumbers(text), -1) {
		y, err := strconv.Atoi(m[1])
		if err == nil && y >= year-1 && y <= year+3 {
			return m[1]
		}
	}
	if strings.Contains(strings.ToLower(text), "coming soon") {
		return ComingSoon
	}
	return TBA
}

// withoutNumbers blanks phone numbers, street addresses and unit numbers,
// whose digits read like years.
func withoutNumbers(text string) string {
	for _, re := range []*regexp.Regexp{phoneNumber, streetAddress, unitNumber} {
		text = re.ReplaceAllString(text, " ")
	}
	return text
}
