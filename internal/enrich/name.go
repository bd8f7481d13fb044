package enrich

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var titleSeparators = []string{" - ", " | ", "|", " — ", "—", " – ", "–"}

var (
	trailingAction = regexp.MustCompile(`(?i)\s+(?:to open|to build|will open|set to|plans?|announces?|opens|opening|coming to|coming soon|expands?|breaks ground|broke ground|celebrates|is coming|files|unveils)\b.*$`)
	leadingArticle = regexp.MustCompile(`(?i)^(?:new|a|an|the)\s+`)
)

// Names that carry no information about the business.
var vacantNames = map[string]bool{
	"new": true, "grand": true, "grand opening": true, "now open": true,
	"coming soon": true, "new location": true, "new store": true, "opening": true,
}

// CleanName extracts a business name from a headline: the text before the
// first separator, minus trailing action phrases and leading articles.
func CleanName(title string) string {
	name := title
	cut := len(name)
	for _, sep := range titleSeparators {
		if i := strings.Index(name, sep); i >= 0 && i < cut {
			cut = i
		}
	}
	name = name[:cut]
	name = trailingAction.ReplaceAllString(name, "")
	for {
		stripped := leadingArticle.ReplaceAllString(name, "")
		if stripped == name {
			break
		}
		name = stripped
	}
	name = strings.Trim(strings.Join(strings.Fields(name), " "), " :,;.")

	if utf8.RuneCountInString(name) < 2 || vacantNames[strings.ToLower(name)] {
		return FallbackName
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return string([]rune(name)[:maxNameLen-3]) + "..."
	}
	return name
}
