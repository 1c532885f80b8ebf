package identify

import "strings"

// Match score tiers. The Firefox tier sits between prefix and substring so a
// browser window titled "<page> - Mozilla Firefox" outranks windows that
// merely contain the word somewhere in their title.
const (
	scoreExact     = 100
	scorePrefix    = 90
	scoreFirefox   = 88
	scoreSubstring = 70
)

const firefoxTitleSuffix = "mozilla firefox"

// MatchScore rates how well a window title matches an extracted taskbar
// name. Zero means no match.
func MatchScore(windowTitle, extractedName string) int {
	title := strings.ToLower(windowTitle)
	name := strings.ToLower(extractedName)

	switch {
	case title == name:
		return scoreExact
	case strings.HasPrefix(title, name):
		return scorePrefix
	case name == "firefox" && strings.HasSuffix(strings.TrimSpace(title), firefoxTitleSuffix):
		return scoreFirefox
	case strings.Contains(title, name):
		return scoreSubstring
	default:
		return 0
	}
}
