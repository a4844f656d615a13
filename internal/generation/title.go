package generation

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const titleWordLimit = 6

var titleCaser = cases.Title(language.English)

// TitleFromPrompt derives a default track title from the opening words of a
// description prompt. Users can always override it in the request.
func TitleFromPrompt(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) == 0 {
		return ""
	}
	if len(words) > titleWordLimit {
		words = words[:titleWordLimit]
	}
	return titleCaser.String(strings.Join(words, " "))
}
