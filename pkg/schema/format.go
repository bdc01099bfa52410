package schema

import (
	"strings"
)

// OutputFormat is a content representation the service can return for a
// scraped page.
type OutputFormat string

// Supported output formats.
const (
	FormatMarkdown       OutputFormat = "markdown"
	FormatHTML           OutputFormat = "html"
	FormatRawHTML        OutputFormat = "rawHtml"
	FormatLinks          OutputFormat = "links"
	FormatScreenshot     OutputFormat = "screenshot"
	FormatScreenshotFull OutputFormat = "screenshot@fullPage"
)

// DefaultFormats is used when a request does not name any format.
var DefaultFormats = []OutputFormat{FormatMarkdown}

var knownFormats = []OutputFormat{
	FormatMarkdown,
	FormatHTML,
	FormatRawHTML,
	FormatLinks,
	FormatScreenshot,
	FormatScreenshotFull,
}

// Formats returns every supported output format in documentation order.
func Formats() []OutputFormat {
	out := make([]OutputFormat, len(knownFormats))
	copy(out, knownFormats)
	return out
}

// ParseFormat converts s into an OutputFormat. Matching ignores case so that
// command line input such as "rawhtml" is accepted.
func ParseFormat(s string) (OutputFormat, error) {
	trimmed := strings.TrimSpace(s)
	for _, f := range knownFormats {
		if strings.EqualFold(string(f), trimmed) {
			return f, nil
		}
	}
	return "", invalid("formats", s, "unsupported output format")
}

// normalizeFormats validates formats, removes duplicates (keeping the first
// occurrence) and substitutes DefaultFormats for an empty list.
func normalizeFormats(field string, formats []OutputFormat) ([]OutputFormat, error) {
	if len(formats) == 0 {
		out := make([]OutputFormat, len(DefaultFormats))
		copy(out, DefaultFormats)
		return out, nil
	}

	seen := make(map[OutputFormat]bool, len(formats))
	out := make([]OutputFormat, 0, len(formats))
	for _, f := range formats {
		parsed, err := ParseFormat(string(f))
		if err != nil {
			return nil, invalid(field, string(f), "unsupported output format")
		}
		if seen[parsed] {
			continue
		}
		seen[parsed] = true
		out = append(out, parsed)
	}
	return out, nil
}
