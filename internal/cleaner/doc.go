// Package cleaner turns scraped HTML into compact markdown.
//
// The service already returns markdown for most pages, but it keeps
// navigation menus, cookie banners and footers. Cleaner strips those
// elements, drops text blocks that are too short to carry content, and
// renders what remains as markdown with headings, paragraphs, lists, code
// blocks and links. The language of the kept text is detected and reported
// as an ISO 639-3 code.
//
// # Usage
//
//	md, err := cleaner.Clean(page.HTML, cleaner.DefaultThreshold)
//
// or, to resolve relative links against the page URL:
//
//	c := cleaner.New(cleaner.WithThreshold(60), cleaner.WithBaseURL(page.Metadata.SourceURL))
//	result, err := c.Clean(strings.NewReader(page.HTML))
package cleaner
