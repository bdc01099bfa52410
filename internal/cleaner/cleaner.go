package cleaner

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// DefaultThreshold is the minimum number of characters a paragraph, list or
// table row needs to survive cleaning.
const DefaultThreshold = 40

// languageSampleWords caps how many words of kept text feed language
// detection.
const languageSampleWords = 100

// noiseSelector matches elements that never carry page content.
const noiseSelector = "script, style, noscript, template, svg, iframe, nav, header, footer, aside, form, " +
	"[hidden], [aria-hidden=\"true\"]"

// Result is the outcome of cleaning one document.
type Result struct {
	// Title is the text of the first <title> element.
	Title string

	// Markdown is the cleaned content. It is empty or ends with a newline.
	Markdown string

	// Links are the absolute (when a base URL is set) link targets found in
	// kept blocks, in document order without duplicates.
	Links []string

	// Kept and Dropped count content blocks that passed or failed the
	// length threshold. Duplicate blocks are counted in neither.
	Kept    int
	Dropped int

	// Language is the ISO 639-3 code of the detected content language, or
	// empty when the page has no text to detect it from.
	Language string
}

// Cleaner converts HTML into markdown. The zero value is not usable; create
// one with New. A Cleaner is immutable and safe for concurrent use.
type Cleaner struct {
	threshold int
	baseURL   *url.URL
	noise     []string
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithThreshold sets the minimum block length in characters. Negative values
// are treated as zero, which keeps every non-empty block.
func WithThreshold(n int) Option {
	return func(c *Cleaner) {
		c.threshold = max(n, 0)
	}
}

// WithBaseURL resolves relative link targets against rawURL. An unparsable
// or relative rawURL is ignored and links are kept as written.
func WithBaseURL(rawURL string) Option {
	return func(c *Cleaner) {
		u, err := url.Parse(strings.TrimSpace(rawURL))
		if err != nil || !u.IsAbs() {
			return
		}
		c.baseURL = u
	}
}

// WithNoise removes elements matching the given CSS selectors in addition to
// the built-in ones. These usually come from a site's excludeTags setting.
// Selectors that do not compile are skipped; see ValidSelector.
func WithNoise(selectors ...string) Option {
	return func(c *Cleaner) {
		for _, s := range selectors {
			if s = strings.TrimSpace(s); ValidSelector(s) {
				c.noise = append(c.noise, s)
			}
		}
	}
}

// ValidSelector reports whether s is a non-empty CSS selector the cleaner
// can apply.
func ValidSelector(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	_, err := cascadia.Compile(s)
	return err == nil
}

// New creates a Cleaner with DefaultThreshold.
func New(opts ...Option) *Cleaner {
	c := &Cleaner{
		threshold: DefaultThreshold,
		noise:     []string{noiseSelector},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clean is a shortcut for New(WithThreshold(threshold)).Clean that returns
// only the markdown.
func Clean(rawHTML string, threshold int) (string, error) {
	result, err := New(WithThreshold(threshold)).Clean(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}
	return result.Markdown, nil
}

// Clean parses the HTML from r and renders its content as markdown.
//
// Content is taken from the first <main>, else the first <article>, else
// <body>. Headings and code blocks are always kept. Paragraphs, lists,
// block quotes, table rows and loose text are dropped when their visible
// text is shorter than the threshold. Identical blocks are emitted once.
func (c *Cleaner) Clean(r io.Reader) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	result := &Result{
		Title: collapse(doc.Find("title").First().Text()),
	}

	for _, selector := range c.noise {
		doc.Find(selector).Remove()
	}

	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Find("article").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		return result, nil
	}

	w := &walker{
		cleaner:  c,
		seen:     make(map[string]struct{}),
		linkSeen: make(map[string]struct{}),
	}
	w.walk(root.Nodes[0])
	w.flush()

	if len(w.blocks) > 0 {
		result.Markdown = norm.NFC.String(strings.Join(w.blocks, "\n\n")) + "\n"
	}
	result.Links = w.links
	result.Kept = w.kept
	result.Dropped = w.dropped
	result.Language = detectLanguage(result.Title + " " + strings.Join(w.sample, " "))
	return result, nil
}

// detectLanguage returns the ISO 639-3 code of the language text is written
// in.
func detectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return whatlanggo.Detect(text).Lang.Iso6393()
}

// walker accumulates markdown blocks while visiting the DOM.
type walker struct {
	cleaner *Cleaner
	blocks  []string
	seen    map[string]struct{}

	// looseMD and looseText collect inline content found directly inside
	// container elements until the next block boundary.
	looseMD   strings.Builder
	looseText strings.Builder

	// pending holds links of the inline content being built. They are
	// committed only when the block is kept.
	pending  []string
	links    []string
	linkSeen map[string]struct{}

	kept    int
	dropped int

	// sample holds the leading words of kept text for language detection.
	sample []string
}

// walk visits the children of n, emitting a block at every block boundary.
func (w *walker) walk(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			w.looseMD.WriteString(c.Data)
			w.looseText.WriteString(c.Data)
			continue
		case html.ElementNode:
		default:
			continue
		}

		if level := headingLevel(c.Data); level > 0 {
			w.flush()
			md, text := w.inline(c)
			if md = collapse(md); md != "" {
				w.add(strings.Repeat("#", level)+" "+md, text, false)
			}
			continue
		}

		switch c.Data {
		case "p", "tr":
			w.flush()
			md, text := w.inline(c)
			w.add(collapse(md), text, true)
		case "blockquote":
			w.flush()
			md, text := w.inline(c)
			if md = collapse(md); md != "" {
				w.add("> "+md, text, true)
			}
		case "ul", "ol":
			w.flush()
			var text strings.Builder
			lines := w.listLines(c, 0, &text)
			w.add(strings.Join(lines, "\n"), text.String(), true)
		case "pre":
			w.flush()
			w.codeBlock(c)
		case "hr":
			w.flush()
		default:
			if isInline(c.Data) {
				md, text := w.inlineNode(c)
				w.looseMD.WriteString(md)
				w.looseText.WriteString(text)
				continue
			}
			w.flush()
			w.walk(c)
			w.flush()
		}
	}
}

// flush emits the accumulated loose inline content as a paragraph.
func (w *walker) flush() {
	md := collapse(w.looseMD.String())
	text := w.looseText.String()
	w.looseMD.Reset()
	w.looseText.Reset()
	w.add(md, text, true)
}

// add appends a block. When filtered is set, blocks whose visible text is
// shorter than the threshold are dropped.
func (w *walker) add(md, text string, filtered bool) {
	links := w.pending
	w.pending = nil

	if md == "" {
		return
	}
	if filtered && utf8.RuneCountInString(collapse(text)) < w.cleaner.threshold {
		w.dropped++
		return
	}
	if _, dup := w.seen[md]; dup {
		return
	}
	w.seen[md] = struct{}{}
	w.blocks = append(w.blocks, md)
	w.kept++
	if room := languageSampleWords - len(w.sample); room > 0 {
		words := strings.Fields(text)
		w.sample = append(w.sample, words[:min(room, len(words))]...)
	}

	for _, link := range links {
		if _, ok := w.linkSeen[link]; ok {
			continue
		}
		w.linkSeen[link] = struct{}{}
		w.links = append(w.links, link)
	}
}

// listLines renders the items of a ul or ol element, recursing into nested
// lists with two spaces of indentation per level.
func (w *walker) listLines(n *html.Node, depth int, text *strings.Builder) []string {
	ordered := n.Data == "ol"
	indent := strings.Repeat("  ", depth)

	var lines []string
	index := 0
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		index++

		md, itemText := w.inline(li)
		if md = collapse(md); md != "" {
			marker := "- "
			if ordered {
				marker = strconv.Itoa(index) + ". "
			}
			lines = append(lines, indent+marker+md)
			text.WriteString(itemText)
			text.WriteString(" ")
		}

		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol") {
				lines = append(lines, w.listLines(c, depth+1, text)...)
			}
		}
	}
	return lines
}

// codeBlock renders a pre element as a fenced block, preserving whitespace.
func (w *walker) codeBlock(n *html.Node) {
	body := strings.Trim(textOf(n), "\n")
	if strings.TrimSpace(body) == "" {
		return
	}
	w.add("```"+languageOf(n)+"\n"+body+"\n```", body, false)
}

// inline renders the children of n as inline markdown and plain text.
func (w *walker) inline(n *html.Node) (string, string) {
	var md, text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		m, t := w.inlineNode(c)
		md.WriteString(m)
		text.WriteString(t)
	}
	return md.String(), text.String()
}

func (w *walker) inlineNode(n *html.Node) (string, string) {
	switch n.Type {
	case html.TextNode:
		return n.Data, n.Data
	case html.ElementNode:
	default:
		return "", ""
	}

	switch n.Data {
	case "ul", "ol", "img":
		return "", ""
	case "br":
		return " ", " "
	case "a":
		md, text := w.inline(n)
		href := w.resolveURL(getAttr(n, "href"))
		if href == "" || strings.TrimSpace(md) == "" {
			return md, text
		}
		w.pending = append(w.pending, href)
		return wrap(md, "[", "]("+href+")"), text
	case "strong", "b":
		md, text := w.inline(n)
		return wrap(md, "**", "**"), text
	case "em", "i":
		md, text := w.inline(n)
		return wrap(md, "_", "_"), text
	case "code":
		text := textOf(n)
		return wrap(text, "`", "`"), text
	}

	md, text := w.inline(n)
	if !isInline(n.Data) {
		return " " + md + " ", " " + text + " "
	}
	return md, text
}

// resolveURL resolves href against the base URL. Script, data and
// fragment-only targets are discarded.
func (w *walker) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	if href == "" ||
		strings.HasPrefix(href, "#") ||
		strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "data:") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if w.cleaner.baseURL == nil {
		return u.String()
	}
	return w.cleaner.baseURL.ResolveReference(u).String()
}

// wrap surrounds the non-space part of s with opening and closing, keeping
// surrounding whitespace outside the markers.
func wrap(s, opening, closing string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	start := strings.Index(s, trimmed)
	return s[:start] + opening + collapse(trimmed) + closing + s[start+len(trimmed):]
}

// collapse joins the whitespace separated fields of s with single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

var inlineElements = map[string]struct{}{
	"a": {}, "abbr": {}, "b": {}, "bdi": {}, "bdo": {}, "br": {}, "cite": {},
	"code": {}, "data": {}, "del": {}, "dfn": {}, "em": {}, "i": {}, "img": {},
	"ins": {}, "kbd": {}, "label": {}, "mark": {}, "q": {}, "s": {}, "samp": {},
	"small": {}, "span": {}, "strong": {}, "sub": {}, "sup": {}, "time": {},
	"u": {}, "var": {}, "wbr": {},
}

func isInline(tag string) bool {
	_, ok := inlineElements[tag]
	return ok
}

// languageOf returns the "language-xxx" or "lang-xxx" class of a pre element
// or its code child.
func languageOf(pre *html.Node) string {
	candidates := []*html.Node{pre}
	for c := pre.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "code" {
			candidates = append(candidates, c)
			break
		}
	}
	for _, n := range candidates {
		for _, class := range strings.Fields(getAttr(n, "class")) {
			for _, prefix := range []string{"language-", "lang-"} {
				if lang, ok := strings.CutPrefix(class, prefix); ok && lang != "" {
					return lang
				}
			}
		}
	}
	return ""
}

// textOf returns the concatenated text of n and its descendants.
func textOf(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
