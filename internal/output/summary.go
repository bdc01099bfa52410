package output

import (
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/simplecrawl/pkg/schema"
)

// SummaryWriter renders a crawl job summary as markdown.
type SummaryWriter struct {
	output io.Writer
	now    func() time.Time
}

// NewSummaryWriter creates a SummaryWriter that outputs to the given writer.
func NewSummaryWriter(output io.Writer) *SummaryWriter {
	return &SummaryWriter{
		output: output,
		now:    time.Now,
	}
}

// Write renders the summary of job. pages are the files written for the job
// and may be nil when nothing was saved.
func (w *SummaryWriter) Write(job schema.CrawlJob, pages []PageFiles) error {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, job, pages)
	w.writeAlert(md, job)
	w.writeStatusCodes(md, job)
	w.writePages(md, job, pages)
	w.writeFooter(md)

	return md.Build()
}

func (w *SummaryWriter) writeHeader(md *markdown.Markdown, job schema.CrawlJob, pages []PageFiles) {
	md.H1("Crawl Summary")
	md.PlainText("")

	expires := "-"
	if job.ExpiresAt != nil {
		expires = job.ExpiresAt.UTC().Format(time.RFC3339)
	}
	seed := job.URL
	if seed == "" {
		seed = "-"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Job ID", "`" + job.ID + "`"},
			{"Seed URL", cell(seed, 80)},
			{"Status", string(job.Status)},
			{"Progress", strconv.Itoa(job.Completed) + "/" + strconv.Itoa(job.Total)},
			{"Pages Saved", strconv.Itoa(len(pages))},
			{"Expires At", expires},
			{"Generated", w.now().UTC().Format(time.RFC3339)},
		},
	})
	md.PlainText("")
}

func (w *SummaryWriter) writeAlert(md *markdown.Markdown, job schema.CrawlJob) {
	switch job.Status {
	case schema.StatusCompleted:
		md.Tip("The crawl completed.")
	case schema.StatusFailed:
		md.Cautionf("The crawl failed after %d of %d page(s). Saved pages are partial.", job.Completed, job.Total)
	case schema.StatusCancelled:
		md.Warningf("The crawl was cancelled after %d of %d page(s).", job.Completed, job.Total)
	default:
		md.Importantf("The crawl had not finished (status %s). Saved pages are partial.", job.Status)
	}
	md.PlainText("")
}

// writeStatusCodes writes a mermaid pie chart of page status codes.
func (w *SummaryWriter) writeStatusCodes(md *markdown.Markdown, job schema.CrawlJob) {
	if len(job.Results) == 0 {
		return
	}

	counts := make(map[int]uint64)
	for _, page := range job.Results {
		counts[page.Metadata.StatusCode]++
	}
	codes := make([]int, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("HTTP Status Codes"),
		piechart.WithShowData(true),
	)
	for _, code := range codes {
		chart.LabelAndIntValue(strconv.Itoa(code), counts[code])
	}

	md.H2("Status Codes")
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *SummaryWriter) writePages(md *markdown.Markdown, job schema.CrawlJob, pages []PageFiles) {
	md.H2("Pages")
	md.PlainText("")

	if len(pages) == 0 {
		if len(job.Results) == 0 {
			md.PlainText("No pages were returned.")
		} else {
			md.PlainText("No files were written.")
		}
		md.PlainText("")
		return
	}

	rows := make([][]string, len(pages))
	for i, p := range pages {
		raw := make([]string, len(p.Raw))
		for j, path := range p.Raw {
			raw[j] = relativeLink(path)
		}
		cleaned := "-"
		if p.Cleaned != "" {
			cleaned = relativeLink(p.Cleaned)
		}
		title := p.Title
		if title == "" {
			title = "-"
		}
		rows[i] = []string{
			cell(title, 50),
			cell(p.SourceURL, 70),
			strconv.Itoa(p.StatusCode),
			orDash(p.Language),
			orDash(strings.Join(raw, " ")),
			cleaned,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Title", "Source URL", "Status", "Language", "Raw", "Cleaned"},
		Rows:   rows,
	})
	md.PlainText("")

	var failed []string
	for _, page := range job.Results {
		if page.Metadata.Error != "" {
			failed = append(failed, page.Metadata.SourceURL+": "+page.Metadata.Error)
		}
	}
	if len(failed) > 0 {
		md.Details("Page errors", strings.Join(failed, "\n"))
		md.PlainText("")
	}
}

func (w *SummaryWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Generated by [simplecrawl](https://github.com/nao1215/simplecrawl)*")
}

// relativeLink returns a markdown link to path relative to the job directory.
func relativeLink(path string) string {
	rel := filepath.ToSlash(filepath.Join(filepath.Base(filepath.Dir(path)), filepath.Base(path)))
	return "[" + filepath.Base(path) + "](" + rel + ")"
}

// cell makes s safe for a table cell and truncates it to maxLen runes.
func cell(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
