package output

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/simplecrawl/internal/cleaner"
	"github.com/nao1215/simplecrawl/pkg/schema"
	"golang.org/x/crypto/sha3"
)

const (
	// RawDir holds content exactly as the service returned it.
	RawDir = "raw"

	// CleanedDir holds markdown produced by the cleaner.
	CleanedDir = "cleaned"

	// SummaryFile is the name of the job summary in the job directory.
	SummaryFile = "summary.md"

	// maxSlugLength bounds the readable part of a file name.
	maxSlugLength = 60

	// hashLength is the number of hex characters of the SHA3-256 digest kept
	// in file names.
	hashLength = 12
)

// ErrInvalidJobID is returned when a job ID cannot be used as a directory
// name.
var ErrInvalidJobID = errors.New("invalid job ID for output directory")

// PageFiles lists the files written for one page.
type PageFiles struct {
	SourceURL  string
	Title      string
	StatusCode int

	// Raw are the paths of the unmodified markdown and HTML files.
	Raw []string

	// Cleaned is the path of the cleaned markdown, or empty when cleaning is
	// disabled or the page has no HTML.
	Cleaned string

	// Language is the ISO 639-3 code detected by the cleaner.
	Language string
}

// JobFiles lists the files written for one job.
type JobFiles struct {
	Dir     string
	Pages   []PageFiles
	Summary string
}

// Writer lays out pages below a root directory.
type Writer struct {
	root      string
	clean     bool
	threshold int
	noise     []string
}

// Option configures a Writer.
type Option func(*Writer)

// WithCleaning enables the cleaned/ tree. Pages that carry HTML are run
// through the cleaner with the given threshold and extra noise selectors.
func WithCleaning(threshold int, noise ...string) Option {
	return func(w *Writer) {
		w.clean = true
		w.threshold = threshold
		w.noise = noise
	}
}

// NewWriter creates a Writer rooted at root. The directory is created on the
// first write.
func NewWriter(root string, opts ...Option) *Writer {
	w := &Writer{
		root:      root,
		threshold: cleaner.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JobDir returns the directory used for jobID.
func (w *Writer) JobDir(jobID string) (string, error) {
	if jobID == "" || jobID == "." || jobID == ".." || strings.ContainsAny(jobID, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	return filepath.Join(w.root, jobID), nil
}

// WritePage writes the content of page into the job directory.
func (w *Writer) WritePage(jobID string, page schema.ScrapeResult) (PageFiles, error) {
	dir, err := w.JobDir(jobID)
	if err != nil {
		return PageFiles{}, err
	}

	files := PageFiles{
		SourceURL:  page.Metadata.SourceURL,
		Title:      page.Metadata.Title,
		StatusCode: page.Metadata.StatusCode,
	}
	name := FileName(page)

	if page.Markdown != "" {
		path := filepath.Join(dir, RawDir, name+".md")
		if err := writeFile(path, page.Markdown); err != nil {
			return files, err
		}
		files.Raw = append(files.Raw, path)
	}

	html := page.RawHTML
	if html == "" {
		html = page.HTML
	}
	if html != "" {
		path := filepath.Join(dir, RawDir, name+".html")
		if err := writeFile(path, html); err != nil {
			return files, err
		}
		files.Raw = append(files.Raw, path)
	}

	if w.clean && html != "" {
		c := cleaner.New(
			cleaner.WithThreshold(w.threshold),
			cleaner.WithBaseURL(page.Metadata.SourceURL),
			cleaner.WithNoise(w.noise...),
		)
		result, err := c.Clean(strings.NewReader(html))
		if err != nil {
			return files, fmt.Errorf("failed to clean %s: %w", page.Metadata.SourceURL, err)
		}
		if files.Title == "" {
			files.Title = result.Title
		}
		path := filepath.Join(dir, CleanedDir, name+".md")
		if err := writeFile(path, result.Markdown); err != nil {
			return files, err
		}
		files.Cleaned = path
		files.Language = result.Language
	}

	return files, nil
}

// WriteJob writes every page of job followed by the job summary.
func (w *Writer) WriteJob(job schema.CrawlJob) (*JobFiles, error) {
	dir, err := w.JobDir(job.ID)
	if err != nil {
		return nil, err
	}

	out := &JobFiles{Dir: dir}
	for _, page := range job.Results {
		files, err := w.WritePage(job.ID, page)
		if err != nil {
			return out, err
		}
		out.Pages = append(out.Pages, files)
	}

	summaryPath := filepath.Join(dir, SummaryFile)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return out, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Clean(summaryPath), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return out, fmt.Errorf("failed to create summary: %w", err)
	}
	if err := NewSummaryWriter(f).Write(job, out.Pages); err != nil {
		_ = f.Close()
		return out, fmt.Errorf("failed to write summary: %w", err)
	}
	if err := f.Close(); err != nil {
		return out, fmt.Errorf("failed to close summary: %w", err)
	}
	out.Summary = summaryPath

	return out, nil
}

// FileName returns "<slug>-<hash>" for page. The hash is taken over the
// source URL, or over the content when the page has no source URL.
func FileName(page schema.ScrapeResult) string {
	key := page.Metadata.SourceURL
	if key == "" {
		key = page.Markdown + page.RawHTML + page.HTML
	}
	sum := sha3.Sum256([]byte(key))
	return Slug(page.Metadata.SourceURL) + "-" + hex.EncodeToString(sum[:])[:hashLength]
}

// Slug turns a URL into a lower-case file name fragment made of letters,
// digits and single dashes. It returns "page" when nothing usable remains.
func Slug(rawURL string) string {
	text := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		text = u.Hostname() + u.Path
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return "page"
	}
	return slug
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
