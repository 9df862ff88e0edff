package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Twixes/mcpolice/internal/model"
	"github.com/Twixes/mcpolice/internal/violation"
)

// Submitter accepts one violation report
type Submitter interface {
	Submit(ctx context.Context, req violation.SubmitRequest) (model.ViolationReport, error)
}

// Entry is one parsed line of an import file
type Entry struct {
	Line    int
	Request violation.SubmitRequest
	Err     error // Set when the line could not be decoded
}

// reportLine is the JSON shape of an import line, matching the REST body
type reportLine struct {
	Statute                 string `json:"statute"`
	ResponsibleOrganization string `json:"responsible_organization"`
	OffendingContent        string `json:"offending_content"`
	DetectedBy              string `json:"detected_by"`
}

// importClient is the limiter key shared by every import job
const importClient = "import"

// ImportJob submits one entry
type ImportJob struct {
	Entry     Entry
	Submitter Submitter
	Limiter   *Limiter // Optional; paces submissions
}

// Execute executes the import job
func (j *ImportJob) Execute(ctx context.Context) Result {
	if j.Entry.Err != nil {
		return &ImportResult{Line: j.Entry.Line, Error: j.Entry.Err}
	}

	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, importClient); err != nil {
			return &ImportResult{Line: j.Entry.Line, Error: fmt.Errorf("rate limit: %w", err)}
		}
	}

	rec, err := j.Submitter.Submit(ctx, j.Entry.Request)
	if err != nil {
		return &ImportResult{Line: j.Entry.Line, Error: err}
	}
	return &ImportResult{Line: j.Entry.Line, Record: &rec}
}

// ImportResult is the outcome of one import line
type ImportResult struct {
	Line   int
	Record *model.ViolationReport
	Error  error
}

// GetError returns the error from the import result
func (r *ImportResult) GetError() error {
	return r.Error
}

// Importer submits parsed entries concurrently
type Importer struct {
	submitter   Submitter
	concurrency int
	limiter     *Limiter
}

// NewImporter creates an importer
func NewImporter(submitter Submitter, concurrency int) *Importer {
	return &Importer{
		submitter:   submitter,
		concurrency: concurrency,
	}
}

// WithRate caps submissions at requestsPerSecond across all workers. A
// non-positive rate leaves the importer unthrottled.
func (im *Importer) WithRate(requestsPerSecond float64) *Importer {
	if requestsPerSecond > 0 {
		im.limiter = NewLimiter(requestsPerSecond, 1)
	}
	return im
}

// Import submits entries and returns results in entry order
func (im *Importer) Import(ctx context.Context, entries []Entry) []*ImportResult {
	if len(entries) == 0 {
		return []*ImportResult{}
	}

	pool := NewPool(ctx, im.concurrency)
	pool.Start()

	for _, e := range entries {
		if !pool.Submit(&ImportJob{Entry: e, Submitter: im.submitter, Limiter: im.limiter}) {
			// Canceled; stop the jobs still queued
			pool.Shutdown()
			break
		}
	}

	results := pool.Wait()

	out := make([]*ImportResult, len(entries))
	for i, e := range entries {
		if i < len(results) && results[i] != nil {
			out[i] = results[i].(*ImportResult)
			continue
		}
		out[i] = &ImportResult{Line: e.Line, Error: ctx.Err()}
		if out[i].Error == nil {
			out[i].Error = fmt.Errorf("import canceled")
		}
	}
	return out
}

// ImportFile reads a JSONL file and imports it
func (im *Importer) ImportFile(ctx context.Context, filePath string) ([]*ImportResult, error) {
	entries, err := ReadEntriesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}

	return im.Import(ctx, entries), nil
}

// ReadEntriesFromFile reads report entries from a JSONL file
func ReadEntriesFromFile(filePath string) ([]Entry, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadEntries(file)
}

// ReadEntries parses one JSON report per line. Blank lines and lines starting
// with # are skipped and repeated lines are imported once. A line that is not
// valid JSON yields an entry carrying the decode error.
func ReadEntries(r io.Reader) ([]Entry, error) {
	var entries []Entry
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if seen[line] {
			continue
		}
		seen[line] = true

		var rl reportLine
		if err := json.Unmarshal([]byte(line), &rl); err != nil {
			entries = append(entries, Entry{Line: lineNo, Err: fmt.Errorf("line %d: %w", lineNo, err)})
			continue
		}
		entries = append(entries, Entry{
			Line: lineNo,
			Request: violation.SubmitRequest{
				Statute:                 rl.Statute,
				ResponsibleOrganization: rl.ResponsibleOrganization,
				OffendingContent:        rl.OffendingContent,
				DetectedBy:              rl.DetectedBy,
			},
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return entries, nil
}
