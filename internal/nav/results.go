package nav

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Results is the session-scoped aggregate of scan outcomes. It belongs to
// the control goroutine and is finalized exactly once at flight end.
type Results struct {
	ScannedMarkers map[int]struct{}
	ScannedCodes   map[string]struct{}
	FailedCodes    map[string]struct{}

	TotalAttempts   int
	SuccessfulScans int
	Errors          []string

	StartTime time.Time
	EndTime   time.Time
}

// NewResults creates the aggregate at flight start.
func NewResults(now time.Time) *Results {
	return &Results{
		ScannedMarkers: make(map[int]struct{}),
		ScannedCodes:   make(map[string]struct{}),
		FailedCodes:    make(map[string]struct{}),
		StartTime:      now,
	}
}

// HasCode reports whether the raw code text was already scanned this
// session.
func (r *Results) HasCode(code string) bool {
	_, ok := r.ScannedCodes[code]
	return ok
}

// HasMarker reports whether the marker was already scanned this session.
func (r *Results) HasMarker(id int) bool {
	_, ok := r.ScannedMarkers[id]
	return ok
}

// CodeScanned records a successfully handled code.
func (r *Results) CodeScanned(code string) {
	r.ScannedCodes[code] = struct{}{}
}

// MarkerScanned records a marker whose code was handled; it is never
// re-selected as a lock candidate afterwards.
func (r *Results) MarkerScanned(id int) {
	r.ScannedMarkers[id] = struct{}{}
}

// CodeFailed records a code that could not be processed.
func (r *Results) CodeFailed(code string) {
	r.FailedCodes[code] = struct{}{}
}

// RecordError appends a session-level error message.
func (r *Results) RecordError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// Finalize stamps the end time. Idempotent.
func (r *Results) Finalize(now time.Time) {
	if r.EndTime.IsZero() {
		r.EndTime = now
	}
}

// Report is the JSON-serializable session outcome persisted with the
// session record.
type Report struct {
	Duration        string   `json:"duration"`
	ScannedMarkers  []int    `json:"scanned_markers"`
	ScannedCodes    []string `json:"scanned_codes"`
	FailedAttempts  []string `json:"failed_attempts"`
	TotalAttempts   int      `json:"total_attempts"`
	SuccessfulScans int      `json:"successful_scans"`
	Errors          []string `json:"errors"`
}

// Report builds the persisted session outcome. Call after Finalize.
func (r *Results) Report() Report {
	return Report{
		Duration:        r.EndTime.Sub(r.StartTime).Round(100 * time.Millisecond).String(),
		ScannedMarkers:  sortedMarkers(r.ScannedMarkers),
		ScannedCodes:    sortedStrings(r.ScannedCodes),
		FailedAttempts:  sortedStrings(r.FailedCodes),
		TotalAttempts:   r.TotalAttempts,
		SuccessfulScans: r.SuccessfulScans,
		Errors:          r.Errors,
	}
}

// Summary renders the human-readable session report sent as the final
// notification.
func (r *Results) Summary() string {
	var b strings.Builder

	b.WriteString("Scan session summary\n")
	fmt.Fprintf(&b, "Duration: %s\n", humanize.RelTime(r.StartTime, r.EndTime, "", ""))
	fmt.Fprintf(&b, "Codes scanned: %d\n", len(r.ScannedCodes))
	fmt.Fprintf(&b, "Markers visited: %d\n", len(r.ScannedMarkers))
	fmt.Fprintf(&b, "Failed attempts: %d\n", len(r.FailedCodes))
	fmt.Fprintf(&b, "Total attempts: %d", r.TotalAttempts)

	if codes := sortedStrings(r.ScannedCodes); len(codes) > 0 {
		fmt.Fprintf(&b, "\nCodes: %s", strings.Join(codes, ", "))
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "\nErrors:\n%s", strings.Join(r.Errors, "\n"))
	}
	return b.String()
}

func sortedMarkers(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func sortedStrings(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
