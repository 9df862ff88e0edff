package model

import "time"

// ViolationReport is a single stored report. It is immutable once created.
type ViolationReport struct {
	ID                      string          `json:"id"`
	Timestamp               time.Time       `json:"timestamp"`
	Statute                 string          `json:"statute"` // Article key into the statute registry
	ResponsibleOrganization string          `json:"responsibleOrganization"`
	OffendingContent        string          `json:"offendingContent"`
	Violation               ViolationDetail `json:"violation"`
	Metadata                ReportMetadata  `json:"metadata"`
}

// ViolationDetail is a snapshot of the statute metadata taken at report time
type ViolationDetail struct {
	Description  string   `json:"description"`
	Severity     Severity `json:"severity"`
	Jurisdiction []string `json:"jurisdiction"`
}

// ReportMetadata records how the report reached the service
type ReportMetadata struct {
	ReportedAt      time.Time `json:"reportedAt"`
	ProtocolVersion string    `json:"protocolVersion"`
	DetectedBy      string    `json:"detectedBy"`
}

// Filter narrows a violation query. Zero values match everything.
type Filter struct {
	Severity     Severity
	Jurisdiction string
}

// Matches reports whether the record passes the filter
func (f Filter) Matches(r ViolationReport) bool {
	if f.Severity != "" && r.Violation.Severity != f.Severity {
		return false
	}
	if f.Jurisdiction == "" {
		return true
	}
	for _, j := range r.Violation.Jurisdiction {
		if j == f.Jurisdiction {
			return true
		}
	}
	return false
}

// Pagination selects the window [Offset, Offset+Limit) of a filtered result
type Pagination struct {
	Limit  int
	Offset int
}

// Page is one window of a violation query
type Page struct {
	Violations []ViolationReport `json:"violations"`
	Total      int               `json:"total"`   // Matches before pagination
	HasMore    bool              `json:"hasMore"` // Offset+Limit < Total
}

// Stats aggregates every stored violation
type Stats struct {
	Total          int            `json:"total"`
	BySeverity     map[string]int `json:"bySeverity"`
	ByJurisdiction map[string]int `json:"byJurisdiction"` // A record counts once per jurisdiction it lists
	ByOrganization map[string]int `json:"byOrganization"`
	Recent24h      int            `json:"recent24h"`
}

// NewStats returns empty stats with initialized buckets
func NewStats() Stats {
	return Stats{
		BySeverity:     make(map[string]int),
		ByJurisdiction: make(map[string]int),
		ByOrganization: make(map[string]int),
	}
}

// Digest is an optional LLM narrative over the current statistics.
// It is generated on demand and never stored.
type Digest struct {
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	SummaryMD   string    `json:"summary_md"`
	GeneratedAt time.Time `json:"generated_at"`
	TokensUsed  int       `json:"tokens_used,omitempty"`
}
