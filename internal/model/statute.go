package model

import (
	"fmt"
	"strings"
)

// Severity grades how serious a violation of a statute is
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Severities lists every severity from least to most serious
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Valid reports whether s is one of the known severities
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// ParseSeverity accepts any letter case ("high", "High", "HIGH")
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown severity %q (expected LOW, MEDIUM, HIGH or CRITICAL)", raw)
	}
	return s, nil
}

// StatuteInfo is the legal metadata attached to a statute article
type StatuteInfo struct {
	Organization string   `json:"organization" yaml:"organization"` // Body that enforces the statute (e.g., "ICC")
	Article      string   `json:"article" yaml:"article"`           // Lookup key, matched exactly
	Description  string   `json:"description" yaml:"description"`
	Severity     Severity `json:"severity" yaml:"severity"`
	Jurisdiction []string `json:"jurisdiction" yaml:"jurisdiction"` // Ordered, no duplicates
}

// Clone returns a copy that shares no slices with s
func (s StatuteInfo) Clone() StatuteInfo {
	out := s
	out.Jurisdiction = append([]string(nil), s.Jurisdiction...)
	return out
}
