package statute

import (
	"fmt"
	"os"

	"github.com/Twixes/mcpolice/internal/model"
	"gopkg.in/yaml.v3"
)

// tableFile is the on-disk shape of a statute table:
//
//	statutes:
//	  - organization: ICC
//	    article: Rome Statute Article 7
//	    description: Crimes against humanity
//	    severity: critical
//	    jurisdiction: [International]
type tableFile struct {
	Statutes []struct {
		Organization string   `yaml:"organization"`
		Article      string   `yaml:"article"`
		Description  string   `yaml:"description"`
		Severity     string   `yaml:"severity"`
		Jurisdiction []string `yaml:"jurisdiction"`
	} `yaml:"statutes"`
}

// LoadFile reads a YAML statute table. Severities are case-insensitive.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read statute table: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML statute table
func Parse(data []byte) (*Registry, error) {
	var table tableFile
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse statute table: %w", err)
	}
	if len(table.Statutes) == 0 {
		return nil, fmt.Errorf("statute table is empty")
	}

	statutes := make([]model.StatuteInfo, 0, len(table.Statutes))
	for _, s := range table.Statutes {
		severity, err := model.ParseSeverity(s.Severity)
		if err != nil {
			return nil, fmt.Errorf("statute %q: %w", s.Article, err)
		}
		statutes = append(statutes, model.StatuteInfo{
			Organization: s.Organization,
			Article:      s.Article,
			Description:  s.Description,
			Severity:     severity,
			Jurisdiction: dedupe(s.Jurisdiction),
		})
	}

	return NewRegistry(statutes)
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
