// Package statute holds the read-only table of statutes that violations are
// reported against.
package statute

import (
	"fmt"
	"strings"

	"github.com/Twixes/mcpolice/internal/model"
)

// Registry maps statute articles to their metadata. It never changes after
// construction and is safe for concurrent use.
type Registry struct {
	statutes  []model.StatuteInfo
	byArticle map[string]int
}

// NewRegistry builds a registry that preserves the order of statutes.
// Articles must be non-empty and unique, severities valid.
func NewRegistry(statutes []model.StatuteInfo) (*Registry, error) {
	r := &Registry{
		statutes:  make([]model.StatuteInfo, 0, len(statutes)),
		byArticle: make(map[string]int, len(statutes)),
	}

	for i, s := range statutes {
		if strings.TrimSpace(s.Article) == "" {
			return nil, fmt.Errorf("statute %d: article is required", i)
		}
		if _, dup := r.byArticle[s.Article]; dup {
			return nil, fmt.Errorf("statute %q: duplicate article", s.Article)
		}
		if !s.Severity.Valid() {
			return nil, fmt.Errorf("statute %q: invalid severity %q", s.Article, s.Severity)
		}
		if s.Organization == "" {
			return nil, fmt.Errorf("statute %q: organization is required", s.Article)
		}

		r.byArticle[s.Article] = len(r.statutes)
		r.statutes = append(r.statutes, s.Clone())
	}

	return r, nil
}

// Default returns the built-in registry
func Default() *Registry {
	r, err := NewRegistry(builtin)
	if err != nil {
		panic(fmt.Sprintf("statute: built-in table is invalid: %v", err))
	}
	return r
}

// Lookup finds a statute by exact, case-sensitive article match
func (r *Registry) Lookup(article string) (model.StatuteInfo, bool) {
	idx, ok := r.byArticle[article]
	if !ok {
		return model.StatuteInfo{}, false
	}
	return r.statutes[idx].Clone(), true
}

// List returns every statute in definition order
func (r *Registry) List() []model.StatuteInfo {
	out := make([]model.StatuteInfo, len(r.statutes))
	for i, s := range r.statutes {
		out[i] = s.Clone()
	}
	return out
}

// Len returns the number of statutes
func (r *Registry) Len() int {
	return len(r.statutes)
}
