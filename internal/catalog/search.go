package catalog

import (
	"strings"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// Search returns topics whose code, title or outcome contains the query,
// using Unicode case folding so accented and mixed-case syllabus titles
// match plain-ASCII queries.
func (l *Loader) Search(query string) []Topic {
	q := folder.String(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Topic
	for _, m := range l.modules {
		for _, t := range m.Topics {
			if strings.Contains(folder.String(t.Code), q) ||
				strings.Contains(folder.String(t.Title), q) ||
				strings.Contains(folder.String(t.Outcome), q) {
				out = append(out, t)
			}
		}
	}
	return out
}
