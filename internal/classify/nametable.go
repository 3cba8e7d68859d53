package classify

import (
	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/domain"
)

// NameEntry is one configured name -> level assignment
type NameEntry struct {
	Name  string              `json:"name"`
	Level domain.ServiceLevel `json:"level"`
}

// NameLevelTable holds the maintained technician-name fallback table.
// Keys are normalized on insert so lookups are case- and
// diacritic-insensitive. Entries keep their configured order; on
// duplicate keys the first entry wins.
type NameLevelTable struct {
	entries []NameEntry
	index   map[string]domain.ServiceLevel
}

// NewNameLevelTable builds a table from configured entries
func NewNameLevelTable(entries []NameEntry) *NameLevelTable {
	t := &NameLevelTable{
		index: make(map[string]domain.ServiceLevel, len(entries)),
	}
	for _, e := range entries {
		key := Normalize(e.Name)
		if key == "" {
			continue
		}
		if _, exists := t.index[key]; exists {
			continue
		}
		t.entries = append(t.entries, NameEntry{Name: key, Level: e.Level})
		t.index[key] = e.Level
	}
	return t
}

// Lookup resolves a (raw) display name against the table
func (t *NameLevelTable) Lookup(name string) (domain.ServiceLevel, bool) {
	level, ok := t.index[Normalize(name)]
	return level, ok
}

// Len returns the number of distinct entries
func (t *NameLevelTable) Len() int { return len(t.entries) }

// Entries returns the normalized entries in configured order
func (t *NameLevelTable) Entries() []NameEntry { return t.entries }
