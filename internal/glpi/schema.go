package glpi

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Field names the logical ticket attributes the dashboard needs. GLPI
// identifies them by numeric search-option ids that differ between
// installations, so they are resolved at runtime by Discover.
type Field string

const (
	FieldStatus      Field = "status"
	FieldTechGroup   Field = "tech_group"
	FieldTechnician  Field = "technician"
	FieldOpeningDate Field = "opening_date"
)

var requiredFields = []Field{FieldStatus, FieldTechGroup, FieldTechnician, FieldOpeningDate}

// FieldMap maps logical field names to the installation's search-option
// ids. Immutable once discovered; session renewal triggers re-discovery.
type FieldMap map[Field]int

type searchOption struct {
	Name  string `json:"name"`
	Table string `json:"table"`
	Field string `json:"field"`
	UID   string `json:"uid"`
}

// Discover resolves the field map from listSearchOptions/Ticket. The
// result is cached for the lifetime of the session.
func (c *Client) Discover(ctx context.Context) (FieldMap, error) {
	c.schemaMu.Lock()
	if c.fields != nil {
		fm := c.fields
		c.schemaMu.Unlock()
		return fm, nil
	}
	c.schemaMu.Unlock()

	// the mutex must not be held across the request: a 401 on this very
	// call drops the schema cache, which takes the same lock
	var raw map[string]json.RawMessage
	if _, err := c.getJSON(ctx, "listSearchOptions/Ticket", nil, &raw); err != nil {
		return nil, err
	}

	fm := matchSearchOptions(raw)

	var missing []string
	for _, f := range requiredFields {
		if _, ok := fm[f]; !ok {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &SchemaError{Missing: missing}
	}

	c.log.WithFields(map[string]interface{}{
		"status":       fm[FieldStatus],
		"tech_group":   fm[FieldTechGroup],
		"technician":   fm[FieldTechnician],
		"opening_date": fm[FieldOpeningDate],
	}).Info("GLPI schema discovered")

	c.schemaMu.Lock()
	if c.fields == nil {
		c.fields = fm
	} else {
		// a concurrent discovery won the race; serve its result
		fm = c.fields
	}
	c.schemaMu.Unlock()
	return fm, nil
}

// matchSearchOptions resolves each logical field against the option
// list. The option ids are iterated in ascending order so an unchanged
// schema always resolves to the same map. Non-numeric keys ("common",
// group captions) are skipped.
func matchSearchOptions(raw map[string]json.RawMessage) FieldMap {
	ids := make([]int, 0, len(raw))
	opts := make(map[int]searchOption, len(raw))
	for key, msg := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		var opt searchOption
		if err := json.Unmarshal(msg, &opt); err != nil || opt.Name == "" {
			continue
		}
		ids = append(ids, id)
		opts[id] = opt
	}
	sort.Ints(ids)

	fm := make(FieldMap)
	for _, id := range ids {
		opt := opts[id]
		for _, f := range requiredFields {
			if _, done := fm[f]; done {
				continue
			}
			if optionMatches(f, opt) {
				fm[f] = id
				break
			}
		}
	}
	return fm
}

// optionMatches applies the per-field heuristics: an exact (table,field)
// match where GLPI keeps it unambiguous, keyword matching over the
// localized display name otherwise (pt-BR and en installations).
func optionMatches(f Field, opt searchOption) bool {
	name := strings.ToLower(opt.Name)
	uid := strings.ToLower(opt.UID)

	switch f {
	case FieldStatus:
		if opt.Table == "glpi_tickets" && opt.Field == "status" {
			return true
		}
		return strings.Contains(name, "status") || strings.Contains(name, "estado")

	case FieldTechGroup:
		group := strings.Contains(name, "grupo") || strings.Contains(name, "group")
		tech := containsAny(name, "técnico", "tecnico", "technician", "in charge", "atribu", "assign")
		if group && tech {
			return true
		}
		return opt.Table == "glpi_groups" && strings.Contains(uid, "tech")

	case FieldTechnician:
		group := strings.Contains(name, "grupo") || strings.Contains(name, "group")
		if group {
			return false
		}
		if containsAny(name, "técnico", "tecnico", "technician") {
			return true
		}
		return opt.Table == "glpi_users" && strings.Contains(uid, "tech")

	case FieldOpeningDate:
		return containsAny(name, "data de abertura", "abertura", "opening date", "creation date", "opening time")
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
