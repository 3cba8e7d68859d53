package glpi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/domain"
)

// glpiDateTime is the exact timestamp layout search criteria must use
const glpiDateTime = "2006-01-02 15:04:05"

// rankingPageSize bounds each page of the batch technician search
const rankingPageSize = 100

// rankingMaxPages caps the pagination loop so one ranking request can
// never flood the API
const rankingMaxPages = 50

// CountQuery represents one filterable count request. Zero values mean
// "no filter" for the corresponding dimension.
type CountQuery struct {
	Statuses      []int
	GroupID       int
	TechnicianIDs []int
	Start         *time.Time
	End           *time.Time
}

type searchResponse struct {
	TotalCount int                      `json:"totalcount"`
	Count      int                      `json:"count"`
	Data       []map[string]interface{} `json:"data"`
}

// Count issues a minimal-page search (range 0-0) and extracts the total
// from the Content-Range header, falling back to the totalcount body
// field when the header is absent.
func (c *Client) Count(ctx context.Context, q CountQuery) (int, error) {
	fm, err := c.Discover(ctx)
	if err != nil {
		return 0, err
	}

	params := buildCriteria(fm, q)
	params.Set("range", "0-0")

	var body searchResponse
	header, err := c.getJSON(ctx, "search/Ticket", params, &body)
	if err != nil {
		return 0, err
	}

	if total, ok := parseContentRange(header.Get("Content-Range")); ok {
		return total, nil
	}
	return body.TotalCount, nil
}

// CountByTechnician tallies ticket counts for a batch of technicians
// from a single OR-chained search, paging through the result set instead
// of issuing one count per technician. Rows whose technician column
// cannot be resolved against the batch are skipped.
func (c *Client) CountByTechnician(ctx context.Context, techs []domain.Technician, q CountQuery) (map[int]int, error) {
	counts := make(map[int]int, len(techs))
	if len(techs) == 0 {
		return counts, nil
	}

	fm, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[int]int, len(techs))
	byName := make(map[string]int, len(techs))
	ids := make([]int, 0, len(techs))
	for _, t := range techs {
		counts[t.ID] = 0
		byID[t.ID] = t.ID
		byName[strings.ToLower(strings.TrimSpace(t.Name))] = t.ID
		ids = append(ids, t.ID)
	}
	q.TechnicianIDs = ids

	techCol := strconv.Itoa(fm[FieldTechnician])

	for page := 0; page < rankingMaxPages; page++ {
		start := page * rankingPageSize
		params := buildCriteria(fm, q)
		params.Set("range", fmt.Sprintf("%d-%d", start, start+rankingPageSize-1))
		params.Set("forcedisplay[0]", techCol)

		var body searchResponse
		header, err := c.getJSON(ctx, "search/Ticket", params, &body)
		if err != nil {
			return nil, err
		}

		for _, row := range body.Data {
			for _, id := range resolveTechnician(row[techCol], byID, byName) {
				counts[id]++
			}
		}

		total := body.TotalCount
		if t, ok := parseContentRange(header.Get("Content-Range")); ok {
			total = t
		}
		if start+len(body.Data) >= total || len(body.Data) == 0 {
			break
		}
	}
	return counts, nil
}

// resolveTechnician maps a search-result cell back to technician ids.
// GLPI renders the column as an id, a display name, or a list when the
// ticket has several assignees.
func resolveTechnician(cell interface{}, byID map[int]int, byName map[string]int) []int {
	switch v := cell.(type) {
	case float64:
		if id, ok := byID[int(v)]; ok {
			return []int{id}
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			if id, ok := byID[n]; ok {
				return []int{id}
			}
			return nil
		}
		if id, ok := byName[strings.ToLower(strings.TrimSpace(v))]; ok {
			return []int{id}
		}
	case []interface{}:
		var ids []int
		for _, item := range v {
			ids = append(ids, resolveTechnician(item, byID, byName)...)
		}
		return ids
	}
	return nil
}

// buildCriteria translates a CountQuery into GLPI's criterion syntax.
// Statuses and technician ids become one nested criteria block each,
// OR-chained inside the block and AND-linked to every other dimension.
// Flat OR criteria would bleed into the neighbouring AND clauses through
// SQL operator precedence, so OR never appears at the top level. An
// invalid date range degrades to no date filter.
func buildCriteria(fm FieldMap, q CountQuery) url.Values {
	params := url.Values{}
	params.Set("is_deleted", "0")

	i := 0
	addCriterion := func(field Field, searchtype, value string) {
		prefix := fmt.Sprintf("criteria[%d]", i)
		if i > 0 {
			params.Set(prefix+"[link]", "AND")
		}
		params.Set(prefix+"[field]", strconv.Itoa(fm[field]))
		params.Set(prefix+"[searchtype]", searchtype)
		params.Set(prefix+"[value]", value)
		i++
	}

	addOrGroup := func(field Field, values []int) {
		if len(values) == 1 {
			addCriterion(field, "equals", strconv.Itoa(values[0]))
			return
		}
		prefix := fmt.Sprintf("criteria[%d]", i)
		if i > 0 {
			params.Set(prefix+"[link]", "AND")
		}
		for j, v := range values {
			sub := fmt.Sprintf("%s[criteria][%d]", prefix, j)
			if j > 0 {
				params.Set(sub+"[link]", "OR")
			}
			params.Set(sub+"[field]", strconv.Itoa(fm[field]))
			params.Set(sub+"[searchtype]", "equals")
			params.Set(sub+"[value]", strconv.Itoa(v))
		}
		i++
	}

	if len(q.Statuses) > 0 {
		addOrGroup(FieldStatus, q.Statuses)
	}

	if q.GroupID != 0 {
		addCriterion(FieldTechGroup, "equals", strconv.Itoa(q.GroupID))
	}

	if len(q.TechnicianIDs) > 0 {
		addOrGroup(FieldTechnician, q.TechnicianIDs)
	}

	if q.Start != nil && q.End != nil && !q.End.Before(*q.Start) {
		dayStart := time.Date(q.Start.Year(), q.Start.Month(), q.Start.Day(), 0, 0, 0, 0, q.Start.Location())
		dayEnd := time.Date(q.End.Year(), q.End.Month(), q.End.Day(), 23, 59, 59, 0, q.End.Location())
		addCriterion(FieldOpeningDate, "morethan", dayStart.Format(glpiDateTime))
		addCriterion(FieldOpeningDate, "lessthan", dayEnd.Format(glpiDateTime))
	}

	return params
}

// parseContentRange extracts the total from a "start-end/total" header
func parseContentRange(header string) (int, bool) {
	if header == "" {
		return 0, false
	}
	slash := strings.LastIndex(header, "/")
	if slash < 0 || slash == len(header)-1 {
		return 0, false
	}
	total, err := strconv.Atoi(strings.TrimSpace(header[slash+1:]))
	if err != nil || total < 0 {
		return 0, false
	}
	return total, true
}
