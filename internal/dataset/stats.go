package dataset

import (
	"sort"
	"strings"
)

// DefaultRequiredFields are the columns every activity row is expected to fill.
var DefaultRequiredFields = []string{
	ColumnEntity,
	ColumnActivity,
	ColumnEndDate,
	ColumnPopulation,
}

const unspecifiedEntity = "Sin especificar"

type EntityStat struct {
	Entity          string  `json:"entity"`
	ActivitiesCount int     `json:"activities_count"`
	TotalPopulation float64 `json:"total_population"`
}

// EntityStats groups rows by entity, ordered by activity count (desc) then name.
func EntityStats(rows []Row) []EntityStat {
	idx := make(map[string]int)
	var out []EntityStat
	for _, r := range rows {
		entity := strings.TrimSpace(r.Value(ColumnEntity))
		if entity == "" {
			entity = unspecifiedEntity
		}
		i, ok := idx[entity]
		if !ok {
			i = len(out)
			idx[entity] = i
			out = append(out, EntityStat{Entity: entity})
		}
		out[i].ActivitiesCount++
		pop, _ := r.Lookup(ColumnPopulation)
		out[i].TotalPopulation += ParseNumber(pop)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ActivitiesCount == out[j].ActivitiesCount {
			return out[i].Entity < out[j].Entity
		}
		return out[i].ActivitiesCount > out[j].ActivitiesCount
	})
	return out
}

type MonthStat struct {
	Month           string   `json:"month"`
	ActivitiesCount int      `json:"activities_count"`
	TotalPopulation float64  `json:"total_population"`
	Entities        []string `json:"entities"`
}

// MonthStats groups rows with a valid execution date by YYYY-MM, in chronological order.
func MonthStats(rows []Row) []MonthStat {
	byMonth := make(map[string]*MonthStat)
	entities := make(map[string]map[string]struct{})
	for _, r := range rows {
		raw, _ := r.Lookup(ColumnEndDate)
		d, ok := ParseDate(raw)
		if !ok {
			continue
		}
		key := d.Format("2006-01")
		st, ok := byMonth[key]
		if !ok {
			st = &MonthStat{Month: key}
			byMonth[key] = st
			entities[key] = make(map[string]struct{})
		}
		st.ActivitiesCount++
		pop, _ := r.Lookup(ColumnPopulation)
		st.TotalPopulation += ParseNumber(pop)
		if e := strings.TrimSpace(r.Value(ColumnEntity)); e != "" {
			entities[key][e] = struct{}{}
		}
	}

	out := make([]MonthStat, 0, len(byMonth))
	for key, st := range byMonth {
		st.Entities = sortedKeys(entities[key])
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DailyCounts counts activities per valid execution date, oldest first.
func DailyCounts(rows []Row) []DayCount {
	counts := make(map[string]int)
	for _, r := range rows {
		raw, _ := r.Lookup(ColumnEndDate)
		if IsValidDate(raw) {
			counts[raw]++
		}
	}
	out := make([]DayCount, 0, len(counts))
	for d, n := range counts {
		out = append(out, DayCount{Date: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// DistinctValues lists the non-empty values of column across rows, sorted.
func DistinctValues(rows []Row, column string) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		v, ok := r.Lookup(column)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	return sortedKeys(seen)
}

// FilterEquals keeps the rows whose column equals value (trimmed).
func FilterEquals(rows []Row, column, value string) []Row {
	value = strings.TrimSpace(value)
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		v, _ := r.Lookup(column)
		if strings.TrimSpace(v) == value {
			out = append(out, r)
		}
	}
	return out
}

type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ValueCounts tallies the non-empty values of column over the first limit rows (all rows when
// limit <= 0), most frequent first.
func ValueCounts(rows []Row, column string, limit int) []ValueCount {
	return tally(rows, column, limit, func(v string) (string, bool) {
		return v, v != ""
	})
}

func tally(rows []Row, column string, limit int, classify func(string) (string, bool)) []ValueCount {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	idx := make(map[string]int)
	var out []ValueCount
	for _, r := range rows {
		v, _ := r.Lookup(column)
		key, ok := classify(strings.TrimSpace(v))
		if !ok {
			continue
		}
		i, seen := idx[key]
		if !seen {
			i = len(out)
			idx[key] = i
			out = append(out, ValueCount{Value: key})
		}
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

type RecordIssue struct {
	Index         int      `json:"index"`
	MissingFields []string `json:"missing_fields"`
}

type Validation struct {
	Valid          bool          `json:"valid"`
	MissingFields  []string      `json:"missing_fields"`
	InvalidRecords []RecordIssue `json:"invalid_records"`
	TotalRecords   int           `json:"total_records"`
}

// ValidateRequired checks that the header carries every required field and reports rows that
// leave one of them empty. Header names are compared trimmed.
func ValidateRequired(t Table, required []string) Validation {
	v := Validation{
		Valid:          true,
		MissingFields:  []string{},
		InvalidRecords: []RecordIssue{},
		TotalRecords:   len(t.Rows),
	}
	if len(t.Rows) == 0 {
		v.Valid = false
		v.MissingFields = append(v.MissingFields, required...)
		return v
	}

	header := make(map[string]struct{})
	for _, c := range t.ColumnOrder() {
		header[strings.TrimSpace(c)] = struct{}{}
	}
	for _, f := range required {
		if _, ok := header[f]; !ok {
			v.MissingFields = append(v.MissingFields, f)
			v.Valid = false
		}
	}

	for i, r := range t.Rows {
		var missing []string
		for _, f := range required {
			if val, ok := r.Lookup(f); !ok || strings.TrimSpace(val) == "" {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			v.InvalidRecords = append(v.InvalidRecords, RecordIssue{Index: i, MissingFields: missing})
		}
	}
	return v
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
