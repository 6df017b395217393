package dataset

// Indicators are the headline numbers of the dashboard. Values are raw; formatting for display
// belongs to the presentation layer.
type Indicators struct {
	TotalPopulation  float64 `json:"total_population"`
	Count            int     `json:"count"`
	ValidDateCount   int     `json:"valid_date_count"`
	InvalidDateCount int     `json:"invalid_date_count"`
}

// Aggregate sums the impacted population, counts rows and classifies the execution dates.
// Malformed cells count as 0 / invalid and never fail the computation.
func Aggregate(rows []Row) Indicators {
	var ind Indicators
	for _, r := range rows {
		ind.Count++
		if v, ok := r.Lookup(ColumnPopulation); ok {
			ind.TotalPopulation += ParseNumber(v)
		}
		date, _ := r.Lookup(ColumnEndDate)
		if IsValidDate(date) {
			ind.ValidDateCount++
		} else {
			ind.InvalidDateCount++
		}
	}
	return ind
}
