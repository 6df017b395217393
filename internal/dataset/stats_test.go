package dataset

import (
	"reflect"
	"testing"
)

func TestEntityStats_OrdersByActivityCount(t *testing.T) {
	rows := []Row{
		activityRow("SDIS", "10", ""),
		activityRow("IDRD", "5", ""),
		activityRow("IDRD", "5", ""),
		activityRow("", "1", ""),
	}
	got := EntityStats(rows)
	if len(got) != 3 {
		t.Fatalf("expected 3 entities, got %d", len(got))
	}
	if got[0].Entity != "IDRD" || got[0].ActivitiesCount != 2 || got[0].TotalPopulation != 10 {
		t.Fatalf("unexpected first entity %+v", got[0])
	}
	if got[1].Entity != "SDIS" || got[2].Entity != "Sin especificar" {
		t.Fatalf("unexpected order %+v", got)
	}
}

func TestMonthStats_SkipsInvalidDates(t *testing.T) {
	rows := []Row{
		activityRow("IDRD", "5", "2025-04-02"),
		activityRow("SDIS", "5", "2025-03-30"),
		activityRow("IDRD", "1", "2025-04-20"),
		activityRow("IDRD", "1", "bad"),
	}
	got := MonthStats(rows)
	if len(got) != 2 {
		t.Fatalf("expected 2 months, got %+v", got)
	}
	if got[0].Month != "2025-03" || got[1].Month != "2025-04" {
		t.Fatalf("expected chronological months, got %+v", got)
	}
	if got[1].ActivitiesCount != 2 || got[1].TotalPopulation != 6 {
		t.Fatalf("unexpected april stats %+v", got[1])
	}
	if !reflect.DeepEqual(got[1].Entities, []string{"IDRD"}) {
		t.Fatalf("unexpected entities %v", got[1].Entities)
	}
}

func TestDistinctValues(t *testing.T) {
	rows := []Row{
		activityRow("SDIS", "", ""),
		activityRow(" IDRD ", "", ""),
		activityRow("IDRD", "", ""),
		activityRow("", "", ""),
	}
	got := DistinctValues(rows, ColumnEntity)
	if !reflect.DeepEqual(got, []string{"IDRD", "SDIS"}) {
		t.Fatalf("unexpected values %v", got)
	}
	if len(DistinctValues(rows, "missing")) != 0 {
		t.Fatalf("expected no values for a missing column")
	}
}

func TestDailyCounts(t *testing.T) {
	rows := []Row{
		activityRow("A", "", "2025-03-02"),
		activityRow("A", "", "2025-03-01"),
		activityRow("A", "", "2025-03-02"),
	}
	got := DailyCounts(rows)
	want := []DayCount{{Date: "2025-03-01", Count: 1}, {Date: "2025-03-02", Count: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestValidateRequired(t *testing.T) {
	tbl := FromValues([][]string{
		{"Entidad ", "Actividad", "Fecha final de ejecución"},
		{"IDRD", "Jornada", "2025-01-01"},
		{"SDIS", "", "2025-01-01"},
	})
	v := ValidateRequired(tbl, DefaultRequiredFields)
	if v.Valid {
		t.Fatalf("expected invalid validation")
	}
	if !reflect.DeepEqual(v.MissingFields, []string{ColumnPopulation}) {
		t.Fatalf("unexpected missing fields %v", v.MissingFields)
	}
	if len(v.InvalidRecords) != 2 {
		t.Fatalf("expected both rows flagged, got %+v", v.InvalidRecords)
	}
	if !reflect.DeepEqual(v.InvalidRecords[1].MissingFields, []string{ColumnActivity, ColumnPopulation}) {
		t.Fatalf("unexpected second record issue %+v", v.InvalidRecords[1])
	}

	empty := ValidateRequired(Table{}, DefaultRequiredFields)
	if empty.Valid || len(empty.MissingFields) != len(DefaultRequiredFields) {
		t.Fatalf("expected empty table to miss every field, got %+v", empty)
	}
}

func TestSurveyCounts_ScoresCleanliness(t *testing.T) {
	rows := []Row{
		NewRow([]string{CleanlinessQuestion, "Sexo"}, []string{"5", "Mujer"}),
		NewRow([]string{CleanlinessQuestion, "Sexo"}, []string{"Regular", "Hombre"}),
		NewRow([]string{CleanlinessQuestion, "Sexo"}, []string{"5", "Mujer"}),
		NewRow([]string{CleanlinessQuestion, "Sexo"}, []string{"", ""}),
	}
	s := SurveyCounts(rows, []string{CleanlinessQuestion, "Sexo", "No existe"})
	if s.Responses != 4 {
		t.Fatalf("expected 4 responses, got %d", s.Responses)
	}
	want := []ValueCount{{Value: "5", Count: 2}, {Value: NoAnswer, Count: 1}}
	if !reflect.DeepEqual(s.Questions[0].Counts, want) {
		t.Fatalf("expected %v, got %v", want, s.Questions[0].Counts)
	}
	if s.Questions[1].Counts[0] != (ValueCount{Value: "Mujer", Count: 2}) {
		t.Fatalf("unexpected Sexo tally %v", s.Questions[1].Counts)
	}
	if len(s.Questions[2].Counts) != 0 {
		t.Fatalf("expected empty tally for missing column")
	}
}

func TestValueCounts_RespectsLimit(t *testing.T) {
	var rows []Row
	for i := 0; i < 5; i++ {
		rows = append(rows, NewRow([]string{"Q"}, []string{"si"}))
	}
	got := ValueCounts(rows, "Q", 3)
	if len(got) != 1 || got[0].Count != 3 {
		t.Fatalf("expected limit of 3 rows, got %v", got)
	}
}
