package calc

import (
	"testing"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
)

func TestDeriveDeathScenario(t *testing.T) {
	data := models.Data{
		KeyDeathPeriod:    "5 ani",
		KeyDeathMonthly:   "2000",
		KeyDeathEvent:     "20000",
		KeyDeathProjects:  "0",
		KeyDeathInsurance: "0",
		KeyDeathSavings:   "10000",
	}
	Derive(data)

	if got := data[KeyDeficit1]; got != 120000.0 {
		t.Errorf("deficit1 = %v, want 120000", got)
	}
	if got := data[KeyDeficitBrute]; got != 140000.0 {
		t.Errorf("bruteDeficit = %v, want 140000", got)
	}
	if got := data[KeyDeficitFinal]; got != 130000.0 {
		t.Errorf("finalDeficit = %v, want 130000", got)
	}
}

func TestDeriveIsIdempotent(t *testing.T) {
	data := models.Data{
		KeyDeathPeriod:  "3 ani",
		KeyDeathMonthly: "1500",
	}
	Derive(data)
	first := data.Clone()
	Derive(data)
	for k, v := range first {
		if data[k] != v {
			t.Errorf("key %s changed on re-derive: %v -> %v", k, v, data[k])
		}
	}
}

func TestDeriveFinalClampsToZero(t *testing.T) {
	data := models.Data{
		KeyDeathPeriod:    "3 ani",
		KeyDeathMonthly:   "100",
		KeyDeathInsurance: "1000000",
	}
	Derive(data)
	if got := data[KeyDeficitFinal]; got != 0.0 {
		t.Errorf("finalDeficit = %v, want 0", got)
	}
}

func TestDeriveRetirementScenario(t *testing.T) {
	data := models.Data{
		KeyRetirePeriod:   "20 ani",
		KeyRetireMonthly:  "1000",
		KeyRetireProjects: "20000",
		KeyRetireState:    "50000",
		KeyRetireSavings:  "30000",
	}
	Derive(data)

	if got := data[KeyRetireDeficit1]; got != 240000.0 {
		t.Errorf("pensieDeficit1 = %v, want 240000", got)
	}
	if got := data[KeyRetireBrute]; got != 260000.0 {
		t.Errorf("pensieDeficitBrut = %v, want 260000", got)
	}
	if got := data[KeyRetireFinal]; got != 180000.0 {
		t.Errorf("pensieDeficitFinal = %v, want 180000", got)
	}
}

func TestDeriveEducationMultipliesByChildren(t *testing.T) {
	data := models.Data{
		KeyEduPeriod:   "4 ani",
		KeyEduMonthly:  "800",
		KeyEduTuition:  "20000",
		KeyEduSavings:  "5000",
		KeyEduChildren: "2",
	}
	Derive(data)

	// Per child: 800*4*12 + 20000 = 58400, minus 5000 savings = 53400.
	if got := data[KeyEduBrute]; got != 58400.0 {
		t.Errorf("studiiDeficitBrut = %v, want 58400", got)
	}
	if got := data[KeyEduFinal]; got != 106800.0 {
		t.Errorf("studiiDeficitFinal = %v, want 106800", got)
	}
}

func TestDeriveEducationDefaultsToOneChild(t *testing.T) {
	data := models.Data{
		KeyEduPeriod:  "3 ani",
		KeyEduMonthly: "500",
	}
	Derive(data)
	if got := data[KeyEduFinal]; got != 18000.0 {
		t.Errorf("studiiDeficitFinal = %v, want 18000", got)
	}
}

func TestDeriveHealthScenario(t *testing.T) {
	data := models.Data{
		KeyHealthPeriod:    "2 ani",
		KeyHealthMonthly:   "1500",
		KeyHealthTreatment: "30000",
		KeyHealthInsurance: "10000",
		KeyHealthSavings:   "10000",
	}
	Derive(data)

	if got := data[KeyHealthDeficit1]; got != 36000.0 {
		t.Errorf("sanatateDeficit1 = %v, want 36000", got)
	}
	if got := data[KeyHealthBrute]; got != 66000.0 {
		t.Errorf("sanatateDeficitBrut = %v, want 66000", got)
	}
	if got := data[KeyHealthFinal]; got != 46000.0 {
		t.Errorf("sanatateDeficitFinal = %v, want 46000", got)
	}
}

func TestDeriveIgnoresUnrelatedKeys(t *testing.T) {
	data := models.Data{"nume": "Ana", "scenariu": "ceva"}
	Derive(data)
	if len(data) != 2 {
		t.Errorf("no derived keys expected, got %v", data)
	}
}

func TestNumber(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"float64", 42.5, 42.5},
		{"int", 7, 7},
		{"int64", int64(9), 9},
		{"plain string", "2000", 2000},
		{"years suffix", "5 ani", 5},
		{"thousands separator", "20.000", 20000},
		{"decimal comma", "2,5", 2.5},
		{"grouped with decimals", "1.234,56", 1234.56},
		{"empty string", "", 0},
		{"no digits", "nu știu", 0},
		{"nil", nil, 0},
		{"bool", true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Number(tc.in); got != tc.want {
				t.Errorf("Number(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
