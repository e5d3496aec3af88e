// Package calc provides the pure deficit, savings-plan and premium
// calculations behind the financial-needs questionnaire.
package calc

import "log/slog"

// MinimumMonthlyPremium is the business floor applied to the monthly
// premium after the annual figure is divided by twelve.
const MinimumMonthlyPremium = 100.0

// SmokerMultiplier doubles the base rate for smoking profiles.
const SmokerMultiplier = 2.0

// DeficitInputs are the numeric inputs of a protection-deficit calculation.
type DeficitInputs struct {
	MonthlyExpense    float64
	Years             float64
	EventCosts        float64
	ProjectCosts      float64
	ExistingInsurance float64
	Savings           float64
}

// Deficit computes the uncovered protection need. The result is never
// negative: existing resources can cover the need but not flip its sign.
func Deficit(in DeficitInputs) float64 {
	need := in.MonthlyExpense*in.Years*12 + in.EventCosts + in.ProjectCosts
	deficit := need - in.ExistingInsurance - in.Savings
	if deficit < 0 {
		return 0
	}
	return deficit
}

// SavingsInputs are the numeric inputs of a savings-plan calculation.
type SavingsInputs struct {
	TargetAmount float64
	Savings      float64
	Years        float64
}

// SavingsPlan describes the monthly contribution needed to reach a target.
type SavingsPlan struct {
	MonthlyContribution float64
	TargetAmount        float64
	Years               float64
}

// CalculateSavingsPlan computes the monthly contribution required to grow
// current savings to the target over the given horizon. A non-positive
// horizon yields a zero contribution rather than propagating a division
// by zero.
func CalculateSavingsPlan(in SavingsInputs) SavingsPlan {
	plan := SavingsPlan{TargetAmount: in.TargetAmount, Years: in.Years}
	if in.Years <= 0 {
		return plan
	}
	contribution := (in.TargetAmount - in.Savings) / (in.Years * 12)
	if contribution < 0 {
		contribution = 0
	}
	plan.MonthlyContribution = contribution
	return plan
}

// Profile describes the insured person for a premium quote.
type Profile struct {
	Age            int
	Gender         string // "M" or "F"; unknown values use the male table
	Smoker         bool
	CoverageAmount float64
}

// PremiumQuote is the computed annual and monthly premium for a profile.
type PremiumQuote struct {
	AnnualPremium  float64
	MonthlyPremium float64
}

// Base rates per 1000 currency units of coverage, banded by age.
// Bands: <=29, <=39, <=49, <=59, else top band.
var (
	maleBaseRates   = [5]float64{6.0, 9.5, 16.0, 28.0, 52.0}
	femaleBaseRates = [5]float64{5.0, 8.0, 13.5, 24.0, 45.0}
)

func ageBand(age int) int {
	switch {
	case age <= 29:
		return 0
	case age <= 39:
		return 1
	case age <= 49:
		return 2
	case age <= 59:
		return 3
	default:
		return 4
	}
}

// Premium quotes a term-life premium from the fixed rate table. The
// minimum-premium floor applies to the monthly figure after division,
// never to the annual figure.
func Premium(p Profile) PremiumQuote {
	rates := maleBaseRates
	if p.Gender == "F" {
		rates = femaleBaseRates
	}
	base := rates[ageBand(p.Age)]
	if p.Smoker {
		base *= SmokerMultiplier
	}
	annual := base * p.CoverageAmount / 1000
	monthly := annual / 12
	if monthly < MinimumMonthlyPremium {
		monthly = MinimumMonthlyPremium
	}
	slog.Debug("calc.Premium computed", "age", p.Age, "gender", p.Gender, "smoker", p.Smoker, "coverage", p.CoverageAmount, "annual", annual, "monthly", monthly)
	return PremiumQuote{AnnualPremium: annual, MonthlyPremium: monthly}
}
