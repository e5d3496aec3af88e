// Package calc: scenario derivation pass over the accumulated response data.
package calc

import (
	"log/slog"
	"strings"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
)

// Scenario key prefixes. The derivation pass detects which scenario's
// questions have been answered by the presence of keys carrying these
// prefixes in the accumulated data. Flow authors reusing generic step ids
// will not trigger derivation; the coupling is by naming convention.
const (
	PrefixDeath      = "deces_"
	PrefixRetirement = "pensie_"
	PrefixEducation  = "studii_"
	PrefixHealth     = "sanatate_"
)

// Raw input keys per scenario, as bound by the master questionnaire.
const (
	KeyDeathPeriod    = "deces_perioada"
	KeyDeathMonthly   = "deces_cheltuieli_lunare"
	KeyDeathEvent     = "deces_costuri_eveniment"
	KeyDeathProjects  = "deces_proiecte"
	KeyDeathInsurance = "deces_asigurari"
	KeyDeathSavings   = "deces_economii"

	KeyRetirePeriod   = "pensie_perioada"
	KeyRetireMonthly  = "pensie_suma_lunara"
	KeyRetireProjects = "pensie_proiecte"
	KeyRetireState    = "pensie_asigurari"
	KeyRetireSavings  = "pensie_economii"

	KeyEduPeriod   = "studii_perioada"
	KeyEduMonthly  = "studii_suma_lunara"
	KeyEduTuition  = "studii_taxe"
	KeyEduSavings  = "studii_economii"
	KeyEduChildren = "studii_copii"

	KeyHealthPeriod    = "sanatate_perioada"
	KeyHealthMonthly   = "sanatate_cheltuieli_lunare"
	KeyHealthTreatment = "sanatate_costuri_tratament"
	KeyHealthInsurance = "sanatate_asigurari"
	KeyHealthSavings   = "sanatate_economii"
)

// Derived output keys. These are the only keys Derive ever writes.
const (
	KeyDeficit1     = "deficit1"
	KeyDeficitBrute = "bruteDeficit"
	KeyDeficitFinal = "finalDeficit"

	KeyRetireDeficit1 = "pensieDeficit1"
	KeyRetireBrute    = "pensieDeficitBrut"
	KeyRetireFinal    = "pensieDeficitFinal"

	KeyEduDeficit1 = "studiiDeficit1"
	KeyEduBrute    = "studiiDeficitBrut"
	KeyEduFinal    = "studiiDeficitFinal"

	KeyHealthDeficit1 = "sanatateDeficit1"
	KeyHealthBrute    = "sanatateDeficitBrut"
	KeyHealthFinal    = "sanatateDeficitFinal"
)

// Derive recomputes the per-scenario deficit figures for every scenario
// whose prefixed raw keys are present in the data bag. It runs on every
// response cycle: recomputation is idempotent and only derived keys are
// ever overwritten, so re-running on an unchanged bag is a no-op.
func Derive(data models.Data) {
	if hasPrefixedKey(data, PrefixDeath) {
		deriveDeath(data)
	}
	if hasPrefixedKey(data, PrefixRetirement) {
		deriveRetirement(data)
	}
	if hasPrefixedKey(data, PrefixEducation) {
		deriveEducation(data)
	}
	if hasPrefixedKey(data, PrefixHealth) {
		deriveHealth(data)
	}
}

func deriveDeath(data models.Data) {
	monthly := Number(data[KeyDeathMonthly])
	years := Number(data[KeyDeathPeriod])
	deficit1 := monthly * years * 12
	brute := deficit1 + Number(data[KeyDeathEvent]) + Number(data[KeyDeathProjects])
	final := brute - Number(data[KeyDeathInsurance]) - Number(data[KeyDeathSavings])
	if final < 0 {
		final = 0
	}
	data[KeyDeficit1] = deficit1
	data[KeyDeficitBrute] = brute
	data[KeyDeficitFinal] = final
	slog.Debug("calc.Derive death scenario", "deficit1", deficit1, "brute", brute, "final", final)
}

func deriveRetirement(data models.Data) {
	deficit1 := Number(data[KeyRetireMonthly]) * Number(data[KeyRetirePeriod]) * 12
	brute := deficit1 + Number(data[KeyRetireProjects])
	final := brute - Number(data[KeyRetireState]) - Number(data[KeyRetireSavings])
	if final < 0 {
		final = 0
	}
	data[KeyRetireDeficit1] = deficit1
	data[KeyRetireBrute] = brute
	data[KeyRetireFinal] = final
	slog.Debug("calc.Derive retirement scenario", "deficit1", deficit1, "brute", brute, "final", final)
}

func deriveEducation(data models.Data) {
	deficit1 := Number(data[KeyEduMonthly]) * Number(data[KeyEduPeriod]) * 12
	brute := deficit1 + Number(data[KeyEduTuition])
	perChild := brute - Number(data[KeyEduSavings])
	if perChild < 0 {
		perChild = 0
	}
	children := Number(data[KeyEduChildren])
	if children <= 0 {
		children = 1
	}
	data[KeyEduDeficit1] = deficit1
	data[KeyEduBrute] = brute
	data[KeyEduFinal] = perChild * children
	slog.Debug("calc.Derive education scenario", "deficit1", deficit1, "brute", brute, "final", perChild*children, "children", children)
}

func deriveHealth(data models.Data) {
	deficit1 := Number(data[KeyHealthMonthly]) * Number(data[KeyHealthPeriod]) * 12
	brute := deficit1 + Number(data[KeyHealthTreatment])
	final := brute - Number(data[KeyHealthInsurance]) - Number(data[KeyHealthSavings])
	if final < 0 {
		final = 0
	}
	data[KeyHealthDeficit1] = deficit1
	data[KeyHealthBrute] = brute
	data[KeyHealthFinal] = final
	slog.Debug("calc.Derive health scenario", "deficit1", deficit1, "brute", brute, "final", final)
}

func hasPrefixedKey(data models.Data, prefix string) bool {
	for k := range data {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// Number coerces an accumulated value to a float64. Strings are parsed
// leniently: "5 ani" yields 5, "20.000" yields 20000 (Romanian thousands
// separator), "2,5" yields 2.5. Unparseable values yield 0.
func Number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		return parseAmount(n)
	default:
		return 0
	}
}

func parseAmount(s string) float64 {
	var (
		value    float64
		fraction float64
		divisor  float64
		started  bool
		decimal  bool
	)
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			started = true
			if decimal {
				fraction = fraction*10 + float64(r-'0')
				divisor *= 10
			} else {
				value = value*10 + float64(r-'0')
			}
		case r == ',' && started && !decimal:
			decimal = true
			divisor = 1
		case r == '.' && started:
			// thousands separator, skip
		case r == ' ' && started:
			// grouping space, skip
		default:
			if started {
				if decimal && divisor > 1 {
					value += fraction / divisor
				}
				return value
			}
		}
	}
	if decimal && divisor > 1 {
		value += fraction / divisor
	}
	return value
}
