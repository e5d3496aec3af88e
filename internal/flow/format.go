// Package flow implements the conversational questionnaire engine: message
// formatting, progress estimation and the turn-taking state machine.
package flow

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// Romanian locale printer for number rendering (thousands separator ".").
var localePrinter = message.NewPrinter(language.Romanian)

// Format substitutes {{identifier}} placeholders in a message template with
// values from the accumulated data. Numbers render with locale-aware
// thousands separators. Missing or nil keys leave the placeholder text
// unchanged so a missing upstream value stays visibly debuggable instead of
// silently blanking out.
func Format(template string, data models.Data) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := strings.TrimSuffix(strings.TrimPrefix(match, "{{"), "}}")
		v, ok := data[key]
		if !ok || v == nil {
			return match
		}
		return formatValue(v)
	})
}

func formatValue(v any) string {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return localePrinter.Sprint(number.Decimal(int64(n)))
		}
		return localePrinter.Sprint(number.Decimal(n, number.MaxFractionDigits(2)))
	case float32:
		return formatValue(float64(n))
	case int:
		return localePrinter.Sprint(number.Decimal(n))
	case int64:
		return localePrinter.Sprint(number.Decimal(n))
	case string:
		return n
	case []string:
		return strings.Join(n, ", ")
	default:
		return fmt.Sprint(v)
	}
}
