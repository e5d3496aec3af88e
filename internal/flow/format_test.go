package flow

import (
	"testing"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
)

func TestFormatSubstitutesPlaceholders(t *testing.T) {
	data := models.Data{"nume": "Ana"}
	got := Format("Mulțumesc, {{nume}}!", data)
	if got != "Mulțumesc, Ana!" {
		t.Errorf("Format() = %q", got)
	}
}

func TestFormatNumbersUseLocaleSeparators(t *testing.T) {
	data := models.Data{"finalDeficit": 140000.0}
	got := Format("Deficitul este {{finalDeficit}} EUR.", data)
	if got != "Deficitul este 140.000 EUR." {
		t.Errorf("Format() = %q", got)
	}
}

func TestFormatFractionalNumber(t *testing.T) {
	data := models.Data{"rata": 2.5}
	got := Format("{{rata}}", data)
	if got != "2,5" {
		t.Errorf("Format() = %q", got)
	}
}

func TestFormatMissingKeyLeavesPlaceholder(t *testing.T) {
	got := Format("Salut, {{nume}}!", models.Data{})
	if got != "Salut, {{nume}}!" {
		t.Errorf("missing key should stay visible, got %q", got)
	}
}

func TestFormatNilValueLeavesPlaceholder(t *testing.T) {
	got := Format("{{x}}", models.Data{"x": nil})
	if got != "{{x}}" {
		t.Errorf("nil value should stay visible, got %q", got)
	}
}

func TestFormatMultiplePlaceholders(t *testing.T) {
	data := models.Data{"a": 1000.0, "b": "doi"}
	got := Format("{{a}} și {{b}} și {{c}}", data)
	if got != "1.000 și doi și {{c}}" {
		t.Errorf("Format() = %q", got)
	}
}

func TestFormatArrayValue(t *testing.T) {
	data := models.Data{"alegeri": []string{"casă", "mașină"}}
	got := Format("{{alegeri}}", data)
	if got != "casă, mașină" {
		t.Errorf("Format() = %q", got)
	}
}
