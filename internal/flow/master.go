// Package flow: the built-in master questionnaire.
//
// This is the code-defined flow used by agents who have not published a
// custom flow from the editor. It walks the four financial-needs scenarios
// (deces / pensie / studii / sănătate), binds answers to the scenario keys
// the calculator derives from, and converges on the shared contact step.
package flow

import (
	"github.com/Projects025/dialog-cu-marius-sub000/internal/calc"
	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
)

// MasterFlowID identifies the built-in questionnaire.
const MasterFlowID = "master"

// Shared convergence step ids.
const (
	StepContact  = "contact"
	StepThankYou = "multumim"
)

// Scenario branch labels shown on the top-level branch step.
const (
	LabelDeath      = "Protecție în caz de deces"
	LabelRetirement = "Venit la pensie"
	LabelEducation  = "Studiile copiilor"
	LabelHealth     = "Probleme de sănătate"
)

// MasterFlow builds the built-in questionnaire graph. Each call returns a
// fresh value; flows are cheap and conversations must not share steps with
// captured state.
func MasterFlow() *models.Flow {
	steps := map[string]models.Step{
		"intro": {
			ID: "intro",
			Messages: []string{
				"Salut! Sunt Marius, asistentul tău pentru analiza nevoilor financiare. 👋",
				"În câteva minute aflăm împreună cât de bine este protejată familia ta.",
			},
			Action:       models.ActionButtons,
			Buttons:      []models.ButtonOption{{Label: ContinueLabel}},
			Next:         "nume",
			AutoContinue: false,
		},
		"nume": {
			ID:             "nume",
			Messages:       []string{"Înainte de toate, cum te numești?"},
			Action:         models.ActionInput,
			Input:          &models.InputSpec{Type: "text", Placeholder: "Numele tău"},
			Next:           "scenarii",
			IsProgressStep: true,
			MinLength:      2,
			Handler: func(resp models.Response, data models.Data) {
				data["nume"] = resp.Text
			},
		},
		"scenarii": {
			ID:       "scenarii",
			Messages: []string{"Mulțumesc, {{nume}}! Ce scenariu vrei să analizăm împreună?"},
			Action:   models.ActionButtons,
			Buttons: []models.ButtonOption{
				{Label: LabelDeath, NextStep: "deces_intro"},
				{Label: LabelRetirement, NextStep: "pensie_intro"},
				{Label: LabelEducation, NextStep: "studii_intro"},
				{Label: LabelHealth, NextStep: "sanatate_intro"},
			},
			IsProgressStep: true,
			BranchStart:    true,
			Handler: func(resp models.Response, data models.Data) {
				data["scenariu"] = resp.Text
			},
		},

		// Death scenario.
		"deces_intro": {
			ID: "deces_intro",
			Messages: []string{
				"Un subiect greu, dar important. 🕯️",
				"Hai să vedem ce sumă i-ar trebui familiei tale dacă venitul tău ar dispărea.",
			},
			Action:       models.ActionButtons,
			AutoContinue: true,
			Next:         "deces_perioada",
		},
		"deces_perioada": {
			ID:             "deces_perioada",
			Messages:       []string{"Pentru câți ani ar avea familia nevoie de sprijin financiar?"},
			Action:         models.ActionButtons,
			Buttons:        []models.ButtonOption{{Label: "3 ani"}, {Label: "5 ani"}, {Label: "10 ani"}},
			Next:           "deces_cheltuieli_lunare",
			IsProgressStep: true,
		},
		"deces_cheltuieli_lunare": {
			ID:             "deces_cheltuieli_lunare",
			Messages:       []string{"Care sunt cheltuielile lunare ale familiei? (EUR)"},
			Action:         models.ActionInput,
			Input:          &models.InputSpec{Type: "number", Placeholder: "de ex. 2000"},
			Next:           "deces_costuri_eveniment",
			IsProgressStep: true,
		},
		"deces_costuri_eveniment": {
			ID:             "deces_costuri_eveniment",
			Messages:       []string{"Ce costuri unice ar apărea imediat? (datorii, credite, alte costuri)"},
			Action:         models.ActionInput,
			Input:          &models.InputSpec{Type: "number", Placeholder: "de ex. 20000"},
			Next:           "deces_proiecte",
			IsProgressStep: true,
		},
		"deces_proiecte": {
			ID:             "deces_proiecte",
			Messages:       []string{"Ce sumă ai vrea să rămână pentru proiectele familiei?"},
			Action:         models.ActionInput,
			Input:          &models.InputSpec{Type: "number", Placeholder: "de ex. 10000"},
			Next:           "deces_asigurari",
			IsProgressStep: true,
		},
		"deces_asigurari": {
			ID:             "deces_asigurari",
			Messages:       []string{"Ce sume ar primi familia din asigurări existente?"},
			Action:         models.ActionInput,
			Input:          &models.InputSpec{Type: "number", Placeholder: "0 dacă nu ai"},
			Next:           "deces_economii",
			IsProgressStep: true,
		},
		"deces_economii": {
			ID:             "deces_economii",
			Messages:       []string{"Și ce economii are familia acum?"},
			Action:         models.ActionInput,
			Input:          &models.InputSpec{Type: "number", Placeholder: "de ex. 10000"},
			Next:           "deces_rezultat",
			IsProgressStep: true,
		},
		"deces_rezultat": {
			ID:           "deces_rezultat",
			Action:       models.ActionButtons,
			AutoContinue: true,
			MessageFn: func(data models.Data) []string {
				if calc.Number(data[calc.KeyDeficitFinal]) <= 0 {
					return []string{"Vestea bună: resursele existente acoperă integral nevoia familiei. 🎉"}
				}
				return []string{
					"Am calculat. Nevoia totală a familiei este de {{bruteDeficit}} EUR.",
					"După ce scădem asigurările și economiile, deficitul de protecție este {{finalDeficit}} EUR.",
				}
			},
			Next: StepContact,
		},

		// Retirement scenario.
		"pensie_intro": {
			ID: "pensie_intro",
			Messages: []string{
				"Pensia poate fi cea mai lungă vacanță din viața ta. 🏖️",
				"Hai să vedem dacă va fi și una liniștită financiar.",
			},
			Action:       models.ActionButtons,
			AutoContinue: true,
			Next:         "pensie_perioada",
		},
		"pensie_perioada": {
			ID:             "pensie_perioada",
			Messages:       []string{"Câți ani estimezi că vei petrece la pensie?"},
			Action:         models.ActionButtons,
			Buttons:        []models.ButtonOption{{Label: "15 ani"}, {Label: "20 ani"}, {Label: "25 ani"}},
			Next:           "pensie_suma_lunara",
			IsProgressStep: true,
		},
		"pensie_suma_lunara": {
			ID:             "pensie_suma_lunara",
			Messages:       []string{"Ce venit lunar ți-ai dori la pensie, peste pensia de stat? (EUR)"},
			Action:         models.ActionInput,
			Input:          &models.InputSpec{Type: "number", Placeholder: "de ex. 1000"},
			Next:           "pensie_proiecte",
			IsProgressStep: true,
		},
		"pensie_proiecte": {
			ID:             "pensie_proiecte",
			Messages:       []string{"Ce sumă ai vrea pentru proiecte speciale? (călătorii, casă, altele)"},
			Action:         models.ActionInput,
			Input:          &models.InputSpec{Type: "number", Placeholder: "de ex. 20000"},
			Next:           "pensie_asigurari",
			IsProgressStep: true,
		},
		"pensie_asigurari": {
			ID:             "pensie_asigurari",
			Messages:       []string{"Ce sume vei primi din pensii private sau asigurări existente?"},
			Action:         models.ActionInput,
			Input:          &models.InputSpec{Type: "number", Placeholder: "0 dacă nu ai"},
			Next:           "pensie_economii",
			IsProgressStep: true,
		},
		"pensie_economii": {
			ID:             "pensie_economii",
			Messages:       []string{"Și ce economii ai pus deja deoparte pentru pensie?"},
			Action:         models.ActionInput,
			Input:          &models.InputSpec{Type: "number", Placeholder: "de ex. 15000"},
			Next:           "pensie_rezultat",
			IsProgressStep: true,
		},
		"pensie_rezultat": {
			ID:     "pensie_rezultat",
			Action: models.ActionButtons,
			Messages: []string{
				"Nevoia totală pentru pensia dorită este {{pensieDeficitBrut}} EUR.",
				"Deficitul rămas de acoperit este {{pensieDeficitFinal}} EUR.",
			},
			AutoContinue: true,
			NextFn: func(resp models.Response, data models.Data) string {
				if calc.Number(data[calc.KeyRetireFinal]) <= 0 {
					return "felicitari"
				}
				return StepContact
			},
		},
		"felicitari": {
			ID:           "felicitari",
			Messages:     []string{"Felicitări, ești pe drumul cel bun! Un specialist îți poate confirma planul. 💪"},
			Action:       models.ActionButtons,
			AutoContinue: true,
			Next:         StepContact,
		},

		// Education scenario.
		"studii_intro": {
			ID: "studii_intro",
			Messages: []string{
				"Studiile copiilor sunt una dintre cele mai frumoase investiții. 🎓",
				"Hai să vedem ce buget ar fi necesar.",
			},
			Action:       models.ActionButtons,
			AutoContinue: true,
			Next:         "studii_copii",
		},
		"studii_copii": {
			ID:             "studii_copii",
			Messages:       []string{"Pentru câți copii planifici studiile?"},
			Action:         models.ActionButtons,
			Buttons:        []models.ButtonOption{{Label: "1"}, {Label: "2"}, {Label: "3"}},
			Next:           "studii_perioada",
			IsProgressStep: true,
		},
		"studii_perioada": {
			ID:             "studii_perioada",
			Messages:       []string{"Câți ani de studii vrei să susții pentru fiecare copil?"},
			Action:         models.ActionButtons,
			Buttons:        []models.ButtonOption{{Label: "3 ani"}, {Label: "4 ani"}, {Label: "5 ani"}},
			Next:           "studii_suma_lunara",
			IsProgressStep: true,
		},
		"studii_suma_lunara": {
			ID:             "studii_suma_lunara",
			Messages:       []string{"Ce sumă lunară estimezi pentru întreținere în timpul studiilor? (EUR)"},
			Action:         models.ActionInput,
			Input:          &models.InputSpec{Type: "number", Placeholder: "de ex. 800"},
			Next:           "studii_taxe",
			IsProgressStep: true,
		},
		"studii_taxe": {
			ID:             "studii_taxe",
			Messages:       []string{"Ce taxe de studii estimezi în total pentru un copil?"},
			Action:         models.ActionInput,
			Input:          &models.InputSpec{Type: "number", Placeholder: "de ex. 20000"},
			Next:           "studii_economii",
			IsProgressStep: true,
		},
		"studii_economii": {
			ID:             "studii_economii",
			Messages:       []string{"Ce economii ai deja puse deoparte pentru studii, per copil?"},
			Action:         models.ActionInput,
			Input:          &models.InputSpec{Type: "number", Placeholder: "de ex. 5000"},
			Next:           "studii_rezultat",
			IsProgressStep: true,
		},
		"studii_rezultat": {
			ID:     "studii_rezultat",
			Action: models.ActionButtons,
			Messages: []string{
				"Bugetul necesar pentru un copil este {{studiiDeficitBrut}} EUR.",
				"Pentru toți copiii, deficitul total de acoperit este {{studiiDeficitFinal}} EUR.",
			},
			AutoContinue: true,
			Next:         StepContact,
		},

		// Health scenario.
		"sanatate_intro": {
			ID: "sanatate_intro",
			Messages: []string{
				"Sănătatea e baza tuturor planurilor. 🩺",
				"Hai să vedem ce rezervă ți-ar trebui dacă nu ai putea lucra o perioadă.",
			},
			Action:       models.ActionButtons,
			AutoContinue: true,
			Next:         "sanatate_perioada",
		},
		"sanatate_perioada": {
			ID:             "sanatate_perioada",
			Messages:       []string{"Pentru câți ani ai vrea să fie acoperite cheltuielile în caz de boală gravă?"},
			Action:         models.ActionButtons,
			Buttons:        []models.ButtonOption{{Label: "1 an"}, {Label: "2 ani"}, {Label: "3 ani"}},
			Next:           "sanatate_cheltuieli_lunare",
			IsProgressStep: true,
		},
		"sanatate_cheltuieli_lunare": {
			ID:             "sanatate_cheltuieli_lunare",
			Messages:       []string{"Ce cheltuieli lunare ar trebui acoperite în această perioadă? (EUR)"},
			Action:         models.ActionInput,
			Input:          &models.InputSpec{Type: "number", Placeholder: "de ex. 1500"},
			Next:           "sanatate_costuri_tratament",
			IsProgressStep: true,
		},
		"sanatate_costuri_tratament": {
			ID:             "sanatate_costuri_tratament",
			Messages:       []string{"Ce costuri de tratament estimezi? (intervenții, recuperare)"},
			Action:         models.ActionInput,
			Input:          &models.InputSpec{Type: "number", Placeholder: "de ex. 30000"},
			Next:           "sanatate_asigurari",
			IsProgressStep: true,
		},
		"sanatate_asigurari": {
			ID:             "sanatate_asigurari",
			Messages:       []string{"Ce sume ai primi din asigurări de sănătate existente?"},
			Action:         models.ActionInput,
			Input:          &models.InputSpec{Type: "number", Placeholder: "0 dacă nu ai"},
			Next:           "sanatate_economii",
			IsProgressStep: true,
		},
		"sanatate_economii": {
			ID:             "sanatate_economii",
			Messages:       []string{"Și ce economii ai putea folosi?"},
			Action:         models.ActionInput,
			Input:          &models.InputSpec{Type: "number", Placeholder: "de ex. 10000"},
			Next:           "sanatate_rezultat",
			IsProgressStep: true,
		},
		"sanatate_rezultat": {
			ID:     "sanatate_rezultat",
			Action: models.ActionButtons,
			Messages: []string{
				"Rezerva totală necesară este {{sanatateDeficitBrut}} EUR.",
				"Deficitul rămas de acoperit este {{sanatateDeficitFinal}} EUR.",
			},
			AutoContinue: true,
			Next:         StepContact,
		},

		// Shared tail.
		StepContact: {
			ID: StepContact,
			Messages: []string{
				"Un consultant îți poate pregăti o soluție exactă pentru acest deficit.",
				"Lasă-mi datele tale de contact și te sună în cel mai scurt timp.",
			},
			Action: models.ActionForm,
			Form: &models.FormSpec{
				Fields: []models.FormField{
					{Key: "nume", Label: "Nume și prenume", Required: true},
					{Key: "telefon", Label: "Telefon", Required: true, InputType: "tel"},
					{Key: "email", Label: "Email", InputType: "email"},
				},
				ConsentText: "Sunt de acord ca datele mele să fie transmise consultantului pentru a fi contactat.",
			},
			Next:           StepThankYou,
			IsProgressStep: true,
			Handler: func(resp models.Response, data models.Data) {
				for key, value := range resp.Fields {
					data["contact_"+key] = value
				}
			},
		},
		StepThankYou: {
			ID:       StepThankYou,
			Messages: []string{"Mulțumesc, {{nume}}! Un consultant te va contacta în curând. 🤝"},
			Action:   models.ActionEnd,
		},
	}

	return &models.Flow{
		ID:          MasterFlowID,
		Name:        "Analiza nevoilor financiare",
		StartStepID: "intro",
		Steps:       steps,
	}
}
