package mailer

import (
	"strings"
	"testing"
)

func fptr(v float64) *float64 { return &v }

func sptr(s string) *string { return &s }

func TestBuildResultEmail(t *testing.T) {
	data := ResultEmailData{
		NameOrEmail:     "Ana García",
		ExamTitle:       "Biología I",
		TotalPoints:     17.5,
		CommentsOverall: sptr("Muy buen desempeño general."),
		Answers: []ResultAnswer{
			{
				Index:        1,
				QuestionText: "Explica la mitosis.",
				MaxPoints:    10,
				AnswerText:   "La mitosis es la división celular.",
				Points:       fptr(8.5),
				Comment:      sptr("Falta mencionar las fases."),
			},
			{
				Index:        2,
				QuestionText: "Define gen.",
				MaxPoints:    10,
				AnswerText:   "",
				Points:       nil,
			},
		},
	}

	html, err := BuildResultEmail(data)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"Hola Ana García",
		"Resultados del Examen: Biología I",
		"Nota final: 17.5 puntos",
		"Muy buen desempeño general.",
		"Pregunta 1",
		"Explica la mitosis.",
		"8.5",
		"Falta mencionar las fases.",
		"Pregunta 2",
		"Sin respuesta",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("email missing %q", want)
		}
	}
}

func TestBuildResultEmailOmitsEmptySections(t *testing.T) {
	html, err := BuildResultEmail(ResultEmailData{
		NameOrEmail: "ana@example.com",
		ExamTitle:   "Química",
		TotalPoints: 5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "Comentarios generales") {
		t.Error("overall comments section rendered without data")
	}
	if strings.Contains(html, "Detalle de la corrección") {
		t.Error("answer detail section rendered without answers")
	}
}

func TestBuildResultEmailEscapesHTML(t *testing.T) {
	html, err := BuildResultEmail(ResultEmailData{
		NameOrEmail: "ana@example.com",
		ExamTitle:   "Historia",
		TotalPoints: 3,
		Answers: []ResultAnswer{
			{Index: 1, QuestionText: "¿Qué pasó en 1492?", MaxPoints: 5, AnswerText: "<script>alert(1)</script>"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("answer text not escaped")
	}
}

func TestBuildSuggestionsEmail(t *testing.T) {
	html, err := BuildSuggestionsEmail(SuggestionsEmailData{ExamTitle: "Física", GradedCount: 12})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Física", "12 entregas", "Sugerencias de IA Generadas"} {
		if !strings.Contains(html, want) {
			t.Errorf("email missing %q", want)
		}
	}
}
