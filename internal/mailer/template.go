package mailer

import (
	"html/template"
	"strings"
)

// ResultAnswer is one graded question in the respondent's result email.
// Points and Comment already reflect the definitive source chosen for the
// submission.
type ResultAnswer struct {
	Index        int
	QuestionText string
	MaxPoints    int
	AnswerText   string
	Points       *float64
	Comment      *string
}

// ResultEmailData feeds the respondent result template.
type ResultEmailData struct {
	NameOrEmail     string
	ExamTitle       string
	TotalPoints     float64
	CommentsOverall *string
	Answers         []ResultAnswer
}

var resultEmailTmpl = template.Must(template.New("result").Parse(`
<div style="font-family: sans-serif; line-height: 1.6; max-width: 800px; margin: 0 auto;">
  <h2 style="color: #333; border-bottom: 2px solid #007bff; padding-bottom: 10px;">Resultados del Examen: {{.ExamTitle}}</h2>
  <p>Hola {{.NameOrEmail}},</p>
  <p>Ya está disponible la corrección de tu examen. A continuación encontrarás los detalles de tu evaluación.</p>
  <hr>
  <p style="font-size: 1.5em; text-align: center; margin: 20px 0;"><strong>Nota final: {{.TotalPoints}} puntos</strong></p>
  {{if .CommentsOverall}}
  <p><strong>Comentarios generales:</strong></p>
  <p style="padding: 10px; border: 1px solid #eee; background-color: #f9f9f9;">{{.CommentsOverall}}</p>
  {{end}}
  {{if .Answers}}
  <h3 style="margin-top: 30px;">Detalle de la corrección</h3>
  {{range .Answers}}
  <div style="margin-bottom: 25px; border: 1px solid #ddd; border-radius: 8px; padding: 15px;">
    <h4 style="margin-top: 0; border-bottom: 1px solid #eee; padding-bottom: 10px;">Pregunta {{.Index}}</h4>
    <p><strong>Enunciado:</strong> {{.QuestionText}}</p>
    <p><strong>Puntuación máxima:</strong> {{.MaxPoints}} puntos</p>
    <div style="margin: 15px 0; padding: 10px; background-color: #f5f5f5; border-radius: 4px;">
      <p style="margin-top: 0;"><strong>Tu respuesta:</strong></p>
      <p style="white-space: pre-wrap;">{{if .AnswerText}}{{.AnswerText}}{{else}}&lt;Sin respuesta&gt;{{end}}</p>
    </div>
    <p><strong>Puntuación obtenida:</strong> {{if .Points}}{{.Points}}{{else}}0{{end}} / {{.MaxPoints}} puntos</p>
    {{if .Comment}}<p><strong>Comentario:</strong> {{.Comment}}</p>{{end}}
  </div>
  {{end}}
  {{end}}
  <hr>
  <p style="font-size: 0.8em; color: #777; text-align: center; margin-top: 30px;">Gracias por participar.</p>
</div>
`))

// BuildResultEmail renders the respondent result email as HTML.
func BuildResultEmail(data ResultEmailData) (string, error) {
	var b strings.Builder
	if err := resultEmailTmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// SuggestionsEmailData feeds the professor notification sent when a
// grading job finishes.
type SuggestionsEmailData struct {
	ExamTitle   string
	GradedCount int
}

var suggestionsEmailTmpl = template.Must(template.New("suggestions").Parse(`
<div style="font-family: sans-serif; line-height: 1.6;">
  <h2>Sugerencias de IA Generadas</h2>
  <p>Hola,</p>
  <p>El proceso para generar sugerencias de la IA para tu examen "<strong>{{.ExamTitle}}</strong>" ha finalizado.</p>
  <hr>
  <p>Se han generado sugerencias para <strong>{{.GradedCount}} entregas</strong>.</p>
  <p>Ya puedes revisar las entregas desde el panel del examen.</p>
  <hr>
  <p style="font-size: 0.8em; color: #777;">El equipo de Corrigo.</p>
</div>
`))

// BuildSuggestionsEmail renders the professor job-finished email.
func BuildSuggestionsEmail(data SuggestionsEmailData) (string, error) {
	var b strings.Builder
	if err := suggestionsEmailTmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
