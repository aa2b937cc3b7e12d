package ai

import (
	"fmt"
	"strings"

	"github.com/corrigolabs/corrigo-backend/internal/model"
)

// modeInstructions maps a grading mode to the tone instructions embedded in
// the system prompt. The prompts are Spanish because the product grades
// Spanish-language exams.
var modeInstructions = map[model.GradingMode]string{
	model.GradingModeNeutral: "Mantén un tono profesional y equilibrado. Penaliza y recompensa con justicia, ajustándote a la rúbrica.",
	model.GradingModeStrict:  "Modo severo y exigente: sé estricto al asignar puntos, penaliza imprecisiones, ambigüedades y errores de razonamiento. No otorgues puntos por aproximaciones vagas.",
	model.GradingModeLenient: "Modo amable y optimista: prioriza el refuerzo positivo, valora la intención y otorga puntos parciales cuando haya indicios razonables, manteniendo coherencia con la rúbrica.",
}

// normalizeMode validates a grading mode, defaulting to NEUTRAL.
func normalizeMode(mode model.GradingMode) model.GradingMode {
	switch mode {
	case model.GradingModeNeutral, model.GradingModeStrict, model.GradingModeLenient:
		return mode
	default:
		return model.GradingModeNeutral
	}
}

func buildSystemPrompt(mode model.GradingMode) string {
	return fmt.Sprintf(`Eres un corrector pedagógico y constructivo. Evalúas respuestas de examen usando una RÚBRICA del profesor.
Tu objetivo es ayudar al estudiante a mejorar con feedback útil y educativo.

MODO DE CORRECCIÓN: %s.
Instrucciones de modo: %s.

ESTRUCTURA de tu respuesta JSON:
- "pointsAwarded": puntuación numérica
- "comment": comentario general siguiendo estructura pedagógica
- "overallComment": comentario global sobre la respuesta
- "inlineComments": array de comentarios específicos sobre fragmentos de texto

Para inlineComments, cada elemento debe tener:
- "id": identificador único (ej: "c1", "c2")
- "startIndex": posición inicial del texto comentado
- "endIndex": posición final del texto comentado
- "text": comentario específico sobre ese fragmento
- "quote": la frase EXACTA (subcadena literal) de la respuesta del alumno que quieres comentar. Debe existir tal cual en la respuesta. Evita reformular; usa texto literal. Manténla acotada (≈5–25 palabras).

CUÁNDO usar inlineComments:
- Respuestas largas (>50 palabras) con múltiples conceptos
- Errores específicos en partes concretas
- Aciertos destacables en fragmentos específicos
- Nunca para respuestas muy cortas

FORMATO DEL TEXTO (Markdown simple):
- Los campos "comment" y "overallComment" pueden usar Markdown simple: **negrita**, *cursiva* o _cursiva_.
- Cualquier línea que empiece por "# " se interpreta como un título breve. No uses niveles múltiples de encabezado.
- Evita otros elementos de Markdown (listas, enlaces, tablas, código, etc.).

Devuelves SIEMPRE JSON válido.`, mode, modeInstructions[mode])
}

func buildUserPrompt(in GradingInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ALUMNO: %q\n", in.StudentLabel)
	fmt.Fprintf(&sb, "RÚBRICA: %q\n", in.RubricText)
	fmt.Fprintf(&sb, "ENUNCIADO: %q (máximo %d puntos)\n", in.QuestionText, in.MaxPoints)
	fmt.Fprintf(&sb, "RESPUESTA DEL ALUMNO: %q\n\n", in.AnswerText)
	sb.WriteString("Evalúa la respuesta y genera:\n")
	sb.WriteString("1. **Comentario general** con aspectos positivos, a mejorar, justificación y consejos\n")
	sb.WriteString("2. **Comentarios específicos** (solo si la respuesta es larga) señalando fragmentos concretos\n\n")
	sb.WriteString("Para los índices de texto, cuenta caracteres desde el inicio de la respuesta (empezando en 0).\n")
	sb.WriteString("Además, por cada comentario en línea incluye también \"quote\" con la subcadena EXACTA (texto literal) de la respuesta que estás comentando. Esta \"quote\" debe aparecer en la respuesta sin cambios.\n\n")
	sb.WriteString("Usa el Markdown simple indicado únicamente en \"comment\" y \"overallComment\". No uses otros elementos de Markdown.\n\n")
	sb.WriteString("Devuelve SOLO el JSON.")
	return sb.String()
}

// Simplified prompts used on the single truncation-recovery retry: much
// shorter input, comment-only output, higher token budget.

func buildSimplifiedSystemPrompt(maxPoints int) string {
	return fmt.Sprintf(`Evalúa esta respuesta de examen y devuelve JSON con:
- "pointsAwarded": puntuación numérica (0-%d)
- "comment": comentario breve (máximo 200 caracteres)

Devuelve SOLO el JSON.`, maxPoints)
}

func buildSimplifiedUserPrompt(in GradingInput) string {
	return fmt.Sprintf("RÚBRICA: %q\nPREGUNTA: %q (%d puntos máximo)\nRESPUESTA: %q\n\nEvalúa y devuelve JSON.",
		truncate(in.RubricText, 500),
		truncate(in.QuestionText, 300),
		in.MaxPoints,
		truncate(in.AnswerText, 800),
	)
}

// truncate caps s at max runes. Byte slicing would split multi-byte
// characters, and the Spanish responses are full of them.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
