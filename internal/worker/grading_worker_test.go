package worker

import (
	"testing"

	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/google/uuid"
)

func TestSplitAnsweredSkipsBlankAnswers(t *testing.T) {
	answered := model.Question{ID: uuid.New(), Text: "Define la fotosíntesis", MaxPoints: 10}
	spaces := model.Question{ID: uuid.New(), Text: "Explica la mitosis", MaxPoints: 5}
	tabs := model.Question{ID: uuid.New(), Text: "Describe la célula", MaxPoints: 5}
	empty := model.Question{ID: uuid.New(), Text: "Nombra los planetas", MaxPoints: 5}
	missing := model.Question{ID: uuid.New(), Text: "Define la gravedad", MaxPoints: 5}

	answerByQ := map[uuid.UUID]string{
		answered.ID: "La fotosíntesis convierte luz en energía química.",
		spaces.ID:   "   ",
		tabs.ID:     "\t\n \t",
		empty.ID:    "",
	}

	questions := []model.Question{answered, spaces, tabs, empty, missing}
	toGrade, blank := splitAnswered(questions, answerByQ)

	if len(toGrade) != 1 {
		t.Fatalf("expected 1 gradeable question, got %d", len(toGrade))
	}
	if toGrade[0].ID != answered.ID {
		t.Errorf("wrong question selected for grading: %s", toGrade[0].ID)
	}

	if len(blank) != 4 {
		t.Fatalf("expected 4 blank questions, got %d", len(blank))
	}
	for _, q := range blank {
		if q.ID == answered.ID {
			t.Errorf("answered question %s routed to the blank set", q.ID)
		}
	}
}
