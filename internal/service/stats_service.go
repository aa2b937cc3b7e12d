package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxDiscrepancies caps the disagreement list in the comparison view.
const maxDiscrepancies = 20

type examSubmissionLister interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Submission, error)
}

type answerGradeLister interface {
	ListAnswerGrades(ctx context.Context, submissionID uuid.UUID) ([]model.AnswerGrade, error)
}

// StatsService computes manual-vs-AI comparison statistics for an exam.
type StatsService struct {
	examRepo  examStore
	subRepo   examSubmissionLister
	gradeRepo answerGradeLister
	log       zerolog.Logger
}

// NewStatsService creates a new StatsService.
func NewStatsService(examRepo examStore, subRepo examSubmissionLister, gradeRepo answerGradeLister, log zerolog.Logger) *StatsService {
	return &StatsService{
		examRepo:  examRepo,
		subRepo:   subRepo,
		gradeRepo: gradeRepo,
		log:       log.With().Str("component", "stats_service").Logger(),
	}
}

// Comparison contrasts the manual and AI tracks over one exam. Submission
// totals feed the per-track aggregates and the Pearson correlation; the
// per-answer rows feed the disagreement list.
func (s *StatsService) Comparison(ctx context.Context, ownerID int, examID uuid.UUID) (*model.ComparisonStats, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.OwnerID != ownerID {
		return nil, ErrNotExamOwner
	}

	subs, err := s.subRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	stats := &model.ComparisonStats{
		Submissions:   len(subs),
		Discrepancies: []model.Discrepancy{},
	}

	var manualTotals, aiTotals []float64
	var pairedManual, pairedAI []float64
	for _, sub := range subs {
		if sub.ManualTotalPoints != nil {
			manualTotals = append(manualTotals, *sub.ManualTotalPoints)
		}
		if sub.AITotalPoints != nil {
			aiTotals = append(aiTotals, *sub.AITotalPoints)
		}
		if sub.ManualTotalPoints != nil && sub.AITotalPoints != nil {
			pairedManual = append(pairedManual, *sub.ManualTotalPoints)
			pairedAI = append(pairedAI, *sub.AITotalPoints)
		}
	}

	stats.Manual = trackStats(manualTotals)
	stats.AI = trackStats(aiTotals)
	stats.PairedCount = len(pairedManual)
	stats.Correlation = pearson(pairedManual, pairedAI)

	if len(pairedManual) > 0 {
		sum := 0.0
		for i := range pairedManual {
			sum += math.Abs(pairedManual[i] - pairedAI[i])
		}
		mad := sum / float64(len(pairedManual))
		stats.MeanAbsDiff = &mad
	}

	for _, sub := range subs {
		grades, err := s.gradeRepo.ListAnswerGrades(ctx, sub.ID)
		if err != nil {
			return nil, fmt.Errorf("list answer grades: %w", err)
		}
		for _, ag := range grades {
			if ag.ManualPoints == nil || ag.AISuggestedPoints == nil {
				continue
			}
			diff := *ag.ManualPoints - *ag.AISuggestedPoints
			if diff == 0 {
				continue
			}
			stats.Discrepancies = append(stats.Discrepancies, model.Discrepancy{
				SubmissionID: ag.SubmissionID,
				QuestionID:   ag.QuestionID,
				ManualPoints: *ag.ManualPoints,
				AIPoints:     *ag.AISuggestedPoints,
				Diff:         diff,
			})
		}
	}

	sort.Slice(stats.Discrepancies, func(i, j int) bool {
		return math.Abs(stats.Discrepancies[i].Diff) > math.Abs(stats.Discrepancies[j].Diff)
	})
	if len(stats.Discrepancies) > maxDiscrepancies {
		stats.Discrepancies = stats.Discrepancies[:maxDiscrepancies]
	}

	return stats, nil
}

func trackStats(values []float64) model.TrackStats {
	ts := model.TrackStats{Count: len(values)}
	if len(values) == 0 {
		return ts
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	ts.Mean = &mean

	if len(values) > 1 {
		variance := 0.0
		for _, v := range values {
			variance += (v - mean) * (v - mean)
		}
		sd := math.Sqrt(variance / float64(len(values)-1))
		ts.StdDev = &sd
	}
	return ts
}

// pearson returns the correlation of two equal-length series, or nil when
// fewer than two pairs exist or either series has zero variance.
func pearson(xs, ys []float64) *float64 {
	n := len(xs)
	if n < 2 {
		return nil
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return nil
	}
	r := cov / math.Sqrt(varX*varY)
	return &r
}
