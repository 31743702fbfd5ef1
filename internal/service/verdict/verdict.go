package verdict

import (
	"context"
	"log/slog"
	"strings"

	"github.com/huavcjj/mailgate/internal/apperr"
	verdict_domain "github.com/huavcjj/mailgate/internal/domain/verdict"
)

const DefaultThreshold = 0.65

// Result is either a verdict or a suppression notice carrying only the
// confidence that fell below the threshold.
type Result struct {
	Verdict    *verdict_domain.Verdict
	Suppressed bool
	Confidence float64
}

type Service struct {
	repo      verdict_domain.VerdictRepo
	threshold float64
}

// NewService accepts a nil repo; Evaluate then fails with a config error.
func NewService(repo verdict_domain.VerdictRepo, threshold float64) *Service {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Service{repo: repo, threshold: threshold}
}

func (s *Service) Evaluate(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("text is required")
	}
	if s.repo == nil {
		return nil, apperr.Config("OPENAI_API_KEY must be set")
	}

	v, err := s.repo.Generate(ctx, text)
	if err != nil {
		return nil, err
	}

	if v.Confidence < s.threshold {
		slog.Info("verdict suppressed", "verdict", v.Verdict, "confidence", v.Confidence)
		return &Result{Suppressed: true, Confidence: v.Confidence}, nil
	}

	return &Result{Verdict: v, Confidence: v.Confidence}, nil
}
