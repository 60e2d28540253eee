// Package classify decides whether message text is critical or stable. A
// deterministic heuristic answers confidently classified texts locally; the
// rest escalate to a remote model when one is configured, with the heuristic
// as fallback so classification never fails the caller.
package classify

import (
	"context"
	"log/slog"
	"time"

	"github.com/spwotton/sms/internal/classify/metrics"
	"github.com/spwotton/sms/internal/domain"
	pkgdomain "github.com/spwotton/sms/pkg/domain"
)

const (
	// DefaultThreshold is the heuristic confidence at or above which the
	// remote model is never consulted.
	DefaultThreshold = 0.85

	// DefaultTimeout bounds a single remote classification call.
	DefaultTimeout = 3 * time.Second
)

// Remote is the remote classification service boundary. Implementations must
// honor ctx cancellation; the service enforces the call timeout.
type Remote interface {
	Classify(ctx context.Context, text string) (pkgdomain.Classification, float64, error)
}

type Service struct {
	remote    Remote
	threshold float64
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRemote enables escalation to a remote model. Without it every result
// comes from the heuristic.
func WithRemote(remote Remote) Option {
	return func(s *Service) {
		s.remote = remote
	}
}

func WithThreshold(threshold float64) Option {
	return func(s *Service) {
		s.threshold = threshold
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.timeout = timeout
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(opts ...Option) *Service {
	s := &Service{
		threshold: DefaultThreshold,
		timeout:   DefaultTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Classify labels the text. It never returns an error: the worst outcome is
// the heuristic's candidate label with Source set to fallback.
func (s *Service) Classify(ctx context.Context, text string) domain.ClassificationResult {
	scored := scoreText(text)
	candidate := domain.ClassificationResult{
		Label:      scored.label,
		Confidence: scored.confidence,
		Source:     pkgdomain.SourceHeuristic,
	}

	if scored.confidence >= s.threshold || s.remote == nil {
		if s.logger != nil {
			s.logger.DebugContext(ctx, "classified locally",
				"label", candidate.Label,
				"confidence", candidate.Confidence,
				"matched_keywords", scored.matched,
			)
		}
		s.metrics.IncrementResult(candidate.Label.String(), candidate.Source.String())
		return candidate
	}

	remoteCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	label, confidence, err := s.remote.Classify(remoteCtx, text)
	s.metrics.ObserveRemoteLatency(s.now().Sub(start))

	if err != nil {
		s.metrics.IncrementRemoteFailure()
		if s.logger != nil {
			s.logger.WarnContext(ctx, "remote classification failed, falling back to heuristic",
				"error", err,
				"heuristic_label", scored.label,
				"heuristic_confidence", scored.confidence,
			)
		}
		candidate.Source = pkgdomain.SourceFallback
		s.metrics.IncrementResult(candidate.Label.String(), candidate.Source.String())
		return candidate
	}

	result := domain.ClassificationResult{
		Label:      label,
		Confidence: confidence,
		Source:     pkgdomain.SourceRemoteModel,
	}
	s.metrics.IncrementResult(result.Label.String(), result.Source.String())
	return result
}
