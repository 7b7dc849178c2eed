package extraction

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/llm"
	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

// Service implements the extraction and classification collaborators on
// top of a Generator.
type Service struct {
	gen    llm.Generator
	logger *logging.Logger
}

// New creates a Service. A nil logger discards output.
func New(gen llm.Generator, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{gen: gen, logger: logger.Named("extraction")}
}

// ExtractDiscovery extracts the discovery summary from a rendered transcript.
func (s *Service) ExtractDiscovery(ctx context.Context, transcript string) (workflow.DiscoverySummary, error) {
	prompt := strings.Replace(discoveryExtractionPrompt, "{{conversation}}", transcript, 1)
	raw, err := s.gen.Generate(ctx, llm.TaskExtraction, []llm.Message{llm.User(prompt)})
	if err != nil {
		return workflow.DiscoverySummary{}, s.degrade(ctx, "discovery extraction failed", err)
	}
	obj, ok := parseObject(raw)
	if !ok {
		s.logger.Debug(ctx, "discovery extraction was not a JSON object", logging.Preview("raw", raw, 200))
		return workflow.DiscoverySummary{}, nil
	}
	return workflow.SummaryFromRaw(obj), nil
}

// ExtractScoping extracts the structured scope from proposal text.
func (s *Service) ExtractScoping(ctx context.Context, proposal string) (workflow.ScopingOutput, error) {
	prompt := strings.Replace(scopingExtractionPrompt, "{{proposal}}", proposal, 1)
	raw, err := s.gen.Generate(ctx, llm.TaskExtraction, []llm.Message{llm.User(prompt)})
	if err != nil {
		return workflow.ScopingOutput{}, s.degrade(ctx, "scoping extraction failed", err)
	}
	obj, ok := parseObject(raw)
	if !ok {
		s.logger.Debug(ctx, "scoping extraction was not a JSON object", logging.Preview("raw", raw, 200))
		return workflow.ScopingOutput{}, nil
	}
	return ScopingFromRaw(obj), nil
}

// ClassifyReview reports whether the reply confirms the discovery recap.
// Anything other than a clear CONFIRM is a revision request.
func (s *Service) ClassifyReview(ctx context.Context, reply string) (bool, error) {
	prompt := strings.Replace(reviewClassificationPrompt, "{{reply}}", strings.TrimSpace(reply), 1)
	raw, err := s.gen.Generate(ctx, llm.TaskClassification, []llm.Message{llm.User(prompt)})
	if err != nil {
		return false, s.degrade(ctx, "review classification failed", err)
	}
	return strings.Contains(strings.ToUpper(raw), "CONFIRM"), nil
}

// ClassifyScopingIntent classifies a reply to the scope proposal. Labels are
// checked in the order AGREE, PUSHBACK, QUESTION; anything else is PUSHBACK.
func (s *Service) ClassifyScopingIntent(ctx context.Context, reply string) (workflow.Intent, error) {
	prompt := strings.Replace(intentClassificationPrompt, "{{reply}}", strings.TrimSpace(reply), 1)
	raw, err := s.gen.Generate(ctx, llm.TaskClassification, []llm.Message{llm.User(prompt)})
	if err != nil {
		return workflow.IntentPushback, s.degrade(ctx, "intent classification failed", err)
	}
	return parseIntent(raw), nil
}

func parseIntent(raw string) workflow.Intent {
	word := strings.ToUpper(strings.TrimSpace(raw))
	for _, intent := range []workflow.Intent{workflow.IntentAgree, workflow.IntentPushback, workflow.IntentQuestion} {
		if strings.Contains(word, string(intent)) {
			return intent
		}
	}
	return workflow.IntentPushback
}

// degrade keeps configuration and cancellation errors and swallows the rest.
func (s *Service) degrade(ctx context.Context, msg string, err error) error {
	if errors.Is(err, llm.ErrMissingCredential) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	s.logger.Warn(ctx, msg, zap.Error(err))
	return nil
}

var (
	_ workflow.DiscoveryExtractor = (*Service)(nil)
	_ workflow.ScopingExtractor   = (*Service)(nil)
	_ workflow.ReviewClassifier   = (*Service)(nil)
	_ workflow.IntentClassifier   = (*Service)(nil)
)
