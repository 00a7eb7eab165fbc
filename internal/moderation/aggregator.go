// Package moderation scores text for toxicity by fanning it out to several
// category classifiers and combining their sub-scores.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"opinara/internal/llm"
	"opinara/internal/middleware"
	"opinara/internal/models"
	"opinara/internal/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ToxicThreshold is the weighted score a text must exceed to be labelled toxic.
const ToxicThreshold = 60.0

// Category names one classifier prompt.
type Category string

const (
	CategoryGeneral    Category = "general"
	CategoryHate       Category = "hate"
	CategoryHarassment Category = "harassment"
	CategoryProfanity  Category = "profanity"
)

// Label is the final verdict on one text.
type Label string

const (
	LabelSafe  Label = "safe"
	LabelToxic Label = "toxic"
)

type category struct {
	name   Category
	prompt string
	weight float64
}

// Weights sum to 1. Order also breaks TopCategory ties.
var categories = []category{
	{CategoryGeneral, llm.GeneralPrompt, 0.5},
	{CategoryHate, llm.HatePrompt, 0.2},
	{CategoryHarassment, llm.HarassmentPrompt, 0.2},
	{CategoryProfanity, llm.ProfanityPrompt, 0.1},
}

// Classifier is the black-box model call. *llm.Client satisfies it.
type Classifier interface {
	Classify(ctx context.Context, prompt, text string) (llm.Classification, error)
}

// Reasons carries each classifier's explanation.
type Reasons struct {
	General    string `json:"general"`
	Hate       string `json:"hate"`
	Harassment string `json:"harassment"`
	Profanity  string `json:"profanity"`
}

// Verdict is the combined result for one text.
type Verdict struct {
	Score       int                  `json:"score"`
	Label       Label                `json:"label"`
	SubScores   map[Category]float64 `json:"subScores"`
	Reasons     Reasons              `json:"reasons"`
	TopCategory Category             `json:"topCategory"`
}

// Toxic reports whether the verdict is labelled toxic.
func (v Verdict) Toxic() bool {
	return v.Label == LabelToxic
}

// Aggregator runs the category fan-out.
type Aggregator struct {
	classifier Classifier
	timeout    time.Duration
}

// NewAggregator returns an Aggregator bounded by timeout per text. A
// non-positive timeout leaves only the caller's deadline in effect.
func NewAggregator(classifier Classifier, timeout time.Duration) *Aggregator {
	return &Aggregator{classifier: classifier, timeout: timeout}
}

// ClassifyText submits text to every category concurrently. The first failure
// cancels the rest and the whole call fails with an UpstreamError; a partial
// set of scores is never averaged.
func (a *Aggregator) ClassifyText(ctx context.Context, text string) (Verdict, error) {
	runID := uuid.NewString()
	span, ctx := observability.NewSpan(ctx, "moderation.ClassifyText",
		attribute.String("moderation.run_id", runID),
		attribute.Int("moderation.text_length", len(text)),
	)
	defer span.End()
	// Background runs carry no request trace id; tag their logs with the span's.
	if tid := span.TraceID(); tid != "" {
		if _, ok := ctx.Value(middleware.TraceIDKey).(string); !ok {
			ctx = context.WithValue(ctx, middleware.TraceIDKey, tid)
		}
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	results := make([]llm.Classification, len(categories))
	g, gctx := errgroup.WithContext(ctx)
	for i, cat := range categories {
		g.Go(func() error {
			res, err := a.classifier.Classify(gctx, cat.prompt, text)
			if err != nil {
				observability.ClassifierCalls.WithLabelValues(string(cat.name), "error").Inc()
				return fmt.Errorf("%s classifier: %w", cat.name, err)
			}
			observability.ClassifierCalls.WithLabelValues(string(cat.name), "ok").Inc()
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetError(err)
		middleware.Logger.WarnContext(ctx, "moderation fan-out failed",
			slog.String("run_id", runID), slog.String("error", err.Error()))
		if errors.Is(err, context.DeadlineExceeded) {
			return Verdict{}, models.NewUpstreamError("Moderation timed out", err)
		}
		return Verdict{}, models.NewUpstreamError("Moderation service unavailable", err)
	}

	v := Combine(results)
	span.AddAttributes(
		attribute.Int("moderation.score", v.Score),
		attribute.String("moderation.label", string(v.Label)),
	)
	return v, nil
}

// Combine applies the category weights to results, which must be ordered
// general, hate, harassment, profanity.
func Combine(results []llm.Classification) Verdict {
	v := Verdict{SubScores: make(map[Category]float64, len(categories))}
	var final float64
	best := -1.0
	for i, cat := range categories {
		score := results[i].Score
		final += cat.weight * score
		v.SubScores[cat.name] = score
		if score > best {
			best = score
			v.TopCategory = cat.name
		}
	}
	v.Reasons = Reasons{
		General:    results[0].Reason,
		Hate:       results[1].Reason,
		Harassment: results[2].Reason,
		Profanity:  results[3].Reason,
	}
	v.Score = int(math.Round(final))
	v.Label = LabelSafe
	if final > ToxicThreshold {
		v.Label = LabelToxic
	}
	return v
}
