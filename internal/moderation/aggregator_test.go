package moderation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"opinara/internal/llm"
	"opinara/internal/middleware"
	"opinara/internal/models"
	"opinara/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// stubClassifier answers per prompt.
type stubClassifier struct {
	fn func(ctx context.Context, prompt, text string) (llm.Classification, error)
}

func (s stubClassifier) Classify(ctx context.Context, prompt, text string) (llm.Classification, error) {
	return s.fn(ctx, prompt, text)
}

func scoresByPrompt(general, hate, harassment, profanity float64) stubClassifier {
	byPrompt := map[string]float64{
		llm.GeneralPrompt:    general,
		llm.HatePrompt:       hate,
		llm.HarassmentPrompt: harassment,
		llm.ProfanityPrompt:  profanity,
	}
	return stubClassifier{fn: func(_ context.Context, prompt, _ string) (llm.Classification, error) {
		return llm.Classification{Score: byPrompt[prompt], Reason: "r"}, nil
	}}
}

func TestClassifyText_Weights(t *testing.T) {
	tests := []struct {
		name      string
		scores    [4]float64
		wantScore int
		wantLabel Label
		wantTop   Category
	}{
		{"all zero", [4]float64{0, 0, 0, 0}, 0, LabelSafe, CategoryGeneral},
		{"exactly threshold is safe", [4]float64{60, 60, 60, 60}, 60, LabelSafe, CategoryGeneral},
		{"above threshold", [4]float64{90, 40, 80, 100}, 79, LabelToxic, CategoryProfanity},
		{"hate heavy but general low", [4]float64{20, 100, 100, 100}, 60, LabelSafe, CategoryHate},
		{"rounding half up", [4]float64{61, 60, 60, 60}, 61, LabelToxic, CategoryGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			agg := NewAggregator(scoresByPrompt(tt.scores[0], tt.scores[1], tt.scores[2], tt.scores[3]), time.Second)
			v, err := agg.ClassifyText(context.Background(), "text")
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, v.Score)
			assert.Equal(t, tt.wantLabel, v.Label)
			assert.Equal(t, tt.wantTop, v.TopCategory)
			assert.Len(t, v.SubScores, 4)
		})
	}
}

func TestCombine_ThresholdIsStrict(t *testing.T) {
	// 0.5*60.4 + 0.2*60 + 0.2*60 + 0.1*60 = 60.2 rounds to 60 but is toxic.
	v := Combine([]llm.Classification{{Score: 60.4}, {Score: 60}, {Score: 60}, {Score: 60}})
	assert.Equal(t, 60, v.Score)
	assert.Equal(t, LabelToxic, v.Label)
}

func TestClassifyText_RunsConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	wg.Add(4)
	cls := stubClassifier{fn: func(ctx context.Context, _, _ string) (llm.Classification, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		wg.Done()
		wg.Wait()
		inFlight.Add(-1)
		return llm.Classification{Score: 10}, nil
	}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := NewAggregator(cls, 2*time.Second).ClassifyText(context.Background(), "text")
		assert.NoError(t, err)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("classifier calls were not issued concurrently")
	}
	assert.Equal(t, int32(4), peak.Load())
}

func TestClassifyText_FailureCancelsSiblings(t *testing.T) {
	var cancelled atomic.Int32
	cls := stubClassifier{fn: func(ctx context.Context, prompt, _ string) (llm.Classification, error) {
		if prompt == llm.HatePrompt {
			return llm.Classification{}, llm.ErrMalformedResponse
		}
		<-ctx.Done()
		cancelled.Add(1)
		return llm.Classification{}, ctx.Err()
	}}

	_, err := NewAggregator(cls, 5*time.Second).ClassifyText(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.ErrCodeUpstream))
	assert.ErrorIs(t, err, llm.ErrMalformedResponse)
	assert.Equal(t, int32(3), cancelled.Load())
}

func TestClassifyText_Timeout(t *testing.T) {
	cls := stubClassifier{fn: func(ctx context.Context, _, _ string) (llm.Classification, error) {
		<-ctx.Done()
		return llm.Classification{}, ctx.Err()
	}}

	start := time.Now()
	_, err := NewAggregator(cls, 20*time.Millisecond).ClassifyText(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.ErrCodeUpstream))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}

func TestClassifyText_TagsBackgroundRunWithTraceID(t *testing.T) {
	prev := observability.Tracer
	tp := sdktrace.NewTracerProvider()
	observability.Tracer = tp.Tracer("test")
	t.Cleanup(func() {
		observability.Tracer = prev
		_ = tp.Shutdown(context.Background())
	})

	var seen sync.Map
	classifier := stubClassifier{fn: func(ctx context.Context, prompt, _ string) (llm.Classification, error) {
		tid, _ := ctx.Value(middleware.TraceIDKey).(string)
		seen.Store(prompt, tid)
		return llm.Classification{}, nil
	}}
	agg := NewAggregator(classifier, time.Second)

	_, err := agg.ClassifyText(context.Background(), "text")
	require.NoError(t, err)
	seen.Range(func(_, v any) bool {
		assert.Len(t, v.(string), 32)
		return true
	})

	_, err = agg.ClassifyText(context.WithValue(context.Background(), middleware.TraceIDKey, "req-7"), "text")
	require.NoError(t, err)
	seen.Range(func(_, v any) bool {
		assert.Equal(t, "req-7", v.(string))
		return true
	})
}
