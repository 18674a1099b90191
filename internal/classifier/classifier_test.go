package classifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"announcement-radar/internal/domain"
)

// fakeCompleter returns scripted replies in order and records call times.
type fakeCompleter struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   []time.Time
	users   []string
}

func (f *fakeCompleter) Complete(_ context.Context, _, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := len(f.calls)
	f.calls = append(f.calls, time.Now())
	f.users = append(f.users, user)

	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	} else if len(f.errs) > 0 && len(f.replies) == 0 {
		err = f.errs[len(f.errs)-1]
	}
	if err != nil {
		return "", err
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return f.replies[len(f.replies)-1], nil
}

func (f *fakeCompleter) Provider() string { return "fake" }

func recordWaits(c *Classifier) *[]time.Duration {
	var waits []time.Duration
	c.wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return &waits
}

func TestAnalyze_Success(t *testing.T) {
	fc := &fakeCompleter{replies: []string{
		"Sure! Here is the result:\n```json\n" +
			`{"categories":["new-listing"],"confidence":0.9,"tokens":[{"name":"Foo","symbol":"FOO"}],"analysis":"spot listing"}` +
			"\n```",
	}}
	c := New(fc)

	got, err := c.Analyze(context.Background(), "X Will List Foo (FOO)", "binance", "taxonomy")
	require.NoError(t, err)
	assert.Equal(t, []string{"new-listing"}, got.Categories)
	assert.Equal(t, 0.9, got.Confidence)
	assert.Equal(t, []domain.TokenCandidate{{Name: "Foo", Symbol: "FOO"}}, got.Tokens)
	assert.Equal(t, "binance", got.Exchange)
	assert.Equal(t, "spot listing", got.Analysis)
	assert.Equal(t, 1, got.Attempts)

	require.Len(t, fc.users, 1)
	assert.True(t, strings.HasPrefix(fc.users[0], "taxonomy"))
	assert.Contains(t, fc.users[0], "X Will List Foo (FOO)")
}

func TestAnalyze_NormalizesFields(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		categories []string
		confidence float64
		tokens     []domain.TokenCandidate
	}{
		{
			name:       "categories not an array",
			reply:      `{"categories":"new-listing","confidence":0.8,"tokens":[]}`,
			categories: []string{"uncategorized"},
			confidence: 0.8,
			tokens:     []domain.TokenCandidate{},
		},
		{
			name:       "empty categories stay empty",
			reply:      `{"categories":[],"confidence":0.4}`,
			categories: []string{},
			confidence: 0.4,
			tokens:     []domain.TokenCandidate{},
		},
		{
			name:       "confidence not numeric",
			reply:      `{"categories":["futures"],"confidence":"high"}`,
			categories: []string{"futures"},
			confidence: 0.5,
			tokens:     []domain.TokenCandidate{},
		},
		{
			name:       "confidence clamped",
			reply:      `{"categories":["futures"],"confidence":7}`,
			categories: []string{"futures"},
			confidence: 1,
			tokens:     []domain.TokenCandidate{},
		},
		{
			name:       "tokens filtered by symbol",
			reply:      `{"categories":["new-listing"],"tokens":[{"name":"A","symbol":""},{"name":null,"symbol":"BBB"},{"name":"C","symbol":3},"junk",{"name":"D"}]}`,
			categories: []string{"new-listing"},
			confidence: 0.5,
			tokens:     []domain.TokenCandidate{{Name: "", Symbol: "BBB"}},
		},
		{
			name:       "tokens rejected by validation rules",
			reply:      `{"categories":["new-listing"],"tokens":[{"name":"Foo","symbol":"FOO BAR"},{"name":"Long","symbol":"` + strings.Repeat("X", 33) + `"},{"name":"Ok","symbol":" OK "}]}`,
			categories: []string{"new-listing"},
			confidence: 0.5,
			tokens:     []domain.TokenCandidate{{Name: "Ok", Symbol: "OK"}},
		},
		{
			name:       "blank and non-string categories dropped",
			reply:      `{"categories":["  ","futures",4,null]}`,
			categories: []string{"futures"},
			confidence: 0.5,
			tokens:     []domain.TokenCandidate{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&fakeCompleter{replies: []string{tt.reply}})

			got, err := c.Analyze(context.Background(), "title", "okx", "prompt")
			require.NoError(t, err)
			assert.Equal(t, tt.categories, got.Categories)
			assert.Equal(t, tt.confidence, got.Confidence)
			assert.Equal(t, tt.tokens, got.Tokens)
		})
	}
}

func TestAnalyze_ConfigurationErrors(t *testing.T) {
	fc := &fakeCompleter{replies: []string{`{}`}}

	_, err := New(fc).Analyze(context.Background(), "title", "binance", "  ")
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.True(t, errors.Is(err, ErrMissingPrompt))

	_, err = New(nil).Analyze(context.Background(), "title", "binance", "prompt")
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.True(t, errors.Is(err, ErrMissingCredential))

	assert.Empty(t, fc.calls, "configuration errors must not call the model")
}

func TestAnalyze_RetriesParseErrors(t *testing.T) {
	fc := &fakeCompleter{replies: []string{
		"I cannot answer that",
		`{"categories": [`,
		`{"categories":["delisting"],"confidence":0.7}`,
	}}
	c := New(fc)
	waits := recordWaits(c)

	got, err := c.Analyze(context.Background(), "title", "binance", "prompt")
	require.NoError(t, err)
	assert.Equal(t, []string{"delisting"}, got.Categories)
	assert.Equal(t, 3, got.Attempts)
	assert.Len(t, fc.calls, 3)
	assert.Equal(t, []time.Duration{DefaultRetryDelay, DefaultRetryDelay}, *waits)
}

func TestAnalyze_RetryExhaustion(t *testing.T) {
	upstream := errors.New("upstream unavailable")
	fc := &fakeCompleter{errs: []error{upstream}}
	c := New(fc)
	waits := recordWaits(c)

	_, err := c.Analyze(context.Background(), "title", "binance", "prompt")
	require.Error(t, err)

	var cerr *ClassificationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 3, cerr.Attempts)
	assert.True(t, errors.Is(err, upstream))
	assert.False(t, errors.Is(err, ErrConfiguration))
	assert.Len(t, fc.calls, 3)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, *waits)
}

func TestAnalyze_RetryExhaustion_RealDelay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping real-delay retry test in short mode")
	}

	fc := &fakeCompleter{errs: []error{errors.New("timeout")}}
	c := New(fc)

	_, err := c.Analyze(context.Background(), "title", "binance", "prompt")
	require.Error(t, err)
	require.Len(t, fc.calls, 3)
	for i := 1; i < len(fc.calls); i++ {
		gap := fc.calls[i].Sub(fc.calls[i-1])
		assert.GreaterOrEqual(t, gap, 2*time.Second, "attempt %d spacing", i+1)
	}
}

func TestAnalyze_ContextCancelledDuringWait(t *testing.T) {
	fc := &fakeCompleter{errs: []error{errors.New("boom")}}
	c := New(fc, WithRetryDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Analyze(ctx, "title", "binance", "prompt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, fc.calls, 1)
}

func TestPrompts(t *testing.T) {
	p := DefaultPrompts()

	assert.Contains(t, p.For("Binance"), "Binance specifics")
	assert.Equal(t, p[DefaultExchange], p.For("kraken"))
	for _, key := range []string{DefaultExchange, "binance", "bitget", "okx"} {
		assert.Contains(t, p[key], "X/Y", "prompt %s must carry the pair-format rule", key)
	}

	merged := p.Merge(map[string]string{"Kraken": "custom", "okx": " "})
	assert.Equal(t, "custom", merged.For("kraken"))
	assert.Equal(t, p["okx"], merged.For("okx"))
	_, ok := p["kraken"]
	assert.False(t, ok, "merge must not mutate the receiver")
}

func TestReplyValidator_Rules(t *testing.T) {
	v := newReplyValidator()

	assert.NoError(t, v.Struct(replyToken{Name: "Foo", Symbol: "FOO"}))
	assert.NoError(t, v.Struct(replyToken{Symbol: "1000SATS"}))

	for _, bad := range []replyToken{
		{Name: "Foo"},
		{Symbol: "FOO\tBAR"},
		{Symbol: "FOO\nBAR"},
		{Symbol: strings.Repeat("Z", 33)},
		{Name: strings.Repeat("n", 65), Symbol: "FOO"},
	} {
		assert.Error(t, v.Struct(bad), "%+v", bad)
	}

	assert.Error(t, v.Struct(replyCategory{}))
	assert.NoError(t, v.Struct(replyCategory{Label: "launch-pool"}))
}

func TestExcerpt_KeepsRuneBoundary(t *testing.T) {
	reply := strings.Repeat("a", excerptLen-1) + "上线"
	out := excerpt(reply)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("a", excerptLen-1), out)
}
