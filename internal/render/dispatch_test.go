package render

import (
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func TestDispatch_EveryKnownTypeHasRenderer(t *testing.T) {
	for _, qt := range models.AllQuestionTypes {
		t.Run(string(qt), func(t *testing.T) {
			assert.True(t, Supports(qt))
			v := Dispatch(Input{Question: models.Question{ID: "q", Type: qt}}, Options{})
			require.NotNil(t, v)
			_, unsupported := v.(*UnsupportedView)
			assert.False(t, unsupported)
			assert.Equal(t, qt, v.Type())
			assert.Equal(t, models.ID("q"), v.Header().QuestionID)
		})
	}
}

func TestDispatch_UnknownTypeRendersNotice(t *testing.T) {
	v := Dispatch(Input{Question: models.Question{ID: "q1", Type: "hologram"}}, Options{})

	u, ok := v.(*UnsupportedView)
	require.True(t, ok)
	assert.Equal(t, "hologram", u.RawType)
	assert.Contains(t, u.Notice, "hologram")
	assert.Equal(t, models.AnswerNone, u.AnswerKind())
}

func TestDispatch_FrontendTypeOverridesBackendType(t *testing.T) {
	q := models.Question{
		ID:     "q1",
		Type:   models.TypeText,
		Config: models.Config{"frontend_type": "digit_span", "digits": "582"},
	}

	v := Dispatch(Input{Question: q}, Options{})

	ds, ok := v.(*DigitSpanView)
	require.True(t, ok)
	assert.Equal(t, []string{"5", "8", "2"}, ds.Digits)
	assert.Equal(t, SpanForward, ds.Direction)
	assert.Equal(t, int64(1000), ds.IntervalMs)
}

func TestDispatch_ChoiceOptions(t *testing.T) {
	t.Run("option without media renders text only", func(t *testing.T) {
		q := models.Question{
			ID:   "q1",
			Type: models.TypeSCMCQ,
			Options: []models.Option{
				{ID: "o1", Text: "Apple"},
				{ID: "o2", Text: "Pear", Media: &models.Media{ID: "m2", Type: models.MediaImage}},
			},
		}
		in := Input{Question: q, MediaURLs: map[models.ID]string{"m2": "https://cdn/pear.png"}}

		v := Dispatch(in, Options{}).(*ChoiceView)

		require.Len(t, v.Options, 2)
		assert.Equal(t, OptionView{Value: "o1", Label: "Apple"}, v.Options[0])
		assert.Equal(t, "https://cdn/pear.png", v.Options[1].ImageURL)
		assert.False(t, v.Multi)
		assert.Equal(t, models.AnswerText, v.AnswerKind())
	})

	t.Run("config mediaId is used when no media is attached", func(t *testing.T) {
		q := models.Question{
			ID:      "q1",
			Type:    models.TypeMCMCQ,
			Options: []models.Option{{ID: "o1", Text: "Key", Config: models.Config{"mediaId": "m9"}}},
		}
		in := Input{Question: q, MediaURLs: map[models.ID]string{"m9": "https://cdn/key.png"}}

		v := Dispatch(in, Options{}).(*ChoiceView)

		assert.True(t, v.Multi)
		assert.Equal(t, models.AnswerList, v.AnswerKind())
		assert.Equal(t, "https://cdn/key.png", v.Options[0].ImageURL)
	})

	t.Run("options from config keep raw values", func(t *testing.T) {
		q := models.Question{
			ID:     "q1",
			Type:   models.TypeMCQ,
			Config: models.Config{"options": []any{"Monday", "Tuesday"}, "multiple": true},
		}

		v := Dispatch(Input{Question: q}, Options{}).(*ChoiceView)

		assert.True(t, v.Multi)
		assert.Equal(t, "Tuesday", v.Options[1].Value)
	})
}

func TestDispatch_AudioMaxDuration(t *testing.T) {
	q := models.Question{ID: "q1", Type: models.TypeAudio}

	v := Dispatch(Input{Question: q}, Options{}).(*AudioView)
	assert.Equal(t, 300, v.MaxSeconds)

	v = Dispatch(Input{Question: q}, Options{AudioMaxDuration: time.Minute}).(*AudioView)
	assert.Equal(t, 60, v.MaxSeconds)

	q.Config = models.Config{"max_duration": float64(45)}
	v = Dispatch(Input{Question: q}, Options{AudioMaxDuration: time.Minute}).(*AudioView)
	assert.Equal(t, 45*time.Second, v.MaxDuration)
}

func TestDispatch_DrawingBackground(t *testing.T) {
	q := models.Question{
		ID:    "q1",
		Type:  models.TypeDrawing,
		Media: []models.Media{{ID: "m1", Type: models.MediaImage}},
	}
	in := Input{Question: q, MediaURLs: map[models.ID]string{"m1": "https://cdn/pentagons.png"}}

	v := Dispatch(in, Options{}).(*DrawingView)

	assert.Equal(t, "https://cdn/pentagons.png", v.BackgroundURL)
	assert.Equal(t, CaptureBlob, v.Capture)
	assert.Equal(t, models.AnswerBinary, v.AnswerKind())
}

func TestDispatch_MatchingFromPairs(t *testing.T) {
	q := models.Question{
		ID:   "q1",
		Type: models.TypeMatching,
		Config: models.Config{"pairs": []any{
			map[string]any{"left": "dog", "right": "bark"},
			map[string]any{"left": "cat", "right": "meow"},
		}},
	}

	v := Dispatch(Input{Question: q}, Options{}).(*MatchingView)

	assert.Equal(t, []string{"dog", "cat"}, v.Left)
	assert.Equal(t, []string{"bark", "meow"}, v.Right)
}

func TestDispatch_VigilanceSequence(t *testing.T) {
	q := models.Question{ID: "q1", Type: models.TypeVigilance, Config: models.Config{"letters": "FBACMNAAJ"}}

	v := Dispatch(Input{Question: q}, Options{}).(*VigilanceView)

	assert.Len(t, v.Tokens, 9)
	assert.Equal(t, "F", v.Tokens[0])
	assert.Equal(t, models.AnswerIndices, v.AnswerKind())
}

func TestDispatch_TimedDisplayCompletion(t *testing.T) {
	words := models.Config{"words": []any{"face", "velvet", "church", "daisy", "red"}}

	reg := Dispatch(Input{Question: models.Question{ID: "q1", Type: models.TypeMemoryRegistration, Config: words}}, Options{}).(*TimedDisplayView)
	assert.Equal(t, CompletionInput, reg.Completion)
	assert.Equal(t, 5, reg.Seconds)
	assert.Equal(t, 5, reg.InputCount)
	assert.Equal(t, PhaseInput, reg.CompletionPhase())

	disp := Dispatch(Input{Question: models.Question{ID: "q2", Type: models.TypeMemoryWordsDisplay, Config: words}}, Options{MemoryDisplay: 10 * time.Second}).(*TimedDisplayView)
	assert.Equal(t, CompletionContinue, disp.Completion)
	assert.Equal(t, 10, disp.Seconds)
	assert.Equal(t, models.AnswerNone, disp.AnswerKind())
}

func TestDispatch_NamingGroupedFromMedia(t *testing.T) {
	q := models.Question{
		ID:   "q1",
		Type: models.TypeNamingGrouped,
		Media: []models.Media{
			{ID: "lion", Type: models.MediaImage},
			{ID: "rhino", Type: models.MediaImage},
			{ID: "hum", Type: models.MediaAudio},
		},
	}
	in := Input{Question: q, MediaURLs: map[models.ID]string{"lion": "https://cdn/lion.png"}}

	v := Dispatch(in, Options{}).(*NamingGroupedView)

	require.Len(t, v.Items, 2)
	assert.Equal(t, "https://cdn/lion.png", v.Items[0].ImageURL)
	assert.Empty(t, v.Items[1].ImageURL)
}
