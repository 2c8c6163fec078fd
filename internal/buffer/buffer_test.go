package buffer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/SAP-F-2025/assessment-runner/internal/errors"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPersister struct {
	mock.Mock
}

func (m *MockPersister) CreateResponse(ctx context.Context, r models.Response) (*models.Response, error) {
	args := m.Called(ctx, r)
	if resp, ok := args.Get(0).(*models.Response); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) UploadAnswer(ctx context.Context, blob models.BinaryAnswer, label string, questionID models.ID) (models.MediaAnswer, error) {
	args := m.Called(ctx, blob, label, questionID)
	return args.Get(0).(models.MediaAnswer), args.Error(1)
}

// gatedPersister blocks every call until released and records the texts.
type gatedPersister struct {
	mu    sync.Mutex
	texts []string
	gate  chan struct{}
}

func (p *gatedPersister) CreateResponse(ctx context.Context, r models.Response) (*models.Response, error) {
	<-p.gate
	p.mu.Lock()
	p.texts = append(p.texts, r.AnswerText)
	p.mu.Unlock()
	return &r, nil
}

func flush(t *testing.T, b *Buffer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Flush(ctx))
}

func TestBuffer_PersistsTextAnswer(t *testing.T) {
	p := new(MockPersister)
	p.On("CreateResponse", mock.Anything, models.Response{AttemptID: "a1", QuestionID: "q1", AnswerText: "Paris"}).
		Return(&models.Response{ID: "r1"}, nil).Once()

	b := New(Config{AttemptID: "a1", Persister: p, Types: map[models.ID]models.QuestionType{"q1": models.TypeText}})
	b.Set("q1", models.TextAnswer("Paris"))
	flush(t, b)

	p.AssertExpectations(t)
	state, ok := b.State("q1")
	require.True(t, ok)
	assert.Equal(t, StatusSaved, state.Status)
}

func TestBuffer_GroupedFieldsAreJSONArrays(t *testing.T) {
	p := new(MockPersister)
	p.On("CreateResponse", mock.Anything, mock.Anything).Return(&models.Response{}, nil)

	b := New(Config{AttemptID: "a1", Persister: p, Types: map[models.ID]models.QuestionType{"q1": models.TypeTextGrouped}})
	require.NoError(t, b.SetField("q1", 2, "Spring"))
	flush(t, b)
	require.NoError(t, b.SetField("q1", 0, "2025"))
	flush(t, b)

	v, _ := b.Get("q1")
	assert.Equal(t, models.ListAnswer{"2025", "", "Spring"}, v)

	last := p.Calls[len(p.Calls)-1].Arguments.Get(1).(models.Response)
	assert.Equal(t, `["2025","","Spring"]`, last.AnswerText)
}

func TestBuffer_BinaryIsNeverSentRaw(t *testing.T) {
	drawing := models.BinaryAnswer{Data: []byte{0x89, 'P', 'N', 'G'}, ContentType: "image/png", Capture: models.BinaryDrawing}

	t.Run("drawing is uploaded then referenced", func(t *testing.T) {
		u := new(MockUploader)
		u.On("UploadAnswer", mock.Anything, drawing, "drawing-q1", models.ID("q1")).
			Return(models.MediaAnswer{Ref: "media:m42", DisplayURL: "https://cdn/m42"}, nil)
		p := new(MockPersister)
		p.On("CreateResponse", mock.Anything, mock.Anything).Return(&models.Response{}, nil)

		b := New(Config{AttemptID: "a1", Persister: p, Uploader: u, Types: map[models.ID]models.QuestionType{"q1": models.TypeDrawing}})
		b.Set("q1", drawing)
		flush(t, b)

		p.AssertNumberOfCalls(t, "CreateResponse", 1)
		sent := p.Calls[0].Arguments.Get(1).(models.Response)
		assert.Equal(t, "media:m42", sent.AnswerText)

		v, _ := b.Get("q1")
		assert.Equal(t, models.MediaAnswer{Ref: "media:m42", DisplayURL: "https://cdn/m42"}, v, "a fresh upload can be previewed")
	})

	t.Run("upload failure keeps local value and sends nothing", func(t *testing.T) {
		u := new(MockUploader)
		u.On("UploadAnswer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(models.MediaAnswer{}, apperrors.NewUploadError("put_binary", errors.New("status 403")))
		p := new(MockPersister)

		var failed []models.ID
		var mu sync.Mutex
		b := New(Config{
			AttemptID: "a1", Persister: p, Uploader: u,
			Types: map[models.ID]models.QuestionType{"q1": models.TypeDrawing},
			OnFailure: func(id models.ID, err error) {
				mu.Lock()
				defer mu.Unlock()
				assert.True(t, apperrors.IsUpload(err))
				failed = append(failed, id)
			},
		})
		b.Set("q1", drawing)
		flush(t, b)

		p.AssertNotCalled(t, "CreateResponse", mock.Anything, mock.Anything)
		v, _ := b.Get("q1")
		assert.Equal(t, drawing, v)
		state, _ := b.State("q1")
		assert.Equal(t, StatusFailed, state.Status)
		assert.Equal(t, []models.ID{"q1"}, failed)
	})

	t.Run("binary under a text question is rejected", func(t *testing.T) {
		u := new(MockUploader)
		p := new(MockPersister)

		b := New(Config{AttemptID: "a1", Persister: p, Uploader: u, Types: map[models.ID]models.QuestionType{"q1": models.TypeText}})
		b.Set("q1", drawing)
		flush(t, b)

		u.AssertNotCalled(t, "UploadAnswer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		p.AssertNotCalled(t, "CreateResponse", mock.Anything, mock.Anything)
		state, _ := b.State("q1")
		assert.Equal(t, StatusError, state.Status)
	})

	t.Run("audio is uploaded whatever the display type", func(t *testing.T) {
		audio := models.BinaryAnswer{Data: []byte("webm"), ContentType: "audio/webm"}
		u := new(MockUploader)
		u.On("UploadAnswer", mock.Anything, audio, mock.Anything, models.ID("q1")).Return(models.MediaAnswer{Ref: "media:a1"}, nil)
		p := new(MockPersister)
		p.On("CreateResponse", mock.Anything, models.Response{AttemptID: "a1", QuestionID: "q1", AnswerText: "media:a1"}).
			Return(&models.Response{}, nil)

		b := New(Config{AttemptID: "a1", Persister: p, Uploader: u, Types: map[models.ID]models.QuestionType{"q1": models.TypeText}})
		b.Set("q1", audio)
		flush(t, b)

		u.AssertExpectations(t)
		p.AssertExpectations(t)
	})
}

func TestBuffer_LatestValueSupersedesQueuedWrite(t *testing.T) {
	p := &gatedPersister{gate: make(chan struct{})}
	b := New(Config{AttemptID: "a1", Persister: p, Types: map[models.ID]models.QuestionType{"q1": models.TypeText}})

	b.Set("q1", models.TextAnswer("P"))
	b.Set("q1", models.TextAnswer("Pa"))
	b.Set("q1", models.TextAnswer("Paris"))

	state, _ := b.State("q1")
	assert.Equal(t, StatusPending, state.Status)

	close(p.gate)
	flush(t, b)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, []string{"P", "Paris"}, p.texts)
	state, _ = b.State("q1")
	assert.Equal(t, StatusSaved, state.Status)
}

func TestBuffer_EphemeralNeverPersists(t *testing.T) {
	p := new(MockPersister)
	b := New(Config{Mode: models.ModeEphemeral, Persister: p})

	b.Set("q1", models.TextAnswer("Paris"))
	flush(t, b)

	v, ok := b.Get("q1")
	require.True(t, ok)
	assert.Equal(t, models.TextAnswer("Paris"), v)
	assert.False(t, b.Persistent())
	assert.Empty(t, b.States())
	p.AssertNotCalled(t, "CreateResponse", mock.Anything, mock.Anything)
}

func TestBuffer_SeedDoesNotPersist(t *testing.T) {
	p := new(MockPersister)
	b := New(Config{AttemptID: "a1", Persister: p})

	b.Seed(map[models.ID]models.AnswerValue{
		"q1": models.TextAnswer("Paris"),
		"q2": models.MediaAnswer{Ref: "media:m1", DisplayURL: "https://cdn/m1"},
	})
	flush(t, b)

	assert.Equal(t, 2, b.Len())
	state, _ := b.State("q2")
	assert.Equal(t, StatusSaved, state.Status)
	p.AssertNotCalled(t, "CreateResponse", mock.Anything, mock.Anything)
}

func TestBuffer_FlushHonoursContext(t *testing.T) {
	p := &gatedPersister{gate: make(chan struct{})}
	defer close(p.gate)
	b := New(Config{AttemptID: "a1", Persister: p})
	b.Set("q1", models.TextAnswer("x"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.Flush(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func TestBuffer_SaveStatesUseInjectedClock(t *testing.T) {
	clock := &stepClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	p := new(MockPersister)
	p.On("CreateResponse", mock.Anything, mock.Anything).Return(&models.Response{}, nil)

	b := New(Config{AttemptID: "a1", Persister: p, Clock: clock, Types: map[models.ID]models.QuestionType{"q1": models.TypeText}})
	b.Seed(map[models.ID]models.AnswerValue{"q2": models.TextAnswer("seeded")})
	seeded, _ := b.State("q2")
	assert.Equal(t, clock.now, seeded.UpdatedAt)

	clock.mu.Lock()
	clock.now = clock.now.Add(time.Minute)
	clock.mu.Unlock()
	b.Set("q1", models.TextAnswer("Paris"))
	flush(t, b)

	saved, _ := b.State("q1")
	assert.Equal(t, StatusSaved, saved.Status)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 1, 0, 0, time.UTC), saved.UpdatedAt)
}
