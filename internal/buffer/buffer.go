// Package buffer holds the answers of one session and persists each
// edit to the backend.
package buffer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/SAP-F-2025/assessment-runner/internal/errors"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
)

const defaultPersistTimeout = 30 * time.Second

type Status string

const (
	StatusPending Status = "pending"
	StatusSaved   Status = "saved"
	// StatusFailed is an upload failure the participant can retry.
	StatusFailed Status = "failed"
	StatusError  Status = "error"
)

// SaveState is the persistence state of one question's answer.
type SaveState struct {
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Persister upserts one response.
type Persister interface {
	CreateResponse(ctx context.Context, r models.Response) (*models.Response, error)
}

// Uploader exchanges a captured binary for a stored media answer.
type Uploader interface {
	UploadAnswer(ctx context.Context, blob models.BinaryAnswer, label string, questionID models.ID) (models.MediaAnswer, error)
}

// Clock stamps save states. render.Clock satisfies it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Config struct {
	AttemptID models.ID
	Mode      models.SessionMode
	Types     map[models.ID]models.QuestionType
	Persister Persister
	Uploader  Uploader
	Logger    *slog.Logger
	// OnFailure is told about every write that did not reach the backend.
	OnFailure      func(questionID models.ID, err error)
	PersistTimeout time.Duration
	Clock          Clock
}

type write struct {
	value   models.AnswerValue
	version uint64
}

type queue struct {
	running bool
	next    *write
}

// Buffer is the single source of truth for the answers of a session.
// Writes for one question are serialized: at most one request is in
// flight per question and a newer value replaces one that is still
// queued.
type Buffer struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	values   map[models.ID]models.AnswerValue
	versions map[models.ID]uint64
	states   map[models.ID]SaveState
	queues   map[models.ID]*queue
	inflight int
	drained  chan struct{}
}

func New(cfg Config) *Buffer {
	if cfg.Mode == "" {
		cfg.Mode = models.ModePersistent
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}
	if cfg.Types == nil {
		cfg.Types = map[models.ID]models.QuestionType{}
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	drained := make(chan struct{})
	close(drained)
	return &Buffer{
		cfg:      cfg,
		logger:   logger.With("component", "response_buffer", "attempt_id", cfg.AttemptID),
		values:   make(map[models.ID]models.AnswerValue),
		versions: make(map[models.ID]uint64),
		states:   make(map[models.ID]SaveState),
		queues:   make(map[models.ID]*queue),
		drained:  drained,
	}
}

func (b *Buffer) Mode() models.SessionMode { return b.cfg.Mode }

// Persistent reports whether edits are sent to the backend.
func (b *Buffer) Persistent() bool {
	return b.cfg.Mode == models.ModePersistent && !b.cfg.AttemptID.IsZero() && b.cfg.Persister != nil
}

// Seed replaces the buffer content with answers loaded from the backend.
// Nothing is persisted.
func (b *Buffer) Seed(values map[models.ID]models.AnswerValue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.cfg.Clock.Now()
	for id, v := range values {
		b.values[id] = v
		b.versions[id]++
		b.states[id] = SaveState{Status: StatusSaved, UpdatedAt: now}
	}
}

// Set stores v locally and schedules its persistence.
func (b *Buffer) Set(questionID models.ID, v models.AnswerValue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setLocked(questionID, v)
}

// SetField updates one field of a grouped answer in place.
func (b *Buffer) SetField(questionID models.ID, index int, text string) error {
	if index < 0 {
		return fmt.Errorf("field index %d out of range", index)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var list models.ListAnswer
	if cur, ok := b.values[questionID].(models.ListAnswer); ok {
		list = append(models.ListAnswer(nil), cur...)
	}
	for len(list) <= index {
		list = append(list, "")
	}
	list[index] = text
	b.setLocked(questionID, list)
	return nil
}

func (b *Buffer) setLocked(questionID models.ID, v models.AnswerValue) {
	b.values[questionID] = v
	b.versions[questionID]++
	if !b.Persistent() {
		return
	}

	w := &write{value: v, version: b.versions[questionID]}
	b.states[questionID] = SaveState{Status: StatusPending, UpdatedAt: b.cfg.Clock.Now()}

	q, ok := b.queues[questionID]
	if !ok {
		q = &queue{}
		b.queues[questionID] = q
	}
	if q.running {
		q.next = w
		return
	}
	q.running = true
	if b.inflight == 0 {
		b.drained = make(chan struct{})
	}
	b.inflight++
	go b.drain(questionID, q, w)
}

func (b *Buffer) drain(questionID models.ID, q *queue, w *write) {
	for {
		b.persist(questionID, w)

		b.mu.Lock()
		if q.next != nil {
			w, q.next = q.next, nil
			b.mu.Unlock()
			continue
		}
		q.running = false
		b.inflight--
		if b.inflight == 0 {
			close(b.drained)
		}
		b.mu.Unlock()
		return
	}
}

func (b *Buffer) persist(questionID models.ID, w *write) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.PersistTimeout)
	defer cancel()

	t := b.displayType(questionID)
	value := w.value

	if NeedsUpload(t, value) {
		if b.cfg.Uploader == nil {
			b.fail(questionID, w.version, StatusFailed, apperrors.NewUploadError("create_slot", errors.New("no uploader configured")))
			return
		}
		blob := value.(models.BinaryAnswer)
		label := fmt.Sprintf("%s-%s", blob.Capture, questionID)
		uploaded, err := b.cfg.Uploader.UploadAnswer(ctx, blob, label, questionID)
		if err != nil {
			b.fail(questionID, w.version, StatusFailed, err)
			return
		}
		value = uploaded
		b.replaceIfCurrent(questionID, w.version, value)
	}

	text, err := Encode(t, value)
	if err != nil {
		b.fail(questionID, w.version, StatusError, err)
		return
	}

	_, err = b.cfg.Persister.CreateResponse(ctx, models.Response{
		AttemptID:  b.cfg.AttemptID,
		QuestionID: questionID,
		AnswerText: text,
	})
	if err != nil {
		b.fail(questionID, w.version, StatusError, err)
		return
	}

	b.mu.Lock()
	if b.versions[questionID] == w.version {
		b.states[questionID] = SaveState{Status: StatusSaved, UpdatedAt: b.cfg.Clock.Now()}
	}
	b.mu.Unlock()
}

// replaceIfCurrent swaps an uploaded binary for its media answer so the
// captured bytes are released, unless the participant has answered
// again in the meantime.
func (b *Buffer) replaceIfCurrent(questionID models.ID, version uint64, v models.AnswerValue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.versions[questionID] == version {
		b.values[questionID] = v
	}
}

func (b *Buffer) fail(questionID models.ID, version uint64, status Status, err error) {
	b.logger.Warn("Failed to persist answer",
		"question_id", questionID,
		"status", status,
		"error", err)

	b.mu.Lock()
	if b.versions[questionID] == version {
		b.states[questionID] = SaveState{Status: status, Error: err.Error(), UpdatedAt: b.cfg.Clock.Now()}
	}
	b.mu.Unlock()

	if b.cfg.OnFailure != nil {
		b.cfg.OnFailure(questionID, err)
	}
}

func (b *Buffer) displayType(questionID models.ID) models.QuestionType {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.Types[questionID]
}

func (b *Buffer) Get(questionID models.ID) (models.AnswerValue, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[questionID]
	return v, ok
}

// Snapshot copies the current answers.
func (b *Buffer) Snapshot() map[models.ID]models.AnswerValue {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[models.ID]models.AnswerValue, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

func (b *Buffer) State(questionID models.ID) (SaveState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.states[questionID]
	return s, ok
}

// States copies the save state of every persisted question.
func (b *Buffer) States() map[models.ID]SaveState {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[models.ID]SaveState, len(b.states))
	for k, v := range b.states {
		out[k] = v
	}
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.values)
}

// Flush waits until every queued write has been attempted or ctx ends.
func (b *Buffer) Flush(ctx context.Context) error {
	b.mu.Lock()
	ch := b.drained
	b.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush answers: %w", ctx.Err())
	}
}
