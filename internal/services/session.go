package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/buffer"
	"github.com/SAP-F-2025/assessment-runner/internal/events"
	"github.com/SAP-F-2025/assessment-runner/internal/localization"
	"github.com/SAP-F-2025/assessment-runner/internal/media"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/render"
)

// Session is one participant's run through one test. It owns the
// section pointer, the response buffer and the media resolver.
type Session struct {
	ID         string
	ClientKey  string
	Mode       models.SessionMode
	DemoReason string
	Locale     string
	Content    *Content
	Attempt    *models.Attempt
	User       *models.User
	CreatedAt  time.Time

	buffer   *buffer.Buffer
	media    *media.Resolver
	overlay  *localization.Overlay
	opts     render.Options
	clock    render.Clock
	api      Backend
	gate     FeedbackGate
	recorder *SessionRecorder
	logger   *slog.Logger

	submitMu sync.Mutex

	mu       sync.Mutex
	current  int
	timed    map[models.ID]*render.TimedDisplay
	spans    map[models.ID]*render.DigitSpanSequencer
	result   *SubmitResult
	lastSeen time.Time
}

// SubmitResult tells the browser where to go after submission.
type SubmitResult struct {
	Redirect    string     `json:"redirect"`
	Demo        bool       `json:"demo"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

// NavigationResult is the outcome of Advance or Retreat.
type NavigationResult struct {
	Section   int           `json:"section"`
	Submitted *SubmitResult `json:"submitted,omitempty"`
}

type TestSummary struct {
	ID    models.ID       `json:"id"`
	Title string          `json:"title"`
	Kind  models.TestKind `json:"kind"`
}

// SessionState is what the browser renders.
type SessionState struct {
	ID             string             `json:"id"`
	Mode           models.SessionMode `json:"mode"`
	Demo           bool               `json:"demo"`
	DemoReason     string             `json:"demo_reason,omitempty"`
	Locale         string             `json:"locale"`
	Locales        []string           `json:"locales"`
	Test           TestSummary        `json:"test"`
	AttemptID      models.ID          `json:"attempt_id,omitempty"`
	CurrentSection int                `json:"current_section"`
	SectionCount   int                `json:"section_count"`
	IsLastSection  bool               `json:"is_last_section"`
	Section        *SectionState      `json:"section,omitempty"`
	Submitted      *SubmitResult      `json:"submitted,omitempty"`
}

type SectionState struct {
	Index     int             `json:"index"`
	ID        models.ID       `json:"id"`
	Title     string          `json:"title"`
	Text      string          `json:"text,omitempty"`
	Questions []QuestionState `json:"questions"`
}

type QuestionState struct {
	View   render.View          `json:"view"`
	Answer models.AnswerPreview `json:"answer"`
	Save   *buffer.SaveState    `json:"save,omitempty"`
}

func (s *Session) Persistent() bool { return s.Mode == models.ModePersistent }

func (s *Session) SectionCount() int { return len(s.Content.Sections) }

func (s *Session) CurrentSection() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Buffer exposes the response buffer.
func (s *Session) Buffer() *buffer.Buffer { return s.buffer }

func (s *Session) Submitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result != nil
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = s.clock.Now()
	s.mu.Unlock()
}

// LastSeen is the time of the last participant interaction.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Retreat moves one section back. At the first section it does nothing.
func (s *Session) Retreat(ctx context.Context) NavigationResult {
	s.mu.Lock()
	moved := false
	if s.current > 0 {
		s.current--
		s.resetTransientLocked()
		s.enterSectionLocked()
		moved = true
	}
	idx := s.current
	s.lastSeen = s.clock.Now()
	s.mu.Unlock()

	if moved {
		s.recordSectionChange(ctx, idx)
	}
	return NavigationResult{Section: idx}
}

// Advance moves one section forward. At the last section it submits.
func (s *Session) Advance(ctx context.Context) (NavigationResult, error) {
	s.mu.Lock()
	if s.current < len(s.Content.Sections)-1 {
		s.current++
		s.resetTransientLocked()
		s.enterSectionLocked()
		idx := s.current
		s.lastSeen = s.clock.Now()
		s.mu.Unlock()
		s.recordSectionChange(ctx, idx)
		return NavigationResult{Section: idx}, nil
	}
	idx := s.current
	s.mu.Unlock()

	result, err := s.Submit(ctx)
	if err != nil {
		return NavigationResult{Section: idx}, err
	}
	return NavigationResult{Section: idx, Submitted: result}, nil
}

func (s *Session) recordSectionChange(ctx context.Context, idx int) {
	s.recorder.record(ctx, s, record{
		audit:       models.AuditSectionChanged,
		data:        map[string]interface{}{"section": idx},
		description: fmt.Sprintf("moved to section %d", idx),
	})
}

// resetTransientLocked drops the display timers of the section being left.
func (s *Session) resetTransientLocked() {
	for _, t := range s.timed {
		t.Reset()
	}
	for _, sp := range s.spans {
		sp.Reset()
	}
	s.timed = make(map[models.ID]*render.TimedDisplay)
	s.spans = make(map[models.ID]*render.DigitSpanSequencer)
}

// enterSection starts the display countdowns of the current section.
func (s *Session) enterSection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enterSectionLocked()
}

func (s *Session) enterSectionLocked() {
	if s.current < 0 || s.current >= len(s.Content.Sections) {
		return
	}
	for qi, q := range s.Content.Sections[s.current].Questions {
		s.attachTimersLocked(s.viewLocked(q, s.current, qi))
	}
}

// State renders the current section.
func (s *Session) State(ctx context.Context) *SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &SessionState{
		ID:             s.ID,
		Mode:           s.Mode,
		Demo:           s.Mode == models.ModeEphemeral,
		DemoReason:     s.DemoReason,
		Locale:         s.Locale,
		Locales:        s.overlay.Locales(),
		Test:           TestSummary{ID: s.Content.Test.ID, Title: s.overlay.TestTitle(s.Content.Test.Title, s.Locale), Kind: s.Content.Kind},
		CurrentSection: s.current,
		SectionCount:   len(s.Content.Sections),
		IsLastSection:  s.current >= len(s.Content.Sections)-1,
		Submitted:      s.result,
	}
	if s.Attempt != nil {
		st.AttemptID = s.Attempt.ID
	}
	if len(s.Content.Sections) > 0 {
		st.Section = s.sectionStateLocked(s.current)
	}
	return st
}

func (s *Session) sectionStateLocked(idx int) *SectionState {
	sc := s.Content.Sections[idx]
	sectionContent := s.overlay.MergeSection(localization.Content{
		Title:  sc.Section.Title,
		Text:   sc.Section.Description,
		Config: sc.Section.Config,
	}, s.Locale, idx)

	out := &SectionState{
		Index:     idx,
		ID:        sc.Section.ID,
		Title:     sectionContent.Title,
		Text:      sectionContent.Text,
		Questions: make([]QuestionState, 0, len(sc.Questions)),
	}
	for qi, q := range sc.Questions {
		view := s.viewLocked(q, idx, qi)
		s.attachTimersLocked(view)

		qs := QuestionState{View: view, Answer: models.AnswerPreview{Kind: models.AnswerNone}}
		if v, ok := s.buffer.Get(q.ID); ok {
			qs.Answer = models.PreviewOf(v)
		}
		if save, ok := s.buffer.State(q.ID); ok {
			qs.Save = &save
		}
		out.Questions = append(out.Questions, qs)
	}
	return out
}

func (s *Session) viewLocked(q models.Question, sectionIdx, questionIdx int) render.View {
	return render.Dispatch(render.Input{
		Question:  s.localizedQuestion(q, sectionIdx, questionIdx),
		MediaURLs: s.Content.MediaURLs,
	}, s.opts)
}

func (s *Session) localizedQuestion(q models.Question, sectionIdx, questionIdx int) models.Question {
	merged := s.overlay.MergeQuestion(localization.Content{
		Title:  q.Title,
		Text:   q.Text,
		Config: q.Config,
	}, s.Locale, sectionIdx, questionIdx)
	q.Title, q.Text, q.Config = merged.Title, merged.Text, merged.Config
	return q
}

// attachTimersLocked starts the countdown of a timed view the first time
// it is shown and copies the live phase into the view.
func (s *Session) attachTimersLocked(view render.View) {
	switch v := view.(type) {
	case *render.TimedDisplayView:
		t, ok := s.timed[v.QuestionID]
		if !ok {
			t = render.NewTimedDisplay(s.clock, v.Countdown, v.CompletionPhase())
			s.timed[v.QuestionID] = t
			t.Start(nil)
		}
		v.Phase = t.Phase()
		v.RemainingSeconds = int(math.Ceil(t.Remaining().Seconds()))
	case *render.DigitSpanView:
		sp, ok := s.spans[v.QuestionID]
		if !ok {
			sp = render.NewDigitSpanSequencer(s.clock, len(v.Digits), v.Interval)
			s.spans[v.QuestionID] = sp
			sp.Start(nil)
		}
		v.Phase = sp.Phase()
		v.VisibleIndex = sp.VisibleIndex()
	}
}

// Question looks up a question of this session.
func (s *Session) Question(questionID models.ID) (models.Question, error) {
	_, _, q, ok := s.Content.Locate(questionID)
	if !ok {
		return models.Question{}, fmt.Errorf("%w: %s", ErrQuestionNotInTest, questionID)
	}
	return *q, nil
}

func (s *Session) checkWritable(questionID models.ID) (models.Question, error) {
	q, err := s.Question(questionID)
	if err != nil {
		return q, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result != nil {
		return q, ErrAlreadySubmitted
	}
	switch t := q.DisplayType(); {
	case t.IsTimedDisplay():
		tracker, ok := s.timed[questionID]
		if !ok {
			return q, fmt.Errorf("%w: the words have not been shown yet", ErrValidationFailed)
		}
		if tracker.Phase() == render.PhaseShowing {
			return q, fmt.Errorf("%w: answers unlock when the display countdown ends", ErrValidationFailed)
		}
	case t == models.TypeDigitSpan:
		sp, ok := s.spans[questionID]
		if !ok {
			return q, fmt.Errorf("%w: the sequence has not been shown yet", ErrValidationFailed)
		}
		if sp.Phase() == render.PhaseShowing {
			return q, fmt.Errorf("%w: recall starts after the sequence", ErrValidationFailed)
		}
	}
	return q, nil
}

// SetAnswer records a new value for a question. Persistence happens in
// the background and never blocks the participant.
func (s *Session) SetAnswer(questionID models.ID, value models.AnswerValue) error {
	if _, err := s.checkWritable(questionID); err != nil {
		return err
	}
	s.buffer.Set(questionID, value)
	s.touch()
	return nil
}

// SetField records one field of a grouped answer.
func (s *Session) SetField(questionID models.ID, index int, text string) error {
	if _, err := s.checkWritable(questionID); err != nil {
		return err
	}
	if err := s.buffer.SetField(questionID, index, text); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	s.touch()
	return nil
}

// Submit finalizes the attempt. Pending writes are drained first. In
// demo mode nothing is sent and the participant goes home.
func (s *Session) Submit(ctx context.Context) (*SubmitResult, error) {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	if s.Submitted() {
		return nil, ErrAlreadySubmitted
	}

	if !s.Persistent() {
		result := &SubmitResult{Redirect: RedirectHome, Demo: true}
		s.finish(result)
		s.logger.InfoContext(ctx, "Demo session completed locally", "session_id", s.ID)
		return result, nil
	}

	if err := s.buffer.Flush(ctx); err != nil {
		return nil, fmt.Errorf("failed to drain pending answers: %w", err)
	}

	submitTime := s.clock.Now().UTC()
	if _, err := s.api.FinalizeAttempt(ctx, s.Attempt.ID, submitTime); err != nil {
		s.logger.ErrorContext(ctx, "Failed to finalize attempt",
			"session_id", s.ID,
			"attempt_id", s.Attempt.ID,
			"error", err)
		return nil, fmt.Errorf("failed to finalize attempt: %w", err)
	}

	redirect := RedirectHome
	var userID models.ID
	if s.User != nil {
		userID = s.User.ID
	}
	needsFeedback, err := s.gate.NeedsFeedback(ctx, s.api, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "Feedback check failed, sending participant home",
			"session_id", s.ID,
			"error", err)
	} else if needsFeedback {
		redirect = RedirectFeedback
	}

	result := &SubmitResult{Redirect: redirect, SubmittedAt: &submitTime}
	s.finish(result)

	s.recorder.record(ctx, s, record{
		event: events.EventAttemptSubmitted,
		audit: models.AuditAttemptSubmitted,
		data: events.AttemptEvent{
			SessionID:     s.ID,
			AttemptID:     s.Attempt.ID,
			TestID:        s.Content.Test.ID,
			UserID:        userID,
			ResponseCount: s.buffer.Len(),
			SubmittedAt:   &submitTime,
		},
		description: "attempt submitted, redirect " + redirect,
	})
	s.logger.InfoContext(ctx, "Attempt submitted",
		"session_id", s.ID,
		"attempt_id", s.Attempt.ID,
		"redirect", redirect)
	return result, nil
}

func (s *Session) finish(result *SubmitResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
	s.resetTransientLocked()
	s.lastSeen = s.clock.Now()
}

// Close stops every running countdown.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetTransientLocked()
}
