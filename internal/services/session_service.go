package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/buffer"
	"github.com/SAP-F-2025/assessment-runner/internal/client"
	"github.com/SAP-F-2025/assessment-runner/internal/events"
	"github.com/SAP-F-2025/assessment-runner/internal/localization"
	"github.com/SAP-F-2025/assessment-runner/internal/media"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/render"
	"github.com/SAP-F-2025/assessment-runner/internal/sessionctx"
	"github.com/SAP-F-2025/assessment-runner/internal/validator"
	"github.com/google/uuid"
)

const (
	DefaultBaseLocale               = "en"
	DefaultImageDescriptionAudioMax = 60 * time.Second
)

// Demo mode reasons surfaced to the UI
const (
	DemoNoToken            = "not_logged_in"
	DemoNoProfile          = "no_user_profile"
	DemoAuthRejected       = "auth_rejected"
	DemoBackendUnavailable = "backend_unavailable"
	DemoAttemptUnavailable = "attempt_unavailable"
)

type InitializeRequest struct {
	Test   string `json:"test" validate:"required,test_selector"`
	Locale string `json:"locale,omitempty" validate:"omitempty,locale"`
}

// AnswerRequest carries one answer edit. With FieldIndex set, Value is
// the text of that field of a grouped answer.
type AnswerRequest struct {
	Value      json.RawMessage `json:"value"`
	FieldIndex *int            `json:"field_index,omitempty" validate:"omitempty,min=0"`
}

// MediaUpload is a captured binary answer received as multipart.
type MediaUpload struct {
	Data        []byte
	ContentType string
	Filename    string
}

type SessionServiceConfig struct {
	BaseLocale               string
	DefaultAudioMax          time.Duration
	ImageDescriptionAudioMax time.Duration
	MemoryDisplay            time.Duration
	DigitInterval            time.Duration
	FanoutLimit              int
	PersistTimeout           time.Duration
}

type SessionService interface {
	Initialize(ctx context.Context, req InitializeRequest, sc *sessionctx.Context) (*Session, error)
	Get(id, clientKey string) (*Session, error)
	SetAnswer(ctx context.Context, s *Session, questionID models.ID, req AnswerRequest) error
	SetMediaAnswer(ctx context.Context, s *Session, questionID models.ID, up MediaUpload) error
	Submit(ctx context.Context, s *Session) (*SubmitResult, error)
	Close(s *Session)
}

type sessionService struct {
	backends BackendFactory
	manager  *SessionManager
	recorder *SessionRecorder
	gate     FeedbackGate
	parser   *validator.AnswerParser
	clock    render.Clock
	cfg      SessionServiceConfig
	logger   *slog.Logger
	ops      *ServiceLogger
}

type SessionServiceDeps struct {
	Backends  BackendFactory
	Manager   *SessionManager
	Recorder  *SessionRecorder
	Gate      FeedbackGate
	Validator *validator.Validator
	Clock     render.Clock
	Logger    *slog.Logger
}

func NewSessionService(deps SessionServiceDeps, cfg SessionServiceConfig) SessionService {
	if deps.Gate == nil {
		deps.Gate = ProfileFeedbackGate{}
	}
	if deps.Clock == nil {
		deps.Clock = render.SystemClock
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if cfg.BaseLocale == "" {
		cfg.BaseLocale = DefaultBaseLocale
	}
	if cfg.DefaultAudioMax <= 0 {
		cfg.DefaultAudioMax = render.DefaultAudioMaxDuration
	}
	if cfg.ImageDescriptionAudioMax <= 0 {
		cfg.ImageDescriptionAudioMax = DefaultImageDescriptionAudioMax
	}
	return &sessionService{
		backends: deps.Backends,
		manager:  deps.Manager,
		recorder: deps.Recorder,
		gate:     deps.Gate,
		parser:   deps.Validator.Answers(),
		clock:    deps.Clock,
		cfg:      cfg,
		logger:   deps.Logger,
		ops:      NewServiceLogger(deps.Logger, "session"),
	}
}

// Initialize resolves the test, loads its content and opens or resumes
// the participant's attempt. Content failures are terminal; attempt
// failures degrade the session to demo mode.
func (s *sessionService) Initialize(ctx context.Context, req InitializeRequest, sc *sessionctx.Context) (sess *Session, err error) {
	op := s.ops.WithOperation(ctx, "initialize_session")
	defer func() {
		id := req.Test
		if sess != nil {
			id = sess.ID
		}
		op.LogResult(id, err)
	}()

	api := s.backends(sc)

	tests, err := api.ListTests(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	test, err := SelectTest(tests, req.Test)
	if err != nil {
		return nil, err
	}

	resolver := media.NewResolver(api, s.logger)
	loader := &contentLoader{api: api, resolver: resolver, limit: s.cfg.FanoutLimit, logger: s.logger}
	content, err := loader.load(ctx, *test)
	if err != nil {
		return nil, err
	}

	baseLocale := content.Test.TestSpecificInfo.BaseLocale
	if baseLocale == "" {
		baseLocale = s.cfg.BaseLocale
	}
	locale := req.Locale
	if locale == "" {
		locale = sc.Language(ctx, baseLocale)
	}

	now := s.clock.Now()
	sess = &Session{
		ID:        uuid.NewString(),
		ClientKey: sc.ClientKey(),
		Locale:    locale,
		Content:   content,
		CreatedAt: now,
		media:     resolver,
		overlay:   localization.New(content.Test.TestSpecificInfo, baseLocale),
		opts:      s.renderOptions(content),
		clock:     s.clock,
		api:       api,
		gate:      s.gate,
		recorder:  s.recorder,
		logger:    s.logger.With("component", "session"),
		timed:     make(map[models.ID]*render.TimedDisplay),
		spans:     make(map[models.ID]*render.DigitSpanSequencer),
		lastSeen:  now,
	}

	opened := s.openAttempt(ctx, api, sc, sess)
	sess.Mode = opened.mode
	sess.DemoReason = opened.reason
	sess.Attempt = opened.attempt
	sess.User = opened.user

	var attemptID models.ID
	if sess.Attempt != nil {
		attemptID = sess.Attempt.ID
	}
	sess.buffer = buffer.New(buffer.Config{
		AttemptID:      attemptID,
		Mode:           sess.Mode,
		Types:          content.QuestionTypes(),
		Persister:      api,
		Uploader:       resolver,
		Logger:         s.logger,
		PersistTimeout: s.cfg.PersistTimeout,
		Clock:          s.clock,
		OnFailure: func(questionID models.ID, perr error) {
			s.recorder.record(context.Background(), sess, record{
				event: events.EventResponsePersistFailed,
				audit: models.AuditAnswerFailed,
				data: events.PersistFailedEvent{
					SessionID:  sess.ID,
					AttemptID:  attemptID,
					QuestionID: questionID,
					Upload:     IsUpload(perr),
					Error:      perr.Error(),
				},
				description: "answer for question " + questionID.String() + " was not saved",
			})
		},
	})
	if len(opened.responses) > 0 {
		sess.buffer.Seed(s.decodeResponses(ctx, content, resolver, opened.responses))
	}

	sess.enterSection()
	s.manager.Put(sess)
	s.recordInitialized(ctx, sess, opened)
	return sess, nil
}

type openedAttempt struct {
	mode      models.SessionMode
	reason    string
	attempt   *models.Attempt
	user      *models.User
	resumed   bool
	responses []models.Response
}

func demo(reason string, user *models.User) openedAttempt {
	return openedAttempt{mode: models.ModeEphemeral, reason: reason, user: user}
}

// openAttempt resumes the newest open attempt of the user on this test
// or creates one. It never creates a second open attempt.
func (s *sessionService) openAttempt(ctx context.Context, api Backend, sc *sessionctx.Context, sess *Session) openedAttempt {
	token, err := sc.Token(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Session context unavailable, running in demo mode", "error", err)
		return demo(DemoBackendUnavailable, nil)
	}
	if token == "" {
		return demo(DemoNoToken, nil)
	}
	user, err := sc.User(ctx)
	if err != nil || user == nil {
		return demo(DemoNoProfile, nil)
	}

	testID := sess.Content.Test.ID
	attempts, err := api.ListAttempts(ctx, client.AttemptFilter{TestID: testID, UserID: user.ID})
	if err != nil {
		return s.demoAfter(ctx, "list attempts", err, user)
	}

	if open := newestOpen(attempts, testID, user.ID); open != nil {
		if open.ID.IsZero() {
			return s.demoAfter(ctx, "list attempts", errAttemptWithoutID, user)
		}
		responses, err := api.ListResponses(ctx, open.ID)
		if err != nil {
			if IsAuthRequired(err) {
				return s.demoAfter(ctx, "list responses", err, user)
			}
			s.logger.WarnContext(ctx, "Resuming attempt without its saved answers",
				"attempt_id", open.ID,
				"error", err)
		}
		return openedAttempt{mode: models.ModePersistent, attempt: open, user: user, resumed: true, responses: responses}
	}

	created, err := api.CreateAttempt(ctx, client.CreateAttemptRequest{TestID: testID, UserID: user.ID})
	if err != nil {
		return s.demoAfter(ctx, "create attempt", err, user)
	}
	if created == nil || created.ID.IsZero() {
		return s.demoAfter(ctx, "create attempt", errAttemptWithoutID, user)
	}
	return openedAttempt{mode: models.ModePersistent, attempt: created, user: user}
}

func (s *sessionService) demoAfter(ctx context.Context, step string, err error, user *models.User) openedAttempt {
	reason := DemoAttemptUnavailable
	switch {
	case IsAuthRequired(err):
		reason = DemoAuthRejected
		user = nil
	case IsNetwork(err):
		reason = DemoBackendUnavailable
	}
	s.logger.WarnContext(ctx, "Falling back to demo mode",
		"step", step,
		"reason", reason,
		"error", err)
	return demo(reason, user)
}

func newestOpen(attempts []models.Attempt, testID, userID models.ID) *models.Attempt {
	var open []models.Attempt
	for _, a := range attempts {
		if !a.IsOpen() {
			continue
		}
		if !a.TestID.IsZero() && a.TestID != testID {
			continue
		}
		if !a.UserID.IsZero() && a.UserID != userID {
			continue
		}
		open = append(open, a)
	}
	if len(open) == 0 {
		return nil
	}
	sort.SliceStable(open, func(i, j int) bool {
		return startOf(open[i]).After(startOf(open[j]))
	})
	return &open[0]
}

func startOf(a models.Attempt) time.Time {
	if a.StartTime == nil {
		return time.Time{}
	}
	return *a.StartTime
}

// decodeResponses turns stored answerText back into typed answers. Media
// references are resolved for display; responses to questions that are
// no longer part of the test are ignored.
func (s *sessionService) decodeResponses(ctx context.Context, content *Content, resolver *media.Resolver, responses []models.Response) map[models.ID]models.AnswerValue {
	types := content.QuestionTypes()
	out := make(map[models.ID]models.AnswerValue, len(responses))
	for _, r := range responses {
		t, ok := types[r.QuestionID]
		if !ok {
			continue
		}
		v := buffer.Decode(t, r.AnswerText)
		if m, ok := v.(models.MediaAnswer); ok {
			if resolved, ok := resolver.ResolveRef(ctx, m.Ref); ok {
				v = resolved
			}
		}
		out[r.QuestionID] = v
	}
	return out
}

// renderOptions picks the audio cap: the test's own limit, then the
// image description default, then the global default. A question's
// config can still override it.
func (s *sessionService) renderOptions(content *Content) render.Options {
	audioMax := s.cfg.DefaultAudioMax
	switch {
	case content.Test.TestSpecificInfo.AudioMaxSeconds > 0:
		audioMax = time.Duration(content.Test.TestSpecificInfo.AudioMaxSeconds) * time.Second
	case content.Kind == models.TestKindImageDescription:
		audioMax = s.cfg.ImageDescriptionAudioMax
	}
	return render.Options{
		AudioMaxDuration: audioMax,
		MemoryDisplay:    s.cfg.MemoryDisplay,
		DigitInterval:    s.cfg.DigitInterval,
	}
}

func (s *sessionService) recordInitialized(ctx context.Context, sess *Session, opened openedAttempt) {
	var userID models.ID
	if sess.User != nil {
		userID = sess.User.ID
	}
	s.recorder.record(ctx, sess, record{
		event: events.EventSessionInitialized,
		audit: models.AuditSessionInitialized,
		data: events.SessionInitializedEvent{
			SessionID:    sess.ID,
			TestID:       sess.Content.Test.ID,
			TestTitle:    sess.Content.Test.Title,
			TestKind:     sess.Content.Kind,
			Mode:         sess.Mode,
			Locale:       sess.Locale,
			SectionCount: sess.SectionCount(),
			UserID:       userID,
		},
		description: fmt.Sprintf("%s session for %q", sess.Mode, sess.Content.Test.Title),
	})

	if !sess.Persistent() {
		s.recorder.record(ctx, sess, record{
			event: events.EventSessionDemoMode,
			audit: models.AuditSessionDemoMode,
			data: events.DemoModeEvent{
				SessionID: sess.ID,
				TestID:    sess.Content.Test.ID,
				Reason:    sess.DemoReason,
			},
			description: "demo mode: " + sess.DemoReason,
		})
		return
	}

	eventType, auditType, verb := events.EventAttemptStarted, models.AuditAttemptStarted, "started"
	if opened.resumed {
		eventType, auditType, verb = events.EventAttemptResumed, models.AuditAttemptResumed, "resumed"
	}
	s.recorder.record(ctx, sess, record{
		event: eventType,
		audit: auditType,
		data: events.AttemptEvent{
			SessionID:     sess.ID,
			AttemptID:     sess.Attempt.ID,
			TestID:        sess.Content.Test.ID,
			UserID:        userID,
			ResponseCount: len(opened.responses),
		},
		description: "attempt " + sess.Attempt.ID.String() + " " + verb,
	})
}

func (s *sessionService) Get(id, clientKey string) (*Session, error) {
	return s.manager.Get(id, clientKey)
}

// SetAnswer validates the value against the question's display type and
// hands it to the session buffer.
func (s *sessionService) SetAnswer(ctx context.Context, sess *Session, questionID models.ID, req AnswerRequest) error {
	q, err := sess.Question(questionID)
	if err != nil {
		return err
	}
	t := q.DisplayType()

	if req.FieldIndex != nil {
		text, err := s.parser.ParseField(t, *req.FieldIndex, req.Value)
		if err != nil {
			return err
		}
		return sess.SetField(questionID, *req.FieldIndex, text)
	}

	v, err := s.parser.Parse(t, req.Value)
	if err != nil {
		return err
	}
	if b, ok := v.(models.BinaryAnswer); ok {
		s.logger.DebugContext(ctx, "Received inline drawing",
			"session_id", sess.ID,
			"question_id", questionID,
			"bytes", len(b.Data))
	}
	return sess.SetAnswer(questionID, v)
}

// SetMediaAnswer buffers a captured recording, drawing or file. The
// upload happens on the buffer's write path.
func (s *sessionService) SetMediaAnswer(ctx context.Context, sess *Session, questionID models.ID, up MediaUpload) error {
	q, err := sess.Question(questionID)
	if err != nil {
		return err
	}
	if len(up.Data) == 0 {
		return invalidFile("is empty", up.Filename)
	}

	blob := models.BinaryAnswer{
		Data:        up.Data,
		ContentType: up.ContentType,
		Filename:    up.Filename,
	}
	switch t := q.DisplayType(); t {
	case models.TypeAudio:
		if !strings.HasPrefix(strings.ToLower(up.ContentType), "audio/") {
			return invalidFile("must be an audio recording", up.ContentType)
		}
		blob.Capture = models.BinaryAudio
	case models.TypeDrawing:
		if !strings.HasPrefix(strings.ToLower(up.ContentType), "image/") {
			return invalidFile("must be an image", up.ContentType)
		}
		blob.Capture = models.BinaryDrawing
	case models.TypeFileUpload:
		blob.Capture = models.BinaryFile
	default:
		return fmt.Errorf("%w: %s questions do not take media answers", ErrValidationFailed, t)
	}

	s.logger.InfoContext(ctx, "Buffered media answer",
		"session_id", sess.ID,
		"question_id", questionID,
		"capture", blob.Capture,
		"bytes", len(blob.Data))
	return sess.SetAnswer(questionID, blob)
}

func (s *sessionService) Submit(ctx context.Context, sess *Session) (result *SubmitResult, err error) {
	op := s.ops.WithOperation(ctx, "submit_session")
	defer func() { op.LogResult(sess.ID, err) }()
	return sess.Submit(ctx)
}

func (s *sessionService) Close(sess *Session) {
	s.manager.Remove(sess.ID)
}

func invalidFile(message string, value interface{}) error {
	return ValidationErrors{*NewValidationError("file", message, value)}
}
