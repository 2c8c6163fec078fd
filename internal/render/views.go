package render

import (
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
)

// View is the interaction unit produced for one question. The set of
// implementations is closed; every display type maps to exactly one.
type View interface {
	Type() models.QuestionType
	AnswerKind() models.AnswerKind
	Header() *Base
	isView()
}

// Base carries what every view shows.
type Base struct {
	View       string              `json:"view"`
	QuestionID models.ID           `json:"question_id"`
	DisplayAs  models.QuestionType `json:"display_type"`
	Title      string              `json:"title,omitempty"`
	Text       string              `json:"text,omitempty"`
	Images     []string            `json:"images,omitempty"`
	Answer     models.AnswerKind   `json:"answer_kind"`
}

func (b *Base) Type() models.QuestionType     { return b.DisplayAs }
func (b *Base) AnswerKind() models.AnswerKind { return b.Answer }
func (b *Base) Header() *Base                 { return b }
func (*Base) isView()                         {}

type TextView struct {
	Base
	Multiline   bool     `json:"multiline"`
	Placeholder string   `json:"placeholder,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type GroupedTextView struct {
	Base
	Fields []string `json:"fields"`
}

type OptionView struct {
	Value    string    `json:"value"`
	Label    string    `json:"label"`
	ImageURL string    `json:"image_url,omitempty"`
	MediaID  models.ID `json:"media_id,omitempty"`
}

type ChoiceView struct {
	Base
	Multi   bool         `json:"multi"`
	Options []OptionView `json:"options"`
}

type CaptureFormat string

const (
	CaptureBlob    CaptureFormat = "blob"
	CaptureDataURL CaptureFormat = "data_url"
)

type DrawingView struct {
	Base
	BackgroundURL string        `json:"background_url,omitempty"`
	Capture       CaptureFormat `json:"capture"`
}

type AudioView struct {
	Base
	MaxDuration time.Duration `json:"-"`
	MaxSeconds  int           `json:"max_seconds"`
}

type FileUploadView struct {
	Base
	Accept string `json:"accept"`
}

type MatchingView struct {
	Base
	Left  []string `json:"left"`
	Right []string `json:"right"`
}

type VigilanceView struct {
	Base
	Tokens []string `json:"tokens"`
}

type SpanDirection string

const (
	SpanForward  SpanDirection = "forward"
	SpanBackward SpanDirection = "backward"
)

type DigitSpanView struct {
	Base
	Digits     []string      `json:"digits"`
	Direction  SpanDirection `json:"direction"`
	Interval   time.Duration `json:"-"`
	IntervalMs int64         `json:"interval_ms"`

	Phase        Phase `json:"phase"`
	VisibleIndex int   `json:"visible_index"`
}

// Completion is what a timed display turns into once the countdown ends.
type Completion string

const (
	CompletionInput    Completion = "input"
	CompletionContinue Completion = "continue"
)

type TimedDisplayView struct {
	Base
	Words      []string      `json:"words"`
	Countdown  time.Duration `json:"-"`
	Seconds    int           `json:"seconds"`
	Completion Completion    `json:"completion"`
	InputCount int           `json:"input_count,omitempty"`

	Phase            Phase `json:"phase"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

type NamingItem struct {
	Label    string    `json:"label,omitempty"`
	ImageURL string    `json:"image_url,omitempty"`
	MediaID  models.ID `json:"media_id,omitempty"`
	Choices  []string  `json:"choices,omitempty"`
}

type NamingGroupedView struct {
	Base
	Items []NamingItem `json:"items"`
}

// UnsupportedView is shown inline for a type the runner does not know.
type UnsupportedView struct {
	Base
	RawType string `json:"raw_type"`
	Notice  string `json:"notice"`
}
