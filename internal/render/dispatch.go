// Package render maps a question's display type onto the interaction
// unit the browser draws.
package render

import (
	"strings"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
)

const (
	DefaultAudioMaxDuration = 300 * time.Second
	DefaultMemoryDisplay    = 5 * time.Second
	DefaultDigitInterval    = time.Second
)

// Options carries the per-test knobs of the dispatcher.
type Options struct {
	AudioMaxDuration time.Duration
	MemoryDisplay    time.Duration
	DigitInterval    time.Duration
}

func (o Options) withDefaults() Options {
	if o.AudioMaxDuration <= 0 {
		o.AudioMaxDuration = DefaultAudioMaxDuration
	}
	if o.MemoryDisplay <= 0 {
		o.MemoryDisplay = DefaultMemoryDisplay
	}
	if o.DigitInterval <= 0 {
		o.DigitInterval = DefaultDigitInterval
	}
	return o
}

// Input is a localized question with its media already resolved.
type Input struct {
	Question  models.Question
	MediaURLs map[models.ID]string
}

func (in Input) url(id models.ID) string {
	if id.IsZero() {
		return ""
	}
	return in.MediaURLs[id]
}

type builder func(in Input, base Base, opts Options) View

var builders = map[models.QuestionType]builder{
	models.TypeText:                buildText,
	models.TypeTextMultiline:       buildText,
	models.TypeTextGrouped:         buildGrouped,
	models.TypeMCQ:                 buildChoice,
	models.TypeSCMCQ:               buildChoice,
	models.TypeMCMCQ:               buildChoice,
	models.TypeDrawing:             buildDrawing,
	models.TypeAudio:               buildAudio,
	models.TypeFileUpload:          buildFileUpload,
	models.TypeMatching:            buildMatching,
	models.TypeVigilance:           buildVigilance,
	models.TypeDigitSpan:           buildDigitSpan,
	models.TypeMemoryRegistration:  buildTimedDisplay,
	models.TypeMemoryWordsDisplay:  buildTimedDisplay,
	models.TypeNameAddressLearning: buildTimedDisplay,
	models.TypeNamingGrouped:       buildNamingGrouped,
}

// Supports reports whether t has a renderer.
func Supports(t models.QuestionType) bool {
	_, ok := builders[t]
	return ok
}

// Dispatch selects the renderer for the question's display type. An
// unknown type yields an UnsupportedView; it never panics.
func Dispatch(in Input, opts Options) View {
	opts = opts.withDefaults()
	q := in.Question
	key := q.DisplayType()

	base := Base{
		QuestionID: q.ID,
		DisplayAs:  key,
		Title:      q.Title,
		Text:       q.Text,
		Images:     questionImages(in),
	}

	build, ok := builders[key]
	if !ok {
		base.View = "unsupported"
		base.Answer = models.AnswerNone
		return &UnsupportedView{
			Base:    base,
			RawType: string(key),
			Notice:  "unsupported question type: " + string(key),
		}
	}
	return build(in, base, opts)
}

func questionImages(in Input) []string {
	var out []string
	for _, m := range in.Question.Media {
		if m.Type == models.MediaAudio {
			continue
		}
		if u := firstNonEmpty(in.url(m.ID), m.URL); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func buildText(in Input, base Base, _ Options) View {
	cfg := in.Question.Config
	base.View = "text"
	base.Answer = models.AnswerText
	return &TextView{
		Base:        base,
		Multiline:   base.DisplayAs == models.TypeTextMultiline,
		Placeholder: cfg.String("placeholder"),
		Suggestions: cfg.Strings("suggestions"),
	}
}

func buildGrouped(in Input, base Base, _ Options) View {
	cfg := in.Question.Config
	fields := cfg.Strings("fields")
	if len(fields) == 0 {
		fields = cfg.Strings("labels")
	}
	base.View = "text_grouped"
	base.Answer = models.AnswerList
	return &GroupedTextView{Base: base, Fields: fields}
}

func buildChoice(in Input, base Base, _ Options) View {
	q := in.Question
	multi := base.DisplayAs == models.TypeMCMCQ ||
		(base.DisplayAs == models.TypeMCQ && q.Config.Bool("multiple"))

	var options []OptionView
	if len(q.Options) > 0 {
		options = make([]OptionView, 0, len(q.Options))
		for _, o := range q.Options {
			options = append(options, optionView(in, o))
		}
	} else {
		for _, raw := range q.Config.Strings("options") {
			options = append(options, OptionView{Value: raw, Label: raw})
		}
	}

	base.View = "choice"
	base.Answer = models.AnswerText
	if multi {
		base.Answer = models.AnswerList
	}
	return &ChoiceView{Base: base, Multi: multi, Options: options}
}

// optionView renders an option with its image when one resolves. An
// option without media renders its label only.
func optionView(in Input, o models.Option) OptionView {
	ov := OptionView{Value: o.ID.String(), Label: o.DisplayLabel()}
	mediaID := o.FallbackMediaID()
	inline := ""
	if o.Media != nil {
		mediaID = o.Media.ID
		inline = o.Media.URL
	}
	if mediaID.IsZero() && inline == "" {
		return ov
	}
	ov.MediaID = mediaID
	ov.ImageURL = firstNonEmpty(in.url(mediaID), inline)
	return ov
}

func buildDrawing(in Input, base Base, _ Options) View {
	cfg := in.Question.Config
	bg := ""
	if id := models.ID(firstNonEmpty(cfg.String("background_media_id"), cfg.String("mediaId"))); !id.IsZero() {
		bg = in.url(id)
	}
	if bg == "" {
		bg = cfg.String("background_url")
	}
	if bg == "" && len(base.Images) > 0 {
		bg = base.Images[0]
	}
	capture := CaptureBlob
	if strings.EqualFold(cfg.String("capture"), string(CaptureDataURL)) {
		capture = CaptureDataURL
	}
	base.View = "drawing"
	base.Answer = models.AnswerBinary
	return &DrawingView{Base: base, BackgroundURL: bg, Capture: capture}
}

func buildAudio(in Input, base Base, opts Options) View {
	max := opts.AudioMaxDuration
	if secs := in.Question.Config.Int("max_duration", 0); secs > 0 {
		max = time.Duration(secs) * time.Second
	}
	base.View = "audio"
	base.Answer = models.AnswerBinary
	return &AudioView{Base: base, MaxDuration: max, MaxSeconds: int(max / time.Second)}
}

func buildFileUpload(_ Input, base Base, _ Options) View {
	base.View = "file_upload"
	base.Answer = models.AnswerBinary
	return &FileUploadView{Base: base, Accept: "image/*"}
}

func buildMatching(in Input, base Base, _ Options) View {
	cfg := in.Question.Config
	left, right := cfg.Strings("left"), cfg.Strings("right")
	if len(left) == 0 {
		for _, p := range cfg.Objects("pairs") {
			if l, ok := p["left"].(string); ok {
				left = append(left, l)
			}
			if r, ok := p["right"].(string); ok {
				right = append(right, r)
			}
		}
	}
	base.View = "matching"
	base.Answer = models.AnswerMatch
	return &MatchingView{Base: base, Left: left, Right: right}
}

func buildVigilance(in Input, base Base, _ Options) View {
	cfg := in.Question.Config
	tokens := cfg.Strings("letters")
	if len(tokens) <= 1 {
		tokens = splitSequence(firstNonEmpty(cfg.String("sequence"), cfg.String("letters")))
	}
	base.View = "vigilance"
	base.Answer = models.AnswerIndices
	return &VigilanceView{Base: base, Tokens: tokens}
}

func buildDigitSpan(in Input, base Base, opts Options) View {
	cfg := in.Question.Config
	digits := cfg.Strings("digits")
	if len(digits) <= 1 {
		digits = splitSequence(firstNonEmpty(cfg.String("sequence"), cfg.String("digits")))
	}
	dir := SpanForward
	if strings.EqualFold(cfg.String("direction"), string(SpanBackward)) {
		dir = SpanBackward
	}
	interval := opts.DigitInterval
	if ms := cfg.Int("interval_ms", 0); ms > 0 {
		interval = time.Duration(ms) * time.Millisecond
	}
	base.View = "digit_span"
	base.Answer = models.AnswerText
	return &DigitSpanView{
		Base:         base,
		Digits:       digits,
		Direction:    dir,
		Interval:     interval,
		IntervalMs:   interval.Milliseconds(),
		Phase:        PhaseShowing,
		VisibleIndex: -1,
	}
}

func buildTimedDisplay(in Input, base Base, opts Options) View {
	cfg := in.Question.Config
	words := cfg.Strings("words")
	if len(words) == 0 {
		words = cfg.Strings("items")
	}
	if len(words) == 0 && base.DisplayAs == models.TypeNameAddressLearning {
		words = cfg.Strings("address")
	}

	countdown := opts.MemoryDisplay
	for _, key := range []string{"display_seconds", "duration", "timer"} {
		if secs := cfg.Int(key, 0); secs > 0 {
			countdown = time.Duration(secs) * time.Second
			break
		}
	}

	completion := CompletionContinue
	if base.DisplayAs == models.TypeMemoryRegistration {
		completion = CompletionInput
	}
	switch strings.ToLower(cfg.String("after_display")) {
	case string(CompletionInput):
		completion = CompletionInput
	case string(CompletionContinue):
		completion = CompletionContinue
	}

	v := &TimedDisplayView{
		Words:            words,
		Countdown:        countdown,
		Seconds:          int(countdown / time.Second),
		Completion:       completion,
		Phase:            PhaseShowing,
		RemainingSeconds: int(countdown / time.Second),
	}
	base.View = "timed_display"
	base.Answer = models.AnswerNone
	if completion == CompletionInput {
		base.Answer = models.AnswerList
		v.InputCount = cfg.Int("input_count", len(words))
	}
	v.Base = base
	return v
}

// CompletionPhase is the phase a timed display enters when its countdown ends.
func (v *TimedDisplayView) CompletionPhase() Phase {
	if v.Completion == CompletionInput {
		return PhaseInput
	}
	return PhaseComplete
}

func buildNamingGrouped(in Input, base Base, _ Options) View {
	cfg := in.Question.Config
	var items []NamingItem
	for _, obj := range cfg.Objects("items") {
		item := NamingItem{
			Label:   stringField(obj, "label", "name"),
			MediaID: models.ID(stringField(obj, "mediaId", "media_id")),
			Choices: models.Config(obj).Strings("choices"),
		}
		if len(item.Choices) == 0 {
			item.Choices = models.Config(obj).Strings("options")
		}
		item.ImageURL = firstNonEmpty(in.url(item.MediaID), stringField(obj, "image", "image_url"))
		items = append(items, item)
	}
	if len(items) == 0 {
		for _, m := range in.Question.Media {
			if m.Type == models.MediaAudio {
				continue
			}
			items = append(items, NamingItem{MediaID: m.ID, ImageURL: firstNonEmpty(in.url(m.ID), m.URL)})
		}
	}
	base.View = "naming_grouped"
	base.Answer = models.AnswerList
	return &NamingGroupedView{Base: base, Items: items}
}

func splitSequence(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.ContainsAny(s, ", ") {
		fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
		return fields
	}
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func stringField(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
