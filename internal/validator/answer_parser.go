package validator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/assessment-runner/internal/errors"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
)

const (
	maxTextAnswerLength = 10000
	maxListAnswerItems  = 200
)

// AnswerParser turns the JSON value the browser sends into a typed
// answer for the question's display type.
type AnswerParser struct{}

func NewAnswerParser() *AnswerParser {
	return &AnswerParser{}
}

// Parse validates raw against the answer shape of t. A JSON null clears
// the answer.
func (p *AnswerParser) Parse(t models.QuestionType, raw json.RawMessage) (models.AnswerValue, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, invalid("value is required", nil)
	}
	isNull := bytes.Equal(raw, []byte("null"))

	switch t {
	case models.TypeText, models.TypeTextMultiline, models.TypeSCMCQ, models.TypeDigitSpan:
		if isNull {
			return models.TextAnswer(""), nil
		}
		return p.parseText(raw)

	case models.TypeMCQ:
		if isNull {
			return models.TextAnswer(""), nil
		}
		if raw[0] == '[' {
			return p.parseList(raw)
		}
		return p.parseText(raw)

	case models.TypeTextGrouped, models.TypeMCMCQ, models.TypeNamingGrouped,
		models.TypeMemoryRegistration, models.TypeMemoryWordsDisplay, models.TypeNameAddressLearning:
		if isNull {
			return models.ListAnswer{}, nil
		}
		return p.parseList(raw)

	case models.TypeMatching:
		if isNull {
			return models.MatchAnswer{}, nil
		}
		return p.parseMatching(raw)

	case models.TypeVigilance:
		if isNull {
			return models.IndexAnswer{}, nil
		}
		return p.parseIndices(raw)

	case models.TypeDrawing, models.TypeAudio, models.TypeFileUpload:
		return p.parseBinaryReference(t, raw)

	default:
		return nil, &errors.UnsupportedTypeError{Type: string(t)}
	}
}

// ParseField validates one entry of a grouped answer.
func (p *AnswerParser) ParseField(t models.QuestionType, index int, raw json.RawMessage) (string, error) {
	switch t {
	case models.TypeTextGrouped, models.TypeNamingGrouped,
		models.TypeMemoryRegistration, models.TypeMemoryWordsDisplay, models.TypeNameAddressLearning:
	default:
		return "", invalid(fmt.Sprintf("question type %s has no fields", t), index)
	}
	if index < 0 || index >= maxListAnswerItems {
		return "", errors.ValidationErrors{*errors.NewValidationErrorWithRule("field_index", "is out of range", "max", index)}
	}
	v, err := p.parseText(bytes.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return string(v.(models.TextAnswer)), nil
}

func (p *AnswerParser) parseText(raw json.RawMessage) (models.AnswerValue, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, invalid("must be a string", string(raw))
		}
		s = n.String()
	}
	if len(s) > maxTextAnswerLength {
		return nil, invalid(fmt.Sprintf("must be at most %d characters", maxTextAnswerLength), nil)
	}
	return models.TextAnswer(s), nil
}

func (p *AnswerParser) parseList(raw json.RawMessage) (models.AnswerValue, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, invalid("must be an array of strings", string(raw))
	}
	if len(items) > maxListAnswerItems {
		return nil, invalid(fmt.Sprintf("must have at most %d items", maxListAnswerItems), len(items))
	}
	out := make(models.ListAnswer, len(items))
	for i, item := range items {
		if bytes.Equal(bytes.TrimSpace(item), []byte("null")) {
			continue
		}
		v, err := p.parseText(item)
		if err != nil {
			return nil, invalid("item "+strconv.Itoa(i)+" must be a string", string(item))
		}
		out[i] = string(v.(models.TextAnswer))
	}
	return out, nil
}

func (p *AnswerParser) parseMatching(raw json.RawMessage) (models.AnswerValue, error) {
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, invalid("must be an object mapping left labels to right labels", string(raw))
	}
	for left := range m {
		if strings.TrimSpace(left) == "" {
			return nil, invalid("left labels cannot be empty", nil)
		}
	}
	return models.MatchAnswer(m), nil
}

func (p *AnswerParser) parseIndices(raw json.RawMessage) (models.AnswerValue, error) {
	var idx []int
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, invalid("must be an array of token indices", string(raw))
	}
	seen := make(map[int]bool, len(idx))
	out := make(models.IndexAnswer, 0, len(idx))
	for _, i := range idx {
		if i < 0 {
			return nil, invalid("token indices cannot be negative", i)
		}
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	return out, nil
}

// parseBinaryReference accepts a data URL drawing or an existing media
// reference. Recorded audio and picked files arrive as multipart uploads.
func (p *AnswerParser) parseBinaryReference(t models.QuestionType, raw json.RawMessage) (models.AnswerValue, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, invalid("must be a media reference or a data URL", nil)
	}
	if _, ok := models.ParseMediaRef(s); ok {
		return models.MediaAnswer{Ref: s}, nil
	}
	if t == models.TypeDrawing && strings.HasPrefix(s, "data:image/") {
		return models.BinaryAnswer{
			Data:    []byte(s),
			Capture: models.BinaryDrawing,
		}, nil
	}
	return nil, invalid(fmt.Sprintf("%s answers must be uploaded as media", t), nil)
}

func invalid(message string, value interface{}) error {
	return errors.ValidationErrors{*errors.NewValidationErrorWithRule("value", message, "answer_shape", value)}
}
