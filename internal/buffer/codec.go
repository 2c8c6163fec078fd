package buffer

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/SAP-F-2025/assessment-runner/internal/errors"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
)

// legacySeparator joined grouped answers in content written before
// answers were JSON encoded. It is only read, never written.
const legacySeparator = ";"

// NeedsUpload reports whether v must be exchanged for a media reference
// before it can be persisted under display type t.
func NeedsUpload(t models.QuestionType, v models.AnswerValue) bool {
	b, ok := v.(models.BinaryAnswer)
	if !ok {
		return false
	}
	switch {
	case b.IsAudio():
		return true
	case t == models.TypeDrawing:
		return true
	case t == models.TypeFileUpload && b.Capture == models.BinaryFile:
		return true
	}
	return false
}

// Encode turns a buffered answer into the answerText the backend stores.
// Binary values are refused: they have to go through the media upload
// first.
func Encode(t models.QuestionType, v models.AnswerValue) (string, error) {
	switch a := v.(type) {
	case nil:
		return "", nil
	case models.TextAnswer:
		return string(a), nil
	case models.MediaAnswer:
		return a.Ref, nil
	case models.ListAnswer:
		if a == nil {
			a = models.ListAnswer{}
		}
		return marshal(a)
	case models.IndexAnswer:
		if a == nil {
			a = models.IndexAnswer{}
		}
		return marshal(a)
	case models.MatchAnswer:
		if a == nil {
			a = models.MatchAnswer{}
		}
		return marshal(a)
	case models.BinaryAnswer:
		if NeedsUpload(t, a) {
			return "", fmt.Errorf("binary answer for %s question was not uploaded", t)
		}
		return "", fmt.Errorf("binary answer not accepted for %s question: %w", t, apperrors.ErrUnsupportedType)
	default:
		return "", fmt.Errorf("unknown answer value %T", v)
	}
}

func marshal(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode answer: %w", err)
	}
	return string(raw), nil
}

// Decode reads a stored answerText back into a buffered value for a
// question of display type t. Media references of media-typed questions
// come back as a MediaAnswer without a display URL. Elsewhere a "media:"
// prefix is just text the participant typed.
func Decode(t models.QuestionType, raw string) models.AnswerValue {
	if t.TakesMedia() {
		if _, ok := models.ParseMediaRef(raw); ok {
			return models.MediaAnswer{Ref: strings.TrimSpace(raw)}
		}
	}

	switch expectedKind(t) {
	case models.AnswerList:
		if list, ok := decodeList(raw); ok {
			return list
		}
		return splitLegacy(raw)
	case models.AnswerMatch:
		var m map[string]string
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			return models.MatchAnswer(m)
		}
	case models.AnswerIndices:
		var idx []int
		if err := json.Unmarshal([]byte(raw), &idx); err == nil {
			return models.IndexAnswer(idx)
		}
	}

	// mcq may be single or multi select depending on content config.
	if t == models.TypeMCQ {
		if list, ok := decodeList(raw); ok {
			return list
		}
	}
	return models.TextAnswer(raw)
}

func decodeList(raw string) (models.ListAnswer, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}
	var list []string
	if err := json.Unmarshal([]byte(trimmed), &list); err != nil {
		return nil, false
	}
	return models.ListAnswer(list), true
}

func splitLegacy(raw string) models.ListAnswer {
	if raw == "" {
		return models.ListAnswer{}
	}
	parts := strings.Split(raw, legacySeparator)
	out := make(models.ListAnswer, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

// expectedKind is the answer shape a display type produces when it is
// not a media reference.
func expectedKind(t models.QuestionType) models.AnswerKind {
	switch t {
	case models.TypeTextGrouped, models.TypeMCMCQ, models.TypeNamingGrouped,
		models.TypeMemoryRegistration, models.TypeMemoryWordsDisplay, models.TypeNameAddressLearning:
		return models.AnswerList
	case models.TypeMatching:
		return models.AnswerMatch
	case models.TypeVigilance:
		return models.AnswerIndices
	default:
		return models.AnswerText
	}
}
