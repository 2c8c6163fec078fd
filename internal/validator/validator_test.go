package validator

import (
	"encoding/json"
	"testing"

	apperrors "github.com/SAP-F-2025/assessment-runner/internal/errors"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type startRequest struct {
	Test   string `json:"test" validate:"required,test_selector"`
	Locale string `json:"locale" validate:"omitempty,locale"`
}

type typedRequest struct {
	Type string `json:"type" validate:"required,question_type"`
}

func TestValidator_CustomTags(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(startRequest{Test: "moca", Locale: "pt-BR"}))
	assert.NoError(t, v.Validate(startRequest{Test: "mmse"}))
	assert.NoError(t, v.Validate(typedRequest{Type: "naming_grouped"}))

	err := v.Validate(startRequest{Test: "moca", Locale: "english please"})
	require.Error(t, err)
	var errs apperrors.ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Equal(t, "locale", errs[0].Field)
	assert.Equal(t, "locale", errs[0].Rule)

	err = v.Validate(typedRequest{Type: "essay"})
	require.ErrorAs(t, err, &errs)
	assert.Equal(t, "must be a known question display type", errs[0].Message)

	assert.NoError(t, v.Var("a1b2c3d4e5", "client_key"))
	assert.Error(t, v.Var("short", "client_key"))
}

func TestAnswerParser_Parse(t *testing.T) {
	p := NewAnswerParser()

	tests := []struct {
		name string
		typ  models.QuestionType
		raw  string
		want models.AnswerValue
	}{
		{"text", models.TypeText, `"Paris"`, models.TextAnswer("Paris")},
		{"numeric text", models.TypeDigitSpan, `58213`, models.TextAnswer("58213")},
		{"cleared text", models.TypeText, `null`, models.TextAnswer("")},
		{"single mcq", models.TypeMCQ, `"o2"`, models.TextAnswer("o2")},
		{"multi mcq", models.TypeMCQ, `["o1","o2"]`, models.ListAnswer{"o1", "o2"}},
		{"grouped with gaps", models.TypeTextGrouped, `["2025",null,"spring"]`, models.ListAnswer{"2025", "", "spring"}},
		{"matching", models.TypeMatching, `{"dog":"bark"}`, models.MatchAnswer{"dog": "bark"}},
		{"vigilance dedup", models.TypeVigilance, `[3,1,3]`, models.IndexAnswer{3, 1}},
		{"media reference", models.TypeAudio, `"media:77"`, models.MediaAnswer{Ref: "media:77"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.typ, json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnswerParser_Drawing(t *testing.T) {
	p := NewAnswerParser()

	got, err := p.Parse(models.TypeDrawing, json.RawMessage(`"data:image/png;base64,iVBORw0KGgo="`))
	require.NoError(t, err)
	blob, ok := got.(models.BinaryAnswer)
	require.True(t, ok)
	assert.Equal(t, models.BinaryDrawing, blob.Capture)

	_, err = p.Parse(models.TypeAudio, json.RawMessage(`"data:audio/webm;base64,AAAA"`))
	assert.Error(t, err)
}

func TestAnswerParser_Rejects(t *testing.T) {
	p := NewAnswerParser()

	_, err := p.Parse(models.TypeMatching, json.RawMessage(`["dog"]`))
	var errs apperrors.ValidationErrors
	assert.ErrorAs(t, err, &errs)

	_, err = p.Parse(models.TypeVigilance, json.RawMessage(`[-1]`))
	assert.Error(t, err)

	_, err = p.Parse(models.QuestionType("hologram"), json.RawMessage(`"x"`))
	assert.True(t, apperrors.IsUnsupportedType(err))

	_, err = p.Parse(models.TypeText, json.RawMessage(``))
	assert.Error(t, err)
}

func TestAnswerParser_ParseField(t *testing.T) {
	p := NewAnswerParser()

	got, err := p.ParseField(models.TypeTextGrouped, 2, json.RawMessage(`"Spring"`))
	require.NoError(t, err)
	assert.Equal(t, "Spring", got)

	_, err = p.ParseField(models.TypeText, 0, json.RawMessage(`"x"`))
	assert.Error(t, err)

	_, err = p.ParseField(models.TypeTextGrouped, -1, json.RawMessage(`"x"`))
	assert.Error(t, err)
}
