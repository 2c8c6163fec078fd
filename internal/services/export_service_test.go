package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func exportFixture(t *testing.T) (*harness, *Session) {
	t.Helper()
	h := newHarness(t)
	h.backend.attempts = []models.Attempt{{ID: "a9", TestID: "t1", UserID: "u1"}}
	h.backend.responses = []models.Response{
		{AttemptID: "a9", QuestionID: "q3", AnswerText: "media:m5"},
		{AttemptID: "a9", QuestionID: "q2", AnswerText: `["face","red"]`},
		{AttemptID: "a9", QuestionID: "q1", AnswerText: "Paris"},
	}
	sess, err := h.service.Initialize(context.Background(), InitializeRequest{Test: "moca"}, h.context(t, "opaque-token"))
	require.NoError(t, err)
	return h, sess
}

func TestExportResponses_XLSX(t *testing.T) {
	h, sess := exportFixture(t)
	svc := NewExportService(NewSessionRecorder(h.publisher, nil, discardLogger()), discardLogger())

	out, err := svc.ExportResponses(context.Background(), sess.api, "a9", sess.Content, ExportXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Responses")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, []string{"Orientation", "q1", "What is the capital of France?", "text", "Paris", "Paris"}, rows[1])
	assert.Equal(t, "face, red", rows[2][4])
	assert.Equal(t, "media:m5", rows[3][4])
}

func TestExportResponses_CSVWithoutContent(t *testing.T) {
	_, sess := exportFixture(t)
	svc := NewExportService(nil, discardLogger())

	out, err := svc.ExportResponses(context.Background(), sess.api, "a9", nil, ExportCSV)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "q3", records[1][1])
	assert.Equal(t, "", records[1][0], "unknown questions have no section")
}

func TestReadableAnswer(t *testing.T) {
	assert.Equal(t, "dog = bark; owl = hoot", readableAnswer(models.MatchAnswer{"owl": "hoot", "dog": "bark"}))
	assert.Equal(t, "3, 7", readableAnswer(models.IndexAnswer{3, 7}))
	assert.Equal(t, "", readableAnswer(nil))
}
