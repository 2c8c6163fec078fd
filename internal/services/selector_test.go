package services

import (
	"testing"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectTest(t *testing.T) {
	tests := []models.Test{
		{ID: "11", Title: "Mini-Mental State Examination (legacy)", IsActive: false},
		{ID: "12", Title: "Mini-Mental State Examination", IsActive: true},
		{ID: "20", Title: "MoCA 8.1", IsActive: true},
		{ID: "30", Title: "Addenbrooke's Cognitive Examination", IsActive: true},
		{ID: "40", Title: "Clinical Dementia Rating", IsActive: true},
		{ID: "50", Title: "Cookie Theft picture description", IsActive: true},
		{ID: "60", Title: "Verbal Fluency", IsActive: true},
	}

	cases := []struct {
		selector string
		want     models.ID
	}{
		{"20", "20"},
		{"MMSE", "12"},
		{"mini-mental", "12"},
		{"moca", "20"},
		{"Montreal", "20"},
		{"ACE-III", "30"},
		{"ace3", "30"},
		{"cdr", "40"},
		{"image description", "50"},
		{"fluency", "60"},
	}
	for _, tc := range cases {
		t.Run(tc.selector, func(t *testing.T) {
			got, err := SelectTest(tests, tc.selector)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.ID)
		})
	}
}

func TestSelectTest_NotFound(t *testing.T) {
	tests := []models.Test{{ID: "1", Title: "MoCA", IsActive: true}}

	_, err := SelectTest(tests, "stroop")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrTestNotFound)

	_, err = SelectTest(tests, "  ")
	assert.True(t, IsNotFound(err))

	_, err = SelectTest(nil, "moca")
	assert.True(t, IsNotFound(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, models.TestKindMMSE, KindOf(models.Test{Title: "MMSE short form"}))
	assert.Equal(t, models.TestKindImageDescription, KindOf(models.Test{Title: "Image Description Task"}))
	assert.Equal(t, models.TestKindOther, KindOf(models.Test{Title: "Trail Making"}))
}
