package services

import (
	"fmt"
	"strings"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
)

type testAlias struct {
	kind    models.TestKind
	needles []string
}

// testAliases lists the names a standard instrument goes by. Titles are
// matched case-insensitively.
var testAliases = []testAlias{
	{models.TestKindMMSE, []string{"mmse", "mini-mental", "mini mental"}},
	{models.TestKindMoCA, []string{"moca", "montreal"}},
	{models.TestKindACEIII, []string{"ace-iii", "ace iii", "ace3", "ace-3", "addenbrooke"}},
	{models.TestKindCDR, []string{"cdr", "clinical dementia"}},
	{models.TestKindImageDescription, []string{"image description", "image-description", "image_description", "picture description", "cookie theft"}},
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func aliasFor(selector string) *testAlias {
	sel := normalize(selector)
	if sel == "" {
		return nil
	}
	for i := range testAliases {
		for _, needle := range testAliases[i].needles {
			if sel == needle || strings.Contains(sel, needle) {
				return &testAliases[i]
			}
		}
	}
	return nil
}

// KindOf classifies a test by its title.
func KindOf(t models.Test) models.TestKind {
	title := normalize(t.Title)
	for _, a := range testAliases {
		for _, needle := range a.needles {
			if strings.Contains(title, needle) {
				return a.kind
			}
		}
	}
	return models.TestKindOther
}

// SelectTest resolves a selector against the test list: exact id first,
// then the alias of a known instrument, then a plain title substring.
// Active tests win over inactive ones at every step.
func SelectTest(tests []models.Test, selector string) (*models.Test, error) {
	sel := normalize(selector)
	if sel == "" {
		return nil, fmt.Errorf("%w: empty selector: %w", ErrTestNotFound, ErrNotFound)
	}

	if t := firstMatch(tests, func(t models.Test) bool { return normalize(t.ID.String()) == sel }); t != nil {
		return t, nil
	}

	if alias := aliasFor(sel); alias != nil {
		match := func(t models.Test) bool {
			title := normalize(t.Title)
			for _, needle := range alias.needles {
				if strings.Contains(title, needle) {
					return true
				}
			}
			return false
		}
		if t := firstMatch(tests, match); t != nil {
			return t, nil
		}
	}

	if t := firstMatch(tests, func(t models.Test) bool { return strings.Contains(normalize(t.Title), sel) }); t != nil {
		return t, nil
	}

	return nil, fmt.Errorf("%w: %q: %w", ErrTestNotFound, selector, ErrNotFound)
}

func firstMatch(tests []models.Test, pred func(models.Test) bool) *models.Test {
	var fallback *models.Test
	for i := range tests {
		if !pred(tests[i]) {
			continue
		}
		if tests[i].IsActive {
			return &tests[i]
		}
		if fallback == nil {
			fallback = &tests[i]
		}
	}
	return fallback
}
