// Package localization applies per-locale translation overlays stored in
// a test's test_specific_info on top of base-language content.
package localization

import (
	"sort"
	"strings"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
)

// DefaultBaseLocale is the language content is authored in.
const DefaultBaseLocale = "en"

// Content is the overridable part of a section or question.
type Content struct {
	Title  string
	Text   string
	Config models.Config
}

// Overlay resolves translations for one test.
type Overlay struct {
	info       models.TestSpecificInfo
	baseLocale string
}

func New(info models.TestSpecificInfo, baseLocale string) *Overlay {
	if info.BaseLocale != "" {
		baseLocale = info.BaseLocale
	}
	if baseLocale == "" {
		baseLocale = DefaultBaseLocale
	}
	return &Overlay{info: info, baseLocale: baseLocale}
}

func (o *Overlay) BaseLocale() string { return o.baseLocale }

// IsBase reports whether locale needs no overlay.
func (o *Overlay) IsBase(locale string) bool {
	return locale == "" || normalize(locale) == normalize(o.baseLocale)
}

// Locales lists the locales with a translation entry, base first and
// the rest in lexical order.
func (o *Overlay) Locales() []string {
	rest := make([]string, 0, len(o.info.Translations))
	for l := range o.info.Translations {
		if !o.IsBase(l) {
			rest = append(rest, l)
		}
	}
	sort.Strings(rest)
	return append([]string{o.baseLocale}, rest...)
}

func (o *Overlay) translation(locale string) (models.TranslationOverlay, bool) {
	if t, ok := o.info.Translations[locale]; ok {
		return t, true
	}
	want := normalize(locale)
	for l, t := range o.info.Translations {
		if normalize(l) == want {
			return t, true
		}
	}
	return models.TranslationOverlay{}, false
}

func (o *Overlay) section(locale string, sectionIndex int) (models.SectionTranslation, bool) {
	t, ok := o.translation(locale)
	if !ok || sectionIndex < 0 || sectionIndex >= len(t.Sections) {
		return models.SectionTranslation{}, false
	}
	return t.Sections[sectionIndex], true
}

// MergeSection overlays the section translation at sectionIndex.
func (o *Overlay) MergeSection(base Content, locale string, sectionIndex int) Content {
	if o.IsBase(locale) {
		return base
	}
	st, ok := o.section(locale, sectionIndex)
	if !ok {
		return base
	}
	return merge(base, st.Title, st.Text, st.Config)
}

// MergeQuestion overlays the question translation at
// sections[sectionIndex].questions[questionIndex].
func (o *Overlay) MergeQuestion(base Content, locale string, sectionIndex, questionIndex int) Content {
	if o.IsBase(locale) {
		return base
	}
	st, ok := o.section(locale, sectionIndex)
	if !ok || questionIndex < 0 || questionIndex >= len(st.Questions) {
		return base
	}
	qt := st.Questions[questionIndex]
	return merge(base, qt.Title, qt.Text, qt.Config)
}

// TestTitle returns the translated test title, if any.
func (o *Overlay) TestTitle(base, locale string) string {
	if o.IsBase(locale) {
		return base
	}
	if t, ok := o.translation(locale); ok && t.Title != "" {
		return t.Title
	}
	return base
}

func merge(base Content, title, text string, config map[string]any) Content {
	out := base
	if title != "" {
		out.Title = title
	}
	if text != "" {
		out.Text = text
	}
	if len(config) > 0 {
		out.Config = base.Config.Merge(config)
	}
	return out
}

func normalize(locale string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
}
