package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/SAP-F-2025/assessment-runner/internal/media"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"golang.org/x/sync/errgroup"
)

const defaultFanoutLimit = 8

// Content is the fully fetched structure of one test.
type Content struct {
	Test     models.Test
	Kind     models.TestKind
	Sections []SectionContent
	// MediaURLs holds every media id that resolved. Ids that failed to
	// resolve are absent.
	MediaURLs map[models.ID]string
}

type SectionContent struct {
	Section   models.Section
	Questions []models.Question
}

// QuestionTypes maps every question to its display type.
func (c *Content) QuestionTypes() map[models.ID]models.QuestionType {
	out := make(map[models.ID]models.QuestionType)
	for _, s := range c.Sections {
		for _, q := range s.Questions {
			out[q.ID] = q.DisplayType()
		}
	}
	return out
}

// Locate finds a question by id.
func (c *Content) Locate(questionID models.ID) (sectionIdx, questionIdx int, q *models.Question, ok bool) {
	for si := range c.Sections {
		for qi := range c.Sections[si].Questions {
			if c.Sections[si].Questions[qi].ID == questionID {
				return si, qi, &c.Sections[si].Questions[qi], true
			}
		}
	}
	return -1, -1, nil, false
}

func (c *Content) QuestionCount() int {
	n := 0
	for _, s := range c.Sections {
		n += len(s.Questions)
	}
	return n
}

type contentLoader struct {
	api      Backend
	resolver *media.Resolver
	limit    int
	logger   *slog.Logger
}

// load fetches the test detail, its sections in order and every
// question's full detail. Any failure is terminal. Media resolution is
// best effort per item.
func (l *contentLoader) load(ctx context.Context, test models.Test) (*Content, error) {
	detail, err := l.api.GetTest(ctx, test.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get test %s: %w", test.ID, err)
	}

	sections, err := l.api.ListSections(ctx, test.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections of test %s: %w", test.ID, err)
	}
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].OrderIndex < sections[j].OrderIndex })

	content := &Content{
		Test:      *detail,
		Kind:      KindOf(*detail),
		Sections:  make([]SectionContent, len(sections)),
		MediaURLs: make(map[models.ID]string),
	}
	if content.Test.Title == "" {
		content.Test.Title = test.Title
		content.Kind = KindOf(test)
	}

	for i, section := range sections {
		questions, err := l.loadQuestions(ctx, section)
		if err != nil {
			return nil, err
		}
		content.Sections[i] = SectionContent{Section: section, Questions: questions}
	}

	l.resolveMedia(ctx, content)
	return content, nil
}

func (l *contentLoader) loadQuestions(ctx context.Context, section models.Section) ([]models.Question, error) {
	list, err := l.api.ListQuestions(ctx, section.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions of section %s: %w", section.ID, err)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].OrderIndex < list[j].OrderIndex })

	out := make([]models.Question, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.fanout())
	for i := range list {
		i := i
		g.Go(func() error {
			q, err := l.api.GetQuestion(gctx, list[i].ID)
			if err != nil {
				return fmt.Errorf("failed to get question %s: %w", list[i].ID, err)
			}
			if q.SectionID.IsZero() {
				q.SectionID = section.ID
			}
			if q.Type == "" {
				q.Type = list[i].Type
			}
			q.OrderIndex = list[i].OrderIndex
			out[i] = *q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// resolveMedia fans out over every media id referenced by the content.
// A failing id is logged and left unresolved; siblings are unaffected.
func (l *contentLoader) resolveMedia(ctx context.Context, content *Content) {
	ids := make(map[models.ID]struct{})
	add := func(id models.ID, inline string) {
		if id.IsZero() {
			return
		}
		l.resolver.Prime(id, inline)
		ids[id] = struct{}{}
	}

	for _, s := range content.Sections {
		for _, q := range s.Questions {
			for _, m := range q.Media {
				add(m.ID, m.URL)
			}
			for _, o := range q.Options {
				if o.Media != nil {
					add(o.Media.ID, o.Media.URL)
				} else {
					add(o.FallbackMediaID(), "")
				}
			}
			add(models.ID(q.Config.String("background_media_id")), "")
			add(models.ID(q.Config.String("mediaId")), "")
			for _, item := range q.Config.Objects("items") {
				cfg := models.Config(item)
				add(models.ID(cfg.String("mediaId")), "")
				add(models.ID(cfg.String("media_id")), "")
			}
		}
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(l.fanout())
	for id := range ids {
		id := id
		g.Go(func() error {
			u, err := l.resolver.ResolveForDisplay(ctx, id)
			if err != nil {
				l.logger.WarnContext(ctx, "Failed to resolve media, keeping raw reference",
					"media_id", id,
					"error", err)
				return nil
			}
			mu.Lock()
			content.MediaURLs[id] = u
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

func (l *contentLoader) fanout() int {
	if l.limit <= 0 {
		return defaultFanoutLimit
	}
	return l.limit
}
