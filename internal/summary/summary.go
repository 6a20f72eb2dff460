// Package summary loads the collapsible sections of a page. Sections fetch
// independently: one failing leaves its siblings intact.
package summary

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"semaphore/portal/internal/metrics"
	"semaphore/portal/internal/selection"
)

const maxConcurrentSections = 8

type Item struct {
	ID       string
	Title    string
	Subtitle string
	Href     string
	Badge    string
}

type Section struct {
	Key         string
	Title       string
	EmptyLabel  string
	Collapsible bool
	Open        bool
	ToggleHref  string
	Items       []Item
	Failed      bool
	Err         error
}

// Empty is true for a loaded section with nothing to show; the empty label is rendered instead.
func (s Section) Empty() bool {
	return s.Open && !s.Failed && len(s.Items) == 0
}

type FetchFunc func(ctx context.Context) ([]Item, error)

type Spec struct {
	Key        string
	Title      string
	EmptyLabel string

	// Fixed sections cannot be collapsed and are always fetched.
	Fixed bool
	Fetch FetchFunc
}

type Loader struct {
	timeout time.Duration
	log     *zap.Logger
}

func NewLoader(timeout time.Duration, logger *zap.Logger) *Loader {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{timeout: timeout, log: logger}
}

// Timeout is the budget of one section fetch.
func (l *Loader) Timeout() time.Duration {
	return l.timeout
}

// Load fetches every open section concurrently, each under its own timeout.
// Closed sections come back with no items and are not fetched.
func (l *Loader) Load(ctx context.Context, sel selection.Selection, path string, specs ...Spec) []Section {
	sections := make([]Section, len(specs))
	var g errgroup.Group
	g.SetLimit(maxConcurrentSections)

	for i, spec := range specs {
		open := spec.Fixed || !sel.Closed(spec.Key)
		sections[i] = Section{
			Key:         spec.Key,
			Title:       spec.Title,
			EmptyLabel:  spec.EmptyLabel,
			Collapsible: !spec.Fixed,
			Open:        open,
		}
		if !spec.Fixed {
			sections[i].ToggleHref = sel.ToggleSection(spec.Key).URL(path)
		}
		if !open || spec.Fetch == nil {
			continue
		}

		i, spec := i, spec
		g.Go(func() error {
			sectionCtx, cancel := context.WithTimeout(ctx, l.timeout)
			defer cancel()
			items, err := spec.Fetch(sectionCtx)
			if err != nil {
				metrics.SectionFailures.WithLabelValues(spec.Key).Inc()
				l.log.Warn("summary section failed", zap.String("section", spec.Key), zap.Error(err))
				sections[i].Failed = true
				sections[i].Err = err
				return nil
			}
			sections[i].Items = items
			return nil
		})
	}
	_ = g.Wait()
	return sections
}

// Failures lists the sections that did not load.
func Failures(sections []Section) []Section {
	var failed []Section
	for _, s := range sections {
		if s.Failed {
			failed = append(failed, s)
		}
	}
	return failed
}
