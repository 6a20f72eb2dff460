// Package pages builds the per-route page shells: filters on top, summary
// sections below, chosen by the user's active role.
package pages

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"semaphore/portal/internal/apiclient"
	"semaphore/portal/internal/model"
	"semaphore/portal/internal/selection"
	"semaphore/portal/internal/summary"
)

type API interface {
	Courses(ctx context.Context, token string, f apiclient.Filter) ([]model.CourseBrief, error)
	Classes(ctx context.Context, token string, f apiclient.Filter) ([]model.ClassBrief, error)
	Students(ctx context.Context, token string, f apiclient.Filter) ([]model.StudentBrief, error)
	Assignments(ctx context.Context, token string, f apiclient.Filter) ([]model.AssignmentBrief, error)
	Exercises(ctx context.Context, token string, f apiclient.Filter) ([]model.ExerciseBrief, error)
	Quizzes(ctx context.Context, token string, f apiclient.Filter) ([]model.QuizBrief, error)
	Files(ctx context.Context, token string, f apiclient.Filter) ([]model.FileBrief, error)
	Spectators(ctx context.Context, token string, f apiclient.Filter) ([]model.SpectatorBrief, error)
	Calendar(ctx context.Context, token string, f apiclient.Filter) ([]model.CalendarEvent, error)
	Chats(ctx context.Context, token string, f apiclient.Filter) ([]model.ChatBrief, error)
}

type Name string

const (
	Home        Name = "home"
	Assignments Name = "assignments"
	Exercises   Name = "exercises"
	Quiz        Name = "quiz"
	Files       Name = "files"
	Calendar    Name = "calendar"
	Chats       Name = "chats"
	Search      Name = "search"
)

var paths = map[Name]string{
	Home:        "/",
	Assignments: "/assignments",
	Exercises:   "/exercises",
	Quiz:        "/quiz",
	Files:       "/files",
	Calendar:    "/calendar",
	Chats:       "/chats",
	Search:      "/search",
}

var titles = map[Name]string{
	Home:        "Home",
	Assignments: "Assignments",
	Exercises:   "Exercises",
	Quiz:        "Quiz",
	Files:       "Files",
	Calendar:    "Calendar",
	Chats:       "Chats",
	Search:      "Search",
}

func Path(name Name) string {
	return paths[name]
}

type Filter struct {
	Label     string
	Group     selection.Group
	Options   []selection.Option
	ClearHref string
}

// Active reports whether one of the options is selected.
func (f Filter) Active() bool {
	for _, o := range f.Options {
		if o.Selected {
			return true
		}
	}
	return false
}

type Page struct {
	Name      Name
	Title     string
	Path      string
	Anonymous bool
	Search    string
	Filters   []Filter
	Sections  []summary.Section

	// Problems are user-facing messages for anything that failed to load.
	Problems []string
}

type Builder struct {
	api    API
	loader *summary.Loader
	now    func() time.Time
}

func NewBuilder(api API, loader *summary.Loader) *Builder {
	return &Builder{api: api, loader: loader, now: time.Now}
}

type request struct {
	ctx   context.Context
	user  *model.User
	token string
	sel   selection.Selection
	page  *Page
	mu    sync.Mutex
}

func (r *request) teacher() bool {
	return r.user.ActingAs(model.RoleTeacher)
}

// problem records a failed load. Only API messages reach the user.
func (r *request) problem(what string, err error) {
	msg := "Could not load " + what
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		msg += ": " + apiErr.Error()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.page.Problems = append(r.page.Problems, msg)
}

// Build assembles a page. A nil user gets the anonymous shell and nothing is fetched.
func (b *Builder) Build(ctx context.Context, name Name, user *model.User, token string, sel selection.Selection) Page {
	path, ok := paths[name]
	if !ok {
		name, path = Home, paths[Home]
	}
	page := Page{Name: name, Title: titles[name], Path: path, Anonymous: user == nil, Search: sel.Search()}
	req := &request{ctx: ctx, user: user, token: token, sel: sel, page: &page}

	if user == nil {
		page.Sections = b.loader.Load(ctx, sel, path, anonymousSpecs(name)...)
		return page
	}

	page.Filters = b.filters(req, name)
	page.Sections = b.loader.Load(ctx, sel, path, b.specs(req, name)...)
	for _, failed := range summary.Failures(page.Sections) {
		req.problem(strings.ToLower(failed.Title), failed.Err)
	}
	return page
}

func anonymousSpecs(name Name) []summary.Spec {
	label := "Log in to see your " + strings.ToLower(titles[name])
	switch name {
	case Home:
		return []summary.Spec{
			{Key: "courses", Title: "Courses", EmptyLabel: "Log in to see your courses"},
			{Key: "calendar", Title: "Calendar", EmptyLabel: "Log in to see your calendar"},
		}
	case Chats:
		return []summary.Spec{{Key: "chats", Title: "Chats", EmptyLabel: label, Fixed: true}}
	case Search:
		return []summary.Spec{{Key: "results", Title: "Courses", EmptyLabel: "Log in to search your courses", Fixed: true}}
	default:
		return []summary.Spec{{Key: string(name), Title: titles[name], EmptyLabel: label}}
	}
}

// Filters

type filterSpec struct {
	label string
	group selection.Group
	load  func(ctx context.Context) ([]selection.Item, error)
}

func (b *Builder) filters(req *request, name Name) []Filter {
	var specs []filterSpec
	switch name {
	case Chats, Search:
		return nil
	case Home:
		specs = append(specs, b.courseFilter(req))
		if req.teacher() {
			specs = append(specs, b.classFilter(req))
		}
	case Assignments:
		specs = append(specs, b.courseFilter(req))
		if req.teacher() {
			specs = append(specs, b.studentFilter(req))
		}
	case Exercises:
		specs = append(specs, b.courseFilter(req), b.assignmentFilter(req))
		if req.teacher() {
			specs = append(specs, b.studentFilter(req))
		}
	default:
		specs = append(specs, b.courseFilter(req))
	}

	path := paths[name]
	filters := make([]Filter, len(specs))
	var g errgroup.Group
	for i, spec := range specs {
		i, spec := i, spec
		filters[i] = Filter{Label: spec.label, Group: spec.group, ClearHref: req.sel.Without(spec.group).URL(path)}
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(req.ctx, b.loader.Timeout())
			defer cancel()
			items, err := spec.load(ctx)
			if err != nil {
				req.problem(strings.ToLower(spec.label)+" list", err)
				return nil
			}
			filters[i].Options = req.sel.Options(path, spec.group, items)
			return nil
		})
	}
	_ = g.Wait()
	return filters
}

func (b *Builder) courseFilter(req *request) filterSpec {
	return filterSpec{label: "Courses", group: selection.GroupCourse, load: func(ctx context.Context) ([]selection.Item, error) {
		courses, err := b.api.Courses(ctx, req.token, apiclient.Filter{})
		if err != nil {
			return nil, err
		}
		return toOptions(courses, func(c model.CourseBrief) selection.Item {
			return selection.Item{ID: c.ID, Label: c.Name}
		}), nil
	}}
}

func (b *Builder) classFilter(req *request) filterSpec {
	return filterSpec{label: "Classes", group: selection.GroupClass, load: func(ctx context.Context) ([]selection.Item, error) {
		classes, err := b.api.Classes(ctx, req.token, apiclient.Filter{CourseID: req.sel.Get(selection.GroupCourse)})
		if err != nil {
			return nil, err
		}
		return toOptions(classes, func(c model.ClassBrief) selection.Item {
			return selection.Item{ID: c.ID, Label: c.Name}
		}), nil
	}}
}

func (b *Builder) studentFilter(req *request) filterSpec {
	return filterSpec{label: "Students", group: selection.GroupStudent, load: func(ctx context.Context) ([]selection.Item, error) {
		students, err := b.api.Students(ctx, req.token, apiclient.Filter{
			CourseID: req.sel.Get(selection.GroupCourse),
			ClassID:  req.sel.Get(selection.GroupClass),
		})
		if err != nil {
			return nil, err
		}
		return toOptions(students, func(s model.StudentBrief) selection.Item {
			return selection.Item{ID: s.ID, Label: strings.TrimSpace(s.Name + " " + s.Surname)}
		}), nil
	}}
}

func (b *Builder) assignmentFilter(req *request) filterSpec {
	return filterSpec{label: "Assignments", group: selection.GroupAssignment, load: func(ctx context.Context) ([]selection.Item, error) {
		assignments, err := b.api.Assignments(ctx, req.token, apiclient.Filter{CourseID: req.sel.Get(selection.GroupCourse)})
		if err != nil {
			return nil, err
		}
		return toOptions(assignments, func(a model.AssignmentBrief) selection.Item {
			return selection.Item{ID: a.ID, Label: a.Title}
		}), nil
	}}
}

// Sections

func (b *Builder) specs(req *request, name Name) []summary.Spec {
	course := req.sel.Get(selection.GroupCourse)
	switch name {
	case Home:
		specs := []summary.Spec{
			{Key: "courses", Title: "Courses", EmptyLabel: "No courses yet", Fetch: b.courses(req, apiclient.Filter{ClassID: req.sel.Get(selection.GroupClass)})},
			{Key: "calendar", Title: "Calendar", EmptyLabel: "Nothing planned", Fetch: b.calendar(req, apiclient.Filter{CourseID: course}, true)},
		}
		if req.teacher() {
			specs = append(specs, summary.Spec{Key: "classes", Title: "Classes", EmptyLabel: "No classes yet", Fetch: b.classes(req, apiclient.Filter{CourseID: course})})
		} else {
			specs = append(specs, summary.Spec{Key: "spectators", Title: "Spectators", EmptyLabel: "Nobody follows your progress yet", Fetch: b.spectators(req)})
		}
		return specs
	case Assignments:
		return []summary.Spec{{Key: "assignments", Title: "Assignments", EmptyLabel: "No assignments", Fetch: b.assignments(req, b.studentScoped(req, apiclient.Filter{CourseID: course}))}}
	case Exercises:
		f := b.studentScoped(req, apiclient.Filter{CourseID: course, AssignmentID: req.sel.Get(selection.GroupAssignment)})
		return []summary.Spec{{Key: "exercises", Title: "Exercises", EmptyLabel: "No exercises", Fetch: b.exercises(req, f)}}
	case Quiz:
		return []summary.Spec{{Key: "quiz", Title: "Quizzes", EmptyLabel: "No quizzes", Fetch: b.quizzes(req, apiclient.Filter{CourseID: course})}}
	case Files:
		return []summary.Spec{{Key: "files", Title: "Files", EmptyLabel: "No files", Fetch: b.files(req, apiclient.Filter{CourseID: course})}}
	case Calendar:
		return []summary.Spec{{Key: "calendar", Title: "Calendar", EmptyLabel: "Nothing planned", Fetch: b.calendar(req, apiclient.Filter{CourseID: course}, false)}}
	case Chats:
		return []summary.Spec{{Key: "chats", Title: "Chats", EmptyLabel: "No conversations", Fixed: true, Fetch: b.chats(req)}}
	case Search:
		return []summary.Spec{{Key: "results", Title: "Courses", EmptyLabel: "No course matches your search", Fixed: true, Fetch: b.search(req, req.sel.Search())}}
	}
	return nil
}

// studentScoped narrows a teacher's view to the selected student. Students are
// scoped by their own token.
func (b *Builder) studentScoped(req *request, f apiclient.Filter) apiclient.Filter {
	if req.teacher() {
		f.StudentID = req.sel.Get(selection.GroupStudent)
	}
	return f
}

func (b *Builder) courses(req *request, f apiclient.Filter) summary.FetchFunc {
	return func(ctx context.Context) ([]summary.Item, error) {
		courses, err := b.api.Courses(ctx, req.token, f)
		if err != nil {
			return nil, err
		}
		return toItems(courses, courseItem), nil
	}
}

// search matches course names case-insensitively. The query is also sent to the
// API so large catalogues are narrowed server side.
func (b *Builder) search(req *request, query string) summary.FetchFunc {
	return func(ctx context.Context) ([]summary.Item, error) {
		query = strings.TrimSpace(query)
		if query == "" {
			return nil, nil
		}
		courses, err := b.api.Courses(ctx, req.token, apiclient.Filter{Search: query})
		if err != nil {
			return nil, err
		}
		needle := strings.ToLower(query)
		var matched []model.CourseBrief
		for _, c := range courses {
			if strings.Contains(strings.ToLower(c.Name), needle) {
				matched = append(matched, c)
			}
		}
		return toItems(matched, courseItem), nil
	}
}

func (b *Builder) calendar(req *request, f apiclient.Filter, upcomingOnly bool) summary.FetchFunc {
	return func(ctx context.Context) ([]summary.Item, error) {
		events, err := b.api.Calendar(ctx, req.token, f)
		if err != nil {
			return nil, err
		}
		if upcomingOnly {
			now := b.now()
			kept := events[:0]
			for _, e := range events {
				if e.EndAt.IsZero() || e.EndAt.After(now) {
					kept = append(kept, e)
				}
			}
			events = kept
		}
		return toItems(events, func(e model.CalendarEvent) summary.Item {
			return summary.Item{ID: e.ID, Title: e.Title, Subtitle: formatRange(e.StartAt, e.EndAt)}
		}), nil
	}
}

func (b *Builder) classes(req *request, f apiclient.Filter) summary.FetchFunc {
	return func(ctx context.Context) ([]summary.Item, error) {
		classes, err := b.api.Classes(ctx, req.token, f)
		if err != nil {
			return nil, err
		}
		return toItems(classes, func(c model.ClassBrief) summary.Item {
			return summary.Item{ID: c.ID, Title: c.Name, Badge: plural(c.Students, "student"), Href: "/?class=" + url.QueryEscape(c.ID)}
		}), nil
	}
}

func (b *Builder) spectators(req *request) summary.FetchFunc {
	return func(ctx context.Context) ([]summary.Item, error) {
		spectators, err := b.api.Spectators(ctx, req.token, apiclient.Filter{})
		if err != nil {
			return nil, err
		}
		return toItems(spectators, func(s model.SpectatorBrief) summary.Item {
			return summary.Item{ID: s.ID, Title: strings.TrimSpace(s.Name + " " + s.Surname), Subtitle: s.Email}
		}), nil
	}
}

func (b *Builder) assignments(req *request, f apiclient.Filter) summary.FetchFunc {
	return func(ctx context.Context) ([]summary.Item, error) {
		assignments, err := b.api.Assignments(ctx, req.token, f)
		if err != nil {
			return nil, err
		}
		return toItems(assignments, func(a model.AssignmentBrief) summary.Item {
			item := summary.Item{ID: a.ID, Title: a.Title, Href: exercisesHref(a.CourseID, a.ID)}
			if !a.DueAt.IsZero() {
				item.Subtitle = "Due " + a.DueAt.Format("Mon 02 Jan 15:04")
			}
			if a.Done {
				item.Badge = "done"
			}
			return item
		}), nil
	}
}

func (b *Builder) exercises(req *request, f apiclient.Filter) summary.FetchFunc {
	return func(ctx context.Context) ([]summary.Item, error) {
		exercises, err := b.api.Exercises(ctx, req.token, f)
		if err != nil {
			return nil, err
		}
		return toItems(exercises, func(e model.ExerciseBrief) summary.Item {
			return summary.Item{ID: e.ID, Title: e.Title}
		}), nil
	}
}

func (b *Builder) quizzes(req *request, f apiclient.Filter) summary.FetchFunc {
	return func(ctx context.Context) ([]summary.Item, error) {
		quizzes, err := b.api.Quizzes(ctx, req.token, f)
		if err != nil {
			return nil, err
		}
		return toItems(quizzes, func(q model.QuizBrief) summary.Item {
			return summary.Item{ID: q.ID, Title: q.Title, Badge: plural(q.Questions, "question")}
		}), nil
	}
}

func (b *Builder) files(req *request, f apiclient.Filter) summary.FetchFunc {
	return func(ctx context.Context) ([]summary.Item, error) {
		files, err := b.api.Files(ctx, req.token, f)
		if err != nil {
			return nil, err
		}
		return toItems(files, func(file model.FileBrief) summary.Item {
			return summary.Item{ID: file.ID, Title: file.Name, Subtitle: humanSize(file.Size), Href: DownloadPath(file.ID)}
		}), nil
	}
}

func (b *Builder) chats(req *request) summary.FetchFunc {
	return func(ctx context.Context) ([]summary.Item, error) {
		chats, err := b.api.Chats(ctx, req.token, apiclient.Filter{})
		if err != nil {
			return nil, err
		}
		return toItems(chats, func(c model.ChatBrief) summary.Item {
			return summary.Item{ID: c.ID, Title: c.Title, Subtitle: c.LastMessage}
		}), nil
	}
}

// Helpers

func DownloadPath(fileID string) string {
	return "/files/" + url.PathEscape(fileID) + "/download"
}

func exercisesHref(courseID, assignmentID string) string {
	query := url.Values{}
	if courseID != "" {
		query.Set(string(selection.GroupCourse), courseID)
	}
	query.Set(string(selection.GroupAssignment), assignmentID)
	return paths[Exercises] + "?" + query.Encode()
}

func courseItem(c model.CourseBrief) summary.Item {
	return summary.Item{
		ID:       c.ID,
		Title:    c.Name,
		Subtitle: c.Teacher,
		Href:     paths[Assignments] + "?" + url.Values{string(selection.GroupCourse): {c.ID}}.Encode(),
	}
}

func toItems[T any](in []T, fn func(T) summary.Item) []summary.Item {
	out := make([]summary.Item, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}

func toOptions[T any](in []T, fn func(T) selection.Item) []selection.Item {
	out := make([]selection.Item, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func humanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func formatRange(start, end time.Time) string {
	if start.IsZero() {
		return ""
	}
	if end.IsZero() || end.Equal(start) {
		return start.Format("Mon 02 Jan 15:04")
	}
	if start.YearDay() == end.YearDay() && start.Year() == end.Year() {
		return start.Format("Mon 02 Jan 15:04") + " - " + end.Format("15:04")
	}
	return start.Format("Mon 02 Jan 15:04") + " - " + end.Format("Mon 02 Jan 15:04")
}
