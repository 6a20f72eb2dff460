package pages

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"semaphore/portal/internal/apiclient"
	"semaphore/portal/internal/model"
	"semaphore/portal/internal/selection"
	"semaphore/portal/internal/summary"
)

type fakeAPI struct {
	mu           sync.Mutex
	calls        map[string][]apiclient.Filter
	courses      []model.CourseBrief
	events       []model.CalendarEvent
	failCalendar bool
	calendarErr  error
	slowStudents bool
}

func (f *fakeAPI) record(name string, filter apiclient.Filter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string][]apiclient.Filter{}
	}
	f.calls[name] = append(f.calls[name], filter)
}

func (f *fakeAPI) called(name string) []apiclient.Filter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) Courses(_ context.Context, _ string, filter apiclient.Filter) ([]model.CourseBrief, error) {
	f.record("courses", filter)
	return f.courses, nil
}

func (f *fakeAPI) Classes(_ context.Context, _ string, filter apiclient.Filter) ([]model.ClassBrief, error) {
	f.record("classes", filter)
	return []model.ClassBrief{{ID: "k1", Name: "A1", Students: 12}}, nil
}

func (f *fakeAPI) Students(ctx context.Context, _ string, filter apiclient.Filter) ([]model.StudentBrief, error) {
	f.record("students", filter)
	if f.slowStudents {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []model.StudentBrief{{ID: "s1", Name: "Ada", Surname: "Lovelace"}}, nil
}

func (f *fakeAPI) Assignments(_ context.Context, _ string, filter apiclient.Filter) ([]model.AssignmentBrief, error) {
	f.record("assignments", filter)
	return []model.AssignmentBrief{{ID: "a1", Title: "Limits", CourseID: "c1", Done: true}}, nil
}

func (f *fakeAPI) Exercises(_ context.Context, _ string, filter apiclient.Filter) ([]model.ExerciseBrief, error) {
	f.record("exercises", filter)
	return nil, nil
}

func (f *fakeAPI) Quizzes(_ context.Context, _ string, filter apiclient.Filter) ([]model.QuizBrief, error) {
	f.record("quizzes", filter)
	return []model.QuizBrief{{ID: "q1", Title: "Warmup", Questions: 1}}, nil
}

func (f *fakeAPI) Files(_ context.Context, _ string, filter apiclient.Filter) ([]model.FileBrief, error) {
	f.record("files", filter)
	return []model.FileBrief{{ID: "f 1", Name: "notes.pdf", Size: 2048}}, nil
}

func (f *fakeAPI) Spectators(_ context.Context, _ string, filter apiclient.Filter) ([]model.SpectatorBrief, error) {
	f.record("spectators", filter)
	return nil, nil
}

func (f *fakeAPI) Calendar(_ context.Context, _ string, filter apiclient.Filter) ([]model.CalendarEvent, error) {
	f.record("calendar", filter)
	if f.calendarErr != nil {
		return nil, f.calendarErr
	}
	if f.failCalendar {
		return nil, errors.New("calendar down")
	}
	return f.events, nil
}

func (f *fakeAPI) Chats(_ context.Context, _ string, filter apiclient.Filter) ([]model.ChatBrief, error) {
	f.record("chats", filter)
	return nil, nil
}

func student() *model.User {
	return &model.User{Name: "Ada", Roles: []model.Role{model.RoleStudent, model.RoleTeacher}, ActiveRole: model.RoleStudent}
}

func teacher() *model.User {
	return &model.User{Name: "Grace", Roles: []model.Role{model.RoleStudent, model.RoleTeacher}, ActiveRole: model.RoleTeacher}
}

func newBuilder(api *fakeAPI) *Builder {
	return NewBuilder(api, summary.NewLoader(time.Second, nil))
}

func sectionKeys(page Page) []string {
	keys := make([]string, 0, len(page.Sections))
	for _, s := range page.Sections {
		keys = append(keys, s.Key)
	}
	return keys
}

func TestHomeDependsOnActiveRole(t *testing.T) {
	api := &fakeAPI{}
	b := newBuilder(api)

	page := b.Build(context.Background(), Home, student(), "tok", selection.FromQuery(nil))
	if keys := sectionKeys(page); len(keys) != 3 || keys[2] != "spectators" {
		t.Fatalf("unexpected student sections %v", keys)
	}
	if len(page.Filters) != 1 {
		t.Fatalf("expected course filter only, got %d filters", len(page.Filters))
	}

	page = b.Build(context.Background(), Home, teacher(), "tok", selection.FromQuery(nil))
	if keys := sectionKeys(page); len(keys) != 3 || keys[2] != "classes" {
		t.Fatalf("unexpected teacher sections %v", keys)
	}
	if len(page.Filters) != 2 || page.Filters[1].Group != selection.GroupClass {
		t.Fatalf("expected class filter for teacher, got %+v", page.Filters)
	}
}

func TestAnonymousPageFetchesNothing(t *testing.T) {
	api := &fakeAPI{}
	page := newBuilder(api).Build(context.Background(), Files, nil, "", selection.FromQuery(nil))
	if !page.Anonymous || len(page.Filters) != 0 {
		t.Fatalf("unexpected anonymous page %+v", page)
	}
	if len(page.Sections) != 1 || !page.Sections[0].Empty() || page.Sections[0].EmptyLabel != "Log in to see your files" {
		t.Fatalf("unexpected anonymous sections %+v", page.Sections)
	}
	if len(api.calls) != 0 {
		t.Fatalf("anonymous page called the API: %v", api.calls)
	}
}

func TestSectionFailureBecomesProblem(t *testing.T) {
	api := &fakeAPI{failCalendar: true, courses: []model.CourseBrief{{ID: "c1", Name: "Algebra"}}}
	page := newBuilder(api).Build(context.Background(), Home, student(), "tok", selection.FromQuery(nil))
	if len(page.Problems) != 1 || page.Problems[0] != "Could not load calendar" {
		t.Fatalf("unexpected problems %v", page.Problems)
	}
	if page.Sections[0].Failed || len(page.Sections[0].Items) != 1 {
		t.Fatalf("courses section should be unaffected: %+v", page.Sections[0])
	}
}

func TestAPIProblemKeepsMessage(t *testing.T) {
	api := &fakeAPI{calendarErr: &apiclient.Error{Status: 403, Messages: []string{"Calendar is private"}}}
	page := newBuilder(api).Build(context.Background(), Calendar, student(), "tok", selection.FromQuery(nil))
	if len(page.Problems) != 1 || page.Problems[0] != "Could not load calendar: Calendar is private" {
		t.Fatalf("unexpected problems %v", page.Problems)
	}
}

func TestTeacherAssignmentsScopedToSelectedStudent(t *testing.T) {
	api := &fakeAPI{}
	sel := selection.FromQuery(url.Values{"course": {"c1"}, "student": {"s1"}})
	newBuilder(api).Build(context.Background(), Assignments, teacher(), "tok", sel)
	calls := api.called("assignments")
	if len(calls) != 1 || calls[0].CourseID != "c1" || calls[0].StudentID != "s1" {
		t.Fatalf("unexpected assignment filters %+v", calls)
	}

	api = &fakeAPI{}
	newBuilder(api).Build(context.Background(), Assignments, student(), "tok", sel)
	calls = api.called("assignments")
	if len(calls) != 1 || calls[0].StudentID != "" {
		t.Fatalf("student view must not pass a student filter: %+v", calls)
	}
}

func TestSearchFiltersCourseNames(t *testing.T) {
	api := &fakeAPI{courses: []model.CourseBrief{{ID: "c1", Name: "Algebra"}, {ID: "c2", Name: "Biology"}, {ID: "c3", Name: "Linear ALGEBRA"}}}
	sel := selection.FromQuery(url.Values{"q": {"algebra"}})
	page := newBuilder(api).Build(context.Background(), Search, student(), "tok", sel)
	items := page.Sections[0].Items
	if len(items) != 2 || items[0].ID != "c1" || items[1].ID != "c3" {
		t.Fatalf("unexpected search results %+v", items)
	}
	if calls := api.called("courses"); len(calls) != 1 || calls[0].Search != "algebra" {
		t.Fatalf("expected search query forwarded, got %+v", calls)
	}
}

func TestHomeCalendarKeepsUpcoming(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	api := &fakeAPI{events: []model.CalendarEvent{
		{ID: "past", Title: "Past", StartAt: now.Add(-3 * time.Hour), EndAt: now.Add(-2 * time.Hour)},
		{ID: "next", Title: "Next", StartAt: now.Add(time.Hour), EndAt: now.Add(2 * time.Hour)},
	}}
	b := newBuilder(api)
	b.now = func() time.Time { return now }
	page := b.Build(context.Background(), Home, student(), "tok", selection.FromQuery(nil))
	items := page.Sections[1].Items
	if len(items) != 1 || items[0].ID != "next" {
		t.Fatalf("unexpected calendar items %+v", items)
	}
}

func TestFileItemsLinkToDownload(t *testing.T) {
	page := newBuilder(&fakeAPI{}).Build(context.Background(), Files, student(), "tok", selection.FromQuery(nil))
	item := page.Sections[0].Items[0]
	if item.Href != "/files/f%201/download" || item.Subtitle != "2.0 KB" {
		t.Fatalf("unexpected file item %+v", item)
	}
}

func TestChatsSectionIsFixed(t *testing.T) {
	sel := selection.FromQuery(url.Values{"closed": {"chats"}})
	page := newBuilder(&fakeAPI{}).Build(context.Background(), Chats, teacher(), "tok", sel)
	s := page.Sections[0]
	if s.Collapsible || !s.Open || !s.Empty() || s.EmptyLabel != "No conversations" {
		t.Fatalf("unexpected chats section %+v", s)
	}
}

func TestHelpers(t *testing.T) {
	if plural(1, "question") != "1 question" || plural(3, "student") != "3 students" {
		t.Fatalf("unexpected plural")
	}
	if humanSize(512) != "512 B" || humanSize(5*1024*1024) != "5.0 MB" {
		t.Fatalf("unexpected sizes %s %s", humanSize(512), humanSize(5*1024*1024))
	}
}

func TestFilterListsShareSectionTimeout(t *testing.T) {
	api := &fakeAPI{slowStudents: true}
	b := NewBuilder(api, summary.NewLoader(50*time.Millisecond, nil))

	start := time.Now()
	page := b.Build(context.Background(), Assignments, teacher(), "tok", selection.FromQuery(nil))
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("slow filter held the page for %s", elapsed)
	}
	if len(page.Filters) != 2 || len(page.Filters[1].Options) != 0 {
		t.Fatalf("expected empty student filter, got %+v", page.Filters)
	}
	found := false
	for _, p := range page.Problems {
		if p == "Could not load students list" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected students list problem, got %v", page.Problems)
	}
	if keys := sectionKeys(page); len(keys) != 1 || page.Sections[0].Failed {
		t.Fatalf("sections should load despite the slow filter: %+v", page.Sections)
	}
}
