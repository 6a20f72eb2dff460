package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleTeacher:
		return RoleTeacher, true
	default:
		return "", false
	}
}

type User struct {
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	Email      string `json:"email,omitempty"`
	Roles      []Role `json:"roles"`
	ActiveRole Role   `json:"activeRole"`
}

func (u *User) HasRole(role Role) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) IsStudent() bool { return u.HasRole(RoleStudent) }
func (u *User) IsTeacher() bool { return u.HasRole(RoleTeacher) }

// ActingAs reports the active role; role membership alone does not count.
func (u *User) ActingAs(role Role) bool {
	return u != nil && u.ActiveRole == role
}

func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.Name + " " + u.Surname)
}

// ChooseActiveRole picks the preferred role when the user holds it, else the first role.
func (u *User) ChooseActiveRole(preferred Role, ok bool) {
	if u == nil {
		return
	}
	if ok && u.HasRole(preferred) {
		u.ActiveRole = preferred
		return
	}
	if len(u.Roles) > 0 {
		u.ActiveRole = u.Roles[0]
		return
	}
	u.ActiveRole = ""
}

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Briefs

type CourseBrief struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Teacher string `json:"teacher,omitempty"`
	Color   string `json:"color,omitempty"`
}

type ClassBrief struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Students int    `json:"students"`
}

type StudentBrief struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
}

type AssignmentBrief struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	CourseID string    `json:"courseId"`
	DueAt    time.Time `json:"dueAt"`
	Done     bool      `json:"done"`
}

type ExerciseBrief struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CourseID     string `json:"courseId"`
	AssignmentID string `json:"assignmentId,omitempty"`
}

type QuizBrief struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CourseID  string `json:"courseId"`
	Questions int    `json:"questions"`
}

type FileBrief struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	CourseID string    `json:"courseId"`
	Size     int64     `json:"size"`
	Uploaded time.Time `json:"uploadedAt"`
}

type SpectatorBrief struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
}

type CalendarEvent struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	CourseID string    `json:"courseId,omitempty"`
	StartAt  time.Time `json:"startAt"`
	EndAt    time.Time `json:"endAt"`
}

type ChatBrief struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	LastMessage string    `json:"lastMessage,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
