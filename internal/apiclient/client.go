package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"semaphore/portal/internal/metrics"
	"semaphore/portal/internal/model"
)

const securityBase = "/api/security"

// Error is a non-2xx answer from the API. The API reports problems as a JSON
// array of strings; they are surfaced as one message.
type Error struct {
	Status   int
	Messages []string
}

func (e *Error) Error() string {
	if len(e.Messages) == 0 {
		return http.StatusText(e.Status)
	}
	return strings.Join(e.Messages, ", ")
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}

// Auth

type RegisterRequest struct {
	Name     string   `json:"name"`
	Surname  string   `json:"surname"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.do(ctx, "register", http.MethodPost, securityBase+"/register", "", nil, req, nil)
}

func (c *Client) Login(ctx context.Context, email, password string) (model.Tokens, error) {
	var tokens model.Tokens
	err := c.do(ctx, "login", http.MethodPost, securityBase+"/login", "", nil, loginRequest{Email: email, Password: password}, &tokens)
	if err != nil {
		return model.Tokens{}, err
	}
	if tokens.AccessToken == "" {
		return model.Tokens{}, errors.New("login response without access token")
	}
	return tokens, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (model.Tokens, error) {
	query := url.Values{}
	query.Set("refreshToken", refreshToken)
	var tokens model.Tokens
	if err := c.do(ctx, "refresh", http.MethodPost, securityBase+"/refresh", "", query, nil, &tokens); err != nil {
		return model.Tokens{}, err
	}
	if tokens.AccessToken == "" {
		return model.Tokens{}, errors.New("refresh response without access token")
	}
	return tokens, nil
}

// Collections

type Filter struct {
	CourseID     string
	StudentID    string
	ClassID      string
	AssignmentID string
	Search       string
}

func (f Filter) values() url.Values {
	query := url.Values{}
	set := func(key, value string) {
		if value != "" {
			query.Set(key, value)
		}
	}
	set("courseId", f.CourseID)
	set("studentId", f.StudentID)
	set("classId", f.ClassID)
	set("assignmentId", f.AssignmentID)
	set("search", f.Search)
	return query
}

func (c *Client) Courses(ctx context.Context, token string, f Filter) ([]model.CourseBrief, error) {
	return list[model.CourseBrief](ctx, c, "courses", "/api/courses", token, f)
}

func (c *Client) Classes(ctx context.Context, token string, f Filter) ([]model.ClassBrief, error) {
	return list[model.ClassBrief](ctx, c, "classes", "/api/classes", token, f)
}

func (c *Client) Students(ctx context.Context, token string, f Filter) ([]model.StudentBrief, error) {
	return list[model.StudentBrief](ctx, c, "students", "/api/students", token, f)
}

func (c *Client) Assignments(ctx context.Context, token string, f Filter) ([]model.AssignmentBrief, error) {
	return list[model.AssignmentBrief](ctx, c, "assignments", "/api/assignments", token, f)
}

func (c *Client) Exercises(ctx context.Context, token string, f Filter) ([]model.ExerciseBrief, error) {
	return list[model.ExerciseBrief](ctx, c, "exercises", "/api/exercises", token, f)
}

func (c *Client) Quizzes(ctx context.Context, token string, f Filter) ([]model.QuizBrief, error) {
	return list[model.QuizBrief](ctx, c, "quizzes", "/api/quizzes", token, f)
}

func (c *Client) Files(ctx context.Context, token string, f Filter) ([]model.FileBrief, error) {
	return list[model.FileBrief](ctx, c, "files", "/api/files", token, f)
}

func (c *Client) Spectators(ctx context.Context, token string, f Filter) ([]model.SpectatorBrief, error) {
	return list[model.SpectatorBrief](ctx, c, "spectators", "/api/spectators", token, f)
}

func (c *Client) Calendar(ctx context.Context, token string, f Filter) ([]model.CalendarEvent, error) {
	return list[model.CalendarEvent](ctx, c, "calendar", "/api/calendar", token, f)
}

func (c *Client) Chats(ctx context.Context, token string, f Filter) ([]model.ChatBrief, error) {
	return list[model.ChatBrief](ctx, c, "chats", "/api/chats", token, f)
}

func list[T any](ctx context.Context, c *Client, endpoint, path, token string, f Filter) ([]T, error) {
	var out []T
	if err := c.do(ctx, endpoint, http.MethodGet, path, token, f.values(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FileDownloadURL(fileID string) string {
	return c.baseURL + "/api/files/" + url.PathEscape(fileID) + "/download"
}

// Transport

func (c *Client) do(ctx context.Context, endpoint, method, path, token string, query url.Values, body, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		metrics.APIRequests.WithLabelValues(endpoint, metrics.Outcome(err)).Inc()
		metrics.APIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "encoding %s request", endpoint)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return errors.Wrapf(err, "building %s request", endpoint)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "calling %s", endpoint)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "reading %s response", endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "decoding %s response", endpoint)
	}
	return nil
}

func decodeError(status int, raw []byte) *Error {
	apiErr := &Error{Status: status}
	var messages []string
	if err := json.Unmarshal(raw, &messages); err == nil {
		for _, msg := range messages {
			if msg = strings.TrimSpace(msg); msg != "" {
				apiErr.Messages = append(apiErr.Messages, msg)
			}
		}
		return apiErr
	}
	var single struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &single); err == nil {
		if single.Message != "" {
			apiErr.Messages = []string{single.Message}
		} else if single.Error != "" {
			apiErr.Messages = []string{single.Error}
		}
	}
	return apiErr
}
