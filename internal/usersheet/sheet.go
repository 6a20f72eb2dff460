// Package usersheet holds the slide-over user panel: which of its three views
// is shown and whether it is open.
package usersheet

type State string

const (
	StateLogin    State = "login"
	StateRegister State = "register"
	StateLoggedIn State = "logged_in"
)

type Event string

const (
	EventShowRegister Event = "show_register"
	EventCancel       Event = "cancel"
	EventRegistered   Event = "registered"
	EventLoggedIn     Event = "logged_in"
	EventLoggedOut    Event = "logged_out"
)

// Resolve is the state to render. A signed-in user always sees the profile view,
// whatever the stored local state says; without one the profile view is not reachable.
func Resolve(state State, hasUser bool) State {
	if hasUser {
		return StateLoggedIn
	}
	switch state {
	case StateRegister:
		return StateRegister
	default:
		return StateLogin
	}
}

// Next applies an event. Events that do not apply to the current state leave it unchanged.
func Next(state State, event Event) State {
	switch event {
	case EventLoggedIn:
		return StateLoggedIn
	case EventShowRegister:
		if state == StateLogin || state == "" {
			return StateRegister
		}
	case EventCancel, EventRegistered:
		if state == StateRegister {
			return StateLogin
		}
	case EventLoggedOut:
		if state == StateLoggedIn {
			return StateLogin
		}
	}
	if state == "" {
		return StateLogin
	}
	return state
}

type Sheet struct {
	State State `json:"state"`
	Open  bool  `json:"open"`

	// Email prefills the login and register forms.
	Email string `json:"email,omitempty"`
}

func (s *Sheet) Apply(event Event) {
	s.State = Next(s.State, event)
}

func (s *Sheet) View(hasUser bool) State {
	return Resolve(s.State, hasUser)
}

// Reset puts the sheet back on the login view, as after a logout.
func (s *Sheet) Reset() {
	s.State = StateLogin
	s.Email = ""
}
