// Package session holds per-user conversational state and its persistence.
package session

import "encoding/json"

// Action names the step a user is expected to complete next. The zero value
// means no step is pending. String values match the persisted wire format.
type Action string

const (
	// ActionNone means the next message is treated as a task to forward.
	ActionNone Action = ""
	// ActionInsertToken means the next message is treated as an API token.
	ActionInsertToken Action = "INSERT_TOKEN"
	// ActionUpdateProject means a project selection callback is expected.
	ActionUpdateProject Action = "UPDATE_PROJECT"
)

// Valid reports whether a is a known action value.
func (a Action) Valid() bool {
	switch a {
	case ActionNone, ActionInsertToken, ActionUpdateProject:
		return true
	}
	return false
}

// Session is the per-user state record. The JSON tags define the persisted
// wire format: a flat object per user id with optional keys.
type Session struct {
	Token      string `json:"token,omitempty" db:"token"`
	ProjectID  string `json:"project,omitempty" db:"project"`
	Preference bool   `json:"preference,omitempty" db:"preference"`
	NextAction Action `json:"next_action" db:"next_action"`
	LastTaskID string `json:"task_id,omitempty" db:"task_id"`
}

// Default returns the session implied for a user we have never seen:
// unauthenticated and awaiting a token.
func Default() Session {
	return Session{NextAction: ActionInsertToken}
}

// Authenticated reports whether the user has supplied an API token.
func (s Session) Authenticated() bool { return s.Token != "" }

// UnmarshalJSON defaults a missing next_action key to INSERT_TOKEN while
// keeping an explicit empty string as "no pending step". Records written by
// older deployments may omit the key entirely.
func (s *Session) UnmarshalJSON(data []byte) error {
	type alias Session
	aux := struct {
		*alias
		NextAction *Action `json:"next_action"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.NextAction == nil {
		s.NextAction = ActionInsertToken
	} else {
		s.NextAction = *aux.NextAction
	}
	return nil
}
