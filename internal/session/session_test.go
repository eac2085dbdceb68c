package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalMissingNextActionDefaults(t *testing.T) {
	var s Session
	require.NoError(t, json.Unmarshal([]byte(`{"token":"abc","project":"42"}`), &s))
	assert.Equal(t, ActionInsertToken, s.NextAction)
	assert.Equal(t, "abc", s.Token)
	assert.Equal(t, "42", s.ProjectID)
}

func TestUnmarshalExplicitEmptyNextAction(t *testing.T) {
	var s Session
	require.NoError(t, json.Unmarshal([]byte(`{"token":"abc","next_action":""}`), &s))
	assert.Equal(t, ActionNone, s.NextAction)
}

func TestWireFormatKeys(t *testing.T) {
	data := map[string]Session{
		"12345": {
			Token:      "tok",
			ProjectID:  "99",
			Preference: true,
			NextAction: ActionUpdateProject,
			LastTaskID: "7",
		},
	}
	raw, err := json.Marshal(data)
	require.NoError(t, err)

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	user := decoded["12345"]
	assert.Equal(t, "tok", user["token"])
	assert.Equal(t, "99", user["project"])
	assert.Equal(t, true, user["preference"])
	assert.Equal(t, "UPDATE_PROJECT", user["next_action"])
	assert.Equal(t, "7", user["task_id"])
}

func TestWireFormatOmitsEmptyOptionalKeys(t *testing.T) {
	raw, err := json.Marshal(Session{NextAction: ActionInsertToken})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, map[string]any{"next_action": "INSERT_TOKEN"}, decoded)
}

func TestActionValid(t *testing.T) {
	assert.True(t, ActionNone.Valid())
	assert.True(t, ActionInsertToken.Valid())
	assert.True(t, ActionUpdateProject.Valid())
	assert.False(t, Action("DELETE_EVERYTHING").Valid())
}

func TestDefaultSession(t *testing.T) {
	s := Default()
	assert.False(t, s.Authenticated())
	assert.Equal(t, ActionInsertToken, s.NextAction)
}
