package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"todobridge/internal/session"
	"todobridge/internal/todoist"
)

type fakeTaskAPI struct {
	token string

	projects    []todoist.Project
	projectsErr error

	createID  string
	createErr error
	created   []todoist.Draft

	deleted   []string
	deleteErr error

	dueUpdates map[string]time.Time
	dueErr     error
}

func (f *fakeTaskAPI) Projects(ctx context.Context) ([]todoist.Project, error) {
	return f.projects, f.projectsErr
}

func (f *fakeTaskAPI) CreateTask(ctx context.Context, d todoist.Draft) (string, error) {
	f.created = append(f.created, d)
	return f.createID, f.createErr
}

func (f *fakeTaskAPI) DeleteTask(ctx context.Context, taskID string) error {
	f.deleted = append(f.deleted, taskID)
	return f.deleteErr
}

func (f *fakeTaskAPI) UpdateDue(ctx context.Context, taskID string, due time.Time) error {
	if f.dueUpdates == nil {
		f.dueUpdates = make(map[string]time.Time)
	}
	f.dueUpdates[taskID] = due
	return f.dueErr
}

// fakeContext implements the parts of tele.Context the handlers touch.
// Everything else panics through the embedded nil interface.
type fakeContext struct {
	tele.Context

	sender   *tele.User
	chat     *tele.Chat
	message  *tele.Message
	callback *tele.Callback

	values map[string]any
	sent   []string
	edited []string
}

func newFakeContext(userID int64, text string) *fakeContext {
	return &fakeContext{
		sender:  &tele.User{ID: userID},
		chat:    &tele.Chat{ID: userID},
		message: &tele.Message{Text: text, Unixtime: time.Now().Unix()},
	}
}

func (f *fakeContext) Update() tele.Update      { return tele.Update{} }
func (f *fakeContext) Sender() *tele.User       { return f.sender }
func (f *fakeContext) Chat() *tele.Chat         { return f.chat }
func (f *fakeContext) Message() *tele.Message   { return f.message }
func (f *fakeContext) Callback() *tele.Callback { return f.callback }

func (f *fakeContext) Text() string {
	if f.message == nil {
		return ""
	}
	if f.message.Text != "" {
		return f.message.Text
	}
	return f.message.Caption
}

func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	if s, ok := what.(string); ok {
		f.sent = append(f.sent, s)
	}
	return nil
}

func (f *fakeContext) Edit(what interface{}, opts ...interface{}) error {
	if s, ok := what.(string); ok {
		f.edited = append(f.edited, s)
	}
	return nil
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error { return nil }

func (f *fakeContext) Get(key string) any { return f.values[key] }

func (f *fakeContext) Set(key string, val any) {
	if f.values == nil {
		f.values = make(map[string]any)
	}
	f.values[key] = val
}

func newTestBot(api *fakeTaskAPI, adminID int64) (*Bot, *session.MemoryStore) {
	store := session.NewMemoryStore()
	b := New(Options{
		Store: store,
		NewAPI: func(token string) TaskAPI {
			api.token = token
			return api
		},
		AdminID: adminID,
	})
	return b, store
}

func mustPut(t *testing.T, store *session.MemoryStore, uid string, s session.Session) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), uid, s))
}

func mustGet(t *testing.T, store *session.MemoryStore, uid string) session.Session {
	t.Helper()
	s, err := store.Get(context.Background(), uid)
	require.NoError(t, err)
	return s
}

func TestStartNewUserAsksForToken(t *testing.T) {
	b, store := newTestBot(&fakeTaskAPI{}, 0)
	c := newFakeContext(1, "/start")

	require.NoError(t, b.Start(c))
	assert.Equal(t, []string{msgWelcomeNew}, c.sent)
	assert.Equal(t, session.ActionInsertToken, mustGet(t, store, "1").NextAction)
	assert.True(t, b.InProgress(1))
}

func TestStartReturningUser(t *testing.T) {
	b, store := newTestBot(&fakeTaskAPI{}, 0)
	mustPut(t, store, "1", session.Session{Token: "tok", NextAction: session.ActionNone})
	c := newFakeContext(1, "/start")

	require.NoError(t, b.Start(c))
	assert.Equal(t, []string{msgWelcomeBack}, c.sent)
	assert.False(t, b.InProgress(1))
}

func TestTokenAcceptedTriggersProjectChoice(t *testing.T) {
	api := &fakeTaskAPI{projects: []todoist.Project{{ID: "10", Name: "Inbox"}}}
	b, store := newTestBot(api, 0)
	mustPut(t, store, "1", session.Default())
	c := newFakeContext(1, "secret-token")

	require.NoError(t, b.ManagerHandler(c))

	got := mustGet(t, store, "1")
	assert.Equal(t, "secret-token", got.Token)
	assert.Equal(t, session.ActionUpdateProject, got.NextAction)
	assert.Equal(t, "secret-token", api.token)
	require.Len(t, c.sent, 2)
	assert.Equal(t, msgTokenAccepted, c.sent[0])
	assert.Equal(t, msgChooseProject, c.sent[1])
}

func TestTokenRejectedKeepsPendingStep(t *testing.T) {
	api := &fakeTaskAPI{projectsErr: todoist.ErrAuth}
	b, store := newTestBot(api, 0)
	mustPut(t, store, "1", session.Default())
	c := newFakeContext(1, "bad-token")

	require.NoError(t, b.ManagerHandler(c))
	assert.Equal(t, []string{msgTokenInvalid}, c.sent)

	got := mustGet(t, store, "1")
	assert.Empty(t, got.Token)
	assert.Equal(t, session.ActionInsertToken, got.NextAction)
}

func TestProjectChosen(t *testing.T) {
	b, store := newTestBot(&fakeTaskAPI{}, 0)
	mustPut(t, store, "1", session.Session{Token: "tok", NextAction: session.ActionUpdateProject})
	c := newFakeContext(1, "")
	c.callback = &tele.Callback{Data: "\fproject_pick|42"}

	require.NoError(t, b.ProjectChosen(c))
	assert.Equal(t, []string{msgProjectUpdated}, c.edited)

	got := mustGet(t, store, "1")
	assert.Equal(t, "42", got.ProjectID)
	assert.Equal(t, session.ActionNone, got.NextAction)
}

func TestProjectChosenIgnoresStaleButton(t *testing.T) {
	b, store := newTestBot(&fakeTaskAPI{}, 0)
	mustPut(t, store, "1", session.Session{Token: "tok", ProjectID: "10", NextAction: session.ActionNone})
	c := newFakeContext(1, "")
	c.callback = &tele.Callback{Data: "\fproject_pick|42"}

	require.NoError(t, b.ProjectChosen(c))
	assert.Empty(t, c.edited)
	assert.Equal(t, "10", mustGet(t, store, "1").ProjectID)
}

func TestToggleTimeFlipsPreference(t *testing.T) {
	b, store := newTestBot(&fakeTaskAPI{}, 0)
	mustPut(t, store, "1", session.Session{Token: "tok"})

	c := newFakeContext(1, "/toggle_time")
	require.NoError(t, b.ToggleTime(c))
	assert.True(t, mustGet(t, store, "1").Preference)
	assert.Equal(t, []string{msgTogglePrefix + msgToggleOnSuffix}, c.sent)

	c2 := newFakeContext(1, "/toggle_time")
	require.NoError(t, b.ToggleTime(c2))
	assert.False(t, mustGet(t, store, "1").Preference)
	assert.Equal(t, []string{msgTogglePrefix + "off"}, c2.sent)
}

func TestCreateTaskFromText(t *testing.T) {
	api := &fakeTaskAPI{createID: "777"}
	b, store := newTestBot(api, 0)
	mustPut(t, store, "1", session.Session{Token: "tok", ProjectID: "42"})
	c := newFakeContext(1, "Buy milk")

	require.NoError(t, b.OnMessage(c))
	assert.Equal(t, []string{msgTaskAdded}, c.sent)

	require.Len(t, api.created, 1)
	assert.Equal(t, "Buy milk", api.created[0].Content)
	assert.Equal(t, "42", api.created[0].ProjectID)
	assert.Nil(t, api.created[0].Due)
	assert.Equal(t, "777", mustGet(t, store, "1").LastTaskID)
}

func TestCreateTaskHonorsDuePreference(t *testing.T) {
	api := &fakeTaskAPI{createID: "777"}
	b, store := newTestBot(api, 0)
	mustPut(t, store, "1", session.Session{Token: "tok", Preference: true})
	c := newFakeContext(1, "Buy milk")

	require.NoError(t, b.OnMessage(c))
	require.Len(t, api.created, 1)
	require.NotNil(t, api.created[0].Due)
	assert.Equal(t, c.message.Time().Unix(), api.created[0].Due.Unix())
}

func TestCreateTaskFromPhoto(t *testing.T) {
	api := &fakeTaskAPI{createID: "777"}
	b, store := newTestBot(api, 0)
	mustPut(t, store, "1", session.Session{Token: "tok"})
	b.SetFileResolver(func(p *tele.Photo) (string, error) {
		return "https://files.example/" + p.FileID, nil
	})

	c := newFakeContext(1, "")
	c.message.Photo = &tele.Photo{File: tele.File{FileID: "abc"}}

	require.NoError(t, b.OnMessage(c))
	assert.Equal(t, []string{msgTaskAdded}, c.sent)

	require.Len(t, api.created, 1)
	assert.Equal(t, "Photo Task", api.created[0].Content)
	require.NotNil(t, api.created[0].Attachment)
	assert.Equal(t, "https://files.example/abc", api.created[0].Attachment.FileURL)
	assert.Equal(t, "image/png", api.created[0].Attachment.FileType)
}

func TestCreateTaskPhotoResolverFailure(t *testing.T) {
	api := &fakeTaskAPI{createID: "777"}
	b, store := newTestBot(api, 0)
	mustPut(t, store, "1", session.Session{Token: "tok"})

	c := newFakeContext(1, "")
	c.message.Photo = &tele.Photo{File: tele.File{FileID: "abc"}}
	c.message.Caption = "Receipt"

	require.NoError(t, b.OnMessage(c))
	assert.Equal(t, []string{msgTaskAddedNoFile}, c.sent)

	require.Len(t, api.created, 1)
	assert.Equal(t, "Receipt", api.created[0].Content)
	assert.Nil(t, api.created[0].Attachment)
	assert.Equal(t, "777", mustGet(t, store, "1").LastTaskID)
}

func TestCreateTaskFailure(t *testing.T) {
	api := &fakeTaskAPI{createErr: todoist.ErrTaskCreation}
	b, store := newTestBot(api, 0)
	mustPut(t, store, "1", session.Session{Token: "tok"})
	c := newFakeContext(1, "Buy milk")

	require.NoError(t, b.OnMessage(c))
	assert.Equal(t, []string{msgTaskFailed}, c.sent)
	assert.Empty(t, mustGet(t, store, "1").LastTaskID)
}

func TestReplyUpdatesDueTime(t *testing.T) {
	api := &fakeTaskAPI{}
	b, store := newTestBot(api, 0)
	mustPut(t, store, "1", session.Session{Token: "tok", LastTaskID: "777"})

	c := newFakeContext(1, "tomorrow at 10:00")
	c.message.ReplyTo = &tele.Message{Text: "Task added."}

	require.NoError(t, b.OnMessage(c))
	assert.Equal(t, []string{msgDueUpdated}, c.sent)

	due, ok := api.dueUpdates["777"]
	require.True(t, ok)
	assert.Equal(t, 10, due.Hour())
}

func TestReplyWithUnparseableTime(t *testing.T) {
	api := &fakeTaskAPI{}
	b, store := newTestBot(api, 0)
	mustPut(t, store, "1", session.Session{Token: "tok", LastTaskID: "777"})

	c := newFakeContext(1, "no time in here")
	c.message.ReplyTo = &tele.Message{Text: "Task added."}

	require.NoError(t, b.OnMessage(c))
	assert.Equal(t, []string{msgDueUpdateFailed}, c.sent)
	assert.Empty(t, api.dueUpdates)
}

func TestUndoDeletesLastTaskOnce(t *testing.T) {
	api := &fakeTaskAPI{}
	b, store := newTestBot(api, 0)
	mustPut(t, store, "1", session.Session{Token: "tok", LastTaskID: "777"})

	c := newFakeContext(1, "/undo")
	require.NoError(t, b.Undo(c))
	assert.Equal(t, []string{msgUndoDone}, c.sent)
	assert.Equal(t, []string{"777"}, api.deleted)
	assert.Empty(t, mustGet(t, store, "1").LastTaskID)

	c2 := newFakeContext(1, "/undo")
	require.NoError(t, b.Undo(c2))
	assert.Equal(t, []string{msgNothingToUndo}, c2.sent)
	assert.Equal(t, []string{"777"}, api.deleted)
}

func TestUndoTreatsMissingTaskAsDone(t *testing.T) {
	api := &fakeTaskAPI{deleteErr: todoist.ErrNotFound}
	b, store := newTestBot(api, 0)
	mustPut(t, store, "1", session.Session{Token: "tok", LastTaskID: "777"})

	c := newFakeContext(1, "/undo")
	require.NoError(t, b.Undo(c))
	assert.Equal(t, []string{msgUndoDone}, c.sent)
	assert.Empty(t, mustGet(t, store, "1").LastTaskID)
}

func TestUndoCancelsPendingProjectSelection(t *testing.T) {
	b, store := newTestBot(&fakeTaskAPI{}, 0)
	mustPut(t, store, "1", session.Session{
		Token:      "tok",
		ProjectID:  "10",
		NextAction: session.ActionUpdateProject,
	})

	c := newFakeContext(1, "/undo")
	require.NoError(t, b.Undo(c))
	assert.Equal(t, []string{msgUndoCancelled}, c.sent)

	got := mustGet(t, store, "1")
	assert.Equal(t, session.ActionNone, got.NextAction)
	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, "10", got.ProjectID)
}

func TestUndoDuringOnboardingDiscardsToken(t *testing.T) {
	b, store := newTestBot(&fakeTaskAPI{}, 0)
	mustPut(t, store, "1", session.Session{
		Token:      "tok",
		NextAction: session.ActionUpdateProject,
	})

	c := newFakeContext(1, "/undo")
	require.NoError(t, b.Undo(c))
	assert.Equal(t, []string{msgUndoCancelled}, c.sent)

	got := mustGet(t, store, "1")
	assert.Empty(t, got.Token)
	assert.Equal(t, session.ActionNone, got.NextAction)
}

func TestChangeTokenResetsFlow(t *testing.T) {
	b, store := newTestBot(&fakeTaskAPI{}, 0)
	mustPut(t, store, "1", session.Session{Token: "tok", ProjectID: "10"})

	c := newFakeContext(1, "/change_token")
	require.NoError(t, b.ChangeToken(c))
	assert.Equal(t, []string{msgChangeToken}, c.sent)

	got := mustGet(t, store, "1")
	assert.Empty(t, got.Token)
	assert.Equal(t, session.ActionInsertToken, got.NextAction)
	assert.Equal(t, "10", got.ProjectID)
	assert.True(t, b.InProgress(1))
}

func TestHelpReflectsPreference(t *testing.T) {
	b, store := newTestBot(&fakeTaskAPI{}, 0)
	mustPut(t, store, "1", session.Session{Token: "tok", Preference: true})

	c := newFakeContext(1, "/help")
	require.NoError(t, b.Help(c))
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "On → Off")
}

func TestUnauthenticatedMessageRestartsOnboarding(t *testing.T) {
	b, store := newTestBot(&fakeTaskAPI{}, 0)
	mustPut(t, store, "1", session.Session{NextAction: session.ActionNone})

	c := newFakeContext(1, "Buy milk")
	require.NoError(t, b.OnMessage(c))
	assert.Equal(t, []string{msgWelcomeNew}, c.sent)
	assert.Equal(t, session.ActionInsertToken, mustGet(t, store, "1").NextAction)
}

func TestAdminGetData(t *testing.T) {
	b, store := newTestBot(&fakeTaskAPI{}, 99)
	mustPut(t, store, "1", session.Session{Token: "tok"})

	c := newFakeContext(99, "!get_data")
	require.NoError(t, b.OnMessage(c))
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], `"token": "tok"`)
}

func TestAdminSetData(t *testing.T) {
	api := &fakeTaskAPI{}
	b, store := newTestBot(api, 99)

	c := newFakeContext(99, `!set_data {"5": {"token": "tok", "project": "10", "next_action": ""}}`)
	require.NoError(t, b.OnMessage(c))
	require.Len(t, c.sent, 1)
	assert.Equal(t, "Session data replaced.", c.sent[0])

	got := mustGet(t, store, "5")
	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, "10", got.ProjectID)
	assert.Equal(t, session.ActionNone, got.NextAction)
}

func TestAdminSetDataMalformed(t *testing.T) {
	b, store := newTestBot(&fakeTaskAPI{}, 99)
	mustPut(t, store, "1", session.Session{Token: "keep"})

	c := newFakeContext(99, "!set_data {not json")
	require.NoError(t, b.OnMessage(c))
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], msgDecodeFailPrefix)
	assert.Equal(t, "keep", mustGet(t, store, "1").Token)
}

func TestAdminCommandsIgnoredForOthers(t *testing.T) {
	api := &fakeTaskAPI{createID: "777"}
	b, store := newTestBot(api, 99)
	mustPut(t, store, "1", session.Session{Token: "tok"})

	c := newFakeContext(1, "!get_data")
	require.NoError(t, b.OnMessage(c))
	// Treated as a plain message and forwarded as a task.
	assert.Equal(t, []string{msgTaskAdded}, c.sent)
	require.Len(t, api.created, 1)
	assert.Equal(t, "!get_data", api.created[0].Content)
}

func TestForwardedMessageKeepsOriginAsDescription(t *testing.T) {
	api := &fakeTaskAPI{createID: "777"}
	b, store := newTestBot(api, 0)
	mustPut(t, store, "1", session.Session{Token: "tok"})

	c := newFakeContext(1, "Call me back")
	c.message.OriginalSender = &tele.User{FirstName: "Ada", LastName: "Lovelace"}

	require.NoError(t, b.OnMessage(c))
	require.Len(t, api.created, 1)
	assert.Equal(t, "Ada Lovelace", api.created[0].Description)
}
