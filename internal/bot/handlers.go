package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"todobridge/core/logger"
	tg "todobridge/core/telegram"
	"todobridge/core/telegram/callbacks"
	"todobridge/core/telegram/commands"
	tghelpers "todobridge/core/telegram/helpers"
	"todobridge/core/telegram/keyboard"
	"todobridge/internal/session"
	"todobridge/internal/todoist"
)

const cbProjectPick = "project_pick"

// Register wires all commands, callbacks, and the text fallback into the
// registry.
func (b *Bot) Register(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{Handler: b.Start, Description: "Start the bot"})
	reg.RegisterCommand("/set_project", commands.Command{Handler: b.SetProject, Description: "Choose project to forward to"})
	reg.RegisterCommand("/toggle_time", commands.Command{Handler: b.ToggleTime, Description: "Toggle due time from message time"})
	reg.RegisterCommand("/undo", commands.Command{Handler: b.Undo, Description: "Cancel last task"})
	reg.RegisterCommand("/change_token", commands.Command{Handler: b.ChangeToken, Description: "Change API token"})
	reg.RegisterCommand("/help", commands.Command{Handler: b.Help, Description: "List of commands"})
	_ = reg.RegisterCallback(cbProjectPick, b.ProjectChosen)
	reg.SetTextFallback(b.OnMessage)
}

// Start greets the user and prompts for a token when none is stored.
func (b *Bot) Start(c tele.Context) error {
	uid := userID(c)
	unlock := b.lockUser(uid)
	defer unlock()
	return b.startLocked(c, uid)
}

func (b *Bot) startLocked(c tele.Context, uid string) error {
	ctx, cancel := b.reqCtx(c)
	defer cancel()

	s, err := b.store.Get(ctx, uid)
	if err != nil {
		return b.storeFailure(c, ctx, err)
	}
	if s.Authenticated() && s.NextAction != session.ActionInsertToken {
		return tghelpers.SendText(c, msgWelcomeBack)
	}

	s.NextAction = session.ActionInsertToken
	if err := b.store.Put(ctx, uid, s); err != nil {
		return b.storeFailure(c, ctx, err)
	}
	return tghelpers.SendText(c, msgWelcomeNew)
}

// SetProject lists the user's projects as an inline keyboard.
func (b *Bot) SetProject(c tele.Context) error {
	uid := userID(c)
	unlock := b.lockUser(uid)
	defer unlock()
	return b.setProjectLocked(c, uid)
}

func (b *Bot) setProjectLocked(c tele.Context, uid string) error {
	ctx, cancel := b.reqCtx(c)
	defer cancel()

	s, err := b.store.Get(ctx, uid)
	if err != nil {
		return b.storeFailure(c, ctx, err)
	}
	if !s.Authenticated() || s.NextAction == session.ActionInsertToken {
		return b.startLocked(c, uid)
	}

	projects, err := b.api(uid, s.Token).Projects(ctx)
	if err != nil {
		logger.Warn(ctx, "bot", "projects.list",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, msgProjectsFailed)
	}
	if len(projects) == 0 {
		return tghelpers.SendText(c, msgNoProjects)
	}

	btns := make([]keyboard.InlineBtn, 0, len(projects))
	for _, p := range projects {
		btns = append(btns, keyboard.InlineBtn{Text: p.Name, Unique: cbProjectPick, Data: p.ID})
	}
	markup := keyboard.InlineButtons(btns)

	s.NextAction = session.ActionUpdateProject
	if err := b.store.Put(ctx, uid, s); err != nil {
		return b.storeFailure(c, ctx, err)
	}
	return tghelpers.SendText(c, msgChooseProject, &tele.SendOptions{ReplyMarkup: markup})
}

// ProjectChosen applies an inline keyboard selection.
func (b *Bot) ProjectChosen(c tele.Context) error {
	uid := userID(c)
	unlock := b.lockUser(uid)
	defer unlock()

	ctx, cancel := b.reqCtx(c)
	defer cancel()

	s, err := b.store.Get(ctx, uid)
	if err != nil {
		return b.storeFailure(c, ctx, err)
	}
	if s.NextAction != session.ActionUpdateProject {
		// Stale button from an earlier keyboard.
		return nil
	}
	projectID := callbacks.CallbackPayload(c)
	if projectID == "" {
		return nil
	}

	s.ProjectID = projectID
	s.NextAction = session.ActionNone
	if err := b.store.Put(ctx, uid, s); err != nil {
		return b.storeFailure(c, ctx, err)
	}
	logger.Info(ctx, "bot", "project.set",
		slog.String("status", "ok"),
		slog.String("project_id", projectID),
	)
	return c.Edit(msgProjectUpdated)
}

// ToggleTime flips the due-date preference.
func (b *Bot) ToggleTime(c tele.Context) error {
	uid := userID(c)
	unlock := b.lockUser(uid)
	defer unlock()

	ctx, cancel := b.reqCtx(c)
	defer cancel()

	s, err := b.store.Get(ctx, uid)
	if err != nil {
		return b.storeFailure(c, ctx, err)
	}
	s.Preference = !s.Preference
	if err := b.store.Put(ctx, uid, s); err != nil {
		return b.storeFailure(c, ctx, err)
	}

	mode := "off"
	if s.Preference {
		mode = msgToggleOnSuffix
	}
	return tghelpers.SendText(c, msgTogglePrefix+mode)
}

// ChangeToken clears the stored token and prompts for a new one.
func (b *Bot) ChangeToken(c tele.Context) error {
	uid := userID(c)
	unlock := b.lockUser(uid)
	defer unlock()

	ctx, cancel := b.reqCtx(c)
	defer cancel()

	s, err := b.store.Get(ctx, uid)
	if err != nil {
		return b.storeFailure(c, ctx, err)
	}
	s.Token = ""
	s.NextAction = session.ActionInsertToken
	b.dropAPI(uid)
	if err := b.store.Put(ctx, uid, s); err != nil {
		return b.storeFailure(c, ctx, err)
	}
	return tghelpers.SendText(c, msgChangeToken)
}

// Undo reverts the most recent user-visible step: a pending step is
// cancelled first; otherwise the last created task is deleted.
func (b *Bot) Undo(c tele.Context) error {
	uid := userID(c)
	unlock := b.lockUser(uid)
	defer unlock()

	ctx, cancel := b.reqCtx(c)
	defer cancel()

	s, err := b.store.Get(ctx, uid)
	if err != nil {
		return b.storeFailure(c, ctx, err)
	}

	switch {
	case s.NextAction != session.ActionNone:
		// Cancelling the onboarding chain also discards the just-entered
		// token; cancelling a plain re-selection keeps the token.
		if s.NextAction == session.ActionInsertToken ||
			(s.NextAction == session.ActionUpdateProject && s.ProjectID == "") {
			s.Token = ""
			b.dropAPI(uid)
		}
		s.NextAction = session.ActionNone
		if err := b.store.Put(ctx, uid, s); err != nil {
			return b.storeFailure(c, ctx, err)
		}
		return tghelpers.SendText(c, msgUndoCancelled)

	case s.LastTaskID != "" && s.Authenticated():
		err := b.api(uid, s.Token).DeleteTask(ctx, s.LastTaskID)
		if err != nil && !errors.Is(err, todoist.ErrNotFound) {
			logger.Warn(ctx, "bot", "task.delete",
				slog.String("status", "fail"),
				slog.String("task_id", s.LastTaskID),
				slog.String("err", err.Error()),
			)
			return tghelpers.SendText(c, msgUndoFailed)
		}
		s.LastTaskID = ""
		if err := b.store.Put(ctx, uid, s); err != nil {
			return b.storeFailure(c, ctx, err)
		}
		return tghelpers.SendText(c, msgUndoDone)

	default:
		return tghelpers.SendText(c, msgNothingToUndo)
	}
}

// Help lists the commands, reflecting the current due-date preference.
func (b *Bot) Help(c tele.Context) error {
	uid := userID(c)
	unlock := b.lockUser(uid)
	defer unlock()

	ctx, cancel := b.reqCtx(c)
	defer cancel()

	s, err := b.store.Get(ctx, uid)
	if err != nil {
		return b.storeFailure(c, ctx, err)
	}
	return tghelpers.SendText(c, helpText(s.Preference))
}

// ManagerHandler consumes a message while a token entry is pending. It is
// invoked by the message router for users with an in-progress step.
func (b *Bot) ManagerHandler(c tele.Context) error {
	uid := userID(c)
	unlock := b.lockUser(uid)
	defer unlock()

	ctx, cancel := b.reqCtx(c)
	defer cancel()

	if handled, err := b.handleAdminLocked(c, ctx, c.Text()); handled {
		return err
	}
	return b.handleTokenLocked(c, ctx, uid)
}

func (b *Bot) handleTokenLocked(c tele.Context, ctx context.Context, uid string) error {
	token := strings.TrimSpace(c.Text())
	if token == "" {
		return tghelpers.SendText(c, msgTokenInvalid)
	}

	// Single validation attempt; any failure (bad credential or transport)
	// reads as invalid and the user retries by resending the token.
	api := b.newAPI(token)
	if _, err := api.Projects(ctx); err != nil {
		logger.Warn(ctx, "bot", "token.validate",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, msgTokenInvalid)
	}

	s, err := b.store.Get(ctx, uid)
	if err != nil {
		return b.storeFailure(c, ctx, err)
	}
	s.Token = token
	s.NextAction = session.ActionNone
	if err := b.store.Put(ctx, uid, s); err != nil {
		return b.storeFailure(c, ctx, err)
	}
	b.bindAPI(uid, token, api)
	logger.Info(ctx, "bot", "token.set", slog.String("status", "ok"))

	if err := tghelpers.SendText(c, msgTokenAccepted); err != nil {
		return err
	}
	return b.setProjectLocked(c, uid)
}

// OnMessage handles free-form messages: reply-based due-time updates and
// task creation.
func (b *Bot) OnMessage(c tele.Context) error {
	uid := userID(c)
	unlock := b.lockUser(uid)
	defer unlock()

	ctx, cancel := b.reqCtx(c)
	defer cancel()

	if handled, err := b.handleAdminLocked(c, ctx, c.Text()); handled {
		return err
	}

	s, err := b.store.Get(ctx, uid)
	if err != nil {
		return b.storeFailure(c, ctx, err)
	}
	if !s.Authenticated() || s.NextAction == session.ActionInsertToken {
		// The session was reset between routing and handling; restart
		// onboarding instead of dropping the message.
		return b.startLocked(c, uid)
	}

	m := c.Message()
	if m == nil {
		return nil
	}

	if m.ReplyTo != nil && s.LastTaskID != "" {
		return b.updateDueLocked(c, ctx, uid, s)
	}
	return b.createTaskLocked(c, ctx, uid, s)
}

func (b *Bot) updateDueLocked(c tele.Context, ctx context.Context, uid string, s session.Session) error {
	due, ok := parseDueTime(c.Text(), time.Now())
	if !ok {
		return tghelpers.SendText(c, msgDueUpdateFailed)
	}
	if err := b.api(uid, s.Token).UpdateDue(ctx, s.LastTaskID, due); err != nil {
		logger.Warn(ctx, "bot", "task.update_due",
			slog.String("status", "fail"),
			slog.String("task_id", s.LastTaskID),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, msgDueUpdateFailed)
	}
	return tghelpers.SendText(c, msgDueUpdated)
}

func (b *Bot) createTaskLocked(c tele.Context, ctx context.Context, uid string, s session.Session) error {
	draft, attachBroken := b.buildDraft(ctx, c.Message(), s)
	if draft.Content == "" {
		return tghelpers.SendText(c, msgTaskFailed)
	}

	taskID, err := b.api(uid, s.Token).CreateTask(ctx, draft)
	switch {
	case err == nil, errors.Is(err, todoist.ErrAttachmentUpload) && taskID != "":
		if err != nil {
			attachBroken = true
			logger.Warn(ctx, "bot", "task.attach",
				slog.String("status", "fail"),
				slog.String("task_id", taskID),
				slog.String("err", err.Error()),
			)
		}
		s.LastTaskID = taskID
		if err := b.store.Put(ctx, uid, s); err != nil {
			return b.storeFailure(c, ctx, err)
		}
		if attachBroken {
			return tghelpers.SendText(c, msgTaskAddedNoFile)
		}
		return tghelpers.SendText(c, msgTaskAdded)

	default:
		logger.Warn(ctx, "bot", "task.create",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, msgTaskFailed)
	}
}

// buildDraft derives the task draft from the message: caption or text as
// content, forwarder's display name as description, message timestamp as due
// time when the preference is on, and the photo as attachment.
func (b *Bot) buildDraft(ctx context.Context, m *tele.Message, s session.Session) (todoist.Draft, bool) {
	d := todoist.Draft{
		ProjectID:   s.ProjectID,
		Description: forwardOrigin(m),
	}
	attachBroken := false

	if m.Photo != nil {
		d.Content = m.Caption
		if d.Content == "" {
			d.Content = "Photo Task"
		}
		resolve := b.fileResolver()
		if resolve == nil {
			attachBroken = true
		} else if url, err := resolve(m.Photo); err != nil {
			attachBroken = true
			logger.Warn(ctx, "bot", "photo.resolve",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		} else {
			d.Attachment = &todoist.Attachment{FileURL: url, FileType: "image/png"}
		}
	} else {
		d.Content = m.Text
	}

	if s.Preference {
		due := m.Time()
		d.Due = &due
	}
	return d, attachBroken
}

func forwardOrigin(m *tele.Message) string {
	if m.OriginalSender != nil {
		return strings.TrimSpace(m.OriginalSender.FirstName + " " + m.OriginalSender.LastName)
	}
	return m.OriginalSenderName
}

// storeFailure reports a persistence error: the event is dropped, the user
// gets one reply, and the error is surfaced for operational alerting.
func (b *Bot) storeFailure(c tele.Context, ctx context.Context, err error) error {
	logger.Error(ctx, "bot", "store.write",
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
	)
	_ = tghelpers.SendText(c, msgInternalError)
	return err
}
