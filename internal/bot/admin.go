package bot

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"todobridge/core/logger"
	tghelpers "todobridge/core/telegram/helpers"
	"todobridge/internal/session"
)

const (
	adminGetData = "!get_data"
	adminSetData = "!set_data"
)

// handleAdminLocked intercepts the debug commands. Only the configured admin
// may use them; for everyone else the message falls through to the normal
// flow as plain text.
func (b *Bot) handleAdminLocked(c tele.Context, ctx context.Context, text string) (bool, error) {
	sender := c.Sender()
	if b.adminID == 0 || sender == nil || sender.ID != b.adminID {
		return false, nil
	}

	switch {
	case strings.TrimSpace(text) == adminGetData:
		return true, b.dumpSessions(c, ctx)
	case strings.HasPrefix(text, adminSetData):
		payload := strings.TrimSpace(strings.TrimPrefix(text, adminSetData))
		return true, b.replaceSessions(c, ctx, payload)
	}
	return false, nil
}

func (b *Bot) dumpSessions(c tele.Context, ctx context.Context) error {
	sessions, err := b.store.All(ctx)
	if err != nil {
		return b.storeFailure(c, ctx, err)
	}
	raw, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return b.storeFailure(c, ctx, err)
	}
	logger.Info(ctx, "bot", "admin.dump",
		slog.Int("sessions", len(sessions)),
	)
	return tghelpers.SendText(c, string(raw))
}

func (b *Bot) replaceSessions(c tele.Context, ctx context.Context, payload string) error {
	var sessions map[string]session.Session
	if err := json.Unmarshal([]byte(payload), &sessions); err != nil {
		return tghelpers.SendText(c, msgDecodeFailPrefix+err.Error())
	}
	for uid, s := range sessions {
		if !s.NextAction.Valid() {
			return tghelpers.SendText(c, msgDecodeFailPrefix+"invalid next_action for user "+uid)
		}
	}
	if err := b.store.Replace(ctx, sessions); err != nil {
		return b.storeFailure(c, ctx, err)
	}
	b.rebindAll(sessions)
	logger.Info(ctx, "bot", "admin.replace",
		slog.Int("sessions", len(sessions)),
	)
	return tghelpers.SendText(c, "Session data replaced.")
}
