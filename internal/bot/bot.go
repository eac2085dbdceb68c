// Package bot implements the conversational state machine that bridges
// Telegram updates to the Todoist API.
package bot

import (
	"context"
	"strconv"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	tghelpers "todobridge/core/telegram/helpers"
	"todobridge/internal/session"
	"todobridge/internal/todoist"
)

// TaskAPI is the slice of the Todoist client the controller depends on.
type TaskAPI interface {
	Projects(ctx context.Context) ([]todoist.Project, error)
	CreateTask(ctx context.Context, d todoist.Draft) (string, error)
	DeleteTask(ctx context.Context, taskID string) error
	UpdateDue(ctx context.Context, taskID string, due time.Time) error
}

// APIFactory builds a TaskAPI bound to one token.
type APIFactory func(token string) TaskAPI

// FileResolver turns a received photo into a publicly reachable file URL.
type FileResolver func(p *tele.Photo) (string, error)

const defaultRequestTimeout = 20 * time.Second

// Options configures a Bot.
type Options struct {
	Store          session.Store
	NewAPI         APIFactory
	AdminID        int64
	RequestTimeout time.Duration
}

type binding struct {
	token string
	api   TaskAPI
}

// Bot routes inbound events through per-user session state. All session
// reads and mutations for one user happen under that user's lock, so a
// mutation plus its persistence is atomic with respect to the user's next
// event. No lock spanning multiple users is ever held across a Todoist call.
type Bot struct {
	store   session.Store
	newAPI  APIFactory
	adminID int64
	timeout time.Duration

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
	bindings  map[string]binding
	resolve   FileResolver
}

// New builds a Bot from options.
func New(opts Options) *Bot {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Bot{
		store:     opts.Store,
		newAPI:    opts.NewAPI,
		adminID:   opts.AdminID,
		timeout:   timeout,
		userLocks: make(map[string]*sync.Mutex),
		bindings:  make(map[string]binding),
	}
}

// SetFileResolver wires the resolver used for photo attachments. It is set
// once the Telegram bot handle exists, before updates start flowing.
func (b *Bot) SetFileResolver(f FileResolver) {
	b.mu.Lock()
	b.resolve = f
	b.mu.Unlock()
}

func (b *Bot) fileResolver() FileResolver {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolve
}

// TelegramFileResolver resolves photo file URLs through the Bot API.
func TelegramFileResolver(tb *tele.Bot) FileResolver {
	return func(p *tele.Photo) (string, error) {
		f, err := tb.FileByID(p.FileID)
		if err != nil {
			return "", err
		}
		return tb.URL + "/file/bot" + tb.Token + "/" + f.FilePath, nil
	}
}

func userID(c tele.Context) string {
	sender := c.Sender()
	if sender == nil {
		return ""
	}
	return strconv.FormatInt(sender.ID, 10)
}

// lockUser serializes event handling per user.
func (b *Bot) lockUser(uid string) func() {
	b.mu.Lock()
	lock, ok := b.userLocks[uid]
	if !ok {
		lock = &sync.Mutex{}
		b.userLocks[uid] = lock
	}
	b.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// api returns the cached TaskAPI binding for the user, rebuilding it when
// the token changed.
func (b *Bot) api(uid, token string) TaskAPI {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bound, ok := b.bindings[uid]; ok && bound.token == token {
		return bound.api
	}
	api := b.newAPI(token)
	b.bindings[uid] = binding{token: token, api: api}
	return api
}

func (b *Bot) bindAPI(uid, token string, api TaskAPI) {
	b.mu.Lock()
	b.bindings[uid] = binding{token: token, api: api}
	b.mu.Unlock()
}

func (b *Bot) dropAPI(uid string) {
	b.mu.Lock()
	delete(b.bindings, uid)
	b.mu.Unlock()
}

// rebindAll rebuilds every API binding from the given sessions, used after an
// administrative bulk replace.
func (b *Bot) rebindAll(sessions map[string]session.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bindings = make(map[string]binding, len(sessions))
	for uid, s := range sessions {
		if s.Token == "" {
			continue
		}
		b.bindings[uid] = binding{token: s.Token, api: b.newAPI(s.Token)}
	}
}

// reqCtx derives a bounded request context carrying the update's log metadata.
func (b *Bot) reqCtx(c tele.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(tghelpers.BuildContext(c), b.timeout)
}

// InProgress reports whether the user's next message is claimed by a pending
// step. Unknown users are implicitly awaiting a token.
func (b *Bot) InProgress(id int64) bool {
	s, err := b.store.Get(context.Background(), strconv.FormatInt(id, 10))
	if err != nil {
		return false
	}
	return s.NextAction == session.ActionInsertToken
}
