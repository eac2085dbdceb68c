package session

import "context"

// Store persists the mapping of user id to session. User ids are the string
// form of the Telegram numeric id.
//
// Implementations must make every Put durable before returning so that the
// handler can persist first and reply second; a crash between two events
// never loses an acknowledged mutation.
type Store interface {
	// Get returns the stored session for the user, or a Default session when
	// the user has never been seen. It never returns a partially-filled record.
	Get(ctx context.Context, userID string) (Session, error)
	// Put stores the session, replacing any previous record.
	Put(ctx context.Context, userID string, s Session) error
	// All returns a snapshot of every stored session.
	All(ctx context.Context) (map[string]Session, error)
	// Replace swaps the entire store contents for the given mapping.
	Replace(ctx context.Context, sessions map[string]Session) error
}
