package store

import (
	"context"

	"github.com/google/uuid"

	"spacecombat/internal/model"
)

// Store :
// Abstracts the persistent backing for the four tables named
// in the data model: `users`, `space_objects`, `battles`,
// `messages`. Every cache in `internal/cache` is built on top
// of a `Store` rather than talking to a concrete database
// driver directly, so that tests can run against `MemStore`
// while production wiring uses `PGStore`.
//
// All methods accept a `context.Context` so that a caller can
// propagate cancellation down to a single statement; none of
// them retry internally (per spec §5, retries are the caller's
// responsibility).
type Store interface {
	// GetUser fetches a single user by id. Returns
	// `model.ErrNotFound` if no such row exists.
	GetUser(ctx context.Context, id uuid.UUID) (model.User, error)

	// GetUserByUsername fetches a single user by its unique
	// username. Returns `model.ErrNotFound` if no such row
	// exists.
	GetUserByUsername(ctx context.Context, username string) (model.User, error)

	// InsertUser creates a new row for `user`, which must
	// already have a non-nil `ID` assigned.
	InsertUser(ctx context.Context, user model.User) error

	// UpdateUser overwrites the row matching `user.ID` with the
	// given value.
	UpdateUser(ctx context.Context, user model.User) error

	// GetAllSpaceObjects fetches every row of `space_objects`,
	// joined with `users` so that player-ship rows carry their
	// owner's username.
	GetAllSpaceObjects(ctx context.Context) ([]model.SpaceObject, error)

	// InsertSpaceObject creates a new row and returns its id:
	// `obj.ID` when set, otherwise a fresh uuid assigned by the
	// store.
	InsertSpaceObject(ctx context.Context, obj model.SpaceObject) (uuid.UUID, error)

	// UpdateSpaceObject overwrites the row matching `obj.ID`.
	UpdateSpaceObject(ctx context.Context, obj model.SpaceObject) error

	// DeleteSpaceObject removes the row matching `id`.
	DeleteSpaceObject(ctx context.Context, id uuid.UUID) error

	// GetBattle fetches a single battle by id. Returns
	// `model.ErrNotFound` if no such row exists.
	GetBattle(ctx context.Context, id uuid.UUID) (model.Battle, error)

	// GetBattlesForUser fetches every battle (active or ended)
	// in which `userId` is a participant.
	GetBattlesForUser(ctx context.Context, userID uuid.UUID) ([]model.Battle, error)

	// InsertBattle creates a new row for `battle`, which must
	// already have a non-nil `ID` assigned.
	InsertBattle(ctx context.Context, battle model.Battle) error

	// UpdateBattle overwrites the row matching `battle.ID`.
	UpdateBattle(ctx context.Context, battle model.Battle) error

	// GetMessage fetches a single message by id. Returns
	// `model.ErrNotFound` if no such row exists.
	GetMessage(ctx context.Context, id uuid.UUID) (model.Message, error)

	// GetAllMessages fetches messages addressed to
	// `recipientID`, newest first. A non-positive `limit` means
	// unbounded.
	GetAllMessages(ctx context.Context, recipientID uuid.UUID, limit int) ([]model.Message, error)

	// InsertMessage creates a new row for `msg`, which must
	// already have a non-nil `ID` assigned.
	InsertMessage(ctx context.Context, msg model.Message) error

	// UpdateMessage persists the read status of the row matching
	// `msg.ID`. `MemStore` replaces the whole row; `PGStore`
	// writes only `is_read`.
	UpdateMessage(ctx context.Context, msg model.Message) error

	// DeleteOldRead removes every read message addressed before
	// `cutoff` (an epoch second) and returns how many rows were
	// removed.
	DeleteOldRead(ctx context.Context, cutoff int64) (int, error)
}
