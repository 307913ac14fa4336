package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"spacecombat/internal/locker"
	"spacecombat/internal/model"
	"spacecombat/internal/store"
	"spacecombat/pkg/background"
	"spacecombat/pkg/logger"
)

// MessageCache :
// Write-back cache fronting the `messages` table. Holds every
// message known to the process keyed by id, a per-recipient
// index in insertion order, and a dirty set of ids pending a
// flush (new inserts and read-status updates alike).
//
// Message ids are opaque uuids rather than a sequential
// integer, so the ordering guarantee a caller needs ("messages
// created by one task appear in creation order") is carried by
// `CreatedAt` instead: the cache keeps a monotonic high-water
// mark and bumps a message's timestamp past it whenever two
// messages would otherwise land on the same second.
type MessageCache struct {
	mu          sync.Mutex
	messages    map[uuid.UUID]model.Message
	byRecipient map[uuid.UUID][]uuid.UUID
	dirty       map[uuid.UUID]bool
	persisted   map[uuid.UUID]bool
	lastCreated int64

	store store.Store
	locks *locker.Manager
	log   logger.Logger
	now   TimeProvider

	config  configuration
	process *background.Process
}

// NewMessageCache :
// Creates an empty message cache backed by `st`.
func NewMessageCache(st store.Store, locks *locker.Manager, log logger.Logger, now TimeProvider) *MessageCache {
	return &MessageCache{
		messages:    make(map[uuid.UUID]model.Message),
		byRecipient: make(map[uuid.UUID][]uuid.UUID),
		dirty:       make(map[uuid.UUID]bool),
		persisted:   make(map[uuid.UUID]bool),
		store:       st,
		locks:       locks,
		log:         log,
		now:         now,
		config:      parseConfiguration(),
	}
}

// CreateMessage :
// Appends a new message addressed to `recipientID` with the
// given text, assigning it a strictly increasing `CreatedAt`
// relative to every message created before it by this cache.
func (c *MessageCache) CreateMessage(ctx context.Context, recipientID uuid.UUID, text string) (model.Message, error) {
	rel, err := c.locks.Acquire(ctx, locker.Message)
	if err != nil {
		return model.Message{}, err
	}
	defer rel.Release()

	c.mu.Lock()
	createdAt := c.now()
	if createdAt <= c.lastCreated {
		createdAt = c.lastCreated + 1
	}
	c.lastCreated = createdAt

	msg := model.Message{
		ID:          uuid.New(),
		RecipientID: recipientID,
		Text:        text,
		CreatedAt:   createdAt,
	}

	c.messages[msg.ID] = msg
	c.byRecipient[recipientID] = append(c.byRecipient[recipientID], msg.ID)
	c.dirty[msg.ID] = true
	c.mu.Unlock()

	if !c.config.enableAutoPersistence {
		if err := c.flushDirtyLocked(ctx); err != nil {
			return model.Message{}, err
		}
	}

	return msg, nil
}

// GetAllMessages :
// Returns messages addressed to `recipientID`, newest first,
// merging whatever the cache holds with the store's view and
// bounding the result to `limit` when positive.
func (c *MessageCache) GetAllMessages(ctx context.Context, recipientID uuid.UUID, limit int) ([]model.Message, error) {
	rel, err := c.locks.Acquire(ctx, locker.Message)
	if err != nil {
		return nil, err
	}
	defer rel.Release()

	if err := c.ensureRecipientLoaded(ctx, recipientID); err != nil {
		return nil, err
	}

	c.mu.Lock()
	ids := append([]uuid.UUID(nil), c.byRecipient[recipientID]...)
	out := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.messages[id])
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// GetUnreadMessages :
// Returns every unread message addressed to `recipientID`,
// oldest first.
func (c *MessageCache) GetUnreadMessages(ctx context.Context, recipientID uuid.UUID) ([]model.Message, error) {
	all, err := c.GetAllMessages(ctx, recipientID, 0)
	if err != nil {
		return nil, err
	}

	out := make([]model.Message, 0, len(all))
	for _, m := range all {
		if !m.IsRead {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })

	return out, nil
}

// GetUnreadCount :
// Returns how many unread messages are addressed to
// `recipientID`.
func (c *MessageCache) GetUnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error) {
	unread, err := c.GetUnreadMessages(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

// ensureRecipientLoaded hydrates every stored message for
// `recipientID` that the cache does not already know about.
func (c *MessageCache) ensureRecipientLoaded(ctx context.Context, recipientID uuid.UUID) error {
	dbRel, err := c.locks.Acquire(ctx, locker.DBMessages)
	if err != nil {
		return err
	}
	stored, err := c.store.GetAllMessages(ctx, recipientID, 0)
	dbRel.Release()
	if err != nil {
		return fmt.Errorf("loading messages for %s: %w", recipientID, model.ErrStorageError)
	}

	c.mu.Lock()
	for _, m := range stored {
		if _, ok := c.messages[m.ID]; ok {
			continue
		}
		c.messages[m.ID] = m
		c.byRecipient[recipientID] = append(c.byRecipient[recipientID], m.ID)
		c.persisted[m.ID] = true
		if m.CreatedAt > c.lastCreated {
			c.lastCreated = m.CreatedAt
		}
	}
	c.mu.Unlock()

	return nil
}

// MarkRead :
// Sets the read flag on a single message.
func (c *MessageCache) MarkRead(ctx context.Context, messageID uuid.UUID, read bool) error {
	return c.MarkManyRead(ctx, []uuid.UUID{messageID}, read)
}

// MarkManyRead :
// Atomically sets the read flag on every id in `messageIDs`
// that the cache knows about, marking each dirty.
func (c *MessageCache) MarkManyRead(ctx context.Context, messageIDs []uuid.UUID, read bool) error {
	rel, err := c.locks.Acquire(ctx, locker.Message)
	if err != nil {
		return err
	}
	defer rel.Release()

	c.mu.Lock()
	for _, id := range messageIDs {
		m, ok := c.messages[id]
		if !ok {
			continue
		}
		m.IsRead = read
		c.messages[id] = m
		c.dirty[id] = true
	}
	c.mu.Unlock()

	if !c.config.enableAutoPersistence {
		return c.flushDirtyLocked(ctx)
	}

	return nil
}

// MarkAllRead :
// Marks every message addressed to `recipientID` as read.
func (c *MessageCache) MarkAllRead(ctx context.Context, recipientID uuid.UUID) error {
	if err := c.ensureRecipientLoaded(ctx, recipientID); err != nil {
		return err
	}

	c.mu.Lock()
	ids := append([]uuid.UUID(nil), c.byRecipient[recipientID]...)
	c.mu.Unlock()

	return c.MarkManyRead(ctx, ids, true)
}

// DeleteOldRead :
// Sweeps every read message addressed before `cutoff` (an
// epoch second) from both the cache and the store.
func (c *MessageCache) DeleteOldRead(ctx context.Context, cutoff int64) (int, error) {
	rel, err := c.locks.Acquire(ctx, locker.Message)
	if err != nil {
		return 0, err
	}
	defer rel.Release()

	dbRel, err := c.locks.Acquire(ctx, locker.DBMessages)
	if err != nil {
		return 0, err
	}
	removed, err := c.store.DeleteOldRead(ctx, cutoff)
	dbRel.Release()
	if err != nil {
		return 0, fmt.Errorf("sweeping old read messages: %w", model.ErrStorageError)
	}

	c.mu.Lock()
	for id, m := range c.messages {
		if m.IsRead && m.CreatedAt < cutoff {
			delete(c.messages, id)
			delete(c.dirty, id)
			delete(c.persisted, id)
			recipientIDs := c.byRecipient[m.RecipientID]
			for i, rid := range recipientIDs {
				if rid == id {
					c.byRecipient[m.RecipientID] = append(recipientIDs[:i], recipientIDs[i+1:]...)
					break
				}
			}
		}
	}
	c.mu.Unlock()

	return removed, nil
}

// FlushDirty :
// Persists every dirty message, issuing an INSERT for messages
// the store has never seen and an UPDATE otherwise.
func (c *MessageCache) FlushDirty(ctx context.Context) error {
	rel, err := c.locks.Acquire(ctx, locker.Message)
	if err != nil {
		return err
	}
	defer rel.Release()

	return c.flushDirtyLocked(ctx)
}

// flushDirtyLocked performs the actual flush; the caller must
// already hold the MESSAGE lock.
func (c *MessageCache) flushDirtyLocked(ctx context.Context) error {
	c.mu.Lock()
	ids := make([]uuid.UUID, 0, len(c.dirty))
	for id := range c.dirty {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}

	dbRel, err := c.locks.Acquire(ctx, locker.DBMessages)
	if err != nil {
		return err
	}
	defer dbRel.Release()

	for _, id := range ids {
		c.mu.Lock()
		m := c.messages[id]
		alreadyPersisted := c.persisted[id]
		c.mu.Unlock()

		var flushErr error
		if alreadyPersisted {
			flushErr = c.store.UpdateMessage(ctx, m)
		} else {
			flushErr = c.store.InsertMessage(ctx, m)
		}
		if flushErr != nil {
			return fmt.Errorf("flushing message %s: %w", id, model.ErrStorageError)
		}

		c.mu.Lock()
		c.persisted[id] = true
		delete(c.dirty, id)
		c.mu.Unlock()
	}

	return nil
}

// Start :
// Starts the background flush timer, unless auto-persistence
// is disabled.
func (c *MessageCache) Start() error {
	if !c.config.enableAutoPersistence {
		return nil
	}

	c.process = background.NewProcess(c.config.persistenceInterval, c.log).
		WithModule("message-cache").
		WithJitter(c.config.persistenceInterval / 4).
		WithOperation(func() (bool, error) {
			err := c.FlushDirty(locker.WithHeld(context.Background()))
			return err == nil, err
		})

	return c.process.Start()
}

// Stop :
// Stops the background flush timer, if running, and performs a
// final synchronous flush.
func (c *MessageCache) Stop() {
	if c.process != nil {
		c.process.Stop()
	}

	_ = c.FlushDirty(locker.WithHeld(context.Background()))
}
