package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Notification channel prefixes embedded in message text. The
// core treats these as opaque string prefixes; no subsystem in
// this package interprets them beyond prepending them.
const (
	ChannelPersonalPositive = "P:"
	ChannelPersonalNegative = "N:"
	ChannelAmbient          = "A:"
)

// Message :
// Represents a single notification delivered to a recipient.
// Created by notifications or system events, mutated only by
// read-status updates, and possibly deleted by a TTL sweep of
// old read messages; owned exclusively by the Message Cache.
//
// The `ID` is the stable identifier for this message.
//
// The `RecipientID` identifies the user this message is for.
//
// The `Text` is the message body, typically prefixed with one
// of the notification channel constants above.
//
// The `CreatedAt` is the epoch second the message was created.
//
// The `IsRead` tracks whether the recipient has seen it.
type Message struct {
	ID          uuid.UUID
	RecipientID uuid.UUID
	Text        string
	CreatedAt   int64
	IsRead      bool
}

// Valid :
// Used to determine whether this message satisfies its basic
// validity constraints.
func (m *Message) Valid() bool {
	return m.ID != uuid.Nil && m.RecipientID != uuid.Nil && len(m.Text) > 0
}

// String :
// Implementation of the `Stringer` interface.
func (m Message) String() string {
	return fmt.Sprintf("[id: %s, recipient: %s, read: %t]", m.ID, m.RecipientID, m.IsRead)
}
