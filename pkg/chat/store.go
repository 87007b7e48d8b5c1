package chat

import (
	"context"
	"time"
)

// ChannelStore persists channels and memberships.
type ChannelStore interface {
	// FindChannel returns the single channel of a broadcast kind (ORG_WIDE or MANAGERS).
	FindChannel(ctx context.Context, kind ChannelKind) (*Channel, error)
	FindDepartmentChannel(ctx context.Context, departmentID string) (*Channel, error)
	GetChannel(ctx context.Context, id string) (*Channel, error)
	ListChannels(ctx context.Context, kind ChannelKind) ([]Channel, error)
	// ListChannelsByID returns the channels ordered by last activity, newest first.
	ListChannelsByID(ctx context.Context, ids []string) ([]Channel, error)
	// CreateChannel inserts ch, filling ID and timestamps when empty. When a
	// uniqueness constraint rejects the insert the existing channel is returned.
	CreateChannel(ctx context.Context, ch *Channel) (*Channel, error)
	TouchChannel(ctx context.Context, id string, at time.Time) error

	// AddMembers creates memberships, ignoring pairs that already exist.
	AddMembers(ctx context.Context, channelID string, userIDs ...string) error
	ListMembershipsByUser(ctx context.Context, userID string) ([]Membership, error)
	ListMembershipsByChannel(ctx context.Context, channelID string) ([]Membership, error)
	GetMembership(ctx context.Context, channelID, userID string) (*Membership, error)
	CountMembers(ctx context.Context, channelID string) (int, error)
	// SharedChannelIDs returns channel ids of the given kind both users belong to.
	SharedChannelIDs(ctx context.Context, kind ChannelKind, userA, userB string) ([]string, error)
	SetLastRead(ctx context.Context, channelID, userID string, at time.Time) error
}

// MessageStore persists messages.
type MessageStore interface {
	InsertMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	GetMessages(ctx context.Context, ids []string) ([]Message, error)
	// ListMessages returns up to limit messages newest first, strictly older
	// than before when it is non-nil.
	ListMessages(ctx context.Context, channelID string, before *time.Time, limit int) ([]Message, error)
	LatestMessage(ctx context.Context, channelID string) (*Message, error)
	// CountMessages counts messages created strictly after after, or all when nil.
	CountMessages(ctx context.Context, channelID string, after *time.Time) (int, error)
	// FindLatestMessage returns the newest message whose content starts with
	// prefix and contains needle.
	FindLatestMessage(ctx context.Context, prefix, needle string) (*Message, error)
	UpdateMessageContent(ctx context.Context, id, content string) error
}

// UserStore is the read side of the user directory.
type UserStore interface {
	GetUsers(ctx context.Context, ids []string) (map[string]User, error)
	ListUsers(ctx context.Context) ([]User, error)
	GetDepartment(ctx context.Context, id string) (*Department, error)
	ListDepartments(ctx context.Context) ([]Department, error)
}

// Store is everything the chat core needs from durable storage.
type Store interface {
	ChannelStore
	MessageStore
	UserStore
}
