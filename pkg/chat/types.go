package chat

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Store lookups that match no record.
	ErrNotFound = errors.New("not found")
	// ErrEmptyMessage rejects a message with blank content and no attachments.
	ErrEmptyMessage = errors.New("message has no content and no attachments")
	// ErrSelfDirect rejects a direct channel between a user and themselves.
	ErrSelfDirect = errors.New("direct channel requires two distinct users")
)

// ChannelKind is the stored channel type.
type ChannelKind string

const (
	KindOrgWide    ChannelKind = "GENERAL"
	KindDepartment ChannelKind = "DEPARTMENT"
	KindManagers   ChannelKind = "MANAGERS"
	KindDirect     ChannelKind = "DIRECT"
)

// RoleManager is the elevated role granting the managers channel and every
// department channel.
const RoleManager = "MANAGER"

type Channel struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Kind         ChannelKind `json:"type"`
	DepartmentID string      `json:"departmentId,omitempty"`
	CreatedByID  string      `json:"createdById,omitempty"`
	Description  string      `json:"description,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

type Membership struct {
	ChannelID  string     `json:"channelId"`
	UserID     string     `json:"userId"`
	LastReadAt *time.Time `json:"lastReadAt"`
}

// Attachment is upload metadata stored verbatim inside a message.
type Attachment struct {
	FileName string `json:"fileName"`
	FilePath string `json:"filePath"`
	FileType string `json:"fileType"`
	Size     int64  `json:"size"`
}

// Message is the stored record. Content only changes through
// MessageService.PatchCardStatus.
type Message struct {
	ID          string
	ChannelID   string
	SenderID    string
	Content     string
	ReplyToID   string
	Mentions    []string
	Attachments []Attachment
	CreatedAt   time.Time
}

// UserInfo is the display information attached to senders and members.
type UserInfo struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	AvatarURL string `json:"avatarUrl"`
}

// DisplayName joins first and last name, returning fallback when both are empty.
func (u UserInfo) DisplayName(fallback string) string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return fallback
	}
	return name
}

// User is a directory record. Display data lives here; the identity claim
// presented at connect time only carries id, email, role and department.
type User struct {
	ID           string `toml:"id"`
	Email        string `toml:"email"`
	FirstName    string `toml:"first_name"`
	LastName     string `toml:"last_name"`
	AvatarURL    string `toml:"avatar_url"`
	Role         string `toml:"role"`
	DepartmentID string `toml:"department_id"`
}

func (u User) Info() UserInfo {
	return UserInfo{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, AvatarURL: u.AvatarURL}
}

type Department struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// ReplySnippet is the denormalized view of a replied-to message.
type ReplySnippet struct {
	ID      string       `json:"id"`
	Content string       `json:"content"`
	Sender  SnippetAuthor `json:"sender"`
}

type SnippetAuthor struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// MessagePayload is the canonical message shape returned by the service and
// broadcast to subscribers.
type MessagePayload struct {
	ID          string        `json:"id"`
	ChannelID   string        `json:"channelId"`
	Content     string        `json:"content"`
	CreatedAt   time.Time     `json:"createdAt"`
	ReplyTo     *ReplySnippet `json:"replyTo"`
	Mentions    []string      `json:"mentions"`
	Attachments []Attachment  `json:"attachments"`
	Sender      UserInfo      `json:"sender"`
}

type LastMessage struct {
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	SenderName string    `json:"senderName"`
}

type DMUser struct {
	UserID    string `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	AvatarURL string `json:"avatarUrl"`
}

// ChannelSummary is one row of a user's channel list.
type ChannelSummary struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Kind         ChannelKind  `json:"type"`
	DepartmentID string       `json:"departmentId,omitempty"`
	Description  string       `json:"description,omitempty"`
	UnreadCount  int          `json:"unreadCount"`
	DMUser       *DMUser      `json:"dmUser"`
	LastMessage  *LastMessage `json:"lastMessage"`

	updatedAt time.Time
}

type MemberInfo struct {
	UserID     string     `json:"userId"`
	FirstName  string     `json:"firstName"`
	LastName   string     `json:"lastName"`
	AvatarURL  string     `json:"avatarUrl"`
	LastReadAt *time.Time `json:"lastReadAt"`
}

// DirectoryEntry is one row of the direct conversation picker.
type DirectoryEntry struct {
	UserID         string `json:"userId"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	AvatarURL      string `json:"avatarUrl"`
	Email          string `json:"email"`
	DepartmentName string `json:"departmentName"`
}

// CardUpdate describes a card message whose status was rewritten.
type CardUpdate struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}
