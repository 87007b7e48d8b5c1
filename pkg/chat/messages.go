package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rubiojr/huddle/pkg/log"
)

// MessageService persists messages and read cursors and builds the canonical
// payloads handed to subscribers.
type MessageService struct {
	store Store
	cfg   settings
	log   *log.Logger
}

func NewMessageService(store Store, opts ...Option) *MessageService {
	return &MessageService{
		store: store,
		cfg:   newSettings(opts),
		log:   log.ForService("messages"),
	}
}

// Create persists a message and returns its canonical payload. Content is
// trimmed; a message with no content and no attachments is rejected with
// ErrEmptyMessage. A reply target must live in channelID; one from another
// channel is dropped. The reply snippet is resolved now and never refreshed.
func (s *MessageService) Create(ctx context.Context, channelID, senderID, content, replyToID string, mentions []string, attachments []Attachment) (*MessagePayload, error) {
	content = strings.TrimSpace(content)
	if content == "" && len(attachments) == 0 {
		return nil, ErrEmptyMessage
	}
	if len(mentions) == 0 {
		mentions = nil
	}
	if len(attachments) == 0 {
		attachments = nil
	}

	lookup := map[string]struct{}{senderID: {}}
	var original *Message
	if replyToID != "" {
		m, err := s.store.GetMessage(ctx, replyToID)
		switch {
		case err == nil && m.ChannelID == channelID:
			original = m
			lookup[m.SenderID] = struct{}{}
		case err == nil:
			s.log.Debugf("reply target %s belongs to another channel", replyToID)
			replyToID = ""
		case errors.Is(err, ErrNotFound):
			s.log.Debugf("reply target %s not found", replyToID)
		default:
			return nil, fmt.Errorf("getting reply target %s: %w", replyToID, err)
		}
	}

	users, err := s.store.GetUsers(ctx, keys(lookup))
	if err != nil {
		return nil, fmt.Errorf("resolving users: %w", err)
	}

	msg := &Message{
		ID:          uuid.NewString(),
		ChannelID:   channelID,
		SenderID:    senderID,
		Content:     content,
		ReplyToID:   replyToID,
		Mentions:    mentions,
		Attachments: attachments,
		CreatedAt:   s.cfg.now().UTC(),
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}
	// a failed touch only affects channel ordering
	if err := s.store.TouchChannel(ctx, channelID, msg.CreatedAt); err != nil {
		s.log.Warnf("touching channel %s: %v", channelID, err)
	}

	payload := s.payload(msg, users, nil)
	if original != nil {
		payload.ReplyTo = s.snippet(original, users)
	}
	return &payload, nil
}

// List returns up to limit messages of channelID strictly older than before
// (the newest when before is nil), oldest first.
func (s *MessageService) List(ctx context.Context, channelID string, before *time.Time, limit int) ([]MessagePayload, error) {
	if limit <= 0 {
		limit = s.cfg.historyLimit
	}
	if limit > s.cfg.maxHistoryLimit {
		limit = s.cfg.maxHistoryLimit
	}

	msgs, err := s.store.ListMessages(ctx, channelID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	if len(msgs) == 0 {
		return []MessagePayload{}, nil
	}

	lookup := make(map[string]struct{})
	targets := make(map[string]struct{})
	for _, m := range msgs {
		lookup[m.SenderID] = struct{}{}
		if m.ReplyToID != "" {
			targets[m.ReplyToID] = struct{}{}
		}
	}

	originals := make(map[string]*Message, len(targets))
	if len(targets) > 0 {
		found, err := s.store.GetMessages(ctx, keys(targets))
		if err != nil {
			return nil, fmt.Errorf("resolving reply targets: %w", err)
		}
		for i := range found {
			if found[i].ChannelID != channelID {
				continue
			}
			originals[found[i].ID] = &found[i]
			lookup[found[i].SenderID] = struct{}{}
		}
	}

	users, err := s.store.GetUsers(ctx, keys(lookup))
	if err != nil {
		return nil, fmt.Errorf("resolving users: %w", err)
	}

	result := make([]MessagePayload, len(msgs))
	for i := range msgs {
		// store order is newest first
		result[len(msgs)-1-i] = s.payload(&msgs[i], users, originals)
	}
	return result, nil
}

// MarkRead moves userID's read cursor in channelID to now and returns it.
func (s *MessageService) MarkRead(ctx context.Context, channelID, userID string) (time.Time, error) {
	at := s.cfg.now().UTC()
	if err := s.store.SetLastRead(ctx, channelID, userID, at); err != nil {
		return time.Time{}, fmt.Errorf("setting read cursor: %w", err)
	}
	return at, nil
}

// PatchCardStatus rewrites the status of the newest card message carrying
// cardID. It returns nil when no such card exists or its content is not a
// well formed card; only storage failures are errors.
func (s *MessageService) PatchCardStatus(ctx context.Context, cardID, status string) (*CardUpdate, error) {
	if cardID == "" {
		return nil, nil
	}

	msg, err := s.store.FindLatestMessage(ctx, CardPrefix, cardNeedle(cardID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding card %s: %w", cardID, err)
	}

	content, ok := patchCard(msg.Content, cardID, status)
	if !ok {
		s.log.Debugf("message %s does not hold a valid card for %s", msg.ID, cardID)
		return nil, nil
	}
	if err := s.store.UpdateMessageContent(ctx, msg.ID, content); err != nil {
		return nil, fmt.Errorf("updating card %s: %w", cardID, err)
	}
	return &CardUpdate{ChannelID: msg.ChannelID, MessageID: msg.ID, Content: content}, nil
}

func (s *MessageService) payload(m *Message, users map[string]User, originals map[string]*Message) MessagePayload {
	sender := users[m.SenderID].Info()
	sender.ID = m.SenderID

	p := MessagePayload{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
		Mentions:    m.Mentions,
		Attachments: m.Attachments,
		Sender:      sender,
	}
	if original, ok := originals[m.ReplyToID]; ok && m.ReplyToID != "" {
		p.ReplyTo = s.snippet(original, users)
	}
	return p
}

func (s *MessageService) snippet(original *Message, users map[string]User) *ReplySnippet {
	author := users[original.SenderID]
	return &ReplySnippet{
		ID:      original.ID,
		Content: Truncate(original.Content, s.cfg.previewLength),
		Sender: SnippetAuthor{
			ID:        original.SenderID,
			FirstName: author.FirstName,
			LastName:  author.LastName,
		},
	}
}
