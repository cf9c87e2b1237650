// Package chat implements message and reaction writes with post-commit
// room fan-out, plus the room and history reads.
package chat

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/go-monolith/mono/pkg/types"

	domain "github.com/sungchulkim/sung-kim-capstone-server/domain/chat"
	"github.com/sungchulkim/sung-kim-capstone-server/events"
	"github.com/sungchulkim/sung-kim-capstone-server/modules/store"
)

// Publisher delivers a committed change to the members of its room.
type Publisher interface {
	Publish(event events.Event) int
}

// ChatService implements the chat business logic.
type ChatService struct {
	repo      *store.Repository
	publisher Publisher
	logger    types.Logger
}

// NewChatService creates a new ChatService.
func NewChatService(repo *store.Repository, publisher Publisher, logger types.Logger) *ChatService {
	return &ChatService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// PostMessage stores a message in a room and broadcasts it to the room.
// The returned view is the exact payload members receive.
func (s *ChatService) PostMessage(ctx context.Context, userID, roomID uint, content string) (domain.MessageView, error) {
	if strings.TrimSpace(content) == "" {
		return domain.MessageView{}, domain.NewValidationError("Message content is required")
	}
	if roomID == 0 {
		return domain.MessageView{}, domain.NewValidationError("Room id is required")
	}

	var view domain.MessageView
	// The write outlives a caller that goes away mid-request.
	ctx = context.WithoutCancel(ctx)
	err := s.repo.Transaction(ctx, func(tx *store.Repository) error {
		if _, err := tx.FindRoom(ctx, roomID); err != nil {
			return err
		}

		msg := &domain.Message{RoomID: roomID, UserID: userID, Content: content}
		if err := tx.CreateMessage(ctx, msg); err != nil {
			return err
		}

		created, err := tx.MessageView(ctx, msg.ID)
		if err != nil {
			return err
		}
		view = created
		return nil
	})
	if err != nil {
		return domain.MessageView{}, err
	}

	// A fresh message never has reactions.
	view.Reactions = []domain.ReactionView{}
	delivered := s.publisher.Publish(events.MessageCreated{Message: view})
	s.logger.Debug("Message posted", "messageID", view.ID, "roomID", roomID, "userID", userID, "delivered", delivered)
	return view, nil
}

// EditMessage replaces the content of a message the caller owns.
func (s *ChatService) EditMessage(ctx context.Context, userID, messageID uint, content string) (domain.MessageView, error) {
	if strings.TrimSpace(content) == "" {
		return domain.MessageView{}, domain.NewValidationError("Message content is required")
	}

	var view domain.MessageView
	ctx = context.WithoutCancel(ctx)
	err := s.repo.Transaction(ctx, func(tx *store.Repository) error {
		if _, err := tx.FindOwnedMessage(ctx, messageID, userID); err != nil {
			return err
		}
		if err := tx.UpdateMessageContent(ctx, messageID, userID, content); err != nil {
			return err
		}

		updated, err := tx.MessageView(ctx, messageID)
		if err != nil {
			return err
		}
		view = updated
		return nil
	})
	if err != nil {
		return domain.MessageView{}, err
	}

	s.publisher.Publish(events.MessageEdited{MessageID: messageID, Content: content, Room: view.RoomID})
	s.logger.Debug("Message edited", "messageID", messageID, "roomID", view.RoomID, "userID", userID)
	return view, nil
}

// DeleteMessage removes a message the caller owns together with its reactions.
func (s *ChatService) DeleteMessage(ctx context.Context, userID, messageID uint) error {
	var roomID uint
	ctx = context.WithoutCancel(ctx)
	err := s.repo.Transaction(ctx, func(tx *store.Repository) error {
		msg, err := tx.FindOwnedMessage(ctx, messageID, userID)
		if err != nil {
			return err
		}
		roomID = msg.RoomID

		if err := tx.DeleteReactions(ctx, messageID); err != nil {
			return err
		}
		return tx.DeleteMessage(ctx, messageID, userID)
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(events.MessageDeleted{MessageID: messageID, Room: roomID})
	s.logger.Debug("Message deleted", "messageID", messageID, "roomID", roomID, "userID", userID)
	return nil
}

// AddReaction attaches an emoji to any existing message.
func (s *ChatService) AddReaction(ctx context.Context, userID, messageID uint, emoji string) (domain.Reaction, error) {
	if err := validateEmoji(emoji); err != nil {
		return domain.Reaction{}, err
	}

	var reaction domain.Reaction
	var roomID uint
	ctx = context.WithoutCancel(ctx)
	err := s.repo.Transaction(ctx, func(tx *store.Repository) error {
		msg, err := tx.FindMessage(ctx, messageID)
		if err != nil {
			return err
		}
		roomID = msg.RoomID

		reaction = domain.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}
		return tx.CreateReaction(ctx, &reaction)
	})
	if err != nil {
		return domain.Reaction{}, err
	}

	s.publisher.Publish(events.ReactionAdded{MessageID: messageID, UserID: userID, Emoji: emoji, Room: roomID})
	s.logger.Debug("Reaction added", "messageID", messageID, "roomID", roomID, "userID", userID)
	return reaction, nil
}

// ListRooms returns every room.
func (s *ChatService) ListRooms(ctx context.Context) ([]domain.Room, error) {
	return s.repo.ListRooms(ctx)
}

// GetRoom returns one room.
func (s *ChatService) GetRoom(ctx context.Context, roomID uint) (*domain.Room, error) {
	return s.repo.FindRoom(ctx, roomID)
}

// RoomMessages returns a room's history in creation order. A non-zero
// afterID returns only the messages newer than it.
func (s *ChatService) RoomMessages(ctx context.Context, roomID, afterID uint) ([]domain.MessageView, error) {
	return s.repo.MessageViews(ctx, store.MessageFilter{RoomID: roomID, AfterID: afterID})
}

// AllMessages returns every message across rooms in creation order.
func (s *ChatService) AllMessages(ctx context.Context) ([]domain.MessageView, error) {
	return s.repo.MessageViews(ctx, store.MessageFilter{})
}

// MessageReactions lists the reactions on a message. A deleted or unknown
// message has none.
func (s *ChatService) MessageReactions(ctx context.Context, messageID uint) ([]domain.ReactionView, error) {
	return s.repo.Reactions(ctx, messageID)
}

// LatestMessageID returns the newest message id in a room, or 0.
func (s *ChatService) LatestMessageID(ctx context.Context, roomID uint) (uint, error) {
	return s.repo.LatestMessageID(ctx, roomID)
}

// Ping checks the backing store.
func (s *ChatService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func validateEmoji(emoji string) error {
	if strings.TrimSpace(emoji) == "" {
		return domain.NewValidationError("Emoji is required")
	}
	if utf8.RuneCountInString(emoji) > domain.MaxEmojiLength {
		return domain.NewValidationError("Emoji is too long")
	}
	return nil
}
