package store

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	domain "github.com/sungchulkim/sung-kim-capstone-server/domain/chat"
)

// Ownership failures share msgMessageNotOwned with missing rows.
const (
	msgUserNotFound     = "User not found"
	msgRoomNotFound     = "Room not found"
	msgMessageNotFound  = "Message not found"
	msgMessageNotOwned  = "Message not found or unauthorized"
	msgUsernameConflict = "Username already taken"
)

// MessageFilter narrows a message listing.
type MessageFilter struct {
	// RoomID limits results to one room when non-zero.
	RoomID uint
	// AfterID returns only messages with a larger id when non-zero.
	AfterID uint
}

// Repository handles chat persistence using GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Transaction runs fn against a repository bound to a single transaction.
// The transaction commits when fn returns nil.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// Ping checks that the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return domain.WrapPersistence("get connection", err)
	}
	return domain.WrapPersistence("ping", sqlDB.PingContext(ctx))
}

// CreateUser inserts a new user. A taken username yields a ConflictError.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	result := r.db.WithContext(ctx).Create(user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return &domain.ConflictError{Message: msgUsernameConflict}
		}
		return domain.WrapPersistence("create user", result.Error)
	}
	return nil
}

// FindUserByUsername looks a user up by unique username.
func (r *Repository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	result := r.db.WithContext(ctx).Where("username = ?", username).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError(msgUserNotFound)
		}
		return nil, domain.WrapPersistence("find user", result.Error)
	}
	return &user, nil
}

// FindUserByID looks a user up by primary key.
func (r *Repository) FindUserByID(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	result := r.db.WithContext(ctx).First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError(msgUserNotFound)
		}
		return nil, domain.WrapPersistence("find user", result.Error)
	}
	return &user, nil
}

// ListRooms returns every room ordered by id.
func (r *Repository) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	if err := r.db.WithContext(ctx).Order("id").Find(&rooms).Error; err != nil {
		return nil, domain.WrapPersistence("list rooms", err)
	}
	return rooms, nil
}

// FindRoom returns a room by id.
func (r *Repository) FindRoom(ctx context.Context, id uint) (*domain.Room, error) {
	var room domain.Room
	result := r.db.WithContext(ctx).First(&room, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError(msgRoomNotFound)
		}
		return nil, domain.WrapPersistence("find room", result.Error)
	}
	return &room, nil
}

// CreateMessage inserts a message. A dangling room or user reference is
// reported as a NotFoundError.
func (r *Repository) CreateMessage(ctx context.Context, msg *domain.Message) error {
	result := r.db.WithContext(ctx).Omit("Room", "User").Create(msg)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrForeignKeyViolated) {
			return domain.NewNotFoundError(msgRoomNotFound)
		}
		return domain.WrapPersistence("insert message", result.Error)
	}
	return nil
}

// FindMessage returns a message by id regardless of author.
func (r *Repository) FindMessage(ctx context.Context, id uint) (*domain.Message, error) {
	var msg domain.Message
	result := r.db.WithContext(ctx).First(&msg, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError(msgMessageNotFound)
		}
		return nil, domain.WrapPersistence("find message", result.Error)
	}
	return &msg, nil
}

// FindOwnedMessage returns a message only if userID authored it.
func (r *Repository) FindOwnedMessage(ctx context.Context, id, userID uint) (*domain.Message, error) {
	var msg domain.Message
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&msg)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError(msgMessageNotOwned)
		}
		return nil, domain.WrapPersistence("find message", result.Error)
	}
	return &msg, nil
}

// UpdateMessageContent rewrites an owned message's content.
func (r *Repository) UpdateMessageContent(ctx context.Context, id, userID uint, content string) error {
	result := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("content", content)
	if result.Error != nil {
		return domain.WrapPersistence("update message", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError(msgMessageNotOwned)
	}
	return nil
}

// DeleteReactions removes every reaction on a message. Zero rows is fine.
func (r *Repository) DeleteReactions(ctx context.Context, messageID uint) error {
	err := r.db.WithContext(ctx).Where("message_id = ?", messageID).Delete(&domain.Reaction{}).Error
	return domain.WrapPersistence("delete reactions", err)
}

// DeleteMessage removes an owned message.
func (r *Repository) DeleteMessage(ctx context.Context, id, userID uint) error {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Message{})
	if result.Error != nil {
		return domain.WrapPersistence("delete message", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError(msgMessageNotOwned)
	}
	return nil
}

// CreateReaction inserts a reaction. A dangling message reference is
// reported as a NotFoundError.
func (r *Repository) CreateReaction(ctx context.Context, reaction *domain.Reaction) error {
	result := r.db.WithContext(ctx).Omit("Message", "User").Create(reaction)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrForeignKeyViolated) {
			return domain.NewNotFoundError(msgMessageNotFound)
		}
		return domain.WrapPersistence("insert reaction", result.Error)
	}
	return nil
}

// messageRow is a message joined with its author's username.
type messageRow struct {
	ID        uint
	RoomID    uint
	UserID    uint
	Content   string
	CreatedAt time.Time
	Username  string
}

type reactionRow struct {
	MessageID uint
	UserID    uint
	Emoji     string
}

func (r *Repository) joinedMessages(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table("messages").
		Select("messages.id, messages.room_id, messages.user_id, messages.content, messages.created_at, users.username").
		Joins("JOIN users ON users.id = messages.user_id")
}

// MessageView re-reads one message joined with author and reactions.
func (r *Repository) MessageView(ctx context.Context, id uint) (domain.MessageView, error) {
	var rows []messageRow
	if err := r.joinedMessages(ctx).Where("messages.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return domain.MessageView{}, domain.WrapPersistence("read message", err)
	}
	if len(rows) == 0 {
		return domain.MessageView{}, domain.NewNotFoundError(msgMessageNotFound)
	}

	views, err := r.attachReactions(ctx, rows)
	if err != nil {
		return domain.MessageView{}, err
	}
	return views[0], nil
}

// MessageViews lists messages oldest first, each with author and reactions.
func (r *Repository) MessageViews(ctx context.Context, filter MessageFilter) ([]domain.MessageView, error) {
	query := r.joinedMessages(ctx)
	if filter.RoomID != 0 {
		query = query.Where("messages.room_id = ?", filter.RoomID)
	}
	if filter.AfterID != 0 {
		query = query.Where("messages.id > ?", filter.AfterID)
	}

	var rows []messageRow
	if err := query.Order("messages.created_at ASC, messages.id ASC").Scan(&rows).Error; err != nil {
		return nil, domain.WrapPersistence("list messages", err)
	}
	return r.attachReactions(ctx, rows)
}

// Reactions returns the reactions on one message in insertion order.
func (r *Repository) Reactions(ctx context.Context, messageID uint) ([]domain.ReactionView, error) {
	grouped, err := r.reactionsFor(ctx, []uint{messageID})
	if err != nil {
		return nil, err
	}
	if views, ok := grouped[messageID]; ok {
		return views, nil
	}
	return []domain.ReactionView{}, nil
}

// LatestMessageID returns the highest message id in a room, or zero.
func (r *Repository) LatestMessageID(ctx context.Context, roomID uint) (uint, error) {
	var latest int64
	err := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("room_id = ?", roomID).
		Select("COALESCE(MAX(id), 0)").
		Row().Scan(&latest)
	if err != nil {
		return 0, domain.WrapPersistence("latest message", err)
	}
	return uint(latest), nil
}

func (r *Repository) attachReactions(ctx context.Context, rows []messageRow) ([]domain.MessageView, error) {
	ids := lo.Map(rows, func(row messageRow, _ int) uint { return row.ID })

	grouped, err := r.reactionsFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	return lo.Map(rows, func(row messageRow, _ int) domain.MessageView {
		reactions, ok := grouped[row.ID]
		if !ok {
			reactions = []domain.ReactionView{}
		}
		return domain.MessageView{
			ID:        row.ID,
			RoomID:    row.RoomID,
			UserID:    row.UserID,
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
			Username:  row.Username,
			Reactions: reactions,
		}
	}), nil
}

func (r *Repository) reactionsFor(ctx context.Context, messageIDs []uint) (map[uint][]domain.ReactionView, error) {
	if len(messageIDs) == 0 {
		return map[uint][]domain.ReactionView{}, nil
	}

	var rows []reactionRow
	err := r.db.WithContext(ctx).Model(&domain.Reaction{}).
		Select("message_id, user_id, emoji").
		Where("message_id IN ?", messageIDs).
		Order("id").
		Scan(&rows).Error
	if err != nil {
		return nil, domain.WrapPersistence("list reactions", err)
	}

	byMessage := lo.GroupBy(rows, func(row reactionRow) uint { return row.MessageID })
	return lo.MapValues(byMessage, func(group []reactionRow, _ uint) []domain.ReactionView {
		return lo.Map(group, func(row reactionRow, _ int) domain.ReactionView {
			return domain.ReactionView{UserID: row.UserID, Emoji: row.Emoji}
		})
	}), nil
}
