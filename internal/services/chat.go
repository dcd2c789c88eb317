package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campuslink/internal/logging"
	"github.com/HammerMeetNail/campuslink/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrCannotMessageSelf    = errors.New("cannot start a conversation with yourself")
	ErrEmptyMessage         = errors.New("message cannot be empty")
)

const conversationColumns = `id, participant_a, participant_b, last_message_at, created_at`
const messageColumns = `id, conversation_id, sender_id, content, read_at, created_at`

type ChatServiceInterface interface {
	StartConversation(ctx context.Context, userID, otherID uuid.UUID) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error)
	ListMessages(ctx context.Context, userID, conversationID uuid.UUID, before *time.Time, limit int) ([]models.Message, error)
	Send(ctx context.Context, userID, conversationID uuid.UUID, content string) (*models.Message, error)
	MarkRead(ctx context.Context, userID, conversationID uuid.UUID) error
	Stream(ctx context.Context, userID, conversationID uuid.UUID, heartbeat time.Duration, deliver func(payload string) error, keepalive func() error) error
}

type ChatService struct {
	db    DB
	redis RedisClient
}

func NewChatService(db DB, redis RedisClient) *ChatService {
	return &ChatService{db: db, redis: redis}
}

func conversationChannel(id uuid.UUID) string {
	return "chat:conversation:" + id.String()
}

func scanConversation(row Row) (*models.Conversation, error) {
	c := &models.Conversation{}
	if err := row.Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.LastMessageAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func scanMessage(row Row) (*models.Message, error) {
	m := &models.Message{}
	if err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.ReadAt, &m.CreatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

// orderedPair matches the participant_a < participant_b table check.
func orderedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a
	}
	return a, b
}

// canChat reports whether two profiles are connected or mentor each other.
func canChat(ctx context.Context, q DBConn, a, b uuid.UUID) (bool, error) {
	connected, err := areConnected(ctx, q, a, b)
	if err != nil || connected {
		return connected, err
	}
	return hasActiveMentoring(ctx, q, a, b)
}

func (s *ChatService) StartConversation(ctx context.Context, userID, otherID uuid.UUID) (*models.Conversation, error) {
	if userID == otherID {
		return nil, ErrCannotMessageSelf
	}
	ok, err := canChat(ctx, s.db, userID, otherID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotConnected
	}

	a, b := orderedPair(userID, otherID)
	conv, err := scanConversation(s.db.QueryRow(ctx,
		`INSERT INTO conversations (participant_a, participant_b)
		 VALUES ($1, $2)
		 ON CONFLICT (participant_a, participant_b) DO UPDATE SET participant_a = EXCLUDED.participant_a
		 RETURNING `+conversationColumns,
		a, b,
	))
	if isForeignKeyViolation(err) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("starting conversation: %w", err)
	}
	return conv, nil
}

// participantConversation loads a conversation the user takes part in.
func (s *ChatService) participantConversation(ctx context.Context, userID, conversationID uuid.UUID) (*models.Conversation, error) {
	conv, err := scanConversation(s.db.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`,
		conversationID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if !conv.Includes(userID) {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

func (s *ChatService) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.last_message_at, p.id, p.full_name, p.role, p.department, p.avatar_url,
		        (SELECT COUNT(*) FROM messages m
		         WHERE m.conversation_id = c.id AND m.sender_id <> $1 AND m.read_at IS NULL)
		 FROM conversations c
		 JOIN profiles p ON p.id = CASE WHEN c.participant_a = $1 THEN c.participant_b ELSE c.participant_a END
		 WHERE (c.participant_a = $1 OR c.participant_b = $1) AND p.deleted_at IS NULL
		 ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	out := []models.ConversationSummary{}
	for rows.Next() {
		var c models.ConversationSummary
		var id uuid.UUID
		var name, role, department string
		var avatar *string
		if err := rows.Scan(&c.ID, &c.LastMessageAt, &id, &name, &role, &department, &avatar, &c.UnreadCount); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		c.Other = summaryFromRow(id, name, role, department, avatar)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListMessages returns a page of messages, oldest first, strictly before the
// given time when set.
func (s *ChatService) ListMessages(ctx context.Context, userID, conversationID uuid.UUID, before *time.Time, limit int) ([]models.Message, error) {
	if _, err := s.participantConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = models.DefaultMessagePage
	}
	if limit > models.MaxMessagePage {
		limit = models.MaxMessagePage
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE conversation_id = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
		 ORDER BY created_at DESC
		 LIMIT $3`,
		conversationID, before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Send stores the message and then fans it out to live subscribers. The pair
// must still be connected or in an active mentorship. Realtime delivery is
// best effort; a publish failure does not undo the write.
func (s *ChatService) Send(ctx context.Context, userID, conversationID uuid.UUID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > models.MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	conv, err := s.participantConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	other := conv.ParticipantA
	if other == userID {
		other = conv.ParticipantB
	}
	ok, err := canChat(ctx, s.db, userID, other)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotConnected
	}

	var msg *models.Message
	err = withTx(ctx, s.db, func(tx Tx) error {
		var err error
		msg, err = scanMessage(tx.QueryRow(ctx,
			`INSERT INTO messages (conversation_id, sender_id, content)
			 VALUES ($1, $2, $3)
			 RETURNING `+messageColumns,
			conversationID, userID, content,
		))
		if err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE conversations SET last_message_at = $2 WHERE id = $1`, conversationID, msg.CreatedAt); err != nil {
			return fmt.Errorf("updating conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, msg)
	return msg, nil
}

func (s *ChatService) publish(ctx context.Context, msg *models.Message) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		logging.Error("Failed to encode chat message", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := s.redis.Publish(ctx, conversationChannel(msg.ConversationID), string(payload)); err != nil {
		logging.Warn("Failed to publish chat message", map[string]interface{}{
			"conversation_id": msg.ConversationID.String(),
			"error":           err.Error(),
		})
	}
}

func (s *ChatService) MarkRead(ctx context.Context, userID, conversationID uuid.UUID) error {
	if _, err := s.participantConversation(ctx, userID, conversationID); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx,
		`UPDATE messages SET read_at = NOW()
		 WHERE conversation_id = $1 AND sender_id <> $2 AND read_at IS NULL`,
		conversationID, userID,
	)
	if err != nil {
		return fmt.Errorf("marking messages read: %w", err)
	}
	return nil
}

// Stream relays published messages for one conversation until ctx ends or
// deliver fails. keepalive runs every heartbeat when heartbeat > 0. The
// subscription and its reader goroutine are released before Stream returns.
func (s *ChatService) Stream(ctx context.Context, userID, conversationID uuid.UUID, heartbeat time.Duration, deliver func(payload string) error, keepalive func() error) error {
	if _, err := s.participantConversation(ctx, userID, conversationID); err != nil {
		return err
	}
	if s.redis == nil {
		return errors.New("realtime is not configured")
	}

	sub, err := s.redis.Subscribe(ctx, conversationChannel(conversationID))
	if err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	msgs := make(chan string)
	errs := make(chan error, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(msgs)
		for {
			payload, err := sub.Receive(ctx)
			if err != nil {
				errs <- err
				return
			}
			select {
			case msgs <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	defer func() {
		cancel()
		_ = sub.Close()
		<-done
	}()

	var tick <-chan time.Time
	if heartbeat > 0 && keepalive != nil {
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("receiving: %w", <-errs)
			}
			if err := deliver(payload); err != nil {
				return err
			}
		case <-tick:
			if err := keepalive(); err != nil {
				return err
			}
		}
	}
}
