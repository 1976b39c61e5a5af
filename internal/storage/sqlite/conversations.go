package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/chat"
)

// EnsureSession 在会话不存在时插入，已存在则只在首次绑定客人时写入 guest_id。
func (s *Store) EnsureSession(ctx context.Context, sessionID string, guestID *int64) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions (id, guest_id, created_at)
VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    guest_id = COALESCE(sessions.guest_id, excluded.guest_id)
`, sessionID, guestID, s.now())
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// AppendMessage 追加一条消息，ID 与时间为空时自动补全。
func (s *Store) AppendMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	if strings.TrimSpace(msg.SessionID) == "" {
		return chat.Message{}, fmt.Errorf("message session id is required")
	}
	if msg.Role != chat.RoleUser && msg.Role != chat.RoleAssistant {
		return chat.Message{}, fmt.Errorf("invalid message role %q", msg.Role)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO messages (id, session_id, role, content, intent, is_voice, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, msg.ID, msg.SessionID, string(msg.Role), msg.Content, msg.Intent, msg.IsVoice, msg.CreatedAt)
	if err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// RecentMessages 返回会话最近 limit 条消息，按时间正序。
func (s *Store) RecentMessages(ctx context.Context, sessionID string, limit int) ([]chat.Message, error) {
	msgs, err := s.listMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// History 返回会话最近 limit 条消息，最新的在前。
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]chat.Message, error) {
	return s.listMessages(ctx, sessionID, limit)
}

func (s *Store) listMessages(ctx context.Context, sessionID string, limit int) ([]chat.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, role, content, intent, is_voice, created_at
FROM messages
WHERE session_id = ?
ORDER BY created_at DESC, rowid DESC
LIMIT ?
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var (
			msg  chat.Message
			role string
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content, &msg.Intent, &msg.IsVoice, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = chat.Role(role)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages rows: %w", err)
	}
	return msgs, nil
}
