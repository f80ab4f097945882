package chat

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const conversationSelect = `
	SELECT c.id, c.user_a, c.user_b, c.last_message_at, c.created_at,
	       ua.id, ua.name, ua.image, ub.id, ub.name, ub.image
	FROM conversations c
	JOIN users ua ON ua.id = c.user_a
	JOIN users ub ON ub.id = c.user_b
`

const messageColumns = `id, conversation_id, sender_id, content, image, created_at`

// Repository is the Postgres Store.
type Repository struct {
	DB *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) FindUserSummary(ctx context.Context, userID string) (*UserSummary, error) {
	var (
		u     UserSummary
		image sql.NullString
	)
	err := r.DB.QueryRow(ctx, `SELECT id, name, image FROM users WHERE id=$1`, userID).Scan(&u.ID, &u.Name, &image)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if image.Valid {
		u.Image = &image.String
	}
	return &u, nil
}

func (r *Repository) FindConversationByParticipants(ctx context.Context, userA, userB string) (*Conversation, error) {
	a, b := OrderedPair(userA, userB)
	row := r.DB.QueryRow(ctx, conversationSelect+` WHERE c.user_a=$1 AND c.user_b=$2`, a, b)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return conv, err
}

// CreateConversation inserts against the unique pair constraint, so callers
// racing on the same pair all get the one stored row.
func (r *Repository) CreateConversation(ctx context.Context, userA, userB string) (*Conversation, error) {
	a, b := OrderedPair(userA, userB)
	if _, err := r.DB.Exec(ctx, `
		INSERT INTO conversations (id, user_a, user_b)
		VALUES ($1,$2,$3)
		ON CONFLICT (user_a, user_b) DO NOTHING
	`, uuid.NewString(), a, b); err != nil {
		return nil, err
	}
	conv, err := r.FindConversationByParticipants(ctx, a, b)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, errors.New("conversation vanished after insert")
	}
	return conv, nil
}

func (r *Repository) FindConversationByID(ctx context.Context, id string) (*Conversation, error) {
	row := r.DB.QueryRow(ctx, conversationSelect+` WHERE c.id=$1`, id)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return conv, err
}

func (r *Repository) ListConversationsByUser(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := r.DB.Query(ctx, conversationSelect+`
		WHERE c.user_a=$1 OR c.user_b=$1
		ORDER BY c.last_message_at DESC, c.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		convs []Conversation
		ids   []string
	)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
		ids = append(ids, conv.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return convs, nil
	}

	msgRows, err := r.DB.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ANY($1)
		ORDER BY id ASC
	`, ids)
	if err != nil {
		return nil, err
	}
	defer msgRows.Close()

	byConv := make(map[string][]Message, len(ids))
	for msgRows.Next() {
		m, err := scanMessage(msgRows)
		if err != nil {
			return nil, err
		}
		byConv[m.ConversationID] = append(byConv[m.ConversationID], *m)
	}
	if err := msgRows.Err(); err != nil {
		return nil, err
	}
	for i := range convs {
		convs[i].Messages = byConv[convs[i].ID]
	}
	return convs, nil
}

func (r *Repository) ListConversationIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.DB.Query(ctx, `SELECT id FROM conversations WHERE user_a=$1 OR user_b=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) DeleteConversation(ctx context.Context, id string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM conversations WHERE id=$1`, id)
	return err
}

// CreateMessage stores the message and bumps the conversation's activity
// time in one transaction.
func (r *Repository) CreateMessage(ctx context.Context, m NewMessage) (*Message, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender_id, content, image)
		VALUES ($1,$2,$3,$4)
		RETURNING `+messageColumns, m.ConversationID, m.SenderID, m.Content, m.Image)
	msg, err := scanMessage(row)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `UPDATE conversations SET last_message_at=$1 WHERE id=$2`, msg.CreatedAt, msg.ConversationID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return msg, nil
}

// FindMessagesPage returns up to limit messages older than cursor, newest
// first. Ids grow with creation time, so the id orders the page.
func (r *Repository) FindMessagesPage(ctx context.Context, conversationID string, cursor *int64, limit int) ([]Message, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if cursor == nil {
		rows, err = r.DB.Query(ctx, `
			SELECT `+messageColumns+`
			FROM messages
			WHERE conversation_id=$1
			ORDER BY id DESC
			LIMIT $2
		`, conversationID, limit)
	} else {
		rows, err = r.DB.Query(ctx, `
			SELECT `+messageColumns+`
			FROM messages
			WHERE conversation_id=$1 AND id < $2
			ORDER BY id DESC
			LIMIT $3
		`, conversationID, *cursor, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *Repository) ListMessagesByConversation(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id=$1
		ORDER BY id ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

func (r *Repository) FindMessage(ctx context.Context, id int64) (*Message, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id)
	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (r *Repository) DeleteMessage(ctx context.Context, id int64) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM messages WHERE id=$1`, id)
	return err
}

func scanConversation(row pgx.Row) (*Conversation, error) {
	var (
		c              Conversation
		pa, pb         UserSummary
		imageA, imageB sql.NullString
		lastMessageAt  time.Time
	)
	if err := row.Scan(&c.ID, &c.UserA, &c.UserB, &lastMessageAt, &c.CreatedAt,
		&pa.ID, &pa.Name, &imageA, &pb.ID, &pb.Name, &imageB); err != nil {
		return nil, err
	}
	if imageA.Valid {
		pa.Image = &imageA.String
	}
	if imageB.Valid {
		pb.Image = &imageB.String
	}
	c.LastMessageAt = lastMessageAt
	c.Participants = []UserSummary{pa, pb}
	return &c, nil
}

func scanMessage(row pgx.Row) (*Message, error) {
	var (
		m     Message
		image sql.NullString
	)
	if err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &image, &m.CreatedAt); err != nil {
		return nil, err
	}
	if image.Valid {
		m.Image = &image.String
	}
	return &m, nil
}
