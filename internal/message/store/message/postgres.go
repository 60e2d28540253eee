package message

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/spwotton/sms/internal/domain"
	pkgdomain "github.com/spwotton/sms/pkg/domain"
	"github.com/spwotton/sms/pkg/platform/sentinel"
	txcontext "github.com/spwotton/sms/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists the message log in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed message log.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const messageColumns = `id, contact_id, phone, content, direction, status, classification, created_at`

func (s *PostgresStore) Append(ctx context.Context, message domain.Message) error {
	var contactID sql.NullString
	if message.ContactID != nil {
		contactID = sql.NullString{String: message.ContactID.String(), Valid: true}
	}

	query := `
		INSERT INTO messages (id, contact_id, phone, content, direction, status, classification, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		message.ID.String(),
		contactID,
		string(message.Phone),
		message.Content,
		message.Direction.String(),
		message.Status.String(),
		message.Classification.String(),
		message.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("message already appended: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id pkgdomain.MessageID) (domain.Message, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id.String())
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Message{}, fmt.Errorf("message not found: %w", sentinel.ErrNotFound)
		}
		return domain.Message{}, fmt.Errorf("select message: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id pkgdomain.MessageID, status pkgdomain.MessageStatus) error {
	result, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE messages SET status = $2 WHERE id = $1`, id.String(), status.String())
	if err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update message status rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("message not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, filter domain.MessageFilter) ([]domain.Message, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.ContactID != nil {
		args = append(args, filter.ContactID.String())
		conditions = append(conditions, "contact_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Direction != "" {
		args = append(args, filter.Direction.String())
		conditions = append(conditions, "direction = $"+strconv.Itoa(len(args)))
	}
	if filter.Classification != "" {
		args = append(args, filter.Classification.String())
		conditions = append(conditions, "classification = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status.String())
		conditions = append(conditions, "status = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + messageColumns + ` FROM messages`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit == 0 {
		limit = domain.DefaultQueryLimit
	}
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (domain.Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE classification = 'critical'),
			COUNT(*) FILTER (WHERE classification = 'stable'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM messages
	`
	var stats domain.Stats
	err := s.execer(ctx).QueryRowContext(ctx, query).Scan(
		&stats.TotalMessages,
		&stats.CriticalMessages,
		&stats.StableMessages,
		&stats.PendingMessages,
		&stats.FailedMessages,
	)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("aggregate message stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (domain.Message, error) {
	var (
		rawID          string
		contactID      sql.NullString
		phone          string
		content        string
		direction      string
		status         string
		classification string
		msg            domain.Message
	)
	err := row.Scan(&rawID, &contactID, &phone, &content, &direction, &status, &classification, &msg.CreatedAt)
	if err != nil {
		return domain.Message{}, err
	}

	id, err := pkgdomain.ParseMessageID(rawID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("stored message id: %w", err)
	}
	msg.ID = id
	if contactID.Valid {
		parsed, err := pkgdomain.ParseContactID(contactID.String)
		if err != nil {
			return domain.Message{}, fmt.Errorf("stored contact id: %w", err)
		}
		msg.ContactID = &parsed
	}
	msg.Phone = pkgdomain.Phone(phone)
	msg.Content = content
	msg.Direction = pkgdomain.Direction(direction)
	msg.Status = pkgdomain.MessageStatus(status)
	msg.Classification = pkgdomain.Classification(classification)
	return msg, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
