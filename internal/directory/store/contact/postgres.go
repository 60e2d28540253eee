package contact

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

// PostgresStore persists contacts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed contact store.
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

const contactColumns = `id, name, phone, priority, relationship, created_at, updated_at`

// priorityOrder ranks rows most urgent first; ties break on name. Must agree
// with the in-memory store ordering.
const priorityOrder = `
	CASE priority
		WHEN 'critical' THEN 0
		WHEN 'high' THEN 1
		WHEN 'medium' THEN 2
		WHEN 'low' THEN 3
		ELSE 4
	END, name`

func (s *PostgresStore) Create(ctx context.Context, contact domain.Contact) error {
	query := `
		INSERT INTO contacts (id, name, phone, priority, relationship, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		contact.ID.String(),
		contact.Name,
		string(contact.Phone),
		contact.Priority.String(),
		contact.Relationship.String(),
		contact.CreatedAt,
		contact.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("phone already registered: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id pkgdomain.ContactID) (domain.Contact, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id.String())
	contact, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Contact{}, fmt.Errorf("contact not found: %w", sentinel.ErrNotFound)
		}
		return domain.Contact{}, fmt.Errorf("select contact: %w", err)
	}
	return contact, nil
}

func (s *PostgresStore) GetByPhone(ctx context.Context, phone pkgdomain.Phone) (domain.Contact, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE phone = $1`, string(phone))
	contact, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Contact{}, fmt.Errorf("contact not found: %w", sentinel.ErrNotFound)
		}
		return domain.Contact{}, fmt.Errorf("select contact by phone: %w", err)
	}
	return contact, nil
}

func (s *PostgresStore) List(ctx context.Context, filter domain.ContactFilter) ([]domain.Contact, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Priority != "" {
		args = append(args, filter.Priority.String())
		conditions = append(conditions, "priority = $"+strconv.Itoa(len(args)))
	}
	if filter.Relationship != "" {
		args = append(args, filter.Relationship.String())
		conditions = append(conditions, "relationship = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + contactColumns + ` FROM contacts`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY ` + priorityOrder

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]domain.Contact, 0)
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return contacts, nil
}

func (s *PostgresStore) Update(ctx context.Context, contact domain.Contact) error {
	query := `
		UPDATE contacts
		SET name = $2, phone = $3, priority = $4, relationship = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		contact.ID.String(),
		contact.Name,
		string(contact.Phone),
		contact.Priority.String(),
		contact.Relationship.String(),
		contact.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("phone already registered: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("update contact: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update contact rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("contact not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count contacts: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id pkgdomain.ContactID) error {
	result, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete contact rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("contact not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (domain.Contact, error) {
	var (
		rawID        string
		name         string
		phone        string
		priority     string
		relationship string
		contact      domain.Contact
	)
	err := row.Scan(&rawID, &name, &phone, &priority, &relationship, &contact.CreatedAt, &contact.UpdatedAt)
	if err != nil {
		return domain.Contact{}, err
	}

	id, err := pkgdomain.ParseContactID(rawID)
	if err != nil {
		return domain.Contact{}, fmt.Errorf("stored contact id: %w", err)
	}
	contact.ID = id
	contact.Name = name
	contact.Phone = pkgdomain.Phone(phone)
	contact.Priority = pkgdomain.Priority(priority)
	contact.Relationship = pkgdomain.Relationship(relationship)
	return contact, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
