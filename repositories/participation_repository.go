package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/models"
	"github.com/lib/pq"
)

var (
	ErrParticipationNotFound   = errors.New("participation not found")
	ErrParticipationRefInvalid = errors.New("participation event or user does not exist")

	// ErrParticipationConflict is the (event_id, user_id) uniqueness violation.
	ErrParticipationConflict = errors.New("participation already exists for this event and user")

	// ErrDuplicateTransaction is the payment_transaction_id uniqueness violation.
	ErrDuplicateTransaction = errors.New("payment transaction already recorded")

	// ErrParticipationStale means the row was no longer in the expected status
	// when the update ran.
	ErrParticipationStale = errors.New("participation status changed concurrently")
)

type ParticipationRepository interface {
	GetByEventAndUser(ctx context.Context, exec SQLExecutor, eventID, userID int) (*models.Participation, error)
	// GetByEventAndUserForUpdate takes a row lock. exec must be a transaction.
	GetByEventAndUserForUpdate(ctx context.Context, exec SQLExecutor, eventID, userID int) (*models.Participation, error)
	GetByTransactionID(ctx context.Context, exec SQLExecutor, transactionID string) (*models.Participation, error)
	Create(ctx context.Context, exec SQLExecutor, p *models.Participation) error
	// UpdateStatus moves p to its current Status only if the stored row is still in from.
	UpdateStatus(ctx context.Context, exec SQLExecutor, p *models.Participation, from models.ParticipationStatus) error
	// Reopen rewrites a row in from with p's status, quantity, amount and transaction id,
	// clearing reviewed_at.
	Reopen(ctx context.Context, exec SQLExecutor, p *models.Participation, from models.ParticipationStatus) error
	ListByEvent(ctx context.Context, eventID int, status models.ParticipationStatus) ([]models.Application, error)
	// ListForHost lists participations on every event hosted by hostID. When
	// reviewedOnly is set, rows a host never decided on are skipped.
	ListForHost(ctx context.Context, hostID int, statuses []models.ParticipationStatus, reviewedOnly bool) ([]models.Application, error)
}

type postgresParticipationRepository struct {
	db *sql.DB
}

func NewPostgresParticipationRepository(db *sql.DB) ParticipationRepository {
	return &postgresParticipationRepository{db: db}
}

func (r *postgresParticipationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const participationColumns = `p.id, p.event_id, p.user_id, p.status, p.ticket_quantity, p.total_amount,
	p.payment_transaction_id, p.reviewed_at, p.created_at, p.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanParticipation(row rowScanner, extra ...interface{}) (*models.Participation, error) {
	var (
		p        models.Participation
		quantity sql.NullInt64
		txID     sql.NullString
		reviewed sql.NullTime
	)
	dest := []interface{}{
		&p.ID, &p.EventID, &p.UserID, &p.Status, &quantity, &p.TotalAmount,
		&txID, &reviewed, &p.CreatedAt, &p.UpdatedAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	p.TicketQuantity = nullIntPtr(quantity)
	if txID.Valid {
		p.PaymentTransactionID = &txID.String
	}
	if reviewed.Valid {
		t := reviewed.Time
		p.ReviewedAt = &t
	}
	return &p, nil
}

func (r *postgresParticipationRepository) getOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Participation, error) {
	p, err := scanParticipation(r.getExecutor(exec).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipationNotFound
		}
		return nil, fmt.Errorf("failed to get participation: %w", err)
	}
	return p, nil
}

func (r *postgresParticipationRepository) GetByEventAndUser(ctx context.Context, exec SQLExecutor, eventID, userID int) (*models.Participation, error) {
	query := `SELECT ` + participationColumns + `
		FROM participations p
		WHERE p.event_id = $1 AND p.user_id = $2`
	return r.getOne(ctx, exec, query, eventID, userID)
}

func (r *postgresParticipationRepository) GetByEventAndUserForUpdate(ctx context.Context, exec SQLExecutor, eventID, userID int) (*models.Participation, error) {
	query := `SELECT ` + participationColumns + `
		FROM participations p
		WHERE p.event_id = $1 AND p.user_id = $2
		FOR UPDATE`
	return r.getOne(ctx, exec, query, eventID, userID)
}

func (r *postgresParticipationRepository) GetByTransactionID(ctx context.Context, exec SQLExecutor, transactionID string) (*models.Participation, error) {
	query := `SELECT ` + participationColumns + `
		FROM participations p
		WHERE p.payment_transaction_id = $1`
	return r.getOne(ctx, exec, query, transactionID)
}

func (r *postgresParticipationRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Participation) error {
	query := `
		INSERT INTO participations
			(event_id, user_id, status, ticket_quantity, total_amount, payment_transaction_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id, created_at, updated_at`

	now := p.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		p.EventID,
		p.UserID,
		p.Status,
		p.TicketQuantity,
		p.TotalAmount,
		p.PaymentTransactionID,
		now,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		return mapParticipationWriteError(err, "create")
	}
	return nil
}

func (r *postgresParticipationRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, p *models.Participation, from models.ParticipationStatus) error {
	query := `
		UPDATE participations
		SET status = $3, reviewed_at = COALESCE($4, reviewed_at), updated_at = $5
		WHERE id = $1 AND status = $2`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, p.ID, from, p.Status, p.ReviewedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update participation %d status: %w", p.ID, err)
	}
	return checkAffectedRows(result, ErrParticipationStale)
}

func (r *postgresParticipationRepository) Reopen(ctx context.Context, exec SQLExecutor, p *models.Participation, from models.ParticipationStatus) error {
	query := `
		UPDATE participations
		SET status = $3, ticket_quantity = $4, total_amount = $5, payment_transaction_id = $6,
			reviewed_at = NULL, updated_at = $7
		WHERE id = $1 AND status = $2`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		p.ID, from, p.Status, p.TicketQuantity, p.TotalAmount, p.PaymentTransactionID, p.UpdatedAt,
	)
	if err != nil {
		return mapParticipationWriteError(err, "reopen")
	}
	p.ReviewedAt = nil
	return checkAffectedRows(result, ErrParticipationStale)
}

func (r *postgresParticipationRepository) ListByEvent(ctx context.Context, eventID int, status models.ParticipationStatus) ([]models.Application, error) {
	query := `SELECT ` + participationColumns + `, e.title, u.id, u.full_name, u.username, u.email
		FROM participations p
		JOIN events e ON e.id = p.event_id
		LEFT JOIN users u ON u.id = p.user_id
		WHERE p.event_id = $1 AND p.status = $2
		ORDER BY p.created_at ASC, p.id ASC`

	return r.listApplications(ctx, query, eventID, status)
}

func (r *postgresParticipationRepository) ListForHost(ctx context.Context, hostID int, statuses []models.ParticipationStatus, reviewedOnly bool) ([]models.Application, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	query := `SELECT ` + participationColumns + `, e.title, u.id, u.full_name, u.username, u.email
		FROM participations p
		JOIN events e ON e.id = p.event_id
		LEFT JOIN users u ON u.id = p.user_id
		WHERE e.host_id = $1 AND p.status::text = ANY($2)`
	if reviewedOnly {
		query += ` AND p.reviewed_at IS NOT NULL`
	}
	query += ` ORDER BY p.updated_at DESC, p.id DESC`

	return r.listApplications(ctx, query, hostID, pq.Array(names))
}

func (r *postgresParticipationRepository) listApplications(ctx context.Context, query string, args ...interface{}) ([]models.Application, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	applications := make([]models.Application, 0)
	for rows.Next() {
		var (
			title    string
			userID   sql.NullInt64
			fullName sql.NullString
			username sql.NullString
			email    sql.NullString
		)
		p, err := scanParticipation(rows, &title, &userID, &fullName, &username, &email)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application row: %w", err)
		}
		app := models.Application{Participation: *p, EventTitle: title}
		if userID.Valid {
			app.Applicant = &models.User{
				ID:       int(userID.Int64),
				FullName: fullName.String,
				Username: username.String,
				Email:    email.String,
			}
		}
		applications = append(applications, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating application rows: %w", err)
	}
	return applications, nil
}

func mapParticipationWriteError(err error, op string) error {
	if pqErr, ok := asPQError(err); ok {
		switch pqErr.Code {
		case "23505": // unique_violation
			switch pqErr.Constraint {
			case "participations_payment_transaction_id_key":
				return ErrDuplicateTransaction
			case "participations_event_id_user_id_key":
				return ErrParticipationConflict
			}
		case "23503": // foreign_key_violation
			return ErrParticipationRefInvalid
		}
	}
	return fmt.Errorf("failed to %s participation: %w", op, err)
}
