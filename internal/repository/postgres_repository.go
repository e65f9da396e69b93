package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"raceday/internal/model"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// Migrate creates the schema in place. The SQL mirrors the files under
// migrations/; tests and local bootstrap use this path, deployments use
// cmd/migrate.
func (r *PostgresRepository) Migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tbl_user (
			id UUID PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(100) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL,
			verification_status VARCHAR(20) NOT NULL,
			verified_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tbl_event (
			id UUID PRIMARY KEY,
			name VARCHAR(200) NOT NULL,
			location VARCHAR(200) NOT NULL,
			date TIMESTAMP NOT NULL,
			created_by UUID NOT NULL REFERENCES tbl_user(id),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tbl_event_staff (
			event_id UUID NOT NULL REFERENCES tbl_event(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES tbl_user(id),
			PRIMARY KEY (event_id, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS tbl_category (
			id UUID PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			slot_limit INTEGER,
			price_cents BIGINT,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tbl_event_category (
			event_id UUID NOT NULL REFERENCES tbl_event(id) ON DELETE CASCADE,
			category_id UUID NOT NULL REFERENCES tbl_category(id),
			registered INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (event_id, category_id)
		);`,
		`CREATE TABLE IF NOT EXISTS tbl_participant (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES tbl_user(id),
			event_id UUID NOT NULL REFERENCES tbl_event(id),
			category_id UUID NOT NULL REFERENCES tbl_category(id),
			registration_status VARCHAR(20) NOT NULL,
			payment_status VARCHAR(20) NOT NULL,
			rejection_reason TEXT,
			qr_code_data TEXT,
			qr_code_url TEXT,
			payment_ref TEXT,
			verified_at TIMESTAMP,
			verified_by UUID REFERENCES tbl_user(id),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (user_id, event_id, category_id)
		);`,
		`CREATE TABLE IF NOT EXISTS tbl_notification (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES tbl_user(id),
			title VARCHAR(200) NOT NULL,
			message TEXT NOT NULL,
			type VARCHAR(20) NOT NULL,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			k VARCHAR(255) PRIMARY KEY,
			v BYTEA,
			e BIGINT
		);`,
	}

	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	slog.Info("Database migration completed")
	return nil
}

func (r *PostgresRepository) HealthCheck(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Users

const userColumns = "id, name, email, password_hash, role, verification_status, verified_at, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var user model.User
	var verifiedAt sql.NullTime
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.Role, &user.VerificationStatus, &verifiedAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if verifiedAt.Valid {
		user.VerifiedAt = &verifiedAt.Time
	}
	return user, nil
}

func (r *PostgresRepository) CreateUser(ctx context.Context, user model.User) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tbl_user ("+userColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		user.ID, user.Name, user.Email, user.PasswordHash, user.Role,
		user.VerificationStatus, user.VerifiedAt, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailAlreadyInUse
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM tbl_user WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM tbl_user WHERE email = $1", email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) ListMarshalsByStatus(ctx context.Context, status model.VerificationStatus) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM tbl_user WHERE role = $1 AND verification_status = $2 ORDER BY created_at",
		model.RoleMarshal, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list marshals: %w", err)
	}
	defer closeRows(rows)

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan marshal: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *PostgresRepository) UpdateMarshalVerification(ctx context.Context, userID uuid.UUID, status model.VerificationStatus, verifiedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tbl_user SET verification_status = $1, verified_at = $2, updated_at = $2
		 WHERE id = $3 AND role = $4 AND verification_status = $5`,
		status, verifiedAt, userID, model.RoleMarshal, model.VerificationPending)
	if err != nil {
		return fmt.Errorf("failed to update marshal verification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing marshal from a repeated verification.
		var current model.VerificationStatus
		err := r.db.QueryRowContext(ctx,
			"SELECT verification_status FROM tbl_user WHERE id = $1 AND role = $2",
			userID, model.RoleMarshal).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check marshal status: %w", err)
		}
		return ErrAlreadyProcessed
	}
	return nil
}

// Events

const eventColumns = "id, name, location, date, created_by, created_at, updated_at"

func scanEvent(row interface{ Scan(...any) error }) (model.Event, error) {
	var event model.Event
	err := row.Scan(&event.ID, &event.Name, &event.Location, &event.Date,
		&event.CreatedBy, &event.CreatedAt, &event.UpdatedAt)
	return event, err
}

func (r *PostgresRepository) CreateEvent(ctx context.Context, event model.Event) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tbl_event ("+eventColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		event.ID, event.Name, event.Location, event.Date, event.CreatedBy,
		event.CreatedAt, event.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetEventByID(ctx context.Context, id uuid.UUID) (model.Event, error) {
	event, err := scanEvent(r.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM tbl_event WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Event{}, ErrEventNotFound
		}
		return model.Event{}, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

func (r *PostgresRepository) ListEvents(ctx context.Context) ([]model.Event, error) {
	return r.listEvents(ctx, "SELECT "+eventColumns+" FROM tbl_event ORDER BY date")
}

func (r *PostgresRepository) ListEventsByOrganizer(ctx context.Context, userID uuid.UUID) ([]model.Event, error) {
	return r.listEvents(ctx,
		`SELECT `+eventColumns+` FROM tbl_event e
		 WHERE e.created_by = $1
		    OR EXISTS (SELECT 1 FROM tbl_event_staff s WHERE s.event_id = e.id AND s.user_id = $1)
		 ORDER BY e.date`, userID)
}

func (r *PostgresRepository) listEvents(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer closeRows(rows)

	var events []model.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *PostgresRepository) UpdateEvent(ctx context.Context, event model.Event) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE tbl_event SET name = $1, location = $2, date = $3, updated_at = $4 WHERE id = $5",
		event.Name, event.Location, event.Date, event.UpdatedAt, event.ID)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return requireAffected(result, ErrEventNotFound)
}

func (r *PostgresRepository) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM tbl_event WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return requireAffected(result, ErrEventNotFound)
}

func (r *PostgresRepository) AddEventStaff(ctx context.Context, eventID, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tbl_event_staff (event_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		eventID, userID)
	if err != nil {
		return fmt.Errorf("failed to add event staff: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RemoveEventStaff(ctx context.Context, eventID, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM tbl_event_staff WHERE event_id = $1 AND user_id = $2", eventID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove event staff: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListEventStaff(ctx context.Context, eventID uuid.UUID) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.name, u.email, u.password_hash, u.role, u.verification_status, u.verified_at, u.created_at, u.updated_at
		 FROM tbl_user u JOIN tbl_event_staff s ON s.user_id = u.id
		 WHERE s.event_id = $1 ORDER BY u.name`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list event staff: %w", err)
	}
	defer closeRows(rows)

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staff member: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *PostgresRepository) IsEventOrganizer(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM tbl_event e
			LEFT JOIN tbl_event_staff s ON s.event_id = e.id AND s.user_id = $2
			WHERE e.id = $1 AND (e.created_by = $2 OR s.user_id IS NOT NULL)
		)`, eventID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check event ownership: %w", err)
	}
	return ok, nil
}

// Categories

func scanCategory(row interface{ Scan(...any) error }) (model.Category, error) {
	var category model.Category
	var slotLimit sql.NullInt64
	var priceCents sql.NullInt64
	err := row.Scan(&category.ID, &category.Name, &slotLimit, &priceCents, &category.CreatedAt)
	if err != nil {
		return model.Category{}, err
	}
	if slotLimit.Valid {
		limit := int(slotLimit.Int64)
		category.SlotLimit = &limit
	}
	if priceCents.Valid {
		price := priceCents.Int64
		category.PriceCents = &price
	}
	return category, nil
}

func (r *PostgresRepository) CreateCategory(ctx context.Context, category model.Category) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tbl_category (id, name, slot_limit, price_cents, created_at) VALUES ($1, $2, $3, $4, $5)",
		category.ID, category.Name, category.SlotLimit, category.PriceCents, category.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetCategoryByID(ctx context.Context, id uuid.UUID) (model.Category, error) {
	category, err := scanCategory(r.db.QueryRowContext(ctx,
		"SELECT id, name, slot_limit, price_cents, created_at FROM tbl_category WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Category{}, ErrCategoryNotFound
		}
		return model.Category{}, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}

func (r *PostgresRepository) ListEventCategories(ctx context.Context, eventID uuid.UUID) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.slot_limit, c.price_cents, c.created_at
		 FROM tbl_category c JOIN tbl_event_category ec ON ec.category_id = c.id
		 WHERE ec.event_id = $1 ORDER BY c.name`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list event categories: %w", err)
	}
	defer closeRows(rows)

	var categories []model.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (r *PostgresRepository) LinkCategory(ctx context.Context, eventID, categoryID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tbl_event_category (event_id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		eventID, categoryID)
	if err != nil {
		return fmt.Errorf("failed to link category: %w", err)
	}
	return nil
}

// UnlinkCategory removes the event link only. The category itself survives as
// long as other events still reference it.
func (r *PostgresRepository) UnlinkCategory(ctx context.Context, eventID, categoryID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM tbl_event_category WHERE event_id = $1 AND category_id = $2", eventID, categoryID)
	if err != nil {
		return fmt.Errorf("failed to unlink category: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	var participants int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tbl_participant WHERE category_id = $1", id).Scan(&participants); err != nil {
		return fmt.Errorf("failed to count category participants: %w", err)
	}
	if participants > 0 {
		return ErrCategoryInUse
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM tbl_event_category WHERE category_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete category links: %w", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM tbl_category WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if err := requireAffected(result, ErrCategoryNotFound); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountCategoryParticipants(ctx context.Context, categoryID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tbl_participant WHERE category_id = $1", categoryID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count category participants: %w", err)
	}
	return count, nil
}

// Participants

const participantColumns = "id, user_id, event_id, category_id, registration_status, payment_status, rejection_reason, qr_code_data, qr_code_url, payment_ref, verified_at, verified_by, created_at, updated_at"

func scanParticipant(row interface{ Scan(...any) error }) (model.Participant, error) {
	var p model.Participant
	var reason, qrData, qrURL, paymentRef sql.NullString
	var verifiedAt sql.NullTime
	var verifiedBy uuid.NullUUID
	err := row.Scan(&p.ID, &p.UserID, &p.EventID, &p.CategoryID,
		&p.RegistrationStatus, &p.PaymentStatus, &reason, &qrData, &qrURL,
		&paymentRef, &verifiedAt, &verifiedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Participant{}, err
	}
	if reason.Valid {
		p.RejectionReason = &reason.String
	}
	if qrData.Valid {
		p.QRCodeData = &qrData.String
	}
	if qrURL.Valid {
		p.QRCodeURL = &qrURL.String
	}
	if paymentRef.Valid {
		p.PaymentRef = &paymentRef.String
	}
	if verifiedAt.Valid {
		p.VerifiedAt = &verifiedAt.Time
	}
	if verifiedBy.Valid {
		p.VerifiedBy = &verifiedBy.UUID
	}
	return p, nil
}

func (r *PostgresRepository) CreateParticipant(ctx context.Context, participant model.Participant) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	// Claim a slot with a conditional update so concurrent registrations
	// cannot exceed the limit.
	result, err := tx.ExecContext(ctx,
		`UPDATE tbl_event_category ec SET registered = registered + 1
		 FROM tbl_category c
		 WHERE ec.event_id = $1 AND ec.category_id = $2 AND c.id = ec.category_id
		   AND (c.slot_limit IS NULL OR ec.registered < c.slot_limit)`,
		participant.EventID, participant.CategoryID)
	if err != nil {
		return fmt.Errorf("failed to claim category slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Either the category is not linked to the event or it is full.
		var linked bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM tbl_event_category WHERE event_id = $1 AND category_id = $2)",
			participant.EventID, participant.CategoryID).Scan(&linked); err != nil {
			return fmt.Errorf("failed to check category link: %w", err)
		}
		if !linked {
			return ErrCategoryNotFound
		}
		return ErrCategoryFull
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO tbl_participant ("+participantColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)",
		participant.ID, participant.UserID, participant.EventID, participant.CategoryID,
		participant.RegistrationStatus, participant.PaymentStatus, participant.RejectionReason,
		participant.QRCodeData, participant.QRCodeURL, participant.PaymentRef,
		participant.VerifiedAt, participant.VerifiedBy, participant.CreatedAt, participant.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRegistration
		}
		return fmt.Errorf("failed to insert participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetParticipantByID(ctx context.Context, id uuid.UUID) (model.Participant, error) {
	p, err := scanParticipant(r.db.QueryRowContext(ctx,
		"SELECT "+participantColumns+" FROM tbl_participant WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Participant{}, ErrParticipantNotFound
		}
		return model.Participant{}, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) GetParticipantForOrganizer(ctx context.Context, participantID, actorID uuid.UUID) (model.Participant, error) {
	p, err := scanParticipant(r.db.QueryRowContext(ctx,
		`SELECT p.id, p.user_id, p.event_id, p.category_id, p.registration_status, p.payment_status,
		        p.rejection_reason, p.qr_code_data, p.qr_code_url, p.payment_ref,
		        p.verified_at, p.verified_by, p.created_at, p.updated_at
		 FROM tbl_participant p
		 JOIN tbl_event e ON e.id = p.event_id
		 LEFT JOIN tbl_event_staff s ON s.event_id = e.id AND s.user_id = $2
		 WHERE p.id = $1 AND (e.created_by = $2 OR s.user_id IS NOT NULL)`,
		participantID, actorID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Outside the actor's authority looks the same as missing.
			return model.Participant{}, ErrParticipantNotFound
		}
		return model.Participant{}, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) ListParticipantsByEvent(ctx context.Context, eventID uuid.UUID) ([]model.Participant, error) {
	return r.listParticipants(ctx,
		"SELECT "+participantColumns+" FROM tbl_participant WHERE event_id = $1 ORDER BY created_at", eventID)
}

func (r *PostgresRepository) ListParticipantsByUser(ctx context.Context, userID uuid.UUID) ([]model.Participant, error) {
	return r.listParticipants(ctx,
		"SELECT "+participantColumns+" FROM tbl_participant WHERE user_id = $1 ORDER BY created_at", userID)
}

func (r *PostgresRepository) listParticipants(ctx context.Context, query string, args ...any) ([]model.Participant, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer closeRows(rows)

	var participants []model.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// VerifyParticipant applies the combined transition in a single conditional
// UPDATE. Two racing verifications both read pending, but only one statement
// finds payment_status = 'pending'; the loser sees zero rows and gets
// ErrAlreadyProcessed.
func (r *PostgresRepository) VerifyParticipant(ctx context.Context, params VerifyParticipantParams) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tbl_participant
		 SET registration_status = $1, payment_status = $2, rejection_reason = $3,
		     verified_at = $4, verified_by = $5, updated_at = $4
		 WHERE id = $6 AND payment_status = $7`,
		params.RegistrationStatus, params.PaymentStatus, params.RejectionReason,
		params.VerifiedAt, params.VerifiedBy, params.ID, model.PaymentPending)
	if err != nil {
		return fmt.Errorf("failed to verify participant: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		var status model.PaymentStatus
		err := r.db.QueryRowContext(ctx,
			"SELECT payment_status FROM tbl_participant WHERE id = $1", params.ID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrParticipantNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check participant status: %w", err)
		}
		return ErrAlreadyProcessed
	}
	return nil
}

// SetParticipantCredential writes both credential fields together, guarded on
// no credential being present, so a retry can never leave partial state.
func (r *PostgresRepository) SetParticipantCredential(ctx context.Context, id uuid.UUID, payload, url string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tbl_participant SET qr_code_data = $1, qr_code_url = $2, updated_at = $3
		 WHERE id = $4 AND qr_code_data IS NULL`,
		payload, url, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set participant credential: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM tbl_participant WHERE id = $1)", id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check participant: %w", err)
		}
		if !exists {
			return ErrParticipantNotFound
		}
		return ErrCredentialExists
	}
	return nil
}

func (r *PostgresRepository) SetParticipantPaymentRef(ctx context.Context, id uuid.UUID, ref string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE tbl_participant SET payment_ref = $1, updated_at = $2 WHERE id = $3",
		ref, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set payment ref: %w", err)
	}
	return requireAffected(result, ErrParticipantNotFound)
}

// Notifications

func (r *PostgresRepository) CreateNotification(ctx context.Context, notification model.Notification) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tbl_notification (id, user_id, title, message, type, is_read, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		notification.ID, notification.UserID, notification.Title, notification.Message,
		notification.Type, notification.IsRead, notification.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListUnreadNotifications(ctx context.Context, userID uuid.UUID) ([]model.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, message, type, is_read, created_at
		 FROM tbl_notification WHERE user_id = $1 AND is_read = FALSE
		 ORDER BY created_at DESC LIMIT 10`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer closeRows(rows)

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (r *PostgresRepository) GetAdminStats(ctx context.Context) (model.AdminStats, error) {
	var stats model.AdminStats

	queries := []struct {
		query string
		args  []any
		dest  *int
	}{
		{"SELECT COUNT(*) FROM tbl_user", nil, &stats.TotalUsers},
		{"SELECT COUNT(*) FROM tbl_event", nil, &stats.TotalEvents},
		{"SELECT COUNT(*) FROM tbl_participant", nil, &stats.TotalParticipants},
		{"SELECT COUNT(*) FROM tbl_user WHERE role = $1 AND verification_status = $2",
			[]any{model.RoleMarshal, model.VerificationPending}, &stats.PendingMarshals},
		{"SELECT COUNT(*) FROM tbl_participant WHERE payment_status = $1",
			[]any{model.PaymentPending}, &stats.PendingParticipant},
		{"SELECT COUNT(*) FROM tbl_participant WHERE DATE(created_at) = CURRENT_DATE", nil, &stats.TodayRegistrations},
	}

	for _, q := range queries {
		if err := r.db.QueryRowContext(ctx, q.query, q.args...).Scan(q.dest); err != nil {
			return model.AdminStats{}, fmt.Errorf("failed to get admin stats: %w", err)
		}
	}
	return stats, nil
}

func requireAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		slog.Error("failed to close rows", "error", err)
	}
}
