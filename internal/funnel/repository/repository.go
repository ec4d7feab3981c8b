package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("application not found")
	// ErrNotPending is returned when a review action targets an application
	// that was already approved, rejected or expired.
	ErrNotPending = errors.New("application is not pending")
)

// Application statuses.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
	StatusExpired  = "EXPIRED"
)

type Assessment struct {
	ID             uuid.UUID
	LeadID         uuid.UUID
	Answers        map[string]int
	Score          int
	Result         string
	Recommendation string
	CreatedAt      time.Time
}

type Application struct {
	ID                   uuid.UUID
	LeadID               uuid.UUID
	LeadEmail            string
	LeadFirstName        string
	LeadLastName         string
	Program              string
	Commitment           string
	Experience           string
	Goals                string
	Score                int
	Rating               string
	Status               string
	PaymentLink          *string
	PaymentLinkExpiresAt *time.Time
	ReviewedAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type InsertAssessmentParams struct {
	LeadID         uuid.UUID
	Answers        map[string]int
	Score          int
	Result         string
	Recommendation string
}

type InsertApplicationParams struct {
	LeadID     uuid.UUID
	Program    string
	Commitment string
	Experience string
	Goals      string
	Score      int
	Rating     string
}

type ListApplicationsParams struct {
	Status *string
	Limit  int
	Offset int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const applicationSelect = `
	SELECT a.id, a.lead_id, l.email, l.first_name, l.last_name,
		a.program, a.commitment, a.experience, a.goals, a.score, a.rating, a.status,
		a.payment_link, a.payment_link_expires_at, a.reviewed_at, a.created_at, a.updated_at
	FROM applications a
	JOIN leads l ON l.id = a.lead_id`

func (r *Repository) InsertAssessment(ctx context.Context, p InsertAssessmentParams) (Assessment, error) {
	answers := p.Answers
	if answers == nil {
		answers = map[string]int{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return Assessment{}, fmt.Errorf("marshal answers: %w", err)
	}

	out := Assessment{
		LeadID:         p.LeadID,
		Answers:        answers,
		Score:          p.Score,
		Result:         p.Result,
		Recommendation: p.Recommendation,
	}
	err = r.pool.QueryRow(ctx, `
		INSERT INTO assessments (lead_id, answers, score, result, recommendation)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		p.LeadID, raw, p.Score, p.Result, p.Recommendation,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return Assessment{}, fmt.Errorf("insert assessment: %w", err)
	}
	return out, nil
}

// ListAssessmentsByLead returns a lead's assessments, newest first.
func (r *Repository) ListAssessmentsByLead(ctx context.Context, leadID uuid.UUID) ([]Assessment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, answers, score, result, recommendation, created_at
		FROM assessments
		WHERE lead_id = $1
		ORDER BY created_at DESC, id DESC`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Assessment, 0)
	for rows.Next() {
		var a Assessment
		var raw []byte
		if err := rows.Scan(&a.ID, &a.LeadID, &raw, &a.Score, &a.Result, &a.Recommendation, &a.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &a.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) InsertApplication(ctx context.Context, p InsertApplicationParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO applications (lead_id, program, commitment, experience, goals, score, rating, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		p.LeadID, p.Program, p.Commitment, p.Experience, p.Goals, p.Score, p.Rating, StatusPending,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert application: %w", err)
	}
	return id, nil
}

func (r *Repository) GetApplication(ctx context.Context, id uuid.UUID) (Application, error) {
	row := r.pool.QueryRow(ctx, applicationSelect+` WHERE a.id = $1`, id)
	app, err := scanApplication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Application{}, ErrNotFound
	}
	return app, err
}

// ListApplications returns applications newest first with the total count
// matching the filter.
func (r *Repository) ListApplications(ctx context.Context, p ListApplicationsParams) ([]Application, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM applications
		WHERE ($1::text IS NULL OR status = $1)`, p.Status,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, applicationSelect+`
		WHERE ($1::text IS NULL OR a.status = $1)
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $2 OFFSET $3`, p.Status, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, app)
	}
	return items, total, rows.Err()
}

// Approve moves a pending application to APPROVED with its payment link.
func (r *Repository) Approve(ctx context.Context, id uuid.UUID, paymentLink string, expiresAt time.Time) (Application, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE applications
		SET status = $2, payment_link = $3, payment_link_expires_at = $4, reviewed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $5`,
		id, StatusApproved, paymentLink, expiresAt, StatusPending)
	if err != nil {
		return Application{}, fmt.Errorf("approve application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Application{}, r.reviewMiss(ctx, id)
	}
	return r.GetApplication(ctx, id)
}

func (r *Repository) Reject(ctx context.Context, id uuid.UUID) (Application, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE applications
		SET status = $2, reviewed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3`,
		id, StatusRejected, StatusPending)
	if err != nil {
		return Application{}, fmt.Errorf("reject application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Application{}, r.reviewMiss(ctx, id)
	}
	return r.GetApplication(ctx, id)
}

// ExpirePaymentLinks marks approved applications whose link lapsed before now.
func (r *Repository) ExpirePaymentLinks(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE applications
		SET status = $1, updated_at = now()
		WHERE status = $2 AND payment_link_expires_at IS NOT NULL AND payment_link_expires_at < $3`,
		StatusExpired, StatusApproved, now)
	if err != nil {
		return 0, fmt.Errorf("expire payment links: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) reviewMiss(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM applications WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrNotPending
}

func scanApplication(row pgx.Row) (Application, error) {
	var a Application
	err := row.Scan(
		&a.ID, &a.LeadID, &a.LeadEmail, &a.LeadFirstName, &a.LeadLastName,
		&a.Program, &a.Commitment, &a.Experience, &a.Goals, &a.Score, &a.Rating, &a.Status,
		&a.PaymentLink, &a.PaymentLinkExpiresAt, &a.ReviewedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}
