package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/andriansyh/safesight/internal/domain/analysis"
	domain "github.com/andriansyh/safesight/internal/domain/inspections"
)

type InspectionRepository struct {
	db *sql.DB
}

func NewInspectionRepository(db *sql.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

const inspectionColumns = `id, user_id, image_url, hazard_count, risk_score, safety_grade,
       analysis_json, status, error_message, created_at, completed_at`

// Create inserts the initial row before the model call
func (r *InspectionRepository) Create(ctx context.Context, ins *domain.Inspection) error {
	const q = `
INSERT INTO inspections (id, user_id, image_url, status, created_at)
VALUES (?,?,?,?,?);
`
	created := ins.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q, ins.ID, ins.UserID, ins.ImageURL, ins.Status, created)
	return err
}

// MarkCompleted stores the validated analysis payload and derived fields
func (r *InspectionRepository) MarkCompleted(ctx context.Context, id domain.InspectionID, hazardCount, riskScore int, grade string, payloadJSON string, completedAt time.Time) error {
	const q = `
UPDATE inspections
SET status = ?,
    hazard_count = ?,
    risk_score = ?,
    safety_grade = ?,
    analysis_json = ?,
    completed_at = ?
WHERE id = ?;
`
	_, err := r.db.ExecContext(ctx, q,
		domain.StatusCompleted, hazardCount, riskScore, grade, payloadJSON, completedAt.UTC(), id,
	)
	return err
}

// MarkFailed records a failed attempt with a truncated diagnostic message
func (r *InspectionRepository) MarkFailed(ctx context.Context, id domain.InspectionID, message string, completedAt time.Time) error {
	const q = `
UPDATE inspections
SET status = ?, error_message = ?, completed_at = ?
WHERE id = ?;
`
	_, err := r.db.ExecContext(ctx, q, domain.StatusFailed, truncate(message, 500), completedAt.UTC(), id)
	return err
}

func (r *InspectionRepository) Get(ctx context.Context, id domain.InspectionID) (*domain.Inspection, error) {
	q := fmt.Sprintf(`SELECT %s FROM inspections WHERE id=? LIMIT 1;`, inspectionColumns)
	ins, err := scanInspection(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return ins, err
}

// ListByUser returns the caller's inspections, newest first
func (r *InspectionRepository) ListByUser(ctx context.Context, userID int64, page, pageSize int) (domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	q := fmt.Sprintf(`
SELECT %s FROM inspections
WHERE user_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;`, inspectionColumns)

	rows, err := r.db.QueryContext(ctx, q, userID, pageSize, offset)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying inspections: %w", err)
	}
	defer rows.Close()

	list, err := collectInspections(rows)
	if err != nil {
		return domain.PaginatedResult{}, err
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inspections WHERE user_id=?;`, userID).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("counting inspections: %w", err)
	}

	return paginated(list, page, pageSize, total), nil
}

var sortColumns = map[string]string{
	"created_at":   "created_at",
	"risk_score":   "risk_score",
	"hazard_count": "hazard_count",
}

// Paginate is the admin listing with optional filters
func (r *InspectionRepository) Paginate(ctx context.Context, filter domain.AdminFilter, page, pageSize int) (domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	where, args := buildAdminWhere(filter)

	sortBy, ok := sortColumns[filter.SortBy]
	if !ok {
		sortBy = "created_at"
	}
	order := "DESC"
	if filter.Order == "asc" {
		order = "ASC"
	}

	q := fmt.Sprintf(`SELECT %s FROM inspections %s ORDER BY %s %s, id DESC LIMIT ? OFFSET ?;`,
		inspectionColumns, where, sortBy, order)
	rows, err := r.db.QueryContext(ctx, q, append(args, pageSize, offset)...)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying inspections: %w", err)
	}
	defer rows.Close()

	list, err := collectInspections(rows)
	if err != nil {
		return domain.PaginatedResult{}, err
	}

	var total int64
	cq := fmt.Sprintf(`SELECT COUNT(*) FROM inspections %s;`, where)
	if err := r.db.QueryRowContext(ctx, cq, args...).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("counting inspections: %w", err)
	}

	return paginated(list, page, pageSize, total), nil
}

// Stats aggregates counts, status breakdown, average risk and top users
func (r *InspectionRepository) Stats(ctx context.Context, topN int) (domain.Stats, error) {
	if topN <= 0 {
		topN = 10
	}

	var st domain.Stats
	const q = `
SELECT COUNT(*),
       COALESCE(SUM(status='pending'),0),
       COALESCE(SUM(status='processing'),0),
       COALESCE(SUM(status='completed'),0),
       COALESCE(SUM(status='failed'),0),
       COALESCE(AVG(CASE WHEN status='completed' THEN risk_score END),0)
FROM inspections;
`
	if err := r.db.QueryRowContext(ctx, q).Scan(
		&st.TotalInspections,
		&st.ByStatus.Pending, &st.ByStatus.Processing,
		&st.ByStatus.Completed, &st.ByStatus.Failed,
		&st.AverageRiskScore,
	); err != nil {
		return domain.Stats{}, fmt.Errorf("aggregating inspections: %w", err)
	}

	const tq = `
SELECT u.id, u.email, u.monthly_inspections, COUNT(i.id)
FROM users u
LEFT JOIN inspections i ON i.user_id = u.id
GROUP BY u.id, u.email, u.monthly_inspections
ORDER BY u.monthly_inspections DESC, COUNT(i.id) DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, tq, topN)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("querying top users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ua domain.UserActivity
		if err := rows.Scan(&ua.UserID, &ua.Email, &ua.MonthlyCount, &ua.TotalCount); err != nil {
			return domain.Stats{}, err
		}
		st.TopUsers = append(st.TopUsers, ua)
	}
	return st, rows.Err()
}

func buildAdminWhere(filter domain.AdminFilter) (string, []any) {
	where := "WHERE 1=1"
	var args []any
	if filter.UserID > 0 {
		where += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.Grade != "" {
		where += " AND safety_grade = ?"
		args = append(args, filter.Grade)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if !filter.From.IsZero() {
		where += " AND created_at >= ?"
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		where += " AND created_at <= ?"
		args = append(args, filter.To.UTC())
	}
	return where, args
}

func collectInspections(rows *sql.Rows) ([]*domain.Inspection, error) {
	var out []*domain.Inspection
	for rows.Next() {
		ins, err := scanInspection(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}

type rowLike interface {
	Scan(dest ...any) error
}

func scanInspection(row rowLike) (*domain.Inspection, error) {
	var (
		ins          domain.Inspection
		grade        sql.NullString
		analysisJSON sql.NullString
		errMsg       sql.NullString
		completedAt  sql.NullTime
	)
	if err := row.Scan(
		&ins.ID, &ins.UserID, &ins.ImageURL, &ins.HazardCount, &ins.RiskScore,
		&grade, &analysisJSON, &ins.Status, &errMsg, &ins.CreatedAt, &completedAt,
	); err != nil {
		return nil, err
	}
	ins.SafetyGrade = grade.String
	ins.ErrorMessage = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		ins.CompletedAt = &t
	}
	if analysisJSON.Valid && analysisJSON.String != "" {
		var res analysis.Result
		if err := json.Unmarshal([]byte(analysisJSON.String), &res); err == nil {
			ins.Analysis = &res
		}
	}
	return &ins, nil
}

func paginated(list []*domain.Inspection, page, pageSize int, total int64) domain.PaginatedResult {
	return domain.PaginatedResult{
		Data:       list,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}
}
