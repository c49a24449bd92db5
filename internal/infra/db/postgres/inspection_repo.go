package postgres

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

func (r *InspectionRepository) Create(ctx context.Context, ins *domain.Inspection) error {
	const q = `
INSERT INTO inspections (id, user_id, image_url, status, created_at)
VALUES ($1,$2,$3,$4,$5);
`
	created := ins.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q, ins.ID, ins.UserID, ins.ImageURL, ins.Status, created)
	return err
}

func (r *InspectionRepository) MarkCompleted(ctx context.Context, id domain.InspectionID, hazardCount, riskScore int, grade string, payloadJSON string, completedAt time.Time) error {
	const q = `
UPDATE inspections
SET status = $1, hazard_count = $2, risk_score = $3, safety_grade = $4,
    analysis_json = $5, completed_at = $6
WHERE id = $7;
`
	_, err := r.db.ExecContext(ctx, q,
		domain.StatusCompleted, hazardCount, riskScore, grade, payloadJSON, completedAt.UTC(), id,
	)
	return err
}

func (r *InspectionRepository) MarkFailed(ctx context.Context, id domain.InspectionID, message string, completedAt time.Time) error {
	const q = `
UPDATE inspections
SET status = $1, error_message = $2, completed_at = $3
WHERE id = $4;
`
	_, err := r.db.ExecContext(ctx, q, domain.StatusFailed, truncate(message, 500), completedAt.UTC(), id)
	return err
}

func (r *InspectionRepository) Get(ctx context.Context, id domain.InspectionID) (*domain.Inspection, error) {
	q := fmt.Sprintf(`SELECT %s FROM inspections WHERE id=$1 LIMIT 1;`, inspectionColumns)
	ins, err := scanInspection(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return ins, err
}

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
WHERE user_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;`, inspectionColumns)

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
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inspections WHERE user_id=$1;`, userID).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("counting inspections: %w", err)
	}

	return paginated(list, page, pageSize, total), nil
}

var sortColumns = map[string]string{
	"created_at":   "created_at",
	"risk_score":   "risk_score",
	"hazard_count": "hazard_count",
}

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

	q := fmt.Sprintf(`SELECT %s FROM inspections %s ORDER BY %s %s, id DESC LIMIT $%d OFFSET $%d;`,
		inspectionColumns, where, sortBy, order, len(args)+1, len(args)+2)
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

func (r *InspectionRepository) Stats(ctx context.Context, topN int) (domain.Stats, error) {
	if topN <= 0 {
		topN = 10
	}

	var st domain.Stats
	const q = `
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN status='pending' THEN 1 ELSE 0 END),0),
       COALESCE(SUM(CASE WHEN status='processing' THEN 1 ELSE 0 END),0),
       COALESCE(SUM(CASE WHEN status='completed' THEN 1 ELSE 0 END),0),
       COALESCE(SUM(CASE WHEN status='failed' THEN 1 ELSE 0 END),0),
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
LIMIT $1;
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
	add := func(clause string, v any) {
		args = append(args, v)
		where += fmt.Sprintf(" AND %s $%d", clause, len(args))
	}
	if filter.UserID > 0 {
		add("user_id =", filter.UserID)
	}
	if filter.Grade != "" {
		add("safety_grade =", filter.Grade)
	}
	if filter.Status != "" {
		add("status =", filter.Status)
	}
	if !filter.From.IsZero() {
		add("created_at >=", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		add("created_at <=", filter.To.UTC())
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

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
