package inspections

import (
	"time"

	"github.com/andriansyh/safesight/internal/domain/analysis"
)

// ID tipe untuk Inspection
type InspectionID string

// Status enum
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Aggregate root: Inspection. One row per attempt that reached the
// model call, immutable afterwards except status/timestamps.
type Inspection struct {
	ID           InspectionID     `json:"id"`
	UserID       int64            `json:"userId"`
	ImageURL     string           `json:"imageUrl"`
	HazardCount  int              `json:"hazardCount"`
	RiskScore    int              `json:"riskScore"`
	SafetyGrade  string           `json:"safetyGrade,omitempty"`
	Analysis     *analysis.Result `json:"analysis,omitempty"`
	Status       Status           `json:"processingStatus"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
}

// NormalizedImage is the output of the image normalizer
type NormalizedImage struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	Size        int
}

// AdminFilter holds the optional filters for the admin listing
type AdminFilter struct {
	UserID int64
	Grade  string
	Status string
	From   time.Time
	To     time.Time
	SortBy string
	Order  string
}

// StatusBreakdown aggregates inspections per processing status
type StatusBreakdown struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

// UserActivity is one row of the admin top-N breakdown
type UserActivity struct {
	UserID       int64  `json:"userId"`
	Email        string `json:"email"`
	MonthlyCount int    `json:"monthlyInspectionCount"`
	TotalCount   int64  `json:"totalInspections"`
}

// Stats is the admin aggregate view
type Stats struct {
	TotalInspections int64           `json:"totalInspections"`
	ByStatus         StatusBreakdown `json:"byStatus"`
	AverageRiskScore float64         `json:"averageRiskScore"`
	TopUsers         []UserActivity  `json:"topUsers"`
}
