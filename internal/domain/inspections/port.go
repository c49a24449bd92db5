package inspections

import (
	"context"
	"time"
)

// Repository port (interface untuk persistence)
type Repository interface {
	Create(ctx context.Context, ins *Inspection) error
	MarkCompleted(ctx context.Context, id InspectionID, hazardCount, riskScore int, grade string, payloadJSON string, completedAt time.Time) error
	MarkFailed(ctx context.Context, id InspectionID, message string, completedAt time.Time) error
	Get(ctx context.Context, id InspectionID) (*Inspection, error)
	ListByUser(ctx context.Context, userID int64, page, pageSize int) (PaginatedResult, error)
	Paginate(ctx context.Context, filter AdminFilter, page, pageSize int) (PaginatedResult, error)
	Stats(ctx context.Context, topN int) (Stats, error)
}

// Normalizer port (pure image transform)
type Normalizer interface {
	Normalize(data []byte, declaredType string) (*NormalizedImage, error)
}

// BlobStore port (object storage)
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
