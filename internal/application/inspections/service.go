package inspections

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/andriansyh/safesight/internal/application"
	"github.com/andriansyh/safesight/internal/domain/ai"
	"github.com/andriansyh/safesight/internal/domain/analysis"
	domain "github.com/andriansyh/safesight/internal/domain/inspections"
	"github.com/andriansyh/safesight/internal/domain/usage"
	"github.com/andriansyh/safesight/internal/domain/users"
)

// Limits holds the externally supplied pipeline knobs
type Limits struct {
	MonthlyInspections int
	MaxImageBytes      int
	CostPer1KTokens    float64
}

const DefaultMonthlyLimit = 100

// Service implements the inspection-submission pipeline and the read-side
// use cases. All external clients arrive as injected ports; Service is
// safe for concurrent use.
type Service struct {
	Users       users.Repository
	Inspections domain.Repository
	Usage       usage.Repository
	Normalizer  domain.Normalizer
	Blobs       domain.BlobStore
	AI          ai.Client
	Clock       application.Clock
	Limits      Limits
	Logger      zerolog.Logger
}

// AnalyzeCommand carries the submission payload. Exactly one of ImageURL
// and ImageData must be set; ImageData is still base64-encoded.
type AnalyzeCommand struct {
	ImageURL  string
	ImageData string
	ImageType string
}

// UsageInfo is the per-request quota/cost view returned to the caller
type UsageInfo struct {
	TokensUsed   int   `json:"tokensUsed"`
	LatencyMS    int64 `json:"latencyMs"`
	MonthlyUsed  int   `json:"monthlyInspectionCount"`
	MonthlyLimit int   `json:"monthlyLimit"`
}

type AnalyzeResult struct {
	Inspection *domain.Inspection `json:"inspection"`
	Analysis   *analysis.Result   `json:"analysis"`
	Usage      UsageInfo          `json:"usage"`
}

func (s *Service) monthlyLimit() int {
	if s.Limits.MonthlyInspections > 0 {
		return s.Limits.MonthlyInspections
	}
	return DefaultMonthlyLimit
}

// EnsureUser resolves (creating on first contact) and gate-checks the caller
func (s *Service) EnsureUser(ctx context.Context, ident users.Identity) (*users.User, error) {
	u, err := s.Users.GetOrCreate(ctx, ident.AuthID, ident.Email, ident.FirstName, ident.LastName)
	if err != nil {
		return nil, fmt.Errorf("resolving user: %w", err)
	}
	if u.Status != users.StatusActive {
		return nil, fmt.Errorf("%w: account deactivated", domain.ErrForbidden)
	}
	return u, nil
}

// Analyze runs the full pipeline:
// Received → Normalized → Published → Analyzed → Validated → Persisted.
// Errors before the model call leave no Inspection row; model/validation
// errors persist a failed row so the attempt is not silently lost.
func (s *Service) Analyze(ctx context.Context, ident users.Identity, cmd AnalyzeCommand) (*AnalyzeResult, error) {
	start := s.Clock.Now()

	user, err := s.EnsureUser(ctx, ident)
	if err != nil {
		return nil, err
	}

	if (cmd.ImageURL == "") == (cmd.ImageData == "") {
		return nil, fmt.Errorf("%w: exactly one of imageUrl or imageData is required", domain.ErrInvalidInput)
	}

	// Read-only admission check. Two concurrent submissions from the same
	// user can both pass with one slot left; the cap is a soft limit.
	limit := s.monthlyLimit()
	if user.EffectiveMonthlyCount(start) >= limit {
		return nil, domain.ErrQuotaExceeded
	}

	imageURL := cmd.ImageURL
	if imageURL == "" {
		imageURL, err = s.publishImage(ctx, user, cmd)
		if err != nil {
			if errors.Is(err, domain.ErrStorageUnavailable) {
				s.recordUsage(ctx, &user.ID, start, 0, false, "storage_unavailable")
			}
			return nil, err
		}
	}

	ins := &domain.Inspection{
		ID:        domain.InspectionID(uuid.New().String()),
		UserID:    user.ID,
		ImageURL:  imageURL,
		Status:    domain.StatusProcessing,
		CreatedAt: start,
	}
	if err := s.Inspections.Create(ctx, ins); err != nil {
		s.recordUsage(ctx, &user.ID, start, 0, false, "persistence_error")
		return nil, fmt.Errorf("creating inspection: %w", err)
	}

	raw, tokens, err := s.AI.AnalyzeImage(ctx, imageURL)
	if err != nil {
		s.failInspection(ctx, ins.ID, err)
		s.recordUsage(ctx, &user.ID, start, tokens.TotalTokens, false, errorKind(err))
		return nil, err
	}

	result, verr := analysis.Parse(raw)
	if verr != nil {
		s.failInspection(ctx, ins.ID, verr)
		s.recordUsage(ctx, &user.ID, start, tokens.TotalTokens, false, "invalid_model_output")
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidModelOutput, verr)
	}

	done := s.Clock.Now()
	result.Metadata.TokensUsed = tokens.TotalTokens
	result.Metadata.AnalysisTimeMS = done.Sub(start).Milliseconds()

	payload, err := json.Marshal(result)
	if err != nil {
		s.failInspection(ctx, ins.ID, err)
		s.recordUsage(ctx, &user.ID, start, tokens.TotalTokens, false, "persistence_error")
		return nil, fmt.Errorf("encoding analysis: %w", err)
	}

	hazardCount := len(result.Hazards)
	grade := result.OverallAssessment.SafetyGrade
	risk := result.OverallAssessment.RiskScore
	if err := s.Inspections.MarkCompleted(ctx, ins.ID, hazardCount, risk, grade, string(payload), done); err != nil {
		s.recordUsage(ctx, &user.ID, start, tokens.TotalTokens, false, "persistence_error")
		return nil, fmt.Errorf("persisting inspection: %w", err)
	}

	// Counters move exactly once, only after the terminal success above.
	if err := s.Users.RecordCompletedInspection(ctx, user.ID, done); err != nil {
		s.Logger.Error().Err(err).Int64("user_id", user.ID).Msg("quota counter update failed")
	}

	s.recordUsage(ctx, &user.ID, start, tokens.TotalTokens, true, "")

	ins.Status = domain.StatusCompleted
	ins.HazardCount = hazardCount
	ins.RiskScore = risk
	ins.SafetyGrade = grade
	ins.Analysis = result
	ins.CompletedAt = &done

	return &AnalyzeResult{
		Inspection: ins,
		Analysis:   result,
		Usage: UsageInfo{
			TokensUsed:   tokens.TotalTokens,
			LatencyMS:    done.Sub(start).Milliseconds(),
			MonthlyUsed:  user.EffectiveMonthlyCount(done) + 1,
			MonthlyLimit: limit,
		},
	}, nil
}

// publishImage runs the Normalizer and Blob Publisher stages for base64 input
func (s *Service) publishImage(ctx context.Context, user *users.User, cmd AnalyzeCommand) (string, error) {
	maxBytes := s.Limits.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = 8 << 20
	}
	// Size guard on the declared decoded length, before any decode work.
	// DecodedLen overestimates by up to two padding bytes, so allow that
	// slack here; the normalizer's exact byte check stays authoritative.
	if base64.StdEncoding.DecodedLen(len(cmd.ImageData)) > maxBytes+2 {
		return "", fmt.Errorf("%w: decoded image exceeds %d bytes", domain.ErrPayloadTooLarge, maxBytes)
	}

	data, err := base64.StdEncoding.DecodeString(cmd.ImageData)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64 image data", domain.ErrInvalidInput)
	}

	norm, err := s.Normalizer.Normalize(data, cmd.ImageType)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%d/%s.jpg", user.ID, ksuid.New().String())
	url, err := s.Blobs.Put(ctx, key, norm.Data, norm.ContentType)
	if err != nil {
		return "", err
	}
	return url, nil
}

// Get returns one inspection; callers only see their own unless superadmin
func (s *Service) Get(ctx context.Context, ident users.Identity, id domain.InspectionID) (*domain.Inspection, error) {
	user, err := s.EnsureUser(ctx, ident)
	if err != nil {
		return nil, err
	}
	ins, err := s.Inspections.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ins.UserID != user.ID && !ident.IsSuperadmin() {
		return nil, domain.ErrForbidden
	}
	return ins, nil
}

// List returns the caller's inspections, paginated
func (s *Service) List(ctx context.Context, ident users.Identity, page, pageSize int) (domain.PaginatedResult, error) {
	user, err := s.EnsureUser(ctx, ident)
	if err != nil {
		return domain.PaginatedResult{}, err
	}
	return s.Inspections.ListByUser(ctx, user.ID, page, pageSize)
}

// AdminList is the filtered cross-user listing
func (s *Service) AdminList(ctx context.Context, filter domain.AdminFilter, page, pageSize int) (domain.PaginatedResult, error) {
	return s.Inspections.Paginate(ctx, filter, page, pageSize)
}

// AdminStats aggregates inspection counts plus a 30-day usage summary
type AdminStats struct {
	domain.Stats
	Usage usage.Summary `json:"usage30d"`
}

func (s *Service) AdminStats(ctx context.Context, topN int) (*AdminStats, error) {
	st, err := s.Inspections.Stats(ctx, topN)
	if err != nil {
		return nil, err
	}
	sum, err := s.Usage.SummarySince(ctx, s.Clock.Now().AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}
	return &AdminStats{Stats: st, Usage: sum}, nil
}

func (s *Service) failInspection(ctx context.Context, id domain.InspectionID, cause error) {
	if err := s.Inspections.MarkFailed(ctx, id, cause.Error(), s.Clock.Now()); err != nil {
		s.Logger.Error().Err(err).Str("inspection_id", string(id)).Msg("failed to mark inspection failed")
	}
}

// recordUsage appends the telemetry row. Failures are logged and swallowed
// so observability never masks the primary error to the caller.
func (s *Service) recordUsage(ctx context.Context, userID *int64, start time.Time, tokens int, success bool, errKind string) {
	l := &usage.Log{
		UserID:     userID,
		Endpoint:   "analyze",
		TokensUsed: tokens,
		Cost:       float64(tokens) / 1000 * s.Limits.CostPer1KTokens,
		LatencyMS:  s.Clock.Now().Sub(start).Milliseconds(),
		Success:    success,
		ErrorKind:  errKind,
		CreatedAt:  s.Clock.Now(),
	}
	if err := s.Usage.Save(ctx, l); err != nil {
		s.Logger.Error().Err(err).Str("error_kind", errKind).Msg("usage log write failed")
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrUpstreamAuthFailure):
		return "upstream_auth_failure"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, domain.ErrInvalidModelOutput):
		return "invalid_model_output"
	default:
		return "internal_error"
	}
}
