package inspections

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andriansyh/safesight/internal/domain/ai"
	"github.com/andriansyh/safesight/internal/domain/analysis"
	domain "github.com/andriansyh/safesight/internal/domain/inspections"
	"github.com/andriansyh/safesight/internal/domain/usage"
	"github.com/andriansyh/safesight/internal/domain/users"
)

//
// ==== fakes ====
//

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeUsers struct {
	user      *users.User
	recorded  int
	recordErr error
}

func (f *fakeUsers) GetOrCreate(_ context.Context, authID, email, _, _ string) (*users.User, error) {
	if f.user == nil {
		f.user = &users.User{ID: 1, AuthID: authID, Email: email, Status: users.StatusActive}
	}
	u := *f.user
	return &u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*users.User, error) {
	if f.user != nil && f.user.ID == id {
		u := *f.user
		return &u, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUsers) RecordCompletedInspection(_ context.Context, _ int64, now time.Time) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.recorded++
	f.user.LifetimeInspection++
	if f.user.EffectiveMonthlyCount(now) == 0 {
		f.user.MonthlyInspection = 1
		f.user.LastQuotaReset = now
	} else {
		f.user.MonthlyInspection++
	}
	return nil
}

func (f *fakeUsers) SetStatus(_ context.Context, _ int64, status users.Status) error {
	f.user.Status = status
	return nil
}

func (f *fakeUsers) ResetMonthlyBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeInspections struct {
	created   []*domain.Inspection
	completed map[domain.InspectionID]int // id -> hazard count
	failed    map[domain.InspectionID]string
	stored    map[domain.InspectionID]*domain.Inspection
	createErr error
}

func newFakeInspections() *fakeInspections {
	return &fakeInspections{
		completed: map[domain.InspectionID]int{},
		failed:    map[domain.InspectionID]string{},
		stored:    map[domain.InspectionID]*domain.Inspection{},
	}
}

func (f *fakeInspections) Create(_ context.Context, ins *domain.Inspection) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *ins
	f.created = append(f.created, &cp)
	f.stored[ins.ID] = &cp
	return nil
}

func (f *fakeInspections) MarkCompleted(_ context.Context, id domain.InspectionID, hazardCount, riskScore int, grade string, payloadJSON string, completedAt time.Time) error {
	f.completed[id] = hazardCount
	if ins, ok := f.stored[id]; ok {
		ins.Status = domain.StatusCompleted
		ins.HazardCount = hazardCount
		ins.RiskScore = riskScore
		ins.SafetyGrade = grade
		ins.CompletedAt = &completedAt
	}
	return nil
}

func (f *fakeInspections) MarkFailed(_ context.Context, id domain.InspectionID, message string, completedAt time.Time) error {
	f.failed[id] = message
	if ins, ok := f.stored[id]; ok {
		ins.Status = domain.StatusFailed
		ins.ErrorMessage = message
		ins.CompletedAt = &completedAt
	}
	return nil
}

func (f *fakeInspections) Get(_ context.Context, id domain.InspectionID) (*domain.Inspection, error) {
	if ins, ok := f.stored[id]; ok {
		return ins, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeInspections) ListByUser(context.Context, int64, int, int) (domain.PaginatedResult, error) {
	return domain.PaginatedResult{}, nil
}

func (f *fakeInspections) Paginate(context.Context, domain.AdminFilter, int, int) (domain.PaginatedResult, error) {
	return domain.PaginatedResult{}, nil
}

func (f *fakeInspections) Stats(context.Context, int) (domain.Stats, error) {
	return domain.Stats{}, nil
}

type fakeUsage struct {
	logs    []*usage.Log
	saveErr error
}

func (f *fakeUsage) Save(_ context.Context, l *usage.Log) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := *l
	f.logs = append(f.logs, &cp)
	return nil
}

func (f *fakeUsage) SummarySince(context.Context, time.Time) (usage.Summary, error) {
	return usage.Summary{}, nil
}

func (f *fakeUsage) PruneBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeNormalizer struct {
	err   error
	calls int
}

func (f *fakeNormalizer) Normalize(data []byte, _ string) (*domain.NormalizedImage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.NormalizedImage{Data: data, ContentType: "image/jpeg", Width: 800, Height: 600, Size: len(data)}, nil
}

type fakeBlobs struct {
	err  error
	keys []string
}

func (f *fakeBlobs) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "http://blob.local/inspections/" + key, nil
}

type fakeAI struct {
	raw   string
	usage ai.TokenUsage
	err   error
	calls int
}

func (f *fakeAI) AnalyzeImage(context.Context, string) (string, ai.TokenUsage, error) {
	f.calls++
	if f.err != nil {
		return "", f.usage, f.err
	}
	return f.raw, f.usage, nil
}

//
// ==== helpers ====
//

var testNow = time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

func validModelJSON(t *testing.T, hazards int) string {
	t.Helper()
	res := analysis.Result{
		OverallAssessment: analysis.OverallAssessment{
			RiskScore:       40,
			SafetyGrade:     "C",
			PriorityActions: []string{"fix it"},
		},
		Metadata: analysis.Metadata{Confidence: 0.9},
	}
	for i := 0; i < hazards; i++ {
		res.Hazards = append(res.Hazards, analysis.Hazard{
			ID:          fmt.Sprintf("hazard-%d", i+1),
			Description: "exposed wiring",
			Location:    "wall",
			Category:    analysis.CategoryElectrical,
			Severity:    analysis.SeverityHigh,
			Remediation: []string{"enclose it"},
			Priority:    2,
		})
	}
	b, err := json.Marshal(res)
	require.NoError(t, err)
	return string(b)
}

type fixture struct {
	svc   *Service
	users *fakeUsers
	ins   *fakeInspections
	usage *fakeUsage
	norm  *fakeNormalizer
	blobs *fakeBlobs
	ai    *fakeAI
}

func newFixture(u *users.User) *fixture {
	f := &fixture{
		users: &fakeUsers{user: u},
		ins:   newFakeInspections(),
		usage: &fakeUsage{},
		norm:  &fakeNormalizer{},
		blobs: &fakeBlobs{},
		ai:    &fakeAI{usage: ai.TokenUsage{TotalTokens: 500}},
	}
	f.svc = &Service{
		Users:       f.users,
		Inspections: f.ins,
		Usage:       f.usage,
		Normalizer:  f.norm,
		Blobs:       f.blobs,
		AI:          f.ai,
		Clock:       fixedClock{t: testNow},
		Limits:      Limits{MonthlyInspections: 100, MaxImageBytes: 8 << 20, CostPer1KTokens: 0.01},
		Logger:      zerolog.Nop(),
	}
	return f
}

func activeUser(monthly int, lastReset time.Time) *users.User {
	return &users.User{
		ID:                1,
		AuthID:            "auth-1",
		Email:             "worker@example.com",
		MonthlyInspection: monthly,
		LastQuotaReset:    lastReset,
		Status:            users.StatusActive,
	}
}

func ident() users.Identity {
	return users.Identity{AuthID: "auth-1", Email: "worker@example.com"}
}

func dataCmd() AnalyzeCommand {
	return AnalyzeCommand{
		ImageData: base64.StdEncoding.EncodeToString([]byte("fake image bytes")),
		ImageType: "image/jpeg",
	}
}

//
// ==== tests ====
//

func TestAnalyzeSuccess(t *testing.T) {
	f := newFixture(activeUser(0, testNow))
	f.ai.raw = validModelJSON(t, 3)

	res, err := f.svc.Analyze(context.Background(), ident(), dataCmd())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, res.Inspection.Status)
	assert.Equal(t, len(res.Analysis.Hazards), res.Inspection.HazardCount)
	assert.Equal(t, 3, res.Inspection.HazardCount)
	assert.Equal(t, "C", res.Inspection.SafetyGrade)

	// normalize → publish → one processing row → completed
	assert.Equal(t, 1, f.norm.calls)
	require.Len(t, f.blobs.keys, 1)
	assert.True(t, strings.HasPrefix(f.blobs.keys[0], "1/"))
	require.Len(t, f.ins.created, 1)
	assert.Equal(t, domain.StatusProcessing, f.ins.created[0].Status)
	assert.Equal(t, 3, f.ins.completed[res.Inspection.ID])

	// counters moved exactly once
	assert.Equal(t, 1, f.users.recorded)
	assert.Equal(t, 1, f.users.user.MonthlyInspection)
	assert.Equal(t, 1, res.Usage.MonthlyUsed)
	assert.Equal(t, 100, res.Usage.MonthlyLimit)

	// one success usage row with token accounting
	require.Len(t, f.usage.logs, 1)
	assert.True(t, f.usage.logs[0].Success)
	assert.Equal(t, 500, f.usage.logs[0].TokensUsed)
	assert.InDelta(t, 0.005, f.usage.logs[0].Cost, 1e-9)
}

func TestAnalyzeWithImageURLSkipsNormalization(t *testing.T) {
	f := newFixture(activeUser(0, testNow))
	f.ai.raw = validModelJSON(t, 1)

	res, err := f.svc.Analyze(context.Background(), ident(), AnalyzeCommand{ImageURL: "https://img.example.com/site.jpg"})
	require.NoError(t, err)

	assert.Equal(t, 0, f.norm.calls)
	assert.Empty(t, f.blobs.keys)
	assert.Equal(t, "https://img.example.com/site.jpg", res.Inspection.ImageURL)
}

func TestAnalyzeRequiresExactlyOneImageInput(t *testing.T) {
	f := newFixture(activeUser(0, testNow))

	_, err := f.svc.Analyze(context.Background(), ident(), AnalyzeCommand{})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	cmd := dataCmd()
	cmd.ImageURL = "https://img.example.com/site.jpg"
	_, err = f.svc.Analyze(context.Background(), ident(), cmd)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	// rejected before any side effect
	assert.Equal(t, 0, f.ai.calls)
	assert.Empty(t, f.ins.created)
	assert.Empty(t, f.usage.logs)
}

func TestAnalyzeQuotaExceeded(t *testing.T) {
	f := newFixture(activeUser(100, testNow))

	_, err := f.svc.Analyze(context.Background(), ident(), dataCmd())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrQuotaExceeded))

	// read-only rejection: nothing was touched
	assert.Equal(t, 0, f.ai.calls)
	assert.Equal(t, 0, f.users.recorded)
	assert.Empty(t, f.ins.created)
	assert.Empty(t, f.usage.logs)
	assert.Equal(t, 100, f.users.user.MonthlyInspection)
}

func TestAnalyzeMonthBoundaryResetsQuota(t *testing.T) {
	// at the cap, but the reset stamp is from February
	lastMonth := time.Date(2025, time.February, 20, 0, 0, 0, 0, time.UTC)
	f := newFixture(activeUser(100, lastMonth))
	f.ai.raw = validModelJSON(t, 1)

	res, err := f.svc.Analyze(context.Background(), ident(), dataCmd())
	require.NoError(t, err)

	assert.Equal(t, 1, f.users.recorded)
	assert.Equal(t, 1, f.users.user.MonthlyInspection)
	assert.Equal(t, 1, res.Usage.MonthlyUsed)
}

func TestAnalyzePayloadTooLarge(t *testing.T) {
	f := newFixture(activeUser(0, testNow))
	f.svc.Limits.MaxImageBytes = 64

	cmd := AnalyzeCommand{ImageData: base64.StdEncoding.EncodeToString(make([]byte, 128))}
	_, err := f.svc.Analyze(context.Background(), ident(), cmd)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPayloadTooLarge))

	// guarded before storage and before the model call
	assert.Empty(t, f.blobs.keys)
	assert.Equal(t, 0, f.ai.calls)
	assert.Empty(t, f.ins.created)
}

func TestAnalyzeAcceptsImageAtExactSizeLimit(t *testing.T) {
	f := newFixture(activeUser(0, testNow))
	f.ai.raw = validModelJSON(t, 1)
	f.svc.Limits.MaxImageBytes = 8 << 20

	// exactly at the cap: padding must not push the estimate over
	cmd := AnalyzeCommand{ImageData: base64.StdEncoding.EncodeToString(make([]byte, 8<<20))}
	res, err := f.svc.Analyze(context.Background(), ident(), cmd)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Inspection.Status)

	// while anything past the cap is still rejected before decode
	cmd = AnalyzeCommand{ImageData: base64.StdEncoding.EncodeToString(make([]byte, 8<<20+16))}
	_, err = f.svc.Analyze(context.Background(), ident(), cmd)
	assert.True(t, errors.Is(err, domain.ErrPayloadTooLarge))
}

func TestAnalyzeStorageFailure(t *testing.T) {
	f := newFixture(activeUser(0, testNow))
	f.blobs.err = fmt.Errorf("%w: connection refused", domain.ErrStorageUnavailable)

	_, err := f.svc.Analyze(context.Background(), ident(), dataCmd())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStorageUnavailable))

	// no inspection row, but a best-effort usage row
	assert.Empty(t, f.ins.created)
	assert.Equal(t, 0, f.ai.calls)
	require.Len(t, f.usage.logs, 1)
	assert.False(t, f.usage.logs[0].Success)
	assert.Equal(t, "storage_unavailable", f.usage.logs[0].ErrorKind)
	assert.Equal(t, 0, f.users.recorded)
}

func TestAnalyzeUpstreamFailureMarksInspectionFailed(t *testing.T) {
	f := newFixture(activeUser(0, testNow))
	f.ai.err = fmt.Errorf("%w: timeout", domain.ErrUpstreamUnavailable)

	_, err := f.svc.Analyze(context.Background(), ident(), dataCmd())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))

	require.Len(t, f.ins.created, 1)
	id := f.ins.created[0].ID
	assert.Contains(t, f.ins.failed, id)
	assert.NotContains(t, f.ins.completed, id)

	require.Len(t, f.usage.logs, 1)
	assert.Equal(t, "upstream_unavailable", f.usage.logs[0].ErrorKind)
	assert.Equal(t, 0, f.users.recorded)
}

func TestAnalyzeInvalidModelOutput(t *testing.T) {
	f := newFixture(activeUser(0, testNow))
	f.ai.raw = "I could not find any hazards, sorry!"

	_, err := f.svc.Analyze(context.Background(), ident(), dataCmd())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidModelOutput))

	// the attempt is recorded as a failed inspection, never completed
	require.Len(t, f.ins.created, 1)
	id := f.ins.created[0].ID
	assert.Contains(t, f.ins.failed, id)
	assert.NotContains(t, f.ins.completed, id)
	assert.Equal(t, domain.StatusFailed, f.ins.stored[id].Status)

	require.Len(t, f.usage.logs, 1)
	assert.Equal(t, "invalid_model_output", f.usage.logs[0].ErrorKind)
	assert.Equal(t, 500, f.usage.logs[0].TokensUsed)
	assert.Equal(t, 0, f.users.recorded)
}

func TestAnalyzeMissingOverallAssessmentNeverCompletes(t *testing.T) {
	f := newFixture(activeUser(0, testNow))
	f.ai.raw = `{"hazards": []}`

	_, err := f.svc.Analyze(context.Background(), ident(), dataCmd())
	assert.True(t, errors.Is(err, domain.ErrInvalidModelOutput))
	assert.Empty(t, f.ins.completed)
}

func TestAnalyzeUsageWriteFailureDoesNotMaskSuccess(t *testing.T) {
	f := newFixture(activeUser(0, testNow))
	f.ai.raw = validModelJSON(t, 1)
	f.usage.saveErr = errors.New("usage table gone")

	res, err := f.svc.Analyze(context.Background(), ident(), dataCmd())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Inspection.Status)
}

func TestAnalyzeInactiveUserForbidden(t *testing.T) {
	u := activeUser(0, testNow)
	u.Status = users.StatusInactive
	f := newFixture(u)

	_, err := f.svc.Analyze(context.Background(), ident(), dataCmd())
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	assert.Equal(t, 0, f.ai.calls)
}

func TestGetEnforcesOwnership(t *testing.T) {
	f := newFixture(activeUser(0, testNow))
	other := &domain.Inspection{ID: "ins-2", UserID: 99, Status: domain.StatusCompleted}
	f.ins.stored[other.ID] = other

	_, err := f.svc.Get(context.Background(), ident(), other.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	// superadmins can read anyone's inspection
	admin := ident()
	admin.Role = users.RoleSuperadmin
	got, err := f.svc.Get(context.Background(), admin, other.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, got.ID)

	_, err = f.svc.Get(context.Background(), ident(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
