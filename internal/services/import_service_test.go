package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/itafisc/fiscal-api/internal/config"
	"github.com/itafisc/fiscal-api/internal/logger"
	"github.com/itafisc/fiscal-api/internal/models"
)

func TestClassify(t *testing.T) {
	a := &models.Property{ID: 1}
	b := &models.Property{ID: 2}

	tests := []struct {
		name   string
		byCode *models.Property
		byReg  *models.Property
		want   rowOutcome
	}{
		{"neither key known", nil, nil, outcomeCreate},
		{"both keys on same row", a, a, outcomeExisting},
		{"code known, registration new", a, nil, outcomeNewRegistration},
		{"registration known, code new", nil, a, outcomeNewCode},
		{"keys on different rows", a, b, outcomeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.byCode, tt.byReg))
		})
	}
}

func TestCodeRowSurvives(t *testing.T) {
	// Only a code-side address match keeps the code row; every other
	// combination keeps the registration row.
	assert.True(t, codeRowSurvives(true, false))
	assert.False(t, codeRowSurvives(false, true))
	assert.False(t, codeRowSurvives(true, true))
	assert.False(t, codeRowSurvives(false, false))
}

func TestTombstone(t *testing.T) {
	assert.Equal(t, "superseded:42:123456", tombstone(42, "123456"))
}

func TestParseArea(t *testing.T) {
	area := func(v float64) *float64 { return &v }
	tests := []struct {
		in   string
		want *float64
	}{
		{"350.5", area(350.5)},
		{"350,5", area(350.5)},
		{" 120 ", area(120)},
		{"", nil},
		{"abc", nil},
	}
	for _, tt := range tests {
		got := parseArea(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, "input %q", tt.in)
		} else {
			require.NotNil(t, got, "input %q", tt.in)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		}
	}
}

func TestApplyRow_Defaults(t *testing.T) {
	sourceTime := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	p := &models.Property{PostalCode: "88301000", Zone: "ZR2"}
	applyRow(p, PropertyRow{
		Code:         "123456",
		Registration: "654321",
		Street:       "R. das Flores",
	}, sourceTime)

	assert.Equal(t, "123456", p.Code)
	assert.Equal(t, "S/N", p.Number, "missing number defaults to S/N")
	assert.Equal(t, sourceTime, p.FileDatetime)
	// Fields absent from the feed keep their stored values.
	assert.Equal(t, "88301000", p.PostalCode)
	assert.Equal(t, "ZR2", p.Zone)
}

func TestAddressMatches(t *testing.T) {
	p := &models.Property{
		Street:       "R. das Flores",
		Number:       "100",
		Neighborhood: "São Vicente",
		Complement:   "Casa 2",
	}
	match := PropertyRow{Street: "das flores", Number: "N 100", Neighborhood: "sao vicente", Complement: "casa 2"}
	assert.True(t, addressMatches(match, p))

	other := match
	other.Number = "200"
	assert.False(t, addressMatches(other, p))
}

// buildSheet renders rows into an xlsx workbook the way the upstream feed
// ships them: a header row followed by one row per property.
func buildSheet(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := []interface{}{
		"codigo", "inscricao", "contribuinte", "logradouro", "numero",
		"bairro", "complemento", "area_lote", "razao_social", "codigo_lote",
	}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func newImportServiceForTest(t *testing.T) (*importService, *memPropertyRepo, *memImportLogs, *stubEnricher) {
	t.Helper()
	properties := newMemPropertyRepo()
	logs := newMemImportLogs()
	postal := &stubEnricher{}
	dir := t.TempDir()
	svc := NewImportService(properties, logs, postal, config.ImportConfig{
		LockFile: filepath.Join(dir, "import.lock"),
		AuditDir: filepath.Join(dir, "audit"),
	}, logger.New("test"))
	return svc.(*importService), properties, logs, postal
}

// waitForRun polls until the newest log row reaches a terminal state.
func waitForRun(t *testing.T, logs *memImportLogs) *models.ImportLog {
	t.Helper()
	var final *models.ImportLog
	require.Eventually(t, func() bool {
		log, err := logs.Latest(context.Background())
		if err != nil || log == nil {
			return false
		}
		if log.State == models.ImportStateFinished || log.State == models.ImportStateFailed {
			final = log
			return true
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	return final
}

func TestImportRun_NewUpdatedUnchanged(t *testing.T) {
	svc, properties, logs, postal := newImportServiceForTest(t)
	ctx := context.Background()

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	sourceTime := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// Stored row that the feed will update.
	stale := &models.Property{Code: "100001", Registration: "200001", Street: "Old Street", FileDatetime: older}
	require.NoError(t, properties.Create(ctx, stale))
	// Stored row already newer than the feed.
	fresh := &models.Property{Code: "100002", Registration: "200002", Street: "Fresh Street", FileDatetime: newer}
	require.NoError(t, properties.Create(ctx, fresh))

	data := buildSheet(t, [][]interface{}{
		{"100001", "200001", "C1", "New Street", "10", "Centro", "", "350,5", "", ""},
		{"100002", "200002", "C2", "Other Street", "20", "Centro", "", "", "", ""},
		{"100003", "200003", "C3", "Third Street", "30", "Fazenda", "", "120", "ACME LTDA", "L1"},
	})

	runLog, err := svc.Start(ctx, strings.NewReader(string(data)), sourceTime)
	require.NoError(t, err)
	require.NotZero(t, runLog.ID)

	final := waitForRun(t, logs)
	assert.Equal(t, models.ImportStateFinished, final.State)
	assert.Equal(t, 1.0, final.Progress)
	assert.Equal(t, 3, final.Total)
	assert.Equal(t, 1, final.New)
	assert.Equal(t, 1, final.Updated)
	assert.Equal(t, 1, final.Unchanged)
	assert.Equal(t, 0, final.Failed)

	// The stale row took the feed's data.
	updated, err := properties.FindByCode(ctx, "100001")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "New Street", updated.Street)
	require.NotNil(t, updated.LotArea)
	assert.InDelta(t, 350.5, *updated.LotArea, 1e-9)
	assert.Equal(t, sourceTime, updated.FileDatetime)

	// The fresh row kept its stored data.
	kept, err := properties.FindByCode(ctx, "100002")
	require.NoError(t, err)
	assert.Equal(t, "Fresh Street", kept.Street)

	// Placeholder rows were seeded before processing.
	for _, code := range []string{models.PlaceholderNone, models.PlaceholderIndividual, models.PlaceholderCorporate} {
		p, err := properties.FindByCode(ctx, code)
		require.NoError(t, err)
		assert.NotNil(t, p, "placeholder %s", code)
	}

	// Every processed row went through postal enrichment.
	assert.Len(t, postal.calls, 3)
}

// readAuditEntry decodes the single entry written to a run's audit file.
func readAuditEntry(t *testing.T, svc *importService, runID int64) map[string]interface{} {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(svc.cfg.AuditDir, fmt.Sprintf("import-%d.log", runID)))
	require.NoError(t, err)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &entry))
	return entry
}

// auditSnapshot pulls one of the before/after row dumps out of an audit entry.
func auditSnapshot(t *testing.T, entry map[string]interface{}, key string) map[string]interface{} {
	t.Helper()
	snap, ok := entry[key].(map[string]interface{})
	require.True(t, ok, "audit entry has no %s snapshot", key)
	return snap
}

func TestImportRun_ConflictCodeRowSurvives(t *testing.T) {
	svc, properties, logs, _ := newImportServiceForTest(t)
	ctx := context.Background()

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sourceTime := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// Row A holds the incoming code, row B holds the incoming registration.
	// The incoming address matches only A, so A survives with both keys.
	a := &models.Property{
		Code: "111111", Registration: "999001",
		Street: "R. das Flores", Number: "100", Neighborhood: "Centro",
		FileDatetime: older,
	}
	require.NoError(t, properties.Create(ctx, a))
	b := &models.Property{
		Code: "333333", Registration: "222222",
		Street: "Elsewhere", Number: "7", Neighborhood: "Fazenda",
		FileDatetime: older,
	}
	require.NoError(t, properties.Create(ctx, b))

	data := buildSheet(t, [][]interface{}{
		{"111111", "222222", "", "das flores", "100", "centro", "", "", "", ""},
	})

	_, err := svc.Start(ctx, strings.NewReader(string(data)), sourceTime)
	require.NoError(t, err)
	final := waitForRun(t, logs)

	assert.Equal(t, models.ImportStateFinished, final.State)
	// A conflict counts both touched rows as updated.
	assert.Equal(t, 2, final.Updated)
	assert.Equal(t, 0, final.Failed)

	survivor, err := properties.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "111111", survivor.Code)
	assert.Equal(t, "222222", survivor.Registration)

	loser, err := properties.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "333333", loser.Code)
	assert.Equal(t, fmt.Sprintf("superseded:%d:222222", a.ID), loser.Registration)

	// The audit entry carries full row dumps from either side of the write.
	entry := readAuditEntry(t, svc, final.ID)
	survivorBefore := auditSnapshot(t, entry, "survivor_before")
	assert.Equal(t, "999001", survivorBefore["inscricao_imobiliaria"])
	assert.Equal(t, "R. das Flores", survivorBefore["logradouro"])
	survivorAfter := auditSnapshot(t, entry, "survivor_after")
	assert.Equal(t, "222222", survivorAfter["inscricao_imobiliaria"])
	assert.Equal(t, "das flores", survivorAfter["logradouro"])
	supersededBefore := auditSnapshot(t, entry, "superseded_before")
	assert.Equal(t, "222222", supersededBefore["inscricao_imobiliaria"])
	supersededAfter := auditSnapshot(t, entry, "superseded_after")
	assert.Equal(t, loser.Registration, supersededAfter["inscricao_imobiliaria"])
	assert.Equal(t, "333333", supersededAfter["codigo"])
}

func TestImportRun_ConflictRegistrationRowSurvivesTieBreak(t *testing.T) {
	svc, properties, logs, _ := newImportServiceForTest(t)
	ctx := context.Background()

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sourceTime := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// The incoming address matches neither stored row, so the registration
	// row wins the tie-break.
	a := &models.Property{
		Code: "111111", Registration: "999001",
		Street: "Somewhere", Number: "1", Neighborhood: "Centro",
		FileDatetime: older,
	}
	require.NoError(t, properties.Create(ctx, a))
	b := &models.Property{
		Code: "333333", Registration: "222222",
		Street: "Elsewhere", Number: "7", Neighborhood: "Fazenda",
		FileDatetime: older,
	}
	require.NoError(t, properties.Create(ctx, b))

	data := buildSheet(t, [][]interface{}{
		{"111111", "222222", "", "Unmatched Street", "50", "Praia", "", "", "", ""},
	})

	_, err := svc.Start(ctx, strings.NewReader(string(data)), sourceTime)
	require.NoError(t, err)
	final := waitForRun(t, logs)
	assert.Equal(t, models.ImportStateFinished, final.State)

	survivor, err := properties.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "111111", survivor.Code)
	assert.Equal(t, "222222", survivor.Registration)

	loser, err := properties.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("superseded:%d:111111", b.ID), loser.Code)
	assert.Equal(t, "999001", loser.Registration)

	entry := readAuditEntry(t, svc, final.ID)
	supersededBefore := auditSnapshot(t, entry, "superseded_before")
	assert.Equal(t, "111111", supersededBefore["codigo"])
	supersededAfter := auditSnapshot(t, entry, "superseded_after")
	assert.Equal(t, loser.Code, supersededAfter["codigo"])
	survivorBefore := auditSnapshot(t, entry, "survivor_before")
	assert.Equal(t, "333333", survivorBefore["codigo"])
	survivorAfter := auditSnapshot(t, entry, "survivor_after")
	assert.Equal(t, "111111", survivorAfter["codigo"])
	assert.Equal(t, "222222", survivorAfter["inscricao_imobiliaria"])
}

func TestImportStart_RejectsConcurrentRun(t *testing.T) {
	svc, _, logs, _ := newImportServiceForTest(t)
	ctx := context.Background()

	// A held lock means another run is active.
	require.NoError(t, svc.acquireLock())

	data := buildSheet(t, [][]interface{}{
		{"100001", "200001", "", "Street", "1", "Centro", "", "", "", ""},
	})
	_, err := svc.Start(ctx, strings.NewReader(string(data)), time.Now())
	assert.ErrorIs(t, err, ErrImportRunning)

	// The rejected request left no log row behind.
	latest, err := logs.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	// Releasing the lock lets the next run through.
	svc.releaseLock()
	_, err = svc.Start(ctx, strings.NewReader(string(data)), time.Now())
	require.NoError(t, err)
	waitForRun(t, logs)
}

func TestImportRun_UnreadableSpreadsheetFailsRun(t *testing.T) {
	svc, _, logs, _ := newImportServiceForTest(t)
	ctx := context.Background()

	_, err := svc.Start(ctx, strings.NewReader("not a workbook"), time.Now())
	require.NoError(t, err, "parse failures surface on the log row, not the trigger call")

	final := waitForRun(t, logs)
	assert.Equal(t, models.ImportStateFailed, final.State)
	assert.NotEmpty(t, final.Response)
}

// failingPropertyRepo makes lookups for one code fail, to exercise per-row
// error isolation.
type failingPropertyRepo struct {
	*memPropertyRepo
	failCode string
}

func (r *failingPropertyRepo) FindByCode(ctx context.Context, code string) (*models.Property, error) {
	if code == r.failCode {
		return nil, fmt.Errorf("induced lookup failure for %s", code)
	}
	return r.memPropertyRepo.FindByCode(ctx, code)
}

func TestImportRun_RowFailureDoesNotAbortRun(t *testing.T) {
	properties := newMemPropertyRepo()
	logs := newMemImportLogs()
	dir := t.TempDir()
	svc := NewImportService(&failingPropertyRepo{memPropertyRepo: properties, failCode: "100002"}, logs, &stubEnricher{}, config.ImportConfig{
		LockFile: filepath.Join(dir, "import.lock"),
		AuditDir: filepath.Join(dir, "audit"),
	}, logger.New("test")).(*importService)

	data := buildSheet(t, [][]interface{}{
		{"100001", "200001", "", "Street", "1", "Centro", "", "", "", ""},
		{"100002", "200002", "", "Street", "2", "Centro", "", "", "", ""},
		{"100003", "200003", "", "Street", "3", "Centro", "", "", "", ""},
	})

	_, err := svc.Start(context.Background(), strings.NewReader(string(data)), time.Now())
	require.NoError(t, err)
	final := waitForRun(t, logs)

	assert.Equal(t, models.ImportStateFinished, final.State)
	assert.Equal(t, 2, final.New)
	assert.Equal(t, 1, final.Failed)
}
