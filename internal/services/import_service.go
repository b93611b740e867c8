package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/itafisc/fiscal-api/internal/config"
	"github.com/itafisc/fiscal-api/internal/logger"
	"github.com/itafisc/fiscal-api/internal/models"
	"github.com/itafisc/fiscal-api/internal/normalize"
	"github.com/itafisc/fiscal-api/internal/repository"
	"github.com/rs/zerolog"
)

// ErrImportRunning is returned when a property import is requested while
// another run still holds the lock file.
var ErrImportRunning = errors.New("a property import is already running")

// checkpointInterval is how many rows are processed between progress flushes
// to the import log row.
const checkpointInterval = 100

// ImportService runs the bulk property import. Start kicks off a run in the
// background and returns its log row immediately; progress is observed by
// polling Latest.
type ImportService interface {
	Start(ctx context.Context, file io.Reader, sourceTime time.Time) (*models.ImportLog, error)
	Latest(ctx context.Context) (*models.ImportLog, error)
}

// postalEnricher is the slice of the postal service the import needs.
type postalEnricher interface {
	Enrich(ctx context.Context, p *models.Property)
}

type importService struct {
	properties repository.PropertyRepository
	logs       repository.ImportLogRepository
	postal     postalEnricher
	cfg        config.ImportConfig
	log        *logger.Logger
}

// NewImportService creates a new instance of ImportService.
func NewImportService(
	properties repository.PropertyRepository,
	logs repository.ImportLogRepository,
	postal postalEnricher,
	cfg config.ImportConfig,
	log *logger.Logger,
) ImportService {
	return &importService{
		properties: properties,
		logs:       logs,
		postal:     postal,
		cfg:        cfg,
		log:        log,
	}
}

// importCounters accumulates per-run row outcomes in memory. They are flushed
// to the import log row at checkpoints, never incremented row-by-row in the
// database.
type importCounters struct {
	New       int
	Updated   int
	Unchanged int
	Failed    int
}

func (c importCounters) applyTo(log *models.ImportLog) {
	log.New = c.New
	log.Updated = c.Updated
	log.Unchanged = c.Unchanged
	log.Failed = c.Failed
}

func (s *importService) Start(ctx context.Context, file io.Reader, sourceTime time.Time) (*models.ImportLog, error) {
	if err := s.acquireLock(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.releaseLock()
		return nil, fmt.Errorf("failed to read uploaded spreadsheet: %w", err)
	}

	runLog := &models.ImportLog{
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
		State:     models.ImportStateStarting,
		Status:    "starting",
	}
	if err := s.logs.Create(ctx, runLog); err != nil {
		s.releaseLock()
		return nil, err
	}

	// The run outlives the HTTP request that triggered it.
	go s.run(context.Background(), runLog, data, sourceTime)

	return runLog, nil
}

func (s *importService) Latest(ctx context.Context) (*models.ImportLog, error) {
	return s.logs.Latest(ctx)
}

// acquireLock creates the lock file exclusively. A pre-existing file means
// another run is active (or a crashed run left its lock behind, which an
// operator clears by hand).
func (s *importService) acquireLock() error {
	f, err := os.OpenFile(s.cfg.LockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return ErrImportRunning
		}
		return fmt.Errorf("failed to create import lock file: %w", err)
	}
	fmt.Fprintf(f, "started %s pid %d\n", time.Now().Format(time.RFC3339), os.Getpid())
	return f.Close()
}

func (s *importService) releaseLock() {
	if err := os.Remove(s.cfg.LockFile); err != nil {
		s.log.Error("failed to remove import lock file", err, map[string]interface{}{
			"lock_file": s.cfg.LockFile,
		})
	}
}

// run executes one import end to end. Failures before the row loop mark the
// log row failed; failures inside the loop only count against that row.
func (s *importService) run(ctx context.Context, runLog *models.ImportLog, data []byte, sourceTime time.Time) {
	defer s.releaseLock()
	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, runLog, "import aborted", fmt.Errorf("panic: %v", r))
		}
	}()

	if err := s.seedPlaceholders(ctx); err != nil {
		s.fail(ctx, runLog, "failed to seed placeholder properties", err)
		return
	}

	s.advance(ctx, runLog, models.ImportStateReading, "reading spreadsheet")
	rows, err := ParseSheet(bytes.NewReader(data))
	if err != nil {
		s.fail(ctx, runLog, "failed to read spreadsheet", err)
		return
	}

	runLog.Total = len(rows)
	s.advance(ctx, runLog, models.ImportStateProcessing, "processing rows")

	audit, closeAudit := s.openAudit(runLog.ID)
	defer closeAudit()

	var counters importCounters
	for i, row := range rows {
		s.processRow(ctx, row, sourceTime, audit, &counters)
		if (i+1)%checkpointInterval == 0 {
			s.checkpoint(ctx, runLog, counters, float64(i+1)/float64(len(rows)))
		}
	}

	counters.applyTo(runLog)
	runLog.State = models.ImportStateFinished
	runLog.Progress = 1
	runLog.Status = fmt.Sprintf("finished: %d rows, %d new, %d updated, %d unchanged, %d failed",
		runLog.Total, counters.New, counters.Updated, counters.Unchanged, counters.Failed)
	runLog.UpdatedAt = time.Now()
	if err := s.logs.Update(ctx, runLog); err != nil {
		s.log.Error("failed to finalize import log", err, map[string]interface{}{
			"import_log_id": runLog.ID,
		})
	}

	s.log.Info("property import finished", map[string]interface{}{
		"import_log_id": runLog.ID,
		"total":         runLog.Total,
		"new":           counters.New,
		"updated":       counters.Updated,
		"unchanged":     counters.Unchanged,
		"failed":        counters.Failed,
	})
}

func (s *importService) advance(ctx context.Context, runLog *models.ImportLog, state int, status string) {
	runLog.State = state
	runLog.Status = status
	runLog.UpdatedAt = time.Now()
	if err := s.logs.Update(ctx, runLog); err != nil {
		s.log.Error("failed to update import log", err, map[string]interface{}{
			"import_log_id": runLog.ID,
			"state":         state,
		})
	}
}

func (s *importService) checkpoint(ctx context.Context, runLog *models.ImportLog, counters importCounters, progress float64) {
	counters.applyTo(runLog)
	runLog.Progress = progress
	runLog.UpdatedAt = time.Now()
	if err := s.logs.Update(ctx, runLog); err != nil {
		s.log.Error("failed to checkpoint import log", err, map[string]interface{}{
			"import_log_id": runLog.ID,
		})
	}
}

func (s *importService) fail(ctx context.Context, runLog *models.ImportLog, status string, cause error) {
	s.log.Error("property import failed", cause, map[string]interface{}{
		"import_log_id": runLog.ID,
	})
	runLog.State = models.ImportStateFailed
	runLog.Status = status
	runLog.Response = cause.Error()
	runLog.UpdatedAt = time.Now()
	if err := s.logs.Update(ctx, runLog); err != nil {
		s.log.Error("failed to record import failure", err, map[string]interface{}{
			"import_log_id": runLog.ID,
		})
	}
}

// seedPlaceholders guarantees the three placeholder properties exist before
// any notice can point at them.
func (s *importService) seedPlaceholders(ctx context.Context) error {
	placeholders := map[string]string{
		models.PlaceholderNone:       "NO PROPERTY ASSIGNED",
		models.PlaceholderIndividual: "INDIVIDUAL WITHOUT PROPERTY",
		models.PlaceholderCorporate:  "COMPANY WITHOUT PROPERTY",
	}
	for code, name := range placeholders {
		existing, err := s.properties.FindByCode(ctx, code)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		now := time.Now()
		p := &models.Property{
			Code:          code,
			Registration:  code,
			Number:        "S/N",
			CorporateName: name,
			UpdatedAt:     now,
			FileDatetime:  now,
		}
		if err := s.properties.Create(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// processRow classifies and applies a single incoming row. Any error or panic
// is contained here and only bumps the failure counter.
func (s *importService) processRow(ctx context.Context, row PropertyRow, sourceTime time.Time, audit zerolog.Logger, counters *importCounters) {
	defer func() {
		if r := recover(); r != nil {
			counters.Failed++
			s.log.Error("import row panicked", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"code":         row.Code,
				"registration": row.Registration,
			})
		}
	}()

	if err := s.applyImportRow(ctx, row, sourceTime, audit, counters); err != nil {
		counters.Failed++
		s.log.Error("import row failed", err, map[string]interface{}{
			"code":         row.Code,
			"registration": row.Registration,
		})
	}
}

// rowOutcome classifies an incoming row against the two stored key lookups.
type rowOutcome int

const (
	outcomeCreate rowOutcome = iota
	outcomeExisting
	outcomeNewCode
	outcomeNewRegistration
	outcomeConflict
)

// classify decides what an incoming row is, given the stored property found
// by its code and the one found by its registration.
func classify(byCode, byReg *models.Property) rowOutcome {
	switch {
	case byCode == nil && byReg == nil:
		return outcomeCreate
	case byCode != nil && byReg != nil && byCode.ID == byReg.ID:
		return outcomeExisting
	case byCode != nil && byReg == nil:
		return outcomeNewRegistration
	case byCode == nil && byReg != nil:
		return outcomeNewCode
	default:
		return outcomeConflict
	}
}

func (s *importService) applyImportRow(ctx context.Context, row PropertyRow, sourceTime time.Time, audit zerolog.Logger, counters *importCounters) error {
	byCode, err := s.properties.FindByCode(ctx, row.Code)
	if err != nil {
		return err
	}
	byReg, err := s.properties.FindByRegistration(ctx, row.Registration)
	if err != nil {
		return err
	}

	switch classify(byCode, byReg) {
	case outcomeCreate:
		p := &models.Property{}
		applyRow(p, row, sourceTime)
		if err := s.properties.Create(ctx, p); err != nil {
			return err
		}
		counters.New++
		s.postal.Enrich(ctx, p)
		return nil

	case outcomeExisting:
		return s.updateExisting(ctx, byCode, row, sourceTime, counters)

	case outcomeNewRegistration:
		// Row matched by code; its registration changed upstream.
		return s.updateExisting(ctx, byCode, row, sourceTime, counters)

	case outcomeNewCode:
		// Row matched by registration; its code changed upstream.
		return s.updateExisting(ctx, byReg, row, sourceTime, counters)

	default:
		return s.resolveConflict(ctx, byCode, byReg, row, sourceTime, audit, counters)
	}
}

// updateExisting writes the incoming row over a stored property, unless the
// source file is not newer than the data already stored.
func (s *importService) updateExisting(ctx context.Context, target *models.Property, row PropertyRow, sourceTime time.Time, counters *importCounters) error {
	if !sourceTime.After(target.FileDatetime) {
		counters.Unchanged++
		s.postal.Enrich(ctx, target)
		return nil
	}
	applyRow(target, row, sourceTime)
	if err := s.properties.Update(ctx, target); err != nil {
		return err
	}
	counters.Updated++
	s.postal.Enrich(ctx, target)
	return nil
}

// resolveConflict handles an incoming row whose code and registration point
// at two different stored properties. Exactly one survives and receives the
// incoming data; the other has its colliding key tombstoned so history stays
// queryable.
func (s *importService) resolveConflict(ctx context.Context, byCode, byReg *models.Property, row PropertyRow, sourceTime time.Time, audit zerolog.Logger, counters *importCounters) error {
	codeAddrMatch := addressMatches(row, byCode)
	regAddrMatch := addressMatches(row, byReg)

	survivor, loser := byReg, byCode
	column := repository.KeyCode
	oldValue := byCode.Code
	if codeRowSurvives(codeAddrMatch, regAddrMatch) {
		survivor, loser = byCode, byReg
		column = repository.KeyRegistration
		oldValue = byReg.Registration
	}

	// Snapshot both rows before any write so the audit entry can carry the
	// full pre-resolution state.
	survivorBefore := *survivor
	loserBefore := *loser

	mark := tombstone(survivor.ID, oldValue)
	applyRow(survivor, row, sourceTime)
	if err := s.properties.Supersede(ctx, survivor, loser.ID, column, mark); err != nil {
		return err
	}
	counters.Updated += 2

	loserAfter := loserBefore
	columnName := "code"
	if column == repository.KeyRegistration {
		columnName = "registration"
		loserAfter.Registration = mark
	} else {
		loserAfter.Code = mark
	}
	audit.Info().
		Str("code", row.Code).
		Str("registration", row.Registration).
		Int64("survivor_id", survivor.ID).
		Int64("superseded_id", loser.ID).
		Str("column", columnName).
		Str("tombstone", mark).
		Bool("code_address_match", codeAddrMatch).
		Bool("registration_address_match", regAddrMatch).
		Interface("survivor_before", survivorBefore).
		Interface("survivor_after", *survivor).
		Interface("superseded_before", loserBefore).
		Interface("superseded_after", loserAfter).
		Msg("key conflict resolved")

	s.postal.Enrich(ctx, survivor)
	return nil
}

// codeRowSurvives is the conflict decision table. Only an address that
// matches the code row and not the registration row keeps the code row; every
// other combination keeps the registration row, registration being the more
// stable of the two keys.
func codeRowSurvives(codeAddrMatch, regAddrMatch bool) bool {
	return codeAddrMatch && !regAddrMatch
}

// tombstone builds the value written over a superseded key so the old value
// and the surviving row remain discoverable.
func tombstone(survivorID int64, oldValue string) string {
	return fmt.Sprintf("superseded:%d:%s", survivorID, oldValue)
}

// applyRow copies the incoming row onto a property. Postal code, zone and
// ideal fraction are not in the feed and keep their stored values.
func applyRow(p *models.Property, row PropertyRow, sourceTime time.Time) {
	p.Code = row.Code
	p.Registration = row.Registration
	p.TaxpayerNumber = row.TaxpayerNumber
	p.Street = row.Street
	p.Number = row.Number
	if p.Number == "" {
		p.Number = "S/N"
	}
	p.Neighborhood = row.Neighborhood
	p.Complement = row.Complement
	p.CorporateName = row.CorporateName
	p.LotCode = row.LotCode
	p.LotArea = parseArea(row.LotArea)
	p.UpdatedAt = time.Now()
	p.FileDatetime = sourceTime
}

// addressMatches compares the incoming row's address with a stored property
// after normalization, so casing, accents and abbreviation noise do not
// obscure a match.
func addressMatches(row PropertyRow, p *models.Property) bool {
	return normalize.Street(row.Street) == normalize.Street(p.Street) &&
		normalize.StreetNumber(row.Number) == normalize.StreetNumber(p.Number) &&
		normalize.SameNeighborhood(row.Neighborhood, p.Neighborhood) &&
		normalize.TextToID(row.Complement) == normalize.TextToID(p.Complement)
}

// openAudit opens the per-run append-only audit log as a JSON-lines zerolog
// writer. Audit failures never stop a run; the entries just go nowhere.
func (s *importService) openAudit(runID int64) (zerolog.Logger, func()) {
	if err := os.MkdirAll(s.cfg.AuditDir, 0o755); err != nil {
		s.log.Error("failed to create import audit directory", err, map[string]interface{}{
			"audit_dir": s.cfg.AuditDir,
		})
		return zerolog.New(io.Discard), func() {}
	}
	path := filepath.Join(s.cfg.AuditDir, fmt.Sprintf("import-%d.log", runID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		s.log.Error("failed to open import audit log", err, map[string]interface{}{
			"path": path,
		})
		return zerolog.New(io.Discard), func() {}
	}
	audit := zerolog.New(f).With().Timestamp().Int64("import_log_id", runID).Logger()
	return audit, func() { f.Close() }
}
