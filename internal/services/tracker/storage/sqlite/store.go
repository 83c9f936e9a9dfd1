// Package sqlite provides SQLite-backed persistence for tracker entities.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/veritest/veritest/internal/platform/errors"
	"github.com/veritest/veritest/internal/platform/storage/sqlitemigrate"
	"github.com/veritest/veritest/internal/services/tracker/domain"
	"github.com/veritest/veritest/internal/services/tracker/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store implements domain.Store on a SQLite database.
type Store struct {
	sqlDB *sql.DB
}

var errNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")
var errConflict = apperrors.New(apperrors.CodeRevisionConflict, "record revision moved")

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toNullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

// Open opens a tracker SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := ensureForeignKeysEnabled(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func ensureForeignKeysEnabled(db *sql.DB) error {
	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("check sqlite foreign key pragma: %w", err)
	}
	if enabled != 1 {
		return fmt.Errorf("sqlite foreign keys are disabled")
	}
	return nil
}

func (s *Store) ready() error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// --- Users ---

// GetUser loads one user by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	if err := s.ready(); err != nil {
		return domain.User{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, role, department, active
FROM users
WHERE id = ?
`, strings.TrimSpace(userID))

	var user domain.User
	var roleLabel string
	var active int
	if err := row.Scan(&user.ID, &user.Name, &roleLabel, &user.Department, &active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, errNotFound
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	role, err := domain.RoleFromLabel(roleLabel)
	if err != nil {
		return domain.User{}, apperrors.Wrap(apperrors.CodeUserInvalidRole, "stored user role is invalid", err)
	}
	user.Role = role
	user.Active = active == 1
	return user, nil
}

// PutUser upserts one user row.
func (s *Store) PutUser(ctx context.Context, user domain.User) error {
	if err := s.ready(); err != nil {
		return err
	}
	active := 0
	if user.Active {
		active = 1
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (id, name, role, department, active)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	role = excluded.role,
	department = excluded.department,
	active = excluded.active
`, strings.TrimSpace(user.ID), user.Name, domain.RoleLabel(user.Role), user.Department, active)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// --- Scenarios ---

const scenarioColumns = `id, title, description, status, owner_id, reviewed_by_id, version, end_dated_at, created_at, updated_at, revision`

// GetScenario loads one scenario by ID.
func (s *Store) GetScenario(ctx context.Context, scenarioID string) (domain.TestScenario, error) {
	if err := s.ready(); err != nil {
		return domain.TestScenario{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+scenarioColumns+`
FROM test_scenarios
WHERE id = ?
`, strings.TrimSpace(scenarioID))
	return scanScenario(row.Scan)
}

// PutScenario inserts one scenario row.
func (s *Store) PutScenario(ctx context.Context, scenario domain.TestScenario) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO test_scenarios (`+scenarioColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		scenario.ID,
		scenario.Title,
		scenario.Description,
		domain.ScenarioStatusLabel(scenario.Status),
		scenario.OwnerID,
		scenario.ReviewedByID,
		scenario.Version,
		toNullMillis(scenario.EndDatedAt),
		toMillis(scenario.CreatedAt),
		toMillis(scenario.UpdatedAt),
		scenario.Revision,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errConflict
		}
		return fmt.Errorf("put scenario: %w", err)
	}
	return nil
}

// UpdateScenario writes a scenario whose revision must immediately
// follow the stored one.
func (s *Store) UpdateScenario(ctx context.Context, scenario domain.TestScenario) error {
	if err := s.ready(); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE test_scenarios
SET title = ?, description = ?, status = ?, owner_id = ?, reviewed_by_id = ?,
	version = ?, end_dated_at = ?, updated_at = ?, revision = ?
WHERE id = ? AND revision = ?
`,
		scenario.Title,
		scenario.Description,
		domain.ScenarioStatusLabel(scenario.Status),
		scenario.OwnerID,
		scenario.ReviewedByID,
		scenario.Version,
		toNullMillis(scenario.EndDatedAt),
		toMillis(scenario.UpdatedAt),
		scenario.Revision,
		scenario.ID,
		scenario.Revision-1,
	)
	if err != nil {
		return fmt.Errorf("update scenario: %w", err)
	}
	return s.checkRevisionWrite(ctx, result, "test_scenarios", scenario.ID)
}

func scanScenario(scan func(dest ...any) error) (domain.TestScenario, error) {
	var scenario domain.TestScenario
	var statusLabel string
	var endDatedAt sql.NullInt64
	var createdAt, updatedAt int64
	if err := scan(
		&scenario.ID,
		&scenario.Title,
		&scenario.Description,
		&statusLabel,
		&scenario.OwnerID,
		&scenario.ReviewedByID,
		&scenario.Version,
		&endDatedAt,
		&createdAt,
		&updatedAt,
		&scenario.Revision,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TestScenario{}, errNotFound
		}
		return domain.TestScenario{}, fmt.Errorf("scan scenario: %w", err)
	}
	status, err := domain.ScenarioStatusFromLabel(statusLabel)
	if err != nil {
		return domain.TestScenario{}, fmt.Errorf("stored scenario status: %w", err)
	}
	scenario.Status = status
	scenario.EndDatedAt = fromNullMillis(endDatedAt)
	scenario.CreatedAt = fromMillis(createdAt)
	scenario.UpdatedAt = fromMillis(updatedAt)
	return scenario, nil
}

// --- Plans ---

const planColumns = `id, name, description, status, created_by_id, approved_by_id, approved_at, created_at, updated_at, revision`

// GetPlan loads one plan by ID.
func (s *Store) GetPlan(ctx context.Context, planID string) (domain.TestPlan, error) {
	if err := s.ready(); err != nil {
		return domain.TestPlan{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+planColumns+`
FROM test_plans
WHERE id = ?
`, strings.TrimSpace(planID))
	return scanPlan(row.Scan)
}

// PutPlan inserts one plan row.
func (s *Store) PutPlan(ctx context.Context, plan domain.TestPlan) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO test_plans (`+planColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		plan.ID,
		plan.Name,
		plan.Description,
		domain.PlanStatusLabel(plan.Status),
		plan.CreatedByID,
		plan.ApprovedByID,
		toNullMillis(plan.ApprovedAt),
		toMillis(plan.CreatedAt),
		toMillis(plan.UpdatedAt),
		plan.Revision,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errConflict
		}
		return fmt.Errorf("put plan: %w", err)
	}
	return nil
}

// UpdatePlan writes a plan guarded by the revision check.
func (s *Store) UpdatePlan(ctx context.Context, plan domain.TestPlan) error {
	if err := s.ready(); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE test_plans
SET name = ?, description = ?, status = ?, created_by_id = ?, approved_by_id = ?,
	approved_at = ?, updated_at = ?, revision = ?
WHERE id = ? AND revision = ?
`,
		plan.Name,
		plan.Description,
		domain.PlanStatusLabel(plan.Status),
		plan.CreatedByID,
		plan.ApprovedByID,
		toNullMillis(plan.ApprovedAt),
		toMillis(plan.UpdatedAt),
		plan.Revision,
		plan.ID,
		plan.Revision-1,
	)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	return s.checkRevisionWrite(ctx, result, "test_plans", plan.ID)
}

func scanPlan(scan func(dest ...any) error) (domain.TestPlan, error) {
	var plan domain.TestPlan
	var statusLabel string
	var approvedAt sql.NullInt64
	var createdAt, updatedAt int64
	if err := scan(
		&plan.ID,
		&plan.Name,
		&plan.Description,
		&statusLabel,
		&plan.CreatedByID,
		&plan.ApprovedByID,
		&approvedAt,
		&createdAt,
		&updatedAt,
		&plan.Revision,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TestPlan{}, errNotFound
		}
		return domain.TestPlan{}, fmt.Errorf("scan plan: %w", err)
	}
	status, err := domain.PlanStatusFromLabel(statusLabel)
	if err != nil {
		return domain.TestPlan{}, fmt.Errorf("stored plan status: %w", err)
	}
	plan.Status = status
	plan.ApprovedAt = fromNullMillis(approvedAt)
	plan.CreatedAt = fromMillis(createdAt)
	plan.UpdatedAt = fromMillis(updatedAt)
	return plan, nil
}

// --- Cycles ---

const cycleColumns = `id, name, test_plan_id, status, created_by_id, assigned_tester_ids, completion_percentage, started_at, ended_at, created_at, updated_at, revision`

// GetCycle loads one cycle by ID.
func (s *Store) GetCycle(ctx context.Context, cycleID string) (domain.TestCycle, error) {
	if err := s.ready(); err != nil {
		return domain.TestCycle{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+cycleColumns+`
FROM test_cycles
WHERE id = ?
`, strings.TrimSpace(cycleID))
	return scanCycle(row.Scan)
}

// PutCycle inserts one cycle row.
func (s *Store) PutCycle(ctx context.Context, cycle domain.TestCycle) error {
	if err := s.ready(); err != nil {
		return err
	}
	testerIDs, err := encodeTesterIDs(cycle.AssignedTesterIDs)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO test_cycles (`+cycleColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		cycle.ID,
		cycle.Name,
		cycle.TestPlanID,
		domain.CycleStatusLabel(cycle.Status),
		cycle.CreatedByID,
		testerIDs,
		cycle.CompletionPercentage,
		toNullMillis(cycle.StartedAt),
		toNullMillis(cycle.EndedAt),
		toMillis(cycle.CreatedAt),
		toMillis(cycle.UpdatedAt),
		cycle.Revision,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errConflict
		}
		if isForeignKeyConstraintError(err) {
			return errNotFound
		}
		return fmt.Errorf("put cycle: %w", err)
	}
	return nil
}

// UpdateCycle writes a cycle guarded by the revision check.
func (s *Store) UpdateCycle(ctx context.Context, cycle domain.TestCycle) error {
	if err := s.ready(); err != nil {
		return err
	}
	testerIDs, err := encodeTesterIDs(cycle.AssignedTesterIDs)
	if err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE test_cycles
SET name = ?, status = ?, created_by_id = ?, assigned_tester_ids = ?,
	completion_percentage = ?, started_at = ?, ended_at = ?, updated_at = ?, revision = ?
WHERE id = ? AND revision = ?
`,
		cycle.Name,
		domain.CycleStatusLabel(cycle.Status),
		cycle.CreatedByID,
		testerIDs,
		cycle.CompletionPercentage,
		toNullMillis(cycle.StartedAt),
		toNullMillis(cycle.EndedAt),
		toMillis(cycle.UpdatedAt),
		cycle.Revision,
		cycle.ID,
		cycle.Revision-1,
	)
	if err != nil {
		return fmt.Errorf("update cycle: %w", err)
	}
	return s.checkRevisionWrite(ctx, result, "test_cycles", cycle.ID)
}

func encodeTesterIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode tester ids: %w", err)
	}
	return string(encoded), nil
}

func scanCycle(scan func(dest ...any) error) (domain.TestCycle, error) {
	var cycle domain.TestCycle
	var statusLabel, testerIDs string
	var startedAt, endedAt sql.NullInt64
	var createdAt, updatedAt int64
	if err := scan(
		&cycle.ID,
		&cycle.Name,
		&cycle.TestPlanID,
		&statusLabel,
		&cycle.CreatedByID,
		&testerIDs,
		&cycle.CompletionPercentage,
		&startedAt,
		&endedAt,
		&createdAt,
		&updatedAt,
		&cycle.Revision,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TestCycle{}, errNotFound
		}
		return domain.TestCycle{}, fmt.Errorf("scan cycle: %w", err)
	}
	status, err := domain.CycleStatusFromLabel(statusLabel)
	if err != nil {
		return domain.TestCycle{}, fmt.Errorf("stored cycle status: %w", err)
	}
	cycle.Status = status
	if err := json.Unmarshal([]byte(testerIDs), &cycle.AssignedTesterIDs); err != nil {
		return domain.TestCycle{}, fmt.Errorf("decode tester ids: %w", err)
	}
	cycle.StartedAt = fromNullMillis(startedAt)
	cycle.EndedAt = fromNullMillis(endedAt)
	cycle.CreatedAt = fromMillis(createdAt)
	cycle.UpdatedAt = fromMillis(updatedAt)
	return cycle, nil
}

// --- Executions ---

const executionColumns = `id, test_cycle_id, test_scenario_id, assigned_tester_id, status, notes, execution_date, completion_date, retest_count, created_at, updated_at, revision`

// GetExecution loads one execution attempt by ID.
func (s *Store) GetExecution(ctx context.Context, executionID string) (domain.TestExecution, error) {
	if err := s.ready(); err != nil {
		return domain.TestExecution{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+executionColumns+`
FROM test_executions
WHERE id = ?
`, strings.TrimSpace(executionID))
	return scanExecution(row.Scan)
}

// PutExecution inserts one execution row.
func (s *Store) PutExecution(ctx context.Context, execution domain.TestExecution) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO test_executions (`+executionColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		execution.ID,
		execution.TestCycleID,
		execution.TestScenarioID,
		execution.AssignedTesterID,
		domain.ExecutionStatusLabel(execution.Status),
		execution.Notes,
		toNullMillis(execution.ExecutionDate),
		toNullMillis(execution.CompletionDate),
		execution.RetestCount,
		toMillis(execution.CreatedAt),
		toMillis(execution.UpdatedAt),
		execution.Revision,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errConflict
		}
		if isForeignKeyConstraintError(err) {
			return errNotFound
		}
		return fmt.Errorf("put execution: %w", err)
	}
	return nil
}

// UpdateExecution writes an execution guarded by the revision check.
func (s *Store) UpdateExecution(ctx context.Context, execution domain.TestExecution) error {
	if err := s.ready(); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE test_executions
SET status = ?, notes = ?, execution_date = ?, completion_date = ?,
	retest_count = ?, updated_at = ?, revision = ?
WHERE id = ? AND revision = ?
`,
		domain.ExecutionStatusLabel(execution.Status),
		execution.Notes,
		toNullMillis(execution.ExecutionDate),
		toNullMillis(execution.CompletionDate),
		execution.RetestCount,
		toMillis(execution.UpdatedAt),
		execution.Revision,
		execution.ID,
		execution.Revision-1,
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	return s.checkRevisionWrite(ctx, result, "test_executions", execution.ID)
}

// ListExecutionsByCycle lists every execution attempt for one cycle.
func (s *Store) ListExecutionsByCycle(ctx context.Context, cycleID string) ([]domain.TestExecution, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+executionColumns+`
FROM test_executions
WHERE test_cycle_id = ?
ORDER BY created_at ASC, id ASC
`, strings.TrimSpace(cycleID))
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var executions []domain.TestExecution
	for rows.Next() {
		execution, scanErr := scanExecution(rows.Scan)
		if scanErr != nil {
			return nil, scanErr
		}
		executions = append(executions, execution)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution rows: %w", err)
	}
	return executions, nil
}

func scanExecution(scan func(dest ...any) error) (domain.TestExecution, error) {
	var execution domain.TestExecution
	var statusLabel string
	var executionDate, completionDate sql.NullInt64
	var createdAt, updatedAt int64
	if err := scan(
		&execution.ID,
		&execution.TestCycleID,
		&execution.TestScenarioID,
		&execution.AssignedTesterID,
		&statusLabel,
		&execution.Notes,
		&executionDate,
		&completionDate,
		&execution.RetestCount,
		&createdAt,
		&updatedAt,
		&execution.Revision,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TestExecution{}, errNotFound
		}
		return domain.TestExecution{}, fmt.Errorf("scan execution: %w", err)
	}
	status, err := domain.ExecutionStatusFromLabel(statusLabel)
	if err != nil {
		return domain.TestExecution{}, fmt.Errorf("stored execution status: %w", err)
	}
	execution.Status = status
	execution.ExecutionDate = fromNullMillis(executionDate)
	execution.CompletionDate = fromNullMillis(completionDate)
	execution.CreatedAt = fromMillis(createdAt)
	execution.UpdatedAt = fromMillis(updatedAt)
	return execution, nil
}

// --- Defects ---

const defectColumns = `id, title, description, severity, category, status, reported_by_id, assigned_to_id, assigned_group, resolution_notes, retest_required, retest_result, assigned_date, resolved_date, retest_date, closed_date, created_at, updated_at, revision`

// GetDefect loads one defect by ID.
func (s *Store) GetDefect(ctx context.Context, defectID string) (domain.Defect, error) {
	if err := s.ready(); err != nil {
		return domain.Defect{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+defectColumns+`
FROM defects
WHERE id = ?
`, strings.TrimSpace(defectID))
	return scanDefect(row.Scan)
}

// PutDefect inserts one defect row.
func (s *Store) PutDefect(ctx context.Context, defect domain.Defect) error {
	if err := s.ready(); err != nil {
		return err
	}
	retestRequired := 0
	if defect.RetestRequired {
		retestRequired = 1
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO defects (`+defectColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		defect.ID,
		defect.Title,
		defect.Description,
		domain.DefectSeverityLabel(defect.Severity),
		defect.Category,
		domain.DefectStatusLabel(defect.Status),
		defect.ReportedByID,
		defect.AssignedToID,
		defect.AssignedGroup,
		defect.ResolutionNotes,
		retestRequired,
		domain.RetestResultLabel(defect.RetestResult),
		toNullMillis(defect.AssignedDate),
		toNullMillis(defect.ResolvedDate),
		toNullMillis(defect.RetestDate),
		toNullMillis(defect.ClosedDate),
		toMillis(defect.CreatedAt),
		toMillis(defect.UpdatedAt),
		defect.Revision,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errConflict
		}
		return fmt.Errorf("put defect: %w", err)
	}
	return nil
}

// UpdateDefect writes a defect guarded by the revision check.
func (s *Store) UpdateDefect(ctx context.Context, defect domain.Defect) error {
	if err := s.ready(); err != nil {
		return err
	}
	retestRequired := 0
	if defect.RetestRequired {
		retestRequired = 1
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE defects
SET title = ?, description = ?, severity = ?, category = ?, status = ?,
	reported_by_id = ?, assigned_to_id = ?, assigned_group = ?, resolution_notes = ?,
	retest_required = ?, retest_result = ?, assigned_date = ?, resolved_date = ?,
	retest_date = ?, closed_date = ?, updated_at = ?, revision = ?
WHERE id = ? AND revision = ?
`,
		defect.Title,
		defect.Description,
		domain.DefectSeverityLabel(defect.Severity),
		defect.Category,
		domain.DefectStatusLabel(defect.Status),
		defect.ReportedByID,
		defect.AssignedToID,
		defect.AssignedGroup,
		defect.ResolutionNotes,
		retestRequired,
		domain.RetestResultLabel(defect.RetestResult),
		toNullMillis(defect.AssignedDate),
		toNullMillis(defect.ResolvedDate),
		toNullMillis(defect.RetestDate),
		toNullMillis(defect.ClosedDate),
		toMillis(defect.UpdatedAt),
		defect.Revision,
		defect.ID,
		defect.Revision-1,
	)
	if err != nil {
		return fmt.Errorf("update defect: %w", err)
	}
	return s.checkRevisionWrite(ctx, result, "defects", defect.ID)
}

func scanDefect(scan func(dest ...any) error) (domain.Defect, error) {
	var defect domain.Defect
	var severityLabel, statusLabel, retestLabel string
	var retestRequired int
	var assignedDate, resolvedDate, retestDate, closedDate sql.NullInt64
	var createdAt, updatedAt int64
	if err := scan(
		&defect.ID,
		&defect.Title,
		&defect.Description,
		&severityLabel,
		&defect.Category,
		&statusLabel,
		&defect.ReportedByID,
		&defect.AssignedToID,
		&defect.AssignedGroup,
		&defect.ResolutionNotes,
		&retestRequired,
		&retestLabel,
		&assignedDate,
		&resolvedDate,
		&retestDate,
		&closedDate,
		&createdAt,
		&updatedAt,
		&defect.Revision,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Defect{}, errNotFound
		}
		return domain.Defect{}, fmt.Errorf("scan defect: %w", err)
	}
	status, err := domain.DefectStatusFromLabel(statusLabel)
	if err != nil {
		return domain.Defect{}, fmt.Errorf("stored defect status: %w", err)
	}
	retestResult, err := domain.RetestResultFromLabel(retestLabel)
	if err != nil {
		return domain.Defect{}, fmt.Errorf("stored retest result: %w", err)
	}
	defect.Severity = domain.DefectSeverityFromLabel(severityLabel)
	defect.Status = status
	defect.RetestResult = retestResult
	defect.RetestRequired = retestRequired == 1
	defect.AssignedDate = fromNullMillis(assignedDate)
	defect.ResolvedDate = fromNullMillis(resolvedDate)
	defect.RetestDate = fromNullMillis(retestDate)
	defect.ClosedDate = fromNullMillis(closedDate)
	defect.CreatedAt = fromMillis(createdAt)
	defect.UpdatedAt = fromMillis(updatedAt)
	return defect, nil
}

// checkRevisionWrite distinguishes a missing row from a lost revision
// race after a guarded UPDATE touched zero rows.
func (s *Store) checkRevisionWrite(ctx context.Context, result sql.Result, table string, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	var found int
	err = s.sqlDB.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return errNotFound
	}
	if err != nil {
		return fmt.Errorf("check %s row: %w", table, err)
	}
	return errConflict
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}

func isForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "foreign key constraint failed")
}
