// Package migration moves usage history from the legacy two-table layout
// (usage_records for finished use, current_usage for ongoing use) into the
// unified usage_periods ledger.
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/activity"
	"github.com/ganot/quilt-tracker/internal/domain/quilt"
	"github.com/ganot/quilt-tracker/internal/sqlite"
	"github.com/google/uuid"
)

// Legacy table names, also recorded as legacy_source on migrated rows.
const (
	SourceUsageRecords = "usage_records"
	SourceCurrentUsage = "current_usage"
)

// ErrCountMismatch means the migrated rows do not account for every legacy
// row. The transaction is rolled back.
var ErrCountMismatch = errors.New("legacy row count does not reconcile")

// Options controls a migration run.
type Options struct {
	DryRun bool
	Now    func() time.Time
	Logger *slog.Logger
}

// Skipped is a legacy row that was not migrated.
type Skipped struct {
	Source string `json:"source"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Report describes what a run did, or would do under DryRun.
type Report struct {
	DryRun           bool      `json:"dry_run"`
	LegacyRows       int       `json:"legacy_rows"`
	Migrated         int       `json:"migrated"`
	AlreadyMigrated  int       `json:"already_migrated"`
	Skipped          []Skipped `json:"skipped"`
	ClosedDuplicates int       `json:"closed_duplicates"`
	StatusRepaired   []string  `json:"status_repaired"`
	// InUseWithoutPeriod lists IN_USE quilts that have no open period after
	// the run. They are reported for manual review and left unchanged.
	InUseWithoutPeriod []string `json:"in_use_without_period"`
}

type legacyRow struct {
	source  string
	id      string
	quiltID string
	start   time.Time
	end     *time.Time
	note    string
}

func (r legacyRow) key() string {
	return r.source + "/" + r.id
}

type openPeriod struct {
	// periodID is set for a period already in usage_periods.
	periodID string
	row      *legacyRow
	start    time.Time
}

// Run performs the migration in a single transaction. The legacy tables
// only exist in SQLite deployments, so Run works on *sqlite.DB alone.
func Run(ctx context.Context, db *sqlite.DB, opts Options) (Report, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	report := Report{DryRun: opts.DryRun}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return report, fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	rows, err := loadLegacyRows(ctx, tx)
	if err != nil {
		return report, err
	}
	report.LegacyRows = len(rows)

	statuses, err := loadStatuses(ctx, tx)
	if err != nil {
		return report, err
	}
	migrated, err := loadMigratedKeys(ctx, tx)
	if err != nil {
		return report, err
	}
	opens, err := loadOpenPeriods(ctx, tx)
	if err != nil {
		return report, err
	}
	previouslyMigrated := len(migrated)

	now := opts.Now().UTC()
	var pending []legacyRow
	for _, r := range rows {
		switch {
		case migrated[r.key()]:
			report.AlreadyMigrated++
		case statuses[r.quiltID] == "":
			report.Skipped = append(report.Skipped, Skipped{Source: r.source, ID: r.id, Reason: "unknown quilt " + r.quiltID})
		case r.end != nil && r.end.Before(r.start):
			report.Skipped = append(report.Skipped, Skipped{Source: r.source, ID: r.id, Reason: "ends before it starts"})
		case r.start.After(now):
			report.Skipped = append(report.Skipped, Skipped{Source: r.source, ID: r.id, Reason: "starts in the future"})
		default:
			pending = append(pending, r)
		}
	}

	// Gather every open candidate per quilt: legacy open rows and the
	// period already open in the unified ledger, if any.
	candidates := map[string][]openPeriod{}
	for quiltID, p := range opens {
		candidates[quiltID] = append(candidates[quiltID], p)
	}
	var closed []legacyRow
	for i := range pending {
		r := pending[i]
		if r.end != nil {
			closed = append(closed, r)
			continue
		}
		candidates[r.quiltID] = append(candidates[r.quiltID], openPeriod{row: &pending[i], start: r.start})
	}

	for _, r := range closed {
		if err := insertPeriod(ctx, tx, r, now); err != nil {
			return report, err
		}
		report.Migrated++
	}

	quiltIDs := make([]string, 0, len(candidates))
	for id := range candidates {
		quiltIDs = append(quiltIDs, id)
	}
	sort.Strings(quiltIDs)

	for _, quiltID := range quiltIDs {
		list := candidates[quiltID]
		sort.SliceStable(list, func(i, j int) bool { return list[i].start.After(list[j].start) })
		keep := list[0]

		// Older open candidates end where the kept one starts.
		for _, stale := range list[1:] {
			end := keep.start
			if stale.periodID != "" {
				if _, err := tx.ExecContext(ctx,
					`UPDATE usage_periods SET end_time = ? WHERE id = ? AND end_time IS NULL`,
					sqlite.FormatTime(end), stale.periodID); err != nil {
					return report, fmt.Errorf("closing duplicate open period %s: %w", stale.periodID, err)
				}
			} else {
				r := *stale.row
				r.end = &end
				if err := insertPeriod(ctx, tx, r, now); err != nil {
					return report, err
				}
				report.Migrated++
			}
			report.ClosedDuplicates++
			opts.Logger.Warn("closed duplicate open period", "quilt_id", quiltID, "kept_start", keep.start)
		}

		if keep.row != nil {
			if err := insertPeriod(ctx, tx, *keep.row, now); err != nil {
				return report, err
			}
			report.Migrated++
		}

		if statuses[quiltID] != quilt.StatusInUse {
			if _, err := tx.ExecContext(ctx,
				`UPDATE quilts SET status = ?, updated_at = ? WHERE id = ?`,
				quilt.StatusInUse, sqlite.FormatTime(now), quiltID); err != nil {
				return report, fmt.Errorf("setting quilt %s in use: %w", quiltID, err)
			}
			report.StatusRepaired = append(report.StatusRepaired, quiltID)
			statuses[quiltID] = quilt.StatusInUse
		}
	}

	for id, status := range statuses {
		if status == quilt.StatusInUse && len(candidates[id]) == 0 {
			report.InUseWithoutPeriod = append(report.InUseWithoutPeriod, id)
		}
	}
	sort.Strings(report.InUseWithoutPeriod)

	if err := reconcileCounts(ctx, tx, report, previouslyMigrated); err != nil {
		return report, err
	}

	if opts.DryRun {
		opts.Logger.Info("ledger migration dry run", "legacy_rows", report.LegacyRows, "migrated", report.Migrated)
		return report, nil
	}

	if report.Migrated > 0 || report.ClosedDuplicates > 0 || len(report.StatusRepaired) > 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO activity_log (quilt_id, period_id, activity_type, summary, details, created_at) VALUES (NULL, NULL, ?, ?, '', ?)`,
			activity.TypeLedgerMigrated,
			fmt.Sprintf("migrated %d legacy usage rows, closed %d duplicate open periods, repaired %d statuses",
				report.Migrated, report.ClosedDuplicates, len(report.StatusRepaired)),
			sqlite.FormatTime(now)); err != nil {
			return report, fmt.Errorf("logging migration: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return report, fmt.Errorf("commit migration: %w", err)
	}
	opts.Logger.Info("ledger migration committed",
		"legacy_rows", report.LegacyRows,
		"migrated", report.Migrated,
		"already_migrated", report.AlreadyMigrated,
		"skipped", len(report.Skipped),
		"closed_duplicates", report.ClosedDuplicates,
	)
	return report, nil
}

// reconcileCounts checks that every legacy row is either in the ledger or
// reported as skipped.
func reconcileCounts(ctx context.Context, tx *sql.Tx, report Report, previouslyMigrated int) error {
	accounted := report.Migrated + report.AlreadyMigrated + len(report.Skipped)
	if accounted != report.LegacyRows {
		return fmt.Errorf("%w: %d legacy rows, %d accounted for", ErrCountMismatch, report.LegacyRows, accounted)
	}

	var inLedger int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usage_periods WHERE legacy_id IS NOT NULL`).Scan(&inLedger); err != nil {
		return fmt.Errorf("counting migrated periods: %w", err)
	}
	if inLedger != previouslyMigrated+report.Migrated {
		return fmt.Errorf("%w: ledger holds %d migrated periods, expected %d",
			ErrCountMismatch, inLedger, previouslyMigrated+report.Migrated)
	}
	return nil
}

func insertPeriod(ctx context.Context, tx *sql.Tx, r legacyRow, now time.Time) error {
	var end sql.NullString
	if r.end != nil {
		end = sql.NullString{String: sqlite.FormatTime(*r.end), Valid: true}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO usage_periods (id, quilt_id, start_time, end_time, note, created_at, legacy_source, legacy_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), r.quiltID, sqlite.FormatTime(r.start), end, r.note, sqlite.FormatTime(now), r.source, r.id)
	if err != nil {
		return fmt.Errorf("migrating %s: %w", r.key(), err)
	}
	return nil
}

func tableExists(ctx context.Context, tx *sql.Tx, name string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking for table %s: %w", name, err)
	}
	return n > 0, nil
}

func loadLegacyRows(ctx context.Context, tx *sql.Tx) ([]legacyRow, error) {
	var out []legacyRow

	queries := []struct {
		source string
		query  string
	}{
		{SourceUsageRecords, `SELECT id, quilt_id, start_date, end_date, COALESCE(notes, '') FROM usage_records ORDER BY id`},
		{SourceCurrentUsage, `SELECT id, quilt_id, started_at, NULL, COALESCE(notes, '') FROM current_usage ORDER BY id`},
	}
	for _, q := range queries {
		ok, err := tableExists(ctx, tx, q.source)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		rows, err := tx.QueryContext(ctx, q.query)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", q.source, err)
		}
		for rows.Next() {
			var (
				r         legacyRow
				id        any
				start     string
				end, note sql.NullString
			)
			if err := rows.Scan(&id, &r.quiltID, &start, &end, &note); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning %s: %w", q.source, err)
			}
			r.source = q.source
			r.id = fmt.Sprint(id)
			r.note = note.String
			if r.start, err = parseLegacyTime(start); err != nil {
				rows.Close()
				return nil, fmt.Errorf("%s/%s: %w", q.source, r.id, err)
			}
			if end.Valid && strings.TrimSpace(end.String) != "" {
				t, err := parseLegacyTime(end.String)
				if err != nil {
					rows.Close()
					return nil, fmt.Errorf("%s/%s: %w", q.source, r.id, err)
				}
				r.end = &t
			}
			out = append(out, r)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("reading %s: %w", q.source, err)
		}
		rows.Close()
	}
	return out, nil
}

func loadStatuses(ctx context.Context, tx *sql.Tx) (map[string]quilt.Status, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, status FROM quilts`)
	if err != nil {
		return nil, fmt.Errorf("reading quilts: %w", err)
	}
	defer rows.Close()

	out := map[string]quilt.Status{}
	for rows.Next() {
		var id string
		var status quilt.Status
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("scanning quilt: %w", err)
		}
		out[id] = status
	}
	return out, rows.Err()
}

func loadMigratedKeys(ctx context.Context, tx *sql.Tx) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT legacy_source, legacy_id FROM usage_periods WHERE legacy_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("reading migrated periods: %w", err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var source, id string
		if err := rows.Scan(&source, &id); err != nil {
			return nil, fmt.Errorf("scanning migrated period: %w", err)
		}
		out[source+"/"+id] = true
	}
	return out, rows.Err()
}

func loadOpenPeriods(ctx context.Context, tx *sql.Tx) (map[string]openPeriod, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, quilt_id, start_time FROM usage_periods WHERE end_time IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("reading open periods: %w", err)
	}
	defer rows.Close()

	out := map[string]openPeriod{}
	for rows.Next() {
		var id, quiltID, start string
		if err := rows.Scan(&id, &quiltID, &start); err != nil {
			return nil, fmt.Errorf("scanning open period: %w", err)
		}
		t, err := sqlite.ParseTime(start)
		if err != nil {
			return nil, err
		}
		out[quiltID] = openPeriod{periodID: id, start: t}
	}
	return out, rows.Err()
}

var legacyLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// parseLegacyTime accepts the layouts the old tables were written with.
// Values without a zone are UTC.
func parseLegacyTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range legacyLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
