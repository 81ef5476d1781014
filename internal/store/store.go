// Package store manages all DuckDB persistence operations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sessionlog/internal/model"

	_ "github.com/duckdb/duckdb-go/v2"
)

// Store wraps a DuckDB connection and exposes domain-specific persistence.
type Store struct {
	db *sql.DB
}

// Open creates a new Store connected to the given DuckDB file.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InitSchema creates the tables and indexes if they don't exist.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, coreSchema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// --- Session operations ---

const sessionColumns = `session_id, project_path, is_agent, agent_id, created_at, last_active,
	event_count, model, source_path, source_size, last_imported_at`

// GetSession returns the stored session, or nil if it has never been imported.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*model.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return rec, nil
}

// ReplaceStats describes what one ReplaceSession call changed.
type ReplaceStats struct {
	PreviousEvents   int // events stored for the session before the replace
	EventsStored     int // events stored for the session after the replace
	ToolUsesInserted int
	ToolUsesSkipped  int // duplicate tool-use ids
}

// ReplaceSession upserts the session and swaps its stored events for the
// given ones in a single transaction. The session's event count is
// recounted from storage and its import watermark only moves forward. On
// any error nothing is changed, the watermark included.
func (s *Store) ReplaceSession(ctx context.Context, rec model.SessionRecord, events []model.NormalizedEvent) (ReplaceStats, error) {
	stats, err := s.replaceSession(ctx, rec, events)
	if err != nil {
		return ReplaceStats{}, fmt.Errorf("%w: session %s: %w", model.ErrStoreWrite, rec.SessionID, err)
	}
	return stats, nil
}

func (s *Store) replaceSession(ctx context.Context, rec model.SessionRecord, events []model.NormalizedEvent) (ReplaceStats, error) {
	var stats ReplaceStats

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Indexed columns cannot be assigned in ON CONFLICT DO UPDATE, so the
	// metadata is written by the UPDATE at the end of the transaction.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id) VALUES (?)
		ON CONFLICT (session_id) DO NOTHING
	`, rec.SessionID); err != nil {
		return stats, fmt.Errorf("upsert session: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM events WHERE session_id = ?`, rec.SessionID,
	).Scan(&stats.PreviousEvents); err != nil {
		return stats, fmt.Errorf("count previous events: %w", err)
	}

	if stats.PreviousEvents > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM tool_uses
			WHERE event_uuid IN (SELECT uuid FROM events WHERE session_id = ? AND uuid IS NOT NULL)
		`, rec.SessionID); err != nil {
			return stats, fmt.Errorf("delete tool uses: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE session_id = ?`, rec.SessionID); err != nil {
			return stats, fmt.Errorf("delete events: %w", err)
		}
	}

	eventStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (
			session_id, uuid, parent_uuid, type, subtype, timestamp,
			cwd, git_branch, is_sidechain, agent_id, request_id,
			text, message, raw_data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uuid) DO UPDATE SET
			message  = excluded.message,
			raw_data = excluded.raw_data
	`)
	if err != nil {
		return stats, fmt.Errorf("prepare event insert: %w", err)
	}
	defer eventStmt.Close()

	toolStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tool_uses (event_uuid, tool_name, tool_use_id, input, timestamp)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tool_use_id) DO NOTHING
	`)
	if err != nil {
		return stats, fmt.Errorf("prepare tool use insert: %w", err)
	}
	defer toolStmt.Close()

	for i := range events {
		ev := &events[i]
		var message any
		if ev.Message != nil {
			message = rawJSON(ev.Message.RawMessage)
		}
		if _, err := eventStmt.ExecContext(ctx,
			rec.SessionID, nullStr(ev.UUID), nullStr(ev.ParentUUID), ev.Type, nullStr(ev.Subtype),
			nullTime(ev.Timestamp), nullStr(ev.CWD), nullStr(ev.GitBranch), ev.IsSidechain,
			nullStr(ev.AgentID), nullStr(ev.RequestID), nullStr(ev.Text()), message, string(ev.Raw),
		); err != nil {
			return stats, fmt.Errorf("insert event %s: %w", eventRef(ev, i), err)
		}

		for _, tu := range ev.ToolUses {
			if tu.EventUUID == "" {
				continue
			}
			res, err := toolStmt.ExecContext(ctx,
				tu.EventUUID, tu.ToolName, nullStr(tu.ToolCallID), rawJSON(tu.Input), nullTime(tu.Timestamp),
			)
			if err != nil {
				return stats, fmt.Errorf("insert tool use %s: %w", tu.ToolCallID, err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				stats.ToolUsesSkipped++
			} else {
				stats.ToolUsesInserted++
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET
			project_path     = ?,
			is_agent         = ?,
			agent_id         = ?,
			created_at       = ?,
			last_active      = ?,
			model            = ?,
			source_path      = ?,
			source_size      = ?,
			event_count      = (SELECT count(*) FROM events WHERE session_id = ?),
			last_imported_at = greatest(coalesce(last_imported_at, ?), ?)
		WHERE session_id = ?
	`,
		nullStr(rec.ProjectPath), rec.IsAgent, nullStr(rec.AgentID),
		nullTime(rec.CreatedAt), nullTime(rec.LastActive),
		nullStr(rec.Model), nullStr(rec.SourcePath), rec.SourceSize,
		rec.SessionID, rec.LastImportedAt.UTC(), rec.LastImportedAt.UTC(), rec.SessionID,
	); err != nil {
		return stats, fmt.Errorf("update session: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT event_count FROM sessions WHERE session_id = ?`, rec.SessionID,
	).Scan(&stats.EventsStored); err != nil {
		return stats, fmt.Errorf("read event count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit: %w", err)
	}
	return stats, nil
}

func eventRef(ev *model.NormalizedEvent, i int) string {
	if ev.UUID != "" {
		return ev.UUID
	}
	return fmt.Sprintf("#%d", i+1)
}

// --- Reporting ---

// ProjectStats returns session counts per project, busiest first.
func (s *Store) ProjectStats(ctx context.Context, limit int) ([]model.ProjectStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT coalesce(project_path, ''), count(*) AS session_count, max(last_active)
		FROM sessions
		GROUP BY project_path
		ORDER BY session_count DESC, project_path
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ProjectStat
	for rows.Next() {
		var p model.ProjectStat
		var last sql.NullTime
		if err := rows.Scan(&p.ProjectPath, &p.SessionCount, &last); err != nil {
			return nil, err
		}
		p.LastActive = timeOf(last)
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecentSessions returns sessions ordered by last activity.
func (s *Store) RecentSessions(ctx context.Context, limit int, tf *model.TimeFilter) ([]model.SessionRecord, error) {
	params := []any{}
	timeClause, params := appendTimeClauses(tf, "last_active", false, params)

	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		%s
		ORDER BY last_active DESC NULLS LAST
		LIMIT ?
	`, sessionColumns, timeClause)

	params = append(params, limit)
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ToolUsage counts stored tool invocations per tool name.
func (s *Store) ToolUsage(ctx context.Context, limit int) ([]model.NameCount, error) {
	return s.nameCounts(ctx, `
		SELECT tool_name, count(*) AS n
		FROM tool_uses
		GROUP BY tool_name
		ORDER BY n DESC, tool_name
		LIMIT ?
	`, limit)
}

// ModelUsage counts sessions per model.
func (s *Store) ModelUsage(ctx context.Context) ([]model.NameCount, error) {
	return s.nameCounts(ctx, `
		SELECT model, count(*) AS n
		FROM sessions
		WHERE model IS NOT NULL
		GROUP BY model
		ORDER BY n DESC, model
	`)
}

// SessionEventTypes counts a session's events per type.
func (s *Store) SessionEventTypes(ctx context.Context, sessionID string) ([]model.NameCount, error) {
	return s.nameCounts(ctx, `
		SELECT type, count(*) AS n
		FROM events
		WHERE session_id = ?
		GROUP BY type
		ORDER BY n DESC, type
	`, sessionID)
}

// SessionTools counts a session's tool invocations per tool name.
func (s *Store) SessionTools(ctx context.Context, sessionID string) ([]model.NameCount, error) {
	return s.nameCounts(ctx, `
		SELECT tu.tool_name, count(*) AS n
		FROM tool_uses tu
		JOIN events e ON tu.event_uuid = e.uuid
		WHERE e.session_id = ?
		GROUP BY tu.tool_name
		ORDER BY n DESC, tu.tool_name
	`, sessionID)
}

func (s *Store) nameCounts(ctx context.Context, query string, args ...any) ([]model.NameCount, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.NameCount
	for rows.Next() {
		var nc model.NameCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, err
		}
		out = append(out, nc)
	}
	return out, rows.Err()
}

// SessionTimeline returns the first and last known event timestamps.
func (s *Store) SessionTimeline(ctx context.Context, sessionID string) (model.Timeline, error) {
	var start, end sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT min(timestamp), max(timestamp) FROM events WHERE session_id = ?`, sessionID,
	).Scan(&start, &end)
	if err != nil {
		return model.Timeline{}, err
	}
	return model.Timeline{Start: timeOf(start), End: timeOf(end)}, nil
}

// RecentEvents returns the latest events of a session with a short preview,
// the extracted text when present and the raw line otherwise.
func (s *Store) RecentEvents(ctx context.Context, sessionID string, limit int) ([]model.EventPreview, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, timestamp,
		       substring(coalesce(nullif(text, ''), CAST(message AS VARCHAR), CAST(raw_data AS VARCHAR)), 1, 100)
		FROM events
		WHERE session_id = ?
		ORDER BY timestamp DESC NULLS LAST, id DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.EventPreview
	for rows.Next() {
		var p model.EventPreview
		var ts sql.NullTime
		var preview sql.NullString
		if err := rows.Scan(&p.Type, &ts, &preview); err != nil {
			return nil, err
		}
		p.Timestamp = timeOf(ts)
		p.Preview = preview.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- Search ---

// TextSearch performs a case-insensitive search over extracted event text.
func (s *Store) TextSearch(ctx context.Context, pattern string, limit int, tf *model.TimeFilter) ([]model.SearchResult, error) {
	params := []any{"%" + pattern + "%"}
	timeClause, params := appendTimeClauses(tf, "e.timestamp", true, params)

	query := fmt.Sprintf(`
		SELECT e.id, e.session_id, e.type, e.text, e.timestamp
		FROM events e
		WHERE e.text ILIKE ?
		%s
		ORDER BY e.timestamp DESC NULLS LAST
		LIMIT ?
	`, timeClause)

	params = append(params, limit)
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SearchResult
	for rows.Next() {
		var r model.SearchResult
		var ts sql.NullTime
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Type, &r.Content, &ts); err != nil {
			return nil, err
		}
		r.Timestamp = timeOf(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ToolSearch returns stored tool invocations, optionally filtered by a
// case-insensitive tool name fragment. An empty name or "*" matches all.
func (s *Store) ToolSearch(ctx context.Context, toolName string, limit int, tf *model.TimeFilter) ([]model.ToolResult, error) {
	var (
		where  string
		params []any
	)
	if toolName != "" && toolName != "*" {
		where = `WHERE tu.tool_name ILIKE '%' || ? || '%'`
		params = append(params, toolName)
	}
	timeClause, params := appendTimeClauses(tf, "tu.timestamp", where != "", params)

	query := fmt.Sprintf(`
		SELECT e.session_id, tu.tool_name, CAST(tu.input AS VARCHAR), tu.timestamp
		FROM tool_uses tu
		JOIN events e ON tu.event_uuid = e.uuid
		%s
		%s
		ORDER BY tu.timestamp DESC NULLS LAST
		LIMIT ?
	`, where, timeClause)

	params = append(params, limit)
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ToolResult
	for rows.Next() {
		var r model.ToolResult
		var input sql.NullString
		var ts sql.NullTime
		if err := rows.Scan(&r.SessionID, &r.ToolName, &input, &ts); err != nil {
			return nil, err
		}
		r.ToolInput = input.String
		r.Timestamp = timeOf(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.SessionRecord, error) {
	var (
		rec                          model.SessionRecord
		project, agent, mdl, srcPath sql.NullString
		created, last, imported      sql.NullTime
		size                         sql.NullInt64
	)
	if err := row.Scan(
		&rec.SessionID, &project, &rec.IsAgent, &agent, &created, &last,
		&rec.EventCount, &mdl, &srcPath, &size, &imported,
	); err != nil {
		return nil, err
	}
	rec.ProjectPath = project.String
	rec.AgentID = agent.String
	rec.Model = mdl.String
	rec.SourcePath = srcPath.String
	rec.SourceSize = size.Int64
	rec.CreatedAt = timeOf(created)
	rec.LastActive = timeOf(last)
	rec.LastImportedAt = timeOf(imported)
	return &rec, nil
}

// appendTimeClauses builds SQL fragments for time filtering.
// If hasWhere is true, clauses use "AND"; otherwise the first clause uses "WHERE".
func appendTimeClauses(tf *model.TimeFilter, tsCol string, hasWhere bool, params []any) (string, []any) {
	if tf == nil {
		return "", params
	}

	var clauses []string
	if tf.Since != nil {
		clauses = append(clauses, fmt.Sprintf("%s >= ?", tsCol))
		params = append(params, tf.Since.UTC())
	}
	if tf.Until != nil {
		clauses = append(clauses, fmt.Sprintf("%s <= ?", tsCol))
		params = append(params, tf.Until.UTC())
	}

	if len(clauses) == 0 {
		return "", params
	}

	var sb strings.Builder
	for i, c := range clauses {
		if i == 0 && !hasWhere {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(c)
	}
	return sb.String(), params
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullTime stores unknown (zero) timestamps as NULL and everything else in UTC.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func timeOf(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

func rawJSON(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}
