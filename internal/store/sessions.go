package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/OptimiLabs/velocity/internal/model"
)

// FileState is the stored change-detection state for a session's backing
// file.
type FileState struct {
	MtimeNs    int64
	Size       int64
	Aggregated bool
}

// SessionFileStates maps session id → stored file state for the whole
// index, used by the incremental pass to select aggregation work.
func (s *Store) SessionFileStates() (map[string]FileState, error) {
	rows, err := s.db.Query("SELECT id, file_mtime_ns, file_size, aggregated_at IS NOT NULL FROM sessions")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]FileState)
	for rows.Next() {
		var id string
		var fs FileState
		if err := rows.Scan(&id, &fs.MtimeNs, &fs.Size, &fs.Aggregated); err != nil {
			return nil, err
		}
		out[id] = fs
	}
	return out, rows.Err()
}

// SessionIDsForProject returns the stored session ids belonging to one
// project.
func (s *Store) SessionIDsForProject(projectID string) ([]string, error) {
	rows, err := s.db.Query("SELECT id FROM sessions WHERE project_id = ?", projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteSession removes one session row; child rows cascade.
func (s *Store) DeleteSession(id string) error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", id)
	return err
}

// SaveAggregate persists a fully aggregated session, replacing its tool
// and model breakdowns and adding instruction-file links, in one
// transaction.
func (s *Store) SaveAggregate(sess *model.Session, mtimeNs, size int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)

	_, err = tx.Exec(`UPDATE sessions SET
		role = ?, parent_id = NULLIF(?, ''), slug = ?, first_prompt = ?, git_branch = ?,
		effort = ?, plan = ?, project_path = ?, file_path = ?,
		messages = ?, tool_calls = ?, thinking_blocks = ?,
		input_tokens = ?, output_tokens = ?, cache_read = ?, cache_write = ?,
		total_cost = ?, cache_hit_rate = ?,
		pricing_status = ?, unpriced_tokens = ?, unpriced_messages = ?,
		latency_avg_ms = ?, latency_p50_ms = ?, latency_p95_ms = ?, latency_max_ms = ?, latency_samples = ?,
		duration_secs = ?, context_window = ?,
		files_json = ?, skills_json = ?, subagents_json = ?, mcp_json = ?, searched_json = ?, summary_json = ?,
		created_at = ?, modified_at = ?,
		file_mtime_ns = ?, file_size = ?, aggregated_at = ?
		WHERE id = ?`,
		string(sess.Role), sess.ParentID, sess.Slug, sess.FirstPrompt, sess.GitBranch,
		sess.Effort, sess.Plan, sess.ProjectPath, sess.FilePath,
		sess.Messages, sess.ToolCalls, sess.ThinkingBlocks,
		sess.Usage.Input, sess.Usage.Output, sess.Usage.CacheRead, sess.Usage.CacheWrite,
		sess.TotalCost, sess.CacheHitRate,
		string(sess.Status), sess.UnpricedTokens, sess.UnpricedMessages,
		sess.Latency.AvgMs, sess.Latency.P50Ms, sess.Latency.P95Ms, sess.Latency.MaxMs, sess.Latency.Samples,
		sess.DurationSecs, sess.ContextWindow,
		marshalJSON(sess.Files), marshalJSON(sess.Skills), marshalJSON(sess.Subagents),
		marshalJSON(sess.MCPServers), marshalJSON(sess.SearchedRoots), marshalJSON(sess.Summary),
		formatTime(sess.CreatedAt), formatTime(sess.ModifiedAt),
		mtimeNs, size, now,
		sess.ID,
	)
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM session_tools WHERE session_id = ?", sess.ID); err != nil {
		return err
	}
	for tool, tu := range sess.Tools {
		_, err := tx.Exec(`INSERT INTO session_tools
			(session_id, tool, calls, errors, input_tokens, output_tokens, cache_read, cache_write, cost)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, tool, tu.Calls, tu.Errors,
			tu.Usage.Input, tu.Usage.Output, tu.Usage.CacheRead, tu.Usage.CacheWrite, tu.Cost,
		)
		if err != nil {
			return err
		}
	}

	if _, err := tx.Exec("DELETE FROM session_models WHERE session_id = ?", sess.ID); err != nil {
		return err
	}
	for name, mu := range sess.Models {
		_, err := tx.Exec(`INSERT INTO session_models
			(session_id, model, messages, input_tokens, output_tokens, cache_read, cache_write, cost, pricing_status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, name, mu.Messages,
			mu.Usage.Input, mu.Usage.Output, mu.Usage.CacheRead, mu.Usage.CacheWrite,
			mu.Cost, string(mu.Status),
		)
		if err != nil {
			return err
		}
	}

	// Links are only ever added, never updated.
	for _, link := range sess.Links {
		fileID, err := lookupOrCreateInstructionFile(tx, link.Path)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT OR IGNORE INTO session_instruction_files (session_id, file_id, method)
			VALUES (?, ?, ?)`, sess.ID, fileID, string(link.Method))
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SetParent records a subagent's resolved parent session and corrects its
// role.
func (s *Store) SetParent(sessionID, parentID string) error {
	_, err := s.db.Exec(
		"UPDATE sessions SET parent_id = ?, role = ? WHERE id = ?",
		parentID, string(model.RoleSubagent), sessionID,
	)
	return err
}

// SessionRow is the lightweight listing shape used for queries and parent
// linking.
type SessionRow struct {
	ID           string
	ProjectID    string
	Provider     model.Provider
	Role         model.SessionRole
	ParentID     string
	FirstPrompt  string
	FilePath     string
	Messages     int
	ToolCalls    int
	Usage        model.TokenUsage
	TotalCost    float64
	CacheHitRate float64
	Status       model.PricingStatus
	DurationSecs int64
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// ListSessions returns all sessions ordered by cost descending.
func (s *Store) ListSessions() ([]SessionRow, error) {
	rows, err := s.db.Query(`SELECT id, project_id, provider, role, COALESCE(parent_id, ''),
		COALESCE(first_prompt, ''), file_path, messages, tool_calls,
		input_tokens, output_tokens, cache_read, cache_write, total_cost, cache_hit_rate,
		pricing_status, duration_secs, COALESCE(created_at, ''), COALESCE(modified_at, '')
		FROM sessions ORDER BY total_cost DESC, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		var provider, role, status, created, modified string
		err := rows.Scan(&r.ID, &r.ProjectID, &provider, &role, &r.ParentID,
			&r.FirstPrompt, &r.FilePath, &r.Messages, &r.ToolCalls,
			&r.Usage.Input, &r.Usage.Output, &r.Usage.CacheRead, &r.Usage.CacheWrite,
			&r.TotalCost, &r.CacheHitRate, &status, &r.DurationSecs, &created, &modified)
		if err != nil {
			return nil, err
		}
		r.Provider = model.Provider(provider)
		r.Role = model.SessionRole(role)
		r.Status = model.PricingStatus(status)
		r.CreatedAt = parseStoredTime(created)
		r.ModifiedAt = parseStoredTime(modified)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetSession returns one session row by id.
func (s *Store) GetSession(id string) (*SessionRow, error) {
	rows, err := s.ListSessions()
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].ID == id {
			return &rows[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

// LinkCount returns the number of instruction-file links for a session.
func (s *Store) LinkCount(sessionID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM session_instruction_files WHERE session_id = ?", sessionID,
	).Scan(&n)
	return n, err
}

// Counts returns the stored project and session row counts.
func (s *Store) Counts() (projects, sessions int, err error) {
	if err = s.db.QueryRow("SELECT COUNT(*) FROM projects").Scan(&projects); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&sessions); err != nil {
		return 0, 0, err
	}
	return projects, sessions, nil
}

func lookupOrCreateInstructionFile(tx *sql.Tx, path string) (int64, error) {
	var id int64
	err := tx.QueryRow("SELECT id FROM instruction_files WHERE path = ?", path).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	res, err := tx.Exec("INSERT INTO instruction_files (path) VALUES (?)", path)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func marshalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseStoredTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
