package store

import (
	"database/sql"
	"time"

	"github.com/OptimiLabs/velocity/internal/model"
	"github.com/OptimiLabs/velocity/internal/source"
)

// UpsertSkeletons writes project rows and session skeleton rows for a
// discovery pass inside one transaction, projects first so the session
// foreign key is satisfied. Existing session rows keep their aggregates.
func (s *Store) UpsertSkeletons(projects []source.DiscoveredProject, files []source.DiscoveredFile) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range projects {
		_, err := tx.Exec(`INSERT INTO projects (id, name, path, provider, dir)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, path = excluded.path, dir = excluded.dir`,
			p.ID, p.Name, p.Path, string(p.Provider), p.Dir,
		)
		if err != nil {
			return err
		}
	}

	for _, f := range files {
		role := model.RoleStandalone
		parent := ""
		if f.IsSubagent {
			role = model.RoleSubagent
			parent = f.ParentSession
		}
		_, err := tx.Exec(`INSERT INTO sessions (id, project_id, provider, role, parent_id, file_path)
			VALUES (?, ?, ?, ?, NULLIF(?, ''), ?)
			ON CONFLICT(id) DO UPDATE SET file_path = excluded.file_path`,
			f.SessionID, f.ProjectID, string(f.Provider), string(role), parent, f.Path,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeleteProjectsNotIn removes projects whose backing storage location has
// disappeared; their sessions cascade.
func (s *Store) DeleteProjectsNotIn(ids []string) (int, error) {
	existing, err := s.projectIDs()
	if err != nil {
		return 0, err
	}
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}

	deleted := 0
	for _, id := range existing {
		if keep[id] {
			continue
		}
		if _, err := s.db.Exec("DELETE FROM projects WHERE id = ?", id); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (s *Store) projectIDs() ([]string, error) {
	rows, err := s.db.Query("SELECT id FROM projects")
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

// RecomputeProjectAggregates re-derives every project's session count,
// token totals, cost, and last-activity timestamp from its child sessions.
func (s *Store) RecomputeProjectAggregates() error {
	_, err := s.db.Exec(`UPDATE projects SET
		session_count = COALESCE((SELECT COUNT(*) FROM sessions WHERE sessions.project_id = projects.id), 0),
		input_tokens  = COALESCE((SELECT SUM(input_tokens) FROM sessions WHERE sessions.project_id = projects.id), 0),
		output_tokens = COALESCE((SELECT SUM(output_tokens) FROM sessions WHERE sessions.project_id = projects.id), 0),
		cache_read    = COALESCE((SELECT SUM(cache_read) FROM sessions WHERE sessions.project_id = projects.id), 0),
		cache_write   = COALESCE((SELECT SUM(cache_write) FROM sessions WHERE sessions.project_id = projects.id), 0),
		total_cost    = COALESCE((SELECT SUM(total_cost) FROM sessions WHERE sessions.project_id = projects.id), 0),
		last_activity = (SELECT MAX(modified_at) FROM sessions WHERE sessions.project_id = projects.id)`)
	return err
}

// ListProjects returns all projects ordered by cost descending.
func (s *Store) ListProjects() ([]model.Project, error) {
	rows, err := s.db.Query(`SELECT id, name, path, provider, session_count,
		input_tokens, output_tokens, cache_read, cache_write, total_cost, last_activity
		FROM projects ORDER BY total_cost DESC, name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		var path, lastActivity sql.NullString
		var provider string
		err := rows.Scan(&p.ID, &p.Name, &path, &provider, &p.SessionCount,
			&p.Usage.Input, &p.Usage.Output, &p.Usage.CacheRead, &p.Usage.CacheWrite,
			&p.TotalCost, &lastActivity)
		if err != nil {
			return nil, err
		}
		p.Provider = model.Provider(provider)
		p.Path = path.String
		if lastActivity.Valid && lastActivity.String != "" {
			p.LastActivity, _ = time.Parse(time.RFC3339, lastActivity.String)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
