// Package indexer drives discovery, aggregation, and persistence of the
// session index.
package indexer

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"github.com/OptimiLabs/velocity/internal/aggregate"
	"github.com/OptimiLabs/velocity/internal/model"
	"github.com/OptimiLabs/velocity/internal/pricing"
	"github.com/OptimiLabs/velocity/internal/source"
	"github.com/OptimiLabs/velocity/internal/store"
)

// EnrichmentVersion identifies the aggregation logic generation. Bumping
// it invalidates every stored aggregate on the next run, forcing a full
// re-aggregation even when no transcript changed.
const EnrichmentVersion = 1

// ProgressFunc is called as sessions finish aggregating.
type ProgressFunc func(current, total int)

// Options configures an indexing run.
type Options struct {
	Roots                source.Roots
	Resolver             *pricing.Resolver
	Plan                 string
	DefaultContextWindow int64
	LatencyCeiling       time.Duration
	BatchWidth           int           // zero means GOMAXPROCS
	BatchDelay           time.Duration // pause between batches
	Progress             ProgressFunc

	// DirExists and FileExists are injectable for tests.
	DirExists  source.DirExistsFunc
	FileExists func(path string) bool
}

// Result summarizes one indexing run.
type Result struct {
	Projects    int // projects discovered
	Sessions    int // sessions aggregated this run
	Skipped     int // sessions already up to date
	Deleted     int // orphaned projects and sessions removed
	Failed      int // sessions that could not be aggregated
	FullReindex bool
}

// Indexer runs discovery and aggregation against one store.
type Indexer struct {
	st   *store.Store
	opts Options
}

func New(st *store.Store, opts Options) *Indexer {
	if opts.DirExists == nil {
		opts.DirExists = source.OSDirExists
	}
	if opts.FileExists == nil {
		opts.FileExists = func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && !info.IsDir()
		}
	}
	if opts.BatchWidth <= 0 {
		opts.BatchWidth = runtime.GOMAXPROCS(0)
	}
	return &Indexer{st: st, opts: opts}
}

// Rebuild re-aggregates every discovered session.
func (ix *Indexer) Rebuild() (*Result, error) {
	return ix.run(true)
}

// Incremental aggregates only sessions whose backing file changed since
// they were last stored. A missing index timestamp or an
// aggregation-logic version bump upgrades the pass to a full one.
func (ix *Indexer) Incremental() (*Result, error) {
	return ix.run(false)
}

// NukeAndRebuild drops all indexed data and rebuilds from scratch.
func (ix *Indexer) NukeAndRebuild() (*Result, error) {
	if err := ix.st.Nuke(); err != nil {
		return nil, fmt.Errorf("clearing index: %w", err)
	}
	return ix.run(true)
}

func (ix *Indexer) run(full bool) (*Result, error) {
	started := time.Now().UTC()

	scan, err := source.Scan(ix.opts.Roots, ix.opts.DirExists)
	if err != nil {
		return nil, fmt.Errorf("discovering sessions: %w", err)
	}

	storedVersion, err := ix.st.GetMeta(store.MetaEnrichmentVersion)
	if err != nil {
		return nil, err
	}
	if storedVersion != strconv.Itoa(EnrichmentVersion) {
		full = true
	}
	lastIndexed := time.Time{}
	if raw, err := ix.st.GetMeta(store.MetaLastIndexedAt); err != nil {
		return nil, err
	} else if raw != "" {
		lastIndexed, _ = time.Parse(time.RFC3339, raw)
	}
	if lastIndexed.IsZero() {
		full = true
	}

	res := &Result{Projects: len(scan.Projects), FullReindex: full}

	if err := ix.st.UpsertSkeletons(scan.Projects, scan.Files); err != nil {
		return nil, fmt.Errorf("upserting skeletons: %w", err)
	}

	deleted, err := ix.deleteOrphans(scan)
	if err != nil {
		return nil, err
	}
	res.Deleted = deleted

	states, err := ix.st.SessionFileStates()
	if err != nil {
		return nil, err
	}

	projPaths := make(map[string]string, len(scan.Projects))
	projMod := make(map[string]time.Time, len(scan.Projects))
	for _, p := range scan.Projects {
		projPaths[p.ID] = p.Path
		projMod[p.ID] = p.ModTime
	}

	var work []source.DiscoveredFile
	for pid, files := range lo.GroupBy(scan.Files, func(f source.DiscoveredFile) string { return f.ProjectID }) {
		// A project directory untouched since the last run is skipped
		// wholesale, unless an earlier run left sessions half indexed.
		if !full && projMod[pid].Before(lastIndexed) && allUpToDate(files, states) {
			res.Skipped += len(files)
			continue
		}
		for _, f := range files {
			if !full && upToDate(f, states) {
				res.Skipped++
				continue
			}
			work = append(work, f)
		}
	}

	aggregated, failed := ix.aggregateAll(work, projPaths)
	res.Sessions = aggregated
	res.Failed = failed

	if err := ix.linkParents(); err != nil {
		return nil, err
	}
	if err := ix.st.RecomputeProjectAggregates(); err != nil {
		return nil, fmt.Errorf("recomputing project aggregates: %w", err)
	}

	if err := ix.st.SetMeta(store.MetaLastIndexedAt, started.Format(time.RFC3339)); err != nil {
		return nil, err
	}
	if err := ix.st.SetMeta(store.MetaEnrichmentVersion, strconv.Itoa(EnrichmentVersion)); err != nil {
		return nil, err
	}
	return res, nil
}

func upToDate(f source.DiscoveredFile, states map[string]store.FileState) bool {
	st, ok := states[f.SessionID]
	return ok && st.Aggregated && f.ModTime.UnixNano() <= st.MtimeNs && f.Size == st.Size
}

func allUpToDate(files []source.DiscoveredFile, states map[string]store.FileState) bool {
	return lo.EveryBy(files, func(f source.DiscoveredFile) bool { return upToDate(f, states) })
}

// deleteOrphans removes projects and sessions whose backing files no
// longer exist on disk.
func (ix *Indexer) deleteOrphans(scan *source.ScanResult) (int, error) {
	projectIDs := lo.Map(scan.Projects, func(p source.DiscoveredProject, _ int) string { return p.ID })
	deleted, err := ix.st.DeleteProjectsNotIn(projectIDs)
	if err != nil {
		return deleted, fmt.Errorf("deleting orphaned projects: %w", err)
	}

	seen := make(map[string]map[string]bool)
	for _, f := range scan.Files {
		if seen[f.ProjectID] == nil {
			seen[f.ProjectID] = make(map[string]bool)
		}
		seen[f.ProjectID][f.SessionID] = true
	}
	// Every surviving project is diffed, including ones whose session
	// files have all been removed.
	for _, p := range scan.Projects {
		ids := seen[p.ID]
		stored, err := ix.st.SessionIDsForProject(p.ID)
		if err != nil {
			return deleted, err
		}
		for _, id := range stored {
			if ids[id] {
				continue
			}
			if err := ix.st.DeleteSession(id); err != nil {
				return deleted, fmt.Errorf("deleting orphaned session %s: %w", id, err)
			}
			deleted++
		}
	}
	return deleted, nil
}

// aggregateAll processes work in bounded batches. A failing file is
// counted and left unaggregated so the next run retries it.
func (ix *Indexer) aggregateAll(work []source.DiscoveredFile, projPaths map[string]string) (aggregated, failed int) {
	if len(work) == 0 {
		return 0, 0
	}

	var done atomic.Int64
	var failures atomic.Int64

	for i, batch := range lo.Chunk(work, ix.opts.BatchWidth) {
		if i > 0 && ix.opts.BatchDelay > 0 {
			time.Sleep(ix.opts.BatchDelay)
		}
		var wg sync.WaitGroup
		wg.Add(len(batch))
		for _, f := range batch {
			go func(f source.DiscoveredFile) {
				defer wg.Done()
				if err := ix.aggregateOne(f, projPaths[f.ProjectID]); err != nil {
					failures.Add(1)
				}
				n := done.Add(1)
				if ix.opts.Progress != nil {
					ix.opts.Progress(int(n), len(work))
				}
			}(f)
		}
		wg.Wait()
	}

	failed = int(failures.Load())
	return len(work) - failed, failed
}

func (ix *Indexer) aggregateOne(f source.DiscoveredFile, projectPath string) error {
	sess, err := aggregate.Run(source.NewParser(f.Provider, f.Path), f, aggregate.Options{
		Resolver:             ix.opts.Resolver,
		LatencyCeiling:       ix.opts.LatencyCeiling,
		DefaultContextWindow: ix.opts.DefaultContextWindow,
		Plan:                 ix.opts.Plan,
		ProjectPath:          projectPath,
		FileExists:           ix.opts.FileExists,
	})
	if err != nil {
		return err
	}
	return ix.st.SaveAggregate(sess, f.ModTime.UnixNano(), f.Size)
}

// linkParents resolves sub-agent sessions whose owning session is not
// evident from the storage layout: the parent is the standalone session
// in the same project whose activity span covers the child's start, with
// the closest start time winning ties.
func (ix *Indexer) linkParents() error {
	rows, err := ix.st.ListSessions()
	if err != nil {
		return err
	}

	orphans := lo.Filter(rows, func(r store.SessionRow, _ int) bool {
		return r.Role == model.RoleSubagent && r.ParentID == ""
	})
	if len(orphans) == 0 {
		return nil
	}

	byProject := lo.GroupBy(rows, func(r store.SessionRow) string { return r.ProjectID })

	for _, child := range orphans {
		if child.CreatedAt.IsZero() {
			continue
		}
		var best *store.SessionRow
		for i, cand := range byProject[child.ProjectID] {
			if cand.Role != model.RoleStandalone || cand.ID == child.ID {
				continue
			}
			if cand.CreatedAt.IsZero() || child.CreatedAt.Before(cand.CreatedAt) || child.CreatedAt.After(cand.ModifiedAt) {
				continue
			}
			if best == nil || cand.CreatedAt.After(best.CreatedAt) {
				best = &byProject[child.ProjectID][i]
			}
		}
		if best == nil {
			continue
		}
		if err := ix.st.SetParent(child.ID, best.ID); err != nil {
			return err
		}
	}
	return nil
}
