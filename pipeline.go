package stampcut

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/stampcut/blobstore"
	"github.com/hupe1980/stampcut/catalog"
	"github.com/hupe1980/stampcut/config"
	"github.com/hupe1980/stampcut/coordinator"
	"github.com/hupe1980/stampcut/footprint"
	"github.com/hupe1980/stampcut/internal/cache"
	"github.com/hupe1980/stampcut/internal/resource"
	"github.com/hupe1980/stampcut/match"
	"github.com/hupe1980/stampcut/resultlog"
	"github.com/hupe1980/stampcut/stitch"
	"github.com/hupe1980/stampcut/survey"
)

// LockName is the lock file taken in a local output directory.
const LockName = ".stampcut.lock"

// PhaseMatch is the sequential matching step between the two parallel
// phases.
const PhaseMatch = "match"

// Pipeline cuts postage stamps for every catalog target.
type Pipeline struct {
	cfg  config.Config
	opts options
}

// New validates cfg and creates a pipeline.
func New(cfg *config.Config, optFns ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{cfg: *cfg, opts: applyOptions(optFns)}, nil
}

// PhaseTiming is the wall time of one phase.
type PhaseTiming struct {
	Phase    string
	Items    int
	Workers  int
	Duration time.Duration
}

// Result summarizes a run.
type Result struct {
	RunID   string
	Targets int
	Images  int
	// SkippedImages are the tiles left out of the footprint index.
	SkippedImages []*ImageError
	// Truncated counts targets that matched more images than a row holds.
	Truncated int
	Table     *resultlog.Table
	Summary   *resultlog.Summary
	Phases    []PhaseTiming
	Duration  time.Duration
}

type run struct {
	*Pipeline
	runID  string
	logger *Logger
	rc     *resource.Controller
	// cacheReserve is the memory held by the survey block cache.
	cacheReserve int64
	survey       blobstore.BlobStore
	output       blobstore.BlobStore
	result       *Result
}

// Run executes the footprint, match and stitch phases and writes the log
// and report to the output store. The log and report are written even when
// the stitch phase aborts, covering the targets finished so far.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	runID := p.opts.runID
	if runID == "" {
		runID = p.cfg.RunID
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	r := &run{
		Pipeline: p,
		runID:    runID,
		logger:   p.opts.logger.WithRunID(runID),
		rc: resource.NewController(resource.Config{
			MemoryLimitBytes:   p.cfg.MemoryLimit,
			MaxOpenTiles:       p.cfg.MaxOpenTiles,
			IOLimitBytesPerSec: p.cfg.IOLimit,
		}),
		result: &Result{RunID: runID},
	}

	defer func() { r.rc.ReleaseMemory(r.cacheReserve) }()
	if err := r.openStores(ctx); err != nil {
		return nil, err
	}

	if l, ok := r.output.(blobstore.Locker); ok {
		unlock, err := l.Lock(ctx, LockName)
		if err != nil {
			if errors.Is(err, blobstore.ErrLocked) {
				return nil, fmt.Errorf("%w: %v", ErrOutputLocked, err)
			}
			return nil, err
		}
		defer func() {
			if err := unlock(); err != nil {
				r.logger.WarnContext(ctx, "release output lock", "error", err)
			}
		}()
	}

	if err := r.execute(ctx); err != nil {
		return r.result, err
	}

	r.result.Duration = time.Since(start)
	r.logger.LogPhase(ctx, "total", r.result.Targets, r.result.Duration, nil)
	return r.result, nil
}

func (r *run) openStores(ctx context.Context) error {
	r.survey = r.opts.surveyStore
	if r.survey == nil {
		loc, err := ParseLocation(r.cfg.Survey)
		if err != nil {
			return err
		}
		store, err := OpenStore(ctx, loc, r.cfg.Remote)
		if err != nil {
			return fmt.Errorf("stampcut: open survey: %w", err)
		}
		if loc.Remote() {
			store = r.throttle(r.wrapRemote(store))
			if r.cfg.CacheSize > 0 {
				// The cache holds its bytes for the whole run, so it must not
				// compete with canvases that block on the same budget.
				if !r.rc.TryAcquireMemory(r.cfg.CacheSize) {
					return fmt.Errorf("stampcut: %w: cache-size %d", resource.ErrMemoryLimitExceeded, r.cfg.CacheSize)
				}
				r.cacheReserve = r.cfg.CacheSize
				store = blobstore.NewCachingStore(store, cache.NewShardedLRUBlockCache(r.cfg.CacheSize, nil), 0)
			}
			r.survey = store
		} else {
			r.survey = r.throttle(store)
		}
	} else {
		r.survey = r.throttle(r.survey)
	}

	r.output = r.opts.outputStore
	if r.output == nil {
		loc, err := ParseLocation(r.cfg.Output)
		if err != nil {
			return err
		}
		store, err := OpenStore(ctx, loc, r.cfg.Remote)
		if err != nil {
			return fmt.Errorf("stampcut: open output: %w", err)
		}
		if loc.Remote() {
			store = r.wrapRemote(store)
		}
		r.output = store
	}
	return nil
}

func (r *run) throttle(store blobstore.BlobStore) blobstore.BlobStore {
	if r.cfg.IOLimit > 0 {
		return blobstore.NewThrottledStore(store, r.rc)
	}
	return store
}

func (r *run) wrapRemote(store blobstore.BlobStore) blobstore.BlobStore {
	rc := blobstore.DefaultRetryConfig()
	if r.cfg.Retries > 0 {
		rc.MaxTries = uint(r.cfg.Retries)
	}
	return blobstore.NewRetryStore(store, rc)
}

func (r *run) execute(ctx context.Context) error {
	if r.cfg.Clean {
		if err := r.clean(ctx); err != nil {
			return err
		}
	}

	cat, err := r.loadCatalog()
	if err != nil {
		return err
	}
	ra, dec, ids, err := r.targets(cat)
	if err != nil {
		return err
	}
	r.result.Targets = len(ra)

	tiles, err := r.enumerate(ctx)
	if err != nil {
		return err
	}
	r.result.Images = len(tiles)

	coord, err := coordinator.New(r.cfg.Threads)
	if err != nil {
		return err
	}
	src := survey.NewSource(r.survey, coord, r.rc)

	index, err := r.buildIndex(ctx, coord, src, tiles)
	if err != nil {
		return err
	}

	corr := r.match(ctx, index, ra, dec)

	table := resultlog.New(len(ra))
	r.result.Table = table

	stitchErr := r.stitch(ctx, coord, src, tiles, corr, table, ra, dec, ids)

	r.result.Summary = table.Summarize()
	if err := r.writeLogs(ctx, table); err != nil {
		if stitchErr != nil {
			return errors.Join(stitchErr, err)
		}
		return err
	}
	return stitchErr
}

// clean removes stamps left by a previous run.
func (r *run) clean(ctx context.Context) error {
	names, err := r.output.List(ctx, r.cfg.Prefix)
	if err != nil {
		return fmt.Errorf("stampcut: list output: %w", err)
	}
	suffix := r.cfg.Ext + r.cfg.Codec().Extension()
	removed := 0
	for _, name := range names {
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		if err := r.output.Delete(ctx, name); err != nil {
			return fmt.Errorf("stampcut: clean %s: %w", name, err)
		}
		removed++
	}
	r.logger.InfoContext(ctx, "output cleaned", "removed", removed)
	return nil
}

func (r *run) loadCatalog() (*catalog.Table, error) {
	if r.opts.catalog != nil {
		return r.opts.catalog, nil
	}
	return catalog.ReadFile(r.cfg.Catalog)
}

func (r *run) targets(cat *catalog.Table) (ra, dec []float64, ids []string, err error) {
	rows, cols := cat.Dims()
	for name, idx := range map[string]int{
		"ra-column":  r.cfg.RAIndex(),
		"dec-column": r.cfg.DecIndex(),
		"id-column":  r.cfg.IDIndex(),
	} {
		if idx >= cols {
			return nil, nil, nil, fmt.Errorf("%w: %s %d, catalog has %d columns", ErrColumnOutOfRange, name, idx+1, cols)
		}
	}
	if len(cat.Replaced) > 0 {
		r.logger.Warn("non-numeric catalog cells replaced",
			"count", len(cat.Replaced),
			"value", catalog.Replacement,
		)
	}

	ra = cat.Column(r.cfg.RAIndex())
	dec = cat.Column(r.cfg.DecIndex())
	ids = make([]string, rows)
	for i := range ids {
		if idx := r.cfg.IDIndex(); idx >= 0 {
			ids[i] = formatID(cat.At(i, idx))
		} else {
			ids[i] = strconv.Itoa(i + 1)
		}
	}
	return ra, dec, ids, nil
}

// formatID prints integral IDs without decimals.
func formatID(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (r *run) enumerate(ctx context.Context) ([]survey.Tile, error) {
	images, err := survey.Enumerate(ctx, r.survey, r.cfg.Images)
	if err != nil {
		return nil, err
	}
	var weights []string
	if r.cfg.Weights != "" {
		if weights, err = survey.Enumerate(ctx, r.survey, r.cfg.Weights); err != nil {
			return nil, err
		}
	}
	return survey.Pair(images, weights)
}

// timedOpener records the open of every tile during indexing.
type timedOpener struct {
	src     *survey.Source
	metrics MetricsCollector
}

func (o timedOpener) Open(ctx context.Context, name string) (*survey.Image, error) {
	start := time.Now()
	img, err := o.src.Open(ctx, name)
	o.metrics.RecordFootprint(time.Since(start), err)
	return img, err
}

func (r *run) buildIndex(ctx context.Context, coord *coordinator.Coordinator, src *survey.Source, tiles []survey.Tile) (*footprint.Index, error) {
	names := make([]string, len(tiles))
	for i, t := range tiles {
		names[i] = t.Image
	}

	index, stats, err := footprint.Build(ctx, coord, timedOpener{src: src, metrics: r.opts.metricsCollector}, names, r.cfg.Resolution)
	r.phaseDone(ctx, string(coordinator.PhaseFootprint), len(names), stats.Workers, stats.Duration, err)
	if err != nil {
		return nil, err
	}

	log := r.logger.WithPhase(coordinator.PhaseFootprint)
	for _, i := range index.Invalid() {
		ie := &ImageError{Index: i, Name: names[i], cause: index.Err(i)}
		r.result.SkippedImages = append(r.result.SkippedImages, ie)
		log.LogFootprint(ctx, i, names[i], ie)
	}
	return index, nil
}

func (r *run) match(ctx context.Context, index *footprint.Index, ra, dec []float64) *match.Correspondence {
	start := time.Now()
	corr := match.NewMatcher(index, r.cfg.StampSize).MatchAll(ra, dec)
	r.result.Truncated = corr.TruncatedCount()
	r.phaseDone(ctx, PhaseMatch, corr.Len(), 1, time.Since(start), nil)

	r.logger.InfoContext(ctx, "targets matched",
		"targets", corr.Len(),
		"unmatched", corr.Unmatched(),
		"images_used", corr.UsedImages().GetCardinality(),
		"truncated", r.result.Truncated,
	)
	return corr
}

func (r *run) stitch(ctx context.Context, coord *coordinator.Coordinator, src *survey.Source, tiles []survey.Tile,
	corr *match.Correspondence, table *resultlog.Table, ra, dec []float64, ids []string) error {
	st, err := stitch.New(stitch.Config{
		Side:        r.cfg.Side(),
		StampArcsec: r.cfg.StampSize,
		Resolution:  r.cfg.Resolution,
		CheckSize:   r.cfg.CheckSize,
		Prefix:      r.cfg.Prefix,
		Ext:         r.cfg.Ext,
		Compression: r.cfg.Codec(),
		RunID:       r.runID,
	}, tiles, src, r.output,
		stitch.WithResourceController(r.rc),
		stitch.WithObserver(r.opts.metricsCollector),
	)
	if err != nil {
		return err
	}

	done, err := r.resume(ctx, table)
	if err != nil {
		return err
	}

	stats, err := coord.Run(ctx, coordinator.PhaseStitch, len(ra), func(ctx context.Context, _ int, i int) error {
		if done[i] {
			return nil
		}
		entry, err := st.Stitch(ctx, stitch.Target{Index: i, ID: ids[i], RA: ra[i], Dec: dec[i], Images: corr.Row(i)})
		if err != nil {
			return err
		}
		if err := table.Record(entry); err != nil {
			return err
		}
		r.logger.LogStamp(ctx, entry)
		if r.opts.sink != nil {
			if err := r.opts.sink.Put(ctx, r.runID, entry); err != nil {
				r.logger.WithTarget(i, ids[i]).WarnContext(ctx, "result sink", "error", err)
			}
		}
		return nil
	})
	r.phaseDone(ctx, string(coordinator.PhaseStitch), len(ra), stats.Workers, stats.Duration, err)
	return err
}

// loader is implemented by sinks that can return earlier entries.
type loader interface {
	Load(ctx context.Context, runID string) ([]resultlog.Entry, error)
}

// resume records the entries a previous attempt of this run stored in the
// sink and returns the targets to skip.
func (r *run) resume(ctx context.Context, table *resultlog.Table) (map[int]bool, error) {
	done := make(map[int]bool)
	if !r.cfg.Resume {
		return done, nil
	}
	l, ok := r.opts.sink.(loader)
	if !ok {
		return nil, fmt.Errorf("stampcut: resume needs a sink that can load entries")
	}
	entries, err := l.Load(ctx, r.runID)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := table.Record(e); err != nil {
			return nil, err
		}
		done[e.Target] = true
	}
	r.logger.InfoContext(ctx, "resumed", "done", len(done))
	return done, nil
}

func (r *run) phaseDone(ctx context.Context, phase string, items, workers int, d time.Duration, err error) {
	r.result.Phases = append(r.result.Phases, PhaseTiming{Phase: phase, Items: items, Workers: workers, Duration: d})
	r.opts.metricsCollector.RecordPhase(phase, items, d)
	r.logger.LogPhase(ctx, phase, items, d, err)
}

func (r *run) writeLogs(ctx context.Context, table *resultlog.Table) error {
	ctx = context.WithoutCancel(ctx)

	var buf bytes.Buffer
	if err := table.WriteLog(&buf); err != nil {
		return err
	}
	if err := r.output.Put(ctx, r.cfg.LogFile, buf.Bytes()); err != nil {
		return fmt.Errorf("stampcut: write %s: %w", r.cfg.LogFile, err)
	}

	buf.Reset()
	if err := table.WriteReport(&buf); err != nil {
		return err
	}
	if err := r.output.Put(ctx, r.cfg.ReportFile, buf.Bytes()); err != nil {
		return fmt.Errorf("stampcut: write %s: %w", r.cfg.ReportFile, err)
	}
	return nil
}
