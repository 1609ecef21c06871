package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"artdedup/internal/config"
	"artdedup/internal/fingerprint"
	"artdedup/internal/logging"
	"artdedup/internal/metrics"
	"artdedup/internal/services"
	"artdedup/internal/similarity"
	"artdedup/internal/store"
)

// Scope restricts a full scan. Pairs are formed among the records in scope.
type Scope struct {
	YearFrom *int
	YearTo   *int
	IDs      []int64
}

func (s Scope) validate() error {
	if s.YearFrom != nil && s.YearTo != nil && *s.YearFrom > *s.YearTo {
		return fmt.Errorf("year range %d-%d is empty", *s.YearFrom, *s.YearTo)
	}
	return nil
}

func (s Scope) filter() store.ArtworkFilter {
	return store.ArtworkFilter{YearFrom: s.YearFrom, YearTo: s.YearTo, IDs: s.IDs}
}

// Options configures one full scan. Zero values fall back to configuration.
type Options struct {
	Methods    []similarity.Method
	Thresholds *similarity.Thresholds
	Scope      Scope
}

// Match is one qualifying pair found by CheckRecord.
type Match struct {
	OtherID     int64
	Method      similarity.Method
	Score       float64
	CandidateID int64
	Status      store.CandidateStatus
	// Existing is true when the pair was already stored before this check.
	Existing bool
}

// Scanner runs full scans and single-record checks against a store.
type Scanner struct {
	store      *store.Store
	logger     *slog.Logger
	thresholds similarity.Thresholds
	policy     similarity.MissingFieldPolicy
	methods    []similarity.Method
	yearWindow int
	batchSize  int
	workers    int
	imageDir   string

	runs     *registry
	baseCtx  context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup
	generate func(path string) (fingerprint.Fingerprint, error)
}

// New builds a scanner from the dedup configuration.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Scanner, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("scanner requires config and store")
	}
	policy, err := similarity.ParseMissingFieldPolicy(cfg.Dedup.MissingFields)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "scanner", "configure", "", err)
	}
	methods, err := similarity.ParseMethods(cfg.Dedup.Methods)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "scanner", "configure", "", err)
	}
	thresholds := similarity.Thresholds{
		ImageHash: cfg.Dedup.ImageThreshold,
		Title:     cfg.Dedup.TitleThreshold,
		Metadata:  cfg.Dedup.MetadataThreshold,
		Combined:  cfg.Dedup.CombinedThreshold,
	}
	if err := thresholds.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "scanner", "configure", "", err)
	}

	baseCtx, stop := context.WithCancel(context.Background())
	return &Scanner{
		store:      st,
		logger:     logging.NewComponentLogger(logger, "scanner"),
		thresholds: thresholds,
		policy:     policy,
		methods:    methods,
		yearWindow: max(cfg.Dedup.YearWindow, 0),
		batchSize:  max(cfg.Dedup.BatchSize, 1),
		workers:    max(cfg.Dedup.Workers, 1),
		imageDir:   cfg.Paths.ImageDir,
		runs:       newRegistry(cfg.ScanRetention()),
		baseCtx:    baseCtx,
		stop:       stop,
		generate:   fingerprint.GenerateFile,
	}, nil
}

// Thresholds returns the configured default thresholds.
func (s *Scanner) Thresholds() similarity.Thresholds {
	return s.thresholds
}

func (s *Scanner) comparator(opts Options) (*similarity.Comparator, error) {
	thresholds := s.thresholds
	if opts.Thresholds != nil {
		thresholds = *opts.Thresholds
	}
	methods := s.methods
	if len(opts.Methods) > 0 {
		methods = opts.Methods
	}
	for _, m := range methods {
		if _, err := similarity.ParseMethod(string(m)); err != nil {
			return nil, err
		}
	}
	return similarity.NewComparator(thresholds, s.policy, methods...)
}

// Start launches a background scan and returns its handle immediately.
func (s *Scanner) Start(ctx context.Context, opts Options) (string, error) {
	if err := s.baseCtx.Err(); err != nil {
		return "", services.Wrap(nil, "scanner", "start", "scanner is shut down", err)
	}
	if err := opts.Scope.validate(); err != nil {
		return "", services.Wrap(services.ErrValidation, "scanner", "start", "", err)
	}
	cmp, err := s.comparator(opts)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "scanner", "start", "", err)
	}

	handle := uuid.NewString()
	runCtx, cancel := context.WithCancel(s.baseCtx)
	runCtx = services.WithScanID(runCtx, handle)
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		runCtx = services.WithRequestID(runCtx, rid)
	}
	r := newRun(handle, cmp.Methods(), cancel, time.Now().UTC())
	s.runs.add(r)

	s.wg.Add(1)
	go s.execute(runCtx, r, cmp, opts.Scope)
	return handle, nil
}

// Status returns the progress of a scan. Unknown or pruned handles yield
// services.ErrScanNotFound.
func (s *Scanner) Status(handle string) (Progress, error) {
	r, ok := s.runs.get(handle)
	if !ok {
		return Progress{}, services.Wrap(services.ErrScanNotFound, "scanner", "status", fmt.Sprintf("handle %q", handle), nil)
	}
	return r.snapshot(), nil
}

// Scans returns every retained scan, oldest first.
func (s *Scanner) Scans() []Progress {
	runs := s.runs.all()
	out := make([]Progress, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.snapshot())
	}
	return out
}

// Cancel stops a running scan. Candidates already written stay valid.
// Cancelling a finished scan is a no-op.
func (s *Scanner) Cancel(handle string) (Progress, error) {
	r, ok := s.runs.get(handle)
	if !ok {
		return Progress{}, services.Wrap(services.ErrScanNotFound, "scanner", "cancel", fmt.Sprintf("handle %q", handle), nil)
	}
	r.cancel()
	return r.snapshot(), nil
}

// Wait blocks until the scan finishes or ctx is done and returns its final progress.
func (s *Scanner) Wait(ctx context.Context, handle string) (Progress, error) {
	r, ok := s.runs.get(handle)
	if !ok {
		return Progress{}, services.Wrap(services.ErrScanNotFound, "scanner", "wait", fmt.Sprintf("handle %q", handle), nil)
	}
	select {
	case <-r.done:
		return r.snapshot(), nil
	case <-ctx.Done():
		return r.snapshot(), ctx.Err()
	}
}

// Close cancels running scans and waits for them to stop.
func (s *Scanner) Close() {
	s.stop()
	s.wg.Wait()
}

func (s *Scanner) execute(ctx context.Context, r *run, cmp *similarity.Comparator, scope Scope) {
	defer s.wg.Done()
	defer r.cancel()

	logger := logging.WithContext(ctx, s.logger)
	started := time.Now()
	metrics.ScansStarted.Inc()
	metrics.ScansRunning.Inc()
	defer metrics.ScansRunning.Dec()

	logger.Info("scan started", logging.Any("methods", cmp.Methods()), logging.Int("year_window", s.yearWindow))

	err := s.scan(ctx, r, cmp, scope, logger)
	state := StateCompleted
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		state = StateCancelled
		err = nil
	default:
		state = StateFailed
	}
	r.finish(state, err, time.Now().UTC())
	metrics.RecordScanFinished(string(state), time.Since(started))

	p := r.snapshot()
	attrs := []logging.Attr{
		logging.String("state", string(state)),
		logging.Int64("processed", p.Processed),
		logging.Int64("total", p.Total),
		logging.Int64("candidates_found", p.CandidatesFound),
		logging.Int64("errors", p.Errors),
		logging.Int64("skipped", p.Skipped),
		logging.Duration("elapsed", time.Since(started)),
	}
	if state == StateFailed {
		logging.ErrorWithContext(logger, "scan failed", "scan_failed", append(attrs,
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access and rerun the scan"),
		)...)
		return
	}
	logger.Info("scan finished", logging.Args(attrs...)...)
}

func (s *Scanner) scan(ctx context.Context, r *run, cmp *similarity.Comparator, scope Scope, logger *slog.Logger) error {
	filter := scope.filter()
	if err := s.backfill(ctx, filter, r, logger); err != nil {
		return fmt.Errorf("fingerprint backfill: %w", err)
	}

	profiles, err := s.loadProfiles(ctx, filter, func(err error) {
		r.recordError(err)
		metrics.ScanErrors.WithLabelValues("profile").Inc()
		logging.WarnWithContext(logger, "skipping malformed fingerprint", "fingerprint_malformed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "clear the stored fingerprint so the image is rehashed"),
			logging.String(logging.FieldImpact, "image signal ignored for this record"),
		)
	})
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}
	r.total.Store(int64(len(profiles)))

	seen, err := s.store.PairKeys(ctx)
	if err != nil {
		return fmt.Errorf("load existing pairs: %w", err)
	}

	var stopErr error
	forEachPair(profiles, s.yearWindow, func(a, b *similarity.Profile) bool {
		if err := ctx.Err(); err != nil {
			stopErr = err
			return false
		}
		key := store.NewPairKey(a.ID, b.ID)
		if _, ok := seen[key]; ok {
			return true
		}
		metrics.PairsCompared.Inc()
		res := cmp.Evaluate(a, b)
		if !res.Qualified {
			return true
		}
		c, inserted, err := s.store.InsertCandidate(ctx, store.CandidateFromResult(a.ID, b.ID, res))
		if err != nil {
			if ctx.Err() != nil {
				stopErr = ctx.Err()
				return false
			}
			r.recordError(err)
			metrics.ScanErrors.WithLabelValues("insert").Inc()
			logging.WarnWithContext(logger, "candidate insert failed", "candidate_insert_failed",
				logging.String("pair", key.String()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "rerun the scan; existing pairs are skipped"),
				logging.String(logging.FieldImpact, "pair not recorded in this scan"),
			)
			return true
		}
		seen[key] = struct{}{}
		if inserted {
			r.found.Add(1)
			metrics.CandidatesDetected.WithLabelValues(string(res.Method)).Inc()
			logger.Debug("candidate detected",
				logging.Int64(logging.FieldCandidateID, c.ID),
				logging.String("pair", key.String()),
				logging.String("method", string(res.Method)),
				logging.Float64("score", res.Score),
			)
		}
		return true
	}, func() { r.processed.Add(1) })
	return stopErr
}

// backfill fingerprints images in filter that have neither a fingerprint nor
// a recorded failure. Per-image failures are counted on r (when set) and
// skipped; only cancellation and store failures abort. Images that failed in
// an earlier pass are counted as skipped.
func (s *Scanner) backfill(ctx context.Context, filter store.ArtworkFilter, r *run, logger *slog.Logger) error {
	if r != nil {
		failed, err := s.store.FailedImageCount(ctx, filter)
		if err != nil {
			return err
		}
		if failed > 0 {
			r.skipped.Store(failed)
			logging.WarnWithContext(logger, "skipping images with recorded fingerprint failures", "image_failure_cached",
				logging.Int64("images", failed),
				logging.String(logging.FieldErrorHint, "replace the image files, then clear fingerprint errors"),
				logging.String(logging.FieldImpact, "records compared without these images"),
			)
		}
	}
	images, err := s.store.UnfingerprintedImages(ctx, filter)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return nil
	}
	logger.Debug("fingerprinting images", logging.Int("images", len(images)), logging.Int("workers", s.workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, img := range images {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := s.fingerprintImage(gctx, img)
			switch {
			case err == nil:
				if r != nil {
					r.fingerprinted.Add(1)
				}
				return nil
			case fingerprint.IsUnreadable(err):
				if r != nil {
					r.recordError(err)
				}
				metrics.ScanErrors.WithLabelValues("fingerprint").Inc()
				logging.WarnWithContext(logger, "image could not be fingerprinted", "image_unreadable",
					logging.Int64(logging.FieldArtworkID, img.ArtworkID),
					logging.Int64("image_id", img.ID),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "replace the image file, then clear fingerprint errors"),
					logging.String(logging.FieldImpact, "record compared without this image"),
				)
				return nil
			default:
				return err
			}
		})
	}
	return g.Wait()
}

func (s *Scanner) fingerprintImage(ctx context.Context, img *store.Image) error {
	path := img.Path
	if !filepath.IsAbs(path) && s.imageDir != "" {
		path = filepath.Join(s.imageDir, path)
	}
	started := time.Now()
	fp, err := s.generate(path)
	if err != nil {
		if fingerprint.IsUnreadable(err) {
			metrics.RecordFingerprint("unreadable", time.Since(started))
			if serr := s.store.SetImageFingerprintError(ctx, img.ID, err.Error()); serr != nil {
				return serr
			}
			return err
		}
		metrics.RecordFingerprint("error", time.Since(started))
		return err
	}
	metrics.RecordFingerprint("ok", time.Since(started))
	return s.store.SetImageFingerprint(ctx, img.ID, fp.String())
}

func (s *Scanner) loadProfiles(ctx context.Context, filter store.ArtworkFilter, onError func(error)) ([]*similarity.Profile, error) {
	var profiles []*similarity.Profile
	err := s.store.IterateArtworks(ctx, filter, s.batchSize, func(batch []*store.Artwork) error {
		batchProfiles, err := s.profiles(ctx, batch, onError)
		if err != nil {
			return err
		}
		profiles = append(profiles, batchProfiles...)
		return nil
	})
	return profiles, err
}

func (s *Scanner) profiles(ctx context.Context, batch []*store.Artwork, onError func(error)) ([]*similarity.Profile, error) {
	ids := make([]int64, len(batch))
	for i, a := range batch {
		ids[i] = a.ID
	}
	raw, err := s.store.FingerprintsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*similarity.Profile, 0, len(batch))
	for _, a := range batch {
		out = append(out, profileOf(a, raw[a.ID], onError))
	}
	return out, nil
}

func profileOf(a *store.Artwork, raw []string, onError func(error)) *similarity.Profile {
	fps := make([]fingerprint.Fingerprint, 0, len(raw))
	for _, value := range raw {
		fp, err := fingerprint.Parse(value)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("artwork %d: %w", a.ID, err))
			}
			continue
		}
		fps = append(fps, fp)
	}
	p := similarity.NewProfile(a.ID, a.Title, a.Year, a.Medium, a.Dimensions, fps)
	return &p
}

// CheckRecord compares one record against the catalog with the configured
// comparators and blocking, stores qualifying pairs as pending candidates and
// returns them by descending score. A missing record yields
// services.ErrRecordNotFound.
func (s *Scanner) CheckRecord(ctx context.Context, id int64) ([]Match, error) {
	ctx = services.WithArtworkID(ctx, id)
	logger := logging.WithContext(ctx, s.logger)

	subject, err := s.store.GetArtwork(ctx, id)
	if err != nil {
		return nil, err
	}
	cmp, err := s.comparator(Options{})
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "scanner", "check record", "", err)
	}
	if err := s.backfill(ctx, store.ArtworkFilter{IDs: []int64{id}}, nil, logger); err != nil {
		return nil, services.Wrap(nil, "scanner", "check record", "fingerprint images", err)
	}
	subjects, err := s.profiles(ctx, []*store.Artwork{subject}, nil)
	if err != nil {
		return nil, services.Wrap(nil, "scanner", "check record", "load profile", err)
	}
	me := subjects[0]

	var matches []Match
	err = s.store.IterateArtworks(ctx, store.ArtworkFilter{}, s.batchSize, func(batch []*store.Artwork) error {
		others, err := s.profiles(ctx, batch, nil)
		if err != nil {
			return err
		}
		for _, other := range others {
			if other.ID == id || !shouldCompare(me, other, s.yearWindow) {
				continue
			}
			metrics.PairsCompared.Inc()
			res := cmp.Evaluate(me, other)
			if !res.Qualified {
				continue
			}
			c, inserted, err := s.store.InsertCandidate(ctx, store.CandidateFromResult(id, other.ID, res))
			if err != nil {
				return err
			}
			m := Match{OtherID: other.ID, Method: res.Method, Score: res.Score, Existing: !inserted}
			if c != nil {
				m.CandidateID = c.ID
				m.Status = c.Status
			}
			if inserted {
				metrics.CandidatesDetected.WithLabelValues(string(res.Method)).Inc()
			}
			matches = append(matches, m)
		}
		return nil
	})
	if err != nil {
		return nil, services.Wrap(nil, "scanner", "check record", "compare catalog", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].OtherID < matches[j].OtherID
	})
	logger.Info("record checked", logging.Int("matches", len(matches)))
	return matches, nil
}
