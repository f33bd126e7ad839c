package services

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"village-registry/internal/adapters/persistence/repositories"
	"village-registry/internal/pkg/metrics"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSweepBatch   = 200
	defaultSweepWorkers = 4
	sweepTimeout        = 30 * time.Minute

	// artifacts younger than this may belong to an issuance still recording
	orphanGrace = time.Hour
)

// SweepReport summarizes one integrity sweep
type SweepReport struct {
	Checked  int64
	Intact   int64
	Modified int64
	Missing  int64
	Orphaned int64
	Flagged  []string
}

// IntegrityService re-hashes stored artifacts and flags any that no longer
// match the audit trail
type IntegrityService struct {
	docs      *repositories.DocumentRepository
	artifacts ArtifactStore
	hasher    *ContentHasher
	metrics   *metrics.Metrics
	log       *logrus.Entry
	workers   int
	batch     int
	grace     time.Duration
	now       func() time.Time
	cron      *cron.Cron
}

// NewIntegrityService creates a new integrity service
func NewIntegrityService(docs *repositories.DocumentRepository, artifacts ArtifactStore, workers int, m *metrics.Metrics, log *logrus.Entry) *IntegrityService {
	if workers < 1 {
		workers = defaultSweepWorkers
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &IntegrityService{
		docs:      docs,
		artifacts: artifacts,
		hasher:    NewContentHasher(),
		metrics:   m,
		log:       log,
		workers:   workers,
		batch:     defaultSweepBatch,
		grace:     orphanGrace,
		now:       time.Now,
	}
}

// Sweep checks every document that has an artifact file, then removes
// artifact files that no document references
func (s *IntegrityService) Sweep(ctx context.Context) (*SweepReport, error) {
	if s.artifacts == nil {
		return &SweepReport{}, nil
	}

	var checked, intact, modified, missing atomic.Int64
	var flagged []string
	flaggedCh := make(chan string)
	collected := make(chan struct{})
	go func() {
		for ref := range flaggedCh {
			flagged = append(flagged, ref)
		}
		close(collected)
	}()

	afterID := ""
	var sweepErr error
	for {
		docs, err := s.docs.ListWithArtifacts(ctx, afterID, s.batch)
		if err != nil {
			sweepErr = storeError(err, "list artifacts")
			break
		}
		if len(docs) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for _, d := range docs {
			d := d
			g.Go(func() error {
				checked.Add(1)
				data, err := s.artifacts.Load(gctx, *d.FilePath)
				if err != nil {
					missing.Add(1)
					s.metrics.IncSweep("missing")
					s.log.WithError(err).WithField("reference", d.ReferenceNumber).Warn("artifact missing")
					return nil
				}
				if d.ContentHash == nil || !s.hasher.Matches(data, *d.ContentHash) {
					modified.Add(1)
					s.metrics.IncSweep("modified")
					s.log.WithField("reference", d.ReferenceNumber).Error("artifact does not match recorded hash")
					flaggedCh <- d.ReferenceNumber
					return nil
				}
				intact.Add(1)
				s.metrics.IncSweep("intact")
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			sweepErr = errors.Wrap(err, "integrity sweep")
			break
		}

		afterID = docs[len(docs)-1].ID
		if len(docs) < s.batch {
			break
		}
	}

	close(flaggedCh)
	<-collected

	report := &SweepReport{
		Checked:  checked.Load(),
		Intact:   intact.Load(),
		Modified: modified.Load(),
		Missing:  missing.Load(),
		Flagged:  flagged,
	}
	if sweepErr != nil {
		return report, sweepErr
	}

	report.Orphaned, sweepErr = s.removeOrphans(ctx)
	return report, sweepErr
}

// removeOrphans deletes artifacts left behind when issuance stopped between
// saving the file and committing its document row
func (s *IntegrityService) removeOrphans(ctx context.Context) (int64, error) {
	files, err := s.artifacts.List(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list artifact files")
	}

	cutoff := s.now().Add(-s.grace)
	var removed int64
	for _, f := range files {
		if !strings.HasSuffix(f.Name, ".pdf") || f.ModTime.After(cutoff) {
			continue
		}
		ref := strings.TrimSuffix(f.Name, ".pdf")
		exists, err := s.docs.ExistsByReferenceNumber(ctx, ref)
		if err != nil {
			return removed, storeError(err, "look up artifact reference")
		}
		if exists {
			continue
		}
		if err := s.artifacts.Remove(ctx, f.Path); err != nil {
			s.log.WithError(err).WithField("path", f.Path).Warn("failed to remove orphaned artifact")
			continue
		}
		removed++
		s.metrics.IncSweep("orphaned")
		s.log.WithField("reference", ref).Warn("removed artifact with no document")
	}
	return removed, nil
}

// Start schedules the sweep. An empty schedule disables it.
func (s *IntegrityService) Start(schedule string) error {
	if schedule == "" || s.artifacts == nil {
		s.log.Info("integrity sweep disabled")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, s.runScheduled); err != nil {
		return errors.Wrapf(err, "invalid integrity sweep schedule %q", schedule)
	}
	s.cron = c
	c.Start()
	s.log.WithField("schedule", schedule).Info("integrity sweep scheduled")
	return nil
}

// Stop stops the scheduler and waits for a running sweep
func (s *IntegrityService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *IntegrityService) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	report, err := s.Sweep(ctx)
	if err != nil {
		s.log.WithError(err).Error("integrity sweep failed")
		return
	}
	s.log.WithFields(logrus.Fields{
		"checked":  report.Checked,
		"intact":   report.Intact,
		"modified": report.Modified,
		"missing":  report.Missing,
		"orphaned": report.Orphaned,
	}).Info("integrity sweep finished")
}
