// Copyright (c) 2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scheduler

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/jeffkinnison/shadho/pkg/common/backoff"
	"github.com/jeffkinnison/shadho/pkg/placement"
	"github.com/jeffkinnison/shadho/pkg/searchspace"
	"github.com/jeffkinnison/shadho/pkg/storage"
)

const (
	// DefaultPollInterval bounds each wait for a completion so the loop
	// can re-check its deadline.
	DefaultPollInterval = 1 * time.Second

	// DefaultResultOptimizeKey is the metrics-map field treated as the
	// loss when the objective does not return a bare number.
	DefaultResultOptimizeKey = "loss"

	// DefaultCheckpointEvery is how many completed trials pass between
	// checkpoints.
	DefaultCheckpointEvery = 10

	checkpointRetryAttempts = 3
	checkpointRetryInterval = 100 * time.Millisecond
)

// Config are the scheduler's tunables.
type Config struct {
	// Timeout bounds the whole run; zero means unbounded.
	Timeout time.Duration `yaml:"timeout"`

	// MaxTrials stops the run after that many completed trials; zero
	// means unbounded.
	MaxTrials int `yaml:"max_trials" validate:"min=0"`

	// MaxQueuedTasks is the per-class queue depth for classes that do
	// not set their own.
	MaxQueuedTasks int `yaml:"max_queued_tasks" validate:"min=1"`

	// MaxResubmissions caps redispatches of a failed trial, so a trial
	// runs at most MaxResubmissions+1 times.
	MaxResubmissions int `yaml:"max_resubmissions" validate:"min=0"`

	UseComplexity bool `yaml:"use_complexity"`
	UsePriority   bool `yaml:"use_priority"`

	// UpdateFrequency is the completed-trial period of priority
	// recomputation.
	UpdateFrequency int `yaml:"update_frequency"`

	// CheckpointEvery is how many completed trials pass between
	// checkpoints.
	CheckpointEvery int `yaml:"checkpoint_every"`

	PollInterval time.Duration `yaml:"poll_interval"`

	// ResultOptimizeKey picks the loss out of a metrics-map result.
	ResultOptimizeKey string `yaml:"result_optimize_key"`

	// DrainOnExit keeps awaiting in-flight trials after the stop
	// condition fires instead of abandoning them.
	DrainOnExit bool `yaml:"drain_on_exit"`
}

// normalize fills unset optional fields with their defaults.
func (c *Config) normalize() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ResultOptimizeKey == "" {
		c.ResultOptimizeKey = DefaultResultOptimizeKey
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = DefaultCheckpointEvery
	}
}

// Scheduler owns the optimization control loop. All state mutation happens
// on the goroutine running Run; the dispatcher is the only concurrent
// collaborator.
type Scheduler struct {
	cfg        Config
	db         *storage.SearchDB
	dispatcher TaskDispatcher
	assigner   *placement.Assigner
	ccs        []*placement.ComputeClass
	rng        *rand.Rand
	metrics    *Metrics

	checkpointRetry backoff.RetryPolicy

	// exhausted tracks models whose grid domains have no values left.
	exhausted map[string]bool

	inFlight  int
	completed int
}

// NewScheduler creates a Scheduler over the given collaborators. When ccs
// is empty a single catch-all compute class is synthesized.
func NewScheduler(
	cfg Config,
	db *storage.SearchDB,
	dispatcher TaskDispatcher,
	assigner *placement.Assigner,
	ccs []*placement.ComputeClass,
	rng *rand.Rand,
	metrics *Metrics) *Scheduler {
	cfg.normalize()
	if len(ccs) == 0 {
		ccs = []*placement.ComputeClass{
			placement.DefaultClass(cfg.MaxQueuedTasks),
		}
	}
	for _, cc := range ccs {
		if cc.MaxQueuedTasks <= 0 {
			cc.MaxQueuedTasks = cfg.MaxQueuedTasks
		}
	}
	return &Scheduler{
		cfg:        cfg,
		db:         db,
		dispatcher: dispatcher,
		assigner:   assigner,
		ccs:        ccs,
		rng:        rng,
		metrics:    metrics,
		checkpointRetry: backoff.NewRetryPolicy(
			checkpointRetryAttempts, checkpointRetryInterval),
		exhausted: make(map[string]bool),
	}
}

// Run drives the search until the context is canceled, the timeout or trial
// budget is hit, or a pure grid search runs dry. It always returns the best
// observed trial; found is false when no trial completed.
func (s *Scheduler) Run(ctx context.Context) (*storage.Optimum, bool, error) {
	models, err := s.db.Models(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(models) == 0 {
		return nil, false, errors.New("no models to search")
	}
	s.assigner.Assign(models, s.ccs)

	start := time.Now()
	for !s.done(ctx, start) {
		if err := s.fill(ctx); err != nil {
			return nil, false, err
		}
		if err := s.await(ctx); err != nil {
			return nil, false, err
		}
	}

	if s.cfg.DrainOnExit {
		s.drain(ctx, start)
	}
	s.checkpoint(ctx)

	log.WithFields(log.Fields{
		"completed": s.completed,
		"elapsed":   time.Since(start),
	}).Info("Search finished")
	return s.db.Optimal(ctx)
}

// done evaluates the loop's stop conditions.
func (s *Scheduler) done(ctx context.Context, start time.Time) bool {
	if ctx.Err() != nil {
		return true
	}
	if s.cfg.Timeout > 0 && time.Since(start) >= s.cfg.Timeout {
		return true
	}
	if s.cfg.MaxTrials > 0 && s.completed >= s.cfg.MaxTrials {
		return true
	}
	return s.allExhausted()
}

func (s *Scheduler) allExhausted() bool {
	if len(s.exhausted) == 0 {
		return false
	}
	for _, cc := range s.ccs {
		for _, modelID := range cc.Assignments {
			if !s.exhausted[modelID] {
				return false
			}
		}
	}
	return true
}

// fill tops up every compute class's queue with freshly generated trials.
func (s *Scheduler) fill(ctx context.Context) error {
	for _, cc := range s.ccs {
		for cc.CurrentTasks < cc.MaxQueuedTasks {
			modelID, ok := s.sampleLive(cc)
			if !ok {
				break
			}

			resultID, params, err := s.db.Generate(ctx, modelID, s.rng)
			if err != nil {
				var ex searchspace.ErrExhausted
				if errors.As(err, &ex) {
					s.exhausted[modelID] = true
					log.WithField("model_id", modelID).
						Info("Model grid exhausted")
					continue
				}
				return err
			}

			tag := resultID + "." + modelID + "." + cc.ID
			if err := s.dispatch(ctx, tag, params, cc); err != nil {
				return err
			}
		}
		if s.metrics != nil {
			s.metrics.QueueDepth.Update(float64(cc.CurrentTasks))
		}
	}
	return nil
}

// sampleLive draws an assigned model that still has values to offer.
func (s *Scheduler) sampleLive(cc *placement.ComputeClass) (string, bool) {
	live := false
	for _, modelID := range cc.Assignments {
		if !s.exhausted[modelID] {
			live = true
			break
		}
	}
	if !live {
		return "", false
	}
	for {
		modelID, ok := cc.SampleModel(s.rng)
		if !ok {
			return "", false
		}
		if !s.exhausted[modelID] {
			return modelID, true
		}
	}
}

func (s *Scheduler) dispatch(
	ctx context.Context,
	tag string,
	params searchspace.Value,
	cc *placement.ComputeClass) error {
	if err := s.dispatcher.Dispatch(ctx, tag, params, cc.Name); err != nil {
		return errors.Wrap(err, "failed to dispatch trial")
	}
	cc.CurrentTasks++
	s.inFlight++
	if s.metrics != nil {
		s.metrics.Dispatched.Inc(1)
	}
	return nil
}

// await blocks for the next completion, bounded by the poll interval, and
// feeds it back into the search state.
func (s *Scheduler) await(ctx context.Context) error {
	completion, err := s.dispatcher.AwaitCompletion(ctx, s.cfg.PollInterval)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		log.WithError(err).Warn("Failed to poll for a completion")
		return nil
	}
	if completion == nil {
		return nil
	}
	return s.handle(ctx, completion)
}

func (s *Scheduler) handle(ctx context.Context, completion *Completion) error {
	resultID, modelID, ccID, err := parseTag(completion.Tag)
	if err != nil {
		log.WithError(err).WithField("tag", completion.Tag).
			Error("Dropping completion with a malformed tag")
		return nil
	}
	cc := s.classByID(ccID)
	if cc == nil {
		log.WithField("tag", completion.Tag).
			Error("Dropping completion for an unknown compute class")
		return nil
	}

	if completion.Failed {
		return s.handleFailure(ctx, completion, resultID, cc)
	}

	loss := s.resolveLoss(completion)
	reassign, err := s.db.RegisterResult(ctx, resultID, loss, completion.Extra)
	if err != nil {
		return err
	}

	cc.CurrentTasks--
	s.inFlight--
	s.completed++
	if s.metrics != nil {
		s.metrics.Succeeded.Inc(1)
	}
	log.WithFields(log.Fields{
		"result_id": resultID,
		"model_id":  modelID,
		"loss":      loss,
	}).Debug("Trial completed")

	if reassign {
		models, err := s.db.Models(ctx)
		if err != nil {
			return err
		}
		s.assigner.Assign(models, s.ccs)
	}

	if s.completed%s.cfg.CheckpointEvery == 0 {
		s.checkpoint(ctx)
	}
	return nil
}

func (s *Scheduler) handleFailure(
	ctx context.Context,
	completion *Completion,
	resultID string,
	cc *placement.ComputeClass) error {
	submissions, err := s.db.RegisterFailure(ctx, resultID)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.Failed.Inc(1)
	}

	if completion.Retryable && submissions <= s.cfg.MaxResubmissions {
		params, submissions, err := s.db.Resubmit(ctx, resultID)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"result_id":   resultID,
			"submissions": submissions,
		}).Info("Resubmitting failed trial")
		if err := s.dispatcher.Dispatch(
			ctx, completion.Tag, params, cc.Name); err != nil {
			return errors.Wrap(err, "failed to resubmit trial")
		}
		if s.metrics != nil {
			s.metrics.Resubmitted.Inc(1)
		}
		return nil
	}

	cc.CurrentTasks--
	s.inFlight--
	if s.metrics != nil {
		s.metrics.Dropped.Inc(1)
	}
	log.WithFields(log.Fields{
		"result_id":   resultID,
		"submissions": submissions,
	}).Warn("Dropping permanently failed trial")
	return nil
}

// resolveLoss extracts the loss from a successful completion: the bare loss
// when present, otherwise the configured key of the metrics map. Anything
// non-numeric counts as loss 0.
func (s *Scheduler) resolveLoss(completion *Completion) float64 {
	if completion.Loss != nil {
		return *completion.Loss
	}
	v, ok := completion.Extra[s.cfg.ResultOptimizeKey]
	if !ok || v.Kind() != searchspace.NumberValue {
		log.WithFields(log.Fields{
			"tag": completion.Tag,
			"key": s.cfg.ResultOptimizeKey,
		}).Warn("Trial returned no numeric loss, recording 0")
		return 0
	}
	return v.Number()
}

// drain keeps awaiting in-flight trials after the stop condition, still
// honoring the run deadline and cancellation.
func (s *Scheduler) drain(ctx context.Context, start time.Time) {
	for s.inFlight > 0 {
		if ctx.Err() != nil {
			return
		}
		if s.cfg.Timeout > 0 && time.Since(start) >= s.cfg.Timeout {
			return
		}
		if err := s.await(ctx); err != nil {
			log.WithError(err).Warn("Stopping drain")
			return
		}
	}
}

func (s *Scheduler) checkpoint(ctx context.Context) {
	err := backoff.Retry(func() error {
		return s.db.Store().Checkpoint(ctx)
	}, s.checkpointRetry)
	if err != nil {
		log.WithError(err).Error("Failed to checkpoint search state")
		return
	}
	if s.metrics != nil {
		s.metrics.Checkpoints.Inc(1)
	}
}

func (s *Scheduler) classByID(id string) *placement.ComputeClass {
	for _, cc := range s.ccs {
		if cc.ID == id {
			return cc
		}
	}
	return nil
}

// parseTag splits a resultID.modelID.ccID correlation tag.
func parseTag(tag string) (resultID, modelID, ccID string, err error) {
	parts := strings.SplitN(tag, ".", 3)
	if len(parts) != 3 {
		return "", "", "", errors.Errorf("malformed tag %q", tag)
	}
	return parts[0], parts[1], parts[2], nil
}
