package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AzielCF/az-infer/domains/pipeline"
	domainUsage "github.com/AzielCF/az-infer/domains/usage"
	pkgError "github.com/AzielCF/az-infer/pkg/error"
	"github.com/AzielCF/az-infer/pkg/lazy"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	defaultInvokeTimeout = 2 * time.Minute
	preloadConcurrency   = 4
)

type inferenceService struct {
	registry  *lazy.Registry[pipeline.Pipeline]
	factories map[pipeline.Task]pipeline.Factory
	usage     domainUsage.IUsageUsecase
	timeout   time.Duration
}

// NewInferenceService builds pipelines on first use through registry. usage
// may be nil.
func NewInferenceService(registry *lazy.Registry[pipeline.Pipeline], factories map[pipeline.Task]pipeline.Factory, usage domainUsage.IUsageUsecase, timeout time.Duration) pipeline.IInferenceUsecase {
	if timeout <= 0 {
		timeout = defaultInvokeTimeout
	}
	return &inferenceService{
		registry:  registry,
		factories: factories,
		usage:     usage,
		timeout:   timeout,
	}
}

func (s *inferenceService) resolve(ctx context.Context, task pipeline.Task) (pipeline.Pipeline, error) {
	if _, err := pipeline.ParseTask(string(task)); err != nil {
		return nil, pkgError.ValidationError(err.Error())
	}
	factory, ok := s.factories[task]
	if !ok {
		return nil, pkgError.ServiceUnavailableError(fmt.Sprintf("pipeline %s is not configured", task))
	}

	p, err := s.registry.Resolve(ctx, string(task), lazy.Factory[pipeline.Pipeline](factory))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, pkgError.ServiceUnavailableError(fmt.Sprintf("pipeline %s unavailable: %v", task, err))
	}
	return p, nil
}

func (s *inferenceService) Run(ctx context.Context, task pipeline.Task, in pipeline.Input) (pipeline.Output, error) {
	p, err := s.resolve(ctx, task)
	if err != nil {
		return pipeline.Output{}, err
	}

	invokeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	out, err := p.Invoke(invokeCtx, in)
	latency := time.Since(start).Milliseconds()

	s.record(p, latency, err)

	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"task":     task,
			"provider": p.Provider(),
			"model":    p.Model(),
		}).Warn("[PIPELINE] Invocation failed")
		return pipeline.Output{}, classify(task, s.timeout, err)
	}

	if out.Task == "" {
		out.Task = task
	}
	if out.Provider == "" {
		out.Provider = p.Provider()
	}
	if out.Model == "" {
		out.Model = p.Model()
	}
	out.LatencyMs = latency
	logrus.Debugf("[PIPELINE] %s answered in %dms", task, latency)
	return out, nil
}

func (s *inferenceService) record(p pipeline.Pipeline, latency int64, err error) {
	if s.usage == nil {
		return
	}
	rec := domainUsage.Record{
		Task:      string(p.Task()),
		Provider:  p.Provider(),
		Model:     p.Model(),
		LatencyMs: latency,
		Success:   err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	s.usage.Record(rec)
}

// classify keeps typed errors and turns anything else into an upstream error.
func classify(task pipeline.Task, timeout time.Duration, err error) error {
	var generic pkgError.GenericError
	if errors.As(err, &generic) {
		return generic
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgError.UpstreamError(fmt.Sprintf("%s timed out after %s", task, timeout))
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return pkgError.UpstreamError(err.Error())
}

// Preload builds tasks concurrently. An empty list means every configured
// task. Failures are joined; successful pipelines stay ready.
func (s *inferenceService) Preload(ctx context.Context, tasks []pipeline.Task) error {
	if len(tasks) == 0 {
		for _, t := range pipeline.AllTasks() {
			if _, ok := s.factories[t]; ok {
				tasks = append(tasks, t)
			}
		}
	}

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(preloadConcurrency)
	for _, task := range tasks {
		g.Go(func() error {
			if _, err := s.resolve(ctx, task); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", task, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		logrus.Warnf("[PIPELINE] Preload finished with %d/%d failures", len(errs), len(tasks))
		return errors.Join(errs...)
	}
	logrus.Infof("[PIPELINE] Preloaded %d pipelines", len(tasks))
	return nil
}

func (s *inferenceService) Status(_ context.Context) []pipeline.Status {
	slots := make(map[string]lazy.SlotInfo)
	for _, info := range s.registry.Snapshot() {
		slots[info.Key] = info
	}

	out := make([]pipeline.Status, 0, len(pipeline.AllTasks()))
	for _, task := range pipeline.AllTasks() {
		_, configured := s.factories[task]
		st := pipeline.Status{Task: task, State: lazy.StateEmpty, Available: configured}
		if info, ok := slots[string(task)]; ok {
			st.State = info.State
			st.Attempts = info.Attempts
			st.LastError = info.LastError
			st.ReadyAt = info.ReadyAt
		}
		if p, ok := s.registry.Get(string(task)); ok {
			st.Provider = p.Provider()
			st.Model = p.Model()
		}
		out = append(out, st)
	}
	return out
}

func (s *inferenceService) Reset(_ context.Context, task pipeline.Task) error {
	if _, err := pipeline.ParseTask(string(task)); err != nil {
		return pkgError.ValidationError(err.Error())
	}
	s.registry.Clear(string(task))
	logrus.Infof("[PIPELINE] %s reset", task)
	return nil
}
