// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package worker hosts registered agent workflows on Temporal workers, one
// worker per task queue.
package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/config"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/logger"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/dispatch"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/registry"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetTemporalLogger().With().Str("component", "worker").Logger()
		log = &l
	})
	return log
}

// Runner is the part of worker.Worker the pool drives.
type Runner interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
	Start() error
	Stop()
}

// Factory creates the runner for one task queue.
type Factory func(taskQueue string, options worker.Options) Runner

// TemporalFactory creates real Temporal workers polling through c.
func TemporalFactory(c client.Client) Factory {
	return func(taskQueue string, options worker.Options) Runner {
		return worker.New(c, taskQueue, options)
	}
}

type hosted struct {
	workflowType string
	fn           interface{}
}

// Pool owns one worker per task queue. Workflows are added before Start;
// a stopped pool cannot be restarted.
type Pool struct {
	cfg        config.WorkerConfig
	factory    Factory
	dispatcher *dispatch.Dispatcher

	mu      sync.Mutex
	queues  map[string][]hosted
	runners map[string]Runner
	started bool
	stopped bool
}

// NewPool creates an empty pool. Dispatcher operations are registered as
// activities on every worker so operations invoked from workflow code run
// on the invoking workflow's task queue.
func NewPool(factory Factory, cfg config.WorkerConfig, d *dispatch.Dispatcher) *Pool {
	return &Pool{
		cfg:        cfg,
		factory:    factory,
		dispatcher: d,
		queues:     make(map[string][]hosted),
		runners:    make(map[string]Runner),
	}
}

// Add hosts every local workflow of reg. Remote workflows are skipped: they
// are served by another process.
func (p *Pool) Add(reg registry.Registration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopped {
		return agenterr.Validation("worker", "cannot add agent %q to a running pool", reg.Identity.Name)
	}

	for _, def := range reg.Workflows {
		if registry.IsRemote(def.Kind) {
			continue
		}
		names, err := reg.WorkflowIdentity(def.Name, "").Resolve()
		if err != nil {
			return err
		}
		if lo.ContainsBy(p.queues[names.TaskQueue], func(h hosted) bool { return h.workflowType == names.Type }) {
			return agenterr.Validation("worker", "workflow %q already hosted on %q", names.Type, names.TaskQueue)
		}
		p.queues[names.TaskQueue] = append(p.queues[names.TaskQueue], hosted{
			workflowType: names.Type,
			fn:           def.Kind.WorkflowFunc(),
		})
		getLog().Debug().
			Str("workflow_type", names.Type).
			Str("task_queue", names.TaskQueue).
			Str("kind", registry.KindName(def.Kind)).
			Msg("Workflow added to pool")
	}
	return nil
}

// AddAll hosts every registration of r.
func (p *Pool) AddAll(r *registry.Registry) error {
	for _, reg := range r.All() {
		if err := p.Add(reg); err != nil {
			return fmt.Errorf("failed to add agent %s: %w", reg.Identity.String(), err)
		}
	}
	return nil
}

// Start creates and starts one worker per task queue. If any worker fails to
// start, the ones already running are stopped.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return fmt.Errorf("cannot restart a stopped worker pool - create a new pool")
	}
	if p.started {
		getLog().Info().Msg("Worker pool already started")
		return nil
	}
	if len(p.queues) == 0 {
		return agenterr.Validation("worker", "no workflows to host")
	}

	options := worker.Options{
		MaxConcurrentActivityExecutionSize:      p.cfg.MaxConcurrentActivityExecutions,
		MaxConcurrentWorkflowTaskExecutionSize:  p.cfg.MaxConcurrentWorkflows,
		MaxConcurrentLocalActivityExecutionSize: p.cfg.MaxConcurrentActivityExecutions,
		WorkerActivitiesPerSecond:               p.cfg.ActivitiesPerSecond,
		WorkerLocalActivitiesPerSecond:          p.cfg.ActivitiesPerSecond,
		WorkerStopTimeout:                       p.cfg.StopTimeout,
		BackgroundActivityContext:               ctx,
	}

	for _, queue := range p.sortedQueues() {
		r := p.factory(queue, options)
		for _, h := range p.queues[queue] {
			r.RegisterWorkflowWithOptions(h.fn, workflow.RegisterOptions{Name: h.workflowType})
		}
		if p.dispatcher != nil {
			p.dispatcher.RegisterActivities(r)
		}
		if err := r.Start(); err != nil {
			p.stopLocked()
			return fmt.Errorf("failed to start worker on %s: %w", queue, err)
		}
		p.runners[queue] = r
		getLog().Info().
			Str("task_queue", queue).
			Int("workflows", len(p.queues[queue])).
			Msg("Temporal worker started")
	}

	p.started = true
	return nil
}

// Stop stops every worker. Safe to call more than once.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Pool) stopLocked() {
	if len(p.runners) > 0 {
		getLog().Info().Int("workers", len(p.runners)).Msg("Stopping Temporal workers gracefully...")
	}
	for queue, r := range p.runners {
		r.Stop()
		delete(p.runners, queue)
	}
	p.stopped = true
}

// TaskQueues returns the task queues the pool polls, sorted.
func (p *Pool) TaskQueues() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sortedQueues()
}

// RegisteredWorkflows returns the workflow types hosted on taskQueue.
func (p *Pool) RegisteredWorkflows(taskQueue string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return lo.Map(p.queues[taskQueue], func(h hosted, _ int) string { return h.workflowType })
}

func (p *Pool) sortedQueues() []string {
	queues := lo.Keys(p.queues)
	sort.Strings(queues)
	return queues
}
