// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/config"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/dispatch"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/registry"
)

type fakeRunner struct {
	queue      string
	options    worker.Options
	workflows  []string
	activities []string
	startErr   error
	started    bool
	stopped    bool
}

func (r *fakeRunner) RegisterWorkflowWithOptions(_ interface{}, options workflow.RegisterOptions) {
	r.workflows = append(r.workflows, options.Name)
}

func (r *fakeRunner) RegisterActivityWithOptions(_ interface{}, options activity.RegisterOptions) {
	r.activities = append(r.activities, options.Name)
}

func (r *fakeRunner) Start() error {
	if r.startErr != nil {
		return r.startErr
	}
	r.started = true
	return nil
}

func (r *fakeRunner) Stop() { r.stopped = true }

type fakeFactory struct {
	runners map[string]*fakeRunner
	failOn  string
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{runners: make(map[string]*fakeRunner)}
}

func (f *fakeFactory) create(queue string, options worker.Options) Runner {
	r := &fakeRunner{queue: queue, options: options}
	if queue == f.failOn {
		r.startErr = errors.New("poller failed")
	}
	f.runners[queue] = r
	return r
}

func chatWorkflow(ctx workflow.Context) error { return nil }

func echo(_ context.Context, s string) (string, error) { return s, nil }

func testRegistration() registry.Registration {
	return registry.Registration{
		Identity: naming.AgentIdentity{Name: "Support", TenantID: "acme", Scoping: naming.TenantScoped},
		Workflows: []registry.WorkflowDefinition{
			{Name: "Conversational", Kind: registry.BuiltIn{Fn: chatWorkflow}},
			{Name: "Report", Kind: registry.Custom{Fn: chatWorkflow}},
			{Name: "Billing", Kind: registry.Remote{}},
		},
	}
}

func TestPool_OneWorkerPerTaskQueue(t *testing.T) {
	d := dispatch.New(dispatch.Options{})
	_, err := dispatch.Register(d, "test.Echo", echo)
	require.NoError(t, err)

	f := newFakeFactory()
	cfg := config.WorkerConfig{MaxConcurrentActivityExecutions: 7, MaxConcurrentWorkflows: 3, ActivitiesPerSecond: 2}
	pool := NewPool(f.create, cfg, d)
	require.NoError(t, pool.Add(testRegistration()))

	assert.Equal(t, []string{"acme:Support:Conversational", "acme:Support:Report"}, pool.TaskQueues())
	assert.Equal(t, []string{"Support:Report"}, pool.RegisteredWorkflows("acme:Support:Report"))

	require.NoError(t, pool.Start(context.Background()))
	require.Len(t, f.runners, 2)

	r := f.runners["acme:Support:Conversational"]
	assert.True(t, r.started)
	assert.Equal(t, []string{"Support:Conversational"}, r.workflows)
	assert.Equal(t, []string{"test.Echo"}, r.activities)
	assert.Equal(t, 7, r.options.MaxConcurrentActivityExecutionSize)
	assert.Equal(t, 3, r.options.MaxConcurrentWorkflowTaskExecutionSize)

	pool.Stop()
	for _, r := range f.runners {
		assert.True(t, r.stopped)
	}

	err = pool.Start(context.Background())
	assert.Error(t, err, "a stopped pool cannot restart")
}

func TestPool_StartFailureStopsStartedWorkers(t *testing.T) {
	f := newFakeFactory()
	f.failOn = "acme:Support:Report"
	pool := NewPool(f.create, config.WorkerConfig{}, nil)
	require.NoError(t, pool.Add(testRegistration()))

	err := pool.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acme:Support:Report")
	assert.True(t, f.runners["acme:Support:Conversational"].stopped)
}

func TestPool_AddValidation(t *testing.T) {
	f := newFakeFactory()
	pool := NewPool(f.create, config.WorkerConfig{}, nil)

	require.NoError(t, pool.Add(testRegistration()))
	err := pool.Add(testRegistration())
	assert.True(t, agenterr.IsKind(err, agenterr.KindValidation))

	empty := NewPool(f.create, config.WorkerConfig{}, nil)
	err = empty.Start(context.Background())
	assert.True(t, agenterr.IsKind(err, agenterr.KindValidation))
}

func TestPool_AddAllFromRegistry(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(testRegistration()))
	require.NoError(t, reg.Register(registry.Registration{
		Identity:  naming.AgentIdentity{Name: "Router", Scoping: naming.SystemScoped},
		Workflows: []registry.WorkflowDefinition{{Name: "Route", Kind: registry.Custom{Fn: chatWorkflow}}},
	}))

	pool := NewPool(newFakeFactory().create, config.WorkerConfig{}, nil)
	require.NoError(t, pool.AddAll(reg))
	assert.Equal(t, []string{"Router:Route", "acme:Support:Conversational", "acme:Support:Report"}, pool.TaskQueues())
}
