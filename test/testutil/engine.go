// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package testutil provides an in-process stand-in for the Temporal client so
// client-side code paths can be exercised without a server.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

// StartCall records a workflow start.
type StartCall struct {
	ID           string
	TaskQueue    string
	WorkflowType string
	Args         []json.RawMessage
	Options      client.StartWorkflowOptions
}

// SignalCall records a delivered signal.
type SignalCall struct {
	WorkflowID string
	Name       string
	Arg        json.RawMessage
}

// SignalHandler, QueryHandler and UpdateHandler emulate workflow handlers.
type (
	SignalHandler func(arg json.RawMessage)
	QueryHandler  func(args []json.RawMessage) (any, error)
	UpdateHandler func(ctx context.Context, args []json.RawMessage) (any, error)
)

// FakeInstance is one emulated workflow execution.
type FakeInstance struct {
	ID           string
	RunID        string
	WorkflowType string
	TaskQueue    string

	mu       sync.Mutex
	signals  map[string]SignalHandler
	queries  map[string]QueryHandler
	updates  map[string]UpdateHandler
	received []SignalCall
	result   any
	err      error
}

// HandleSignal installs a signal handler.
func (i *FakeInstance) HandleSignal(name string, h SignalHandler) *FakeInstance {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.signals[name] = h
	return i
}

// HandleQuery installs a query handler.
func (i *FakeInstance) HandleQuery(name string, h QueryHandler) *FakeInstance {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.queries[name] = h
	return i
}

// HandleUpdate installs an update handler.
func (i *FakeInstance) HandleUpdate(name string, h UpdateHandler) *FakeInstance {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.updates[name] = h
	return i
}

// Complete sets the value returned by WorkflowRun.Get.
func (i *FakeInstance) Complete(result any, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.result, i.err = result, err
}

// Received returns the signals delivered so far, in order.
func (i *FakeInstance) Received() []SignalCall {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]SignalCall(nil), i.received...)
}

// FakeEngine implements the client surface used by the SDK.
type FakeEngine struct {
	// OnStart, when set, is called for every newly started instance so tests
	// can install handlers before the first signal arrives.
	OnStart func(inst *FakeInstance, args []json.RawMessage)

	mu        sync.Mutex
	instances map[string]*FakeInstance
	starts    []StartCall
}

// NewFakeEngine returns an empty engine.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{instances: make(map[string]*FakeInstance)}
}

// AddInstance registers a running instance.
func (e *FakeEngine) AddInstance(id, workflowType string) *FakeInstance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addLocked(id, workflowType, "")
}

func (e *FakeEngine) addLocked(id, workflowType, queue string) *FakeInstance {
	inst := &FakeInstance{
		ID:           id,
		RunID:        uuid.NewString(),
		WorkflowType: workflowType,
		TaskQueue:    queue,
		signals:      make(map[string]SignalHandler),
		queries:      make(map[string]QueryHandler),
		updates:      make(map[string]UpdateHandler),
	}
	e.instances[id] = inst
	return inst
}

// Instance returns the instance with the given ID.
func (e *FakeEngine) Instance(id string) (*FakeInstance, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[id]
	return inst, ok
}

// Starts returns every recorded start, in order.
func (e *FakeEngine) Starts() []StartCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]StartCall(nil), e.starts...)
}

func (e *FakeEngine) start(options client.StartWorkflowOptions, workflow interface{}, args []interface{}) (*FakeInstance, error) {
	encoded, err := encodeAll(args)
	if err != nil {
		return nil, err
	}
	wfType, ok := workflow.(string)
	if !ok {
		wfType = fmt.Sprintf("%T", workflow)
	}

	e.mu.Lock()
	inst, exists := e.instances[options.ID]
	if !exists {
		inst = e.addLocked(options.ID, wfType, options.TaskQueue)
	}
	e.starts = append(e.starts, StartCall{
		ID:           options.ID,
		TaskQueue:    options.TaskQueue,
		WorkflowType: wfType,
		Args:         encoded,
		Options:      options,
	})
	hook := e.OnStart
	e.mu.Unlock()

	if !exists && hook != nil {
		hook(inst, encoded)
	}
	return inst, nil
}

func (e *FakeEngine) lookup(workflowID string) (*FakeInstance, error) {
	inst, ok := e.Instance(workflowID)
	if !ok {
		return nil, serviceerror.NewNotFound(fmt.Sprintf("workflow not found for ID: %s", workflowID))
	}
	return inst, nil
}

// ExecuteWorkflow starts an instance, or returns the running one with the same ID.
func (e *FakeEngine) ExecuteWorkflow(_ context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	inst, err := e.start(options, workflow, args)
	if err != nil {
		return nil, err
	}
	return &fakeRun{inst: inst}, nil
}

// SignalWorkflow delivers a signal to a running instance.
func (e *FakeEngine) SignalWorkflow(_ context.Context, workflowID string, _ string, signalName string, arg interface{}) error {
	inst, err := e.lookup(workflowID)
	if err != nil {
		return err
	}
	return inst.deliver(signalName, arg)
}

// SignalWithStartWorkflow starts the instance if needed, then signals it.
func (e *FakeEngine) SignalWithStartWorkflow(_ context.Context, workflowID string, signalName string, signalArg interface{},
	options client.StartWorkflowOptions, workflow interface{}, workflowArgs ...interface{}) (client.WorkflowRun, error) {
	options.ID = workflowID
	inst, err := e.start(options, workflow, workflowArgs)
	if err != nil {
		return nil, err
	}
	if err := inst.deliver(signalName, signalArg); err != nil {
		return nil, err
	}
	return &fakeRun{inst: inst}, nil
}

// QueryWorkflow runs a query handler.
func (e *FakeEngine) QueryWorkflow(_ context.Context, workflowID string, _ string, queryType string, args ...interface{}) (converter.EncodedValue, error) {
	inst, err := e.lookup(workflowID)
	if err != nil {
		return nil, err
	}
	inst.mu.Lock()
	h, ok := inst.queries[queryType]
	inst.mu.Unlock()
	if !ok {
		return nil, serviceerror.NewInvalidArgument(fmt.Sprintf("unknown queryType %s", queryType))
	}
	encoded, err := encodeAll(args)
	if err != nil {
		return nil, err
	}
	v, err := h(encoded)
	if err != nil {
		return nil, err
	}
	return &fakeValue{v: v}, nil
}

// UpdateWorkflow runs an update handler synchronously.
func (e *FakeEngine) UpdateWorkflow(ctx context.Context, options client.UpdateWorkflowOptions) (client.WorkflowUpdateHandle, error) {
	inst, err := e.lookup(options.WorkflowID)
	if err != nil {
		return nil, err
	}
	inst.mu.Lock()
	h, ok := inst.updates[options.UpdateName]
	inst.mu.Unlock()
	if !ok {
		return nil, serviceerror.NewInvalidArgument(fmt.Sprintf("unknown update %s", options.UpdateName))
	}
	encoded, err := encodeAll(options.Args)
	if err != nil {
		return nil, err
	}
	v, err := h(ctx, encoded)
	return &fakeUpdateHandle{inst: inst, updateID: options.UpdateID, v: v, err: err}, nil
}

func (i *FakeInstance) deliver(name string, arg interface{}) error {
	encoded, err := json.Marshal(arg)
	if err != nil {
		return err
	}
	i.mu.Lock()
	i.received = append(i.received, SignalCall{WorkflowID: i.ID, Name: name, Arg: encoded})
	h := i.signals[name]
	i.mu.Unlock()
	if h != nil {
		h(encoded)
	}
	return nil
}

func encodeAll(args []interface{}) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("argument not serializable: %w", err)
		}
		out = append(out, b)
	}
	return out, nil
}

func assign(v any, valuePtr interface{}) error {
	if valuePtr == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, valuePtr)
}

type fakeValue struct {
	v any
}

func (f *fakeValue) HasValue() bool { return f.v != nil }

func (f *fakeValue) Get(valuePtr interface{}) error { return assign(f.v, valuePtr) }

type fakeRun struct {
	inst *FakeInstance
}

func (r *fakeRun) GetID() string    { return r.inst.ID }
func (r *fakeRun) GetRunID() string { return r.inst.RunID }

func (r *fakeRun) Get(ctx context.Context, valuePtr interface{}) error {
	return r.GetWithOptions(ctx, valuePtr, client.WorkflowRunGetOptions{})
}

func (r *fakeRun) GetWithOptions(_ context.Context, valuePtr interface{}, _ client.WorkflowRunGetOptions) error {
	r.inst.mu.Lock()
	result, err := r.inst.result, r.inst.err
	r.inst.mu.Unlock()
	if err != nil {
		return err
	}
	return assign(result, valuePtr)
}

type fakeUpdateHandle struct {
	inst     *FakeInstance
	updateID string
	v        any
	err      error
}

func (h *fakeUpdateHandle) WorkflowID() string { return h.inst.ID }
func (h *fakeUpdateHandle) RunID() string      { return h.inst.RunID }
func (h *fakeUpdateHandle) UpdateID() string   { return h.updateID }

func (h *fakeUpdateHandle) Get(_ context.Context, valuePtr interface{}) error {
	if h.err != nil {
		return h.err
	}
	return assign(h.v, valuePtr)
}
