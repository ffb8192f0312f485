// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package temporal owns the connection to the Temporal service and the
// translation of configuration into Temporal option structs.
package temporal

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/config"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/logger"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
)

// WorkflowStatus represents the current status of a workflow
type WorkflowStatus int

const (
	WorkflowStatusUnknown WorkflowStatus = iota
	WorkflowStatusRunning
	WorkflowStatusCompleted
	WorkflowStatusFailed
	WorkflowStatusCanceled
	WorkflowStatusTerminated
	WorkflowStatusTimedOut
	WorkflowStatusContinuedAsNew
)

// String returns the string representation of WorkflowStatus
func (s WorkflowStatus) String() string {
	switch s {
	case WorkflowStatusRunning:
		return "running"
	case WorkflowStatusCompleted:
		return "completed"
	case WorkflowStatusFailed:
		return "failed"
	case WorkflowStatusCanceled:
		return "canceled"
	case WorkflowStatusTerminated:
		return "terminated"
	case WorkflowStatusTimedOut:
		return "timed_out"
	case WorkflowStatusContinuedAsNew:
		return "continued_as_new"
	default:
		return "unknown"
	}
}

// Terminal reports whether the workflow can no longer change state.
func (s WorkflowStatus) Terminal() bool {
	return s != WorkflowStatusRunning && s != WorkflowStatusUnknown
}

var (
	temporalLog     *zerolog.Logger
	temporalLogOnce sync.Once
)

func getTemporalLog() *zerolog.Logger {
	temporalLogOnce.Do(func() {
		l := logger.GetTemporalLogger().With().Str("component", "client").Logger()
		temporalLog = &l
	})
	return temporalLog
}

// Client wraps the Temporal client for process-level concerns: dialing,
// status inspection and shutdown. SDK components take the raw client.
type Client struct {
	temporalClient client.Client
	namespace      string
}

// NewClient dials Temporal using the configured host and namespace.
// Interceptors that also implement interceptor.WorkerInterceptor are applied
// to workers created from this client.
func NewClient(cfg config.TemporalConfig, interceptors ...interceptor.ClientInterceptor) (*Client, error) {
	options := client.Options{
		HostPort:     cfg.HostPort,
		Namespace:    cfg.Namespace,
		Logger:       logger.GetTemporalLogAdapter("temporal"),
		Interceptors: interceptors,
	}

	temporalClient, err := client.Dial(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create Temporal client: %w", err)
	}

	getTemporalLog().Info().Msgf("Connected to Temporal at %s, namespace: %s", cfg.HostPort, cfg.Namespace)

	return &Client{
		temporalClient: temporalClient,
		namespace:      cfg.Namespace,
	}, nil
}

// NewClientFrom wraps an existing client, e.g. a lazily dialed one.
func NewClientFrom(c client.Client, namespace string) *Client {
	return &Client{temporalClient: c, namespace: namespace}
}

// GetTemporalClient returns the underlying Temporal client
func (c *Client) GetTemporalClient() client.Client {
	return c.temporalClient
}

// Namespace returns the namespace the client is bound to.
func (c *Client) Namespace() string {
	return c.namespace
}

// MapWorkflowExecutionStatus maps Temporal's WorkflowExecutionStatus to WorkflowStatus.
func MapWorkflowExecutionStatus(status enums.WorkflowExecutionStatus) WorkflowStatus {
	switch status {
	case enums.WORKFLOW_EXECUTION_STATUS_RUNNING:
		return WorkflowStatusRunning
	case enums.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return WorkflowStatusCompleted
	case enums.WORKFLOW_EXECUTION_STATUS_FAILED:
		return WorkflowStatusFailed
	case enums.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return WorkflowStatusCanceled
	case enums.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		return WorkflowStatusTerminated
	case enums.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return WorkflowStatusTimedOut
	case enums.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW:
		return WorkflowStatusContinuedAsNew
	default:
		return WorkflowStatusUnknown
	}
}

// Describer is the part of client.Client used for status inspection.
type Describer interface {
	DescribeWorkflowExecution(ctx context.Context, workflowID, runID string) (*workflowservice.DescribeWorkflowExecutionResponse, error)
}

// GetWorkflowStatus returns the status of the latest run of workflowID.
// A missing workflow is reported as agenterr NotFound.
func GetWorkflowStatus(ctx context.Context, d Describer, workflowID string) (WorkflowStatus, error) {
	desc, err := d.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return WorkflowStatusUnknown, agenterr.FromEngine("describe workflow", fmt.Errorf("failed to describe workflow %s: %w", workflowID, err))
	}
	return MapWorkflowExecutionStatus(desc.GetWorkflowExecutionInfo().GetStatus()), nil
}

// GetWorkflowStatus returns the current status of a workflow by ID.
func (c *Client) GetWorkflowStatus(ctx context.Context, workflowID string) (WorkflowStatus, error) {
	return GetWorkflowStatus(ctx, c.temporalClient, workflowID)
}

// CancelWorkflow requests cancellation of a running workflow.
func (c *Client) CancelWorkflow(ctx context.Context, workflowID string) error {
	if err := c.temporalClient.CancelWorkflow(ctx, workflowID, ""); err != nil {
		return fmt.Errorf("failed to cancel workflow: %w", err)
	}

	getTemporalLog().Info().Msgf("Cancelled workflow %s", workflowID)
	return nil
}

// Close closes the Temporal client connection
func (c *Client) Close() error {
	if c.temporalClient != nil {
		c.temporalClient.Close()
		getTemporalLog().Info().Msg("Temporal client closed")
	}
	return nil
}
