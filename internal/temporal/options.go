// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package temporal

import (
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/config"
)

// GetActivityOptions returns the activity options applied to dispatched operations.
func GetActivityOptions(cfg *config.AppConfig) workflow.ActivityOptions {
	a := cfg.Temporal.Activity
	return workflow.ActivityOptions{
		StartToCloseTimeout:    a.StartToCloseTimeout,
		ScheduleToCloseTimeout: a.ScheduleToCloseTimeout,
		HeartbeatTimeout:       a.HeartbeatTimeout,
		RetryPolicy:            GetRetryPolicy(a.RetryPolicy),
	}
}

// GetRetryPolicy converts a configured retry policy. A zero policy yields nil
// so the server default applies.
func GetRetryPolicy(p config.RetryPolicy) *temporal.RetryPolicy {
	if p == (config.RetryPolicy{}) {
		return nil
	}
	return &temporal.RetryPolicy{
		InitialInterval:    p.InitialInterval,
		BackoffCoefficient: p.BackoffCoefficient,
		MaximumInterval:    p.MaximumInterval,
		MaximumAttempts:    p.MaximumAttempts,
	}
}
