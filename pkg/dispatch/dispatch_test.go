// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agentctx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
)

var router = naming.AgentIdentity{Name: "Router", TenantID: "acme", Scoping: naming.TenantScoped}

type sumArgs struct {
	A, B int
}

type sumResult struct {
	Sum   int
	Label string
}

type probeOutput struct {
	Result sumResult
	Kind   string
	Err    string
}

func sum(_ context.Context, args sumArgs) (sumResult, error) {
	if args.A < 0 {
		return sumResult{}, agenterr.Validation("sum", "negative input %d", args.A)
	}
	return sumResult{Sum: args.A + args.B, Label: "sum"}, nil
}

func testOptions() Options {
	return Options{ActivityOptions: workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Millisecond,
			BackoffCoefficient: 1,
			MaximumAttempts:    2,
		},
	}}
}

// probe runs op from workflow code and reports the outcome as data.
func probe[A, R any](op *Operation[A, R], wrap func(R) sumResult) func(workflow.Context, A) (probeOutput, error) {
	return func(ctx workflow.Context, args A) (probeOutput, error) {
		res, err := op.Invoke(agentctx.ForWorkflow(ctx, router), args)
		out := probeOutput{Result: wrap(res)}
		if err != nil {
			out.Kind = agenterr.KindOf(err).String()
			out.Err = err.Error()
		}
		return out, nil
	}
}

func runProbe[A any](t *testing.T, d *Dispatcher, fn interface{}, args A) probeOutput {
	t.Helper()
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	d.RegisterActivities(env)
	env.RegisterWorkflowWithOptions(fn, workflow.RegisterOptions{Name: "probe"})

	env.ExecuteWorkflow("probe", args)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var out probeOutput
	require.NoError(t, env.GetWorkflowResult(&out))
	return out
}

func identity(r sumResult) sumResult { return r }

func TestInvoke_ClientAndWorkflowAgree(t *testing.T) {
	d := New(testOptions())
	op, err := Register(d, "test.Sum", sum)
	require.NoError(t, err)

	for _, args := range []sumArgs{{A: 1, B: 2}, {A: 40, B: 2}, {A: 0, B: 0}} {
		clientRes, err := op.Invoke(agentctx.ForClient(context.Background(), router), args)
		require.NoError(t, err)

		out := runProbe(t, d, probe(op, identity), args)
		assert.Empty(t, out.Kind)
		assert.Equal(t, clientRes, out.Result)
	}
}

func TestInvoke_ValidationKindSurvivesBothPaths(t *testing.T) {
	d := New(testOptions())
	op, err := Register(d, "test.Sum", sum)
	require.NoError(t, err)

	_, clientErr := op.Invoke(agentctx.ForClient(context.Background(), router), sumArgs{A: -1})
	require.Error(t, clientErr)
	assert.Equal(t, agenterr.KindValidation, agenterr.KindOf(clientErr))

	out := runProbe(t, d, probe(op, identity), sumArgs{A: -1})
	assert.Equal(t, agenterr.KindValidation.String(), out.Kind)
}

func TestInvoke_ClientErrorsPassThroughUnchanged(t *testing.T) {
	boom := errors.New("backend unavailable")
	d := New(testOptions())
	op, err := Register(d, "test.Fail", func(context.Context, sumArgs) (sumResult, error) {
		return sumResult{}, boom
	})
	require.NoError(t, err)

	_, got := op.Invoke(agentctx.ForClient(context.Background(), router), sumArgs{})
	assert.Same(t, boom, got)
}

func TestInvoke_WorkflowFailureAfterRetries(t *testing.T) {
	var attempts atomic.Int32
	d := New(testOptions())
	op, err := Register(d, "test.Fail", func(context.Context, sumArgs) (sumResult, error) {
		attempts.Add(1)
		return sumResult{}, errors.New("backend unavailable")
	})
	require.NoError(t, err)

	out := runProbe(t, d, probe(op, identity), sumArgs{})
	assert.Equal(t, agenterr.KindOperationFailed.String(), out.Kind)
	assert.Contains(t, out.Err, "test.Fail")
	assert.Equal(t, int32(2), attempts.Load())
}

func TestInvoke_ResolverDecidesPerCall(t *testing.T) {
	var direct atomic.Int32
	d := New(Options{
		ActivityOptions: testOptions().ActivityOptions,
		Resolver: agentctx.ResolverFunc(func(*agentctx.Context) agentctx.ExecutionContext {
			return agentctx.Client
		}),
	})
	op, err := Register(d, "test.Count", func(context.Context, sumArgs) (sumResult, error) {
		direct.Add(1)
		return sumResult{Sum: 7}, nil
	})
	require.NoError(t, err)

	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(probe(op, identity), workflow.RegisterOptions{Name: "probe"})
	env.ExecuteWorkflow("probe", sumArgs{})

	require.NoError(t, env.GetWorkflowError())
	assert.Equal(t, int32(1), direct.Load())
}

func TestInvoke_WithActivityOptionsOverride(t *testing.T) {
	var attempts atomic.Int32
	d := New(testOptions())
	op, err := Register(d, "test.Fail", func(context.Context, sumArgs) (sumResult, error) {
		attempts.Add(1)
		return sumResult{}, errors.New("flaky")
	})
	require.NoError(t, err)

	single := op.WithActivityOptions(workflow.ActivityOptions{
		StartToCloseTimeout: time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	out := runProbe(t, d, probe(single, identity), sumArgs{})
	assert.Equal(t, agenterr.KindOperationFailed.String(), out.Kind)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestRegister_Validation(t *testing.T) {
	d := New(Options{})
	_, err := Register(d, "test.Sum", sum)
	require.NoError(t, err)

	_, err = Register(d, "test.Sum", sum)
	assert.ErrorIs(t, err, agenterr.ErrValidation)

	_, err = Register(d, "", sum)
	assert.ErrorIs(t, err, agenterr.ErrValidation)

	_, err = Register[sumArgs, sumResult](d, "test.Nil", nil)
	assert.ErrorIs(t, err, agenterr.ErrValidation)

	assert.Equal(t, []string{"test.Sum"}, d.Names())
}
