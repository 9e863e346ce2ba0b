package operations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, *OperationState) error { return nil }

func stepIDs(steps []Step) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID()
	}
	return ids
}

func TestRegistry_DependencyOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFuncStep("persist", noop, "calculate")))
	require.NoError(t, r.Register(newFuncStep("load", noop)))
	require.NoError(t, r.Register(newFuncStep("calculate", noop, "clean")))
	require.NoError(t, r.Register(newFuncStep("clean", noop, "load")))
	require.NoError(t, r.Register(newFuncStep("audit", noop)))

	steps, err := r.GetDependencyOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"load", "clean", "calculate", "persist", "audit"}, stepIDs(steps))
	assert.Equal(t, []string{"persist", "load", "calculate", "clean", "audit"}, r.ListIDs())
	assert.Equal(t, 5, r.Count())
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(newFuncStep("", noop)))

	require.NoError(t, r.Register(newFuncStep("a", noop)))
	assert.Error(t, r.Register(newFuncStep("a", noop)))

	_, err := r.Get("missing")
	assert.Error(t, err)
	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID())

	unknown := NewRegistry()
	require.NoError(t, unknown.Register(newFuncStep("b", noop, "ghost")))
	_, err = unknown.GetDependencyOrder()
	require.Error(t, err)
	assert.Equal(t, ErrorTypeDependency, GetErrorType(err))

	cycle := NewRegistry()
	require.NoError(t, cycle.Register(newFuncStep("x", noop, "y")))
	require.NoError(t, cycle.Register(newFuncStep("y", noop, "x")))
	_, err = cycle.GetDependencyOrder()
	assert.ErrorContains(t, err, "cycle")
}

func TestNewPipelineRegistry_Order(t *testing.T) {
	r, err := NewPipelineRegistry(pipelineDeps(t, nil))
	require.NoError(t, err)

	steps, err := r.GetDependencyOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{StepIDLoad, StepIDClean, StepIDCalculate, StepIDPersist}, stepIDs(steps))
}
