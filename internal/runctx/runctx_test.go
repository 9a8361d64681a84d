package runctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithForceEditContinuationDoesNotMutateOriginal(t *testing.T) {
	spec := ProcessSpec{Path: "dotnet", Args: []string{"run"}, Env: map[string]string{"FOO": "bar"}}

	forced := spec.WithForceEditContinuation()

	assert.Equal(t, "1", forced.Env[ForceEditContinuationEnv])
	assert.Equal(t, "bar", forced.Env["FOO"])
	_, present := spec.Env[ForceEditContinuationEnv]
	assert.False(t, present, "original spec must not be mutated")
}

func TestContextNextIncrementsIteration(t *testing.T) {
	c := Context{Iteration: 0, ProjectPath: "/app"}
	next := c.Next("/app2", ProcessSpec{Path: "dotnet"})

	assert.Equal(t, uint(1), next.Iteration)
	assert.Equal(t, "/app2", next.ProjectPath)
	assert.Equal(t, "dotnet", next.ProcessSpec.Path)
	assert.Nil(t, next.BrowserRefreshServer)
}
