package verifier

import (
	"context"
	"testing"

	"ace/internal/capability"
	"ace/internal/engine"
	"ace/internal/server/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuralOnlyVerificationPasses(t *testing.T) {
	// no verify command configured: only the structural baseline runs
	v := New([]capability.Spec{
		{Category: model.CategoryDocs, Image: "alpine:3.19", Command: "echo x"},
	}, nil, nil)

	task := model.Task{Title: "write docs", Category: model.CategoryDocs}
	result := engine.Result{Output: "documented the claim endpoint"}

	vr, err := v.Verify(context.Background(), task, result)
	require.NoError(t, err)
	assert.True(t, vr.Passed)
	assert.True(t, vr.Checks["structural"])
	assert.Empty(t, vr.Errors)
	assert.Contains(t, vr.Evidence, "structural checks passed")
}

func TestStructuralFailureFailsVerification(t *testing.T) {
	v := New(nil, nil, nil)

	task := model.Task{Title: "write docs", Category: model.CategoryDocs}
	result := engine.Result{Output: "TODO: write the docs"}

	vr, err := v.Verify(context.Background(), task, result)
	require.NoError(t, err)
	assert.False(t, vr.Passed)
	assert.False(t, vr.Checks["structural"])
	assert.NotEmpty(t, vr.Errors)
	assert.Contains(t, vr.Evidence, "structural checks failed")
}

func TestVerifierIgnoresUnknownCategory(t *testing.T) {
	// category without a spec still gets the structural baseline
	v := New(nil, nil, nil)

	task := model.Task{Title: "anything", Category: model.CategoryRefactor}
	vr, err := v.Verify(context.Background(), task, engine.Result{Output: "refactored cleanly"})
	require.NoError(t, err)
	assert.True(t, vr.Passed)
}
