package verifier

import (
	"context"
	"fmt"
	"strings"

	"ace/internal/capability"
	"ace/internal/engine"
	"ace/internal/server/model"

	"go.uber.org/zap"
)

// resultOutputLimit caps what gets handed to the verify container through
// the environment.
const resultOutputLimit = 60 * 1024

// ContainerVerifier re-checks a produced result from scratch. It runs the
// structural baseline checks itself and, when the capability declares a
// verify command, reruns it in a fresh container. It is handed only the
// task and the result, so it can never rubber-stamp the producer's own
// claims.
type ContainerVerifier struct {
	specs  map[string]capability.Spec
	runner *capability.ContainerRunner
	log    *zap.Logger
}

var _ engine.Verifier = (*ContainerVerifier)(nil)

func New(specs []capability.Spec, runner *capability.ContainerRunner, log *zap.Logger) *ContainerVerifier {
	byCategory := make(map[string]capability.Spec, len(specs))
	for _, spec := range specs {
		byCategory[spec.Category] = spec
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ContainerVerifier{specs: byCategory, runner: runner, log: log}
}

func (v *ContainerVerifier) Verify(ctx context.Context, task model.Task, result engine.Result) (engine.VerificationResult, error) {
	vr := engine.VerificationResult{
		Checks: map[string]bool{},
	}
	var evidence strings.Builder

	issues := engine.StructuralIssues(result)
	vr.Checks["structural"] = len(issues) == 0
	if len(issues) > 0 {
		vr.Errors = append(vr.Errors, issues...)
		fmt.Fprintf(&evidence, "structural checks failed: %s\n", strings.Join(issues, "; "))
	} else {
		evidence.WriteString("structural checks passed\n")
	}

	spec, ok := v.specs[task.Category]
	if ok && spec.Verify != "" {
		passed, out, err := v.runVerifyCommand(ctx, spec, task, result)
		if err != nil {
			return engine.VerificationResult{}, err
		}
		vr.Checks["verify_command"] = passed
		if !passed {
			vr.Errors = append(vr.Errors, "verify command failed: "+out)
		}
		fmt.Fprintf(&evidence, "verify command output:\n%s\n", out)
	}

	vr.Passed = true
	for _, ok := range vr.Checks {
		if !ok {
			vr.Passed = false
			break
		}
	}
	vr.Evidence = truncate(evidence.String(), resultOutputLimit)

	v.log.Info("verification finished",
		zap.Uint("task_id", task.ID),
		zap.Bool("passed", vr.Passed),
	)
	return vr, nil
}

func (v *ContainerVerifier) runVerifyCommand(ctx context.Context, spec capability.Spec, task model.Task, result engine.Result) (bool, string, error) {
	env := []string{
		"TASK_TITLE=" + task.Title,
		"TASK_DESCRIPTION=" + task.Description,
		"TASK_CATEGORY=" + task.Category,
		"RESULT_OUTPUT=" + truncate(result.Output, resultOutputLimit),
	}
	stdout, stderr, exitCode, err := v.runner.Run(ctx, spec.Image, spec.Verify, env)
	if err != nil {
		return false, "", fmt.Errorf("run verify container: %w", err)
	}
	out := strings.TrimSpace(stdout + "\n" + stderr)
	return exitCode == 0, out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n...[truncated]"
}
