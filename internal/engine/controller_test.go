package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ace/internal/engine/broadcast"
	"ace/internal/server/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeStore struct {
	mu            sync.Mutex
	task          *model.Task
	run           *model.Run
	claimed       bool
	savedStatuses []string
	verifications []*model.VerificationRecord
	alerts        []*model.Alert
	taskStatus    string

	// stalledTask/stalledRun are handed out once by ReclaimStalled.
	stalledTask *model.Task
	stalledRun  *model.Run
	reclaimed   bool

	// failSaveOn makes SaveRun fail when asked to persist this status.
	failSaveOn string
	// cancelAfterSaves flips the task to cancelled once this many saves
	// have happened (0 means never).
	cancelAfterSaves int
}

func newFakeStore(task *model.Task, run *model.Run) *fakeStore {
	return &fakeStore{task: task, run: run, taskStatus: task.Status}
}

func (s *fakeStore) ClaimNext(ctx context.Context) (*model.Task, *model.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed || s.task == nil {
		return nil, nil, nil
	}
	s.claimed = true
	s.taskStatus = model.TaskStatusInProgress
	return s.task, s.run, nil
}

func (s *fakeStore) ReclaimStalled(ctx context.Context, staleAfter time.Duration) (*model.Task, *model.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reclaimed || s.stalledTask == nil {
		return nil, nil, nil
	}
	s.reclaimed = true
	return s.stalledTask, s.stalledRun, nil
}

func (s *fakeStore) SaveRun(ctx context.Context, run *model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaveOn != "" && run.Status == s.failSaveOn {
		return errors.New("store down")
	}
	s.savedStatuses = append(s.savedStatuses, run.Status)
	if s.cancelAfterSaves > 0 && len(s.savedStatuses) >= s.cancelAfterSaves {
		s.taskStatus = model.TaskStatusCancelled
	}
	return nil
}

func (s *fakeStore) AppendVerification(ctx context.Context, rec *model.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifications = append(s.verifications, rec)
	return nil
}

func (s *fakeStore) CreateAlert(ctx context.Context, alert *model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *fakeStore) AlertByRun(ctx context.Context, runUUID string) (*model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, alert := range s.alerts {
		if alert.RunUUID == runUUID {
			return alert, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) TaskStatus(ctx context.Context, taskID uint) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taskStatus, nil
}

func (s *fakeStore) SetTaskStatus(ctx context.Context, taskID uint, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskStatus = status
	return nil
}

type attemptScript struct {
	result Result
	err    error
}

type scriptedCapability struct {
	mu     sync.Mutex
	script []attemptScript
	calls  int
	notes  []string
}

func (c *scriptedCapability) Name() string { return "scripted" }

func (c *scriptedCapability) Execute(ctx context.Context, task model.Task, rctx *Context) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, rctx.Notes())
	idx := c.calls
	if idx >= len(c.script) {
		idx = len(c.script) - 1
	}
	c.calls++
	step := c.script[idx]
	return step.result, step.err
}

type scriptedVerifier struct {
	mu       sync.Mutex
	verdicts []VerificationResult
	err      error
	calls    int
}

func (v *scriptedVerifier) Verify(ctx context.Context, task model.Task, result Result) (VerificationResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return VerificationResult{}, v.err
	}
	idx := v.calls
	if idx >= len(v.verdicts) {
		idx = len(v.verdicts) - 1
	}
	v.calls++
	return v.verdicts[idx], nil
}

func pass() VerificationResult {
	return VerificationResult{Passed: true, Checks: map[string]bool{"verify": true}, Evidence: "ok"}
}

func reject(msg string) VerificationResult {
	return VerificationResult{
		Passed: false,
		Checks: map[string]bool{"verify": false},
		Errors: []string{msg},
	}
}

func testTask(priority int) *model.Task {
	return &model.Task{
		Model:       gorm.Model{ID: 7},
		Title:       "add pagination",
		Description: "paginate the task list endpoint",
		Category:    model.CategoryFeature,
		Priority:    priority,
		Status:      model.TaskStatusInProgress,
	}
}

func testRun() *model.Run {
	return &model.Run{
		RunUUID:   "run-test-1",
		TaskID:    7,
		Status:    model.RunStatusPending,
		StartedAt: time.Now(),
	}
}

func newTestEngine(store Store, cap Capability, verifier Verifier, bus *broadcast.Broadcaster) *Engine {
	caps := map[string]Capability{}
	if cap != nil {
		caps[model.CategoryFeature] = cap
	}
	return New(store, bus, caps, verifier, Config{MaxAttempts: 3, MaxVerificationAttempts: 3}, nil)
}

func TestRunCompletesOnFirstAttempt(t *testing.T) {
	task, run := testTask(5), testRun()
	store := newFakeStore(task, run)
	cap := &scriptedCapability{script: []attemptScript{{result: Result{Output: "done"}}}}
	verifier := &scriptedVerifier{verdicts: []VerificationResult{pass()}}

	eng := newTestEngine(store, cap, verifier, nil)
	claimed, err := eng.DispatchOne(context.Background())
	require.NoError(t, err)
	require.True(t, claimed)

	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, float64(100), run.ProgressPercent)
	assert.Equal(t, "done", run.Result)
	assert.NotNil(t, run.CompletedAt)
	assert.Equal(t, model.TaskStatusCompleted, store.taskStatus)
	assert.Equal(t, 1, cap.calls)

	require.Len(t, store.verifications, 1)
	assert.True(t, store.verifications[0].Passed)
	assert.Equal(t, 1, store.verifications[0].Attempt)
	assert.Empty(t, store.alerts)
}

func TestSelfCorrectionRecoversWithFeedback(t *testing.T) {
	task, run := testTask(5), testRun()
	store := newFakeStore(task, run)
	cap := &scriptedCapability{script: []attemptScript{
		{err: &ExecutionError{Reason: "flaky network", Transient: true}},
		{err: &ExecutionError{Reason: "missing import", Transient: false}},
		{result: Result{Output: "fixed"}},
	}}
	verifier := &scriptedVerifier{verdicts: []VerificationResult{pass()}}

	eng := newTestEngine(store, cap, verifier, nil)
	_, err := eng.DispatchOne(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCompleted, run.Status)
	require.Equal(t, 3, cap.calls)

	// the third attempt must see both prior failures, categorized
	assert.Empty(t, cap.notes[0])
	assert.Contains(t, cap.notes[1], "transient: flaky network")
	assert.Contains(t, cap.notes[2], "structural: missing import")
}

func TestVerificationRetryFeedsErrorsBack(t *testing.T) {
	task, run := testTask(5), testRun()
	store := newFakeStore(task, run)
	cap := &scriptedCapability{script: []attemptScript{{result: Result{Output: "work"}}}}
	verifier := &scriptedVerifier{verdicts: []VerificationResult{
		reject("acceptance check 2 failed"),
		pass(),
	}}

	eng := newTestEngine(store, cap, verifier, nil)
	_, err := eng.DispatchOne(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.VerificationAttempts)
	require.Len(t, store.verifications, 2)
	assert.False(t, store.verifications[0].Passed)
	assert.True(t, store.verifications[1].Passed)

	// second execution episode sees the verifier's findings
	require.Equal(t, 2, cap.calls)
	assert.Contains(t, cap.notes[1], "acceptance check 2 failed")
}

func TestVerificationExhaustedEscalates(t *testing.T) {
	task, run := testTask(3), testRun()
	store := newFakeStore(task, run)
	cap := &scriptedCapability{script: []attemptScript{{result: Result{Output: "work"}}}}
	verifier := &scriptedVerifier{verdicts: []VerificationResult{reject("never good enough")}}

	eng := newTestEngine(store, cap, verifier, nil)
	_, err := eng.DispatchOne(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusEscalatedToHuman, run.Status)
	assert.Equal(t, 3, run.VerificationAttempts)
	require.Len(t, store.alerts, 1)
	alert := store.alerts[0]
	assert.Equal(t, string(ReasonVerificationExhausted), alert.Rule)
	assert.Equal(t, model.SeverityHigh, alert.Severity)
	assert.Equal(t, model.AlertStatusFiring, alert.Status)
	assert.Equal(t, run.RunUUID, alert.RunUUID)

	// task is frozen for human review, not failed and not re-claimable
	assert.Equal(t, model.TaskStatusInProgress, store.taskStatus)
}

func TestSelfCorrectionExhaustedEscalatesCritical(t *testing.T) {
	task, run := testTask(1), testRun()
	store := newFakeStore(task, run)
	cap := &scriptedCapability{script: []attemptScript{
		{err: &ExecutionError{Reason: "cannot produce output", Transient: false}},
	}}
	verifier := &scriptedVerifier{verdicts: []VerificationResult{pass()}}

	eng := newTestEngine(store, cap, verifier, nil)
	_, err := eng.DispatchOne(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusEscalatedToHuman, run.Status)
	assert.Equal(t, 3, cap.calls)
	assert.Equal(t, 0, verifier.calls)
	require.Len(t, store.alerts, 1)
	assert.Equal(t, string(ReasonSelfCorrectionExhausted), store.alerts[0].Rule)
	assert.Equal(t, model.SeverityCritical, store.alerts[0].Severity)
}

func TestSelfReviewRejectsPlaceholderOutput(t *testing.T) {
	task, run := testTask(8), testRun()
	store := newFakeStore(task, run)
	cap := &scriptedCapability{script: []attemptScript{
		{result: Result{Output: "TODO: actually implement this"}},
	}}
	verifier := &scriptedVerifier{verdicts: []VerificationResult{pass()}}

	eng := newTestEngine(store, cap, verifier, nil)
	_, err := eng.DispatchOne(context.Background())
	require.NoError(t, err)

	// placeholder output never reaches the verifier
	assert.Equal(t, 0, verifier.calls)
	assert.Equal(t, model.RunStatusEscalatedToHuman, run.Status)
	assert.Equal(t, model.SeverityMedium, store.alerts[0].Severity)
	assert.Empty(t, store.verifications)
}

func TestNoCompletionWithoutPassedEvidence(t *testing.T) {
	task, run := testTask(5), testRun()
	store := newFakeStore(task, run)
	cap := &scriptedCapability{script: []attemptScript{{result: Result{Output: "work"}}}}
	verifier := &scriptedVerifier{verdicts: []VerificationResult{reject("no")}}

	eng := newTestEngine(store, cap, verifier, nil)
	_, err := eng.DispatchOne(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, model.RunStatusCompleted, run.Status)
	for _, rec := range store.verifications {
		assert.False(t, rec.Passed)
	}
}

func TestVerifierOutageCountsAsFailedAttempt(t *testing.T) {
	task, run := testTask(5), testRun()
	store := newFakeStore(task, run)
	cap := &scriptedCapability{script: []attemptScript{{result: Result{Output: "work"}}}}
	verifier := &scriptedVerifier{err: errors.New("verifier unreachable")}

	eng := newTestEngine(store, cap, verifier, nil)
	_, err := eng.DispatchOne(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusEscalatedToHuman, run.Status)
	require.NotEmpty(t, store.verifications)
	assert.Contains(t, store.verifications[0].Errors, "verifier error")
}

func TestMissingCapabilityFailsRun(t *testing.T) {
	task, run := testTask(5), testRun()
	store := newFakeStore(task, run)
	verifier := &scriptedVerifier{verdicts: []VerificationResult{pass()}}

	eng := newTestEngine(store, nil, verifier, nil)
	_, err := eng.DispatchOne(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "no capability registered")
	assert.Equal(t, model.TaskStatusFailed, store.taskStatus)
}

func TestCancellationBetweenAttempts(t *testing.T) {
	task, run := testTask(5), testRun()
	store := newFakeStore(task, run)
	// cancel lands after the first progress save inside the loop
	store.cancelAfterSaves = 2
	cap := &scriptedCapability{script: []attemptScript{
		{err: &ExecutionError{Reason: "still failing", Transient: true}},
	}}
	verifier := &scriptedVerifier{verdicts: []VerificationResult{pass()}}

	eng := newTestEngine(store, cap, verifier, nil)
	_, err := eng.DispatchOne(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCancelled, run.Status)
	assert.Less(t, cap.calls, 3)
	assert.Empty(t, store.alerts)
}

func TestSystemErrorLeavesLastPersistedState(t *testing.T) {
	task, run := testTask(5), testRun()
	store := newFakeStore(task, run)
	store.failSaveOn = model.RunStatusAwaitingVerification
	cap := &scriptedCapability{script: []attemptScript{{result: Result{Output: "work"}}}}
	verifier := &scriptedVerifier{verdicts: []VerificationResult{pass()}}

	eng := newTestEngine(store, cap, verifier, nil)
	claimed, err := eng.DispatchOne(context.Background())
	require.Error(t, err)
	assert.True(t, claimed)

	// in-memory state rolled back to what the store last accepted
	assert.Equal(t, model.RunStatusInProgress, run.Status)
	assert.False(t, model.IsTerminalRunStatus(run.Status))
	assert.Equal(t, 0, verifier.calls)
}

func TestInterruptedRunRecoversAfterStoreFailure(t *testing.T) {
	task, run := testTask(5), testRun()
	store := newFakeStore(task, run)
	store.failSaveOn = model.RunStatusAwaitingVerification
	cap := &scriptedCapability{script: []attemptScript{{result: Result{Output: "work"}}}}
	verifier := &scriptedVerifier{verdicts: []VerificationResult{pass()}}

	eng := newTestEngine(store, cap, verifier, nil)
	_, err := eng.DispatchOne(context.Background())
	require.Error(t, err)
	require.Equal(t, model.RunStatusInProgress, run.Status)

	// store is healthy again and the quiet run shows up as stalled
	store.failSaveOn = ""
	store.stalledTask, store.stalledRun = task, run

	recovered, err := eng.RecoverOne(context.Background())
	require.NoError(t, err)
	require.True(t, recovered)

	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, float64(100), run.ProgressPercent)
	assert.Equal(t, model.TaskStatusCompleted, store.taskStatus)
	assert.Equal(t, 2, cap.calls)
	require.Len(t, store.verifications, 1)
	assert.True(t, store.verifications[0].Passed)
}

func TestRecoverReexecutesRunStrandedAwaitingVerification(t *testing.T) {
	task, run := testTask(5), testRun()
	run.Status = model.RunStatusAwaitingVerification
	run.ProgressPercent = 70
	store := newFakeStore(task, run)
	store.stalledTask, store.stalledRun = task, run
	cap := &scriptedCapability{script: []attemptScript{{result: Result{Output: "work"}}}}
	verifier := &scriptedVerifier{verdicts: []VerificationResult{pass()}}

	eng := newTestEngine(store, cap, verifier, nil)
	recovered, err := eng.RecoverOne(context.Background())
	require.NoError(t, err)
	require.True(t, recovered)

	// the produced result was lost with the worker, so a fresh episode runs
	assert.Equal(t, 1, cap.calls)
	assert.Equal(t, 1, verifier.calls)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	// progress never moves backwards across the interruption
	assert.Equal(t, float64(100), run.ProgressPercent)
}

func TestRecoverFinishesEscalationOfBlockedRun(t *testing.T) {
	task, run := testTask(2), testRun()
	run.Status = model.RunStatusBlocked
	run.ErrorMessage = "self-correction attempts exhausted"
	store := newFakeStore(task, run)
	store.stalledTask, store.stalledRun = task, run
	verifier := &scriptedVerifier{verdicts: []VerificationResult{pass()}}

	eng := newTestEngine(store, &scriptedCapability{script: []attemptScript{{}}}, verifier, nil)
	recovered, err := eng.RecoverOne(context.Background())
	require.NoError(t, err)
	require.True(t, recovered)

	assert.Equal(t, model.RunStatusEscalatedToHuman, run.Status)
	require.Len(t, store.alerts, 1)
	assert.Equal(t, model.SeverityCritical, store.alerts[0].Severity)
	assert.Equal(t, model.TaskStatusInProgress, store.taskStatus)
}

func TestReplayedEscalationKeepsSingleAlert(t *testing.T) {
	task, run := testTask(3), testRun()
	run.Status = model.RunStatusBlocked
	run.VerificationAttempts = 3
	run.ErrorMessage = "verification attempts exhausted"
	store := newFakeStore(task, run)
	store.stalledTask, store.stalledRun = task, run
	// the alert fired before the crash, only the terminal transition is missing
	store.alerts = append(store.alerts, &model.Alert{
		Rule:     string(ReasonVerificationExhausted),
		Severity: model.SeverityHigh,
		Status:   model.AlertStatusFiring,
		RunUUID:  run.RunUUID,
	})
	verifier := &scriptedVerifier{verdicts: []VerificationResult{pass()}}

	eng := newTestEngine(store, &scriptedCapability{script: []attemptScript{{}}}, verifier, nil)
	recovered, err := eng.RecoverOne(context.Background())
	require.NoError(t, err)
	require.True(t, recovered)

	assert.Equal(t, model.RunStatusEscalatedToHuman, run.Status)
	assert.Len(t, store.alerts, 1)
}

func TestRecoverOneIgnoresHealthyQueue(t *testing.T) {
	task, run := testTask(5), testRun()
	store := newFakeStore(task, run)
	verifier := &scriptedVerifier{verdicts: []VerificationResult{pass()}}

	eng := newTestEngine(store, &scriptedCapability{script: []attemptScript{{}}}, verifier, nil)
	recovered, err := eng.RecoverOne(context.Background())
	require.NoError(t, err)
	assert.False(t, recovered)
}

func TestInvalidTransitionRejected(t *testing.T) {
	err := validateTransition(model.RunStatusCompleted, model.RunStatusInProgress)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = validateTransition(model.RunStatusPending, model.RunStatusVerificationPassed)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, validateTransition(model.RunStatusPending, model.RunStatusInProgress))
	require.NoError(t, validateTransition(model.RunStatusVerificationFailed, model.RunStatusInProgress))
}

func TestProgressMonotonicAndOrdered(t *testing.T) {
	task, run := testTask(5), testRun()
	store := newFakeStore(task, run)
	cap := &scriptedCapability{script: []attemptScript{
		{err: &ExecutionError{Reason: "first try fails", Transient: true}},
		{result: Result{Output: "work"}},
	}}
	verifier := &scriptedVerifier{verdicts: []VerificationResult{
		reject("not yet"),
		pass(),
	}}

	bus := broadcast.New()
	events, cancel := bus.Subscribe("run-test-1")
	defer cancel()

	eng := newTestEngine(store, cap, verifier, bus)
	_, err := eng.DispatchOne(context.Background())
	require.NoError(t, err)

	var collected []broadcast.Event
	for {
		select {
		case ev := <-events:
			collected = append(collected, ev)
			continue
		default:
		}
		break
	}
	require.NotEmpty(t, collected)

	lastProgress := -1.0
	var lastSeq uint64
	for i, ev := range collected {
		assert.GreaterOrEqual(t, ev.ProgressPercent, lastProgress,
			fmt.Sprintf("progress regressed at event %d (%s)", i, ev.Status))
		lastProgress = ev.ProgressPercent
		assert.Greater(t, ev.Seq, lastSeq)
		lastSeq = ev.Seq
	}

	final := collected[len(collected)-1]
	assert.Equal(t, model.RunStatusCompleted, final.Status)
	assert.Equal(t, float64(100), final.ProgressPercent)
}

func TestSeverityForPriority(t *testing.T) {
	assert.Equal(t, model.SeverityCritical, SeverityForPriority(1))
	assert.Equal(t, model.SeverityCritical, SeverityForPriority(2))
	assert.Equal(t, model.SeverityHigh, SeverityForPriority(3))
	assert.Equal(t, model.SeverityMedium, SeverityForPriority(4))
	assert.Equal(t, model.SeverityMedium, SeverityForPriority(10))
}
