package engine

// OutcomeKind makes the per-attempt branching total: every attempt ends in
// exactly one of success, retry-with-reason, or stop-now.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRetryable
	OutcomeFatal
)

type Outcome struct {
	Kind   OutcomeKind
	Result Result
	Reason string
}

func success(result Result) Outcome {
	return Outcome{Kind: OutcomeSuccess, Result: result}
}

func retryable(reason string) Outcome {
	return Outcome{Kind: OutcomeRetryable, Reason: reason}
}

func fatal(reason string) Outcome {
	return Outcome{Kind: OutcomeFatal, Reason: reason}
}
