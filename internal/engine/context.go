package engine

import (
	"fmt"
	"strings"
)

// Context accumulates what earlier attempts learned. It is handed to the
// capability on every attempt so the next try can react to prior failures
// and verifier findings.
type Context struct {
	Attempt        int
	FailureReasons []string
	VerifierErrors []string
}

func (c *Context) AddFailure(reason string) {
	c.FailureReasons = append(c.FailureReasons, reason)
}

func (c *Context) AddVerifierErrors(errs []string) {
	c.VerifierErrors = append(c.VerifierErrors, errs...)
}

// Notes renders the accumulated feedback for the capability.
func (c *Context) Notes() string {
	if len(c.FailureReasons) == 0 && len(c.VerifierErrors) == 0 {
		return ""
	}
	var b strings.Builder
	for i, r := range c.FailureReasons {
		fmt.Fprintf(&b, "previous failure %d: %s\n", i+1, r)
	}
	for _, e := range c.VerifierErrors {
		fmt.Fprintf(&b, "verifier: %s\n", e)
	}
	return b.String()
}
