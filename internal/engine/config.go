package engine

import "time"

type Config struct {
	MaxAttempts             int
	MaxVerificationAttempts int
	AttemptTimeout          time.Duration
	VerifyTimeout           time.Duration
	// StaleAfter is how long a non-terminal run may go without a
	// persisted update before recovery re-adopts it. Must exceed the
	// longest quiet stretch of a healthy run (one attempt plus one
	// verification).
	StaleAfter time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.MaxVerificationAttempts < 1 {
		c.MaxVerificationAttempts = 3
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 5 * time.Minute
	}
	if c.VerifyTimeout <= 0 {
		c.VerifyTimeout = 2 * time.Minute
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = c.AttemptTimeout + c.VerifyTimeout + time.Minute
	}
	return c
}
