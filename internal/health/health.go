// Package health runs readiness checks against the server's dependencies.
package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Pinger is implemented by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is implemented by the access policy evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Check is one named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// PingCheck adapts a Pinger.
func PingCheck(name string, p Pinger) Check {
	return Check{Name: name, Fn: p.PingContext}
}

// PolicyCheck adapts a PolicyChecker.
func PolicyCheck(name string, p PolicyChecker) Check {
	return Check{Name: name, Fn: p.HealthCheck}
}

// Report is the outcome of one Run. Results maps check name to "ok" or the error text.
type Report struct {
	Healthy bool
	Results map[string]string
}

// Checker runs every check concurrently with a shared timeout.
type Checker struct {
	checks  []Check
	timeout time.Duration
}

// NewChecker returns a Checker. A non-positive timeout defaults to 2s.
func NewChecker(timeout time.Duration, checks ...Check) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{checks: checks, timeout: timeout}
}

// Run executes all checks. With no checks the report is healthy.
func (c *Checker) Run(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	errs := make([]error, len(c.checks))
	var wg sync.WaitGroup
	for i, chk := range c.checks {
		wg.Add(1)
		go func(i int, chk Check) {
			defer wg.Done()
			if chk.Fn == nil {
				errs[i] = errors.New("no check function")
				return
			}
			if err := chk.Fn(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", chk.Name, err)
			}
		}(i, chk)
	}
	wg.Wait()

	r := Report{Healthy: true, Results: make(map[string]string, len(c.checks))}
	for i, chk := range c.checks {
		if errs[i] != nil {
			r.Healthy = false
			r.Results[chk.Name] = errs[i].Error()
			continue
		}
		r.Results[chk.Name] = "ok"
	}
	return r
}
