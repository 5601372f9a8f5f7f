package engine

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"
)

const decisionQuery = "data.learningpanda.access.decision"

//go:embed access.rego
var accessPolicy string

// protectedPrefixes mirrors the policy and backs the fallback decision.
var protectedPrefixes = []string{"/dashboard", "/settings", "/courses"}

// AccessInput is what the page gate knows about a request.
type AccessInput struct {
	Path          string
	Authenticated bool
	Onboarded     bool
}

// Decision is the gate's answer. Redirect is set whenever Allow is false.
type Decision struct {
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect"`
}

// AccessEvaluator decides page access with the embedded Rego policy.
type AccessEvaluator struct {
	query rego.PreparedEvalQuery
	log   *zap.Logger
}

// NewAccessEvaluator compiles the policy once. It fails only if the embedded policy does not compile.
func NewAccessEvaluator(ctx context.Context, log *zap.Logger) (*AccessEvaluator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	compiler, err := ast.CompileModules(map[string]string{"access.rego": accessPolicy})
	if err != nil {
		return nil, fmt.Errorf("compile access policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(decisionQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare access policy: %w", err)
	}
	return &AccessEvaluator{query: q, log: log.Named("access")}, nil
}

// Evaluate returns the decision for in. If the policy cannot be evaluated the
// conservative fallback is returned: protected paths require a session.
func (e *AccessEvaluator) Evaluate(ctx context.Context, in AccessInput) Decision {
	d, err := e.eval(ctx, in)
	if err != nil {
		e.log.Warn("access policy evaluation failed, using fallback", zap.String("path", in.Path), zap.Error(err))
		return Fallback(in)
	}
	return d
}

// HealthCheck evaluates the policy against a fixed input. Returns nil on success.
func (e *AccessEvaluator) HealthCheck(ctx context.Context) error {
	d, err := e.eval(ctx, AccessInput{Path: "/dashboard"})
	if err != nil {
		return err
	}
	if d.Allow {
		return errors.New("access policy allowed an anonymous dashboard request")
	}
	return nil
}

func (e *AccessEvaluator) eval(ctx context.Context, in AccessInput) (Decision, error) {
	input := map[string]interface{}{
		"path":          normalizePath(in.Path),
		"authenticated": in.Authenticated,
		"onboarded":     in.Onboarded,
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("eval access policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{}, errors.New("access policy returned no result")
	}
	obj, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("access policy returned %T", rs[0].Expressions[0].Value)
	}
	allow, ok := obj["allow"].(bool)
	if !ok {
		return Decision{}, errors.New("access policy decision has no allow")
	}
	redirect, _ := obj["redirect"].(string)
	return Decision{Allow: allow, Redirect: redirect}, nil
}

// Fallback is the decision used when the policy is unavailable.
func Fallback(in AccessInput) Decision {
	if in.Authenticated {
		return Decision{Allow: true}
	}
	path := normalizePath(in.Path)
	for _, p := range protectedPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return Decision{Allow: false, Redirect: "/login"}
		}
	}
	return Decision{Allow: true}
}

// normalizePath drops a trailing slash so /settings/ and /settings match alike.
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
