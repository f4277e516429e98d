// Package policy decides how a requested session id is treated for a given user.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/xiaot623/aetheron/internal/domain"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// Input is the document the session policy is evaluated against.
type Input struct {
	UserID    int64 `json:"user_id"`
	Requested bool  `json:"requested"`
	Exists    bool  `json:"exists"`
	OwnerID   int64 `json:"owner_id"`
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.session_policy.decision"),
		rego.Module("session_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewEngineByName builds an engine from one of the bundled policies ("default" or "strict").
func NewEngineByName(ctx context.Context, name string) (*Engine, error) {
	switch name {
	case "", "default":
		return NewEngine(ctx, DefaultPolicy)
	case "strict":
		return NewEngine(ctx, StrictPolicy)
	default:
		return nil, fmt.Errorf("unknown session policy %q", name)
	}
}

// Evaluate returns the decision for the given input.
func (e *Engine) Evaluate(ctx context.Context, input Input) (domain.SessionDecision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// Policies define a default; an undefined result means a broken policy.
		return "", fmt.Errorf("session policy produced no decision")
	}

	s, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("session policy returned %T, want string", results[0].Expressions[0].Value)
	}

	switch d := domain.SessionDecision(s); d {
	case domain.SessionDecisionReuse, domain.SessionDecisionCreate, domain.SessionDecisionDeny:
		return d, nil
	default:
		return "", fmt.Errorf("session policy returned unknown decision %q", s)
	}
}

// DefaultPolicy starts a fresh session when the requested one is missing or belongs to
// someone else.
const DefaultPolicy = `
package session_policy

default decision = "create"

decision = "reuse" {
	input.requested
	input.exists
	input.owner_id == input.user_id
}
`

// StrictPolicy rejects requests naming a session the caller does not own.
const StrictPolicy = `
package session_policy

default decision = "create"

decision = "reuse" {
	input.requested
	input.exists
	input.owner_id == input.user_id
}

decision = "deny" {
	input.requested
	input.exists
	input.owner_id != input.user_id
}
`
