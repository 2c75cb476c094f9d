package gate

import (
	"context"

	"github.com/danielpatrickdp/hardening-controller/internal/policy"
)

// #region contract

// Context carries the execution context sent with every authorization call.
type Context struct {
	Environment string  `json:"environment"` // "sandbox" | "prod"
	Actor       string  `json:"actor"`
	Resource    string  `json:"resource"`
	RiskScore   float64 `json:"risk_score"`
}

// Response is the gate's verdict. Reasons are opaque human-readable strings;
// the control loop never parses them and never retries a deny with different
// parameters within the same cycle.
type Response struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// Request is the wire shape sent to a remote policy evaluator.
type Request struct {
	Action  policy.Action `json:"action"`
	Context Context       `json:"context"`
}

// Authorizer is the deny-by-default authorization oracle. Implementations
// must behave as pure decision functions of the input, with no effect on the
// twin. Transport failures are an implicit deny, never an implicit allow.
type Authorizer interface {
	Authorize(ctx context.Context, action policy.Action, gctx Context) Response
}

// #endregion contract

// #region static

// Static returns a canned verdict for every call. Test double.
type Static struct {
	Allowed bool
	Reason  string
}

// Authorize implements Authorizer.
func (s Static) Authorize(_ context.Context, _ policy.Action, _ Context) Response {
	return Response{Allowed: s.Allowed, Reason: s.Reason}
}

// #endregion static
