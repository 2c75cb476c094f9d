package policy

// #region action-id

// ActionID identifies a supported hardening action kind.
type ActionID string

const (
	ActionTightenInboundRule  ActionID = "tighten_inbound_rule"
	ActionApplySegmentation   ActionID = "apply_segmentation"
	ActionRemoveIAMPermission ActionID = "remove_iam_permission"
	ActionEnforceMFA          ActionID = "enforce_mfa"
	ActionRotateKey           ActionID = "rotate_key"
	ActionReduceTokenTTL      ActionID = "reduce_token_ttl"
	ActionQuarantineWorkload  ActionID = "quarantine_workload"
)

// PriorityOrder is the fixed tie-break order for greedy selection. First
// match wins, which keeps selection reproducible under equal estimates.
var PriorityOrder = []ActionID{
	ActionTightenInboundRule,
	ActionRemoveIAMPermission,
	ActionEnforceMFA,
	ActionApplySegmentation,
	ActionReduceTokenTTL,
	ActionRotateKey,
	ActionQuarantineWorkload,
}

// Known reports whether id is in the supported action set.
func Known(id ActionID) bool {
	for _, a := range PriorityOrder {
		if a == id {
			return true
		}
	}
	return false
}

// #endregion action-id

// #region action

// Action is the chosen action for one cycle: immutable once selected. Params
// left empty by the policy are filled with defaults by the orchestrator.
type Action struct {
	ID     ActionID               `json:"id"`
	Params map[string]interface{} `json:"params"`
}

// ParamString reads a string parameter, empty if absent or mistyped.
func (a Action) ParamString(key string) string {
	if v, ok := a.Params[key].(string); ok {
		return v
	}
	return ""
}

// ParamInt reads a numeric parameter, 0 if absent or mistyped. JSON decoding
// hands numbers over as float64.
func (a Action) ParamInt(key string) int {
	switch v := a.Params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// #endregion action
