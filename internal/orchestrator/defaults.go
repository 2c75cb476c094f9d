package orchestrator

// #region imports
import (
	"fmt"

	"github.com/danielpatrickdp/hardening-controller/internal/policy"
	"github.com/danielpatrickdp/hardening-controller/internal/twin"
)

// #endregion

// #region resolve-params

// ResolveParams fills in the parameters the policy left unspecified, picking
// the most exposed target the action can still improve. Defaults are
// deterministic: candidates are scanned in sorted name order.
func ResolveParams(action policy.Action, t twin.Twin) policy.Action {
	if action.Params == nil {
		action.Params = map[string]interface{}{}
	}

	switch action.ID {
	case policy.ActionTightenInboundRule:
		setDefault(action.Params, "service", pickService(t, func(s twin.Service) bool {
			return s.PubliclyExposed()
		}))
		setDefault(action.Params, "new_cidr", twin.TrustedInternalCIDR)

	case policy.ActionApplySegmentation:
		setDefault(action.Params, "service", pickService(t, func(s twin.Service) bool {
			return !s.Segmented
		}))

	case policy.ActionQuarantineWorkload:
		setDefault(action.Params, "service", pickService(t, func(s twin.Service) bool {
			return !s.Quarantined && s.PubliclyExposed()
		}))

	case policy.ActionRemoveIAMPermission:
		principal := pickIdentity(t, func(id twin.Identity) bool {
			return id.Permissions["*"]
		})
		setDefault(action.Params, "identity", principal)
		setDefault(action.Params, "permission", "*")

	case policy.ActionEnforceMFA:
		setDefault(action.Params, "identity", pickIdentity(t, func(id twin.Identity) bool {
			return !id.MFAEnabled
		}))

	case policy.ActionRotateKey:
		setDefault(action.Params, "identity", pickIdentity(t, nil))

	case policy.ActionReduceTokenTTL:
		setDefault(action.Params, "identity", pickIdentity(t, func(id twin.Identity) bool {
			return id.TokenTTLMinutes > 60
		}))
		setDefault(action.Params, "ttl_minutes", 60)
	}

	return action
}

// #endregion resolve-params

// #region helpers

func setDefault(params map[string]interface{}, key string, value interface{}) {
	if _, ok := params[key]; !ok {
		params[key] = value
	}
}

// pickService returns the first service (sorted by name) matching want,
// falling back to the first service overall.
func pickService(t twin.Twin, want func(twin.Service) bool) string {
	names := t.ServiceNames()
	if want != nil {
		for _, n := range names {
			if want(t.Services[n]) {
				return n
			}
		}
	}
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

// pickIdentity returns the first principal (sorted by name) matching want,
// falling back to the first principal overall.
func pickIdentity(t twin.Twin, want func(twin.Identity) bool) string {
	names := t.IdentityNames()
	if want != nil {
		for _, n := range names {
			if want(t.Identities[n]) {
				return n
			}
		}
	}
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

// ResolveResource names the resource the action targets for the gate context.
func ResolveResource(action policy.Action) string {
	if svc := action.ParamString("service"); svc != "" {
		return fmt.Sprintf("service:%s", svc)
	}
	if id := action.ParamString("identity"); id != "" {
		return fmt.Sprintf("identity:%s", id)
	}
	return "unresolved"
}

// #endregion helpers
