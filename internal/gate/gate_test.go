package gate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielpatrickdp/hardening-controller/internal/policy"
)

func sandboxCtx(riskScore float64) Context {
	return Context{
		Environment: "sandbox",
		Actor:       "hardening-controller",
		Resource:    "service:checkout-api",
		RiskScore:   riskScore,
	}
}

func TestRuleAuthorizerSandboxAllowsCatalog(t *testing.T) {
	a := NewRuleAuthorizer(DefaultRules())

	for _, id := range policy.PriorityOrder {
		resp := a.Authorize(context.Background(), policy.Action{ID: id}, sandboxCtx(90))
		if !resp.Allowed {
			t.Fatalf("%s denied in sandbox: %s", id, resp.Reason)
		}
	}
}

func TestRuleAuthorizerDenyByDefault(t *testing.T) {
	a := NewRuleAuthorizer(DefaultRules())

	// unknown action kind
	resp := a.Authorize(context.Background(), policy.Action{ID: "format_disks"}, sandboxCtx(50))
	if resp.Allowed {
		t.Fatal("unknown action kind allowed")
	}

	// environment with no rule entry
	ctx := sandboxCtx(50)
	ctx.Environment = "staging"
	resp = a.Authorize(context.Background(), policy.Action{ID: policy.ActionEnforceMFA}, ctx)
	if resp.Allowed {
		t.Fatal("unconfigured environment allowed")
	}
}

func TestRuleAuthorizerProdRestrictions(t *testing.T) {
	a := NewRuleAuthorizer(DefaultRules())
	prod := sandboxCtx(50)
	prod.Environment = "prod"

	// inbound tightening is sandbox-only in the default rule set
	resp := a.Authorize(context.Background(), policy.Action{ID: policy.ActionTightenInboundRule}, prod)
	if resp.Allowed {
		t.Fatal("tighten_inbound_rule allowed in prod")
	}

	resp = a.Authorize(context.Background(), policy.Action{ID: policy.ActionEnforceMFA}, prod)
	if !resp.Allowed {
		t.Fatalf("enforce_mfa denied in prod: %s", resp.Reason)
	}
}

func TestRuleAuthorizerQuarantineNeedsHighRisk(t *testing.T) {
	a := NewRuleAuthorizer(DefaultRules())
	prod := sandboxCtx(50)
	prod.Environment = "prod"

	resp := a.Authorize(context.Background(), policy.Action{ID: policy.ActionQuarantineWorkload}, prod)
	if resp.Allowed {
		t.Fatal("quarantine allowed below the prod risk floor")
	}

	prod.RiskScore = 85
	resp = a.Authorize(context.Background(), policy.Action{ID: policy.ActionQuarantineWorkload}, prod)
	if !resp.Allowed {
		t.Fatalf("quarantine denied at risk 85: %s", resp.Reason)
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	doc := `
environments:
  prod:
    allow: [enforce_mfa]
    min_risk_for_quarantine: 70
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	a := NewRuleAuthorizer(rules)

	prod := sandboxCtx(50)
	prod.Environment = "prod"
	if resp := a.Authorize(context.Background(), policy.Action{ID: policy.ActionEnforceMFA}, prod); !resp.Allowed {
		t.Fatalf("enforce_mfa denied: %s", resp.Reason)
	}
	if resp := a.Authorize(context.Background(), policy.Action{ID: policy.ActionRotateKey}, prod); resp.Allowed {
		t.Fatal("rotate_key not in loaded allow list but allowed")
	}
	// the file says nothing about sandbox, so sandbox denies everything
	if resp := a.Authorize(context.Background(), policy.Action{ID: policy.ActionEnforceMFA}, sandboxCtx(50)); resp.Allowed {
		t.Fatal("sandbox allowed without an entry in the loaded rules")
	}
}

func TestHTTPAuthorizerHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/authorize" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"allowed":true,"reason":"rule matched"}`))
	}))
	defer srv.Close()

	a := NewHTTPAuthorizer(ClientConfig{Addr: srv.URL, TimeoutSeconds: 2})
	resp := a.Authorize(context.Background(), policy.Action{ID: policy.ActionRotateKey}, sandboxCtx(40))
	if !resp.Allowed || resp.Reason != "rule matched" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestHTTPAuthorizerFailsClosed(t *testing.T) {
	// unreachable endpoint
	a := NewHTTPAuthorizer(ClientConfig{Addr: "http://127.0.0.1:1", TimeoutSeconds: 1})
	resp := a.Authorize(context.Background(), policy.Action{ID: policy.ActionRotateKey}, sandboxCtx(40))
	if resp.Allowed {
		t.Fatal("transport failure must deny")
	}
	if !strings.Contains(resp.Reason, "gate unavailable") {
		t.Fatalf("reason = %q", resp.Reason)
	}

	// non-200 status
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	a = NewHTTPAuthorizer(ClientConfig{Addr: srv.URL, TimeoutSeconds: 2})
	if resp := a.Authorize(context.Background(), policy.Action{ID: policy.ActionRotateKey}, sandboxCtx(40)); resp.Allowed {
		t.Fatal("non-200 must deny")
	}

	// undecodable body
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv2.Close()
	a = NewHTTPAuthorizer(ClientConfig{Addr: srv2.URL, TimeoutSeconds: 2})
	if resp := a.Authorize(context.Background(), policy.Action{ID: policy.ActionRotateKey}, sandboxCtx(40)); resp.Allowed {
		t.Fatal("bad body must deny")
	}
}

func TestHTTPAuthorizerHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"allowed":true,"reason":"too late"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	a := NewHTTPAuthorizer(ClientConfig{Addr: srv.URL, TimeoutSeconds: 5})
	resp := a.Authorize(ctx, policy.Action{ID: policy.ActionRotateKey}, sandboxCtx(40))
	if resp.Allowed {
		t.Fatal("expired context must deny")
	}
}
