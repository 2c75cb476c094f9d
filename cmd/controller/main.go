package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/danielpatrickdp/hardening-controller/internal/config"
	"github.com/danielpatrickdp/hardening-controller/internal/executor"
	"github.com/danielpatrickdp/hardening-controller/internal/gate"
	"github.com/danielpatrickdp/hardening-controller/internal/orchestrator"
	"github.com/danielpatrickdp/hardening-controller/internal/policy"
	"github.com/danielpatrickdp/hardening-controller/internal/reward"
	"github.com/danielpatrickdp/hardening-controller/internal/risk"
	"github.com/danielpatrickdp/hardening-controller/internal/server"
	"github.com/danielpatrickdp/hardening-controller/internal/simulate"
	"github.com/danielpatrickdp/hardening-controller/internal/store"
	"github.com/danielpatrickdp/hardening-controller/internal/telemetry"
)

// #region main
func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	interval := flag.Int("interval", -1, "seconds between automatic cycles (overrides config; 0 disables)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *interval >= 0 {
		cfg.IntervalSeconds = *interval
	}

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	events, err := telemetry.NewStore(st.DB())
	if err != nil {
		log.Fatalf("open telemetry store: %v", err)
	}

	memory, err := policy.NewMemory(st.DB())
	if err != nil {
		log.Fatalf("open policy memory: %v", err)
	}

	authorizer := buildAuthorizer(cfg)
	model := risk.NewModel(cfg.Risk)

	orch := orchestrator.New(
		st,
		events,
		model,
		simulate.NewSimulator(model, cfg.Simulate),
		policy.NewSelector(cfg.Policy, memory),
		authorizer,
		executor.NewJournal(),
		reward.NewCalculator(cfg.Reward),
		cfg.Loop,
	)

	log.Printf("[MAIN] hardening controller ready: db=%s env=%s gate=%s",
		cfg.DBPath, cfg.Environment, cfg.GateMode)

	if cfg.IntervalSeconds > 0 {
		go runLoop(orch, cfg.Environment, time.Duration(cfg.IntervalSeconds)*time.Second)
	}

	srv := server.New(orch, st, events, cfg.Environment)
	if err := srv.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// #endregion main

// #region wiring

// buildAuthorizer picks the gate backend. "remote" calls an external policy
// evaluator and fails closed; anything else uses the local rule set.
func buildAuthorizer(cfg config.Config) gate.Authorizer {
	if cfg.GateMode == "remote" {
		return gate.NewHTTPAuthorizer(cfg.GateClient)
	}

	rules := gate.DefaultRules()
	if cfg.GateRulesPath != "" {
		loaded, err := gate.LoadRules(cfg.GateRulesPath)
		if err != nil {
			log.Fatalf("load gate rules: %v", err)
		}
		rules = loaded
	}
	return gate.NewRuleAuthorizer(rules)
}

// runLoop drives unattended cycles. A failed cycle is logged and the loop
// keeps going; failure modes inside a cycle already resolve to a terminal
// status.
func runLoop(orch *orchestrator.Orchestrator, environment string, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for range ticker.C {
		result, err := orch.RunCycle(context.Background(), environment)
		if err != nil {
			log.Printf("[LOOP] cycle error: %v", err)
			continue
		}
		log.Printf("[LOOP] cycle %s: status=%s action=%s reward=%.2f",
			result.DecisionID, result.Status, result.Action.ID, result.Reward.Value)
	}
}

// #endregion wiring
