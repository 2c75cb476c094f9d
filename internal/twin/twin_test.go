package twin

import "testing"

func TestDefaultIsValid(t *testing.T) {
	tw := Default()
	if !tw.Valid() {
		t.Fatal("default twin must be well-formed")
	}
	if len(tw.Services) == 0 || len(tw.Identities) == 0 {
		t.Fatal("default twin must carry services and identities")
	}
}

func TestDefaultCheckoutAPIIsPublic(t *testing.T) {
	tw := Default()
	svc, ok := tw.Services["checkout-api"]
	if !ok {
		t.Fatal("expected checkout-api in default twin")
	}
	if !svc.PubliclyExposed() {
		t.Fatal("checkout-api should start publicly exposed")
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := Default()
	cp := orig.Clone()

	cp.Services["checkout-api"].AllowedCIDRs["192.168.0.0/16"] = true
	cp.Services["checkout-api"].InboundOpenPorts[0] = 9999
	cp.Identities["ci-deployer"].Permissions["extra:perm"] = true
	svc := cp.Services["payments-db"]
	svc.Quarantined = true
	cp.Services["payments-db"] = svc

	if orig.Services["checkout-api"].AllowedCIDRs["192.168.0.0/16"] {
		t.Fatal("clone shares CIDR map with original")
	}
	if orig.Services["checkout-api"].InboundOpenPorts[0] == 9999 {
		t.Fatal("clone shares port slice with original")
	}
	if orig.Identities["ci-deployer"].Permissions["extra:perm"] {
		t.Fatal("clone shares permission map with original")
	}
	if orig.Services["payments-db"].Quarantined {
		t.Fatal("clone shares service struct with original")
	}
}

func TestValidRejectsMissingMaps(t *testing.T) {
	cases := []struct {
		name string
		tw   Twin
	}{
		{"nil services", Twin{Identities: map[string]Identity{}}},
		{"nil identities", Twin{Services: map[string]Service{}}},
		{"service without cidrs", Twin{
			Services:   map[string]Service{"a": {InboundOpenPorts: []int{80}}},
			Identities: map[string]Identity{},
		}},
		{"service without ports", Twin{
			Services:   map[string]Service{"a": {AllowedCIDRs: map[string]bool{}}},
			Identities: map[string]Identity{},
		}},
		{"identity without permissions", Twin{
			Services:   map[string]Service{},
			Identities: map[string]Identity{"p": {TokenTTLMinutes: 60}},
		}},
		{"negative ttl", Twin{
			Services: map[string]Service{},
			Identities: map[string]Identity{"p": {
				Permissions:     map[string]bool{},
				TokenTTLMinutes: -1,
			}},
		}},
	}
	for _, tc := range cases {
		if tc.tw.Valid() {
			t.Errorf("%s: expected invalid", tc.name)
		}
	}
}

func TestNameOrderingIsDeterministic(t *testing.T) {
	tw := Default()
	names := tw.ServiceNames()
	if len(names) != 2 || names[0] != "checkout-api" || names[1] != "payments-db" {
		t.Fatalf("unexpected service order: %v", names)
	}
	ids := tw.IdentityNames()
	if len(ids) != 2 || ids[0] != "ci-deployer" || ids[1] != "svc-reporting" {
		t.Fatalf("unexpected identity order: %v", ids)
	}
}
