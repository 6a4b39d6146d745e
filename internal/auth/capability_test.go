package auth

import "testing"

func TestEffectivePermissionsDenyWins(t *testing.T) {
	grants := []Grant{
		{Capability: "invoice.read", Effect: EffectAllow},
		{Capability: "invoice.write", Effect: EffectAllow},
		{Capability: "invoice.write", Effect: EffectDeny},
		{Capability: "invoice.write", Effect: EffectAllow},
	}
	set := EffectivePermissions(grants)
	if _, ok := set["invoice.read"]; !ok {
		t.Fatalf("invoice.read should be allowed")
	}
	if _, ok := set["invoice.write"]; ok {
		t.Fatalf("deny must override allow for invoice.write")
	}
}

func TestEffectivePermissionsOrderIndependent(t *testing.T) {
	forward := []Grant{
		{Capability: "client.manage", Effect: EffectAllow},
		{Capability: "client.manage", Effect: EffectDeny},
	}
	reversed := []Grant{
		{Capability: "client.manage", Effect: EffectDeny},
		{Capability: "client.manage", Effect: EffectAllow},
	}
	a := EffectivePermissions(forward)
	b := EffectivePermissions(reversed)
	if len(a) != 0 || len(b) != 0 {
		t.Fatalf("deny must win regardless of grant order: %v vs %v", a, b)
	}
}

func TestEffectivePermissionsIgnoresEmptyAndUnknownEffects(t *testing.T) {
	grants := []Grant{
		{Capability: "", Effect: EffectAllow},
		{Capability: "time_entry.read", Effect: "grant"},
		{Capability: "time_entry.write", Effect: EffectAllow},
	}
	set := EffectivePermissions(grants)
	if len(set) != 1 {
		t.Fatalf("expected a single capability, got %v", set)
	}
	if _, ok := set["time_entry.write"]; !ok {
		t.Fatalf("time_entry.write should be allowed")
	}
}

func TestHasCapabilityUnknownIsDenied(t *testing.T) {
	p := Principal{Capabilities: EffectivePermissions([]Grant{
		{Capability: "invoice.read", Effect: EffectAllow},
	})}
	if !p.HasCapability("invoice.read") {
		t.Fatalf("expected invoice.read")
	}
	if p.HasCapability("reports.export") {
		t.Fatalf("capability never granted must be denied")
	}
}
