package extract

import "testing"

func TestRuleIDDeterministic(t *testing.T) {
	a := RuleID("ips-2024", "V.C.3", "No single issuer may exceed 5% of portfolio market value.")
	b := RuleID("ips-2024", "V.C.3", "No single issuer may exceed 5% of portfolio market value.")
	if a != b {
		t.Errorf("identical inputs produced %q and %q", a, b)
	}
	if len(a) != 16 {
		t.Errorf("len = %d, want 16", len(a))
	}
}

func TestRuleIDDistinguishesInputs(t *testing.T) {
	base := RuleID("doc", "sec", "text")
	for name, got := range map[string]string{
		"different doc":     RuleID("doc2", "sec", "text"),
		"different section": RuleID("doc", "sec2", "text"),
		"different body":    RuleID("doc", "sec", "text2"),
		"shifted separator": RuleID("doc|sec", "", "text"),
	} {
		if got == base {
			t.Errorf("%s: collided with base key %q", name, base)
		}
	}
}
