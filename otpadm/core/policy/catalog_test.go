package policy

import (
	"strings"
	"testing"
)

func TestFilteredActionGroupsExcludesAdded(t *testing.T) {
	added := map[string]string{"maxfail": "10"}
	groups := FilteredActionGroups("authentication", added, "")
	for g, acts := range groups {
		if _, ok := acts["maxfail"]; ok {
			t.Fatalf("already-added action leaked through group %q", g)
		}
	}
	// 没加过的还在
	if _, ok := groups["otp_pin"]["otppin"]; !ok {
		t.Fatal("otppin should survive the filter")
	}
}

func TestFilteredActionGroupsTextFilter(t *testing.T) {
	groups := FilteredActionGroups("authentication", nil, "PIN")
	for g, acts := range groups {
		for name := range acts {
			if !containsFold(name, "pin") {
				t.Fatalf("group %q kept %q which does not match the filter", g, name)
			}
		}
	}
	if len(groups) == 0 {
		t.Fatal("case-insensitive filter should keep the pin actions")
	}
	// 过滤空组整组消失
	if _, ok := groups["failcounter"]; ok {
		t.Fatal("empty group must be dropped")
	}
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func TestFilteredActionGroupsNeverMutatesCatalog(t *testing.T) {
	before := len(ActionsOf("authentication", "failcounter"))
	groups := FilteredActionGroups("authentication", map[string]string{"maxfail": "1"}, "")
	delete(groups, "otp_pin")
	after := len(ActionsOf("authentication", "failcounter"))
	if before != after {
		t.Fatalf("catalog mutated: %d -> %d", before, after)
	}
}

func TestActionsOfUnknownScopeIsEmpty(t *testing.T) {
	if got := ActionsOf("nope", "token"); len(got) != 0 {
		t.Fatalf("unknown scope must yield empty map, got %v", got)
	}
	if got := ActionsOf("admin", "nope"); len(got) != 0 {
		t.Fatalf("unknown group must yield empty map, got %v", got)
	}
}

func TestScopeOfAction(t *testing.T) {
	if s := ScopeOfAction("maxfail"); s != "authentication" {
		t.Fatalf("ScopeOfAction(maxfail) = %q", s)
	}
	if s := ScopeOfAction("no_such_action"); s != "" {
		t.Fatalf("unknown action must map to empty scope, got %q", s)
	}
}

func TestActionValueOK(t *testing.T) {
	boolD := ActionDetail{Type: TypeBool}
	for _, v := range []string{"true", "False", "1", "0"} {
		if !ActionValueOK(boolD, v) {
			t.Fatalf("bool %q should be accepted", v)
		}
	}
	if ActionValueOK(boolD, "yes") {
		t.Fatal("bool 'yes' must be rejected")
	}

	intD := ActionDetail{Type: TypeInt, Value: []string{"30", "60"}}
	if !ActionValueOK(intD, "30") || ActionValueOK(intD, "45") || ActionValueOK(intD, "abc") {
		t.Fatal("int allowed-values check broken")
	}

	strD := ActionDetail{Type: TypeStr, Value: []string{"userstore", "token", "none"}}
	if !ActionValueOK(strD, "token") || ActionValueOK(strD, "") || ActionValueOK(strD, "other") {
		t.Fatal("str allowed-values check broken")
	}
}
