package policy

import (
	"reflect"
	"testing"
)

func sampleDetail() Detail {
	return Detail{
		Name:        "pol1",
		Scope:       "authentication",
		Priority:    5,
		Active:      true,
		Description: "sample",
		Action:      map[string]string{"maxfail": "10"},
		Realm:       []string{"realm1", "realm2"},
		User:        []string{"alice", "bob"},
		Client:      []string{"10.0.0.0/8"},
		Time:        "Mon-Fri: 9-18",
		Conditions: []Condition{
			{Section: "userinfo", Key: "type", Comparator: "equals", Value: "secure", Active: true, HandleMissingData: "raise_error"},
		},
	}
}

func TestMergeEmptyPatchIsIdentity(t *testing.T) {
	old := sampleDetail()
	got := Merge(old, Patch{})
	if !reflect.DeepEqual(got, old) {
		t.Fatalf("empty patch changed the detail:\nold=%+v\ngot=%+v", old, got)
	}
}

func TestMergeReplacesSlicesWholesale(t *testing.T) {
	old := sampleDetail()
	realms := []string{"realm9"}
	pr := 99
	got := Merge(old, Patch{Realm: &realms, Priority: &pr})

	if !reflect.DeepEqual(got.Realm, []string{"realm9"}) {
		t.Fatalf("realm not replaced: %v", got.Realm)
	}
	if got.Priority != 99 {
		t.Fatalf("priority not merged: %d", got.Priority)
	}
	// 未提供的键保持不变
	if !reflect.DeepEqual(got.User, old.User) || got.Time != old.Time {
		t.Fatalf("unrelated fields changed")
	}
	// 不共享底层数组
	realms[0] = "mutated"
	if got.Realm[0] != "realm9" {
		t.Fatal("merged slice shares backing array with patch")
	}
}

func TestAddActionDuplicateIsUpdate(t *testing.T) {
	d := sampleDetail()
	if err := d.AddAction("maxfail", "3"); err != nil {
		t.Fatal(err)
	}
	if len(d.Action) != 1 || d.Action["maxfail"] != "3" {
		t.Fatalf("duplicate add must update in place: %v", d.Action)
	}
}

func TestAddActionRejectsInvalidValue(t *testing.T) {
	d := sampleDetail()
	if err := d.AddAction("maxfail", "many"); err == nil {
		t.Fatal("expected error for non-int maxfail")
	}
	if d.Action["maxfail"] != "10" {
		t.Fatalf("rejected add must not modify the map: %v", d.Action)
	}
}

func TestAddActionAutoSetsScope(t *testing.T) {
	var d Detail
	if err := d.AddAction("maxfail", "5"); err != nil {
		t.Fatal(err)
	}
	if d.Scope != "authentication" {
		t.Fatalf("scope = %q, want authentication", d.Scope)
	}
}

func TestUpdateActionRequiresExistingKey(t *testing.T) {
	d := sampleDetail()
	if err := d.UpdateAction("otppin", "token"); err == nil {
		t.Fatal("update of absent action must fail")
	}
	if err := d.UpdateAction("maxfail", "7"); err != nil {
		t.Fatal(err)
	}
	if d.Action["maxfail"] != "7" {
		t.Fatalf("update lost: %v", d.Action)
	}
}

func TestRemoveActionIdempotent(t *testing.T) {
	d := sampleDetail()
	d.RemoveAction("maxfail")
	d.RemoveAction("maxfail") // 第二次不 panic、无副作用
	if len(d.Action) != 0 {
		t.Fatalf("action not removed: %v", d.Action)
	}
}

func TestChangeScopeLooseResetsUncoveredActions(t *testing.T) {
	d := sampleDetail()
	if err := d.ChangeScope("webui", false); err != nil {
		t.Fatal(err)
	}
	if d.Scope != "webui" || len(d.Action) != 0 {
		t.Fatalf("loose scope change must reset uncovered actions: scope=%s action=%v", d.Scope, d.Action)
	}
}

func TestChangeScopeStrictRejects(t *testing.T) {
	d := sampleDetail()
	if err := d.ChangeScope("webui", true); err == nil {
		t.Fatal("strict scope change must reject when nothing is covered")
	}
	if d.Scope != "authentication" || d.Action["maxfail"] != "10" {
		t.Fatalf("rejected change must not mutate: %+v", d)
	}
}

func TestValidateCommaInUserEntry(t *testing.T) {
	d := sampleDetail()
	d.User = []string{"alice,bob"}
	if err := d.Validate(); err == nil {
		t.Fatal("user entry with comma must be rejected")
	}
}

func TestValidateRejectsActionOutsideScope(t *testing.T) {
	d := sampleDetail()
	d.Action["logout_time"] = "600" // webui 的动作混进 authentication
	if err := d.Validate(); err == nil {
		t.Fatal("action outside scope must be rejected")
	}
}
