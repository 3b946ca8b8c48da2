package policy

import (
	"reflect"
	"strings"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	d := sampleDetail()
	d.Conditions = append(d.Conditions,
		Condition{Section: "HTTP Request header", Key: "User-Agent", Comparator: "matches", Value: "agent.*", Active: false, HandleMissingData: "condition_is_false"},
	)

	rec, err := ToRecord(d)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Realm != "realm1,realm2" {
		t.Fatalf("realm wire form = %q", rec.Realm)
	}
	if rec.User != "alice,bob" {
		t.Fatalf("user wire form = %q", rec.User)
	}

	back, err := FromRecord(rec)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, d) {
		t.Fatalf("round trip mismatch:\nin  %+v\nout %+v", d, back)
	}
}

func TestConditionTupleOrder(t *testing.T) {
	d := Detail{
		Name:   "p",
		Scope:  "webui",
		Active: true,
		Action: map[string]string{"logout_time": "600"},
		Conditions: []Condition{
			{Section: "userinfo", Key: "groups", Comparator: "contains", Value: "admins", Active: true, HandleMissingData: "raise_error"},
		},
	}
	rec, err := ToRecord(d)
	if err != nil {
		t.Fatal(err)
	}
	// 线格式是定序 6 元组
	want := `["userinfo","groups","contains","admins",true,"raise_error"]`
	if !strings.Contains(rec.Conditions, want) {
		t.Fatalf("conditions wire form = %s", rec.Conditions)
	}
}

func TestSplitSetDropsEmpties(t *testing.T) {
	got := splitSet(" a , ,b,")
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("splitSet = %v", got)
	}
	if splitSet("") != nil {
		t.Fatal("empty wire form must yield nil set")
	}
}
