package listview

import (
	"reflect"
	"testing"
)

func rowsFixture() []Row {
	return []Row{
		{"name": "pin-policy", "scope": "authentication", "priority": "5"},
		{"name": "webui-look", "scope": "webui", "priority": "10"},
	}
}

func names(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r["name"])
	}
	return out
}

func TestParseQuery(t *testing.T) {
	q := ParseQuery("scope:webui priority:>=5 pin")
	if q.Terms["scope"] != "webui" || q.Terms["priority"] != ">=5" {
		t.Fatalf("terms = %v", q.Terms)
	}
	if !reflect.DeepEqual(q.Free, []string{"pin"}) {
		t.Fatalf("free = %v", q.Free)
	}
}

func TestPriorityComparators(t *testing.T) {
	rows := rowsFixture()
	cols := []string{"name", "scope"}

	got := Apply(rows, cols, ParseQuery("priority:>=5"))
	if !reflect.DeepEqual(names(got), []string{"pin-policy", "webui-look"}) {
		t.Fatalf(">=5 kept %v", names(got))
	}

	got = Apply(rows, cols, ParseQuery("priority:3-7"))
	if !reflect.DeepEqual(names(got), []string{"pin-policy"}) {
		t.Fatalf("3-7 kept %v", names(got))
	}

	got = Apply(rows, cols, ParseQuery("priority:!=5"))
	if !reflect.DeepEqual(names(got), []string{"webui-look"}) {
		t.Fatalf("!=5 kept %v", names(got))
	}
}

func TestPriorityFailOpen(t *testing.T) {
	rows := rowsFixture()
	// 解析不了的表达式不过滤
	got := Apply(rows, []string{"name"}, ParseQuery("priority:>=x"))
	if len(got) != len(rows) {
		t.Fatalf("unparsable expression must fail open, kept %v", names(got))
	}
	got = Apply(rows, []string{"name"}, ParseQuery("priority:whatever"))
	if len(got) != len(rows) {
		t.Fatalf("garbage expression must fail open, kept %v", names(got))
	}
}

func TestFreeTextMatchesAnyColumn(t *testing.T) {
	rows := rowsFixture()
	got := Apply(rows, []string{"name", "scope"}, ParseQuery("WEBUI"))
	if !reflect.DeepEqual(names(got), []string{"webui-look"}) {
		t.Fatalf("free text match kept %v", names(got))
	}
	got = Apply(rows, []string{"name", "scope"}, ParseQuery("nosuch"))
	if len(got) != 0 {
		t.Fatalf("miss should keep nothing, got %v", names(got))
	}
}

func TestSortTriState(t *testing.T) {
	rows := rowsFixture()
	Sort(rows, "priority", "desc")
	if !reflect.DeepEqual(names(rows), []string{"webui-look", "pin-policy"}) {
		t.Fatalf("desc order %v", names(rows))
	}
	Sort(rows, "priority", "asc")
	if !reflect.DeepEqual(names(rows), []string{"pin-policy", "webui-look"}) {
		t.Fatalf("asc order %v", names(rows))
	}
	// 第三态：保持现状
	Sort(rows, "priority", "")
	if !reflect.DeepEqual(names(rows), []string{"pin-policy", "webui-look"}) {
		t.Fatalf("none order %v", names(rows))
	}
}

func TestPage(t *testing.T) {
	rows := []Row{{"n": "1"}, {"n": "2"}, {"n": "3"}}
	if got := Page(rows, 2, 2); len(got) != 1 || got[0]["n"] != "3" {
		t.Fatalf("page 2 = %v", got)
	}
	if got := Page(rows, 9, 2); len(got) != 0 {
		t.Fatalf("out-of-range page must be empty, got %v", got)
	}
}
