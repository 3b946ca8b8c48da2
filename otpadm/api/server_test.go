package api

import (
	"strings"
	"testing"
	"time"
)

func TestCollectAuditTablesByRange(t *testing.T) {
	start := time.Date(2025, 9, 29, 10, 0, 0, 0, time.Local)
	end := time.Date(2025, 10, 2, 3, 0, 0, 0, time.Local)

	got := collectAuditTablesByRange(start, end)
	want := []string{
		"audit_log_20250929",
		"audit_log_20250930",
		"audit_log_20251001",
		"audit_log_20251002",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCollectAuditTablesSingleDay(t *testing.T) {
	d := time.Date(2025, 1, 5, 0, 0, 0, 0, time.Local)
	got := collectAuditTablesByRange(d, d.Add(23*time.Hour))
	if len(got) != 1 || got[0] != "audit_log_20250105" {
		t.Fatalf("got %v", got)
	}
}

func TestReplicateArgs(t *testing.T) {
	args := []any{int64(1), "x"}
	out := replicateArgs(args, 3)
	if len(out) != 6 {
		t.Fatalf("len = %d, want 6", len(out))
	}
	for i := 0; i < 3; i++ {
		if out[i*2] != int64(1) || out[i*2+1] != "x" {
			t.Fatalf("chunk %d = %v", i, out[i*2:i*2+2])
		}
	}
}

func TestNewSerialShape(t *testing.T) {
	s := newSerial("OATH")
	// OATH + YYMMDD + 8 hex 大写
	if !strings.HasPrefix(s, "OATH") {
		t.Fatalf("serial %q missing prefix", s)
	}
	if len(s) != 4+6+8 {
		t.Fatalf("serial %q length = %d", s, len(s))
	}
	if s != strings.ToUpper(s) {
		t.Fatalf("serial %q not uppercase", s)
	}
	if s == newSerial("OATH") {
		t.Fatalf("two serials should not collide")
	}
}

func TestNewOTPKey(t *testing.T) {
	k := newOTPKey()
	if len(k) != 40 {
		t.Fatalf("key length = %d, want 40 hex chars", len(k))
	}
	if k == newOTPKey() {
		t.Fatalf("two keys should not collide")
	}
}
