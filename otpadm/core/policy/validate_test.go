package policy

import (
	"reflect"
	"testing"
)

func TestValidTime(t *testing.T) {
	valid := []string{
		"",
		"Mon-Fri: 9-18",
		"Sat-Sun: 0-23",
		"Mon: 8-17, Wed-Fri: 9-18",
	}
	for _, s := range valid {
		if !ValidTime(s) {
			t.Fatalf("%q should be valid", s)
		}
	}

	invalid := []string{
		"Mon-Fri: 9-25", // 小时越界
		"Mon-Fry: 9-18", // 拼错的星期
		"9-18",
		"Mon-Fri 9-18", // 缺冒号
	}
	for _, s := range invalid {
		if ValidTime(s) {
			t.Fatalf("%q should be invalid", s)
		}
	}
}

func TestValidClients(t *testing.T) {
	if bad := ValidClients(""); len(bad) != 0 {
		t.Fatalf("empty spec must be valid, got %v", bad)
	}
	if bad := ValidClients("10.0.0.1, 10.0.0.0/8, !192.168.1.0/24, fe80::1, host.example.com"); len(bad) != 0 {
		t.Fatalf("all entries valid, got offenders %v", bad)
	}

	bad := ValidClients("10.0.0.1, 300.1.2.3, 10.0.0.0/40, good.example.org, -leading.example")
	want := []string{"300.1.2.3", "10.0.0.0/40", "-leading.example"}
	if !reflect.DeepEqual(bad, want) {
		t.Fatalf("offenders = %v, want %v", bad, want)
	}
}

func TestValidClientsBareLabel(t *testing.T) {
	// 裸标签不是主机名：至少要有一个点
	if bad := ValidClients("not-an-ip"); !reflect.DeepEqual(bad, []string{"not-an-ip"}) {
		t.Fatalf("offenders = %v, want [not-an-ip]", bad)
	}
	if bad := ValidClients("a.b.com, 10.0.0.0/33"); !reflect.DeepEqual(bad, []string{"10.0.0.0/33"}) {
		t.Fatalf("offenders = %v, want [10.0.0.0/33]", bad)
	}
	if bad := ValidClients("!localhost"); len(bad) != 1 {
		t.Fatalf("excluded bare label must still be invalid, got %v", bad)
	}
}

func TestValidClientsIDNA(t *testing.T) {
	// 非 ASCII 域名走 IDNA 归一化
	if bad := ValidClients("bücher.example"); len(bad) != 0 {
		t.Fatalf("IDNA hostname rejected: %v", bad)
	}
}

func TestValidUserAgent(t *testing.T) {
	if !ValidUserAgent("privacy-agent/1.0") {
		t.Fatal("plain agent should be valid")
	}
	if ValidUserAgent("agent,other") {
		t.Fatal("embedded comma must be rejected")
	}
}
