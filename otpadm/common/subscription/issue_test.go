package subscription

import (
	"otpadm/otpadm/common"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	pk, sk, err := GenerateEd25519Key()
	if err != nil {
		t.Fatal(err)
	}
	aesKey, err := GenerateAES256Key()
	if err != nil {
		t.Fatal(err)
	}
	aad := ParseAAD(common.AAD)

	cfg := common.SubscriptionCfg{
		Admin:       true,
		Audit:       true,
		Container:   true,
		RunTime:     time.Now().Add(90 * 24 * time.Hour),
		MachineCode: "", // 为空则不校验机器码
	}
	subStr, err := IssueEd25519(cfg, sk, aesKey, aad)
	if err != nil {
		t.Fatal(err)
	}

	sp, err := ParseAndVerifyEd25519(subStr, pk, aesKey, aad)
	if err != nil {
		t.Fatal(err)
	}
	if ok, msg := BasicValidate(sp, "", time.Now()); !ok {
		t.Fatal(msg)
	}
	if !sp.Audit || !sp.Container {
		t.Fatalf("payload flags lost: %+v", sp)
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	_, sk, err := GenerateEd25519Key()
	if err != nil {
		t.Fatal(err)
	}
	cfg := common.SubscriptionCfg{Admin: true, RunTime: time.Now().Add(time.Hour)}
	subStr, err := IssueEd25519(cfg, sk, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	// 换一把公钥：验签必须失败
	otherPK, _, err := GenerateEd25519Key()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAndVerifyEd25519(subStr, otherPK, nil, nil); err == nil {
		t.Fatal("expected signature verify failure")
	}
}
