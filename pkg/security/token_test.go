package security

import "testing"

func TestGenerateEntitlementToken(t *testing.T) {
	token, digest, err := GenerateEntitlementToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !ValidTokenShape(token) {
		t.Fatalf("generated token has invalid shape: %q", token)
	}
	if digest != TokenDigest(token) {
		t.Fatal("returned digest does not match recomputed digest")
	}
	if token == digest {
		t.Fatal("token must not equal its digest")
	}

	second, _, err := GenerateEntitlementToken()
	if err != nil {
		t.Fatalf("generate second: %v", err)
	}
	if second == token {
		t.Fatal("two generated tokens collided")
	}
}

func TestValidTokenShape(t *testing.T) {
	token, _, err := GenerateEntitlementToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	cases := []struct {
		name  string
		input string
		want  bool
	}{
		{"generated token", token, true},
		{"empty", "", false},
		{"too short", token[:32], false},
		{"non hex", string(make([]byte, 64)), false},
		{"uppercase hex", "ABCDEF" + token[6:], false},
	}
	for _, tc := range cases {
		if got := ValidTokenShape(tc.input); got != tc.want {
			t.Errorf("%s: ValidTokenShape=%v want %v", tc.name, got, tc.want)
		}
	}
}

func TestDigestsEqual(t *testing.T) {
	a := TokenDigest("alpha")
	b := TokenDigest("beta")
	if !DigestsEqual(a, a) {
		t.Fatal("equal digests should compare equal")
	}
	if DigestsEqual(a, b) {
		t.Fatal("distinct digests should not compare equal")
	}
}
