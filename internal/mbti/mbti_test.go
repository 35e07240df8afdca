package mbti

import "testing"

func TestParse_ValidCodes(t *testing.T) {
	for _, m := range All {
		got, err := Parse(string(m))
		if err != nil {
			t.Errorf("Parse(%s) returned error: %v", m, err)
		}
		if got != m {
			t.Errorf("Parse(%s) = %s", m, got)
		}
	}
}

func TestParse_NormalizesCase(t *testing.T) {
	got, err := Parse("infp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "INFP" {
		t.Errorf("expected INFP, got %s", got)
	}

	got, err = Parse("  EnFj ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ENFJ" {
		t.Errorf("expected ENFJ, got %s", got)
	}
}

func TestParse_RejectsInvalid(t *testing.T) {
	for _, s := range []string{"", "ABCD", "INF", "INFPX", "XXXX", "1234"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) should fail", s)
		}
	}
}

func TestAll_HasSixteenDistinctCodes(t *testing.T) {
	if len(All) != 16 {
		t.Fatalf("expected 16 codes, got %d", len(All))
	}
	seen := make(map[MBTI]bool)
	for _, m := range All {
		if seen[m] {
			t.Errorf("duplicate code %s", m)
		}
		seen[m] = true
	}
}
