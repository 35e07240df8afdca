package mbti

import "testing"

func toStringSet(list []MBTI) map[MBTI]bool {
	set := make(map[MBTI]bool, len(list))
	for _, m := range list {
		set[m] = true
	}
	return set
}

func TestTargets_Level1_BestPairs(t *testing.T) {
	tests := []struct {
		my   MBTI
		want []MBTI
	}{
		{"INFP", []MBTI{"ENFJ", "ENTJ"}},
		{"ENFJ", []MBTI{"INFP", "ISFP"}},
		{"ISFP", []MBTI{"ENFJ", "ESFJ"}},
		{"ESTJ", []MBTI{"INTP", "ISTP"}},
	}

	for _, tt := range tests {
		got := Targets(tt.my, 1)
		if len(got) != len(tt.want) {
			t.Errorf("Targets(%s, 1) = %v, want %v", tt.my, got, tt.want)
			continue
		}
		gotSet := toStringSet(got)
		for _, w := range tt.want {
			if !gotSet[w] {
				t.Errorf("Targets(%s, 1) missing %s: %v", tt.my, w, got)
			}
		}
	}
}

func TestTargets_Level4_IsFullSet(t *testing.T) {
	for _, m := range All {
		got := Targets(m, 4)
		if len(got) != 16 {
			t.Errorf("Targets(%s, 4) has %d entries, want 16", m, len(got))
		}
	}
}

func TestTargets_LevelsAboveFourSaturate(t *testing.T) {
	four := Targets("INFP", 4)
	nine := Targets("INFP", 9)
	if len(four) != len(nine) {
		t.Fatalf("level 9 should equal level 4: %v vs %v", four, nine)
	}
	fourSet := toStringSet(four)
	for _, m := range nine {
		if !fourSet[m] {
			t.Errorf("level 9 produced %s not present at level 4", m)
		}
	}
}

func TestTargets_LevelsAreMonotonic(t *testing.T) {
	for _, m := range All {
		prev := map[MBTI]bool{}
		for level := 1; level <= 4; level++ {
			cur := toStringSet(Targets(m, level))
			for p := range prev {
				if !cur[p] {
					t.Errorf("Targets(%s, %d) lost %s present at level %d", m, level, p, level-1)
				}
			}
			prev = cur
		}
	}
}

func TestTargets_SameTypeIsGoodForINFP(t *testing.T) {
	// INFP is NF, so the S types are bad; the remaining N types (minus the
	// best pair) are "good" and appear at level 2 — including INFP itself.
	level1 := toStringSet(Targets("INFP", 1))
	if level1["INFP"] {
		t.Error("INFP should not be its own best match")
	}

	level2 := toStringSet(Targets("INFP", 2))
	if !level2["INFP"] {
		t.Error("INFP should be in its own level-2 targets (same-type is good)")
	}
}

func TestTargets_Level2_ExcludesBadAndAverage(t *testing.T) {
	// For INFP (NF), every S type is bad and there is no average group, so
	// level 2 and level 3 are the eight N types.
	level2 := toStringSet(Targets("INFP", 2))
	for _, s := range badGroup.S {
		if level2[s] {
			t.Errorf("Targets(INFP, 2) should not contain S type %s", s)
		}
	}
	for _, n := range []MBTI{"INFP", "ENFP", "INFJ", "ENFJ", "INTJ", "ENTJ", "INTP", "ENTP"} {
		if !level2[n] {
			t.Errorf("Targets(INFP, 2) missing N type %s", n)
		}
	}

	level3 := toStringSet(Targets("INFP", 3))
	if len(level3) != len(level2) {
		t.Errorf("INFP has no average group; level 3 (%d) should equal level 2 (%d)",
			len(level3), len(level2))
	}
}

func TestTargets_Level3_AddsAverageForNT(t *testing.T) {
	// INTP is NT: the S types are average and must appear at level 3 but
	// not level 2.
	level2 := toStringSet(Targets("INTP", 2))
	level3 := toStringSet(Targets("INTP", 3))
	best := toStringSet(bestMatch["INTP"]) // ESTJ is average *and* best

	for _, s := range averageGroup.S {
		if level2[s] && !best[s] {
			t.Errorf("Targets(INTP, 2) should not contain average type %s", s)
		}
		if !level3[s] {
			t.Errorf("Targets(INTP, 3) missing average type %s", s)
		}
	}
}

func TestTargets_ENFJ_ISFP_ExceptionBothDirections(t *testing.T) {
	// ENFJ is NF and ISFP is S, but the pair is pinned as best: neither may
	// ever treat the other as bad, at any level.
	for level := 1; level <= 4; level++ {
		enfj := toStringSet(Targets("ENFJ", level))
		if !enfj["ISFP"] {
			t.Errorf("Targets(ENFJ, %d) must contain ISFP", level)
		}
		isfp := toStringSet(Targets("ISFP", level))
		if !isfp["ENFJ"] {
			t.Errorf("Targets(ISFP, %d) must contain ENFJ", level)
		}
	}

	// The other NF/S combinations stay excluded below level 4.
	enfj2 := toStringSet(Targets("ENFJ", 2))
	if enfj2["ISTJ"] {
		t.Error("Targets(ENFJ, 2) should not contain ISTJ")
	}
}

func TestTargets_DeterministicOrder(t *testing.T) {
	a := Targets("ENFP", 3)
	b := Targets("ENFP", 3)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Targets should be deterministic: %v vs %v", a, b)
		}
	}
}
