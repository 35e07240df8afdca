package mbti

// Compatibility tiers. Level 1 is the curated best-match pairs; level 2
// adds everyone who is neither best, average, nor bad ("good"); level 3
// adds the average group (NT<->S); level 4 is the full set including the
// bad group (NF<->S). Levels above 4 saturate at 4.

// bestMatch maps each MBTI to its curated level-1 partners.
var bestMatch = map[MBTI][]MBTI{
	"INFP": {"ENFJ", "ENTJ"}, "ENFP": {"INFJ", "INTJ"},
	"INFJ": {"ENFP", "ENTP"}, "ENFJ": {"INFP", "ISFP"},
	"INTJ": {"ENFP", "ENTP"}, "ENTJ": {"INFP", "INTP"},
	"INTP": {"ENTJ", "ESTJ"}, "ENTP": {"INFJ", "INTJ"},
	"ISFP": {"ENFJ", "ESFJ"}, "ESFP": {"ISFJ", "ISTJ"},
	"ISTP": {"ESFJ", "ESTJ"}, "ESTP": {"ISFJ", "ISTJ"},
	"ISFJ": {"ESFP", "ESTP"}, "ESFJ": {"ISFP", "ISTP"},
	"ISTJ": {"ESFP", "ESTP"}, "ESTJ": {"INTP", "ISTP"},
}

// averageGroup pairs the NT types with the S types for level 3.
var averageGroup = struct {
	NT []MBTI
	S  []MBTI
}{
	NT: []MBTI{"INTJ", "ENTJ", "INTP", "ENTP"},
	S:  []MBTI{"ISFP", "ESFP", "ISTP", "ESTP", "ISFJ", "ESFJ", "ISTJ", "ESTJ"},
}

// badGroup pairs the NF types with the S types for the level-4 worst tier.
var badGroup = struct {
	NF []MBTI
	S  []MBTI
}{
	NF: []MBTI{"INFP", "ENFP", "INFJ", "ENFJ"},
	S:  []MBTI{"ISFP", "ESFP", "ISTP", "ESTP", "ISFJ", "ESFJ", "ISTJ", "ESTJ"},
}

// Targets returns the set of MBTI values a user of type my should search at
// the given expansion level. The result preserves the canonical ordering of
// All so callers get deterministic output.
func Targets(my MBTI, level int) []MBTI {
	if level >= 4 {
		out := make([]MBTI, len(All))
		copy(out, All)
		return out
	}

	set := make(map[MBTI]bool)

	if level >= 1 {
		for _, m := range bestMatch[my] {
			set[m] = true
		}
	}

	if level >= 2 {
		best := toSet(bestMatch[my])
		badAvg := badAndAverage(my)
		for _, m := range All {
			if !best[m] && !badAvg[m] {
				set[m] = true
			}
		}
	}

	if level >= 3 {
		for m := range averageOnly(my) {
			set[m] = true
		}
	}

	out := make([]MBTI, 0, len(set))
	for _, m := range All {
		if set[m] {
			out = append(out, m)
		}
	}
	return out
}

// averageOnly returns the opposite side of the NT<->S average mapping, or an
// empty set for types in neither group.
func averageOnly(m MBTI) map[MBTI]bool {
	if contains(averageGroup.NT, m) {
		return toSet(averageGroup.S)
	}
	if contains(averageGroup.S, m) {
		return toSet(averageGroup.NT)
	}
	return map[MBTI]bool{}
}

// badAndAverage returns the union of the bad tier and the average tier for m.
// ENFJ<->ISFP is always a best match, so each is carved out of the other's
// bad set.
func badAndAverage(m MBTI) map[MBTI]bool {
	set := make(map[MBTI]bool)
	switch {
	case contains(badGroup.NF, m):
		for _, s := range badGroup.S {
			set[s] = true
		}
		if m == "ENFJ" {
			delete(set, "ISFP")
		}
	case contains(badGroup.S, m):
		for _, nf := range badGroup.NF {
			set[nf] = true
		}
		if m == "ISFP" {
			delete(set, "ENFJ")
		}
	}
	for a := range averageOnly(m) {
		set[a] = true
	}
	return set
}

func toSet(list []MBTI) map[MBTI]bool {
	set := make(map[MBTI]bool, len(list))
	for _, m := range list {
		set[m] = true
	}
	return set
}

func contains(list []MBTI, m MBTI) bool {
	for _, v := range list {
		if v == m {
			return true
		}
	}
	return false
}
