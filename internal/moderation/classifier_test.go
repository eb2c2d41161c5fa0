package moderation

import "testing"

func testDenylists() map[string][]string {
	return map[string][]string{
		"EN": {"idiot", "stupid", "fool"},
		"SW": {"mjinga", "pumbavu"},
	}
}

func TestClassify_ObviousSpam(t *testing.T) {
	t.Parallel()

	c := NewClassifier(testDenylists())

	res := c.Classify("free prize claim now urgent", "EN")
	if !res.IsSpam {
		t.Fatalf("expected spam, got score %v", res.SpamScore)
	}
	if res.SpamScore <= DefaultSpamThreshold {
		t.Fatalf("expected score above %v, got %v", DefaultSpamThreshold, res.SpamScore)
	}
	if !res.Flagged() {
		t.Fatalf("expected spam result to be flagged")
	}
}

func TestClassify_CivicTextIsHam(t *testing.T) {
	t.Parallel()

	c := NewClassifier(testDenylists())

	res := c.Classify("Potholes on Main St", "EN")
	if res.IsSpam {
		t.Fatalf("expected ham, got score %v", res.SpamScore)
	}
	if res.IsOffensive {
		t.Fatalf("expected clean text, got offensive")
	}
	if res.Flagged() {
		t.Fatalf("expected clean result not to be flagged")
	}
}

func TestClassify_OffensiveExactWord(t *testing.T) {
	t.Parallel()

	c := NewClassifier(testDenylists())

	res := c.Classify("our MP is an idiot", "EN")
	if !res.IsOffensive {
		t.Fatalf("expected offensive")
	}
	if !res.Flagged() {
		t.Fatalf("expected offensive result to be flagged")
	}
}

func TestClassify_OffensiveStemmedForms(t *testing.T) {
	t.Parallel()

	c := NewClassifier(testDenylists())

	for _, text := range []string{"you are all idiots", "stop fooling the voters"} {
		if res := c.Classify(text, "EN"); !res.IsOffensive {
			t.Fatalf("expected %q to match stemmed denylist", text)
		}
	}
}

func TestClassify_OffensivePerLanguage(t *testing.T) {
	t.Parallel()

	c := NewClassifier(testDenylists())

	if res := c.Classify("wewe ni mjinga", "SW"); !res.IsOffensive {
		t.Fatalf("expected Swahili denylist match")
	}
	// EN word in a SW conversation is not gated; denylists are per language.
	if res := c.Classify("idiot", "SW"); res.IsOffensive {
		t.Fatalf("expected no cross-language denylist match")
	}
	// No denylist configured at all.
	if res := c.Classify("anything", "LG"); res.IsOffensive {
		t.Fatalf("expected no match for language without a denylist")
	}
}

func TestClassify_DegradesWhenModelUnusable(t *testing.T) {
	t.Parallel()

	// A corpus with no ham makes the model unusable; Classify must degrade
	// to not-spam rather than fail.
	c := NewClassifier(testDenylists(), WithCorpus("EN", []Sample{
		{Text: "free free free win win win", Spam: true},
	}))

	res := c.Classify("free prize claim now urgent", "EN")
	if res.IsSpam || res.SpamScore != 0 {
		t.Fatalf("expected degraded result {false, 0}, got %+v", res)
	}
	// The offensive gate still runs.
	if res := c.Classify("idiot", "EN"); !res.IsOffensive {
		t.Fatalf("expected offensive gate to survive model degradation")
	}
}

func TestClassify_EmptyText(t *testing.T) {
	t.Parallel()

	c := NewClassifier(testDenylists())

	res := c.Classify("", "EN")
	if res.IsSpam || res.IsOffensive || res.SpamScore != 0 {
		t.Fatalf("expected empty text to be clean, got %+v", res)
	}
}

func TestStem(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"idiots":  "idiot",
		"fooling": "fool",
		"claimed": "claim",
		"fool":    "fool",
		"its":     "its", // too short to strip
	}
	for in, want := range cases {
		if got := stem(in); got != want {
			t.Fatalf("stem(%q) = %q, want %q", in, got, want)
		}
	}
}
