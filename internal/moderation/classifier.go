// Package moderation gates free-text input before it is committed and
// routed. Two independent checks: a probabilistic spam classifier and a
// per-language offensive-term denylist. The package contract is that
// Classify never fails: any internal problem degrades to "clean" and is
// logged, so a moderation outage can never block citizen participation.
package moderation

import (
	"log/slog"
	"strings"
)

// DefaultSpamThreshold is the probability above which text counts as spam.
const DefaultSpamThreshold = 0.7

type Result struct {
	IsSpam      bool
	SpamScore   float64
	IsOffensive bool
}

// Flagged is the gate decision: either check alone blocks the message.
func (r Result) Flagged() bool { return r.IsSpam || r.IsOffensive }

type Classifier struct {
	threshold float64
	models    map[string]*bayesModel // language code -> model; "" is the shared default
	denylists map[string]map[string]struct{}
}

type Option func(*Classifier)

// WithThreshold overrides the spam probability threshold.
func WithThreshold(th float64) Option {
	return func(c *Classifier) { c.threshold = th }
}

// WithCorpus registers a language-specific training corpus. Languages
// without one share the default model.
func WithCorpus(lang string, samples []Sample) Option {
	return func(c *Classifier) { c.models[lang] = trainBayes(samples) }
}

// NewClassifier trains the default spam model and indexes the per-language
// denylists. English denylist entries are stemmed so inflected forms
// ("idiots", "fooling") still match.
func NewClassifier(denylists map[string][]string, opts ...Option) *Classifier {
	c := &Classifier{
		threshold: DefaultSpamThreshold,
		models:    map[string]*bayesModel{"": trainBayes(defaultCorpus)},
		denylists: make(map[string]map[string]struct{}, len(denylists)),
	}
	for lang, words := range denylists {
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" {
				continue
			}
			if lang == "EN" {
				w = stem(w)
			}
			set[w] = struct{}{}
		}
		c.denylists[lang] = set
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify runs both checks. It never returns an error and never panics:
// failures degrade to a clean result and log the degradation.
func (c *Classifier) Classify(text, lang string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("moderation degraded to clean result", "panic", r, "lang", lang)
			res = Result{}
		}
	}()

	model := c.models[lang]
	if model == nil {
		model = c.models[""]
	}
	if !model.usable() {
		slog.Warn("spam model unusable, degrading to not-spam", "lang", lang)
	} else {
		res.SpamScore = model.score(text)
		res.IsSpam = res.SpamScore > c.threshold
	}

	res.IsOffensive = c.containsOffensive(text, lang)
	return res
}

func (c *Classifier) containsOffensive(text, lang string) bool {
	set := c.denylists[lang]
	if len(set) == 0 {
		return false
	}
	for _, tok := range tokenize(text) {
		if lang == "EN" {
			tok = stem(tok)
		}
		if _, ok := set[tok]; ok {
			return true
		}
	}
	return false
}

// stem strips common English inflection suffixes. Not a full Porter
// stemmer; just enough to catch plurals and -ing/-ed forms.
func stem(word string) string {
	for _, suffix := range []string{"ings", "ing", "edly", "ed", "ies", "es", "ers", "er", "s"} {
		if strings.HasSuffix(word, suffix) && len(word)-len(suffix) >= 3 {
			return word[:len(word)-len(suffix)]
		}
	}
	return word
}
