package moderation

import (
	"math"
	"strings"
	"unicode"
)

// bayesModel is a multinomial Naive Bayes text classifier with add-one
// smoothing, trained once at construction from a labeled corpus.
type bayesModel struct {
	spamTokens map[string]int
	hamTokens  map[string]int
	spamTotal  int
	hamTotal   int
	spamDocs   int
	hamDocs    int
	vocab      map[string]struct{}
}

func trainBayes(samples []Sample) *bayesModel {
	m := &bayesModel{
		spamTokens: make(map[string]int),
		hamTokens:  make(map[string]int),
		vocab:      make(map[string]struct{}),
	}
	for _, s := range samples {
		tokens := tokenize(s.Text)
		if len(tokens) == 0 {
			continue
		}
		if s.Spam {
			m.spamDocs++
		} else {
			m.hamDocs++
		}
		for _, tok := range tokens {
			m.vocab[tok] = struct{}{}
			if s.Spam {
				m.spamTokens[tok]++
				m.spamTotal++
			} else {
				m.hamTokens[tok]++
				m.hamTotal++
			}
		}
	}
	return m
}

func (m *bayesModel) usable() bool {
	return m != nil && m.spamDocs > 0 && m.hamDocs > 0 && len(m.vocab) > 0
}

// score returns P(spam | text) in [0,1].
func (m *bayesModel) score(text string) float64 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0
	}

	docs := float64(m.spamDocs + m.hamDocs)
	logSpam := math.Log(float64(m.spamDocs) / docs)
	logHam := math.Log(float64(m.hamDocs) / docs)

	v := float64(len(m.vocab))
	for _, tok := range tokens {
		// Skip tokens never seen in training; they carry no signal and
		// would only wash out the posterior.
		if _, ok := m.vocab[tok]; !ok {
			continue
		}
		logSpam += math.Log(float64(m.spamTokens[tok]+1) / (float64(m.spamTotal) + v))
		logHam += math.Log(float64(m.hamTokens[tok]+1) / (float64(m.hamTotal) + v))
	}

	// Convert the two log-likelihoods back to a posterior without
	// overflowing: P(spam) = 1 / (1 + exp(logHam - logSpam)).
	return 1 / (1 + math.Exp(logHam-logSpam))
}

// tokenize lowercases, strips everything but letters and digits, and drops
// tokens of one or two characters.
func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)

	fields := strings.Fields(cleaned)
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}
