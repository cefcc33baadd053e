package style

import (
	"math"
	"math/rand"
	"testing"
)

func TestAnalyse_FormalityCues(t *testing.T) {
	cases := []struct {
		text     string
		expected float64
	}{
		{"Would you mind booking me a taxi?", 0.8},
		{"yo mate can you sort me a taxi lol", 0.2},
		{"Book me a taxi for 9am", 0.5},
		{"would you mind, idk, maybe helping", 0.5}, // mixed cues cancel out
	}

	for _, tc := range cases {
		sample := Analyse(tc.text)
		if sample.Formality != tc.expected {
			t.Errorf("Analyse(%q).Formality = %v, expected %v", tc.text, sample.Formality, tc.expected)
		}
	}
}

func TestAnalyse_EmojiAndExclamation(t *testing.T) {
	sample := Analyse("so excited!!! 🎉🎉🎉🎉")

	if sample.ExclamationLevel != 1 {
		t.Errorf("expected exclamation level capped at 1, got %v", sample.ExclamationLevel)
	}
	if sample.EmojiUsage != 1 {
		t.Errorf("expected emoji usage capped at 1, got %v", sample.EmojiUsage)
	}
	if sample.Playfulness != 0.7 {
		t.Errorf("expected playfulness 0.7 for expressive message, got %v", sample.Playfulness)
	}
}

func TestAnalyse_PlainMessage(t *testing.T) {
	sample := Analyse("Remind me to call the dentist tomorrow")

	if sample.EmojiUsage != 0 {
		t.Errorf("expected zero emoji usage, got %v", sample.EmojiUsage)
	}
	if sample.Playfulness != 0.4 {
		t.Errorf("expected baseline playfulness 0.4, got %v", sample.Playfulness)
	}
}

func TestBlend_StaysWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		profile := Profile{
			Formality:        rng.Float64(),
			EmojiUsage:       rng.Float64(),
			ExclamationLevel: rng.Float64(),
			SentenceLength:   rng.Float64(),
			Playfulness:      rng.Float64(),
		}
		sample := Sample{
			Formality:        rng.Float64(),
			EmojiUsage:       rng.Float64(),
			ExclamationLevel: rng.Float64(),
			SentenceLength:   rng.Float64(),
			Playfulness:      rng.Float64(),
		}

		blended := Blend(profile, sample, DefaultAlpha)

		for name, field := range map[string]float64{
			"formality":         blended.Formality,
			"emoji_usage":       blended.EmojiUsage,
			"exclamation_level": blended.ExclamationLevel,
			"sentence_length":   blended.SentenceLength,
			"playfulness":       blended.Playfulness,
		} {
			if field < 0 || field > 1 {
				t.Fatalf("blended %s out of [0,1]: %v", name, field)
			}
		}

		// Strict convex combination: result sits between old and new values.
		lo, hi := profile.Formality, sample.Formality
		if lo > hi {
			lo, hi = hi, lo
		}
		if blended.Formality < lo-1e-12 || blended.Formality > hi+1e-12 {
			t.Fatalf("blended formality %v outside [%v, %v]", blended.Formality, lo, hi)
		}
	}
}

func TestBlend_ConvergesTowardSample(t *testing.T) {
	profile := DefaultProfile(1)
	sample := Sample{Formality: 0.9, EmojiUsage: 0.1, ExclamationLevel: 0, SentenceLength: 1, Playfulness: 0.7}

	for i := 0; i < 200; i++ {
		profile = Blend(profile, sample, DefaultAlpha)
	}

	if math.Abs(profile.Formality-0.9) > 0.001 {
		t.Errorf("formality did not converge: %v", profile.Formality)
	}
	if math.Abs(profile.SentenceLength-1) > 0.001 {
		t.Errorf("sentence length did not converge: %v", profile.SentenceLength)
	}
	if math.Abs(profile.EmojiUsage-0.1) > 0.001 {
		t.Errorf("emoji usage did not converge: %v", profile.EmojiUsage)
	}
}

func TestBlend_FixedPointAtSampleValue(t *testing.T) {
	sample := Sample{Formality: 0.4, EmojiUsage: 0.4, ExclamationLevel: 0.4, SentenceLength: 0.4, Playfulness: 0.4}
	profile := Profile{Formality: 0.4, EmojiUsage: 0.4, ExclamationLevel: 0.4, SentenceLength: 0.4, Playfulness: 0.4}

	blended := Blend(profile, sample, DefaultAlpha)

	if math.Abs(blended.Formality-0.4) > 1e-12 || math.Abs(blended.Playfulness-0.4) > 1e-12 {
		t.Errorf("blend at fixed point moved the profile: %+v", blended)
	}
}
