package style

import (
	"regexp"
	"strings"
)

// DefaultAlpha is the exponential blend weight for a single message. It is
// deliberately small so one message cannot swing the profile.
const DefaultAlpha = 0.15

// Profile is the smoothed per-user writing-style signal. All fields are in [0,1].
type Profile struct {
	UserID           int64   `json:"user_id"`
	Formality        float64 `json:"formality"`
	EmojiUsage       float64 `json:"emoji_usage"`
	ExclamationLevel float64 `json:"exclamation_level"`
	SentenceLength   float64 `json:"sentence_length"`
	Playfulness      float64 `json:"playfulness"`
}

// Sample is one message's instantaneous style measurement. Not persisted.
type Sample struct {
	Formality        float64
	EmojiUsage       float64
	ExclamationLevel float64
	SentenceLength   float64
	Playfulness      float64
}

// DefaultProfile returns the profile assumed before any message is seen.
func DefaultProfile(userID int64) Profile {
	return Profile{
		UserID:           userID,
		Formality:        0.5,
		EmojiUsage:       0.3,
		ExclamationLevel: 0.3,
		SentenceLength:   0.5,
		Playfulness:      0.5,
	}
}

var (
	slangRe  = regexp.MustCompile(`(?i)lol|lmao|omg|mate|tbh|idk|hiya|yo`)
	formalRe = regexp.MustCompile(`(?i)would you mind|please could you|if possible|would it be possible`)
)

// Analyse measures the writing style of a single message.
func Analyse(text string) Sample {
	emojiCount := countPictographs(text)
	exclamations := strings.Count(text, "!")
	wordCount := len(strings.Fields(text))

	hasSlang := slangRe.MatchString(text)
	hasFormal := formalRe.MatchString(text)

	formality := 0.5
	if hasFormal && !hasSlang {
		formality = 0.8
	} else if hasSlang && !hasFormal {
		formality = 0.2
	}

	emojiUsage := min1(float64(emojiCount) / 3)
	exclamationLevel := min1(float64(exclamations) / 3)
	sentenceLength := min1(float64(wordCount) / 25)

	playfulness := 0.4
	if emojiUsage > 0.3 || exclamationLevel > 0.3 {
		playfulness = 0.7
	}

	return Sample{
		Formality:        formality,
		EmojiUsage:       emojiUsage,
		ExclamationLevel: exclamationLevel,
		SentenceLength:   sentenceLength,
		Playfulness:      playfulness,
	}
}

// Blend folds a sample into a profile with exponential smoothing. The result
// is a convex combination of the two, so every field stays in [0,1].
func Blend(current Profile, sample Sample, alpha float64) Profile {
	blend := func(oldVal, newVal float64) float64 {
		return oldVal*(1-alpha) + newVal*alpha
	}

	return Profile{
		UserID:           current.UserID,
		Formality:        blend(current.Formality, sample.Formality),
		EmojiUsage:       blend(current.EmojiUsage, sample.EmojiUsage),
		ExclamationLevel: blend(current.ExclamationLevel, sample.ExclamationLevel),
		SentenceLength:   blend(current.SentenceLength, sample.SentenceLength),
		Playfulness:      blend(current.Playfulness, sample.Playfulness),
	}
}

// countPictographs counts emoji-like glyphs. Go's regexp has no
// Extended_Pictographic class, so the main emoji blocks are checked directly.
func countPictographs(text string) int {
	count := 0
	for _, r := range text {
		switch {
		case r >= 0x1F300 && r <= 0x1FAFF: // symbols, emoticons, supplemental
			count++
		case r >= 0x2600 && r <= 0x27BF: // misc symbols and dingbats
			count++
		}
	}
	return count
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
