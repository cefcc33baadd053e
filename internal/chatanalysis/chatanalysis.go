// Package chatanalysis provides lightweight mood and topic detection for
// conversational messages. It only runs for chat intents; task intents skip it.
package chatanalysis

import (
	"regexp"
	"strings"
)

// Mood is a coarse emotional read of a message
type Mood string

const (
	MoodHappy    Mood = "happy"
	MoodSad      Mood = "sad"
	MoodTired    Mood = "tired"
	MoodStressed Mood = "stressed"
	MoodAngry    Mood = "angry"
	MoodNeutral  Mood = "neutral"
)

// Topic is a coarse subject classification
type Topic string

const (
	TopicWork    Topic = "work"
	TopicFood    Topic = "food"
	TopicSleep   Topic = "sleep"
	TopicLife    Topic = "life"
	TopicTech    Topic = "tech"
	TopicUnknown Topic = "unknown"
)

// Analysis is the combined mood/topic result
type Analysis struct {
	Mood  Mood
	Topic Topic
}

var moodPatterns = []struct {
	mood Mood
	re   *regexp.Regexp
}{
	{MoodTired, regexp.MustCompile(`tired|exhausted|knackered|drained|worn out`)},
	{MoodSad, regexp.MustCompile(`sad|down|depressed|low`)},
	{MoodAngry, regexp.MustCompile(`angry|annoyed|pissed off|furious|mad`)},
	{MoodStressed, regexp.MustCompile(`stressed|overwhelmed|anxious|on edge`)},
	{MoodHappy, regexp.MustCompile(`happy|great|awesome|amazing|buzzing|fantastic|good day`)},
}

var topicPatterns = []struct {
	topic Topic
	re    *regexp.Regexp
}{
	{TopicWork, regexp.MustCompile(`work|job|shift|office|boss|coworker|colleague`)},
	{TopicFood, regexp.MustCompile(`pizza|food|takeaway|dinner|lunch|breakfast|eat|hungry`)},
	{TopicSleep, regexp.MustCompile(`sleep|bed|nap|tired|insomnia`)},
	{TopicLife, regexp.MustCompile(`life|day|week|everything|stuff|lot going on`)},
	{TopicTech, regexp.MustCompile(`computer|code|coding|programming|game|phone|tech`)},
}

// Analyse detects the mood and topic of a message. Mood precedence follows
// pattern order; the first match wins.
func Analyse(text string) Analysis {
	lower := strings.ToLower(text)

	for _, p := range moodPatterns {
		if p.re.MatchString(lower) {
			return Analysis{Mood: p.mood, Topic: detectTopic(lower)}
		}
	}

	return Analysis{Mood: MoodNeutral, Topic: detectTopic(lower)}
}

func detectTopic(lower string) Topic {
	for _, p := range topicPatterns {
		if p.re.MatchString(lower) {
			return p.topic
		}
	}
	return TopicUnknown
}
