// Package respond renders Ava's scripted replies, shaded by the user's
// style profile so the tone drifts with theirs.
package respond

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/avachat/internal/style"
)

// Context carries everything a template can draw on.
type Context struct {
	UserID       int64
	DisplayName  string
	Style        style.Profile
	MessageCount int

	// Clarification extras
	IntentFriendlyName string
	IntentConfidence   float64
}

// Label names a scripted reply.
type Label string

const (
	Greet          Label = "greet"
	ClarifyLowConf Label = "clarify_low_conf"
	ClarifyRetry   Label = "clarify_retry"
	ClarifyDropped Label = "clarify_dropped"
	ClarifyNoMatch Label = "clarify_no_match"
	ClarifyExpired Label = "clarify_expired"
)

// Render produces the reply for a label.
func Render(label Label, ctx Context) string {
	switch label {
	case Greet:
		return greeting(ctx)
	case ClarifyLowConf:
		return clarifyLowConf(ctx)
	case ClarifyRetry:
		return `Sorry, I didn't quite get that. Please reply with "yes", "no", or "never mind".`
	case ClarifyDropped:
		return "No problem, we can drop that one. What next?"
	case ClarifyNoMatch:
		return "Got it. Let's start over — what would you like me to do?"
	case ClarifyExpired:
		return "That was a while ago, so I've let it go. What would you like to do now?"
	default:
		return "Okay 🙂"
	}
}

// FriendlyIntentName turns a raw intent label into something speakable.
func FriendlyIntentName(intentName string) string {
	if intentName == "" {
		return "do something I know"
	}
	switch intentName {
	case "greet":
		return "say hi"
	case "small_talk":
		return "just chat"
	case "order_food":
		return "order food"
	case "book_taxi":
		return "book a ride"
	case "document_question":
		return "help with a document"
	default:
		return strings.ReplaceAll(intentName, "_", " ")
	}
}

func timeOfDay() string {
	hour := time.Now().Hour()
	switch {
	case hour < 12:
		return "morning"
	case hour < 17:
		return "afternoon"
	case hour < 22:
		return "evening"
	default:
		return "late"
	}
}

var casualOpeners = []string{"Hey", "Yo", "Hiya", "Heya"}

func greeting(ctx Context) string {
	casual := ctx.Style.Formality < 0.4
	emojiFriendly := ctx.Style.EmojiUsage > 0.3
	likesShort := ctx.Style.SentenceLength < 0.4

	var opener string
	if casual {
		opener = casualOpeners[rand.Intn(len(casualOpeners))]
	} else {
		switch timeOfDay() {
		case "morning":
			opener = "Good morning"
		case "evening":
			opener = "Good evening"
		default:
			opener = "Hello"
		}
	}

	addressed := ""
	if ctx.DisplayName != "" {
		addressed = " " + ctx.DisplayName
	}

	var tail string
	switch {
	case ctx.MessageCount == 0 && casual:
		tail = ", I'm Ava. What can I do for you?"
	case ctx.MessageCount == 0:
		tail = ", I'm Ava. How can I help today?"
	case likesShort:
		tail = ", what's up?"
	default:
		tail = ", what can I do for you?"
	}

	if emojiFriendly {
		tail += " 😄"
	}

	return opener + addressed + tail
}

func clarifyLowConf(ctx Context) string {
	friendly := ctx.IntentFriendlyName
	if friendly == "" {
		friendly = "do something"
	}
	confPercent := fmt.Sprintf("%.1f", ctx.IntentConfidence*100)

	return fmt.Sprintf(
		"I'm not totally sure what you meant.\nDid you want me to **%s**?\n(I'm about %s%% confident — reply with \"yes\", \"no\", or \"never mind\")",
		friendly, confPercent,
	)
}
