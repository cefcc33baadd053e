package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/avachat/internal/chatanalysis"
	"github.com/avachat/internal/nlu"
	"github.com/avachat/internal/respond"
	"github.com/avachat/pkg/models"
)

// GreetHandler answers greetings from the style-aware templates.
type GreetHandler struct{}

func (GreetHandler) CanHandle(intentName string) bool {
	return intentName == "greet"
}

func (GreetHandler) Handle(_ context.Context, _ *nlu.Result, user *models.User, hctx *HandlerContext) (string, error) {
	return respond.Render(respond.Greet, respond.Context{
		UserID:       user.ID,
		DisplayName:  user.DisplayName,
		Style:        hctx.Style,
		MessageCount: hctx.Memory.MessageCount,
	}), nil
}

// ChatHandler covers small talk and mood intents with mood-aware templates.
type ChatHandler struct{}

func (ChatHandler) CanHandle(intentName string) bool {
	switch intentName {
	case "goodbye", "small_talk", "mood_great", "mood_unhappy", "mood_negative", "bot_challenge":
		return true
	}
	return false
}

func (ChatHandler) Handle(_ context.Context, result *nlu.Result, user *models.User, hctx *HandlerContext) (string, error) {
	name := user.DisplayName
	if name == "" {
		name = "there"
	}

	mood := chatanalysis.MoodNeutral
	if hctx.Chat != nil {
		mood = hctx.Chat.Mood
	}

	var reply string
	switch result.Intent.Name {
	case "goodbye":
		reply = fmt.Sprintf("Bye %s, talk to you later!", name)
	case "mood_great":
		reply = fmt.Sprintf("Love that you're feeling good, %s! 🎉", name)
	case "mood_unhappy":
		reply = fmt.Sprintf("Sorry things are a bit rough right now, %s. I'm here if you want to talk.", name)
	case "mood_negative":
		reply = fmt.Sprintf("Sounds like you're really frustrated, %s. Want to vent a bit?", name)
	case "bot_challenge":
		reply = "I'm a local assistant, not a human — but I'm here to help you as best I can. 🤖"
	default: // small_talk
		switch mood {
		case chatanalysis.MoodTired, chatanalysis.MoodStressed:
			reply = fmt.Sprintf("You sound pretty wiped, %s. Make sure you get some rest soon.", name)
		case chatanalysis.MoodHappy:
			reply = fmt.Sprintf("That sounds great, %s 😄 Tell me more!", name)
		default:
			reply = fmt.Sprintf("I'm here and listening, %s. What's on your mind?", name)
		}
	}
	return reply, nil
}

// OrderFoodHandler acknowledges food requests; real delivery integrations
// live behind the generator's ORDER_FOOD tool path.
type OrderFoodHandler struct{}

func (OrderFoodHandler) CanHandle(intentName string) bool {
	return intentName == "order_food"
}

func (OrderFoodHandler) Handle(_ context.Context, result *nlu.Result, _ *models.User, _ *HandlerContext) (string, error) {
	dish := "something tasty"
	for _, e := range result.Entities {
		if e.Name == "dish" && e.Value != "" {
			dish = e.Value
			break
		}
	}
	return fmt.Sprintf("You're asking about food — e.g. %q. I don't talk to delivery apps yet, but that's the plan. 🍕", dish), nil
}

// BookTaxiHandler acknowledges ride requests.
type BookTaxiHandler struct{}

func (BookTaxiHandler) CanHandle(intentName string) bool {
	return intentName == "book_taxi"
}

func (BookTaxiHandler) Handle(_ context.Context, result *nlu.Result, _ *models.User, _ *HandlerContext) (string, error) {
	return fmt.Sprintf("You want a ride. In future I'll actually call taxi APIs here.\nFor now I just know: %q. 🚗", result.Text), nil
}

// DocumentQuestionHandler acknowledges document questions.
type DocumentQuestionHandler struct{}

func (DocumentQuestionHandler) CanHandle(intentName string) bool {
	return intentName == "document_question"
}

func (DocumentQuestionHandler) Handle(_ context.Context, _ *nlu.Result, _ *models.User, _ *HandlerContext) (string, error) {
	return "You're asking about a document. Once I can read files, I'll help with that. 📄", nil
}

func entityValue(result *nlu.Result, name string) string {
	for _, e := range result.Entities {
		if e.Name == name {
			return strings.TrimSpace(e.Value)
		}
	}
	return ""
}
