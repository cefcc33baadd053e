package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avachat/internal/api/users"
	"github.com/avachat/internal/nlu"
	"github.com/avachat/pkg/models"
)

// AccountHandler performs admin account-control intents. All of these are in
// the high-risk set, so they arrive here only above the confidence threshold
// or after an explicit clarification confirm.
type AccountHandler struct {
	users *users.Service
}

// NewAccountHandler wires the handler to the user service.
func NewAccountHandler(userService *users.Service) *AccountHandler {
	return &AccountHandler{users: userService}
}

func (*AccountHandler) CanHandle(intentName string) bool {
	switch intentName {
	case "create_user", "delete_user", "modify_user", "change_admin_password":
		return true
	}
	return false
}

func (h *AccountHandler) Handle(ctx context.Context, result *nlu.Result, user *models.User, hctx *HandlerContext) (string, error) {
	if !user.IsAdmin {
		return "Account control commands are only available to an admin. I can't do that for you. 🔒", nil
	}

	switch result.Intent.Name {
	case "create_user":
		return h.createUser(result, hctx)
	case "delete_user":
		return h.deleteUser(result, hctx)
	case "modify_user":
		return h.modifyUser(result)
	case "change_admin_password":
		return h.changeAdminPassword(result, user, hctx)
	default:
		return "I recognised this as an account-control command, but I'm not sure what exactly you wanted. 🤔", nil
	}
}

func (h *AccountHandler) createUser(result *nlu.Result, hctx *HandlerContext) (string, error) {
	displayName := entityValue(result, "user_identifier")
	if displayName == "" {
		return "You asked to create a user, but I didn't catch a name. Please include something like 'create a new user Example User'.", nil
	}

	if hctx.Canceled != nil && hctx.Canceled() {
		return "", nil
	}

	email := strings.ToLower(strings.ReplaceAll(displayName, " ", ".")) + "@ava.local"
	created, err := h.users.Create(email, displayName, randomInitialPassword(), false)
	if err != nil {
		return fmt.Sprintf("I couldn't create the user %q: %v", displayName, err), nil
	}

	log.Info().Int64("user_id", created.ID).Str("display_name", displayName).Msg("created user via chat")
	return fmt.Sprintf("Done — I've created the user %q. They'll need a password set before logging in. 👤", displayName), nil
}

func (h *AccountHandler) deleteUser(result *nlu.Result, hctx *HandlerContext) (string, error) {
	displayName := entityValue(result, "user_identifier")
	if displayName == "" {
		return "You asked me to remove a user, but I didn't catch which one. Please say something like 'remove the user exampleuser'.", nil
	}

	if hctx.Canceled != nil && hctx.Canceled() {
		return "", nil
	}

	if err := h.users.Delete(displayName); err != nil {
		return fmt.Sprintf("I couldn't remove %q: %v", displayName, err), nil
	}
	return fmt.Sprintf("I've removed the user %q. 🗑️", displayName), nil
}

func (h *AccountHandler) modifyUser(result *nlu.Result) (string, error) {
	identifier := entityValue(result, "user_identifier")
	if identifier == "" {
		return "You asked me to modify a user, but I didn't catch which user. Please include their name like 'reset the password for exampleuser'.", nil
	}
	return fmt.Sprintf("To reset the password for %q, tell me the new password in the same message — e.g. 'set %s's password to hunter2'.", identifier, identifier), nil
}

func (h *AccountHandler) changeAdminPassword(result *nlu.Result, user *models.User, hctx *HandlerContext) (string, error) {
	password := entityValue(result, "target_password")
	if password == "" {
		return "You asked me to change the admin password, but I didn't catch the new password. Please say something like 'change the password to myNewSecret123'.", nil
	}

	if hctx.Canceled != nil && hctx.Canceled() {
		return "", nil
	}

	if err := h.users.SetPassword(user.ID, password); err != nil {
		return "", fmt.Errorf("failed to change admin password: %w", err)
	}
	return "Your admin password has been changed. Use it the next time you log in. 🔐", nil
}

// randomInitialPassword generates an unguessable placeholder; the account is
// unusable until an admin sets a real password.
func randomInitialPassword() string {
	return uuid.NewString()
}
