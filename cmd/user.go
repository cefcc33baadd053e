package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/avachat/internal/api/users"
	"github.com/avachat/internal/database"
)

// UserCommand returns the user management command
func UserCommand() *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage users",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a user",
				ArgsUsage: "EMAIL DISPLAY_NAME",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "admin",
						Usage: "Grant admin privileges",
					},
				},
				Action: runUserCreate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a user by display name",
				ArgsUsage: "DISPLAY_NAME",
				Action:    runUserDelete,
			},
			{
				Name:      "set-password",
				Usage:     "Set a user's password",
				ArgsUsage: "EMAIL",
				Action:    runUserSetPassword,
			},
		},
	}
}

func runUserCreate(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("expected EMAIL and DISPLAY_NAME arguments")
	}
	email, displayName := c.Args().Get(0), c.Args().Get(1)

	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	db, err := database.NewDB()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	if err := database.EnsureSchema(db); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	user, err := users.NewService(db).Create(email, displayName, password, c.Bool("admin"))
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("Created user %s (id %d)\n", user.DisplayName, user.ID)
	return nil
}

func runUserDelete(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected DISPLAY_NAME argument")
	}
	displayName := c.Args().Get(0)

	db, err := database.NewDB()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := users.NewService(db).Delete(displayName); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	fmt.Printf("Deleted user %s\n", displayName)
	return nil
}

func runUserSetPassword(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected EMAIL argument")
	}
	email := c.Args().Get(0)

	db, err := database.NewDB()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	service := users.NewService(db)
	user, err := service.GetByEmail(email)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("no user with email %s", email)
	}

	password, err := promptPassword("New password: ")
	if err != nil {
		return err
	}
	if err := service.SetPassword(user.ID, password); err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}

	fmt.Println("Password updated")
	return nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}
	return string(raw), nil
}
