package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/jobsearch/pkg/storage"
)

// ProfileCommand creates the profile command
func ProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Show or edit your job search profile",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the saved profile",
				Action: func(ctx context.Context, c *cli.Command) error {
					return showProfile(ctx, c.String("config"))
				},
			},
			{
				Name:  "set",
				Usage: "Create or update the profile",
				Description: "Unset flags keep their saved value. The desired job title is " +
					"searched for whenever no explicit query is given.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "Your name (2 to 50 characters)",
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Desired job title (2 to 100 characters)",
					},
					&cli.StringFlag{
						Name:  "about",
						Usage: "A few words about yourself",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return setProfile(ctx, c)
				},
			},
			{
				Name:  "delete",
				Usage: "Delete the saved profile",
				Action: func(ctx context.Context, c *cli.Command) error {
					return deleteProfile(ctx, c.String("config"))
				},
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return showProfile(ctx, c.String("config"))
		},
	}
}

func showProfile(ctx context.Context, configPath string) error {
	a, err := openApp(ctx, configPath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.store.Profile.Read(ctx)
	if err != nil {
		return err
	}
	fmt.Print(renderProfile(p))
	return nil
}

func setProfile(ctx context.Context, c *cli.Command) error {
	a, err := openApp(ctx, c.String("config"), false)
	if err != nil {
		return err
	}
	defer a.Close()

	current, err := a.store.Profile.Read(ctx)
	if err != nil {
		return err
	}
	var p storage.Profile
	if current != nil {
		p = *current
	}
	if c.IsSet("name") {
		p.Name = c.String("name")
	}
	if c.IsSet("title") {
		p.DesiredJobTitle = c.String("title")
	}
	if c.IsSet("about") {
		p.AboutMe = c.String("about")
	}

	saved, err := a.store.Profile.Save(ctx, p)
	if err != nil {
		var fe *storage.FieldError
		if errors.As(err, &fe) {
			return fmt.Errorf("%s: %s", fe.Field, fe.Message)
		}
		return err
	}
	fmt.Print(renderProfile(saved))
	return nil
}

func deleteProfile(ctx context.Context, configPath string) error {
	a, err := openApp(ctx, configPath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Profile.Delete(ctx); err != nil {
		return err
	}
	fmt.Println("Profile deleted")
	return nil
}
