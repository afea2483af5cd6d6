package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mdouchement/notepad/internal/client"
	"github.com/mdouchement/notepad/internal/notes"
	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfgfile     string
	debug       bool
	title       string
	content     string
	interactive bool
	toS3        bool
	adopt       bool
)

func main() {
	c := &cobra.Command{
		Use:           "notepad",
		Short:         "Local-first notepad with cloud sync",
		Version:       fmt.Sprintf("%s - build %.7s @ %s", version, revision, date),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.PersistentFlags().StringVarP(&cfgfile, "config", "c", client.ConfigFile, "Configuration file")
	c.PersistentFlags().BoolVarP(&debug, "debug", "", false, "Debug logs and raw dumps")

	editCmd.Flags().StringVarP(&title, "title", "t", "", "New title")
	editCmd.Flags().StringVarP(&content, "content", "m", "", "New content")
	editCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Append lines to the content with autosave")
	exportCmd.Flags().BoolVarP(&toS3, "s3", "", false, "Upload the backup on the configured object storage")
	linkCmd.Flags().BoolVarP(&adopt, "adopt", "", false, "Use the sync id of the given URL on this device")

	c.AddCommand(initCmd)
	c.AddCommand(listCmd)
	c.AddCommand(showCmd)
	c.AddCommand(newCmd)
	c.AddCommand(editCmd)
	c.AddCommand(rmCmd)
	c.AddCommand(cloudCmd)
	c.AddCommand(pullCmd)
	c.AddCommand(syncCmd)
	c.AddCommand(watchCmd)
	c.AddCommand(exportCmd)
	c.AddCommand(importCmd)
	c.AddCommand(shareURLCmd)
	c.AddCommand(linkCmd)

	if err := c.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// run opens the application, runs f and closes the application.
func run(f func(ctx context.Context, app *client.App) error) error {
	cfg, err := client.Load(cfgfile)
	if err != nil {
		return err
	}

	app, err := client.Open(cfg, version, debug, os.Stdout)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return f(ctx, app)
}

var (
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Configure the backend",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return client.Init(cfgfile)
		},
	}

	//
	//

	listCmd = &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List notes",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(func(_ context.Context, app *client.App) error {
				return app.List(debug)
			})
		},
	}

	showCmd = &cobra.Command{
		Use:   "show ID",
		Short: "Show a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run(func(_ context.Context, app *client.App) error {
				return app.Show(args[0])
			})
		},
	}

	newCmd = &cobra.Command{
		Use:   "new [TITLE] [CONTENT]",
		Short: "Create a note",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			args = append(args, "", "")
			return run(func(ctx context.Context, app *client.App) error {
				return app.New(ctx, args[0], args[1])
			})
		},
	}

	editCmd = &cobra.Command{
		Use:   "edit ID",
		Short: "Edit a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, app *client.App) error {
				if interactive {
					return app.EditInteractive(ctx, args[0])
				}

				var p notes.Patch
				if cmd.Flags().Changed("title") {
					p = p.Merge(notes.Title(title))
				}
				if cmd.Flags().Changed("content") {
					p = p.Merge(notes.Content(content))
				}
				return app.Edit(ctx, args[0], p)
			})
		},
	}

	rmCmd = &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run(func(ctx context.Context, app *client.App) error {
				return app.Remove(ctx, args[0])
			})
		},
	}

	//
	//

	cloudCmd = &cobra.Command{
		Use:       "cloud [enable|disable|status]",
		Short:     "Manage the cloud sync",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"enable", "disable", "status"},
		RunE: func(_ *cobra.Command, args []string) error {
			action := "status"
			if len(args) == 1 {
				action = args[0]
			}

			return run(func(ctx context.Context, app *client.App) error {
				return app.Cloud(ctx, action)
			})
		},
	}

	pullCmd = &cobra.Command{
		Use:   "pull",
		Short: "Load the notes from the cloud",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(func(ctx context.Context, app *client.App) error {
				return app.Pull(ctx)
			})
		},
	}

	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Push the local notes to the cloud",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(func(ctx context.Context, app *client.App) error {
				return app.Sync(ctx)
			})
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Follow the changes made by other devices",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(func(ctx context.Context, app *client.App) error {
				return app.Watch(ctx, notes.MonitorInterval)
			})
		},
	}

	//
	//

	exportCmd = &cobra.Command{
		Use:   "export [DIRECTORY]",
		Short: "Backup all the notes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			return run(func(ctx context.Context, app *client.App) error {
				return app.Export(ctx, dir, toS3)
			})
		},
	}

	importCmd = &cobra.Command{
		Use:   "import FILENAME",
		Short: "Import a backup, a text or a markdown file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run(func(ctx context.Context, app *client.App) error {
				return app.Import(ctx, args[0])
			})
		},
	}

	//
	//

	shareURLCmd = &cobra.Command{
		Use:   "share-url",
		Short: "Print the URL sharing the notes with another device",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(func(_ context.Context, app *client.App) error {
				return app.ShareURL()
			})
		},
	}

	linkCmd = &cobra.Command{
		Use:   "link URL",
		Short: "Read a sync URL from another device",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run(func(ctx context.Context, app *client.App) error {
				return app.Link(ctx, args[0], adopt)
			})
		},
	}
)
