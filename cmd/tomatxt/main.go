package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/tomatxt/internal"
	"github.com/starford/tomatxt/internal/checkbox"
	pkgconfig "github.com/starford/tomatxt/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if dir := cmd.String("notes-dir"); dir != "" {
		cfg.Notes.Dir = dir
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

// withCore opens the note service for a one-shot command. Logs go to
// stderr so stdout stays machine-readable.
func withCore(ctx context.Context, cmd *cli.Command, fn func(*internal.Core) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cfg.App.NewLogger(os.Stderr)
	c, err := internal.OpenCore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.Args().First()
	if v == "" {
		return "", fmt.Errorf("missing argument: %s", name)
	}
	return v, nil
}

func noteFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Note title"},
		&cli.StringFlag{Name: "content", Aliases: []string{"m"}, Usage: "Note body"},
	}
}

func noteCommand() *cli.Command {
	return &cli.Command{
		Name:  "note",
		Usage: "Manage notes",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a root note",
				Flags: noteFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withCore(ctx, cmd, func(c *internal.Core) error {
						n, err := c.Service.Create(ctx, cmd.String("title"), cmd.String("content"))
						if err != nil {
							return err
						}
						return printJSON(os.Stdout, n)
					})
				},
			},
			{
				Name:      "child",
				Usage:     "Create a note nested under another note",
				ArgsUsage: "<parent-id>",
				Flags:     noteFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					parentID, err := requireArg(cmd, "parent-id")
					if err != nil {
						return err
					}
					return withCore(ctx, cmd, func(c *internal.Core) error {
						n, err := c.Service.CreateChild(ctx, parentID, cmd.String("title"), cmd.String("content"))
						if err != nil {
							return err
						}
						return printJSON(os.Stdout, n)
					})
				},
			},
			{
				Name:  "list",
				Usage: "List root notes",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withCore(ctx, cmd, func(c *internal.Core) error {
						items, err := c.Service.List(ctx)
						if err != nil {
							return err
						}
						return printJSON(os.Stdout, items)
					})
				},
			},
			{
				Name:      "show",
				Usage:     "Show a root note with its nested notes",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireArg(cmd, "id")
					if err != nil {
						return err
					}
					return withCore(ctx, cmd, func(c *internal.Core) error {
						n, err := c.Service.Get(ctx, id)
						if err != nil {
							return err
						}
						return printJSON(os.Stdout, n)
					})
				},
			},
			{
				Name:      "update",
				Usage:     "Replace the title and body of a note",
				ArgsUsage: "<id>",
				Flags:     noteFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireArg(cmd, "id")
					if err != nil {
						return err
					}
					return withCore(ctx, cmd, func(c *internal.Core) error {
						n, err := c.Service.Update(ctx, id, cmd.String("title"), cmd.String("content"))
						if err != nil {
							return err
						}
						return printJSON(os.Stdout, n)
					})
				},
			},
			{
				Name:      "task",
				Usage:     "Set the task flags of a note",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "task", Usage: "Mark the note as a task", Value: true},
					&cli.BoolFlag{Name: "done", Usage: "Mark the task as done"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireArg(cmd, "id")
					if err != nil {
						return err
					}
					return withCore(ctx, cmd, func(c *internal.Core) error {
						n, err := c.Service.SetTask(ctx, id, cmd.Bool("task"), cmd.Bool("done"))
						if err != nil {
							return err
						}
						return printJSON(os.Stdout, n)
					})
				},
			},
			{
				Name:      "pomodoro",
				Usage:     "Record a finished pomodoro on a note",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireArg(cmd, "id")
					if err != nil {
						return err
					}
					return withCore(ctx, cmd, func(c *internal.Core) error {
						n, err := c.Service.IncrementPomodoro(ctx, id)
						if err != nil {
							return err
						}
						return printJSON(os.Stdout, n)
					})
				},
			},
			{
				Name:      "check",
				Usage:     "Check or uncheck a checkbox of a note by its text",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "text", Usage: "Checkbox text", Required: true},
					&cli.BoolFlag{Name: "undo", Usage: "Uncheck instead of check"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireArg(cmd, "id")
					if err != nil {
						return err
					}
					return withCore(ctx, cmd, func(c *internal.Core) error {
						n, err := c.Service.UpdateCheckbox(ctx, id, cmd.String("text"), !cmd.Bool("undo"))
						if err != nil {
							return err
						}
						return printJSON(os.Stdout, n)
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a note and everything nested under it",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireArg(cmd, "id")
					if err != nil {
						return err
					}
					return withCore(ctx, cmd, func(c *internal.Core) error {
						return c.Service.Delete(ctx, id)
					})
				},
			},
		},
	}
}

func checkboxCommand() *cli.Command {
	return &cli.Command{
		Name:  "checkbox",
		Usage: "Work with checkbox syntax",
		Commands: []*cli.Command{
			{
				Name:      "parse",
				Usage:     "Print the checkboxes found in a file, or stdin when no file is given",
				ArgsUsage: "[file]",
				Action: func(_ context.Context, cmd *cli.Command) error {
					var r io.Reader = os.Stdin
					if path := cmd.Args().First(); path != "" {
						f, err := os.Open(path)
						if err != nil {
							return err
						}
						defer f.Close()
						r = f
					}
					data, err := io.ReadAll(r)
					if err != nil {
						return err
					}
					boxes := checkbox.Parse(string(data))
					if boxes == nil {
						boxes = []checkbox.Checkbox{}
					}
					return printJSON(os.Stdout, boxes)
				},
			},
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "tomatxt",
		Usage:  "Plain-text notes with checkboxes, nesting and a pomodoro timer",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "notes-dir",
				Usage:   "Override the notes directory",
				Sources: cli.EnvVars("TOMATXT_NOTES_DIR"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, file watcher and pomodoro timer",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve note tools over MCP stdio",
				Action: serveMCP,
			},
			noteCommand(),
			checkboxCommand(),
			{
				Name:  "reload",
				Usage: "Re-read every note file and rebuild the search index",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withCore(ctx, cmd, func(c *internal.Core) error {
						notes, err := c.Service.ReloadAll(ctx)
						if err != nil {
							return err
						}
						_, err = fmt.Fprintf(os.Stdout, "reloaded %d notes from %s\n", len(notes), c.Dir)
						return err
					})
				},
			},
			{
				Name:  "index",
				Usage: "Maintain the search index",
				Commands: []*cli.Command{
					{
						Name:  "sync",
						Usage: "Update the index for changed note files only",
						Action: func(_ context.Context, cmd *cli.Command) error {
							cfg, err := loadConfig(cmd)
							if err != nil {
								return err
							}
							return internal.SyncIndex(cfg, cfg.App.NewLogger(os.Stderr))
						},
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
