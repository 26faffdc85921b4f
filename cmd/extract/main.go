// Command extract runs content extraction on local files without the web
// server.
//
//	extract run --profile ml-n3 --out filtered_data.csv pages.csv
//	extract join reference.xlsx pages.csv > filtered_data.csv
//	extract profiles
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/JonMunkholm/ContentExtract/internal/core"
	"github.com/JonMunkholm/ContentExtract/internal/extract"
	"github.com/JonMunkholm/ContentExtract/internal/logging"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func main() {
	// A missing .env is normal for the CLI.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "extract:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	profileFlag := &cli.StringFlag{
		Name:    "profile",
		Aliases: []string{"p"},
		Usage:   "extraction profile",
		EnvVars: []string{"EXTRACT_DEFAULT_PROFILE"},
		Value:   extract.DefaultProfile,
	}
	outFlag := &cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   "output CSV file (default: stdout)",
	}
	workersFlag := &cli.IntFlag{
		Name:    "workers",
		Usage:   "parallel extraction workers",
		EnvVars: []string{"EXTRACT_WORKERS"},
		Value:   4,
	}

	return &cli.App{
		Name:  "extract",
		Usage: "extract landing page fields from CSV/XLSX/XLS exports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "profiles-file",
				Usage:   "YAML file with additional profiles",
				EnvVars: []string{"EXTRACT_PROFILES_FILE"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "warn",
			},
		},
		Before: func(c *cli.Context) error {
			// stdout carries the CSV, so logs go to stderr.
			logging.SetupWriter(os.Stderr, c.String("log-level"), "text")

			if path := c.String("profiles-file"); path != "" {
				names, err := extract.RegisterFile(path)
				if err != nil {
					return err
				}
				slog.Debug("profiles loaded", "path", path, "profiles", names)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "extract fields from every row of one file",
				ArgsUsage: "INPUT",
				Flags:     []cli.Flag{profileFlag, outFlag, workersFlag},
				Action:    runAction,
			},
			{
				Name:      "join",
				Usage:     "extract fields from content rows marked \"Keep - New\" in the reference file",
				ArgsUsage: "REFERENCE CONTENT",
				Flags:     []cli.Flag{profileFlag, outFlag, workersFlag},
				Action:    joinAction,
			},
			{
				Name:   "profiles",
				Usage:  "list registered profiles",
				Flags:  []cli.Flag{profileFlag},
				Action: profilesAction,
			},
		},
	}
}

func runAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("run needs exactly one INPUT file", 2)
	}
	return execute(c, core.ModeSingle, c.Args().Slice())
}

func joinAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("join needs REFERENCE and CONTENT files", 2)
	}
	return execute(c, core.ModeJoin, c.Args().Slice())
}

func execute(c *cli.Context, mode core.Mode, paths []string) error {
	files := make([]core.Upload, 0, len(paths))
	for _, p := range paths {
		up, err := readUpload(p)
		if err != nil {
			return err
		}
		files = append(files, up)
	}

	svc, err := core.NewService(core.ServiceConfig{
		DefaultProfile: c.String("profile"),
		Workers:        c.Int("workers"),
		MaxConcurrent:  1,
	})
	if err != nil {
		return err
	}

	res, err := svc.Run(c.Context, core.RunRequest{Mode: mode, Profile: c.String("profile"), Files: files})
	if err != nil {
		return fmt.Errorf("%s (%w)", core.FormatUserError(err), err)
	}

	if err := writeOutput(c.String("out"), c.App.Writer, res); err != nil {
		return err
	}

	slog.Info("run completed",
		"run_id", res.ID,
		"rows_in", res.Stats.RowsIn,
		"rows_out", res.Stats.RowsOut,
		"misses", res.Stats.Misses,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return nil
}

func readUpload(path string) (core.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Upload{}, fmt.Errorf("read input: %w", err)
	}
	return core.Upload{Name: filepath.Base(path), Data: data}, nil
}

// writeOutput writes the CSV to path, or to stdout when path is empty.
func writeOutput(path string, stdout io.Writer, res *core.RunResult) error {
	if path == "" {
		return core.EncodeCSV(stdout, res.Table)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := core.EncodeCSV(f, res.Table); err != nil {
		f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}

type profileListing struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Merge       string   `yaml:"merge"`
	Default     bool     `yaml:"default,omitempty"`
	Fields      []string `yaml:"fields"`
}

func profilesAction(c *cli.Context) error {
	defaultName := c.String("profile")
	profiles := extract.Profiles()
	out := make([]profileListing, len(profiles))
	for i, p := range profiles {
		out[i] = profileListing{
			Name:        p.Name,
			Description: p.Description,
			Merge:       string(p.Merge),
			Default:     p.Name == defaultName,
			Fields:      p.FieldNames(),
		}
	}

	enc := yaml.NewEncoder(c.App.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}
	return enc.Close()
}
