package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/himanishpuri/acousticdup/pkg/acousticdup"
	"github.com/himanishpuri/acousticdup/pkg/acousticdup/fpcalc"
	"github.com/himanishpuri/acousticdup/pkg/utils"
)

var (
	errImportArgs  = errors.New("expected arguments: <song-id> <file>")
	errCompareArgs = errors.New("expected arguments: <song-id> <song-id>")
	errSongIDArg   = errors.New("expected exactly one argument: song id")
)

func parseSongID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid song id %q", s)
	}
	return id, nil
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Fingerprint an audio file with fpcalc and store it",
		ArgsUsage: "<song-id> <file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "raw",
				Usage: "Read saved `fpcalc -raw` output from <file> (- for stdin) instead of audio",
			},
			&cli.FloatFlag{
				Name:  "duration",
				Usage: "Song duration in seconds, overriding the one in the fpcalc output",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 2 {
				return fmt.Errorf("%w: got %d", errImportArgs, cmd.NArg())
			}
			songID, err := parseSongID(cmd.Args().Get(0))
			if err != nil {
				return err
			}
			path := cmd.Args().Get(1)

			svc, _, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			if !cmd.Bool("raw") {
				rec, err := svc.ImportFile(ctx, songID, path)
				if err != nil {
					return err
				}
				fmt.Printf("Imported song %d: %d words, %s\n", songID, len(rec.Fingerprint), formatSeconds(rec.Duration))
				return nil
			}

			res, err := readRaw(path)
			if err != nil {
				return err
			}
			if cmd.IsSet("duration") {
				res.Duration = cmd.Float("duration")
			}
			if err := svc.ImportFingerprint(ctx, songID, res.Fingerprint, res.Duration); err != nil {
				return err
			}
			fmt.Printf("Imported song %d: %d words, %s\n", songID, len(res.Fingerprint), formatSeconds(res.Duration))
			return nil
		},
	}
}

func readRaw(path string) (fpcalc.Result, error) {
	if path == "-" {
		return fpcalc.Parse(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return fpcalc.Result{}, err
	}
	defer f.Close()
	return fpcalc.Parse(f)
}

func findDupsCommand() *cli.Command {
	return &cli.Command{
		Name:  "find-dups",
		Usage: "Compare songs with the ones before them and store their similarities",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "from",
				Usage: "First song compared with every earlier song; 0 resumes, negative steps back",
			},
			&cli.Int64SliceFlag{
				Name:    "song",
				Aliases: []string{"s"},
				Usage:   "Only recompute the similarities of this song (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Do not draw a progress bar",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, _, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			opts := acousticdup.FindOptions{
				FromSongID: cmd.Int64("from"),
				Songs:      cmd.Int64Slice("song"),
			}

			var bar *progressBar
			if !cmd.Bool("no-progress") {
				bar = newProgressBar()
				opts.Progress = bar.update
			}

			report, err := svc.FindDuplicates(ctx, opts)
			if bar != nil {
				bar.finish(err == nil)
			}
			if err != nil {
				return err
			}

			printReport(report)
			return nil
		},
	}
}

// progressBar draws FindDuplicates progress. The bar is created on the first
// update, once the number of songs is known.
type progressBar struct {
	p    *mpb.Progress
	bar  *mpb.Bar
	last time.Time
}

func newProgressBar() *progressBar {
	return &progressBar{
		p:    mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr)),
		last: time.Now(),
	}
}

func (b *progressBar) update(p acousticdup.Progress) {
	if b.bar == nil {
		b.bar = b.p.AddBar(int64(p.Total),
			mpb.PrependDecorators(
				decor.Name("Comparing: "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
				decor.EwmaETA(decor.ET_STYLE_GO, 60),
			),
		)
	}
	now := time.Now()
	b.bar.EwmaIncrement(now.Sub(b.last))
	b.last = now
}

func (b *progressBar) finish(ok bool) {
	if b.bar != nil {
		if ok {
			b.bar.SetTotal(-1, true)
		} else {
			b.bar.Abort(false)
		}
	}
	b.p.Wait()
}

func compareCommand() *cli.Command {
	return &cli.Command{
		Name:      "compare",
		Usage:     "Align two stored songs",
		ArgsUsage: "<song-id> <song-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Print the similarity at every offset",
			},
			&cli.BoolFlag{
				Name:  "store",
				Usage: "Store the result as a similarity",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 2 {
				return fmt.Errorf("%w: got %d", errCompareArgs, cmd.NArg())
			}
			id1, err := parseSongID(cmd.Args().Get(0))
			if err != nil {
				return err
			}
			id2, err := parseSongID(cmd.Args().Get(1))
			if err != nil {
				return err
			}

			svc, _, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			cmp, err := svc.CompareSongs(ctx, id1, id2, acousticdup.CompareOptions{
				Verbose: cmd.Bool("verbose"),
				Store:   cmd.Bool("store"),
			})
			if err != nil {
				return err
			}
			printComparison(cmp)
			return nil
		},
	}
}

func similarCommand() *cli.Command {
	return &cli.Command{
		Name:      "similar",
		Usage:     "List the stored similarities of a song",
		ArgsUsage: "<song-id>",
		Flags: []cli.Flag{
			&cli.FloatFlag{
				Name:  "min",
				Usage: "Minimum similarity",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("%w: got %d", errSongIDArg, cmd.NArg())
			}
			songID, err := parseSongID(cmd.Args().First())
			if err != nil {
				return err
			}

			svc, cfg, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			sims, err := svc.SimilarSongs(songID, cmd.Float("min"))
			if err != nil {
				return err
			}
			printSimilarities(songID, sims, cfg.MatchThreshold)
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Remove a song's fingerprint and similarities",
		ArgsUsage: "<song-id>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("%w: got %d", errSongIDArg, cmd.NArg())
			}
			songID, err := parseSongID(cmd.Args().First())
			if err != nil {
				return err
			}

			svc, _, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.DeleteSong(songID); err != nil {
				return err
			}
			fmt.Printf("Deleted song %d\n", songID)
			return nil
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show database statistics and recent runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "runs",
				Usage: "Number of recent runs to list",
				Value: 5,
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			svc, _, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			st, err := svc.Stats()
			if err != nil {
				return err
			}
			runs, err := svc.Runs(cmd.Int("runs"))
			if err != nil {
				return err
			}
			printStats(st, runs)
			return nil
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Commands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "Write the effective configuration as YAML",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return fmt.Errorf("expected exactly one argument: file, got %d", cmd.NArg())
					}
					path := cmd.Args().First()
					if utils.FileExists(path) && !cmd.Bool("force") {
						return fmt.Errorf("%s already exists, use --force to overwrite", path)
					}

					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					if err := utils.EnsureParentDir(path); err != nil {
						return err
					}
					if err := cfg.Write(path); err != nil {
						return err
					}
					fmt.Printf("Wrote %s\n", path)
					return nil
				},
			},
		},
	}
}
