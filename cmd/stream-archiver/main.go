package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"

	"github.com/r3labs/diff/v3"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alanbriolat/stream-archiver"
	"github.com/alanbriolat/stream-archiver/async"
	"github.com/alanbriolat/stream-archiver/generic"
	"github.com/alanbriolat/stream-archiver/internal/archive"
	"github.com/alanbriolat/stream-archiver/internal/browser"
	"github.com/alanbriolat/stream-archiver/internal/pubsub"
	_ "github.com/alanbriolat/stream-archiver/platforms"
)

func main() {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := config.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = stream_archiver.WithLogger(ctx, logger)

	app := &cli.App{
		Name:      "stream-archiver",
		Usage:     "export a profile's livestream video library",
		ArgsUsage: "[PROFILE_URL]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "user",
				Usage: "profile `NAME` whose videos to export (alternative to a profile URL argument)",
			},
			&cli.StringFlag{
				Name:  "platform",
				Value: "facebook",
				Usage: "platform `NAME` to export from, only meaningful with --user",
			},
			&cli.StringFlag{
				Name:  "target",
				Value: ".",
				Usage: "save videos, ledger and session state to `DIR`",
			},
			&cli.StringFlag{
				Name:  "browser-bin",
				Usage: "browser executable `PATH` (found automatically if empty)",
			},
			&cli.BoolFlag{
				Name:  "headless",
				Usage: "run the browser headless (interactive login is impossible)",
			},
			&cli.IntFlag{
				Name:  "menu-item",
				Value: archive.DefaultConfig.MenuActionIndex,
				Usage: "1-based position `N` of the download action in the item menu",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: archive.DefaultConfig.WaitTimeout,
				Usage: "how long to wait for each UI element",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "disable the download progress bar",
			},
		},
		Action: func(c *cli.Context) error {
			platform, user, err := resolveProfile(c)
			if err != nil {
				return err
			}
			return run(ctx, c, platform, user)
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.Run(os.Args) })

	select {
	case err = <-result:
		if err != nil {
			logger.Fatal(err.Error())
		}
	case <-ctx.Done():
		stop()
		err = <-result
		if err != nil {
			logger.Fatal(err.Error())
		}
	}
}

// resolveProfile turns either a profile URL argument or the --platform/--user
// flags into a platform and user identifier.
func resolveProfile(c *cli.Context) (*stream_archiver.Platform, string, error) {
	if c.Args().Len() > 0 {
		platform, user, err := stream_archiver.DefaultPlatformRegistry.Match(c.Args().First())
		if err != nil {
			return nil, "", fmt.Errorf("unrecognised profile URL: %w", err)
		}
		return platform, user, nil
	}
	platform, err := stream_archiver.DefaultPlatformRegistry.Get(c.String("platform"))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v (have %v)", err, c.String("platform"), stream_archiver.DefaultPlatformRegistry.List())
	}
	user := c.String("user")
	if user == "" {
		return nil, "", errors.New("either a profile URL argument or --user is required")
	}
	return platform, user, nil
}

func run(ctx context.Context, c *cli.Context, platform *stream_archiver.Platform, user string) error {
	logger := stream_archiver.Logger(ctx).Sugar()

	// Fail on an unusable target before a browser window ever opens
	if err := os.MkdirAll(c.String("target"), 0o755); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}

	browserConfig := browser.DefaultConfig
	browserConfig.Bin = c.String("browser-bin")
	browserConfig.Headless = c.Bool("headless")
	session, err := browser.NewSession(ctx, browserConfig)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer session.Close()

	config := archive.DefaultConfig
	config.Browser = session
	config.Platform = platform
	config.User = user
	config.TargetDir = c.String("target")
	config.WaitTimeout = c.Duration("timeout")
	config.MenuActionIndex = c.Int("menu-item")
	archiver, err := archive.New(config)
	if err != nil {
		return err
	}

	showProgress := !c.Bool("no-progress")
	events := pubsub.NewChannel[archive.Event](16)
	var sender pubsub.SenderCloser[archive.Event] = events
	if !showProgress {
		sender = pubsub.NewFilteredSender[archive.Event](events, func(e archive.Event) bool {
			_, isProgress := e.(archive.ItemProgress)
			return !isProgress
		})
	}
	if err := archiver.AddSubscriber(sender, true); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumeEvents(logger, events, showProgress)
	}()

	logger.Infof("Exporting videos of %s from %s into %s", user, platform.Name, config.TargetDir)
	summary, err := archiver.Run(ctx)
	archiver.Close()
	wg.Wait()
	if err != nil {
		return err
	}
	logger.Infof("Finished: %v", summary)
	if err := summary.Err(); err != nil {
		logger.Warnf("Some items failed:\n%v", err)
	}
	return nil
}

func consumeEvents(logger *zap.SugaredLogger, events pubsub.ReceiverCloser[archive.Event], showProgress bool) {
	var bar *progressbar.ProgressBar
	finishBar := func() {
		if bar != nil {
			generic.Unwrap_(bar.Finish())
			bar = nil
		}
	}
	defer finishBar()

	for event := range events.Receive() {
		logger.Debugf("event: %T: %v", event, event.Item())
		switch e := event.(type) {
		case archive.LoginRequired:
			logger.Info("Waiting for login to complete in the browser window...")
		case archive.GridExpanded:
			logger.Infof("Found %d videos", e.ItemCount)
		case archive.ItemStarted:
			if showProgress {
				bar = progressbar.DefaultBytes(1, e.Item().Title)
			}
		case archive.ItemProgress:
			if bar != nil {
				if e.TotalBytes > 0 && bar.GetMax64() != e.TotalBytes {
					bar.ChangeMax64(e.TotalBytes)
				}
				generic.Unwrap_(bar.Set64(e.ReceivedBytes))
			}
		case archive.ItemUpdated:
			changes, err := diff.Diff(e.OldState, e.NewState)
			if err != nil {
				logger.Errorf("failed to diff old and new item state: %v", err)
			} else {
				for _, change := range changes {
					logger.Debugf("%v: %#v -> %#v", change.Path, change.From, change.To)
				}
			}
		case archive.ItemCompleted:
			finishBar()
			logger.Infof("Archived %v", e.Filename)
		case archive.ItemPrivate:
			logger.Infof("Not downloadable: %v", e.Item())
		case archive.ItemSkipped:
			logger.Debugf("Already archived: %v", e.Item())
		case archive.ItemFailed:
			finishBar()
			logger.Warnf("Item failed: %v", e.Err)
		}
	}
}
