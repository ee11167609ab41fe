package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zulandar/bikereg/internal/db"
	"github.com/zulandar/bikereg/internal/keyboard"
	"github.com/zulandar/bikereg/internal/registry"
	"github.com/zulandar/bikereg/internal/scan"
)

func newScanCmd() *cobra.Command {
	var (
		configPath string
		useCamera  bool
		images     []string
		once       bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan engine numbers at a terminal kiosk",
		Long: "Listens for a keystroke-wedge barcode scanner on the terminal (or decodes\n" +
			"camera frames with --camera) and reports each engine number and whether\n" +
			"it is already registered.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, configPath, useCamera || len(images) > 0, images, once)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&useCamera, "camera", false, "scan with the configured camera instead of the external scanner")
	cmd.Flags().StringSliceVar(&images, "image", nil, "decode these images as camera frames (implies --camera)")
	cmd.Flags().BoolVar(&once, "once", false, "exit after the first engine number")
	return cmd
}

// scanLines writes kiosk output, switching to CRLF while the terminal is in
// raw mode.
type scanLines struct {
	out io.Writer
	nl  string
}

func (l scanLines) printf(format string, args ...any) {
	fmt.Fprintf(l.out, format, args...)
	io.WriteString(l.out, l.nl)
}

func runScan(cmd *cobra.Command, configPath string, useCamera bool, images []string, once bool) error {
	cfg, gormDB, err := connectFromConfig(cmd, configPath)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	reg, err := newRegistry(cfg, gormDB)
	if err != nil {
		return err
	}
	defer reg.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	resolved := make(chan string, 1)
	statuses := make(chan string, 16)
	opts := scan.Options{
		StaleAfter:   cfg.Scanner.StaleAfter(),
		DisplayDelay: cfg.Scanner.DisplayDelay(),
		OnChange: func(st scan.State) {
			if st.Success && st.Value != "" {
				select {
				case resolved <- st.Value:
				default:
				}
			}
			if st.Status != "" && !st.Success {
				select {
				case statuses <- st.Status:
				default:
				}
			}
		},
	}

	lines := scanLines{out: cmd.OutOrStdout(), nl: "\n"}

	if useCamera {
		cam, err := buildCamera(cfg.Scanner, images)
		if err != nil {
			return err
		}
		dec, err := buildDecoder(cfg.Scanner)
		if err != nil {
			return err
		}
		opts.Camera, opts.Decoder = cam, dec
		rec, err := scan.New(opts)
		if err != nil {
			return err
		}
		defer rec.Teardown()
		return scanWithCamera(ctx, rec, reg, lines, resolved, statuses, once)
	}

	feed := scan.NewKeyFeed()
	opts.Keys = feed
	rec, err := scan.New(opts)
	if err != nil {
		return err
	}
	defer rec.Teardown()

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		restore, err := keyboard.MakeRaw(f)
		if err != nil {
			return err
		}
		defer restore()
		lines.nl = "\r\n"
	}
	return scanWithKeyboard(ctx, rec, reg, feed, in, lines, resolved, once)
}

func scanWithCamera(ctx context.Context, rec *scan.Reconciler, reg *registry.Registry, lines scanLines, resolved <-chan string, statuses <-chan string, once bool) error {
	for {
		if err := rec.EnterCameraMode(ctx); err != nil {
			return err
		}
		lines.printf("%s", scan.StatusWaitingCamera)
		if err := awaitCameraScan(ctx, rec, reg, lines, resolved, statuses); err != nil {
			return err
		}
		if once || ctx.Err() != nil {
			return nil
		}
		if err := rec.ResetScan(); err != nil {
			return err
		}
	}
}

// awaitCameraScan waits for the active camera to produce an engine number.
// A stream that ends without one is an error.
func awaitCameraScan(ctx context.Context, rec *scan.Reconciler, reg *registry.Registry, lines scanLines, resolved <-chan string, statuses <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case status := <-statuses:
			if st := rec.State(); st.Mode == scan.Idle && st.Value == "" {
				return fmt.Errorf("camera: %s", status)
			}
		case v := <-resolved:
			reportEngine(ctx, reg, lines, v)
			return nil
		}
	}
}

// kioskKeys publishes terminal keys and, after each Enter, reports a
// resolved engine number and re-arms the scanner before reading on, so keys
// of the next scan are never lost to a session still showing the last one.
type kioskKeys struct {
	feed     *scan.KeyFeed
	resolved <-chan string
	handle   func(engine string)
}

func (k kioskKeys) Publish(ev scan.KeyEvent) int {
	n := k.feed.Publish(ev)
	if ev.Key == scan.KeyEnter {
		select {
		case v := <-k.resolved:
			k.handle(v)
		default:
		}
	}
	return n
}

func scanWithKeyboard(ctx context.Context, rec *scan.Reconciler, reg *registry.Registry, feed *scan.KeyFeed, in io.Reader, lines scanLines, resolved <-chan string, once bool) error {
	if err := rec.EnterExternalListeningMode(); err != nil {
		return err
	}
	lines.printf("%s (Ctrl-C to quit)", scan.StatusWaitingExternal)

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	var resetErr error
	keys := kioskKeys{feed: feed, resolved: resolved, handle: func(engine string) {
		reportEngine(ctx, reg, lines, engine)
		if once {
			stop()
			return
		}
		if err := rec.ResetScan(); err != nil {
			resetErr = err
			stop()
		}
	}}

	err := keyboard.Run(ctx, in, keys)
	if resetErr != nil {
		return resetErr
	}
	if errors.Is(err, keyboard.ErrInterrupted) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func reportEngine(ctx context.Context, reg *registry.Registry, lines scanLines, engine string) {
	exists, err := reg.EngineExists(ctx, engine)
	switch {
	case err != nil:
		lines.printf("Engine number: %s (registration check failed: %v)", engine, err)
	case exists:
		lines.printf("Engine number: %s (already registered)", engine)
	default:
		lines.printf("Engine number: %s (not registered)", engine)
	}
}
