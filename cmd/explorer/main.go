// Command explorer is an interactive map session against the record service: tap
// screen points to open attractions, add new ones and review them.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"attraction-map/callout"
	"attraction-map/config"
	"attraction-map/overlay"
	"attraction-map/remote"
	"attraction-map/reviewcache"
	"attraction-map/spatial"
	"attraction-map/utils/logger"

	"go.uber.org/zap"
)

func main() {
	envFile := flag.String("env", "", "optional .env file to load")
	async := flag.Bool("async", false, "do not wait for background work between commands")
	flag.Parse()

	if *envFile != "" {
		config.Load(*envFile)
	} else {
		config.Load()
	}
	cfg, err := config.LoadExplorer()
	if err != nil {
		fmt.Fprintln(os.Stderr, "explorer:", err)
		os.Exit(1)
	}
	log := logger.Must(cfg.LogLevel, cfg.LogFormat)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := &lockedWriter{w: os.Stdout}
	ctrl, view, store, err := wire(cfg, out, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}

	n := ctrl.Hydrate(ctx)
	fmt.Fprintf(out, "loaded %d attractions; type help for commands\n", n)

	s := &session{ctrl: ctrl, view: view, overlay: store, out: out, logger: log, async: *async}
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	for {
		fmt.Fprint(out, "> ")
		select {
		case <-ctx.Done():
			ctrl.Wait()
			return
		case line, ok := <-lines:
			if !ok || !s.exec(ctx, line) {
				ctrl.Wait()
				return
			}
		}
	}
}

func wire(cfg config.Explorer, out *lockedWriter, log *zap.Logger) (*callout.Controller, *spatial.Viewport, *overlay.Store, error) {
	ids, err := overlay.NewIDGenerator(cfg.NodeID)
	if err != nil {
		return nil, nil, nil, err
	}

	client := remote.NewClient(cfg.ServiceURL, &http.Client{Timeout: cfg.HTTPTimeout}, log.Named("remote"))
	store := overlay.NewStore()
	view := spatial.NewViewport(cfg.CenterLat, cfg.CenterLon, cfg.Scale, cfg.Width, cfg.Height)
	resolver := spatial.NewResolver(log.Named("resolver"),
		spatial.NewOverlaySource(store, view),
		spatial.NewFeatureLayerSource(client, view, 1),
	)

	ctrl := callout.New(callout.Deps{
		Resolver:  resolver,
		Overlay:   store,
		Records:   client,
		Reviews:   reviewcache.New(client, log.Named("reviews")),
		Locator:   view,
		IDs:       ids,
		Notifier:  printNotifier{out: out},
		Renderer:  func(v callout.View) { fmt.Fprintln(out, formatView(v)) },
		Logger:    log.Named("callout"),
		Tolerance: cfg.HitTolerance,
		UserID:    cfg.UserID,
	})
	return ctrl, view, store, nil
}
