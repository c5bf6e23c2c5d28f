package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"attraction-map/callout"
	"attraction-map/models"

	"go.uber.org/zap"
)

const helpText = `commands:
  tap X Y                                  open whatever lies under screen point X,Y
  add X Y NAME [| DESCRIPTION | CATEGORY | LINK]
                                           create an attraction at X,Y
  review RATING [COMMENT]                  review the open attraction (1-5)
  close                                    close the callout
  goto LAT LON [SCALE]                     move the map
  list                                     list attractions on the overlay
  show                                     print the callout
  wait                                     wait for background work
  help                                     this text
  quit                                     leave`

type Controller interface {
	Tap(ctx context.Context, pt models.ScreenPoint)
	AddRecord(ctx context.Context, pt models.ScreenPoint, draft callout.Draft) error
	AddReview(ctx context.Context, rating int, comment string) error
	Close()
	Current() callout.View
	Wait()
}

type Mover interface {
	SetViewpoint(lat, lon, scale float64)
	Center() (lat, lon, scale float64)
	ToScreen(lat, lon float64) models.ScreenPoint
}

type Lister interface {
	All() []models.Record
}

// session runs explorer commands against one callout controller.
type session struct {
	ctrl    Controller
	view    Mover
	overlay Lister
	out     io.Writer
	logger  *zap.Logger
	// async leaves background work running between commands.
	async bool
}

// exec runs one command line. It reports false when the session should end.
func (s *session) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "tap":
		var pt models.ScreenPoint
		if pt, err = parsePoint(args); err == nil {
			s.ctrl.Tap(ctx, pt)
		}
	case "add":
		err = s.add(ctx, line)
	case "review":
		err = s.review(ctx, args)
	case "close":
		s.ctrl.Close()
	case "goto":
		err = s.goTo(args)
	case "list":
		s.list()
	case "show":
		fmt.Fprintln(s.out, formatView(s.ctrl.Current()))
	case "wait":
		s.ctrl.Wait()
	case "help", "?":
		fmt.Fprintln(s.out, helpText)
	case "quit", "exit":
		s.ctrl.Wait()
		return false
	default:
		err = fmt.Errorf("unknown command %q, try help", cmd)
	}
	if err != nil {
		fmt.Fprintln(s.out, "error:", err)
		return true
	}
	if !s.async {
		s.ctrl.Wait()
	}
	return true
}

func (s *session) add(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return fmt.Errorf("usage: add X Y NAME [| DESCRIPTION | CATEGORY | LINK]")
	}
	pt, err := parsePoint(fields[1:3])
	if err != nil {
		return err
	}
	parts := strings.Split(strings.Join(fields[3:], " "), "|")
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	return s.ctrl.AddRecord(ctx, pt, callout.Draft{
		Name:         parts[0],
		Description:  parts[1],
		Category:     parts[2],
		ExternalLink: parts[3],
	})
}

func (s *session) review(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: review RATING [COMMENT]")
	}
	rating, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("rating must be an integer between %d and %d", models.MinRating, models.MaxRating)
	}
	return s.ctrl.AddReview(ctx, rating, strings.Join(args[1:], " "))
}

func (s *session) goTo(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("usage: goto LAT LON [SCALE]")
	}
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil || lat < -90 || lat > 90 {
		return fmt.Errorf("invalid latitude %q", args[0])
	}
	lon, err := strconv.ParseFloat(args[1], 64)
	if err != nil || lon < -180 || lon > 180 {
		return fmt.Errorf("invalid longitude %q", args[1])
	}
	scale := 0.0
	if len(args) == 3 {
		if scale, err = strconv.ParseFloat(args[2], 64); err != nil || scale <= 0 {
			return fmt.Errorf("invalid scale %q", args[2])
		}
	}
	s.view.SetViewpoint(lat, lon, scale)
	lat, lon, scale = s.view.Center()
	s.logger.Debug("viewpoint changed", zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Float64("scale", scale))
	fmt.Fprintf(s.out, "view centered at %.5f, %.5f (1:%.0f)\n", lat, lon, scale)
	return nil
}

func (s *session) list() {
	records := s.overlay.All()
	if len(records) == 0 {
		fmt.Fprintln(s.out, "no attractions on the overlay")
		return
	}
	for _, rec := range records {
		pt := s.view.ToScreen(rec.Latitude, rec.Longitude)
		fmt.Fprintf(s.out, "%-24s %-32s (%.5f, %.5f) at screen %.0f,%.0f\n",
			rec.ID, rec.Name, rec.Latitude, rec.Longitude, pt.X, pt.Y)
	}
}

func parsePoint(args []string) (models.ScreenPoint, error) {
	if len(args) < 2 {
		return models.ScreenPoint{}, fmt.Errorf("expected screen coordinates X Y")
	}
	x, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return models.ScreenPoint{}, fmt.Errorf("invalid X %q", args[0])
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return models.ScreenPoint{}, fmt.Errorf("invalid Y %q", args[1])
	}
	return models.ScreenPoint{X: x, Y: y}, nil
}

func formatView(v callout.View) string {
	if v.State == callout.Closed || v.Record == nil {
		return "[closed]"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s (%s) via %s", v.State, v.Record.Name, v.Record.ID, v.Source)
	if v.Record.Category != "" {
		fmt.Fprintf(&b, "\n  category: %s", v.Record.Category)
	}
	if v.Record.Description != "" {
		fmt.Fprintf(&b, "\n  %s", v.Record.Description)
	}
	if v.Record.ExternalLink != "" {
		fmt.Fprintf(&b, "\n  %s", v.Record.ExternalLink)
	}
	fmt.Fprintf(&b, "\n  %s", v.Summary)
	for _, rv := range v.Reviews {
		fmt.Fprintf(&b, "\n  %s %s", models.Stars(rv.Rating), rv.Comment)
	}
	return b.String()
}

// lockedWriter serializes output from the prompt loop and background renders.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

type printNotifier struct {
	out io.Writer
}

func (n printNotifier) Notify(msg string) {
	fmt.Fprintln(n.out, "»", msg)
}
