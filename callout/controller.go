// Package callout decides what the map callout shows for the record the user opened.
//
// Each user action (tap, add, close) takes a new token. Background work carries the
// token it was started with and only touches the visible state while that token is
// still current, so a slow answer for a record the user has left is dropped on arrival.
// Network calls themselves are never cancelled.
package callout

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"attraction-map/metrics"
	"attraction-map/models"
	"attraction-map/remote"
	errs "attraction-map/utils/errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type State int

const (
	Closed State = iota
	Loading
	Populated
	Empty
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Loading:
		return "loading"
	case Populated:
		return "populated"
	case Empty:
		return "empty"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// View is a snapshot of the callout. Record is nil when State is Closed.
type View struct {
	State   State
	Source  models.HitSource
	Record  *models.Record
	Sync    models.SyncState
	Reviews []models.Review
	Summary string
}

// Draft is what the user types when adding a record.
type Draft struct {
	Name         string `validate:"required,max=256"`
	Description  string `validate:"max=4096"`
	Category     string `validate:"max=128"`
	ExternalLink string `validate:"max=2048"`
}

type Resolver interface {
	Resolve(ctx context.Context, pt models.ScreenPoint, tolerance float64) models.HitTestResult
}

type Overlay interface {
	Add(rec models.Record) bool
}

type Records interface {
	Exists(ctx context.Context, id string) bool
	Create(ctx context.Context, rec models.Record) bool
	ListAll(ctx context.Context) []models.Record
}

type Reviews interface {
	Refresh(ctx context.Context, id string) ([]models.Review, error)
	Post(ctx context.Context, id string, input models.ReviewInput) (*models.Review, error)
}

type Locator interface {
	ToLocation(pt models.ScreenPoint) (lat, lon float64)
}

type IDSource interface {
	Next() string
}

// Notifier shows a short transient message to the user.
type Notifier interface {
	Notify(msg string)
}

// Renderer receives every visible state change. It is called with the controller's
// lock held and must not call back into the controller.
type Renderer func(View)

type Deps struct {
	Resolver  Resolver
	Overlay   Overlay
	Records   Records
	Reviews   Reviews
	Locator   Locator
	IDs       IDSource
	Notifier  Notifier
	Renderer  Renderer
	Logger    *zap.Logger
	Tolerance float64
	UserID    string
}

type Controller struct {
	d        Deps
	validate *validator.Validate
	wg       sync.WaitGroup
	// imports collapses concurrent exists/create runs for the same record id.
	imports singleflight.Group

	mu    sync.Mutex
	view  View
	token uint64
	// confirmed holds ids known to exist remotely, so reopening skips the existence check.
	confirmed map[string]bool
}

func New(d Deps) *Controller {
	if d.Renderer == nil {
		d.Renderer = func(View) {}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Controller{
		d:         d,
		validate:  validator.New(),
		confirmed: make(map[string]bool),
	}
}

// Current returns a copy of the visible state.
func (c *Controller) Current() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.clone()
}

// Wait blocks until all background work started so far has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Hydrate loads previously submitted records into the overlay and returns how many
// were added.
func (c *Controller) Hydrate(ctx context.Context) int {
	added := 0
	for _, rec := range c.d.Records.ListAll(ctx) {
		if c.d.Overlay.Add(rec) {
			added++
		}
	}
	c.d.Logger.Info("overlay hydrated", zap.Int("records", added))
	return added
}

// Tap resolves pt and opens whatever record it hits, or closes the callout.
func (c *Controller) Tap(ctx context.Context, pt models.ScreenPoint) {
	token := c.begin()
	c.spawn(func() {
		hit := c.d.Resolver.Resolve(ctx, pt, c.d.Tolerance)
		if !hit.Found() {
			c.closeFor(token)
			return
		}
		c.open(ctx, token, hit.Source, *hit.Record)
	})
}

// Close dismisses the callout and orphans any work still in flight.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token++
	c.setLocked(View{State: Closed})
}

// AddRecord creates a record at pt from draft and stores it remotely. On success the
// record always joins the overlay, but it is only opened if the user has not tapped
// or closed since.
func (c *Controller) AddRecord(ctx context.Context, pt models.ScreenPoint, draft Draft) error {
	draft.Name = strings.TrimSpace(draft.Name)
	draft.Description = strings.TrimSpace(draft.Description)
	draft.Category = strings.TrimSpace(draft.Category)
	draft.ExternalLink = strings.TrimSpace(draft.ExternalLink)
	if draft.Name == "" {
		c.d.Notifier.Notify("Name cannot be empty.")
		return errs.Validation("add_record", fmt.Errorf("name is required"))
	}
	if err := c.validate.Struct(draft); err != nil {
		c.d.Notifier.Notify("Attraction details are too long.")
		return errs.Validation("add_record", err)
	}
	lat, lon := c.d.Locator.ToLocation(pt)
	rec := models.Record{
		ID:           c.d.IDs.Next(),
		Name:         draft.Name,
		Description:  draft.Description,
		Category:     draft.Category,
		ExternalLink: draft.ExternalLink,
		Latitude:     lat,
		Longitude:    lon,
	}

	token := c.begin()
	c.spawn(func() {
		if !c.d.Records.Create(ctx, rec) {
			c.d.Notifier.Notify("Failed to add attraction")
			return
		}
		c.d.Notifier.Notify("Attraction added to DB")
		c.d.Overlay.Add(rec)
		c.markConfirmed(rec.ID)
		c.open(ctx, token, models.SourceOverlay, rec)
	})
	return nil
}

// AddReview submits a review for the open record, then reloads its reviews.
func (c *Controller) AddReview(ctx context.Context, rating int, comment string) error {
	input := models.ReviewInput{Rating: rating, Comment: comment, UserID: c.d.UserID}

	c.mu.Lock()
	rec, token := c.view.Record, c.token
	c.mu.Unlock()
	if rec == nil {
		c.d.Notifier.Notify("Open an attraction first.")
		return errs.Validation("add_review", fmt.Errorf("no record open"))
	}
	if err := remote.ValidateReview(c.validate, rec.ID, input); err != nil {
		c.d.Notifier.Notify("Rating must be an integer between 1 and 5.")
		return err
	}

	id := rec.ID
	c.spawn(func() {
		if _, err := c.d.Reviews.Post(ctx, id, input); err != nil {
			c.d.Logger.Warn("review submission failed", zap.String("record_id", id), zap.Error(err))
			c.d.Notifier.Notify("Failed to add review")
			return
		}
		c.d.Notifier.Notify("Review added")
		if !c.update(token, func(v *View) {
			v.State = Loading
			v.Sync.Reviews = models.ReviewsLoading
			v.Summary = "Loading reviews..."
		}) {
			return
		}
		c.loadReviews(ctx, token, id)
	})
	return nil
}

func (c *Controller) open(ctx context.Context, token uint64, source models.HitSource, rec models.Record) {
	existence := models.ExistenceConfirmed
	if source == models.SourceRemoteFeatureLayer && !c.isConfirmed(rec.ID) {
		existence = models.ExistenceChecking
	}
	if !c.set(token, View{
		State:   Loading,
		Source:  source,
		Record:  &rec,
		Sync:    models.SyncState{Existence: existence, Reviews: models.ReviewsLoading},
		Summary: "Loading reviews...",
	}) {
		return
	}

	if existence == models.ExistenceChecking && !c.ensureRemote(ctx, token, rec) {
		return
	}
	c.loadReviews(ctx, token, rec.ID)
}

// ensureRemote runs exists, then create only if the record is missing. Concurrent
// callers for the same id share one run. The run finishes even when the token goes
// stale so an import is never left half done.
func (c *Controller) ensureRemote(ctx context.Context, token uint64, rec models.Record) bool {
	res, _, shared := c.imports.Do(rec.ID, func() (any, error) {
		if c.isConfirmed(rec.ID) {
			return true, nil
		}
		if c.d.Records.Exists(ctx, rec.ID) {
			c.markConfirmed(rec.ID)
			return true, nil
		}
		c.update(token, func(v *View) { v.Sync.Existence = models.ExistenceMissing })
		if !c.d.Records.Create(ctx, rec) {
			return false, nil
		}
		c.markConfirmed(rec.ID)
		return true, nil
	})
	if shared {
		c.d.Logger.Debug("joined record import", zap.String("record_id", rec.ID))
	}

	if ok, _ := res.(bool); !ok {
		c.d.Logger.Warn("record import failed", zap.String("record_id", rec.ID))
		if c.update(token, func(v *View) {
			v.State = Empty
			v.Sync.Existence = models.ExistenceMissing
			v.Sync.Reviews = models.ReviewsFailed
			v.Summary = models.RatingSummary(nil)
		}) {
			c.d.Notifier.Notify("Failed to insert attraction")
		}
		return false
	}
	c.update(token, func(v *View) { v.Sync.Existence = models.ExistenceConfirmed })
	return true
}

func (c *Controller) loadReviews(ctx context.Context, token uint64, id string) {
	reviews, err := c.d.Reviews.Refresh(ctx, id)
	if err != nil {
		c.d.Logger.Warn("review load failed", zap.String("record_id", id), zap.Error(err))
		if c.update(token, func(v *View) {
			v.State = Empty
			v.Sync.Reviews = models.ReviewsFailed
			v.Reviews = nil
			v.Summary = models.RatingSummary(nil)
		}) {
			c.d.Notifier.Notify("Could not load reviews")
		}
		return
	}
	c.update(token, func(v *View) {
		v.State = Populated
		if len(reviews) == 0 {
			v.State = Empty
		}
		v.Sync.Reviews = models.ReviewsLoaded
		v.Sync.Loaded = reviews
		v.Reviews = reviews
		v.Summary = models.RatingSummary(reviews)
	})
}

func (c *Controller) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token++
	return c.token
}

func (c *Controller) spawn(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// closeFor closes the callout if token is current. Closing a closed callout does nothing.
func (c *Controller) closeFor(token uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.token {
		metrics.StaleResultsTotal.Inc()
		return
	}
	if c.view.State == Closed {
		return
	}
	c.setLocked(View{State: Closed})
}

// set replaces the view if token is current.
func (c *Controller) set(token uint64, v View) bool {
	return c.update(token, func(cur *View) { *cur = v })
}

// update edits the view in place if token is current and reports whether it did.
func (c *Controller) update(token uint64, fn func(*View)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.token {
		metrics.StaleResultsTotal.Inc()
		c.d.Logger.Debug("discarding stale callout result", zap.Uint64("token", token), zap.Uint64("current", c.token))
		return false
	}
	next := c.view.clone()
	fn(&next)
	c.setLocked(next)
	return true
}

func (c *Controller) setLocked(v View) {
	c.view = v
	c.d.Renderer(v.clone())
}

func (c *Controller) markConfirmed(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmed[id] = true
}

func (c *Controller) isConfirmed(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmed[id]
}

func (v View) clone() View {
	out := v
	if v.Record != nil {
		rec := *v.Record
		out.Record = &rec
	}
	out.Reviews = append([]models.Review(nil), v.Reviews...)
	out.Sync.Loaded = append([]models.Review(nil), v.Sync.Loaded...)
	return out
}
