package callout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"attraction-map/models"
	"attraction-map/overlay"
	"attraction-map/reviewcache"
	errs "attraction-map/utils/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeResolver struct {
	calls atomic.Int32
	hits  map[models.ScreenPoint]models.HitTestResult
}

func (f *fakeResolver) Resolve(_ context.Context, pt models.ScreenPoint, _ float64) models.HitTestResult {
	f.calls.Add(1)
	if h, ok := f.hits[pt]; ok {
		return h
	}
	return models.HitTestResult{Source: models.SourceNone}
}

// fakeService stands in for the record service: records, reviews and call counts.
type fakeService struct {
	mu         sync.Mutex
	records    map[string]models.Record
	reviews    map[string][]models.Review
	gates      map[string]chan struct{}
	started    chan string
	failCreate bool
	// createDelay and createGate hold Create before it touches the store.
	createDelay time.Duration
	createGate  chan struct{}
	// rejectDups makes a second create for a stored id fail, like a 409.
	rejectDups   bool
	existsCalls  int
	creates      map[string]int
	dupCreates   int
	fetches      int
	submits      int
	nextReviewID int
}

func newFakeService() *fakeService {
	return &fakeService{
		records: make(map[string]models.Record),
		reviews: make(map[string][]models.Review),
		gates:   make(map[string]chan struct{}),
		creates: make(map[string]int),
		started: make(chan string, 16),
	}
}

func (f *fakeService) Exists(_ context.Context, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls++
	_, ok := f.records[id]
	return ok
}

func (f *fakeService) Create(_ context.Context, rec models.Record) bool {
	f.mu.Lock()
	delay, gate := f.createDelay, f.createGate
	f.mu.Unlock()
	time.Sleep(delay)
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return false
	}
	f.creates[rec.ID]++
	if _, ok := f.records[rec.ID]; ok {
		f.dupCreates++
		if f.rejectDups {
			return false
		}
	}
	f.records[rec.ID] = rec
	return true
}

func (f *fakeService) ListAll(context.Context) []models.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Record
	for _, r := range f.records {
		out = append(out, r)
	}
	return out
}

func (f *fakeService) FetchReviews(_ context.Context, id string) ([]models.Review, error) {
	f.mu.Lock()
	f.fetches++
	snap := append([]models.Review{}, f.reviews[id]...)
	gate := f.gates[id]
	f.mu.Unlock()

	f.started <- id
	if gate != nil {
		<-gate
	}
	return snap, nil
}

func (f *fakeService) SubmitReview(_ context.Context, id string, in models.ReviewInput) *models.Review {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	f.nextReviewID++
	rv := models.Review{ReviewID: fmt.Sprintf("rv-%d", f.nextReviewID), Rating: in.Rating, Comment: in.Comment, RecordID: id}
	f.reviews[id] = append(f.reviews[id], rv)
	return &rv
}

func (f *fakeService) gate(id string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[id] = g
	return g
}

func (f *fakeService) counts() (exists, creates, dups, fetches int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.creates {
		total += n
	}
	return f.existsCalls, total, f.dupCreates, f.fetches
}

type notes struct {
	mu   sync.Mutex
	msgs []string
}

func (n *notes) Notify(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *notes) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

type renders struct {
	mu    sync.Mutex
	views []View
}

func (r *renders) record(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *renders) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []State
	for _, v := range r.views {
		out = append(out, v.State)
	}
	return out
}

type fixedLocator struct{}

func (fixedLocator) ToLocation(pt models.ScreenPoint) (float64, float64) {
	return 43 + pt.Y/1000, -89 + pt.X/1000
}

type seqIDs struct{ n int }

func (s *seqIDs) Next() string {
	s.n++
	return fmt.Sprintf("%s%d", models.LocalIDPrefix, s.n)
}

type harness struct {
	ctrl     *Controller
	svc      *fakeService
	resolver *fakeResolver
	store    *overlay.Store
	notes    *notes
	renders  *renders
}

var (
	ptA      = models.ScreenPoint{X: 100, Y: 100}
	ptB      = models.ScreenPoint{X: 500, Y: 500}
	ptRemote = models.ScreenPoint{X: 300, Y: 300}
	ptEmpty  = models.ScreenPoint{X: 900, Y: 10}

	recA      = models.Record{ID: "custom_a", Name: "A", Latitude: 43.1, Longitude: -89.1}
	recB      = models.Record{ID: "custom_b", Name: "B", Latitude: 43.5, Longitude: -89.5}
	recRemote = models.Record{ID: "osm_42", Name: "Capitol", Category: "attraction", Latitude: 43.07, Longitude: -89.38}
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	svc := newFakeService()
	store := overlay.NewStore()
	store.Add(recA)
	store.Add(recB)
	svc.records[recA.ID] = recA
	svc.records[recB.ID] = recB

	resolver := &fakeResolver{hits: map[models.ScreenPoint]models.HitTestResult{
		ptA:      {Source: models.SourceOverlay, Record: &recA},
		ptB:      {Source: models.SourceOverlay, Record: &recB},
		ptRemote: {Source: models.SourceRemoteFeatureLayer, Record: &recRemote},
	}}
	h := &harness{svc: svc, resolver: resolver, store: store, notes: &notes{}, renders: &renders{}}
	h.ctrl = New(Deps{
		Resolver:  resolver,
		Overlay:   store,
		Records:   svc,
		Reviews:   reviewcache.New(svc, zap.NewNop()),
		Locator:   fixedLocator{},
		IDs:       &seqIDs{},
		Notifier:  h.notes,
		Renderer:  h.renders.record,
		Logger:    zap.NewNop(),
		Tolerance: 10,
		UserID:    "test_user",
	})
	return h
}

func TestTapNoHitIsNoOp(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Tap(context.Background(), ptEmpty)
	h.ctrl.Wait()

	assert.Equal(t, Closed, h.ctrl.Current().State)
	assert.Empty(t, h.renders.states())
	exists, creates, _, fetches := h.svc.counts()
	assert.Zero(t, exists+creates+fetches)
}

func TestTapOverlayRecordSkipsExistenceCheck(t *testing.T) {
	h := newHarness(t)
	h.svc.reviews[recA.ID] = []models.Review{{ReviewID: "r1", Rating: 5, Comment: "great"}}

	h.ctrl.Tap(context.Background(), ptA)
	h.ctrl.Wait()

	v := h.ctrl.Current()
	assert.Equal(t, Populated, v.State)
	assert.Equal(t, models.SourceOverlay, v.Source)
	assert.Equal(t, models.ExistenceConfirmed, v.Sync.Existence)
	assert.Equal(t, models.ReviewsLoaded, v.Sync.Reviews)
	require.Len(t, v.Reviews, 1)
	assert.Equal(t, "Average Rating: 5.0 stars (1 reviews)", v.Summary)
	assert.Equal(t, []State{Loading, Populated}, h.renders.states())

	exists, creates, _, _ := h.svc.counts()
	assert.Zero(t, exists)
	assert.Zero(t, creates)
}

func TestTapRemoteRecordImportsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		h.ctrl.Tap(ctx, ptRemote)
		h.ctrl.Wait()
	}

	v := h.ctrl.Current()
	assert.Equal(t, Empty, v.State)
	assert.Equal(t, "No reviews yet", v.Summary)
	assert.Equal(t, models.ExistenceConfirmed, v.Sync.Existence)

	_, creates, dups, _ := h.svc.counts()
	assert.Equal(t, 1, creates)
	assert.Zero(t, dups)
	assert.Equal(t, Loading, h.renders.states()[0])
}

func TestTapRemoteRecordTwiceWhileImporting(t *testing.T) {
	h := newHarness(t)
	h.svc.createDelay = 50 * time.Millisecond
	h.svc.rejectDups = true
	ctx := context.Background()

	h.ctrl.Tap(ctx, ptRemote)
	time.Sleep(5 * time.Millisecond)
	h.ctrl.Tap(ctx, ptRemote)
	h.ctrl.Wait()

	_, creates, dups, _ := h.svc.counts()
	assert.Equal(t, 1, creates)
	assert.Zero(t, dups)

	v := h.ctrl.Current()
	assert.Equal(t, Empty, v.State)
	assert.Equal(t, models.ExistenceConfirmed, v.Sync.Existence)
	assert.Equal(t, models.ReviewsLoaded, v.Sync.Reviews)
	assert.NotContains(t, h.notes.all(), "Failed to insert attraction")
}

func TestTapRemoteRecordAlreadyStoredIsNotCreated(t *testing.T) {
	h := newHarness(t)
	h.svc.records[recRemote.ID] = recRemote

	h.ctrl.Tap(context.Background(), ptRemote)
	h.ctrl.Wait()

	exists, creates, _, fetches := h.svc.counts()
	assert.Equal(t, 1, exists)
	assert.Zero(t, creates)
	assert.Equal(t, 1, fetches)
}

func TestTapRemoteCreateFailure(t *testing.T) {
	h := newHarness(t)
	h.svc.failCreate = true

	h.ctrl.Tap(context.Background(), ptRemote)
	h.ctrl.Wait()

	v := h.ctrl.Current()
	assert.Equal(t, Empty, v.State)
	assert.Equal(t, models.ExistenceMissing, v.Sync.Existence)
	assert.Contains(t, h.notes.all(), "Failed to insert attraction")
	_, _, _, fetches := h.svc.counts()
	assert.Zero(t, fetches)
}

func TestStaleReviewResultIsDiscarded(t *testing.T) {
	h := newHarness(t)
	h.svc.reviews[recA.ID] = []models.Review{{ReviewID: "ra", Rating: 1, Comment: "late"}}
	h.svc.reviews[recB.ID] = []models.Review{{ReviewID: "rb", Rating: 5, Comment: "current"}}
	gateA := h.svc.gate(recA.ID)
	ctx := context.Background()

	h.ctrl.Tap(ctx, ptA)
	require.Equal(t, recA.ID, <-h.svc.started)

	h.ctrl.Tap(ctx, ptB)
	require.Equal(t, recB.ID, <-h.svc.started)
	require.Eventually(t, func() bool { return h.ctrl.Current().State == Populated }, time.Second, 5*time.Millisecond)

	close(gateA)
	h.ctrl.Wait()

	v := h.ctrl.Current()
	require.NotNil(t, v.Record)
	assert.Equal(t, recB.ID, v.Record.ID)
	require.Len(t, v.Reviews, 1)
	assert.Equal(t, "current", v.Reviews[0].Comment)
}

func TestCloseDiscardsInFlight(t *testing.T) {
	h := newHarness(t)
	gateA := h.svc.gate(recA.ID)

	h.ctrl.Tap(context.Background(), ptA)
	<-h.svc.started
	h.ctrl.Close()
	close(gateA)
	h.ctrl.Wait()

	assert.Equal(t, Closed, h.ctrl.Current().State)
	assert.Nil(t, h.ctrl.Current().Record)
}

func TestTapEmptyAfterOpenCloses(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Tap(context.Background(), ptA)
	h.ctrl.Wait()
	h.ctrl.Tap(context.Background(), ptEmpty)
	h.ctrl.Wait()

	assert.Equal(t, Closed, h.ctrl.Current().State)
	states := h.renders.states()
	assert.Equal(t, Closed, states[len(states)-1])
}

func TestAddReviewRatingBoundaries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ctrl.Tap(ctx, ptA)
	h.ctrl.Wait()

	for _, rating := range []int{0, 6} {
		err := h.ctrl.AddReview(ctx, rating, "bad")
		assert.ErrorIs(t, err, errs.ErrValidation)
	}
	h.ctrl.Wait()
	assert.Zero(t, h.svc.submits)

	for _, rating := range []int{1, 5} {
		require.NoError(t, h.ctrl.AddReview(ctx, rating, "ok"))
		h.ctrl.Wait()
	}
	assert.Equal(t, 2, h.svc.submits)
}

func TestAddReviewRefreshesCallout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.svc.reviews[recA.ID] = []models.Review{{ReviewID: "r0", Rating: 3, Comment: "ok"}}

	h.ctrl.Tap(ctx, ptA)
	h.ctrl.Wait()
	before := len(h.ctrl.Current().Reviews)

	require.NoError(t, h.ctrl.AddReview(ctx, 4, "nice"))
	h.ctrl.Wait()

	v := h.ctrl.Current()
	assert.Equal(t, Populated, v.State)
	require.Len(t, v.Reviews, before+1)
	last := v.Reviews[len(v.Reviews)-1]
	assert.Equal(t, 4, last.Rating)
	assert.Equal(t, "nice", last.Comment)
	assert.Equal(t, []State{Loading, Populated, Loading, Populated}, h.renders.states())
	assert.Contains(t, h.notes.all(), "Review added")
}

func TestAddReviewWithoutOpenRecord(t *testing.T) {
	h := newHarness(t)
	err := h.ctrl.AddReview(context.Background(), 4, "nice")
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Zero(t, h.svc.submits)
}

func TestAddRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.ctrl.AddRecord(ctx, models.ScreenPoint{X: 10, Y: 20}, Draft{Name: "   "})
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Contains(t, h.notes.all(), "Name cannot be empty.")

	require.NoError(t, h.ctrl.AddRecord(ctx, models.ScreenPoint{X: 10, Y: 20}, Draft{
		Name: " Picnic Point ", Category: "viewpoint", ExternalLink: "https://example.test",
	}))
	h.ctrl.Wait()

	v := h.ctrl.Current()
	require.NotNil(t, v.Record)
	assert.True(t, strings.HasPrefix(v.Record.ID, models.LocalIDPrefix))
	assert.Equal(t, "Picnic Point", v.Record.Name)
	assert.InDelta(t, 43.02, v.Record.Latitude, 1e-9)
	assert.InDelta(t, -88.99, v.Record.Longitude, 1e-9)
	assert.Equal(t, models.SourceOverlay, v.Source)
	assert.Equal(t, Empty, v.State)

	_, ok := h.store.FindByID(v.Record.ID)
	assert.True(t, ok)
	assert.Contains(t, h.notes.all(), "Attraction added to DB")
}

func TestAddRecordDoesNotTakeOverLaterTap(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	h.svc.createGate = gate
	ctx := context.Background()

	require.NoError(t, h.ctrl.AddRecord(ctx, models.ScreenPoint{X: 10, Y: 20}, Draft{Name: "Slow"}))
	h.ctrl.Tap(ctx, ptB)
	require.Eventually(t, func() bool {
		v := h.ctrl.Current()
		return v.Record != nil && v.Record.ID == recB.ID && v.State == Empty
	}, time.Second, 5*time.Millisecond)

	close(gate)
	h.ctrl.Wait()

	v := h.ctrl.Current()
	require.NotNil(t, v.Record)
	assert.Equal(t, recB.ID, v.Record.ID)
	assert.Equal(t, 3, h.store.Len())
	_, ok := h.store.FindByID(models.LocalIDPrefix + "1")
	assert.True(t, ok)
	assert.Contains(t, h.notes.all(), "Attraction added to DB")
}

func TestStateStringOutOfRange(t *testing.T) {
	assert.Equal(t, "empty", Empty.String())
	assert.Equal(t, "state(9)", State(9).String())
	assert.NotPanics(t, func() { _ = State(-1).String() })
}

func TestAddRecordCreateFailure(t *testing.T) {
	h := newHarness(t)
	h.svc.failCreate = true

	require.NoError(t, h.ctrl.AddRecord(context.Background(), models.ScreenPoint{}, Draft{Name: "x"}))
	h.ctrl.Wait()

	assert.Equal(t, Closed, h.ctrl.Current().State)
	assert.Equal(t, 2, h.store.Len())
	assert.Contains(t, h.notes.all(), "Failed to add attraction")
}

func TestHydrate(t *testing.T) {
	h := newHarness(t)
	h.svc.records["custom_c"] = models.Record{ID: "custom_c", Name: "C"}

	added := h.ctrl.Hydrate(context.Background())
	assert.Equal(t, 1, added)
	assert.Equal(t, 3, h.store.Len())
}
