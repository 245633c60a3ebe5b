package selection

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/repograph/internal/errors"
	"github.com/rohankatakam/repograph/internal/filetype"
	"github.com/rohankatakam/repograph/internal/graph"
	"github.com/rohankatakam/repograph/internal/logging"
	"github.com/rohankatakam/repograph/internal/models"
	"github.com/rohankatakam/repograph/internal/proxyclient"
)

const (
	// DefaultTimeout bounds one selection's fetch plus analysis
	DefaultTimeout = 30 * time.Second
	// DefaultCacheSize is the number of Ready results kept per repository
	DefaultCacheSize = 512

	reasonUnknownPath = "This path is not part of the loaded repository."
)

// ContentFetcher retrieves the raw text of a file in the loaded repository
type ContentFetcher interface {
	FetchContent(ctx context.Context, path string) (string, error)
}

// Analyzer explains a piece of code
type Analyzer interface {
	Analyze(ctx context.Context, code string) (string, error)
}

// selection is one issued Select call. done closes exactly once, when the
// selection settles or is superseded.
type selection struct {
	seq    uint64
	id     string
	path   string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *selection) finish() {
	s.once.Do(func() { close(s.done) })
}

// Controller owns the SelectionState. Only the most recently issued
// selection may change the visible state; completions of older selections
// are discarded.
type Controller struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	analyzer Analyzer
	fetcher  ContentFetcher
	graph    *graph.Graph
	cache    *lru.Cache[string, State]
	state    State
	seq      uint64
	current  *selection

	subscribers map[int]func(State)
	nextSub     int

	timeout time.Duration
	logger  *logrus.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
}

// Option configures a Controller
type Option func(*Controller)

// WithTimeout bounds each selection; zero disables the bound
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// New creates a controller with an empty graph. cacheSize <= 0 uses
// DefaultCacheSize.
func New(analyzer Analyzer, cacheSize int, opts ...Option) (*Controller, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, State](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		analyzer:    analyzer,
		graph:       graph.Build(nil),
		cache:       cache,
		state:       Idle(),
		subscribers: make(map[int]func(State)),
		timeout:     DefaultTimeout,
		logger:      logging.Discard(),
		baseCtx:     ctx,
		baseCancel:  cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Load replaces the graph with one built from snap and binds fetcher to it.
// Any in-flight selection is abandoned, the state returns to Idle and the
// result cache is cleared.
func (c *Controller) Load(snap *models.Snapshot, fetcher ContentFetcher) *graph.Graph {
	g := graph.Build(snap.Entries)

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.supersedeLocked()
	c.seq++
	c.graph = g
	c.fetcher = fetcher
	c.cache.Purge()
	c.state = Idle()
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"repository": snap.Repository.ID(),
		"branch":     snap.Branch,
		"nodes":      len(g.Nodes),
		"edges":      len(g.Edges),
		"truncated":  snap.Truncated,
	}).Info("repository graph loaded")

	notify(subs, Idle())
	return g
}

// Graph returns the currently loaded graph
func (c *Controller) Graph() *graph.Graph {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph
}

// State returns the current selection state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn to receive every state change and returns a
// function that unregisters it. fn runs synchronously and must not call
// Select, Reset or Load.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// Select makes path the current selection without blocking. The returned
// channel closes once this selection settles or is superseded by a newer
// one.
//
// Directories yield Idle. Reselecting a file that is still loading joins
// the pending request. Files already Ready are served from the cache
// without network calls. Non-analyzable files become Ready with a fixed
// description and are never fetched. Anything else goes Loading and then
// Ready or Failed.
func (c *Controller) Select(path string) <-chan struct{} {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		done := make(chan struct{})
		close(done)
		return done
	}

	// Reselecting the path already loading joins the in-flight request
	if cur := c.current; cur != nil && cur.path == path && c.state.Status == StatusLoading {
		c.mu.Unlock()
		return cur.done
	}

	c.supersedeLocked()
	c.seq++
	sel := &selection{
		seq:  c.seq,
		id:   uuid.NewString(),
		path: path,
		done: make(chan struct{}),
	}
	c.current = sel
	log := c.logger.WithFields(logrus.Fields{"path": path, "selection_id": sel.id})

	node, found := c.graph.Node(path)
	cached, hit := c.cache.Get(path)

	var next State
	switch {
	case !found:
		next = Failed(path, reasonUnknownPath)
		log.Warn("selected path is not in the loaded graph")
	case node.IsDir():
		next = Idle()
	case hit:
		next = cached
		log.Debug("selection served from cache")
	case !filetype.IsAnalyzable(path):
		next = Ready(path, nil, filetype.Binary, BinaryDescription)
		c.cache.Add(path, next)
	case c.fetcher == nil:
		next = Failed(path, errors.UserMessage(errors.ContentFetchError(stderrors.New("no content source"), "fetch content")))
		log.Error("no content fetcher bound to the loaded graph")
	default:
		next = Loading(path)
	}

	c.state = next
	subs := c.subscribersLocked()

	if next.Status == StatusLoading {
		ctx, cancel := c.selectionContext(sel.id)
		sel.cancel = cancel
		fetcher := c.fetcher
		c.wg.Add(1)
		go c.run(ctx, sel, fetcher, log)
	} else {
		sel.finish()
	}
	c.mu.Unlock()

	notify(subs, next)
	return sel.done
}

// Reset abandons any in-flight selection and returns to Idle
func (c *Controller) Reset() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.supersedeLocked()
	c.seq++
	c.state = Idle()
	subs := c.subscribersLocked()
	c.mu.Unlock()

	notify(subs, Idle())
}

// Close cancels in-flight work and waits for it to stop. Later Select calls
// are ignored.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.supersedeLocked()
	c.mu.Unlock()

	c.baseCancel()
	c.wg.Wait()
	return nil
}

func (c *Controller) selectionContext(id string) (context.Context, context.CancelFunc) {
	ctx := proxyclient.WithRequestID(c.baseCtx, id)
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// supersedeLocked cancels and settles the current selection. Caller holds mu.
func (c *Controller) supersedeLocked() {
	if c.current == nil {
		return
	}
	if c.current.cancel != nil {
		c.current.cancel()
	}
	c.current.finish()
	c.current = nil
}

func (c *Controller) subscribersLocked() []func(State) {
	subs := make([]func(State), 0, len(c.subscribers))
	for i := 0; i < c.nextSub; i++ {
		if fn, ok := c.subscribers[i]; ok {
			subs = append(subs, fn)
		}
	}
	return subs
}

func notify(subs []func(State), s State) {
	for _, fn := range subs {
		fn(s)
	}
}

// run fetches and analyzes one file, then applies the outcome if the
// selection is still current
func (c *Controller) run(ctx context.Context, sel *selection, fetcher ContentFetcher, log *logrus.Entry) {
	defer c.wg.Done()
	defer sel.finish()
	defer sel.cancel()

	start := time.Now()

	content, err := fetcher.FetchContent(ctx, sel.path)
	if err != nil {
		c.complete(sel, Failed(sel.path, reason(ctx, err)), log.WithError(err).WithField("stage", "fetch"), start)
		return
	}

	description, err := c.analyzer.Analyze(ctx, content)
	if err != nil {
		c.complete(sel, Failed(sel.path, reason(ctx, err)), log.WithError(err).WithField("stage", "analyze"), start)
		return
	}

	c.complete(sel, Ready(sel.path, &content, filetype.Text, description), log, start)
}

// complete applies s if sel is still the current selection for the same
// path. Ready results are cached; Failed results are not.
func (c *Controller) complete(sel *selection, s State, log *logrus.Entry, start time.Time) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	log = log.WithFields(logrus.Fields{
		"status":      s.Status.String(),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	c.mu.Lock()
	if c.closed || sel.seq != c.seq || c.state.Path != sel.path {
		c.mu.Unlock()
		log.Debug("discarding stale selection result")
		return
	}

	c.state = s
	if s.Status == StatusReady {
		c.cache.Add(sel.path, s)
	}
	c.current = nil
	subs := c.subscribersLocked()
	c.mu.Unlock()

	if s.Status == StatusFailed {
		log.WithField("reason", s.Reason).Error("selection failed")
	} else {
		log.Info("selection ready")
	}
	notify(subs, s)
}

// reason derives the human readable failure message. An expired selection
// deadline is reported as a timeout whatever stage it interrupted.
func reason(ctx context.Context, err error) string {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.UserMessage(errors.TimeoutError(err, "selection timed out"))
	}
	return errors.UserMessage(err)
}
