// Package selector implements cascading selection over a dependency graph of
// levels (grade → subject → chapter). Changing a level clears every level
// below it and reloads its direct children; responses that arrive after
// their parent changed again are discarded.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/p-n-ai/teachmate/internal/notify"
)

// ErrUnknownLevel is returned when selecting a level the chain does not have.
var ErrUnknownLevel = errors.New("unknown selector level")

// Option is one choice in a level's list.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Data any    `json:"-"`
}

// LoadFunc fetches the options of a level given the values of all its
// ancestors, keyed by level name.
type LoadFunc func(ctx context.Context, ancestors map[string]string) ([]Option, error)

// Level declares one field of the chain. Parent is empty for a root.
type Level struct {
	Name   string
	Parent string
	Label  string // used in notifications, defaults to Name
	Load   LoadFunc
}

type levelState struct {
	value   string
	options []Option
	loading bool
	gen     uint64 // bumped on every dispatch and reset; stale loads compare against it
}

// LevelView is a read-only copy of one level.
type LevelView struct {
	Value   string   `json:"value"`
	Options []Option `json:"options"`
	Loading bool     `json:"loading"`
}

// Snapshot is a consistent copy of the whole chain. Version increases on
// every state change so consumers can drop out-of-order snapshots.
type Snapshot struct {
	Version uint64               `json:"version"`
	Levels  map[string]LevelView `json:"levels"`
}

// Chain is the selector state plus its reducer. Safe for concurrent use.
type Chain struct {
	mu        sync.Mutex
	levels    []Level
	index     map[string]int
	children  map[string][]string
	ancestors map[string][]string
	state     map[string]*levelState
	version   uint64

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	notifier notify.Notifier
	onChange func(Snapshot)
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithNotifier sets where load failures are reported.
func WithNotifier(n notify.Notifier) ChainOption {
	return func(c *Chain) {
		c.notifier = n
	}
}

// WithOnChange registers a callback run after every state change with a
// fresh snapshot. It is called without the chain's lock held.
func WithOnChange(fn func(Snapshot)) ChainOption {
	return func(c *Chain) {
		c.onChange = fn
	}
}

// WithContext sets the parent context for background loads.
func WithContext(ctx context.Context) ChainOption {
	return func(c *Chain) {
		c.ctx = ctx
	}
}

// NewChain builds a chain. Levels must be listed parents first.
func NewChain(levels []Level, opts ...ChainOption) (*Chain, error) {
	c := &Chain{
		levels:    levels,
		index:     make(map[string]int, len(levels)),
		children:  make(map[string][]string),
		ancestors: make(map[string][]string),
		state:     make(map[string]*levelState, len(levels)),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(c.ctx)

	for i, l := range levels {
		if l.Name == "" {
			return nil, fmt.Errorf("level %d has no name", i)
		}
		if l.Load == nil {
			return nil, fmt.Errorf("level %s has no loader", l.Name)
		}
		if _, dup := c.index[l.Name]; dup {
			return nil, fmt.Errorf("duplicate level %s", l.Name)
		}
		if l.Parent != "" {
			if _, ok := c.index[l.Parent]; !ok {
				return nil, fmt.Errorf("level %s: parent %s must be declared before it", l.Name, l.Parent)
			}
			c.children[l.Parent] = append(c.children[l.Parent], l.Name)
			c.ancestors[l.Name] = append([]string{l.Parent}, c.ancestors[l.Parent]...)
		}
		c.index[l.Name] = i
		c.state[l.Name] = &levelState{}
	}
	return c, nil
}

// Init loads every root level.
func (c *Chain) Init() {
	c.mu.Lock()
	for _, l := range c.levels {
		if l.Parent == "" {
			c.dispatchLocked(l.Name)
		}
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// Select sets level to value. Every descendant is cleared synchronously and
// each direct child whose ancestors are all set is reloaded. Selecting the
// same value again reloads too.
func (c *Chain) Select(level, value string) error {
	c.mu.Lock()
	st, ok := c.state[level]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownLevel, level)
	}
	st.value = value
	c.version++

	for _, d := range c.descendants(level) {
		ds := c.state[d]
		ds.value = ""
		ds.options = nil
		ds.loading = false
		ds.gen++
	}
	for _, child := range c.children[level] {
		if c.ancestorsSetLocked(child) {
			c.dispatchLocked(child)
		}
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(snap)
	return nil
}

// Reload re-dispatches the load of a level if its ancestors are set. It is
// how a failed root level is retried.
func (c *Chain) Reload(level string) error {
	c.mu.Lock()
	if _, ok := c.state[level]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownLevel, level)
	}
	if c.ancestorsSetLocked(level) {
		c.dispatchLocked(level)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
	return nil
}

// Value returns the current value of level.
func (c *Chain) Value(level string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.state[level]; ok {
		return st.value
	}
	return ""
}

// Options returns a copy of the current options of level.
func (c *Chain) Options(level string) []Option {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.state[level]; ok {
		return append([]Option(nil), st.options...)
	}
	return nil
}

// Snapshot returns a consistent copy of every level.
func (c *Chain) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Settle blocks until every dispatched load has returned and been applied
// or discarded.
func (c *Chain) Settle() {
	c.wg.Wait()
}

// Close cancels in-flight loads and waits for them.
func (c *Chain) Close() {
	c.cancel()
	c.wg.Wait()
}

// descendants lists every level below level, breadth first.
func (c *Chain) descendants(level string) []string {
	var out []string
	queue := append([]string(nil), c.children[level]...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, n)
		queue = append(queue, c.children[n]...)
	}
	return out
}

func (c *Chain) ancestorsSetLocked(level string) bool {
	for _, a := range c.ancestors[level] {
		if c.state[a].value == "" {
			return false
		}
	}
	return true
}

func (c *Chain) dispatchLocked(level string) {
	st := c.state[level]
	st.gen++
	st.loading = true
	st.options = nil
	gen := st.gen

	ancestors := make(map[string]string, len(c.ancestors[level]))
	for _, a := range c.ancestors[level] {
		ancestors[a] = c.state[a].value
	}
	def := c.levels[c.index[level]]
	c.version++

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		opts, err := def.Load(c.ctx, ancestors)
		c.apply(def, gen, ancestors, opts, err)
	}()
}

func (c *Chain) apply(def Level, gen uint64, ancestors map[string]string, opts []Option, err error) {
	c.mu.Lock()
	st := c.state[def.Name]
	if st.gen != gen {
		c.mu.Unlock()
		slog.Debug("discarding stale selector response", "level", def.Name, "ancestors", ancestors)
		return
	}
	st.loading = false
	c.version++
	if err != nil {
		st.options = nil
	} else {
		st.options = opts
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		label := def.Label
		if label == "" {
			label = def.Name
		}
		slog.Warn("selector load failed", "level", def.Name, "ancestors", ancestors, "error", err)
		if c.notifier != nil {
			c.notifier.Notify(notify.Notification{
				Kind:    notify.KindLoadFailure,
				Op:      "load_" + def.Name,
				Message: "Failed to load " + label,
			})
		}
	}
	c.emit(snap)
}

func (c *Chain) snapshotLocked() Snapshot {
	s := Snapshot{Version: c.version, Levels: make(map[string]LevelView, len(c.state))}
	for name, st := range c.state {
		s.Levels[name] = LevelView{
			Value:   st.value,
			Options: append([]Option(nil), st.options...),
			Loading: st.loading,
		}
	}
	return s
}

func (c *Chain) emit(s Snapshot) {
	if c.onChange != nil {
		c.onChange(s)
	}
}
