package runtime

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	cfgpkg "github.com/rzbill/killfeed/internal/config"
	"github.com/rzbill/killfeed/internal/cursor"
	"github.com/rzbill/killfeed/internal/delivery"
	"github.com/rzbill/killfeed/internal/killmail"
	"github.com/rzbill/killfeed/internal/killstore"
	"github.com/rzbill/killfeed/internal/metrics"
	pebblestore "github.com/rzbill/killfeed/internal/storage/pebble"
	"github.com/rzbill/killfeed/internal/storage/sqlite"
	logpkg "github.com/rzbill/killfeed/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	// DataDir overrides Config.Storage.DataDir when set.
	DataDir string
	// Fsync overrides Config.Storage.Fsync when not FsyncModeUnspecified.
	Fsync   pebblestore.FsyncMode
	Config  cfgpkg.Config
	Metrics *metrics.Metrics
	Logger  logpkg.Logger
	// Source and Cursors, when set, replace the configured drivers. The
	// runtime takes ownership of Cursors and closes it.
	Source  RecordStore
	Cursors cursor.Store
}

// Stats summarizes the record source.
type Stats struct {
	Driver  string `json:"driver"`
	FirstID uint64 `json:"first_id"`
	LastID  uint64 `json:"last_id"`
}

// RecordStore is the record source plus the write path used by import.
type RecordStore interface {
	delivery.Source
	Before(ctx context.Context, id uint64) (*killmail.Record, error)
	Append(ctx context.Context, kms []killmail.Killmail) ([]uint64, error)
}

// Runtime wires storage, cursors and config for a single node.
type Runtime struct {
	db      *pebblestore.DB
	config  cfgpkg.Config
	metrics *metrics.Metrics
	logger  logpkg.Logger

	kills   *killstore.Store
	sql     *sqlite.Store
	source  RecordStore
	cursors cursor.Store

	stopSweep context.CancelFunc
	sweepDone sync.WaitGroup
}

// Open initializes storage, the record source and the cursor store.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = cfg.Storage.DataDir
	}
	if dataDir == "" {
		dataDir = cfgpkg.DefaultDataDir()
	}
	fsync := opts.Fsync
	if fsync == pebblestore.FsyncModeUnspecified {
		m, err := pebblestore.ParseFsyncMode(cfg.Storage.Fsync)
		if err != nil {
			return nil, err
		}
		fsync = m
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	logger = logger.WithComponent("runtime")

	po := pebblestore.Options{DataDir: dataDir, Fsync: fsync}
	if opts.Metrics != nil {
		po.Metrics = opts.Metrics
	}
	db, err := pebblestore.Open(po)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{db: db, config: cfg, metrics: opts.Metrics, logger: logger}

	if opts.Source != nil {
		rt.source = opts.Source
	} else if err := rt.openSource(dataDir); err != nil {
		_ = rt.Close()
		return nil, err
	}
	if opts.Cursors != nil {
		rt.cursors = opts.Cursors
	} else if err := rt.openCursors(); err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.startSweeper()
	logger.Info("runtime opened",
		logpkg.Str("data_dir", dataDir),
		logpkg.Str("source", rt.sourceDriver()),
		logpkg.Str("cursor", rt.cursorDriver()))
	return rt, nil
}

func (r *Runtime) openSource(dataDir string) error {
	switch r.config.Source.Driver {
	case cfgpkg.SourceSQLite:
		path := r.config.Source.SQLitePath
		if path == "" {
			path = filepath.Join(dataDir, "killmails.db")
		}
		s, err := sqlite.Open(path)
		if err != nil {
			return fmt.Errorf("open sqlite source: %w", err)
		}
		r.sql, r.source = s, s
	case cfgpkg.SourcePebble, "":
		s, err := killstore.Open(r.db)
		if err != nil {
			return fmt.Errorf("open killstore: %w", err)
		}
		r.kills, r.source = s, s
	default:
		return fmt.Errorf("unknown source driver %q", r.config.Source.Driver)
	}
	return nil
}

func (r *Runtime) openCursors() error {
	switch r.config.Cursor.Driver {
	case cfgpkg.CursorMemory:
		r.cursors = cursor.NewMemory()
	case cfgpkg.CursorNATS:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := cursor.DialNATS(ctx, r.config.Cursor.NATSURL, r.config.Cursor.Bucket)
		if err != nil {
			return err
		}
		r.cursors = s
	case cfgpkg.CursorPebble, "":
		r.cursors = cursor.NewPebble(r.db)
	default:
		return fmt.Errorf("unknown cursor driver %q", r.config.Cursor.Driver)
	}
	return nil
}

func (r *Runtime) sourceDriver() string {
	switch {
	case r.sql != nil:
		return cfgpkg.SourceSQLite
	case r.kills != nil:
		return cfgpkg.SourcePebble
	default:
		return "custom"
	}
}

func (r *Runtime) cursorDriver() string {
	switch r.cursors.(type) {
	case *cursor.Memory:
		return cfgpkg.CursorMemory
	case *cursor.NATS:
		return cfgpkg.CursorNATS
	case *cursor.Pebble:
		return cfgpkg.CursorPebble
	default:
		return "custom"
	}
}

func (r *Runtime) startSweeper() {
	if _, ok := r.cursors.(*cursor.Pebble); !ok {
		return
	}
	interval := r.config.Cursor.SweepInterval
	if interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.stopSweep = cancel
	r.sweepDone.Add(1)
	go func() {
		defer r.sweepDone.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if _, err := r.SweepCursors(ctx); err != nil && !errors.Is(err, context.Canceled) {
					r.logger.Warn("cursor sweep failed", logpkg.Err(err))
				}
			}
		}
	}()
}

// SweepCursors removes expired cursor keys from the Pebble store. Other
// stores expire keys on their own and report zero.
func (r *Runtime) SweepCursors(ctx context.Context) (int, error) {
	p, ok := r.cursors.(*cursor.Pebble)
	if !ok {
		return 0, nil
	}
	n, err := p.Sweep(ctx, 1024)
	if n > 0 {
		if r.metrics != nil {
			r.metrics.CursorsSwept(n)
		}
		r.logger.Debug("swept expired cursors", logpkg.Int("removed", n))
	}
	return n, err
}

// Close stops the sweeper and closes underlying resources.
func (r *Runtime) Close() error {
	if r.stopSweep != nil {
		r.stopSweep()
		r.sweepDone.Wait()
		r.stopSweep = nil
	}
	var errs []error
	if r.cursors != nil {
		errs = append(errs, r.cursors.Close())
		r.cursors = nil
	}
	if r.sql != nil {
		errs = append(errs, r.sql.Close())
		r.sql = nil
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
		r.db = nil
	}
	return errors.Join(errs...)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// CheckHealth verifies the database, the record source and the cursor
// store are reachable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	it.Close()
	if p, ok := r.source.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("source: %w", err)
		}
	}
	if p, ok := r.cursors.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("cursor: %w", err)
		}
	}
	return nil
}

// Stats reports the record source's id range.
func (r *Runtime) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Driver: r.sourceDriver()}
	if r.sql != nil {
		first, last, err := r.sql.Stats(ctx)
		if err != nil {
			return st, err
		}
		st.FirstID, st.LastID = first, last
	} else if r.kills != nil {
		ks, err := r.kills.Stats(ctx)
		if err != nil {
			return st, err
		}
		st.FirstID, st.LastID = ks.FirstID, ks.LastID
	} else {
		rec, err := r.source.Newest(ctx)
		if err != nil {
			return st, err
		}
		if rec != nil {
			st.LastID = rec.ID
		}
	}
	if r.metrics != nil {
		r.metrics.SetLastRecordID(st.LastID)
	}
	return st, nil
}

// Poller builds a delivery poller from the poll configuration.
func (r *Runtime) Poller(observer delivery.Observer) *delivery.Poller {
	pc := r.config.Poll
	resolver := delivery.NewResolver(r.source, pc.MaxSkip)
	waiter := delivery.NewWaiter(resolver, delivery.WaiterOptions{
		Interval: pc.Interval,
		MinWait:  pc.MinWait,
		MaxWait:  pc.MaxWait,
	})
	return delivery.NewPoller(r.cursors, waiter, observer)
}

// Source returns the record source.
func (r *Runtime) Source() RecordStore { return r.source }

// Cursors returns the cursor store.
func (r *Runtime) Cursors() cursor.Store { return r.cursors }

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Metrics returns the metrics set, or nil when metrics are disabled.
func (r *Runtime) Metrics() *metrics.Metrics { return r.metrics }

// Logger returns the runtime logger.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }
