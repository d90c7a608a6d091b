package controllers

import (
	"context"
	"net/http"

	"github.com/rzbill/killfeed/internal/delivery"
	"github.com/rzbill/killfeed/internal/format"
	"github.com/rzbill/killfeed/internal/runtime"
	logpkg "github.com/rzbill/killfeed/pkg/log"
)

// FeedsController serves the two long-poll feeds:
//
//	GET /redisq?queueID=&ttw=           RedisQ package
//	GET /stream?queueID=&ttw=&filter=   verbose killmail
//
// Both always answer 200 with a JSON body. Anything that goes wrong
// (missing queueID, bad filter, storage failure) yields the empty shape and
// is logged.
type FeedsController struct {
	rt          *runtime.Runtime
	poller      *delivery.Poller
	observer    delivery.Observer
	locator     format.Locator
	filters     *delivery.FilterCache
	logger      logpkg.Logger
	defaultWait int
}

// NewFeedsController creates the feed controller around poller. observer
// receives the requests rejected before a poll starts.
func NewFeedsController(rt *runtime.Runtime, poller *delivery.Poller, observer delivery.Observer, logger logpkg.Logger) *FeedsController {
	if observer == nil {
		observer = delivery.NoopObserver{}
	}
	wait := rt.Config().Poll.DefaultWait
	if wait <= 0 {
		wait = delivery.DefaultWaitSeconds
	}
	return &FeedsController{
		rt:          rt,
		poller:      poller,
		observer:    observer,
		locator:     format.RecordLocator{},
		filters:     delivery.NewFilterCache(delivery.DefaultFilterCacheSize),
		logger:      logger.WithComponent("feeds"),
		defaultWait: wait,
	}
}

// RegisterRoutes registers the feed routes with the given mux.
func (c *FeedsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/redisq", c.handleFeed(delivery.FeedRedisQ, format.KindCompact, false))
	mux.HandleFunc("/stream", c.handleFeed(delivery.FeedStream, format.KindVerbose, true))
}

func (c *FeedsController) handleFeed(feed string, kind format.Kind, allowFilter bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			c.writeEmpty(w, http.StatusMethodNotAllowed, kind)
			return
		}
		q := r.URL.Query()
		queueID := q.Get("queueID")
		ttw := delivery.ParseWait(q.Get("ttw"), c.defaultWait)
		lg := c.logger.WithContext(r.Context()).With(
			logpkg.Str("feed", feed),
			logpkg.Str("queue_id", queueID),
		)

		var filter *delivery.Filter
		if allowFilter {
			f, err := c.filters.Compile(q.Get("filter"))
			if err != nil {
				lg.Warn("poll failed", logpkg.Str("stage", string(delivery.StageFilter)), logpkg.Err(err))
				c.observer.ObservePoll(feed, delivery.OutcomeError, 0, delivery.StageFilter)
				c.writeEmpty(w, http.StatusOK, kind)
				return
			}
			filter = f
		}

		// The poll runs to completion even if the client goes away so a
		// found record is never left half-delivered; shutdown still bounds
		// it through the server's drain timeout.
		res := c.poller.Poll(context.WithoutCancel(r.Context()), feed, queueID, ttw, filter)
		if res.Err != nil {
			lg.Warn("poll failed",
				logpkg.Str("stage", string(delivery.StageOf(res.Err))),
				logpkg.Err(res.Err))
		}
		if res.Found() {
			lg.Debug("delivered", logpkg.Uint64("record_id", res.Record.ID))
		}

		body, err := format.Marshal(kind, res.Record, c.locator)
		if err != nil {
			lg.Error("render failed", logpkg.Err(err))
		}
		writeRaw(w, http.StatusOK, body)
	}
}

func (c *FeedsController) writeEmpty(w http.ResponseWriter, status int, kind format.Kind) {
	body, _ := format.Marshal(kind, nil, nil)
	writeRaw(w, status, body)
}
