package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/handlers"

	"spacecombat/internal/battle"
	"spacecombat/internal/cache"
	"spacecombat/internal/locker"
	"spacecombat/internal/store"
	"spacecombat/pkg/background"
	"spacecombat/pkg/dispatcher"
	"spacecombat/pkg/duration"
	httphandlers "spacecombat/pkg/handlers"
	"spacecombat/pkg/logger"
)

// ErrUnexpectedServeError :
// Indicates that an error occurred while serving the status
// endpoint.
var ErrUnexpectedServeError = fmt.Errorf("unexpected error occurred while serving http requests")

// ErrServerShutdownError :
// Indicates that an error occurred while shutting down the
// HTTP status endpoint.
var ErrServerShutdownError = fmt.Errorf("unexpected error occurred while shutting down the server")

// Runtime :
// Bootstraps and owns the full set of write-back caches, the
// lock manager, the battle engine and its scheduler, plus a
// thin HTTP status endpoint. Grounded on
// `internal/routes.Server`'s lifecycle (`NewServer`/`Serve`/
// `shutdown`), generalized from "one HTTP server fronting a
// relational data model" to "caches + engine + scheduler +
// an optional status surface".
//
// The `port` is the port the status endpoint listens on.
//
// The `router` is created lazily by `Serve`, mirroring the
// teacher's own guard against serving twice.
//
// The `Locks`, `Users`, `World`, `Messages`, `Battles` are the
// public handles a caller (or a route handler) uses to reach
// into the live state.
//
// The `Engine` and `Scheduler` drive battle resolution; the
// scheduler's own background timer is started/stopped
// alongside every cache's persistence timer.
//
// The `worldTick` is a background process that advances world
// physics on a fixed cadence independent of request traffic,
// the same way the teacher's own "cron" background process in
// `routes.Server` keeps its data model consistent regardless of
// whether a request happens to touch it.
type Runtime struct {
	port   int
	router *dispatcher.Router

	Locks     *locker.Manager
	Users     *cache.UserCache
	World     *cache.WorldCache
	Messages  *cache.MessageCache
	Battles   *cache.BattleCache
	Engine    *battle.Engine
	Scheduler *battle.Scheduler

	store     store.Store
	log       logger.Logger
	startedAt time.Time

	config    configuration
	worldTick *background.Process
}

// statusResponse :
// Body of the `/status` endpoint. The `Uptime` is marshalled
// through `pkg/duration.Duration` rather than a bare
// `time.Duration`, giving clients a human-readable string
// ("1h30m0s") instead of a raw nanosecond count.
type statusResponse struct {
	Status        string            `json:"status"`
	ActiveBattles int               `json:"activeBattles"`
	Uptime        duration.Duration `json:"uptime"`
}

// now is the shared clock every cache and the scheduler read
// from, so a single wall-clock second is seen consistently
// across the whole runtime.
func now() int64 {
	return time.Now().Unix()
}

// NewRuntime :
// Wires a full runtime against `st`, logging through `log` and
// exposing the status endpoint on `port`.
func NewRuntime(st store.Store, log logger.Logger, port int) *Runtime {
	config := parseConfiguration()

	locks := locker.NewManager(log)
	users := cache.NewUserCache(st, locks, log, now)
	world := cache.NewWorldCache(config.worldSize, st, locks, log, now)
	messages := cache.NewMessageCache(st, locks, log, now)
	battles := cache.NewBattleCache(st, locks, log, now)

	engine := battle.NewEngine(users, battles, log)
	scheduler := battle.NewScheduler(engine, battles, users, messages, world, locks, log, now)

	return &Runtime{
		port:      port,
		Locks:     locks,
		Users:     users,
		World:     world,
		Messages:  messages,
		Battles:   battles,
		Engine:    engine,
		Scheduler: scheduler,
		store:     st,
		log:       log,
		startedAt: time.Now(),
		config:    config,
	}
}

// routes registers the status/health endpoints on the
// runtime's router, each wrapped with the teacher's own
// panic-recovery handler so a bug in either one can never take
// the whole status surface down.
func (rt *Runtime) routes() {
	rt.router.HandleFunc("/health", httphandlers.WithSafetyNet(rt.log, rt.healthHandler)).Methods("GET")
	rt.router.HandleFunc("/status", httphandlers.WithSafetyNet(rt.log, rt.statusHandler)).Methods("GET")
}

// healthHandler reports bare liveness, independent of the
// state of any particular cache or the scheduler.
func (rt *Runtime) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"alive"}`)
}

// statusHandler reports the number of currently active battles,
// per the "thin route scaffolding" the teacher always ships
// alongside its core logic.
func (rt *Runtime) statusHandler(w http.ResponseWriter, r *http.Request) {
	active, err := rt.Battles.GetActive(locker.WithHeld(r.Context()))
	if err != nil {
		rt.log.Trace(logger.Error, "runtime", fmt.Sprintf("failed to list active battles: %v", err))
		http.Error(w, httphandlers.InternalServerErrorString(), http.StatusInternalServerError)
		return
	}

	body := statusResponse{
		Status:        "ok",
		ActiveBattles: len(active),
		Uptime:        duration.NewDuration(time.Since(rt.startedAt)),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

// Serve :
// Starts every cache's background flush timer, the battle
// scheduler, the world-physics tick, and the status HTTP
// endpoint, then blocks until SIGINT, at which point it shuts
// everything down gracefully. Mirrors `routes.Server.Serve`.
func (rt *Runtime) Serve() error {
	if rt.router != nil {
		panic(fmt.Errorf("cannot start serving, runtime already running"))
	}

	rt.router = dispatcher.NewRouter(rt.log)
	rt.routes()

	aMethods := handlers.AllowedMethods([]string{"GET"})
	aOrigins := handlers.AllowedOrigins([]string{"*"})
	aHeaders := handlers.AllowedHeaders([]string{"Origin", "X-Requested-With", "Content-Type", "Accept"})
	corsRouter := handlers.CORS(aHeaders, aOrigins, aMethods)(rt.router)

	server := &http.Server{
		Addr:    ":" + strconv.FormatInt(int64(rt.port), 10),
		Handler: corsRouter,
	}

	if err := rt.startBackgroundProcesses(); err != nil {
		return err
	}

	var serveErr error
	wg := sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer func() {
			if err := recover(); err != nil {
				rt.log.Trace(logger.Fatal, "runtime", fmt.Sprintf("caught unexpected error while serving requests: %v", err))
				serveErr = ErrUnexpectedServeError
			}

			wg.Done()
			rt.log.Trace(logger.Notice, "runtime", "server has stopped")
		}()

		rt.log.Trace(logger.Notice, "runtime", "server has started")

		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	rt.shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
		rt.log.Trace(logger.Error, "runtime", fmt.Sprintf("caught unexpected error while shutting down server: %v", err))
		return ErrServerShutdownError
	}

	wg.Wait()

	return serveErr
}

// startBackgroundProcesses starts every cache's flush timer,
// the scheduler's tick, and the world-physics tick.
func (rt *Runtime) startBackgroundProcesses() error {
	if err := rt.Users.Start(); err != nil {
		return err
	}
	if err := rt.World.Start(); err != nil {
		return err
	}
	if err := rt.Messages.Start(); err != nil {
		return err
	}
	if err := rt.Battles.Start(); err != nil {
		return err
	}
	if err := rt.Scheduler.Start(); err != nil {
		return err
	}

	rt.worldTick = background.NewProcess(rt.config.backgroundUpdate, rt.log).
		WithModule("world-tick").
		WithOperation(func() (bool, error) {
			_, err := rt.World.GetWorld(locker.WithHeld(context.Background()))
			return err == nil, err
		})

	return rt.worldTick.Start()
}

// shutdown :
// Requests every background process to stop gracefully,
// flushing any remaining dirty state before returning.
func (rt *Runtime) shutdown() {
	rt.Scheduler.Stop()
	if rt.worldTick != nil {
		rt.worldTick.Stop()
	}
	rt.Users.Stop()
	rt.World.Stop()
	rt.Messages.Stop()
	rt.Battles.Stop()
}
