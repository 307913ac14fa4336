package main

import (
	"flag"
	"fmt"
	"runtime/debug"

	"spacecombat/internal/runtime"
	"spacecombat/internal/store"
	"spacecombat/pkg/arguments"
	"spacecombat/pkg/db"
	"spacecombat/pkg/logger"
)

// usage :
// Displays the usage of the server. Typically requires a
// configuration file to be able to fetch the configuration
// variables to use during the execution of the server.
func usage() {
	fmt.Println("Usage:")
	fmt.Println("./spacecombatd -config=[file] for configuration file to use (development/production)")
	fmt.Println("./spacecombatd -store=memory to run against an in-process store instead of postgres")
}

// main :
// Start the server: wire the persistent store, bootstrap the
// runtime (caches, lock manager, battle engine, scheduler), and
// serve the status endpoint until interrupted.
func main() {
	help := flag.Bool("h", false, "Print usage")
	conf := flag.String("config", "", "Configuration file to customize app behavior (development/production)")
	storeKind := flag.String("store", "postgres", "Persistent store backend to use (postgres/memory)")

	flag.Parse()

	if *help {
		usage()
	}

	trueConf := ""
	if conf != nil {
		trueConf = *conf
	}
	metadata := arguments.Parse(trueConf)

	log := logger.NewStdLogger(metadata.InstanceID, metadata.PublicIPv4)

	defer func() {
		err := recover()
		if err != nil {
			stack := string(debug.Stack())
			log.Trace(logger.Fatal, "main", fmt.Sprintf("app crashed after error: %v (stack: %s)", err, stack))
		}

		log.Release()
	}()

	st := newStore(*storeKind, log)

	rt := runtime.NewRuntime(st, log, metadata.Port)

	err := rt.Serve()
	if err != nil {
		panic(fmt.Errorf("unexpected error while listening to port %d: %v", metadata.Port, err))
	}
}

// newStore builds the persistent store backend named by
// `kind`, defaulting to the postgres-backed implementation
// the teacher's own `cmd/oglike_server/main.go` always wires,
// with an in-memory fallback for local/offline runs.
func newStore(kind string, log logger.Logger) store.Store {
	if kind == "memory" {
		return store.NewMemStore()
	}

	dbase := db.NewPool(log)
	return store.NewPGStore(dbase)
}
