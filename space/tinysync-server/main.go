package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pingcap-incubator/tinysync/log"
	"github.com/pingcap-incubator/tinysync/space/api"
	"github.com/pingcap-incubator/tinysync/space/config"
	"github.com/pingcap-incubator/tinysync/space/mutator"
	"github.com/pingcap-incubator/tinysync/space/mutator/shapes"
	"github.com/pingcap-incubator/tinysync/space/server"
	"github.com/pingcap-incubator/tinysync/space/storage"
	"github.com/pingcap-incubator/tinysync/space/storage/pebble_storage"
	"github.com/pingcap-incubator/tinysync/space/storage/standalone_storage"
	"github.com/pingcap-incubator/tinysync/space/transaction/mvcc"
)

var (
	configPath = flag.String("config", "", "config file path")
	storeAddr  = flag.String("addr", "", "store address")
	engine     = flag.String("engine", "", "storage engine: badger, pebble or memory")
	dbPath     = flag.String("db", "", "directory path of db")
	logLevel   = flag.String("loglevel", "", "the level of log")
)

var (
	gitHash = "None"
)

const shutdownTimeout = 10 * time.Second

func main() {
	flag.Parse()
	conf, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *storeAddr != "" {
		conf.StoreAddr = *storeAddr
	}
	if *engine != "" {
		conf.Engine = *engine
	}
	if *dbPath != "" {
		conf.DBPath = *dbPath
	}
	if *logLevel != "" {
		conf.LogLevel = *logLevel
	}
	log.SetLevelByString(conf.LogLevel)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	log.Info("gitHash:", gitHash)
	log.Infof("conf %+v", conf)
	if err := conf.Validate(); err != nil {
		log.Fatal(err)
	}
	api.Version = gitHash

	store := createStorage(conf)
	if err := store.Start(); err != nil {
		log.Fatal(err)
	}
	if err := mvcc.Bootstrap(context.Background(), store); err != nil {
		log.Fatal(err)
	}

	registry := mutator.NewRegistry()
	if err := shapes.Register(registry); err != nil {
		log.Fatal(err)
	}
	log.Infof("Registered mutators %v", registry.Names())

	svr := server.NewServer(store, registry)
	handler, err := api.NewHandler(svr, conf)
	if err != nil {
		log.Fatal(err)
	}

	l, err := net.Listen("tcp", conf.StoreAddr)
	if err != nil {
		log.Fatal(err)
	}
	httpServer := &http.Server{Handler: handler}
	shutdown := handleSignal(svr, httpServer)

	if conf.StatusAddr != "" {
		go func() {
			log.Infof("status server listening on %v", conf.StatusAddr)
			// pprof handlers register on the default mux.
			if err := http.ListenAndServe(conf.StatusAddr, nil); err != nil {
				log.Error(err)
			}
		}()
	}

	log.Infof("listening on %v", l.Addr())
	if err := httpServer.Serve(l); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
	<-shutdown
	if err := store.Stop(); err != nil {
		log.Fatal(err)
	}
	log.Info("Server stopped.")
}

func createStorage(conf *config.Config) storage.Storage {
	switch conf.Engine {
	case config.EnginePebble:
		return pebble_storage.NewPebbleStorage(conf)
	case config.EngineMemory:
		return storage.NewMemStorage()
	}
	return standalone_storage.NewStandAloneStorage(conf)
}

// handleSignal stops svr and shuts httpServer down on the first signal. The returned channel is closed once
// in-flight requests have finished.
func handleSignal(svr *server.Server, httpServer *http.Server) <-chan struct{} {
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		defer close(done)
		sig := <-sigCh
		log.Infof("Got signal [%s] to exit.", sig)
		svr.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Errorf("Shutdown: %v", err)
		}
	}()
	return done
}
