// Copyright (c) 2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/jeffkinnison/shadho/pkg/common/background"
	"github.com/jeffkinnison/shadho/pkg/common/config"
	"github.com/jeffkinnison/shadho/pkg/common/metrics"
	"github.com/jeffkinnison/shadho/pkg/heuristics"
	"github.com/jeffkinnison/shadho/pkg/placement"
	"github.com/jeffkinnison/shadho/pkg/scheduler"
	"github.com/jeffkinnison/shadho/pkg/searchspace"
	"github.com/jeffkinnison/shadho/pkg/storage"
	"github.com/jeffkinnison/shadho/pkg/storage/memstore"
	"github.com/jeffkinnison/shadho/pkg/storage/mysql"
)

var (
	version string
	app     = kingpin.New("shadho", "Distributed hyperparameter optimization")

	debug = app.Flag(
		"debug", "enable debug logging").
		Short('d').
		Default("false").
		Envar("SHADHO_DEBUG").
		Bool()

	cfgFiles = app.Flag(
		"config",
		"YAML config files (can be provided multiple times to merge configs)").
		Short('c').
		ExistingFiles()

	checkpointPath = app.Flag(
		"checkpoint",
		"Checkpoint file path (storage.checkpoint override) "+
			"(set $SHADHO_CHECKPOINT to override)").
		Envar("SHADHO_CHECKPOINT").
		String()

	httpPort = app.Flag(
		"http-port", "Port serving the metrics endpoint, 0 disables it").
		Default("0").
		Envar("SHADHO_HTTP_PORT").
		Int()

	workers = app.Flag(
		"workers", "Number of local objective workers").
		Default("1").
		Envar("SHADHO_WORKERS").
		Int()

	specFile = app.Arg(
		"spec", "Search space specification (YAML)").
		Required().
		ExistingFile()

	command = app.Arg(
		"command",
		"Objective command; receives params as JSON on stdin and prints "+
			"the loss to stdout").
		Required().
		String()

	commandArgs = app.Arg("args", "Objective command arguments").
			Strings()
)

func main() {
	app.Version(version)
	app.HelpFlag.Short('h')
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log.SetFormatter(&log.JSONFormatter{})
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	var cfg Config
	if len(*cfgFiles) > 0 {
		if err := config.Parse(&cfg, *cfgFiles...); err != nil {
			log.WithError(err).Fatal("Cannot parse config")
		}
	}
	if *checkpointPath != "" {
		cfg.Storage.Checkpoint = *checkpointPath
	}
	if cfg.Scheduler.MaxQueuedTasks <= 0 {
		cfg.Scheduler.MaxQueuedTasks = 1
	}

	rootScope, scopeCloser, mux := metrics.InitMetricScope(
		&cfg.Metrics, "shadho", metrics.TallyFlushInterval)
	defer scopeCloser.Close()
	if *httpPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", *httpPort)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.WithError(err).Error("Metrics endpoint failed")
			}
		}()
	}

	store, err := openStore(&cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("Cannot open storage backend")
	}
	defer store.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	db := storage.NewSearchDB(
		store,
		heuristics.NewGPEstimator(rng),
		cfg.Scheduler.UpdateFrequency)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := buildForest(ctx, db, *specFile); err != nil {
		log.WithError(err).Fatal("Cannot build the search forest")
	}

	ccs := make([]*placement.ComputeClass, 0, len(cfg.ComputeClasses))
	for _, ccCfg := range cfg.ComputeClasses {
		cc := placement.NewComputeClass(
			ccCfg.Name, ccCfg.Resource, ccCfg.Value, ccCfg.MaxQueuedTasks)
		ccs = append(ccs, cc)
	}

	dispatcher := scheduler.NewExecDispatcher(*command, *commandArgs, *workers)
	defer dispatcher.Stop()

	assigner := placement.NewAssigner(
		cfg.Scheduler.UseComplexity,
		cfg.Scheduler.UsePriority,
		placement.NewMetrics(rootScope.SubScope("placement")))
	sched := scheduler.NewScheduler(
		cfg.Scheduler,
		db,
		dispatcher,
		assigner,
		ccs,
		rng,
		scheduler.NewMetrics(rootScope.SubScope("scheduler")))

	progress, err := background.NewManager(background.Work{
		Name:   "progress",
		Func:   reportProgress(ctx, db),
		Period: 30 * time.Second,
	})
	if err != nil {
		log.WithError(err).Fatal("Cannot start progress reporting")
	}
	progress.Start()
	defer progress.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithField("signal", sig).Info("Stopping search")
		cancel()
	}()

	optimum, found, err := sched.Run(ctx)
	if err != nil {
		log.WithError(err).Fatal("Search failed")
	}
	printOptimum(optimum, found)
}

func openStore(cfg *StorageConfig) (storage.EntityStore, error) {
	if cfg.Backend == backendMySQL {
		return mysql.NewStore(&cfg.MySQL)
	}
	return memstore.NewStore(cfg.Checkpoint)
}

// buildForest splits the spec into models unless a resumed checkpoint
// already holds them.
func buildForest(ctx context.Context, db *storage.SearchDB, specFile string) error {
	models, err := db.Models(ctx)
	if err != nil {
		return err
	}
	if len(models) > 0 {
		log.WithField("models", len(models)).Info("Resuming existing search")
		return nil
	}

	data, err := os.ReadFile(specFile)
	if err != nil {
		return err
	}
	spec, err := searchspace.ParseSpec(data)
	if err != nil {
		return err
	}
	_, err = db.MakeForest(ctx, spec)
	return err
}

// reportProgress periodically logs the best trial seen so far.
func reportProgress(ctx context.Context, db *storage.SearchDB) func(*atomic.Bool) {
	return func(_ *atomic.Bool) {
		optimum, found, err := db.Optimal(ctx)
		if err != nil || !found {
			return
		}
		log.WithFields(log.Fields{
			"loss":   optimum.Loss,
			"params": optimum.Params.String(),
		}).Info("Best trial so far")
	}
}

func printOptimum(optimum *storage.Optimum, found bool) {
	if !found {
		fmt.Println("no trials completed, no optimum found")
		return
	}
	params, err := json.Marshal(optimum.Params)
	if err != nil {
		params = []byte(optimum.Params.String())
	}
	fmt.Printf("optimal loss: %g\nparams: %s\n", optimum.Loss, params)
	if len(optimum.Extra) > 0 {
		if extra, err := json.Marshal(optimum.Extra); err == nil {
			fmt.Printf("metrics: %s\n", extra)
		}
	}
}
