package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/grafana/dskit/services"
	"github.com/grafana/dskit/signals"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"

	"github.com/fluxgraph/fluxgraph/cmd/fluxgraphd/build"
	"github.com/fluxgraph/fluxgraph/parent"
	"github.com/fluxgraph/fluxgraph/playback"
)

const appName = "fluxgraphd"

// App is the root datastructure: a config, the demo pipeline it builds
// and runs, and the HTTP server that exposes its status, metrics and
// build info.
type App struct {
	cfg    Config
	logger log.Logger

	runID    string
	pipeline *parent.Pipeline
	router   *mux.Router
	server   *http.Server
}

// New builds an App from cfg: the demo pipeline and the HTTP router, but
// does not yet start either — call Run for that.
func New(cfg Config, logger log.Logger) (*App, error) {
	a := &App{
		cfg:      cfg,
		logger:   logger,
		runID:    uuid.NewString(),
		pipeline: buildDemoPipeline(cfg.PipelineName, logger),
		router:   mux.NewRouter(),
	}

	a.router.Path("/ready").Methods(http.MethodGet).HandlerFunc(a.readyHandler)
	a.router.Path("/status").Methods(http.MethodGet).HandlerFunc(a.statusHandler)
	a.router.Path("/build_info").Methods(http.MethodGet).HandlerFunc(a.buildInfoHandler)
	a.router.Path("/metrics").Handler(promhttp.Handler())

	a.server = &http.Server{
		Addr:    a.cfg.HTTPListenNetwork(),
		Handler: a.router,
	}

	return a, nil
}

// Run starts the pipeline and the HTTP server, installs a SIGINT/SIGTERM
// handler that drains both, and blocks until they stop.
func (a *App) Run() error {
	ctx := context.Background()
	if err := a.pipeline.Start(ctx); err != nil {
		return fmt.Errorf("starting pipeline: %w", err)
	}
	level.Info(a.logger).Log("msg", "pipeline started", "pipeline", a.cfg.PipelineName, "run_id", a.runID)

	httpSvc := newHTTPService(a.server, a.logger)
	sm, err := services.NewManager(a.pipeline.Service(), httpSvc)
	if err != nil {
		return fmt.Errorf("building service manager: %w", err)
	}

	healthy := func() { level.Info(a.logger).Log("msg", "fluxgraphd started", "addr", a.cfg.HTTPListenNetwork()) }
	stopped := func() { level.Info(a.logger).Log("msg", "fluxgraphd stopped") }
	serviceFailed := func(svc services.Service) {
		sm.StopAsync()
		cause := svc.FailureCase()
		if errors.Is(cause, context.Canceled) {
			return
		}
		level.Error(a.logger).Log("msg", "service failed", "err", cause)
	}
	sm.AddListener(services.NewManagerListener(healthy, stopped, serviceFailed))

	handler := signals.NewHandler(a.logger)
	go func() {
		handler.Loop()
		if a.cfg.ShutdownDelay > 0 {
			time.Sleep(a.cfg.ShutdownDelay)
		}
		sm.StopAsync()
	}()

	if err := a.pipeline.ChangePlaybackState(playback.Playing); err != nil {
		return fmt.Errorf("starting playback: %w", err)
	}

	if err := sm.StartAsync(context.Background()); err != nil {
		return fmt.Errorf("starting services: %w", err)
	}
	return sm.AwaitStopped(context.Background())
}

func (a *App) readyHandler(w http.ResponseWriter, _ *http.Request) {
	select {
	case <-a.pipeline.Node.ReadyChan():
		http.Error(w, "ready", http.StatusOK)
	default:
		http.Error(w, "pipeline is not yet playing", http.StatusServiceUnavailable)
	}
}

func (a *App) statusHandler(w http.ResponseWriter, _ *http.Request) {
	msg := bytes.Buffer{}
	msg.WriteString(version.Print(appName) + "\n")
	msg.WriteString(fmt.Sprintf("run id: %s\npipeline: %s\ncurrent state: %s\n\n", a.runID, a.cfg.PipelineName, a.pipeline.Current()))

	names := a.pipeline.Children()
	sort.Strings(names)

	tw := table.NewWriter()
	tw.SetOutputMirror(&msg)
	tw.AppendHeader(table.Row{"child", "state", "in quorum"})
	for _, name := range names {
		state, inQuorum, ok := a.pipeline.ChildState(name)
		if !ok {
			continue
		}
		tw.AppendRows([]table.Row{{name, state, inQuorum}})
	}
	tw.AppendSeparator()
	tw.Render()

	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write(msg.Bytes()); err != nil {
		level.Error(a.logger).Log("msg", "error writing status response", "err", err)
	}
}

func (a *App) buildInfoHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(build.GetVersion()); err != nil {
		level.Error(a.logger).Log("msg", "error writing build info response", "err", err)
	}
}

// newHTTPService wraps srv as a dskit/services.Service: running starts
// ListenAndServe in the background and blocks on either ctx or the
// server exiting on its own; stopping calls Shutdown and waits for
// ListenAndServe to return.
func newHTTPService(srv *http.Server, logger log.Logger) services.Service {
	done := make(chan error, 1)

	running := func(ctx context.Context) error {
		go func() {
			err := srv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			done <- err
		}()

		select {
		case <-ctx.Done():
			return nil
		case err := <-done:
			if err != nil {
				return err
			}
			return fmt.Errorf("http server stopped unexpectedly")
		}
	}

	stopping := func(_ error) error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			level.Error(logger).Log("msg", "error shutting down http server", "err", err)
		}
		<-done
		return nil
	}

	return services.NewBasicService(nil, running, stopping)
}
