package server

import (
	"canvassync/internal/broadcast"
	"canvassync/internal/collab"
	"canvassync/internal/config"
	"canvassync/internal/db"
	"canvassync/internal/discovery"
	"canvassync/internal/events"
	"canvassync/internal/metrics"
	"canvassync/internal/rooms"
	"canvassync/internal/wshub"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func Run() error {
	appCfg := config.Load()
	if err := configureLogging(appCfg); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	registry := rooms.NewRegistry()
	roomMetrics := metrics.New(reg, registry)

	bus := events.NewBus()
	hub := wshub.NewHub()
	srv := &Server{
		Engine:  collab.NewEngine(registry, hub, bus),
		Hub:     hub,
		Feed:    broadcast.NewFeed(broadcast.DefaultBuffer),
		Metrics: reg,
		Config:  appCfg,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := new(sync.WaitGroup)

	observers := []events.Observer{roomMetrics, srv.Feed}

	// Optional activity journal
	if appCfg.DatabaseURL != "" {
		database, err := db.Connect(appCfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Warn("database unavailable, running without journal")
		} else {
			defer database.Close()
			if err := database.Migrate(); err != nil {
				log.WithError(err).Error("migration failed")
			}
			srv.DB = database
			journal := db.NewJournal(1000)
			observers = append(observers, journal)
			wg.Add(1)
			go func() {
				defer wg.Done()
				journal.Run(ctx, database)
			}()
		}
	} else {
		log.Info("DATABASE_URL not set, running without journal")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		bus.Run(ctx, observers...)
	}()

	if appCfg.MDNSEnabled {
		port, _ := strconv.Atoi(appCfg.Port)
		adv, err := discovery.Advertise(appCfg.MDNSInstance, port)
		if err != nil {
			log.WithError(err).Warn("mDNS advertisement failed")
		} else {
			defer adv.Shutdown()
		}
	}

	httpServer := &http.Server{
		Addr:    "0.0.0.0:" + appCfg.Port,
		Handler: srv.Routes(),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("port", appCfg.Port).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-exit:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-serveErr:
		cancel()
		wg.Wait()
		return fmt.Errorf("serving http: %w", err)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	// Shutdown does not wait for hijacked websocket connections
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	cancel()
	wg.Wait()
	return nil
}

// Routes builds the HTTP surface of the sync server.
func (s *Server) Routes() http.Handler {
	gatherer := s.Metrics
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := mux.NewRouter()
	r.Use(accessLog)

	r.Methods(http.MethodGet).Path("/ws").HandlerFunc(s.handleWS)
	r.Methods(http.MethodPost).Path("/rooms").HandlerFunc(s.handleCreateRoom)
	r.Methods(http.MethodGet).Path("/rooms").HandlerFunc(s.handleListRooms)
	r.Methods(http.MethodGet).Path("/rooms/{room}").HandlerFunc(s.handleGetRoom)
	r.Methods(http.MethodGet).Path("/events").HandlerFunc(s.handleEvents)
	r.Methods(http.MethodGet).Path("/health").HandlerFunc(s.handleHealth)
	r.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Methods(http.MethodGet).Path("/analytics/rooms").HandlerFunc(s.handleAnalyticsRooms)
	r.Methods(http.MethodGet).Path("/analytics/rooms/{room}").HandlerFunc(s.handleAnalyticsRoom)
	r.Methods(http.MethodGet).Path("/analytics/rooms/{room}/timeline").HandlerFunc(s.handleAnalyticsTimeline)
	r.Methods(http.MethodGet).Path("/analytics/drops").HandlerFunc(s.handleAnalyticsDrops)
	return r
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"url":      r.URL.String(),
			"status":   m.Code,
			"duration": m.Duration,
			"bytes":    m.Written,
		}).Debug("handled")
	})
}

func configureLogging(cfg config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing LOG_LEVEL: %w", err)
	}
	logrus.SetLevel(level)
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
