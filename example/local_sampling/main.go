package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/donetkit/contrib-log/glog"
	"github.com/donetkit/contrib-sampling/tracer"
	"github.com/donetkit/contrib-sampling/tracer/httptrace"
	"github.com/donetkit/contrib-sampling/tracer/plugins"
	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	service     = "local-sampling-demo"
	environment = "development" // "production" "development"
)

func main() {
	log := glog.New()

	rulesPath := "example/local_sampling/sampling-rules.json"
	if len(os.Args) > 1 {
		rulesPath = os.Args[1]
	}

	strategy, err := tracer.NewLocalStrategy(tracer.WithManifestPath(rulesPath), tracer.WithLogger(log))
	if err != nil {
		log.Error(err.Error())
		return
	}

	tp, err := tracer.NewTracerProvider(service, "127.0.0.1", environment, 6831,
		tracer.NewLocalSamplerFromStrategy(service, strategy), plugins.HostMetadata())
	if err != nil {
		log.Error(err.Error())
		return
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	traceServer := tracer.New(tracer.WithName(service), tracer.WithProvider(tp))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok\n")
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "Hello, world!\n")
	})

	srv := &http.Server{
		Addr:    ":7777",
		Handler: httptrace.NewHandler(mux, traceServer, "demo"),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err.Error())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			stats, _ := json.Marshal(strategy.Snapshots())
			log.Infof("sampling statistics: %s", stats)
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = srv.Shutdown(shutdownCtx)
			_ = traceServer.Stop(shutdownCtx)
			cancel()
			return
		}
	}
}
