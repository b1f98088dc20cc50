package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/docgraph/docgraph/pkg/resilience"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveAskRate float64
	serveBurst   int
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().Float64Var(&serveAskRate, "ask-rate", 1, "questions per second before answering 429 (0 disables)")
	serveCmd.Flags().IntVar(&serveBurst, "ask-burst", 4, "questions allowed in a burst")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the question answering HTTP API",
	Long: `Serve the HTTP API:

  POST /api/ask              {"question": "...", "mode": "graph|vector"}
  GET  /api/health
  GET  /api/stats
  GET  /api/documents        ?offset=&limit=
  GET  /api/documents/{id}
  GET  /metrics`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a := newApp(settings, logger)
	defer a.close(context.Background())

	g, err := a.graphStore()
	if err != nil {
		return err
	}
	svc, err := a.rag()
	if err != nil {
		return err
	}
	s := &server{asker: svc, stats: g, docs: g.Documents(), metrics: a.metrics.Handler(), log: a.log}
	if serveAskRate > 0 {
		s.limiter = resilience.NewLimiter(resilience.LimiterOpts{Rate: serveAskRate, Burst: serveBurst})
	}

	srv := &http.Server{
		Addr:         serveAddr,
		Handler:      s.handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("api server starting", "addr", serveAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
