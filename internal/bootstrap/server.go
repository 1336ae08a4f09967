package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/valetmatch/valetmatch/api"
	"github.com/valetmatch/valetmatch/config"
)

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails.
func Run(ctx context.Context, cfg *config.Config, bookings *api.BookingHandler, valeters *api.ValeterHandler, approvals *api.ApprovalHandler) error {
	router := gin.New()
	router.Use(gin.Recovery())

	bookings.Register(router.Group("/api/bookings"))
	valeters.Register(router.Group("/api/valeter", api.ValeterAuth(cfg.Auth.JWTSecret)))
	approvals.Register(router.Group("/api/approve-payment"))

	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}
