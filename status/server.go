// Package status serves a read-only JSON view of the timer over HTTP.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"lautenbacher.net/gowave/config"
)

// presetResponse lists one preset button for GET /api/presets.
type presetResponse struct {
	Bit     uint8  `json:"bit"`
	Key     string `json:"key"`
	Name    string `json:"name"`
	Minutes uint8  `json:"minutes"`
	Seconds uint8  `json:"seconds"`
}

func NewRouter(tracker *Tracker, conf *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.Use(RateLimiter(rate.Limit(conf.Status.RateLimit), conf.Status.Burst))
	{
		api.GET("/status", GetStatus(tracker))
		api.GET("/presets", GetPresets(conf.Presets))
	}
	return r
}

// GetStatus handles GET /api/status.
func GetStatus(tracker *Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, tracker.Snapshot())
	}
}

// GetPresets handles GET /api/presets.
func GetPresets(presets []config.PresetConfig) gin.HandlerFunc {
	response := make([]presetResponse, 0, len(presets))
	for _, p := range presets {
		response = append(response, presetResponse{
			Bit:     p.Bit,
			Key:     p.Key,
			Name:    p.Name,
			Minutes: p.Minutes,
			Seconds: p.Seconds,
		})
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, response)
	}
}

// Serve runs the status server until ctx is done.
func Serve(ctx context.Context, tracker *Tracker, conf *config.Config) error {
	server := &http.Server{
		Addr:              conf.Status.Listen,
		Handler:           NewRouter(tracker, conf),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("Status server listening", "addr", conf.Status.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("status server on %s: %w", conf.Status.Listen, err)
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	slog.Info("Status server stopped")
	return nil
}
