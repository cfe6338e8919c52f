package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yoockh/resumedesk/internal/api/handlers"
	"github.com/yoockh/resumedesk/internal/api/middleware"
)

type Deps struct {
	Router  gin.HandlerFunc // access router, runs before every page/API route
	Limiter gin.HandlerFunc // optional

	Auth    *handlers.AuthHandler
	Profile *handlers.ProfileHandler
	Resume  *handlers.ResumeHandler
	Live    *handlers.LiveHandler

	Gatherer prometheus.Gatherer
	// Ready reports whether backing stores are reachable.
	Ready func(ctx context.Context) error
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if d.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	chain := []gin.HandlerFunc{d.Router}
	if d.Limiter != nil {
		chain = append(chain, d.Limiter)
	}
	r.NoRoute(append(chain, handlers.NotFound)...)

	app := r.Group("/", chain...)
	app.GET("/", handlers.Landing)

	app.POST("/auth/session", d.Auth.Session)
	app.POST("/auth/logout", d.Auth.Logout)

	app.GET("/onboarding", d.Profile.Onboarding)
	app.POST("/onboarding", d.Profile.Onboard)

	cand := app.Group("/candidate", middleware.RequireCandidate())
	cand.GET("/dashboard", d.Resume.CandidateDashboard)
	cand.GET("/profile", d.Profile.Me)
	cand.PUT("/profile", d.Profile.Update)
	cand.POST("/resumes", d.Resume.Upload)
	cand.GET("/resumes/:id/url", d.Resume.CandidateURL)
	cand.GET("/live", d.Live.Candidate)

	rev := app.Group("/reviewer", middleware.RequireReviewer())
	rev.GET("/dashboard", d.Resume.ReviewerDashboard)
	rev.GET("/profile", d.Profile.Me)
	rev.PUT("/profile", d.Profile.Update)
	rev.GET("/resumes/:id", d.Resume.Get)
	rev.PUT("/resumes/:id/review", d.Resume.Review)
	rev.GET("/resumes/:id/url", d.Resume.ReviewerURL)
	rev.GET("/resumes/:id/download", d.Resume.Download)
	rev.GET("/live", d.Live.Reviewer)
}
