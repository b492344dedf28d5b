package router

import (
	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	apiHandler "github.com/fastygo/ledger/api/handler"
)

type Handlers struct {
	Account  *apiHandler.AccountHandler
	Transfer *apiHandler.TransferHandler
	Workflow *apiHandler.WorkflowHandler
	Health   *apiHandler.HealthHandler
}

type Options struct {
	EnableMetrics bool
	Registry      *prometheus.Registry
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler, opts Options) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	if opts.EnableMetrics && opts.Registry != nil {
		metricsHandler := fasthttpadaptor.NewFastHTTPHandler(
			promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
		r.GET("/metrics", metricsHandler)
	}

	if authMiddleware == nil {
		authMiddleware = func(next fasthttp.RequestHandler) fasthttp.RequestHandler { return next }
	}

	// Account routes
	r.POST("/api/v1/accounts", authMiddleware(handlers.Account.Open))
	r.GET("/api/v1/accounts/{id}", handlers.Account.Get)
	r.GET("/api/v1/accounts/{id}/balance", handlers.Account.Balance)
	r.GET("/api/v1/accounts/{id}/audit", handlers.Account.Audit)
	r.POST("/api/v1/accounts/{id}/credit", authMiddleware(handlers.Account.Credit))
	r.POST("/api/v1/accounts/{id}/debit", authMiddleware(handlers.Account.Debit))
	r.POST("/api/v1/accounts/{id}/freeze", authMiddleware(handlers.Account.Freeze))
	r.POST("/api/v1/accounts/{id}/unfreeze", authMiddleware(handlers.Account.Unfreeze))
	r.POST("/api/v1/accounts/{id}/close", authMiddleware(handlers.Account.Close))

	// Transfer routes
	r.POST("/api/v1/transfers", authMiddleware(handlers.Transfer.Create))
	r.GET("/api/v1/transfers/{id}", handlers.Transfer.Get)

	// Workflow monitoring
	r.GET("/api/v1/workflows/{id}", handlers.Workflow.Get)

	return r
}
