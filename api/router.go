package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/malwarebo/invoicer/middleware"
)

const webhookMaxBodyBytes int64 = 256 << 10

type Handlers struct {
	Clients   *ClientHandler
	Invoices  *InvoiceHandler
	Public    *PublicHandler
	Webhooks  *WebhookHandler
	Dashboard *DashboardHandler
	Health    *HealthHandler
}

type RouterConfig struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// NewRouter wires every route. Public and API routes share the per-IP rate
// limit; only /api/v1 requires a bearer token. The webhook route is neither
// rate limited nor authenticated since the signature check guards it.
func NewRouter(h Handlers, auth *middleware.AuthMiddleware, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.CorrelationMiddleware)
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.MetricsMiddleware)
	router.Use(middleware.HeadersMiddleware)
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	router.Use(middleware.RecoveryMiddleware)

	router.HandleFunc("/health", h.Health.HandleHealth).Methods(http.MethodGet)

	webhooks := router.PathPrefix("/webhooks").Subrouter()
	webhooks.Use(middleware.RequestSizeLimitMiddleware(webhookMaxBodyBytes))
	webhooks.HandleFunc("/stripe", h.Webhooks.HandleStripeWebhook).Methods(http.MethodPost)

	public := router.NewRoute().Subrouter()
	public.Use(auth.RateLimitMiddleware)
	public.HandleFunc("/i/{token}", h.Public.HandleShow).Methods(http.MethodGet)
	public.HandleFunc("/i/{token}/pdf", h.Public.HandlePDF).Methods(http.MethodGet)
	public.HandleFunc("/pay/{token}", h.Public.HandlePay).Methods(http.MethodPost)
	public.HandleFunc("/pay/{token}/success", h.Public.HandlePaymentSuccess).Methods(http.MethodGet)
	public.HandleFunc("/pay/{token}/cancel", h.Public.HandlePaymentCancel).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(auth.RateLimitMiddleware)
	apiRouter.Use(auth.JWTMiddleware)
	apiRouter.Use(middleware.RequestSizeLimitMiddleware(cfg.MaxBodyBytes))

	apiRouter.HandleFunc("/clients", h.Clients.HandleList).Methods(http.MethodGet)
	apiRouter.HandleFunc("/clients", h.Clients.HandleCreate).Methods(http.MethodPost)
	apiRouter.HandleFunc("/clients/{id}", h.Clients.HandleGet).Methods(http.MethodGet)
	apiRouter.HandleFunc("/clients/{id}", h.Clients.HandleUpdate).Methods(http.MethodPut)
	apiRouter.HandleFunc("/clients/{id}", h.Clients.HandleDelete).Methods(http.MethodDelete)

	apiRouter.HandleFunc("/invoices", h.Invoices.HandleList).Methods(http.MethodGet)
	apiRouter.HandleFunc("/invoices", h.Invoices.HandleCreate).Methods(http.MethodPost)
	apiRouter.HandleFunc("/invoices/next_number", h.Invoices.HandleNextNumber).Methods(http.MethodGet)
	apiRouter.HandleFunc("/invoices/{id}", h.Invoices.HandleGet).Methods(http.MethodGet)
	apiRouter.HandleFunc("/invoices/{id}", h.Invoices.HandleUpdate).Methods(http.MethodPut)
	apiRouter.HandleFunc("/invoices/{id}", h.Invoices.HandleDelete).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/invoices/{id}/duplicate", h.Invoices.HandleDuplicate).Methods(http.MethodPost)
	apiRouter.HandleFunc("/invoices/{id}/mark_sent", h.Invoices.HandleMarkSent).Methods(http.MethodPut)
	apiRouter.HandleFunc("/invoices/{id}/mark_paid", h.Invoices.HandleMarkPaid).Methods(http.MethodPut)
	apiRouter.HandleFunc("/invoices/{id}/cancel", h.Invoices.HandleCancel).Methods(http.MethodPut)
	apiRouter.HandleFunc("/invoices/{id}/pdf", h.Invoices.HandlePDF).Methods(http.MethodGet)

	apiRouter.HandleFunc("/dashboard", h.Dashboard.HandleMetrics).Methods(http.MethodGet)
	apiRouter.HandleFunc("/webhook_events", h.Webhooks.HandleListEvents).Methods(http.MethodGet)
	apiRouter.HandleFunc("/metrics", h.Health.HandleMetrics).Methods(http.MethodGet)

	// Preflight requests carry no credentials; CORSMiddleware answers them.
	router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return router
}
