package router

import (
	"net/http"

	"drive-eval/backend/app/controllers"
	"drive-eval/backend/app/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

type Controllers struct {
	HTTP        *controllers.HTTPController
	Auth        *controllers.AuthController
	Accounts    *controllers.AccountController
	Evaluations *controllers.EvaluationController
	Records     *controllers.RecordController
}

func NewRouter(c Controllers, auth *middleware.Auth, limiter *middleware.RateLimiter, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Metrics)

	// public
	r.HandleFunc("/api/health", c.HTTP.Health).Methods(http.MethodGet)
	r.HandleFunc("/api/catalog", c.HTTP.Catalog).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	public := r.PathPrefix("/api/auth").Subrouter()
	public.Use(limiter.Middleware)
	public.HandleFunc("/login", c.Auth.Login).Methods(http.MethodPost)
	public.HandleFunc("/register", c.Auth.Register).Methods(http.MethodPost)

	// admin only
	admin := r.PathPrefix("/api/accounts").Subrouter()
	admin.Use(auth.RequireAdmin)
	admin.HandleFunc("", c.Accounts.List).Methods(http.MethodGet)
	admin.HandleFunc("/{username}", c.Accounts.Update).Methods(http.MethodPut)

	// authenticated
	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth.RequireAuth)
	api.HandleFunc("/me", c.Auth.Me).Methods(http.MethodGet)

	api.HandleFunc("/session", c.Evaluations.Get).Methods(http.MethodGet)
	api.HandleFunc("/session", c.Evaluations.Start).Methods(http.MethodPost)
	api.HandleFunc("/session", c.Evaluations.Cancel).Methods(http.MethodDelete)
	api.HandleFunc("/session/errors", c.Evaluations.Toggle).Methods(http.MethodPost)
	api.HandleFunc("/session/undo", c.Evaluations.Undo).Methods(http.MethodPost)
	api.HandleFunc("/session/notes", c.Evaluations.Notes).Methods(http.MethodPut)
	api.HandleFunc("/session/complete", c.Evaluations.Complete).Methods(http.MethodPost)

	api.HandleFunc("/records", c.Records.List).Methods(http.MethodGet)
	api.HandleFunc("/records/export.xlsx", c.Records.XLSX).Methods(http.MethodGet)
	api.HandleFunc("/records/{id:[0-9]+}", c.Records.Get).Methods(http.MethodGet)
	api.HandleFunc("/records/{id:[0-9]+}", c.Records.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/records/{id:[0-9]+}/pdf", c.Records.PDF).Methods(http.MethodGet)

	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "If-None-Match", "X-Request-ID"},
		ExposedHeaders:   []string{"ETag", "X-Request-ID", "Content-Disposition"},
		AllowCredentials: false,
	}).Handler(r)
}
