package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	chathandler "github.com/sahayata/saathi/backend/internal/handler/chat"
	crisishandler "github.com/sahayata/saathi/backend/internal/handler/crisis"
	moodhandler "github.com/sahayata/saathi/backend/internal/handler/mood"
	notificationshandler "github.com/sahayata/saathi/backend/internal/handler/notifications"
	privacyhandler "github.com/sahayata/saathi/backend/internal/handler/privacy"
	"github.com/sahayata/saathi/backend/internal/middleware"
	chatservice "github.com/sahayata/saathi/backend/internal/service/chat"
	escalationservice "github.com/sahayata/saathi/backend/internal/service/escalation"
	"github.com/sahayata/saathi/backend/internal/service/pipeline"
	privacyservice "github.com/sahayata/saathi/backend/internal/service/privacy"
	"github.com/sahayata/saathi/backend/internal/store"
	"github.com/sahayata/saathi/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(
	controller *pipeline.Controller,
	conversations *chatservice.Service,
	privacy *privacyservice.Service,
	directory escalationservice.Directory,
	data store.DataStore,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)
	r.Use(middleware.WithIdentity)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := data.Ping(r.Context()); err != nil {
			utils.RespondError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		chathandler.New(controller, conversations, privacy).RegisterRoutes(api)
		crisishandler.New(controller).RegisterRoutes(api)
		moodhandler.New(controller, privacy, data).RegisterRoutes(api)
		privacyhandler.New(privacy).RegisterRoutes(api)
		notificationshandler.New(data, directory).RegisterRoutes(api)
	})

	return r
}
