package http

import (
	"net/http"
	"time"

	httpmw "github.com/foodfortalk/talk-service/internal/transport/http/middleware"
	"github.com/foodfortalk/talk-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Deps struct {
	Handler        *Handler
	Admin          *AdminHandler
	Auth           httpmw.Authenticator
	AdminToken     string
	WS             http.HandlerFunc
	Metrics        http.Handler
	AllowedOrigins []string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(httputil.MiddlewareRequestID)
	r.Use(httputil.MiddlewareLogging)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{httputil.HeaderRequestID},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.OK(w, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	// the socket authenticates itself so it can answer with close codes
	if d.WS != nil {
		r.Get("/ws", d.WS)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httpmw.ParticipantAuth(d.Auth))
		api.Use(middlewareChi.Timeout(30 * time.Second))

		api.Get("/me", d.Handler.Me)
		api.Get("/presence", d.Handler.Presence)
		api.Get("/participants/{id}", d.Handler.Profile)
		api.Get("/messages/public", d.Handler.PublicMessages)
		api.Route("/conversations/{id}", func(cr chi.Router) {
			cr.Get("/messages", d.Handler.ConversationMessages)
			cr.Post("/read", d.Handler.MarkRead)
		})
	})

	r.Route("/admin/v1", func(ar chi.Router) {
		ar.Use(httpmw.AdminAuth(d.AdminToken))
		ar.Use(middlewareChi.Timeout(30 * time.Second))

		ar.Post("/history/public/clear", d.Admin.ClearPublicHistory)
		ar.Post("/participants", d.Admin.CreateParticipant)
		ar.Route("/participants/{id}", func(pr chi.Router) {
			pr.Get("/", d.Admin.GetParticipant)
			pr.Put("/active", d.Admin.SetActive)
			pr.Put("/agent", d.Admin.AssignAgent)
			pr.Delete("/agent", d.Admin.UnassignAgent)
			pr.Post("/passkey", d.Admin.RegeneratePasskey)
			pr.Post("/token", d.Admin.IssueToken)
		})
	})

	return r
}
