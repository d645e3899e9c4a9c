package server

import (
	"github.com/go-chi/chi/v5"
)

func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/health", s.health)
	r.Get("/agent", s.listAgents)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Patch("/", s.updateSession)
			r.Delete("/", s.deleteSession)

			r.Get("/message", s.getMessages)
			r.Post("/message", s.sendMessage)
			r.Get("/message/ids", s.getMessageIDs)
			r.Post("/abort", s.abortSession)
		})
	})

	r.Get("/message/{messageID}", s.getMessage)

	r.Route("/window/{windowID}/session", func(r chi.Router) {
		r.Get("/", s.getActiveSession)
		r.Put("/", s.activateSession)
		r.Delete("/", s.deactivateSession)
	})

	r.Get("/event", s.events)
	r.Get("/ws", s.websocketEvents)
}
