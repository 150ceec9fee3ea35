package router

import (
	"net/http"

	"chat-routing-backend/internal/api"
	"chat-routing-backend/internal/api/endpoints"
	"chat-routing-backend/internal/api/middleware"
)

func AutomationRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		automationEndpoints := endpoints.NewAutomationEndpoints(s.Services().Sweeper)
		mux.HandleFunc(prefix+"/sweep", s.MakeHTTPHandleFunc(automationEndpoints.Sweep, middleware.ValidateServiceJWT))
	}
}
