package router

import (
	"net/http"

	"chat-routing-backend/internal/api"
	"chat-routing-backend/internal/api/endpoints"
	"chat-routing-backend/internal/api/middleware"
)

// RoutingRoutes serves the intake callback and the agent facing room
// operations.
func RoutingRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		svc := s.Services()
		routingEndpoints := endpoints.NewRoutingEndpoints(svc.Assigner, svc.Resolver, svc.Store)
		roomEndpoints := endpoints.NewRoomEndpoints(svc.Rooms)

		mux.HandleFunc(prefix+"/rooms/{id}/assignment", s.MakeHTTPHandleFunc(routingEndpoints.Assignment, middleware.ValidateServiceJWT))
		mux.HandleFunc(prefix+"/rooms/{id}/eligibility", s.MakeHTTPHandleFunc(routingEndpoints.Eligibility, middleware.ValidateUserJWT))
		mux.HandleFunc(prefix+"/rooms/{id}/close", s.MakeHTTPHandleFunc(roomEndpoints.Close, middleware.ValidateUserJWT))
		mux.HandleFunc(prefix+"/rooms/{id}/transfer", s.MakeHTTPHandleFunc(roomEndpoints.Transfer, middleware.ValidateUserJWT))
		mux.HandleFunc(prefix+"/attendants/{id}/reconcile", s.MakeHTTPHandleFunc(roomEndpoints.Reconcile, middleware.ValidateUserJWT))
	}
}
