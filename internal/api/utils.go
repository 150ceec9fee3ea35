package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"chat-routing-backend/internal/api/middleware"
	"chat-routing-backend/internal/logging"
	"chat-routing-backend/internal/queue"
)

type apiFunc func(http.ResponseWriter, *http.Request) error

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// MakeHTTPHandleFunc runs f on the request queue behind CORS, request
// logging and the given auth middleware. Errors returned by f become JSON
// responses; an *HTTPError keeps its status and message.
func (s *APIServer) MakeHTTPHandleFunc(f apiFunc, authMiddleware ...middleware.Middleware) http.HandlerFunc {
	baseHandler := func(w http.ResponseWriter, r *http.Request) {
		logger := logging.FromContext(r.Context(), s.logger)

		var err error
		if s.requestQueueManager != nil {
			err = s.requestQueueManager.Do(r.Context(), func() error {
				return f(w, r)
			})
		} else {
			err = f(w, r)
		}
		if err == nil {
			return
		}

		var httpErr *HTTPError
		switch {
		case errors.As(err, &httpErr):
			if httpErr.ErrorLog != nil {
				logger.Warn("request failed",
					slog.Int("status", httpErr.StatusCode),
					slog.String("error", httpErr.ErrorLog.Error()),
				)
			}
			WriteJSON(w, httpErr.StatusCode, ApiError{Error: httpErr.Message})
		case errors.Is(err, queue.ErrClosed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			logger.Warn("request not served", slog.String("error", err.Error()))
			WriteJSON(w, http.StatusServiceUnavailable, ApiError{Error: "Service unavailable"})
		default:
			logger.Error("request failed", slog.String("error", err.Error()))
			WriteJSON(w, http.StatusInternalServerError, ApiError{Error: "Internal server error"})
		}
	}

	middlewares := []middleware.Middleware{
		middleware.CORS(s.cors),
		middleware.Logging(s.logger),
	}

	finalHandler := func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		if len(authMiddleware) > 0 {
			middleware.Chain(baseHandler, authMiddleware...)(w, r)
			return
		}
		baseHandler(w, r)
	}

	return middleware.Chain(finalHandler, middlewares...)
}
