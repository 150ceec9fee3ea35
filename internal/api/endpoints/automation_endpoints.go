package endpoints

import (
	"context"
	"fmt"
	"net/http"

	"chat-routing-backend/internal/dto"
	"chat-routing-backend/internal/service/automation"
)

type AutomationEndpoints interface {
	Sweep(http.ResponseWriter, *http.Request) error
}

type Sweeper interface {
	Run(ctx context.Context) (automation.SweepResult, error)
}

type automationEndpoints struct {
	sweeper Sweeper
}

func NewAutomationEndpoints(sweeper Sweeper) AutomationEndpoints {
	return &automationEndpoints{sweeper: sweeper}
}

func (h *automationEndpoints) Sweep(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleSweep,
	})
}

func (h *automationEndpoints) handleSweep(w http.ResponseWriter, r *http.Request) error {
	result, err := h.sweeper.Run(r.Context())
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	return WriteJSON(w, http.StatusOK, dto.ToSweepResponse(result))
}
