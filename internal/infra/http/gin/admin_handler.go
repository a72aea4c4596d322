package ginserver

import (
	"context"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"courtbook/internal/app/dto"
)

// Sweeper runs one expiry pass on demand.
type Sweeper interface {
	Sweep(ctx context.Context) (dto.SweepResult, error)
}

type AdminHandler struct {
	Sweeper Sweeper
	Logger  *slog.Logger
}

func (h AdminHandler) Sweep(c *gin.Context) {
	if _, ok := requireRole(c, RoleAdmin); !ok {
		return
	}
	result, err := h.Sweeper.Sweep(c.Request.Context())
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AdminHTTP = AdminHandler{}
