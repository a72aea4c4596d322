package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"courtbook/internal/app/dto"
	bookingapp "courtbook/internal/app/handlers/booking"
	"courtbook/internal/app/queries"
)

type SlotsHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h SlotsHandler) Available(c *gin.Context) {
	courtID, err := strconv.ParseInt(c.Query("courtId"), 10, 64)
	if err != nil {
		badRequest(c, "courtId must be an integer")
		return
	}
	q := bookingapp.AvailableSlotsQuery{CourtID: courtID, Date: c.Query("date")}
	result, err := queries.Ask[bookingapp.AvailableSlotsQuery, []dto.DaySlot](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ SlotsHTTP = SlotsHandler{}
