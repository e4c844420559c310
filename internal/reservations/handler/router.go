package handler

import "github.com/julienschmidt/httprouter"

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/reservation", h.List)
	router.POST("/reservation", h.Create)
	router.GET("/reservation/:id", h.GetByID)
	router.PUT("/reservation/:id", h.Update)
	router.DELETE("/reservation/:id/cancel", h.Cancel)
	router.POST("/reservation/:id/confirm", h.Confirm)
	router.POST("/reservation/:id/approve", h.Confirm)

	router.GET("/availability", h.GetAvailability)
	router.POST("/availability/check", h.CheckAvailability)
}
