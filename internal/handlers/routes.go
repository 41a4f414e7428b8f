package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/premiumpay/premium-pay-api/internal/middleware"
	"github.com/premiumpay/premium-pay-api/internal/services"
)

// RegisterRoutes mounts /api/login and the /api/{user,admin,super} groups.
func RegisterRoutes(r gin.IRouter, h *Handler, auth *middleware.Auth) {
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "premium pay")
	})

	api := r.Group("/api")
	api.POST("/login", h.LoginAny)

	for _, kind := range services.Kinds() {
		group := api.Group("/" + kind.Name)
		group.POST("/login", h.Login(kind))

		managed := group.Group("", auth.SessionGuard(), middleware.RequireRole(kind.Managers...))
		{
			managed.GET("/all", h.List(kind))
			managed.GET("/get/:id", h.Get(kind))
			managed.POST("/create", h.Create(kind))
			managed.PUT("/update/:id", h.Update(kind))
			managed.DELETE("/delete/:id", h.Delete(kind))
		}
	}
}
