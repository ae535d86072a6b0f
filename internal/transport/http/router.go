package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/Brunomssil/design_platform/internal/handlers"
	authmw "github.com/Brunomssil/design_platform/internal/middleware/auth"
)

type Deps struct {
	AuthHandler   *handlers.AuthHandler
	DesignHandler *handlers.DesignHandler
	SearchHandler *handlers.SearchHandler
	AuthMW        *authmw.Middleware
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/refresh", d.AuthHandler.Refresh)
	v1.POST("/logout", d.AuthHandler.LogOut)

	v1.GET("/search", d.SearchHandler.Search)

	designs := v1.Group("/designs")
	designs.GET("", d.DesignHandler.GetDesigns)
	designs.GET("/:id", d.DesignHandler.GetDesign)
	designs.POST("", d.DesignHandler.CreateDesign, d.AuthMW.RequireLogin)
}
