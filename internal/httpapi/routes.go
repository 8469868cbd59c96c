package httpapi

import (
	"call-console/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register mounts the console API under /v1. authMW must put the operator session
// in the request context.
// Keep this free of business logic.
func Register(r gin.IRouter, h Handlers, authMW gin.HandlerFunc) {
	v1 := r.Group("/v1")
	v1.Use(ClientInfo())

	v1.POST("/auth/login", h.Login)
	v1.POST("/auth/refresh", h.Refresh)

	p := v1.Group("")
	p.Use(authMW, rbac.RequireSession())
	{
		p.GET("/me", h.Me)
		p.POST("/auth/logout", h.Logout)

		// CALLS routes
		c := p.Group("/calls")
		c.Use(rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleAdmin))
		{
			c.GET("/statuses", h.CallStatuses)
			c.GET("/active", h.ActiveCall)
			c.POST("", h.StartCall)
			c.POST("/:call_id/status", h.UpdateCallStatus)
		}

		// SCRIPTS routes
		s := p.Group("/scripts")
		s.Use(rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleAdmin))
		{
			s.GET("", h.GetScript)
			s.PATCH("", h.EditScript)
			s.POST("/save", h.SaveScript)
		}

		// LOGS routes; viewers included
		l := p.Group("/logs")
		l.Use(rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleAdmin, rbac.RoleViewer))
		{
			l.GET("", h.LoadLogs)
			l.GET("/view", h.ViewLogs)
			l.POST("/poll", h.PollLogs)
			l.POST("/merge", h.MergeLogs)
			l.GET("/export", h.ExportLogs)
		}

		// REPORTS routes
		rep := p.Group("/reports")
		rep.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleViewer))
		{
			rep.GET("/calls", h.CallsReport)
			rep.GET("/operators", h.OperatorsReport)
		}
	}
}
