package http

import "github.com/gin-gonic/gin"

func RegisterAPIRoutes(r *gin.Engine, handler *DocumentHandler) {
	api := r.Group("/api/v3")
	{
		api.GET("/status", handler.Status)
		api.GET("/lastModified", handler.LastModified)

		api.GET("/:collection", handler.ListDocuments)
		api.POST("/:collection", handler.CreateDocument)
		api.GET("/:collection/:identifier", handler.GetDocument)
		api.PUT("/:collection/:identifier", handler.ReplaceDocument)
		api.PATCH("/:collection/:identifier", handler.PatchDocument)
		api.DELETE("/:collection/:identifier", handler.DeleteDocument)
	}
}
