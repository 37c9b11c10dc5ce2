// en pkg/utils/response.go
package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// El API v3 envuelve toda respuesta con cuerpo en el mismo sobre del
// sistema legado: éxito → {"status":code,"result":...}; error →
// {"status":code,"message":"..."}. Los 204 van sin cuerpo.

// SendResult envía una respuesta exitosa con el sobre estándar.
func SendResult(c *gin.Context, statusCode int, result interface{}) {
	c.JSON(statusCode, gin.H{
		"status": statusCode,
		"result": result,
	})
}

// SendError envía una respuesta de error con el sobre estándar.
func SendError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"status":  statusCode,
		"message": message,
	})
}

// --- Helpers específicos para errores comunes ---

func SendBadRequest(c *gin.Context, message string) {
	SendError(c, http.StatusBadRequest, message)
}

func SendNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, message)
}

func SendInternalServerError(c *gin.Context) {
	SendError(c, http.StatusInternalServerError, "Internal server error")
}
