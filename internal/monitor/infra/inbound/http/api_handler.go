// Package http contiene los adaptadores de entrada HTTP (Gin) de la API
// de monitorización: el protocolo de consulta V3 compartido por las
// cuatro colecciones.
package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/vigilia/internal/monitor/application"
	"github.com/davicafu/vigilia/internal/monitor/domain"
	"github.com/davicafu/vigilia/pkg/utils"
)

// APIVersion es la versión del protocolo de consulta que expone este
// adaptador.
const APIVersion = "3.0.3"

// DocumentHandler encapsula los endpoints HTTP del protocolo V3. Un solo
// handler sirve a todas las colecciones: la variación por recurso vive en
// el registro de recursos, no en el código del endpoint.
type DocumentHandler struct {
	service  *application.DocumentService
	registry map[string]domain.Resource
	log      *zap.Logger
	version  string
	storage  string
}

// NewDocumentHandler crea un nuevo DocumentHandler. version es la versión
// del servidor y storage el nombre del backend activo; ambos se publican
// en /api/v3/status.
func NewDocumentHandler(service *application.DocumentService, log *zap.Logger, version, storage string) *DocumentHandler {
	return &DocumentHandler{
		service:  service,
		registry: domain.Registry(),
		log:      log,
		version:  version,
		storage:  storage,
	}
}

// resolveResource traduce el segmento :collection al recurso registrado.
// Colección desconocida ⇒ 404 ya enviado.
func (h *DocumentHandler) resolveResource(c *gin.Context) (domain.Resource, bool) {
	name := c.Param("collection")
	res, ok := h.registry[name]
	if !ok {
		utils.SendNotFound(c, "Collection not found")
		return domain.Resource{}, false
	}
	return res, true
}

// ---------------- Handlers ----------------

// ListDocuments endpoint GET /api/v3/:collection
//
// Pipeline completo del protocolo: parseo de parámetros → criterios →
// condición canónica → orden → consulta al storage → decisión de caché →
// paginación → proyección → envoltura.
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	res, ok := h.resolveResource(c)
	if !ok {
		return
	}

	params, err := ParseQueryParameters(c.Request.URL, c.Request.Header, h.log)
	if err != nil {
		var oot *domain.OutOfToleranceError
		if errors.As(err, &oot) {
			utils.SendBadRequest(c, oot.Error())
			return
		}
		utils.SendBadRequest(c, err.Error())
		return
	}

	cond, category := buildCondition(params, h.log)
	if category != nil && res.CategoryField != "" {
		if cond == nil {
			cond = domain.Condition{}
		}
		cond[res.CategoryField] = category
	}

	docs, total, err := h.service.List(c.Request.Context(), res, cond, params.Limit, params.Offset, params.Ascending())
	if err != nil {
		h.log.Error("Error listando documentos",
			zap.String("collection", res.Name),
			zap.Error(err))
		utils.SendInternalServerError(c)
		return
	}

	descriptor := domain.NewCacheDescriptor(docs, res.ExtractTimestamp)
	if notModified(params, descriptor) {
		c.Header("ETag", `"`+descriptor.ETag+`"`)
		c.Status(http.StatusNotModified)
		return
	}

	writeListHeaders(c, params, descriptor, total)
	utils.SendResult(c, http.StatusOK, domain.Project(docs, params.Fields))
}

// GetDocument endpoint GET /api/v3/:collection/:identifier
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	res, ok := h.resolveResource(c)
	if !ok {
		return
	}

	doc, err := h.service.Get(c.Request.Context(), res, c.Param("identifier"))
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			utils.SendNotFound(c, "Document not found")
			return
		}
		h.log.Error("Error recuperando documento",
			zap.String("collection", res.Name),
			zap.Error(err))
		utils.SendInternalServerError(c)
		return
	}

	fields := parseFields(c.Query("fields"))
	utils.SendResult(c, http.StatusOK, domain.ProjectOne(doc, fields))
}

// CreateDocument endpoint POST /api/v3/:collection
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	res, ok := h.resolveResource(c)
	if !ok {
		return
	}

	var doc domain.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		h.log.Warn("Cuerpo JSON inválido en create",
			zap.String("collection", res.Name),
			zap.Error(err))
		utils.SendBadRequest(c, "Malformed JSON body")
		return
	}

	result, err := h.service.Create(c.Request.Context(), res, doc)
	if err != nil {
		h.respondMutationError(c, res, err)
		return
	}

	if result.Deduplicated {
		utils.SendResult(c, http.StatusOK, gin.H{
			"isDeduplication":        true,
			"deduplicatedIdentifier": result.Identifier,
		})
		return
	}
	utils.SendResult(c, http.StatusCreated, gin.H{"identifier": result.Identifier})
}

// ReplaceDocument endpoint PUT /api/v3/:collection/:identifier
func (h *DocumentHandler) ReplaceDocument(c *gin.Context) {
	res, ok := h.resolveResource(c)
	if !ok {
		return
	}

	var doc domain.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		h.log.Warn("Cuerpo JSON inválido en replace",
			zap.String("collection", res.Name),
			zap.Error(err))
		utils.SendBadRequest(c, "Malformed JSON body")
		return
	}

	updated, err := h.service.Replace(c.Request.Context(), res, c.Param("identifier"), doc)
	if err != nil {
		h.respondMutationError(c, res, err)
		return
	}

	utils.SendResult(c, http.StatusOK, gin.H{"identifier": updated.Identifier()})
}

// PatchDocument endpoint PATCH /api/v3/:collection/:identifier
//
// Solo las colecciones parcheables lo exponen; para el resto la ruta se
// comporta como inexistente.
func (h *DocumentHandler) PatchDocument(c *gin.Context) {
	res, ok := h.resolveResource(c)
	if !ok {
		return
	}
	if !res.Patchable {
		utils.SendNotFound(c, "Collection not found")
		return
	}

	var patch domain.Document
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.log.Warn("Cuerpo JSON inválido en patch",
			zap.String("collection", res.Name),
			zap.Error(err))
		utils.SendBadRequest(c, "Malformed JSON body")
		return
	}

	merged, err := h.service.Merge(c.Request.Context(), res, c.Param("identifier"), patch)
	if err != nil {
		h.respondMutationError(c, res, err)
		return
	}

	utils.SendResult(c, http.StatusOK, merged)
}

// DeleteDocument endpoint DELETE /api/v3/:collection/:identifier
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	res, ok := h.resolveResource(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), res, c.Param("identifier")); err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			utils.SendNotFound(c, "Document not found")
			return
		}
		h.log.Error("Error borrando documento",
			zap.String("collection", res.Name),
			zap.Error(err))
		utils.SendInternalServerError(c)
		return
	}

	c.Status(http.StatusNoContent)
}

// Status endpoint GET /api/v3/status
func (h *DocumentHandler) Status(c *gin.Context) {
	utils.SendResult(c, http.StatusOK, gin.H{
		"version":    h.version,
		"apiVersion": APIVersion,
		"storage":    h.storage,
	})
}

// LastModified endpoint GET /api/v3/lastModified
//
// Devuelve, por colección, el instante (epoch ms) del documento más
// reciente; las colecciones vacías no aparecen.
func (h *DocumentHandler) LastModified(c *gin.Context) {
	collections, err := h.service.CollectionsLastModified(c.Request.Context())
	if err != nil {
		h.log.Error("Error calculando lastModified", zap.Error(err))
		utils.SendInternalServerError(c)
		return
	}

	utils.SendResult(c, http.StatusOK, gin.H{
		"srvDate":     time.Now().UnixMilli(),
		"collections": collections,
	})
}

// respondMutationError mapea los errores de las operaciones de escritura
// a sus respuestas HTTP.
func (h *DocumentHandler) respondMutationError(c *gin.Context, res domain.Resource, err error) {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		utils.SendBadRequest(c, validation.Message)
	case errors.Is(err, domain.ErrDocumentNotFound):
		utils.SendNotFound(c, "Document not found")
	default:
		h.log.Error("Error en operación de escritura",
			zap.String("collection", res.Name),
			zap.Error(err))
		utils.SendInternalServerError(c)
	}
}
