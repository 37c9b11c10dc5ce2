package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/vigilia/internal/monitor/domain"
)

// notModified decide si la petición puede responderse con 304. Cualquiera
// de las dos precondiciones basta: ETag coincidente o recurso sin cambios
// desde If-Modified-Since (comparado a resolución de segundo, que es lo
// máximo que transporta una fecha HTTP).
func notModified(p QueryParameters, cd domain.CacheDescriptor) bool {
	if p.IfNoneMatch != "" && strings.Trim(p.IfNoneMatch, `"`) == cd.ETag {
		return true
	}
	if p.HasIfModifiedSince && cd.HasLastModified {
		last := cd.LastModified.Truncate(time.Second)
		since := p.IfModifiedSince.Truncate(time.Second)
		if !last.After(since) {
			return true
		}
	}
	return false
}

// writeListHeaders escribe las cabeceras de una respuesta de listado:
// validadores de caché, metadatos de paginación y enlaces prev/next.
func writeListHeaders(c *gin.Context, p QueryParameters, cd domain.CacheDescriptor, total int) {
	c.Header("ETag", `"`+cd.ETag+`"`)
	c.Header("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	c.Header("Cache-Control", "public, max-age=60")
	c.Header("Vary", "Accept, If-Modified-Since, If-None-Match")

	c.Header("X-Total-Count", strconv.Itoa(total))
	c.Header("X-Limit", strconv.Itoa(p.Limit))
	c.Header("X-Offset", strconv.Itoa(p.Offset))

	if link := paginationLinks(c.Request, p.Limit, p.Offset, total); link != "" {
		c.Header("Link", link)
	}
}

// paginationLinks construye la cabecera Link (RFC 5988) con los enlaces
// prev/next que apliquen a la ventana actual. Las URLs se rearman desde la
// propia petición y llevan únicamente limit y offset: los filtros y demás
// parámetros no viajan en los enlaces.
func paginationLinks(r *http.Request, limit, offset, total int) string {
	var links []string

	if offset > 0 {
		prev := offset - limit
		if prev < 0 {
			prev = 0
		}
		links = append(links, fmt.Sprintf("<%s>; rel=\"prev\"", pageURL(r, limit, prev)))
	}
	if offset+limit < total {
		links = append(links, fmt.Sprintf("<%s>; rel=\"next\"", pageURL(r, limit, offset+limit)))
	}

	return strings.Join(links, ", ")
}

func pageURL(r *http.Request, limit, offset int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	page := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: query.Encode(),
	}
	return page.String()
}
