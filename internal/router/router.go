package router

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/helpy/paths"
	"github.com/psds-microservice/ticket-desk/api"
	"github.com/psds-microservice/ticket-desk/internal/handler"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type Deps struct {
	Tickets   *handler.TicketHandler
	Web       *handler.WebHandler
	Ready     gin.HandlerFunc
	Templates *template.Template
	// RequestLog включает gin.Logger (LOG_LEVEL=debug).
	RequestLog bool
}

func New(d Deps) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	if d.RequestLog {
		r.Use(gin.Logger())
	}
	r.SetHTMLTemplate(d.Templates)

	r.GET(paths.PathHealth, handler.Health)
	r.GET(paths.PathReady, d.Ready)
	r.GET(paths.PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, paths.PathSwagger+"/") })
	r.GET(paths.PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = paths.PathSwagger + "/index.html"
			c.Request.RequestURI = paths.PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(paths.PathSwagger+"/openapi.json"))(c)
	})

	// HTML-интерфейс: формы отправляются POST и возвращаются редиректом на главную.
	r.GET("/", d.Web.Index)
	r.GET("/logo", d.Web.Logo)
	r.GET("/export.xlsx", d.Tickets.Export)
	r.POST("/tickets", d.Web.Create)
	r.POST("/tickets/resolve", d.Web.Resolve)
	r.POST("/tickets/delete", d.Web.Delete)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/tickets", d.Tickets.Create)
		v1.GET("/tickets", d.Tickets.List)
		v1.GET("/tickets/:id", d.Tickets.Get)
		v1.POST("/tickets/:id/resolve", d.Tickets.Resolve)
		v1.DELETE("/tickets/:id", d.Tickets.Delete)
		v1.GET("/stats", d.Tickets.Stats)
		v1.GET("/export.xlsx", d.Tickets.Export)
	}

	return r
}
