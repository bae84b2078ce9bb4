package http

import (
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flarexio/docrag"

	mcpE "github.com/flarexio/docrag/mcp"
)

func AddRouters(r *gin.Engine, endpoints docrag.EndpointSet, uploadDir string) {
	r.GET("/", HealthHandler())

	r.POST("/documents/upload", UploadHandler(endpoints.Ingest, uploadDir))
	r.POST("/query", QueryHandler(endpoints.Query))
}

func AddStreamableRouters(r *gin.Engine, endpoints map[mcp.MCPMethod]mcpE.MCPEndpoint) {
	mcp := r.Group("/mcp")
	{
		mcp.POST("/", MCPStreamableHandler(endpoints))
	}
}
