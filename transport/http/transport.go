package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/endpoint"

	"github.com/flarexio/docrag"
	"github.com/flarexio/docrag/extract"
	"github.com/flarexio/docrag/generator"
	"github.com/flarexio/docrag/vector"
)

// StatusCode maps service errors onto HTTP status codes.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, docrag.ErrInvalidQuestion),
		errors.Is(err, docrag.ErrInvalidFilename):
		return http.StatusBadRequest

	case errors.Is(err, extract.ErrExtraction):
		return http.StatusUnprocessableEntity

	case errors.Is(err, vector.ErrIndexUnavailable),
		errors.Is(err, docrag.ErrEmbedding),
		errors.Is(err, generator.ErrServiceUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusExpectationFailed
	}
}

func abort(c *gin.Context, status int, err error) {
	c.String(status, err.Error())
	c.Error(err)
	c.Abort()
}

func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "RAG backend running",
		})
	}
}

// UploadHandler stages the multipart "file" field into uploadDir, ingests it
// and removes the staged copy.
func UploadHandler(endpoint endpoint.Endpoint, uploadDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header, err := c.FormFile("file")
		if err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		f, err := header.Open()
		if err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
		defer f.Close()

		path, cleanup, err := docrag.StageDocument(uploadDir, header.Filename, f)
		if err != nil {
			if errors.Is(err, docrag.ErrInvalidFilename) {
				abort(c, http.StatusBadRequest, err)
				return
			}

			abort(c, http.StatusInternalServerError, err)
			return
		}
		defer cleanup()

		req := docrag.IngestRequest{
			Path:     path,
			Filename: header.Filename,
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func QueryHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req docrag.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}
