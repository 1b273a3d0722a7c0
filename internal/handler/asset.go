package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"commandr-server/internal/model"
	"commandr-server/internal/store"
)

type AssetHandler struct {
	Store          *store.Store
	MaxUploadBytes int64
}

func assetJSON(a model.Asset) gin.H {
	return gin.H{
		"id":          a.ID,
		"name":        a.Name,
		"contentType": a.ContentType,
		"size":        len(a.Data),
		"archive":     a.IsArchive(),
		"seq":         a.Seq,
		"createdAt":   a.CreatedAt,
	}
}

func (h *AssetHandler) List(c *gin.Context) {
	acc, ok := account(c)
	if !ok {
		return
	}
	assets := h.Store.AssetsOf(acc.ID)
	resp := make([]gin.H, 0, len(assets))
	for _, a := range assets {
		resp = append(resp, assetJSON(a))
	}
	c.JSON(http.StatusOK, gin.H{"assets": resp})
}

// Upload stores the multipart "file" field as a new asset. The optional
// "name" field overrides the uploaded file name.
func (h *AssetHandler) Upload(c *gin.Context) {
	acc, ok := account(c)
	if !ok {
		return
	}
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file"})
		return
	}

	name := c.PostForm("name")
	if name == "" {
		name = fh.Filename
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	a, err := h.Store.AddAsset(acc, model.Asset{Name: name, ContentType: contentType, Data: data})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assetJSON(a))
}

// Get streams the asset content. Assets of other accounts are reported as
// missing.
func (h *AssetHandler) Get(c *gin.Context) {
	acc, ok := account(c)
	if !ok {
		return
	}
	a, err := h.Store.GetAsset(c.Param("id"))
	if err != nil || a.AccountID != acc.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
		return
	}
	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(a.Name))
	c.Data(http.StatusOK, contentType, a.Data)
}

func (h *AssetHandler) Delete(c *gin.Context) {
	acc, ok := account(c)
	if !ok {
		return
	}
	if err := h.Store.RemoveAsset(acc.ID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
