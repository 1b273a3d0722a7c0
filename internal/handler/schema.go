package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"commandr-server/internal/model"
	"commandr-server/internal/schema"
	"commandr-server/internal/store"
)

type SchemaHandler struct {
	Store *store.Store
}

type columnBody struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Unit string `json:"unit"`
}

type tableBody struct {
	Name    string       `json:"name"`
	Columns []columnBody `json:"columns"`
}

type createSchemaBody struct {
	Name   string      `json:"name"`
	Tables []tableBody `json:"tables"`
}

type evaluateBody struct {
	Params map[string]interface{} `json:"params"`
}

func columnJSON(col *schema.Column) gin.H {
	return gin.H{
		"id":       col.ID,
		"name":     col.Name,
		"type":     col.Type,
		"unit":     col.Unit,
		"tableId":  col.TableID,
		"schemaId": col.SchemaID,
	}
}

func tableJSON(sc *schema.Schema, t *schema.Table) gin.H {
	cols := sc.Columns(t.ID)
	out := make([]gin.H, 0, len(cols))
	for _, col := range cols {
		out = append(out, columnJSON(col))
	}
	return gin.H{"id": t.ID, "name": t.Name, "schemaId": t.SchemaID, "columns": out}
}

func schemaJSON(sc *schema.Schema) gin.H {
	tables := sc.Tables()
	out := make([]gin.H, 0, len(tables))
	for _, t := range tables {
		out = append(out, tableJSON(sc, t))
	}
	return gin.H{"id": sc.ID, "name": sc.Name, "tables": out}
}

func (h *SchemaHandler) List(c *gin.Context) {
	acc, ok := account(c)
	if !ok {
		return
	}
	list := h.Store.SchemasOf(acc.ID)
	resp := make([]gin.H, 0, len(list))
	for _, sc := range list {
		resp = append(resp, gin.H{"id": sc.ID, "name": sc.Name, "tables": len(sc.Tables())})
	}
	c.JSON(http.StatusOK, gin.H{"schemas": resp})
}

// addTable creates a table with its columns in sc, counting each creation
// against acc.
func addTable(acc *store.Account, sc *schema.Schema, body tableBody) (*schema.Table, error) {
	t, err := sc.CreateTable(body.Name)
	if err != nil {
		return nil, err
	}
	acc.Record(model.KindTable, model.OpCreate)
	for _, col := range body.Columns {
		if _, err := sc.CreateColumn(t.ID, col.Name, col.Type, col.Unit); err != nil {
			sc.DeleteTable(t.ID)
			return nil, err
		}
		acc.Record(model.KindColumn, model.OpCreate)
	}
	return t, nil
}

func (h *SchemaHandler) Create(c *gin.Context) {
	acc, ok := account(c)
	if !ok {
		return
	}
	var body createSchemaBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing name"})
		return
	}

	sc := schema.New(body.Name)
	for _, tb := range body.Tables {
		if _, err := addTable(acc, sc, tb); err != nil {
			respondError(c, err)
			return
		}
	}
	if err := h.Store.Attach(acc, sc); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schemaJSON(sc))
}

func (h *SchemaHandler) Get(c *gin.Context) {
	acc, ok := account(c)
	if !ok {
		return
	}
	sc, err := h.Store.SchemaOf(acc.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schemaJSON(sc))
}

func (h *SchemaHandler) Delete(c *gin.Context) {
	acc, ok := account(c)
	if !ok {
		return
	}
	sc, err := h.Store.SchemaOf(acc.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Store.Detach(sc.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *SchemaHandler) AddTable(c *gin.Context) {
	acc, ok := account(c)
	if !ok {
		return
	}
	sc, err := h.Store.SchemaOf(acc.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	var body tableBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	t, err := addTable(acc, sc, body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tableJSON(sc, t))
}

func (h *SchemaHandler) Table(c *gin.Context) {
	acc, ok := account(c)
	if !ok {
		return
	}
	t, err := h.Store.TableOf(acc.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	sc, err := h.Store.SchemaOf(acc.ID, t.SchemaID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tableJSON(sc, t))
}

func (h *SchemaHandler) DeleteTable(c *gin.Context) {
	acc, ok := account(c)
	if !ok {
		return
	}
	t, err := h.Store.TableOf(acc.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	sc, err := h.Store.SchemaOf(acc.ID, t.SchemaID)
	if err != nil {
		respondError(c, err)
		return
	}
	sc.DeleteTable(t.ID)
	acc.Record(model.KindTable, model.OpDelete)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *SchemaHandler) Column(c *gin.Context) {
	acc, ok := account(c)
	if !ok {
		return
	}
	col, err := h.Store.ColumnOf(acc.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, columnJSON(col))
}

// EvaluateColumn runs a computed column's unit through the owning schema's
// resolver.
func (h *SchemaHandler) EvaluateColumn(c *gin.Context) {
	acc, ok := account(c)
	if !ok {
		return
	}
	col, err := h.Store.ColumnOf(acc.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	sc, err := h.Store.SchemaOf(acc.ID, col.SchemaID)
	if err != nil {
		respondError(c, err)
		return
	}

	var body evaluateBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}

	ev, err := sc.Evaluator(col.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := ev.Evaluate(c.Request.Context(), body.Params)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	acc.Record(model.KindColumn, model.OpEvaluate)
	c.JSON(http.StatusOK, gin.H{"column": col.ID, "unit": col.Unit, "result": result})
}
