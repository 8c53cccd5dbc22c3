package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jordanw/callscope/internal/store"
	"github.com/xuri/excelize/v2"
)

// ExportHandler streams the record table in csv, json, or xlsx form.
type ExportHandler struct {
	st store.Store
}

// NewExportHandler creates a new export handler.
func NewExportHandler(st store.Store) *ExportHandler {
	return &ExportHandler{st: st}
}

// Export handles GET /api/v1/export?format=csv|json|xlsx.
func (h *ExportHandler) Export(c *gin.Context) {
	records, err := h.st.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	stamp := time.Now().Format("20060102_150405")

	switch c.DefaultQuery("format", "csv") {
	case "csv":
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="call_records_%s.csv"`, stamp))

		w := csv.NewWriter(c.Writer)
		if err := w.Write(store.Headers); err != nil {
			return
		}
		for i := range records {
			if err := w.Write(store.RecordRow(&records[i])); err != nil {
				return
			}
		}
		w.Flush()

	case "json":
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="call_records_%s.json"`, stamp))
		c.JSON(http.StatusOK, gin.H{"records": records, "total": len(records)})

	case "xlsx":
		f := excelize.NewFile()
		defer f.Close()

		const sheet = "Call Records"
		f.SetSheetName("Sheet1", sheet)

		for col, header := range store.Headers {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			f.SetCellValue(sheet, cell, header)
		}
		for i := range records {
			for col, value := range store.RecordRow(&records[i]) {
				cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
				f.SetCellValue(sheet, cell, value)
			}
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="call_records_%s.xlsx"`, stamp))
		if err := f.Write(c.Writer); err != nil {
			c.Status(http.StatusInternalServerError)
		}

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Format must be csv, json, or xlsx"})
	}
}
