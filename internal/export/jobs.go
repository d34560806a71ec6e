package export

import (
	"fmt"
	"notes-pipeline/internal/models"
	"time"

	"github.com/xuri/excelize/v2"
)

// Sheet is the name of the worksheet holding the job listing
const Sheet = "Jobs"

var headers = []string{
	"Job ID",
	"Status",
	"Progress",
	"File Name",
	"File Size",
	"MIME Type",
	"Created At",
	"Updated At",
	"Result",
	"Error",
}

// JobsXLSX returns an XLSX workbook (as bytes) listing the given jobs, one row each.
func JobsXLSX(jobs []*models.Job) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), Sheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(Sheet)
	f.SetActiveSheet(activeIndex)

	w := &sheetWriter{f: f}
	for i, h := range headers {
		w.cell(i+1, 1, h)
	}

	row := 2
	for _, job := range jobs {
		w.cell(1, row, job.ID)
		w.cell(2, row, string(job.Status))
		w.cell(3, row, job.Progress)
		w.cell(4, row, job.FileName)
		w.cell(5, row, job.FileSize)
		w.cell(6, row, job.MimeType)
		w.cell(7, row, job.CreatedAt.UTC().Format(time.RFC3339))
		w.cell(8, row, job.UpdatedAt.UTC().Format(time.RFC3339))
		w.cell(9, row, deref(job.ResultURL))
		w.cell(10, row, deref(job.ErrorMessage))

		row++
	}

	w.width("A", "A", 38) // id
	w.width("B", "C", 12)
	w.width("D", "D", 32)
	w.width("E", "F", 16)
	w.width("G", "H", 22) // timestamps
	w.width("I", "J", 48)

	if w.err != nil {
		return nil, fmt.Errorf("xlsx fill: %w", w.err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// sheetWriter writes cells to the jobs sheet and keeps the first error
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) cell(col, row int, v any) {
	if w.err != nil {
		return
	}
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellValue(Sheet, name, v)
}

func (w *sheetWriter) width(from, to string, width float64) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetColWidth(Sheet, from, to, width)
}
