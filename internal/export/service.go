package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/reviews-extractor/constants"
	"github.com/joseph-ayodele/reviews-extractor/internal/blob"
	"github.com/joseph-ayodele/reviews-extractor/internal/entity"
)

// column widths in export column order
var columnWidths = []float64{50, 20, 10, 100}

// Service renders review sets into spreadsheet artifacts inside the artifact directory.
type Service struct {
	store  blob.LocalFS
	logger *slog.Logger
}

func NewService(store blob.LocalFS, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Generate writes reviews_<locationID>.xlsx, replacing any previous artifact for the location.
func (s *Service) Generate(ctx context.Context, locationID string, reviews []entity.Review) (entity.Artifact, error) {
	start := time.Now()
	name := constants.ArtifactName(locationID)

	if err := ctx.Err(); err != nil {
		return entity.Artifact{}, err
	}

	path, err := s.store.Put(name, func(w io.Writer) error {
		return WriteWorkbook(w, reviews)
	})
	if err != nil {
		s.logger.Error("export.xlsx.error", "file", name, "error", err)
		return entity.Artifact{}, err
	}

	s.logger.Info("export.xlsx.ok",
		"location_id", locationID,
		"file", name,
		"path", path,
		"rows", len(reviews),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return entity.Artifact{FileName: name, ReviewCount: len(reviews)}, nil
}

// WriteWorkbook encodes reviews as a single-sheet workbook: one header row, then one row per review.
func WriteWorkbook(w io.Writer, reviews []entity.Review) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := constants.ExportSheet
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range constants.ExportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("header %s: %w", h, err)
		}
	}

	for i, r := range reviews {
		row := i + 2
		// empty strings still get a cell so the row survives save
		for col, v := range r.Columns() {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellStr(sheet, cell, v); err != nil {
				return fmt.Errorf("cell %s: %w", cell, err)
			}
		}
	}

	for i, width := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("column width %s: %w", col, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// ReadReviews decodes a workbook produced by WriteWorkbook, one review per data row.
func ReadReviews(r io.Reader) ([]entity.Review, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("xlsx open: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.Rows(constants.ExportSheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		out        []entity.Review
		seenHeader bool
	)
	for rows.Next() {
		row, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("xlsx row: %w", err)
		}
		cols := pad(row)
		if !seenHeader {
			for i, want := range constants.ExportColumns {
				if cols[i] != want {
					return nil, fmt.Errorf("xlsx: column %d is %q, want %q", i+1, cols[i], want)
				}
			}
			seenHeader = true
			out = []entity.Review{}
			continue
		}
		out = append(out, entity.Review{
			ReviewLink: cols[0],
			Time:       cols[1],
			Rating:     cols[2],
			Content:    cols[3],
		})
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("xlsx rows: %w", err)
	}
	if !seenHeader {
		return nil, fmt.Errorf("xlsx: missing header row")
	}
	return out, nil
}

func pad(row []string) []string {
	cols := make([]string, len(constants.ExportColumns))
	copy(cols, row)
	return cols
}
