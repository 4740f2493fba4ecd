package workbook

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"monfill/internal/snapshot"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// FileError reports a workbook that could not be opened, read or written.
type FileError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("workbook %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Locked reports whether the underlying failure looks like a file held by another process.
func (e *FileError) Locked() bool {
	return errors.Is(e.Err, fs.ErrPermission) || strings.Contains(strings.ToLower(e.Err.Error()), "locked")
}

// Reader loads the measurement table of one snapshot file.
type Reader interface {
	Read(path string, id snapshot.Identity) (*snapshot.Snapshot, error)
}

// Writer persists the measurement table of one snapshot file.
type Writer interface {
	Write(s *snapshot.Snapshot, path string) error
}

// Excel reads and writes the configured layout region of .xlsx workbooks.
type Excel struct {
	layout    snapshot.Layout
	nameCol   int
	firstCol  int
	precision int
}

// NewExcel resolves the layout columns once.
func NewExcel(layout snapshot.Layout) (*Excel, error) {
	nameCol, err := excelize.ColumnNameToNumber(layout.NameColumn)
	if err != nil {
		return nil, fmt.Errorf("invalid name column %q: %w", layout.NameColumn, err)
	}
	firstCol, err := excelize.ColumnNameToNumber(layout.FirstValueColumn)
	if err != nil {
		return nil, fmt.Errorf("invalid first value column %q: %w", layout.FirstValueColumn, err)
	}
	return &Excel{layout: layout, nameCol: nameCol, firstCol: firstCol, precision: -1}, nil
}

// Layout returns the layout the adapter was built for.
func (x *Excel) Layout() snapshot.Layout {
	return x.layout
}

func (x *Excel) sheet(f *excelize.File) string {
	if x.layout.Sheet != "" {
		return x.layout.Sheet
	}
	return f.GetSheetName(0)
}

// Read opens path and returns the snapshot rows found in the layout region.
// Rows with an empty name cell are skipped. Non-numeric or non-finite cells are blank.
func (x *Excel) Read(path string, id snapshot.Identity) (*snapshot.Snapshot, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &FileError{Path: path, Op: "open", Err: err}
	}
	defer func() { _ = f.Close() }()

	sheet := x.sheet(f)
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, &FileError{Path: path, Op: "read", Err: fmt.Errorf("sheet %q not found", sheet)}
	}

	s := snapshot.New(id, path)
	width := x.layout.Width()
	for r := 0; r < x.layout.RowCount; r++ {
		rowNum := x.sheetRow(r + 1)
		name, err := x.cell(f, sheet, x.nameCol, rowNum)
		if err != nil {
			return nil, &FileError{Path: path, Op: "read", Err: err}
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		row := snapshot.NewRow(name, r+1, width)
		for i := 0; i < width; i++ {
			raw, err := x.cell(f, sheet, x.firstCol+i, rowNum)
			if err != nil {
				return nil, &FileError{Path: path, Op: "read", Err: err}
			}
			v, ok := parseNumber(raw)
			if !ok {
				if strings.TrimSpace(raw) != "" {
					log.Warn().
						Str("file", filepath.Base(path)).
						Str("point", name).
						Str("slot", x.layout.Slots[i].Name()).
						Str("raw", raw).
						Msg("Cell is not a finite number, treating as blank")
				}
				continue
			}
			row.Set(i, v)
		}
		if dup := s.Row(name); dup != nil {
			log.Warn().Str("file", filepath.Base(path)).Str("point", name).Msg("Duplicate point name, keeping first row")
			continue
		}
		s.AddRow(row)
	}

	log.Debug().Str("file", filepath.Base(path)).Int("rows", len(s.Rows)).Int("blanks", s.BlankCount()).Msg("Workbook loaded")
	return s, nil
}

// sheetRow maps a 1-based table position to its worksheet row.
func (x *Excel) sheetRow(position int) int {
	return x.layout.FirstRow + position - 1
}

func (x *Excel) cell(f *excelize.File, sheet string, col, row int) (string, error) {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", err
	}
	return f.GetCellValue(sheet, name, excelize.Options{RawCellValue: true})
}

func parseNumber(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Write saves s to path. When the snapshot has a readable source workbook (its own path,
// or the path of the snapshot it was cloned from) that file is used as the template so
// formatting and surrounding content survive; otherwise a fresh workbook is created.
func (x *Excel) Write(s *snapshot.Snapshot, path string) error {
	f, err := x.template(s)
	if err != nil {
		return &FileError{Path: path, Op: "open", Err: err}
	}
	defer func() { _ = f.Close() }()

	sheet := x.sheet(f)
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return &FileError{Path: path, Op: "write", Err: err}
		}
	}

	for _, row := range s.Rows {
		if err := x.writeRow(f, sheet, row); err != nil {
			return &FileError{Path: path, Op: "write", Err: err}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &FileError{Path: path, Op: "write", Err: err}
	}
	if err := f.SaveAs(path); err != nil {
		return &FileError{Path: path, Op: "save", Err: err}
	}
	return nil
}

func (x *Excel) writeRow(f *excelize.File, sheet string, row *snapshot.Row) error {
	if row.Position < 1 {
		return fmt.Errorf("point %s has invalid table position %d", row.Name, row.Position)
	}
	rowNum := x.sheetRow(row.Position)
	cell, err := excelize.CoordinatesToCellName(x.nameCol, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, row.Name); err != nil {
		return err
	}
	for i := range row.Slots {
		cell, err := excelize.CoordinatesToCellName(x.firstCol+i, rowNum)
		if err != nil {
			return err
		}
		v, ok := row.Get(i)
		if !ok {
			if err := f.SetCellValue(sheet, cell, ""); err != nil {
				return err
			}
			continue
		}
		if err := f.SetCellFloat(sheet, cell, v, x.precision, 64); err != nil {
			return err
		}
	}
	return nil
}

func (x *Excel) template(s *snapshot.Snapshot) (*excelize.File, error) {
	for src := s; src != nil; src = src.Source {
		if src.Path == "" {
			continue
		}
		if _, err := os.Stat(src.Path); err != nil {
			continue
		}
		return excelize.OpenFile(src.Path)
	}

	f := excelize.NewFile()
	if x.layout.Sheet != "" {
		if err := f.SetSheetName(f.GetSheetName(0), x.layout.Sheet); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

// ListFiles returns the snapshot workbooks directly inside dir, skipping office lock files.
// Legacy .xls workbooks are skipped with a warning.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &FileError{Path: dir, Op: "list", Err: err}
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || snapshot.IsLockFile(e.Name()) {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".xls" {
			log.Warn().Str("file", e.Name()).Msg("Skipping unsupported format, convert legacy .xls to .xlsx")
			continue
		}
		for _, allowed := range snapshot.Extensions {
			if ext == allowed {
				files = append(files, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	return files, nil
}
