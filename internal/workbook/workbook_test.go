package workbook

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"monfill/internal/snapshot"

	"github.com/xuri/excelize/v2"
)

func identity() snapshot.Identity {
	return snapshot.NewIdentity(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), 8, "SiteA")
}

// writeRaw creates a workbook with the given cells on the first sheet.
func writeRaw(t *testing.T, path string, cells map[string]any) {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	for cell, v := range cells {
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

func TestRead_LayoutRegion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "2024.7.1-8SiteA.xlsx")
	writeRaw(t, path, map[string]any{
		"A1": "Point", "B1": "dX",
		"A2": "P1", "B2": 1.5, "C2": 2.0, "D2": "n/a", "G2": 10.25,
		"A3": "", "B3": 99.0,
		"A4": "P2", "B4": -0.5,
		"A5": "P1", "B5": 42.0,
	})

	x, err := NewExcel(snapshot.DefaultLayout())
	if err != nil {
		t.Fatal(err)
	}
	s, err := x.Read(path, identity())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if len(s.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(s.Rows))
	}
	p1 := s.Row("P1")
	if p1.Position != 1 {
		t.Errorf("Expected P1 at table position 1, got %d", p1.Position)
	}
	if v, ok := p1.Get(0); !ok || v != 1.5 {
		t.Errorf("Expected 1.5, got %v (set=%v)", v, ok)
	}
	if _, ok := p1.Get(2); ok {
		t.Error("Expected non-numeric cell to be blank")
	}
	if v, ok := p1.Get(5); !ok || v != 10.25 {
		t.Errorf("Expected 10.25 in last slot, got %v (set=%v)", v, ok)
	}
	if s.Row("P2").Position != 3 {
		t.Errorf("Expected P2 at table position 3, got %d", s.Row("P2").Position)
	}
	if s.Path != path || s.ID != identity() {
		t.Errorf("Unexpected snapshot identity %v / %s", s.ID, s.Path)
	}
}

func TestWriteThenRead(t *testing.T) {
	dir := t.TempDir()
	x, err := NewExcel(snapshot.DefaultLayout())
	if err != nil {
		t.Fatal(err)
	}

	s := snapshot.New(identity(), "")
	r := snapshot.NewRow("P1", 3, 6)
	for i := 0; i < 6; i++ {
		r.Set(i, float64(i)+0.125)
	}
	s.AddRow(r)

	out := filepath.Join(dir, "out", s.FileName())
	if err := x.Write(s, out); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	back, err := x.Read(out, identity())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	row := back.Row("P1")
	if row == nil || row.Position != 3 {
		t.Fatalf("Expected P1 at table position 3, got %+v", row)
	}
	for i := 0; i < 6; i++ {
		if v, _ := row.Get(i); v != float64(i)+0.125 {
			t.Errorf("Slot %d: expected %v, got %v", i, float64(i)+0.125, v)
		}
	}
}

func TestWriteThenRead_OffsetRegion(t *testing.T) {
	layout := snapshot.DefaultLayout()
	layout.FirstRow = 5
	layout.RowCount = 3
	x, err := NewExcel(layout)
	if err != nil {
		t.Fatal(err)
	}

	s := snapshot.New(identity(), "")
	for i, name := range []string{"P1", "P2", "P3"} {
		r := snapshot.NewRow(name, i+1, 6)
		r.Set(0, float64(i))
		s.AddRow(r)
	}
	out := filepath.Join(t.TempDir(), s.FileName())
	if err := x.Write(s, out); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatal(err)
	}
	sheet := f.GetSheetName(0)
	if v, _ := f.GetCellValue(sheet, "A5"); v != "P1" {
		t.Errorf("Expected P1 on sheet row 5, got %q", v)
	}
	if v, _ := f.GetCellValue(sheet, "A4"); v != "" {
		t.Errorf("Expected nothing above the region, got %q", v)
	}
	_ = f.Close()

	back, err := x.Read(out, identity())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(back.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(back.Rows))
	}
	for i, row := range back.Rows {
		if row.Position != i+1 {
			t.Errorf("Expected %s at table position %d, got %d", row.Name, i+1, row.Position)
		}
	}
}

func TestWrite_KeepsFullPrecision(t *testing.T) {
	x, _ := NewExcel(snapshot.DefaultLayout())
	s := snapshot.New(identity(), "")
	r := snapshot.NewRow("P1", 1, 6)
	r.Set(0, 1.23456789)
	r.Set(1, 0.00001)
	s.AddRow(r)

	out := filepath.Join(t.TempDir(), s.FileName())
	if err := x.Write(s, out); err != nil {
		t.Fatal(err)
	}
	back, err := x.Read(out, identity())
	if err != nil {
		t.Fatal(err)
	}
	row := back.Row("P1")
	if v, _ := row.Get(0); v != 1.23456789 {
		t.Errorf("Expected 1.23456789, got %v", v)
	}
	if v, _ := row.Get(1); v != 0.00001 {
		t.Errorf("Expected 0.00001, got %v", v)
	}
}

func TestWrite_RejectsInvalidPosition(t *testing.T) {
	x, _ := NewExcel(snapshot.DefaultLayout())
	s := snapshot.New(identity(), "")
	s.AddRow(snapshot.NewRow("P1", 0, 6))
	if err := x.Write(s, filepath.Join(t.TempDir(), s.FileName())); err == nil {
		t.Error("Expected error for table position 0")
	}
}

func TestWrite_SupplementUsesSourceTemplate(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "2024.7.1-0SiteA.xlsx")
	writeRaw(t, srcPath, map[string]any{"A1": "Header", "A2": "P1", "B2": 1.0})

	x, _ := NewExcel(snapshot.DefaultLayout())
	src, err := x.Read(srcPath, snapshot.NewIdentity(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), 0, "SiteA"))
	if err != nil {
		t.Fatal(err)
	}
	sup := src.CloneAs(identity(), snapshot.AdjustmentParameters{Range: 0.05})
	sup.Row("P1").Set(0, 1.04)

	out := filepath.Join(dir, "out.xlsx")
	if err := x.Write(sup, out); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	if v, _ := f.GetCellValue(f.GetSheetName(0), "A1"); v != "Header" {
		t.Errorf("Expected template header preserved, got %q", v)
	}
	if v, _ := f.GetCellValue(f.GetSheetName(0), "B2"); v != "1.04" {
		t.Errorf("Expected 1.04, got %q", v)
	}
}

func TestRead_MissingFile(t *testing.T) {
	x, _ := NewExcel(snapshot.DefaultLayout())
	_, err := x.Read(filepath.Join(t.TempDir(), "nope.xlsx"), identity())

	var fe *FileError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected FileError, got %v", err)
	}
	if fe.Op != "open" {
		t.Errorf("Expected op open, got %s", fe.Op)
	}
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"2024.7.1-0A.xlsx", "~$2024.7.1-0A.xlsx", "notes.txt", "2024.7.1-8A.XLSM", "2024.7.1-16A.xls"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.xlsx"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := ListFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("Expected 2 files, got %v", files)
	}
}

func TestNewExcel_InvalidColumn(t *testing.T) {
	l := snapshot.DefaultLayout()
	l.NameColumn = "1"
	if _, err := NewExcel(l); err == nil {
		t.Error("Expected error for invalid column name")
	}
}
