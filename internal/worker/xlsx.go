package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"pawbook/internal/database"
	"pawbook/internal/models"
)

// XLSXExporter renders booking schedules into workbook files under the
// export directory.
type XLSXExporter struct {
	db   *database.DB
	path string
}

func NewXLSXExporter(db *database.DB, path string) *XLSXExporter {
	return &XLSXExporter{db: db, path: path}
}

// WriteSchedule regenerates the workbook covering [start, end): one row
// per booking, grouped by date, with a summary header. Returns the path
// of the written file.
func (e *XLSXExporter) WriteSchedule(ctx context.Context, start, end time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	daily, err := e.db.GetDailyBookings(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("load bookings: %w", err)
	}

	services := e.db.ListServices()
	serviceNames := make(map[string]string, len(services))
	for _, s := range services {
		serviceNames[s.ID] = s.Name
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Schedule"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Bookings %s to %s",
		start.Format("2006-01-02"), end.Format("2006-01-02")))
	_ = f.MergeCell(sheetName, "A1", "H1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headers := []string{"Date", "Start", "End", "Provider", "Service", "Pet", "Status", "Price"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	_ = f.SetCellStyle(sheetName, "A2", "H2", headerStyle)

	dates := make([]string, 0, len(daily))
	for date := range daily {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	row := 3
	for _, date := range dates {
		for _, b := range daily[date] {
			name := serviceNames[b.ServiceID]
			if name == "" {
				name = b.ServiceID
			}
			values := []interface{}{
				date,
				b.Interval.Start.UTC().Format("15:04"),
				b.Interval.End.UTC().Format("15:04"),
				b.ProviderID,
				name,
				b.PetID,
				b.Status,
				float64(b.PriceCents) / 100,
			}
			for i, v := range values {
				cell, _ := excelize.CoordinatesToCellName(i+1, row)
				_ = f.SetCellValue(sheetName, cell, v)
			}
			row++
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 12)
	_ = f.SetColWidth(sheetName, "D", "F", 20)
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("schedule_%s_to_%s.xlsx",
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	fullPath := filepath.Join(e.path, fileName)
	if err := f.SaveAs(fullPath); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return fullPath, nil
}

// dateWindow returns the UTC day window containing a booking.
func dateWindow(b *models.Booking) (time.Time, time.Time) {
	day := b.Interval.Start.UTC().Truncate(24 * time.Hour)
	return day, day.AddDate(0, 0, 1)
}
