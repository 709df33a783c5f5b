package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"salon/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Бронирования"

var headers = []string{
	"ID", "Дата", "Время", "Мастер", "Услуга",
	"Клиент", "Телефон", "Email", "Статус", "Примечания", "Создано",
}

var statusLabels = map[string]string{
	models.StatusPending:   "Ожидает подтверждения",
	models.StatusConfirmed: "Подтверждено",
	models.StatusCompleted: "Завершено",
	models.StatusCancelled: "Отменено",
}

type Exporter struct {
	dir    string
	logger *zerolog.Logger
	now    func() time.Time
}

func NewExporter(dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{dir: dir, logger: logger, now: time.Now}
}

// Export writes one row per booking into a new workbook and returns its path.
func (e *Exporter) Export(bookings []*models.Booking, from, to string) (string, error) {
	// Создаем папку для экспорта, если не существует
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f, err := Workbook(bookings, from, to)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := fmt.Sprintf("bookings_%s.xlsx", e.now().Format("20060102_150405"))
	if from != "" || to != "" {
		fileName = fmt.Sprintf("bookings_%s_to_%s.xlsx", orAll(from), orAll(to))
	}
	filePath := filepath.Join(e.dir, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("rows", len(bookings)).Msg("Excel file created")
	return filePath, nil
}

// Workbook builds the bookings sheet in memory.
func Workbook(bookings []*models.Booking, from, to string) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Период: %s - %s", orAll(from), orAll(to)))
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	_ = f.SetCellStyle(sheetName, "A2", lastCol+"2", headerStyle)

	for i, b := range bookings {
		row := []any{
			b.ID, b.Date, b.Time, b.MasterName, b.ServiceName,
			b.ClientName, b.ClientPhone, b.ClientEmail, statusLabel(b.Status), b.Notes,
			b.CreatedAt.Format("02.01.2006 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+3, err)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 8)
	_ = f.SetColWidth(sheetName, "B", lastCol, 20)
	_ = f.DeleteSheet("Sheet1")

	return f, nil
}

func statusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

func orAll(date string) string {
	if date == "" {
		return "все"
	}
	return date
}
