package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pharmapos/internal/domain"

	"github.com/xuri/excelize/v2"
)

var headerAliases = map[string]string{
	"name":             "name",
	"product":          "name",
	"product name":     "name",
	"item":             "name",
	"description":      "description",
	"details":          "description",
	"category":         "category",
	"group":            "category",
	"price":            "price",
	"unit price":       "price",
	"sell price":       "price",
	"selling price":    "price",
	"stock":            "stock",
	"quantity":         "stock",
	"qty":              "stock",
	"on hand":          "stock",
	"unit":             "unit",
	"uom":              "unit",
	"default qty":      "default_qty",
	"default qty.":     "default_qty",
	"defaultqty":       "default_qty",
	"default quantity": "default_qty",
	"expiry":           "expiry_date",
	"expiry date":      "expiry_date",
	"expires":          "expiry_date",
	"exp date":         "expiry_date",
	"expiration date":  "expiry_date",
}

var dateLayouts = []string{
	domain.DateLayout,
	"2006/01/02",
	"01-02-06",
	"1/2/2006",
	"1/2/06",
	"02.01.2006",
	time.RFC3339,
}

// ParseProductRows reads an inventory sheet. XLSX and CSV are recognised by
// extension; anything else is tried as a workbook first, then as CSV.
func ParseProductRows(fileName string, reader io.Reader) ([]domain.ProductInput, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}

	var rows [][]string
	switch strings.ToLower(strings.TrimSpace(filepath.Ext(fileName))) {
	case ".csv":
		rows, err = parseCSVRows(data)
	case ".xlsx", ".xlsm":
		rows, err = parseExcelRows(data)
	default:
		rows, err = parseExcelRows(data)
		if err != nil {
			rows, err = parseCSVRows(data)
		}
	}
	if err != nil {
		return nil, err
	}
	return parseProductTable(rows)
}

func parseCSVRows(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}
	return rows, nil
}

func parseExcelRows(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel file has no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("excel file is empty")
	}
	return rows, nil
}

func parseProductTable(rows [][]string) ([]domain.ProductInput, error) {
	colMap := mapColumns(rows[0])
	for _, required := range []string{"name", "price"} {
		if _, ok := colMap[required]; !ok {
			return nil, fmt.Errorf("missing required column: %s", required)
		}
	}

	result := make([]domain.ProductInput, 0, len(rows)-1)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		name := cleanText(readCell(cells, colMap["name"]))
		if name == "" {
			continue
		}

		price, err := parseFloat(readCell(cells, colMap["price"]))
		if err != nil {
			return nil, fmt.Errorf("row %d invalid price: %w", index+1, err)
		}

		row := domain.ProductInput{
			Name:        name,
			Price:       &price,
			Category:    optionalCell(cells, colMap, "category"),
			Unit:        optionalCell(cells, colMap, "unit"),
			Description: optionalPtr(optionalCell(cells, colMap, "description")),
		}

		if raw := optionalCell(cells, colMap, "stock"); raw != "" {
			stock, err := parseInt(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d invalid stock: %w", index+1, err)
			}
			row.Stock = &stock
		}
		if raw := optionalCell(cells, colMap, "default_qty"); raw != "" {
			qty, err := parseInt(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d invalid default qty: %w", index+1, err)
			}
			row.DefaultQty = &qty
		}
		if raw := optionalCell(cells, colMap, "expiry_date"); raw != "" {
			day, err := parseDate(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d invalid expiry date: %w", index+1, err)
			}
			row.ExpiryDate = &day
		}

		result = append(result, row)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("file has no valid data rows")
	}
	return result, nil
}

func mapColumns(header []string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		normalized := normalizeHeader(col)
		if normalized == "" {
			continue
		}
		canonical, ok := headerAliases[normalized]
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	value = strings.Join(strings.Fields(value), " ")
	return value
}

func readCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func optionalCell(cells []string, colMap map[string]int, key string) string {
	idx, ok := colMap[key]
	if !ok {
		return ""
	}
	return cleanText(readCell(cells, idx))
}

func optionalPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func cleanText(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func parseInt(raw string) (int, error) {
	value := normalizeNumericValue(raw)
	if value == "" {
		return 0, fmt.Errorf("value is empty")
	}
	asFloat, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.Mod(asFloat, 1) != 0 {
		return 0, fmt.Errorf("must be an integer")
	}
	return int(asFloat), nil
}

func parseFloat(raw string) (float64, error) {
	value := normalizeNumericValue(raw)
	if value == "" {
		return 0, fmt.Errorf("value is empty")
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	return parsed, nil
}

// parseDate accepts the usual spreadsheet renderings of a date as well as a
// raw Excel serial number.
func parseDate(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(domain.DateLayout), nil
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return t.Format(domain.DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognised date %q", raw)
}

func normalizeNumericValue(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.TrimLeft(value, "$€£")
	value = strings.ReplaceAll(value, ",", "")
	return strings.TrimSpace(value)
}
