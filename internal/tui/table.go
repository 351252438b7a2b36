package tui

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/temporal/internal/model"
)

// FormatWeeks renders a week list payload as an aligned table. It fails
// when body is not a JSON array of weeks.
func FormatWeeks(body string) (string, error) {
	var weeks []model.Week
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &weeks); err != nil {
		return "", fmt.Errorf("payload is not a week list: %w", err)
	}
	if len(weeks) == 0 {
		return "", fmt.Errorf("payload is an empty week list")
	}
	headers := []string{"Year", "Week", "Start", "End", "Dates"}
	rows := make([][]string, 0, len(weeks))
	for _, w := range weeks {
		rows = append(rows, []string{
			strconv.Itoa(w.Year),
			strconv.Itoa(w.WeekNumber),
			w.WeekStart,
			w.WeekEnd,
			strconv.Itoa(len(w.WeekDates)),
		})
	}
	lines := formatTable(headers, rows, map[int]bool{0: true, 1: true, 4: true})
	return strings.Join(lines, "\n"), nil
}

func formatTable(headers []string, rows [][]string, rightAlignCols map[int]bool) []string {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	for i, header := range headers {
		widths[i] = runewidth.StringWidth(header)
	}
	for _, row := range rows {
		for i := 0; i < colCount; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows)+1)
	if len(headers) > 0 {
		lines = append(lines, formatRow(headers, widths, rightAlignCols))
	}
	for _, row := range rows {
		lines = append(lines, formatRow(row, widths, rightAlignCols))
	}
	return lines
}

func formatRow(row []string, widths []int, rightAlignCols map[int]bool) string {
	var b strings.Builder
	for i := 0; i < len(widths); i++ {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(padCell(cell, widths[i], rightAlignCols[i]))
	}
	return strings.TrimRight(b.String(), " ")
}

func padCell(value string, width int, rightAlign bool) string {
	valueWidth := runewidth.StringWidth(value)
	if valueWidth >= width {
		return value
	}
	padding := width - valueWidth
	if rightAlign {
		return strings.Repeat(" ", padding) + value
	}
	return value + strings.Repeat(" ", padding)
}
