package sheets

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DateColumnIndex is where a missing date column gets inserted: column D,
// right after the query column.
const DateColumnIndex = 3

// Task is one (product, query) pair to rank, tied to the sheet row its
// result is written back to. Rebuilt from the sheet every run, never
// persisted.
type Task struct {
	SpreadsheetID string
	Row           int // 1-based sheet row
	Article       string
	Name          string
	Query         string
}

// ParseTasks derives tasks from worksheet rows. Rows with a non-empty
// column A are group headers carrying the article (and product name in B)
// for the query rows beneath them; rows with a non-empty column C under a
// current header become tasks.
func ParseTasks(spreadsheetID string, data [][]interface{}) []Task {
	var tasks []Task
	var article, name string

	for i, row := range data {
		if i == 0 {
			continue // header row
		}
		rowNum := i + 1

		articleCell := cellString(row, 0)
		queryCell := cellString(row, 2)

		if articleCell != "" {
			article = articleCell
			name = cellString(row, 1)
			continue
		}
		if article == "" || queryCell == "" {
			continue
		}

		tasks = append(tasks, Task{
			SpreadsheetID: spreadsheetID,
			Row:           rowNum,
			Article:       article,
			Name:          name,
			Query:         queryCell,
		})
	}

	log.Debug().
		Int("rows", len(data)).
		Int("tasks", len(tasks)).
		Msg("Parsed search tasks")
	return tasks
}

// TodayLabel is the header label of a run date, e.g. "28.08".
func TodayLabel(t time.Time) string {
	return t.Format("02.01")
}

// FindDateColumn scans the header row for a date label and returns its
// zero-based column index.
func FindDateColumn(header []interface{}, label string) (int, bool) {
	for i := range header {
		if cellString(header, i) == label {
			return i, true
		}
	}
	return 0, false
}

// CellRef builds an A1 reference like "Позиции!D7".
func CellRef(sheetTitle string, columnIndex, row int) string {
	return fmt.Sprintf("%s!%s%d", sheetTitle, ColumnLetter(columnIndex), row)
}

// ColumnLetter converts a zero-based column index to its A1 letter.
func ColumnLetter(index int) string {
	letters := ""
	for index >= 0 {
		letters = string(rune('A'+index%26)) + letters
		index = index/26 - 1
	}
	return letters
}

func cellString(row []interface{}, index int) string {
	if index < len(row) && row[index] != nil {
		return strings.TrimSpace(fmt.Sprintf("%v", row[index]))
	}
	return ""
}
