package tracker

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilebles/ozon-parser/internal/app"
	"github.com/kilebles/ozon-parser/internal/parser"
	"github.com/kilebles/ozon-parser/internal/sheets"
)

// fakeSheet keeps one grid per spreadsheet and applies updates the way the
// real worksheet would, so re-reads observe earlier writes.
type fakeSheet struct {
	grids         map[string][][]interface{}
	insertedCols  int
	failInserts   int
	failWriteRefs map[string]bool
}

func newFakeSheet() *fakeSheet {
	return &fakeSheet{grids: map[string][][]interface{}{}, failWriteRefs: map[string]bool{}}
}

func (f *fakeSheet) ReadSheet(ctx context.Context, spreadsheetID, _ string) ([][]interface{}, error) {
	return f.grids[spreadsheetID], nil
}

func (f *fakeSheet) UpdateRange(ctx context.Context, spreadsheetID, ref string, values [][]interface{}) error {
	if f.failWriteRefs[ref] {
		return assert.AnError
	}
	col, rowNum := parseRef(ref)
	grid := f.grids[spreadsheetID]
	for len(grid) < rowNum {
		grid = append(grid, []interface{}{})
	}
	row := grid[rowNum-1]
	for len(row) <= col {
		row = append(row, nil)
	}
	row[col] = values[0][0]
	grid[rowNum-1] = row
	f.grids[spreadsheetID] = grid
	return nil
}

func (f *fakeSheet) InsertColumn(ctx context.Context, spreadsheetID, _ string, index int64) error {
	if f.failInserts > 0 {
		f.failInserts--
		return assert.AnError
	}
	f.insertedCols++
	grid := f.grids[spreadsheetID]
	for i, row := range grid {
		if int64(len(row)) < index {
			continue
		}
		row = append(row, nil)
		copy(row[index+1:], row[index:])
		row[index] = nil
		grid[i] = row
	}
	return nil
}

func (f *fakeSheet) cell(spreadsheetID string, col, rowNum int) string {
	grid := f.grids[spreadsheetID]
	if rowNum-1 >= len(grid) || col >= len(grid[rowNum-1]) || grid[rowNum-1][col] == nil {
		return ""
	}
	return grid[rowNum-1][col].(string)
}

// parseRef turns "Позиции!D7" into (3, 7).
func parseRef(ref string) (col, rowNum int) {
	cell := ref[strings.IndexByte(ref, '!')+1:]
	i := 0
	for ; i < len(cell) && cell[i] >= 'A' && cell[i] <= 'Z'; i++ {
		col = col*26 + int(cell[i]-'A') + 1
	}
	col--
	rowNum, _ = strconv.Atoi(cell[i:])
	return col, rowNum
}

type fakeBackend struct {
	outcomes map[string]parser.Outcome
	errs     map[string]error
	queries  []string
	closed   bool
	warmed   bool
}

func (f *fakeBackend) FindPosition(ctx context.Context, query, article string) (parser.Outcome, error) {
	f.queries = append(f.queries, query)
	if err := f.errs[query]; err != nil {
		return parser.Outcome{}, err
	}
	return f.outcomes[query], nil
}

func (f *fakeBackend) Warmup(ctx context.Context) error { f.warmed = true; return nil }
func (f *fakeBackend) Close() error                     { f.closed = true; return nil }

type fakeNotifier struct {
	enabled  bool
	messages []string
}

func (f *fakeNotifier) Enabled() bool { return f.enabled }
func (f *fakeNotifier) SendMessage(ctx context.Context, text string) error {
	f.messages = append(f.messages, text)
	return nil
}

func taskGrid() [][]interface{} {
	return [][]interface{}{
		{"Артикул", "Товар", "Запрос"},
		{"123", "Футболка", ""},
		{"", "", "q1"},
		{"", "", "q2"},
	}
}

func newTestTracker(sheet *fakeSheet, backend *fakeBackend, notifier Notifier) *Tracker {
	cfg := &app.Config{
		SpreadsheetIDs: []string{"s1"},
		WorksheetName:  "Позиции",
		MaxPosition:    1000,
	}
	trk := New(cfg, sheet, func() (parser.Backend, error) { return backend, nil }, notifier)
	trk.res.SheetRead.MaxRetries = 0
	trk.res.SheetWrite.MaxRetries = 0
	trk.now = func() time.Time { return time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC) }
	return trk
}

func TestRunOnceWritesPositions(t *testing.T) {
	sheet := newFakeSheet()
	sheet.grids["s1"] = taskGrid()
	backend := &fakeBackend{outcomes: map[string]parser.Outcome{
		"q1": {Status: parser.Found, Position: 15},
		"q2": {Status: parser.ExceedsLimit},
	}}

	trk := newTestTracker(sheet, backend, nil)
	trk.RunOnce(context.Background())

	assert.True(t, backend.warmed)
	assert.True(t, backend.closed, "session must be released at run end")
	require.Equal(t, 1, sheet.insertedCols, "exactly one date column created")
	assert.Equal(t, "30.08", sheet.cell("s1", 3, 1))
	assert.Equal(t, "15", sheet.cell("s1", 3, 3))
	assert.Equal(t, "1000+", sheet.cell("s1", 3, 4))
}

func TestRunOnceIdempotentAcrossRuns(t *testing.T) {
	sheet := newFakeSheet()
	sheet.grids["s1"] = taskGrid()
	backend := &fakeBackend{outcomes: map[string]parser.Outcome{
		"q1": {Status: parser.Found, Position: 15},
		"q2": {Status: parser.Found, Position: 3},
	}}

	trk := newTestTracker(sheet, backend, nil)
	trk.RunOnce(context.Background())
	after := sheet.cell("s1", 3, 3)

	// Same day, same values: the second run overwrites in place.
	trk.RunOnce(context.Background())

	assert.Equal(t, 1, sheet.insertedCols, "no duplicate date column")
	assert.Equal(t, after, sheet.cell("s1", 3, 3))
	assert.Equal(t, "30.08", sheet.cell("s1", 3, 1))
}

func TestRunOnceRetriesDateColumnInsert(t *testing.T) {
	sheet := newFakeSheet()
	sheet.grids["s1"] = taskGrid()
	sheet.failInserts = 1
	backend := &fakeBackend{outcomes: map[string]parser.Outcome{
		"q1": {Status: parser.Found, Position: 15},
		"q2": {Status: parser.Found, Position: 3},
	}}

	trk := newTestTracker(sheet, backend, nil)
	trk.res.SheetWrite.MaxRetries = 1
	trk.res.SheetWrite.BaseDelay = time.Millisecond
	trk.RunOnce(context.Background())

	require.Equal(t, 1, sheet.insertedCols, "insert succeeds on the retry")
	assert.Equal(t, "30.08", sheet.cell("s1", 3, 1))
	assert.Equal(t, "15", sheet.cell("s1", 3, 3))
}

func TestRunOnceReusesExistingDateColumn(t *testing.T) {
	sheet := newFakeSheet()
	grid := taskGrid()
	grid[0] = []interface{}{"Артикул", "Товар", "Запрос", "29.08", "30.08"}
	sheet.grids["s1"] = grid
	backend := &fakeBackend{outcomes: map[string]parser.Outcome{
		"q1": {Status: parser.Found, Position: 7},
		"q2": {Status: parser.NotFound},
	}}

	trk := newTestTracker(sheet, backend, nil)
	trk.RunOnce(context.Background())

	assert.Zero(t, sheet.insertedCols)
	assert.Equal(t, "7", sheet.cell("s1", 4, 3))
	assert.Equal(t, "0", sheet.cell("s1", 4, 4))
}

func TestRunOnceSkipsFailedTask(t *testing.T) {
	sheet := newFakeSheet()
	sheet.grids["s1"] = taskGrid()
	backend := &fakeBackend{
		outcomes: map[string]parser.Outcome{"q2": {Status: parser.Found, Position: 2}},
		errs:     map[string]error{"q1": parser.ErrPageLoad},
	}

	trk := newTestTracker(sheet, backend, nil)
	trk.RunOnce(context.Background())

	assert.Equal(t, []string{"q1", "q2"}, backend.queries, "run continues past the failed task")
	assert.Equal(t, "", sheet.cell("s1", 3, 3), "failed task's cell left unchanged")
	assert.Equal(t, "2", sheet.cell("s1", 3, 4))
	assert.True(t, backend.closed)
}

func TestRunOnceAbortsSpreadsheetWhenBlocked(t *testing.T) {
	sheet := newFakeSheet()
	sheet.grids["s1"] = taskGrid()
	backend := &fakeBackend{errs: map[string]error{"q1": parser.ErrBlocked}}

	trk := newTestTracker(sheet, backend, nil)
	trk.RunOnce(context.Background())

	assert.Equal(t, []string{"q1"}, backend.queries, "no further queries from a blocked session")
	assert.True(t, backend.closed)
}

func TestRunOnceLostWriteDoesNotAbort(t *testing.T) {
	sheet := newFakeSheet()
	sheet.grids["s1"] = taskGrid()
	backend := &fakeBackend{outcomes: map[string]parser.Outcome{
		"q1": {Status: parser.Found, Position: 4},
		"q2": {Status: parser.Found, Position: 9},
	}}

	trk := newTestTracker(sheet, backend, nil)
	sheet.failWriteRefs[sheets.CellRef("Позиции", 3, 3)] = true
	trk.RunOnce(context.Background())

	assert.Equal(t, "", sheet.cell("s1", 3, 3))
	assert.Equal(t, "9", sheet.cell("s1", 3, 4), "later tasks still written")
}

func TestRunSummaryNotification(t *testing.T) {
	sheet := newFakeSheet()
	sheet.grids["s1"] = taskGrid()
	backend := &fakeBackend{outcomes: map[string]parser.Outcome{
		"q1": {Status: parser.Found, Position: 15},
		"q2": {Status: parser.ExceedsLimit},
	}}
	notifier := &fakeNotifier{enabled: true}

	trk := newTestTracker(sheet, backend, notifier)
	trk.RunOnce(context.Background())

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "30.08")
	assert.Contains(t, notifier.messages[0], "q1")
	assert.Contains(t, notifier.messages[0], "15")
}

func TestSendSummaryWithoutScraping(t *testing.T) {
	sheet := newFakeSheet()
	grid := taskGrid()
	grid[0] = []interface{}{"Артикул", "Товар", "Запрос", "30.08"}
	grid[2] = []interface{}{"", "", "q1", "15"}
	grid[3] = []interface{}{"", "", "q2", "1000+"}
	sheet.grids["s1"] = grid
	notifier := &fakeNotifier{enabled: true}

	trk := newTestTracker(sheet, nil, notifier)
	err := trk.SendSummary(context.Background())
	require.NoError(t, err)

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "q1")
	assert.Contains(t, notifier.messages[0], "1000+")
	assert.Contains(t, notifier.messages[0], "123")
}

func TestFormatOutcome(t *testing.T) {
	assert.Equal(t, "15", formatOutcome(parser.Outcome{Status: parser.Found, Position: 15}, 1000))
	assert.Equal(t, "1000+", formatOutcome(parser.Outcome{Status: parser.ExceedsLimit}, 1000))
	assert.Equal(t, "500+", formatOutcome(parser.Outcome{Status: parser.ExceedsLimit}, 500))
	assert.Equal(t, "0", formatOutcome(parser.Outcome{Status: parser.NotFound}, 1000))
}
