// Package tracker orchestrates a run: read tasks from every configured
// spreadsheet, resolve positions through one shared parser session, write
// results into the column of the run date.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kilebles/ozon-parser/internal/app"
	"github.com/kilebles/ozon-parser/internal/config"
	"github.com/kilebles/ozon-parser/internal/parser"
	"github.com/kilebles/ozon-parser/internal/retry"
	"github.com/kilebles/ozon-parser/internal/sheets"
)

// readRange covers everything a worksheet realistically holds.
const readRange = "!A1:Z1000"

// SheetAPI is the slice of the sheets client the tracker needs.
type SheetAPI interface {
	ReadSheet(ctx context.Context, spreadsheetID, range_ string) ([][]interface{}, error)
	UpdateRange(ctx context.Context, spreadsheetID, range_ string, values [][]interface{}) error
	InsertColumn(ctx context.Context, spreadsheetID, sheetTitle string, index int64) error
}

// Notifier delivers run summaries.
type Notifier interface {
	Enabled() bool
	SendMessage(ctx context.Context, text string) error
}

type taskResult struct {
	task  sheets.Task
	value string
	err   error
}

// BackendFactory opens a fresh parser session. The tracker acquires one
// session per run and closes it when the run ends, whatever happened to
// the individual tasks.
type BackendFactory func() (parser.Backend, error)

type Tracker struct {
	cfg        *app.Config
	sheets     SheetAPI
	newBackend BackendFactory
	notifier   Notifier
	res        config.ResilienceConfig
	now        func() time.Time
}

func New(cfg *app.Config, api SheetAPI, newBackend BackendFactory, notifier Notifier) *Tracker {
	return &Tracker{
		cfg:        cfg,
		sheets:     api,
		newBackend: newBackend,
		notifier:   notifier,
		res:        config.DefaultResilienceConfig,
		now:        time.Now,
	}
}

// RunOnce performs a single pass over every configured spreadsheet with
// one shared browser session. Per-task and per-spreadsheet failures are
// logged and skipped so partial progress survives.
func (t *Tracker) RunOnce(ctx context.Context) {
	log.Info().Int("spreadsheets", len(t.cfg.SpreadsheetIDs)).Msg("Starting run")
	started := t.now()

	backend, err := t.newBackend()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open parser session, run skipped")
		return
	}
	defer backend.Close()

	if err := backend.Warmup(ctx); err != nil {
		log.Warn().Err(err).Msg("Warmup failed, continuing")
	}

	var results []taskResult
	for _, spreadsheetID := range t.cfg.SpreadsheetIDs {
		sheetResults, err := t.processSpreadsheet(ctx, backend, spreadsheetID)
		results = append(results, sheetResults...)
		if err != nil {
			log.Error().Err(err).Str("spreadsheet", shortID(spreadsheetID)).Msg("Spreadsheet aborted")
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}

	log.Info().
		Int("tasks", len(results)).
		Dur("elapsed", t.now().Sub(started)).
		Msg("Run complete")
	t.notifyRun(ctx, results)
}

// RunLoop runs immediately, then on every tick of the configured interval.
func (t *Tracker) RunLoop(ctx context.Context) {
	log.Info().Dur("interval", t.cfg.RunInterval).Msg("Starting recurring runs")
	t.RunOnce(ctx)

	ticker := time.NewTicker(t.cfg.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Run loop stopped")
			return
		case <-ticker.C:
			t.RunOnce(ctx)
		}
	}
}

// processSpreadsheet reads one spreadsheet's tasks, resolves each position
// sequentially through the shared backend and writes results back.
func (t *Tracker) processSpreadsheet(ctx context.Context, backend parser.Backend, spreadsheetID string) ([]taskResult, error) {
	data, err := retry.WithRetry(ctx, t.res.SheetRead, func(ctx context.Context) ([][]interface{}, error) {
		return t.sheets.ReadSheet(ctx, spreadsheetID, t.cfg.WorksheetName+readRange)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}

	tasks := sheets.ParseTasks(spreadsheetID, data)
	if len(tasks) == 0 {
		log.Warn().Str("spreadsheet", shortID(spreadsheetID)).Msg("No tasks found")
		return nil, nil
	}

	columnIndex, err := t.resolveDateColumn(ctx, spreadsheetID, data)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("spreadsheet", shortID(spreadsheetID)).
		Int("tasks", len(tasks)).
		Int("max_position", t.cfg.MaxPosition).
		Msg("Tracking positions")

	var results []taskResult
	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		log.Info().
			Int("task", i+1).
			Int("of", len(tasks)).
			Str("article", task.Article).
			Str("query", task.Query).
			Msg("Resolving position")

		outcome, err := backend.FindPosition(ctx, task.Query, task.Article)
		if err != nil {
			results = append(results, taskResult{task: task, err: err})
			if errors.Is(err, parser.ErrBlocked) {
				// No point hammering the remaining queries from a
				// blocked session.
				return results, err
			}
			log.Error().Err(err).Int("row", task.Row).Msg("Task failed, skipping")
			continue
		}

		value := formatOutcome(outcome, t.cfg.MaxPosition)
		if err := t.writeResult(ctx, task, columnIndex, value); err != nil {
			log.Error().Err(err).Int("row", task.Row).Msg("Result write failed, value lost for this run")
			results = append(results, taskResult{task: task, err: err})
			continue
		}
		log.Info().Int("row", task.Row).Str("position", value).Msg("Recorded")
		results = append(results, taskResult{task: task, value: value})
	}
	return results, nil
}

// resolveDateColumn locates today's column in the header row, inserting a
// fresh column D when the date has no column yet.
func (t *Tracker) resolveDateColumn(ctx context.Context, spreadsheetID string, data [][]interface{}) (int, error) {
	label := sheets.TodayLabel(t.now())

	var header []interface{}
	if len(data) > 0 {
		header = data[0]
	}
	if index, ok := sheets.FindDateColumn(header, label); ok {
		log.Debug().Str("date", label).Str("column", sheets.ColumnLetter(index)).Msg("Date column exists")
		return index, nil
	}

	index := sheets.DateColumnIndex
	_, err := retry.WithRetry(ctx, t.res.SheetWrite, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.sheets.InsertColumn(ctx, spreadsheetID, t.cfg.WorksheetName, int64(index))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert date column: %w", err)
	}
	headerRef := sheets.CellRef(t.cfg.WorksheetName, index, 1)
	_, err = retry.WithRetry(ctx, t.res.SheetWrite, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.sheets.UpdateRange(ctx, spreadsheetID, headerRef, [][]interface{}{{label}})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to write date header: %w", err)
	}
	log.Info().Str("date", label).Msg("Inserted date column")
	return index, nil
}

func (t *Tracker) writeResult(ctx context.Context, task sheets.Task, columnIndex int, value string) error {
	ref := sheets.CellRef(t.cfg.WorksheetName, columnIndex, task.Row)
	_, err := retry.WithRetry(ctx, t.res.SheetWrite, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.sheets.UpdateRange(ctx, task.SpreadsheetID, ref, [][]interface{}{{value}})
	})
	return err
}

// formatOutcome maps a scan outcome to the cell value: the rank, "1000+"
// past the scan limit, "0" when the query returns nothing at all.
func formatOutcome(outcome parser.Outcome, maxPosition int) string {
	switch outcome.Status {
	case parser.Found:
		return strconv.Itoa(outcome.Position)
	case parser.NotFound:
		return "0"
	default:
		return fmt.Sprintf("%d+", maxPosition)
	}
}

// notifyRun sends the run digest; failures are logged only.
func (t *Tracker) notifyRun(ctx context.Context, results []taskResult) {
	if t.notifier == nil || !t.notifier.Enabled() || len(results) == 0 {
		return
	}

	var b strings.Builder
	failed := 0
	fmt.Fprintf(&b, "<b>Позиции за %s</b>\n", sheets.TodayLabel(t.now()))
	for _, r := range results {
		if r.err != nil {
			failed++
			continue
		}
		fmt.Fprintf(&b, "%s — %s: <b>%s</b>\n", r.task.Article, r.task.Query, r.value)
	}
	if failed > 0 {
		fmt.Fprintf(&b, "\nОшибок: %d", failed)
	}

	if err := t.notifier.SendMessage(ctx, b.String()); err != nil {
		log.Error().Err(err).Msg("Failed to send run summary")
	}
}

// SendSummary aggregates today's recorded values from every spreadsheet and
// sends the digest without any scraping.
func (t *Tracker) SendSummary(ctx context.Context) error {
	if t.notifier == nil || !t.notifier.Enabled() {
		return fmt.Errorf("notifications are not configured")
	}

	label := sheets.TodayLabel(t.now())
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Сводка позиций за %s</b>\n", label)

	total := 0
	for _, spreadsheetID := range t.cfg.SpreadsheetIDs {
		data, err := retry.WithRetry(ctx, t.res.SheetRead, func(ctx context.Context) ([][]interface{}, error) {
			return t.sheets.ReadSheet(ctx, spreadsheetID, t.cfg.WorksheetName+readRange)
		})
		if err != nil {
			log.Error().Err(err).Str("spreadsheet", shortID(spreadsheetID)).Msg("Summary read failed")
			continue
		}

		var header []interface{}
		if len(data) > 0 {
			header = data[0]
		}
		columnIndex, ok := sheets.FindDateColumn(header, label)
		if !ok {
			log.Warn().Str("spreadsheet", shortID(spreadsheetID)).Msg("No results recorded today")
			continue
		}

		for _, task := range sheets.ParseTasks(spreadsheetID, data) {
			if task.Row-1 >= len(data) {
				continue
			}
			value := cellValue(data[task.Row-1], columnIndex)
			if value == "" {
				continue
			}
			fmt.Fprintf(&b, "%s — %s: <b>%s</b>\n", task.Article, task.Query, value)
			total++
		}
	}

	if total == 0 {
		fmt.Fprintf(&b, "Нет данных")
	}
	return t.notifier.SendMessage(ctx, b.String())
}

func cellValue(row []interface{}, index int) string {
	if index < len(row) && row[index] != nil {
		return strings.TrimSpace(fmt.Sprintf("%v", row[index]))
	}
	return ""
}

func shortID(spreadsheetID string) string {
	if len(spreadsheetID) > 8 {
		return spreadsheetID[:8]
	}
	return spreadsheetID
}
