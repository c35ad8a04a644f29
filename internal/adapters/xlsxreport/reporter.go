// Package xlsxreport renders a completed run as the reviewer-facing Excel
// workbook: correlated events, the two residual sets, the session timeline and
// a summary sheet, with rows color-coded by risk tier.
package xlsxreport

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/audithound/saptrail/internal/core/domain"
	"github.com/audithound/saptrail/internal/core/ports"
)

const (
	sheetCorrelated      = "Correlated_Events"
	sheetUnmatchedCDPOS  = "Unmatched_CDPOS"
	sheetUnmatchedSM20   = "Unmatched_SM20"
	sheetSessionTimeline = "Session_Timeline"
	sheetSummary         = "Summary"

	timestampFormat = "2006-01-02 15:04:05"
)

// Fill colors, chosen to match the conditional-formatting palette reviewers
// already know from Excel's built-in styles.
const (
	colorHeader = "D9E1F2"
	colorHigh   = "FFC7CE"
	colorMedium = "FFEB9C"
	colorLow    = "C6EFCE"
)

// Reporter implements ports.Reporter by writing a workbook to path.
type Reporter struct {
	path string
}

var _ ports.Reporter = (*Reporter)(nil)

func NewReporter(path string) *Reporter {
	return &Reporter{path: path}
}

// styles holds the style IDs registered on one workbook.
type styles struct {
	header int
	byRisk map[domain.RiskLevel]int
}

func (r *Reporter) Write(ctx context.Context, res domain.AnalysisResult) error {
	f := excelize.NewFile()
	defer f.Close()

	st, err := registerStyles(f)
	if err != nil {
		return fmt.Errorf("register styles: %w", err)
	}

	if err := r.writeCorrelated(f, st, res.Correlated); err != nil {
		return err
	}
	if err := r.writeUnmatchedChanges(f, st, res.UnmatchedChanges); err != nil {
		return err
	}
	if err := r.writeUnmatchedAccess(f, st, res.UnmatchedAccess); err != nil {
		return err
	}
	if err := r.writeTimeline(f, st, res.Timeline); err != nil {
		return err
	}
	if err := r.writeSummary(f, st, res.Run); err != nil {
		return err
	}

	// The default sheet is replaced by Summary as the landing page.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(sheetSummary); err == nil {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(r.path); err != nil {
		return fmt.Errorf("save report %s: %w", r.path, err)
	}
	return nil
}

func registerStyles(f *excelize.File) (styles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{colorHeader}},
	})
	if err != nil {
		return styles{}, err
	}

	byRisk := make(map[domain.RiskLevel]int, 3)
	for level, color := range map[domain.RiskLevel]string{
		domain.RiskHigh:   colorHigh,
		domain.RiskMedium: colorMedium,
		domain.RiskLow:    colorLow,
	} {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			return styles{}, err
		}
		byRisk[level] = id
	}
	return styles{header: header, byRisk: byRisk}, nil
}

func (r *Reporter) writeCorrelated(f *excelize.File, st styles, events []domain.ClassifiedCorrelated) error {
	headers := []string{
		"User", "Change Time", "Event Time", "Delta (s)", "TCode", "Table",
		"Indicator", "Field", "Old Value", "New Value", "Event Text",
		"Ticket", "Comment", "Risk", "Rationale",
	}
	rows := make([]row, 0, len(events))
	for _, ev := range events {
		var eventTime, ticket, comment, text string
		if ev.Access != nil {
			eventTime = formatTime(ev.Access.Timestamp)
			ticket = ev.Access.TicketRef
			comment = ev.Access.ReviewComment
			text = ev.Access.MessageText
		}
		rows = append(rows, row{
			level: ev.Risk.Level,
			cells: []any{
				ev.Change.User, formatTime(ev.Change.Timestamp), eventTime,
				int(ev.TimeDelta.Seconds()), ev.Change.TransactionCode,
				ev.Change.TableName, ev.Change.ChangeIndicator, ev.Change.FieldName,
				ev.Change.OldValue, ev.Change.NewValue, text, ticket, comment,
				string(ev.Risk.Level), ev.Risk.Rationale,
			},
		})
	}
	return writeSheet(f, st, sheetCorrelated, headers, rows)
}

func (r *Reporter) writeUnmatchedChanges(f *excelize.File, st styles, changes []domain.ClassifiedChange) error {
	headers := []string{
		"User", "Change Time", "TCode", "Table", "Indicator", "Field",
		"Old Value", "New Value", "Risk", "Rationale",
	}
	rows := make([]row, 0, len(changes))
	for _, ch := range changes {
		rows = append(rows, row{
			level: ch.Risk.Level,
			cells: []any{
				ch.User, formatTime(ch.Timestamp), ch.TransactionCode,
				ch.TableName, ch.ChangeIndicator, ch.FieldName,
				ch.OldValue, ch.NewValue, string(ch.Risk.Level), ch.Risk.Rationale,
			},
		})
	}
	return writeSheet(f, st, sheetUnmatchedCDPOS, headers, rows)
}

func (r *Reporter) writeUnmatchedAccess(f *excelize.File, st styles, events []domain.ClassifiedAccess) error {
	headers := []string{
		"User", "Event Time", "TCode", "Message", "Ticket", "Comment",
		"Risk", "Rationale",
	}
	rows := make([]row, 0, len(events))
	for _, ev := range events {
		rows = append(rows, row{
			level: ev.Risk.Level,
			cells: []any{
				ev.User, formatTime(ev.Timestamp), ev.TransactionCode,
				ev.MessageText, ev.TicketRef, ev.ReviewComment,
				string(ev.Risk.Level), ev.Risk.Rationale,
			},
		})
	}
	return writeSheet(f, st, sheetUnmatchedSM20, headers, rows)
}

func (r *Reporter) writeTimeline(f *excelize.File, st styles, entries []domain.TimelineEntry) error {
	headers := []string{
		"Seq", "Session", "Source", "User", "Time", "TCode", "Table",
		"Indicator", "Field", "Old Value", "New Value", "Description",
		"Correlated", "Risk", "Rationale",
	}
	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, row{
			level: e.Risk.Level,
			cells: []any{
				e.Seq, e.SessionID, e.Source, e.User, formatTime(e.Timestamp),
				e.TransactionCode, e.TableName, e.ChangeIndicator, e.FieldName,
				e.OldValue, e.NewValue, e.Description, e.Correlated,
				string(e.Risk.Level), e.Risk.Rationale,
			},
		})
	}
	return writeSheet(f, st, sheetSessionTimeline, headers, rows)
}

func (r *Reporter) writeSummary(f *excelize.File, st styles, run domain.Run) error {
	mode := "nearest-in-time"
	if run.Approximate {
		mode = "equality join (approximate)"
	}
	rows := []row{
		{cells: []any{"Run ID", run.ID}},
		{cells: []any{"Started", formatTime(run.StartedAt)}},
		{cells: []any{"Finished", formatTime(run.FinishedAt)}},
		{cells: []any{"Correlation tolerance", run.Tolerance.String()}},
		{cells: []any{"Correlation mode", mode}},
		{cells: []any{"Access log rows", run.Stats.AccessRows}},
		{cells: []any{"Access rows dropped", run.Stats.AccessDropped}},
		{cells: []any{"Change header rows", run.Stats.HeaderRows}},
		{cells: []any{"Change headers dropped", run.Stats.HeaderDropped}},
		{cells: []any{"Change item rows", run.Stats.ItemRows}},
		{cells: []any{"Assembled change records", run.Stats.ChangeRecords}},
		{cells: []any{"Correlated events", run.Stats.Matched}},
		{cells: []any{"Unmatched changes", run.Stats.UnmatchedChanges}},
		{cells: []any{"Unmatched access events", run.Stats.UnmatchedAccess}},
		{level: domain.RiskHigh, cells: []any{"High risk", run.Stats.HighRisk}},
		{level: domain.RiskMedium, cells: []any{"Medium risk", run.Stats.MediumRisk}},
		{level: domain.RiskLow, cells: []any{"Low risk", run.Stats.LowRisk}},
		{cells: []any{"Unknown risk", run.Stats.UnknownRisk}},
	}
	return writeSheet(f, st, sheetSummary, []string{"Metric", "Value"}, rows)
}

type row struct {
	level domain.RiskLevel
	cells []any
}

func writeSheet(f *excelize.File, st styles, name string, headers []string, rows []row) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("sheet %s: %w", name, err)
	}

	headerCells := make([]any, len(headers))
	for i, h := range headers {
		headerCells[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &headerCells); err != nil {
		return fmt.Errorf("sheet %s header: %w", name, err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return fmt.Errorf("sheet %s: %w", name, err)
	}
	if err := f.SetCellStyle(name, "A1", lastCol+"1", st.header); err != nil {
		return fmt.Errorf("sheet %s header style: %w", name, err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("sheet %s: %w", name, err)
		}
		if err := f.SetSheetRow(name, cell, &r.cells); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", name, i+2, err)
		}
		if styleID, ok := st.byRisk[r.level]; ok {
			if err := f.SetCellStyle(name, cell, fmt.Sprintf("%s%d", lastCol, i+2), styleID); err != nil {
				return fmt.Errorf("sheet %s row %d style: %w", name, i+2, err)
			}
		}
	}

	if err := f.SetPanes(name, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("sheet %s panes: %w", name, err)
	}
	if len(rows) > 0 && len(headers) > 2 {
		ref := fmt.Sprintf("A1:%s%d", lastCol, len(rows)+1)
		if err := f.AutoFilter(name, ref, nil); err != nil {
			return fmt.Errorf("sheet %s autofilter: %w", name, err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timestampFormat)
}
