// Package csvfile reads column-mapped CSV exports of the SAP security-audit
// log (SM20) and change documents (CDHDR headers, CDPOS items). Header names
// are matched case-insensitively against a small alias table, so both raw
// table exports and reporting-layer exports load without reconfiguration.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/audithound/saptrail/internal/core/domain"
)

// Canonical column names used by the alias tables below.
const (
	colDate      = "date"
	colTime      = "time"
	colUser      = "user"
	colTCode     = "transaction code"
	colMessage   = "message text"
	colTicket    = "ticket"
	colComment   = "comment"
	colDocNumber = "document number"
	colObjClass  = "object class"
	colObjValue  = "object value"
	colTable     = "table name"
	colIndicator = "change indicator"
	colField     = "field name"
	colOldValue  = "old value"
	colNewValue  = "new value"
	colAging     = "aging filter"
)

var accessAliases = map[string][]string{
	colDate:    {"DATE", "LOG DATE", "DATUM"},
	colTime:    {"TIME", "LOG TIME", "UZEIT"},
	colUser:    {"USER", "USER ID", "ACCOUNT", "BNAME"},
	colTCode:   {"TRANSACTION CODE", "TCODE", "SOURCE TA"},
	colMessage: {"AUDIT LOG MSG. TEXT", "MESSAGE TEXT", "MESSAGE", "TEXT"},
	colTicket:  {"SYSAID #", "SYSAID", "TICKET #", "TICKET"},
	colComment: {"COMMENTS", "COMMENT", "REVIEW COMMENT"},
}

var headerAliases = map[string][]string{
	colDocNumber: {"DOC.NUMBER", "DOCUMENT NUMBER", "CHANGENR"},
	colDate:      {"DATE", "CHANGE DATE", "UDATE"},
	colTime:      {"TIME", "UTIME"},
	colUser:      {"USER", "USERNAME"},
	colTCode:     {"TCODE", "TRANSACTION CODE"},
	colObjClass:  {"OBJECT", "OBJECTCLAS"},
	colObjValue:  {"OBJECT VALUE", "OBJECTID"},
}

var itemAliases = map[string][]string{
	colDocNumber: {"DOC.NUMBER", "DOCUMENT NUMBER", "CHANGENR"},
	colTable:     {"TABLE NAME", "TABNAME"},
	colIndicator: {"CHANGE INDICATOR", "CHNGIND"},
	colField:     {"FIELD NAME", "FNAME"},
	colOldValue:  {"OLD VALUE", "VALUE_OLD"},
	colNewValue:  {"NEW VALUE", "VALUE_NEW"},
	colAging:     {"DATA AGING FILTER", "DATA AGING", "AGING FILTER"},
}

// AccessLog implements ports.AccessLogSource over an SM20 CSV export.
type AccessLog struct {
	path string
}

func NewAccessLog(path string) *AccessLog {
	return &AccessLog{path: path}
}

func (a *AccessLog) Load(ctx context.Context) ([]domain.AccessLogRow, error) {
	var out []domain.AccessLogRow
	err := readRows(a.path, accessAliases, []string{colDate, colTime, colUser}, func(row cells) {
		out = append(out, domain.AccessLogRow{
			Date:            row.get(colDate),
			Time:            row.get(colTime),
			User:            row.get(colUser),
			TransactionCode: row.get(colTCode),
			MessageText:     row.get(colMessage),
			TicketRef:       row.get(colTicket),
			ReviewComment:   row.get(colComment),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("access log %s: %w", a.path, err)
	}
	return out, nil
}

// ChangeDocuments implements ports.ChangeDocumentSource over a CDHDR and a
// CDPOS CSV export.
type ChangeDocuments struct {
	headerPath string
	itemPath   string
}

func NewChangeDocuments(headerPath, itemPath string) *ChangeDocuments {
	return &ChangeDocuments{headerPath: headerPath, itemPath: itemPath}
}

func (c *ChangeDocuments) LoadHeaders(ctx context.Context) ([]domain.ChangeHeaderRow, error) {
	var out []domain.ChangeHeaderRow
	required := []string{colDocNumber, colDate, colTime, colUser}
	err := readRows(c.headerPath, headerAliases, required, func(row cells) {
		out = append(out, domain.ChangeHeaderRow{
			DocumentNumber:  row.get(colDocNumber),
			Date:            row.get(colDate),
			Time:            row.get(colTime),
			User:            row.get(colUser),
			TransactionCode: row.get(colTCode),
			ObjectClass:     row.get(colObjClass),
			ObjectValue:     row.get(colObjValue),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("change headers %s: %w", c.headerPath, err)
	}
	return out, nil
}

func (c *ChangeDocuments) LoadItems(ctx context.Context) ([]domain.ChangeItemRow, error) {
	var out []domain.ChangeItemRow
	required := []string{colDocNumber, colTable, colIndicator}
	err := readRows(c.itemPath, itemAliases, required, func(row cells) {
		out = append(out, domain.ChangeItemRow{
			DocumentNumber:  row.get(colDocNumber),
			TableName:       row.get(colTable),
			ChangeIndicator: row.get(colIndicator),
			FieldName:       row.get(colField),
			OldValue:        row.get(colOldValue),
			NewValue:        row.get(colNewValue),
			AgingFilter:     row.get(colAging),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("change items %s: %w", c.itemPath, err)
	}
	return out, nil
}

// cells is one data row plus the resolved column mapping.
type cells struct {
	record  []string
	columns map[string]int
}

// get returns the trimmed cell for a canonical column, or "" when the column
// is absent or the row is short.
func (c cells) get(name string) string {
	idx, ok := c.columns[name]
	if !ok || idx >= len(c.record) {
		return ""
	}
	return strings.TrimSpace(c.record[idx])
}

func readRows(path string, aliases map[string][]string, required []string, visit func(cells)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return &domain.MissingColumnError{Source: path, Column: required[0]}
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	columns := mapHeader(header, aliases)
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			return &domain.MissingColumnError{Source: path, Column: name}
		}
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		visit(cells{record: record, columns: columns})
	}
}

// mapHeader resolves each canonical column to the first header cell matching
// one of its aliases. Matching is case-insensitive on the trimmed cell.
func mapHeader(header []string, aliases map[string][]string) map[string]int {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToUpper(strings.TrimSpace(h))
	}

	columns := make(map[string]int, len(aliases))
	for name, candidates := range aliases {
		for _, cand := range candidates {
			for i, h := range normalized {
				if h == cand {
					columns[name] = i
					break
				}
			}
			if _, ok := columns[name]; ok {
				break
			}
		}
	}
	return columns
}
