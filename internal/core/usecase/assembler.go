package usecase

import (
	"github.com/audithound/saptrail/internal/core/domain"
)

// Assembler inner-joins change-document headers with their line items on the
// document number, producing one ChangeRecord per (header, item) pair. Headers
// without items and items without headers do not appear in the output.
type Assembler struct{}

func NewAssembler() *Assembler { return &Assembler{} }

// Assemble performs the strict inner join. A populated input whose join key
// is entirely empty indicates the source schema lacked the document-number
// column; that is a configuration error, not bad data, and aborts the run.
func (a *Assembler) Assemble(headers []domain.ChangeHeader, items []domain.ChangeItem) ([]domain.ChangeRecord, error) {
	if err := checkJoinKey(headers, items); err != nil {
		return nil, err
	}

	byDoc := make(map[string]domain.ChangeHeader, len(headers))
	for _, h := range headers {
		if h.DocumentNumber == "" {
			continue
		}
		byDoc[h.DocumentNumber] = h
	}

	records := make([]domain.ChangeRecord, 0, len(items))
	for _, item := range items {
		header, ok := byDoc[item.DocumentNumber]
		if !ok {
			continue
		}
		records = append(records, domain.ChangeRecord{
			ChangeItem:      item,
			User:            header.User,
			Timestamp:       header.Timestamp,
			TransactionCode: header.TransactionCode,
			ObjectClass:     header.ObjectClass,
			ObjectValue:     header.ObjectValue,
		})
	}
	return records, nil
}

func checkJoinKey(headers []domain.ChangeHeader, items []domain.ChangeItem) error {
	if len(headers) > 0 && allHeadersKeyless(headers) {
		return &domain.MissingColumnError{Source: "change headers", Column: "document number"}
	}
	if len(items) > 0 && allItemsKeyless(items) {
		return &domain.MissingColumnError{Source: "change items", Column: "document number"}
	}
	return nil
}

func allHeadersKeyless(headers []domain.ChangeHeader) bool {
	for _, h := range headers {
		if h.DocumentNumber != "" {
			return false
		}
	}
	return true
}

func allItemsKeyless(items []domain.ChangeItem) bool {
	for _, it := range items {
		if it.DocumentNumber != "" {
			return false
		}
	}
	return true
}
