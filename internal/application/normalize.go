package application

import (
	"txsync/internal/domain"

	"github.com/ethereum/go-ethereum/common/math"
)

// Normalize maps an explorer record onto the canonical schema. It never fails:
// absent fields take their defaults and amounts are copied verbatim.
func Normalize(raw domain.RawRecord, category domain.Category) domain.TransactionRecord {
	return domain.TransactionRecord{
		Hash:              raw.Hash.Value(),
		BlockNumber:       parseUint(raw.BlockNumber),
		Timestamp:         parseUint(raw.TimeStamp),
		From:              raw.From.Value(),
		To:                raw.To.Value(),
		Value:             raw.Value.Or("0"),
		Gas:               raw.Gas.Or("0"),
		GasPrice:          raw.GasPrice.Or("0"),
		GasUsed:           raw.GasUsed.Or("0"),
		CumulativeGasUsed: raw.CumulativeGasUsed.Ptr(),
		Category:          category,
		Input:             raw.Input.Value(),
		ContractAddress:   raw.ContractAddress.Ptr(),
		Nonce:             parseUint(raw.Nonce),
		Confirmations:     parseUint(raw.Confirmations),
		TransactionIndex:  parseUint(raw.TransactionIndex),
		IsError:           int(parseUint(raw.IsError)),
		ReceiptStatus:     raw.ReceiptStatus.Ptr(),
	}
}

func NormalizeAll(raws []domain.RawRecord, category domain.Category) []domain.TransactionRecord {
	records := make([]domain.TransactionRecord, 0, len(raws))
	for _, raw := range raws {
		records = append(records, Normalize(raw, category))
	}
	return records
}

// parseUint accepts decimal or 0x-prefixed hex; anything else counts as 0.
func parseUint(field domain.RawField) uint64 {
	if !field.Present() {
		return 0
	}
	value, ok := math.ParseUint64(field.Value())
	if !ok {
		return 0
	}
	return value
}
