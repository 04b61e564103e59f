package domain

import "fmt"

// Category is the explorer query that produced a transaction record.
type Category string

const (
	CategoryNormal   Category = "normal"
	CategoryToken    Category = "token"
	CategoryInternal Category = "internal"
)

// Categories lists every category in commit order.
var Categories = []Category{CategoryNormal, CategoryToken, CategoryInternal}

func (c Category) Valid() bool {
	switch c {
	case CategoryNormal, CategoryToken, CategoryInternal:
		return true
	default:
		return false
	}
}

func ParseCategory(raw string) (Category, error) {
	category := Category(raw)
	if !category.Valid() {
		return "", fmt.Errorf("unknown transaction category %q", raw)
	}
	return category, nil
}

// TransactionRecord is the canonical, persisted form of an explorer record.
// Amount and gas fields stay decimal strings so 256-bit values survive untouched.
type TransactionRecord struct {
	Hash              string
	BlockNumber       uint64
	Timestamp         uint64
	From              string
	To                string
	Value             string
	Gas               string
	GasPrice          string
	GasUsed           string
	CumulativeGasUsed *string
	Category          Category
	Input             string
	ContractAddress   *string
	Nonce             uint64
	Confirmations     uint64
	TransactionIndex  uint64
	IsError           int
	ReceiptStatus     *string
}
