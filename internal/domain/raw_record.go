package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawField is a single explorer field that may be missing. Explorers usually
// send strings, but bare JSON numbers are accepted and their literal text kept.
type RawField struct {
	value   string
	present bool
}

// Field builds a present RawField.
func Field(value string) RawField {
	return RawField{value: value, present: true}
}

// Value returns the raw text, or "" when the field was missing.
func (f RawField) Value() string {
	return f.value
}

// Present reports whether the field carried a non-empty value.
func (f RawField) Present() bool {
	return f.present && f.value != ""
}

func (f RawField) Or(fallback string) string {
	if !f.Present() {
		return fallback
	}
	return f.value
}

func (f RawField) Ptr() *string {
	if !f.Present() {
		return nil
	}
	value := f.value
	return &value
}

func (f *RawField) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = RawField{}
		return nil
	}
	switch trimmed[0] {
	case '"':
		var value string
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return err
		}
		*f = Field(value)
	case '{', '[':
		return fmt.Errorf("unsupported raw field value %s", trimmed)
	default:
		*f = Field(string(trimmed))
	}
	return nil
}

func (f RawField) MarshalJSON() ([]byte, error) {
	if !f.present {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// RawRecord is an explorer transaction as returned by txlist, tokentx or
// txlistinternal. Every field is optional; Normalize applies the defaults.
type RawRecord struct {
	Hash              RawField `json:"hash"`
	BlockNumber       RawField `json:"blockNumber"`
	TimeStamp         RawField `json:"timeStamp"`
	From              RawField `json:"from"`
	To                RawField `json:"to"`
	Value             RawField `json:"value"`
	Gas               RawField `json:"gas"`
	GasPrice          RawField `json:"gasPrice"`
	GasUsed           RawField `json:"gasUsed"`
	CumulativeGasUsed RawField `json:"cumulativeGasUsed"`
	Input             RawField `json:"input"`
	ContractAddress   RawField `json:"contractAddress"`
	Nonce             RawField `json:"nonce"`
	Confirmations     RawField `json:"confirmations"`
	TransactionIndex  RawField `json:"transactionIndex"`
	IsError           RawField `json:"isError"`
	ReceiptStatus     RawField `json:"txreceipt_status"`
	TransactionType   RawField `json:"transactionType"`
}
