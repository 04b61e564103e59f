package streaming

import (
	"encoding/json"
	"errors"

	"txsync/internal/domain"
)

type MessageType string

const MessageTypeTransaction MessageType = "transaction"

// TransactionMessage is the payload published for every committed record.
// Numeric amounts stay decimal strings exactly as the explorer sent them.
type TransactionMessage struct {
	Type              MessageType `json:"type"`
	Network           string      `json:"network"`
	ChainID           uint64      `json:"chain_id"`
	TraceID           string      `json:"trace_id,omitempty"`
	Address           string      `json:"address"`
	Hash              string      `json:"hash"`
	Category          string      `json:"category"`
	BlockNumber       uint64      `json:"block_number"`
	Timestamp         uint64      `json:"timestamp"`
	From              string      `json:"from,omitempty"`
	To                string      `json:"to,omitempty"`
	Value             string      `json:"value"`
	Gas               string      `json:"gas"`
	GasPrice          string      `json:"gas_price"`
	GasUsed           string      `json:"gas_used"`
	CumulativeGasUsed *string     `json:"cumulative_gas_used,omitempty"`
	Input             string      `json:"input,omitempty"`
	ContractAddress   *string     `json:"contract_address,omitempty"`
	Nonce             uint64      `json:"nonce"`
	Confirmations     uint64      `json:"confirmations"`
	TransactionIndex  uint64      `json:"transaction_index"`
	IsError           int         `json:"is_error"`
	ReceiptStatus     *string     `json:"receipt_status,omitempty"`
}

func NewTransactionMessage(network domain.Network, address string, record domain.TransactionRecord) TransactionMessage {
	return TransactionMessage{
		Type:              MessageTypeTransaction,
		Network:           network.Key,
		ChainID:           network.ChainID,
		Address:           address,
		Hash:              record.Hash,
		Category:          string(record.Category),
		BlockNumber:       record.BlockNumber,
		Timestamp:         record.Timestamp,
		From:              record.From,
		To:                record.To,
		Value:             record.Value,
		Gas:               record.Gas,
		GasPrice:          record.GasPrice,
		GasUsed:           record.GasUsed,
		CumulativeGasUsed: record.CumulativeGasUsed,
		Input:             record.Input,
		ContractAddress:   record.ContractAddress,
		Nonce:             record.Nonce,
		Confirmations:     record.Confirmations,
		TransactionIndex:  record.TransactionIndex,
		IsError:           record.IsError,
		ReceiptStatus:     record.ReceiptStatus,
	}
}

// Record converts the message back into the stored record shape.
func (m TransactionMessage) Record() domain.TransactionRecord {
	return domain.TransactionRecord{
		Hash:              m.Hash,
		BlockNumber:       m.BlockNumber,
		Timestamp:         m.Timestamp,
		From:              m.From,
		To:                m.To,
		Value:             m.Value,
		Gas:               m.Gas,
		GasPrice:          m.GasPrice,
		GasUsed:           m.GasUsed,
		CumulativeGasUsed: m.CumulativeGasUsed,
		Category:          domain.Category(m.Category),
		Input:             m.Input,
		ContractAddress:   m.ContractAddress,
		Nonce:             m.Nonce,
		Confirmations:     m.Confirmations,
		TransactionIndex:  m.TransactionIndex,
		IsError:           m.IsError,
		ReceiptStatus:     m.ReceiptStatus,
	}
}

func Encode(msg TransactionMessage) ([]byte, error) {
	if err := validate(msg); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (TransactionMessage, error) {
	var msg TransactionMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return TransactionMessage{}, err
	}
	if err := validate(msg); err != nil {
		return TransactionMessage{}, err
	}
	return msg, nil
}

func validate(msg TransactionMessage) error {
	if msg.Type == "" {
		return errors.New("message type is required")
	}
	if msg.ChainID == 0 {
		return errors.New("chain_id is required")
	}
	if msg.Hash == "" {
		return errors.New("hash is required")
	}
	return nil
}
