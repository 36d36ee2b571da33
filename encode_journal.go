package cryptofolio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// DecodeTransaction decodes one JSON transaction, dispatching on its
// "command" field.
func DecodeTransaction(data []byte) (Transaction, error) {
	var identifier struct {
		Command CommandType `json:"command"`
	}
	if err := json.Unmarshal(data, &identifier); err != nil {
		return nil, fmt.Errorf("could not identify command in %q: %w", string(data), err)
	}
	var tx Transaction
	var err error
	switch identifier.Command {
	case CmdBuy:
		var v Buy
		err = json.Unmarshal(data, &v)
		tx = v
	case CmdSell:
		var v Sell
		err = json.Unmarshal(data, &v)
		tx = v
	case CmdTransfer:
		var v Transfer
		err = json.Unmarshal(data, &v)
		tx = v
	case CmdSwap:
		var v Swap
		err = json.Unmarshal(data, &v)
		tx = v
	case CmdVoid:
		var v Void
		err = json.Unmarshal(data, &v)
		tx = v
	default:
		return nil, fmt.Errorf("unknown command %q", identifier.Command)
	}
	if err != nil {
		return nil, fmt.Errorf("could not decode %s: %w", identifier.Command, err)
	}
	return tx, nil
}

// EncodeTransaction writes tx as one JSON line.
func EncodeTransaction(w io.Writer, tx Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write transaction: %w", err)
	}
	return nil
}

// EncodeJournal writes transactions in JSONL format, in the given order.
func EncodeJournal(w io.Writer, txs []Transaction) error {
	for _, tx := range txs {
		if err := EncodeTransaction(w, tx); err != nil {
			return err
		}
	}
	return nil
}

// DecodeJournal reads a JSONL stream of transactions. Empty lines are skipped.
func DecodeJournal(r io.Reader) ([]Transaction, error) {
	var txs []Transaction
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		tx, err := DecodeTransaction(data)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		txs = append(txs, tx)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading journal: %w", err)
	}
	return txs, nil
}
