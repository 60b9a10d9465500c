// Copyright 2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package impexp reads and writes the transaction CSV interchange format:
// one row per transaction with columns Account, Symbol, Name, Type, Market,
// TransactionType, Date, Quantity, Price, Fee, Currency, Note.
package impexp

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/folio-vault/folio-api/quote"
	"github.com/folio-vault/folio-api/snapshot"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

var (
	ErrBadHeader = errors.New("unexpected CSV header")
	ErrBadRow    = errors.New("could not parse CSV row")
)

var csvHeader = []string{
	"Account", "Symbol", "Name", "Type", "Market", "TransactionType",
	"Date", "Quantity", "Price", "Fee", "Currency", "Note",
}

// Row is one parsed CSV line: a transaction plus the account and holding
// attributes needed to place it.
type Row struct {
	Account     string
	Symbol      string
	Name        string
	AssetType   snapshot.AssetType
	Market      quote.Market
	Transaction *snapshot.Transaction
}

// Import parses transaction rows from r. Each transaction receives a
// deterministic SourceID derived from its identifying fields so importing
// the same file twice can be deduped by the caller.
func Import(r io.Reader) ([]*Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if len(header) != len(csvHeader) {
		return nil, fmt.Errorf("%w: got %d columns, want %d", ErrBadHeader, len(header), len(csvHeader))
	}
	for idx, col := range csvHeader {
		if header[idx] != col {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrBadHeader, idx, header[idx], col)
		}
	}

	rows := make([]*Row, 0)
	for lineNo := 2; ; lineNo++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadRow, lineNo, err)
		}

		row, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadRow, lineNo, err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func parseRow(record []string) (*Row, error) {
	date, err := time.Parse("2006-01-02", record[6])
	if err != nil {
		return nil, err
	}
	quantity, err := strconv.ParseFloat(record[7], 64)
	if err != nil {
		return nil, err
	}
	price, err := strconv.ParseFloat(record[8], 64)
	if err != nil {
		return nil, err
	}
	fee, err := strconv.ParseFloat(record[9], 64)
	if err != nil {
		return nil, err
	}

	kind := record[5]
	switch kind {
	case snapshot.BuyTransaction, snapshot.SellTransaction, snapshot.DividendTransaction:
	default:
		return nil, fmt.Errorf("unknown transaction type %q", kind)
	}

	trx := &snapshot.Transaction{
		ID:            uuid.New(),
		Kind:          kind,
		Date:          date,
		Shares:        quantity,
		PricePerShare: price,
		Fee:           fee,
		Currency:      record[10],
		Note:          record[11],
	}

	row := &Row{
		Account:     record[0],
		Symbol:      record[1],
		Name:        record[2],
		AssetType:   snapshot.AssetType(record[3]),
		Market:      quote.Market(record[4]),
		Transaction: trx,
	}

	if err := computeSourceID(row); err != nil {
		log.Warn().Stack().Err(err).Str("Symbol", row.Symbol).Time("TransactionDate", date).Msg("couldn't compute SourceID for imported transaction")
	}

	return row, nil
}

// computeSourceID hashes the transaction's identifying fields into a stable
// ID for dedup on re-import.
func computeSourceID(row *Row) error {
	h := blake3.New()

	d, err := row.Transaction.Date.UTC().MarshalText()
	if err != nil {
		return err
	}
	if _, err := h.Write(d); err != nil {
		return err
	}
	if _, err := h.Write([]byte(row.Account)); err != nil {
		return err
	}
	if _, err := h.Write([]byte(row.Symbol)); err != nil {
		return err
	}
	if _, err := h.Write([]byte(row.Transaction.Kind)); err != nil {
		return err
	}
	if _, err := h.Write([]byte(strconv.FormatFloat(row.Transaction.Shares, 'f', -1, 64))); err != nil {
		return err
	}
	if _, err := h.Write([]byte(strconv.FormatFloat(row.Transaction.PricePerShare, 'f', -1, 64))); err != nil {
		return err
	}

	row.Transaction.SourceID = h.Sum(nil)
	return nil
}

// Export writes one CSV row per transaction across the portfolio's
// holdings, in the interchange column order.
func Export(w io.Writer, p *snapshot.Portfolio) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, h := range p.Holdings {
		for _, trx := range h.Transactions {
			record := []string{
				p.Name,
				h.Symbol,
				h.Name,
				string(h.AssetType),
				string(h.Market),
				trx.Kind,
				trx.Date.Format("2006-01-02"),
				strconv.FormatFloat(trx.Shares, 'f', -1, 64),
				strconv.FormatFloat(trx.PricePerShare, 'f', -1, 64),
				strconv.FormatFloat(trx.Fee, 'f', -1, 64),
				trx.Currency,
				trx.Note,
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}
