// Package cryptofolio keeps a local ledger of crypto and fiat holdings across
// accounts and derives their cost basis from a journal of transactions.
//
// The core functionalities include:
//   - Transaction Journal: an append-only record of buys, sells, transfers,
//     swaps and voids. Nothing is ever edited; a void appends the reversal.
//   - Cost-Basis Engine: applies a transaction to the holdings atomically,
//     blending buys into a weighted average cost, carrying the average along
//     transfers and realizing gains on sells.
//   - Holding Ledger: per (account, asset) quantity and average cost, always
//     equal to a replay of the journal, which Verify checks.
//   - Exchange Rates: a historized table of rates per currency pair, used to
//     convert costs and fed by the rates fiat swaps imply.
//   - Portfolio views: values the holdings at injected prices and groups
//     them by category, asset and account.
//
// A Book exposes these operations over a Store: NewMemoryStore for tests, or
// the sqlite package for the ledger of the cfo command-line tool.
package cryptofolio
