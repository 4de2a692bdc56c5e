// Package store implements the storage collaborator of the ledger: a
// transactional load/save key-value contract, in-memory and SQLite
// backends, and a CBOR codec that maps the auction aggregates onto keys.
//
// Layout:
//
//	auction              the auction record
//	escrow/<identity>    one entry per bidder
//	contract_info        name and version written at instantiation
//
// Hosts may keep their own keys (balances) in the same store so that a
// single transaction covers both.
package store
