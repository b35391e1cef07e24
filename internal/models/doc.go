// Package models defines the core domain records of the settlement engine.
//
// # Authoritative vs derived records
//
// Expense is the only authoritative record: it is persisted by the store and
// replayed to rebuild everything else.
//
//   - ResolvedSplit: per-member paid/owed for one expense (derived, never stored)
//   - Balance: running net per member per currency (owned by the ledger)
//   - Transfer: one settlement recommendation (recomputed on demand)
//
// # Conventions
//
// 1. **Minor units**: every amount is a money.Money; no floats anywhere.
// 2. **Sign**: a positive net means the group owes the member.
// 3. **IDs as strings**: users, groups and expenses are referenced by ID strings,
// never by pointers.
package models
