// Package ledger credits and debits user point balances.
//
// Every balance change is handed to the Store as a single unit: the
// activity or redemption record, its journal entry and the balance delta
// commit together or not at all. Balances are never computed client-side
// and written back, so concurrent operations on the same user cannot lose
// updates.
package ledger
