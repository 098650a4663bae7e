// Package payout wires the Stripe Connect payout context: connected account
// onboarding, the creator ledger fed by issued royalty statements, and the
// payout processor that turns reserved balance into transfers.
package payout
