// Package models defines the core domain models for Wolls.
//
// # Models
//
//   - User: a registered account, identified by an immutable ID and a unique pseudonym
//   - Group: a shared-expense circle with at least one administrator
//   - Membership: the invitation/acceptance/admin state of a user in a group
//   - Expense: a payment made by one member on behalf of a set of recipients
//
// Refund obligations and balances are derived from expenses by the calculator
// package and are never stored.
//
// # Design Principles
//
//  1. Relationships are ID strings, not pointers
//  2. Money is a decimal.Decimal; float64 only appears at the JSON edge
//  3. Closed sets (categories, membership states) are typed constants
package models
