// Package ledger contains the Ledger Sync bounded context.
// This context replicates paid storefront orders into an external billing ledger.
//
// Key concepts:
//   - Order / CartLine: read-only input produced by the storefront at checkout
//   - CatalogRules: slug and category exceptions for tax, codes and names, injected as data
//   - Reconciler: unbundles a cart and redistributes prices to match the collected payment
//   - Gateway: port for the remote ledger API (associates, goods, orders)
//   - OrderSource: port for loading orders and flagging them as synchronized
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package ledger
