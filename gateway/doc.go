/*
Package gateway provides the Ledger Gateway: a stateless conduit translating
voting session calls into reads and confirmed writes of the Voting contract.

Gateway owns no state. Every read re-fetches from the chain and every write
blocks until the transaction is accepted, rejected or the context is done.
Failures are reported as *Error values of one of the kinds: unreachable,
rejected, timeout, malformed.

Ledger is the Gateway implementation on top of Neo RPC actor.
*/
package gateway
