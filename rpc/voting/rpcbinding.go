// Package voting contains RPC wrappers for the Voting contract.
package voting

import (
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// Candidate is a contract-specific voting.Candidate type used by its methods.
type Candidate struct {
	ID        *big.Int
	Name      string
	Party     string
	VoteCount *big.Int
}

// Dates is a contract-specific voting.Dates type used by its methods.
type Dates struct {
	Start *big.Int
	End   *big.Int
}

// Invoker is used by ContractReader to call various safe methods.
type Invoker interface {
	Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error)
}

// Actor is used by Contract to call state-changing methods.
type Actor interface {
	Invoker

	MakeCall(contract util.Uint160, method string, params ...any) (*transaction.Transaction, error)
	MakeUnsignedCall(contract util.Uint160, method string, attrs []transaction.Attribute, params ...any) (*transaction.Transaction, error)
	SendCall(contract util.Uint160, method string, params ...any) (util.Uint256, uint32, error)
}

// ContractReader implements safe contract methods.
type ContractReader struct {
	invoker Invoker
	hash    util.Uint160
}

// Contract implements all contract methods.
type Contract struct {
	ContractReader
	actor Actor
	hash  util.Uint160
}

// NewReader creates an instance of ContractReader using provided contract hash and the given Invoker.
func NewReader(invoker Invoker, hash util.Uint160) *ContractReader {
	return &ContractReader{invoker, hash}
}

// New creates an instance of Contract using provided contract hash and the given Actor.
func New(actor Actor, hash util.Uint160) *Contract {
	return &Contract{ContractReader{actor, hash}, actor, hash}
}

// Hash returns the address of the contract the reader is bound to.
func (c *ContractReader) Hash() util.Uint160 {
	return c.hash
}

// CheckVote invokes `checkVote` method of contract.
func (c *ContractReader) CheckVote(voter util.Uint160) (bool, error) {
	return unwrap.Bool(c.invoker.Call(c.hash, "checkVote", voter))
}

// GetCandidate invokes `getCandidate` method of contract.
func (c *ContractReader) GetCandidate(candidateID *big.Int) (*Candidate, error) {
	return itemToCandidate(unwrap.Item(c.invoker.Call(c.hash, "getCandidate", candidateID)))
}

// GetCountCandidates invokes `getCountCandidates` method of contract.
func (c *ContractReader) GetCountCandidates() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "getCountCandidates"))
}

// GetDates invokes `getDates` method of contract.
func (c *ContractReader) GetDates() (*Dates, error) {
	return itemToDates(unwrap.Item(c.invoker.Call(c.hash, "getDates")))
}

// AddCandidate creates a transaction invoking `addCandidate` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) AddCandidate(name string, party string) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "addCandidate", name, party)
}

// AddCandidateTransaction creates a transaction invoking `addCandidate` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) AddCandidateTransaction(name string, party string) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "addCandidate", name, party)
}

// AddCandidateUnsigned creates a transaction invoking `addCandidate` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) AddCandidateUnsigned(name string, party string) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "addCandidate", nil, name, party)
}

// SetDates creates a transaction invoking `setDates` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) SetDates(startDate *big.Int, endDate *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "setDates", startDate, endDate)
}

// SetDatesTransaction creates a transaction invoking `setDates` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) SetDatesTransaction(startDate *big.Int, endDate *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "setDates", startDate, endDate)
}

// SetDatesUnsigned creates a transaction invoking `setDates` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) SetDatesUnsigned(startDate *big.Int, endDate *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "setDates", nil, startDate, endDate)
}

// Vote creates a transaction invoking `vote` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) Vote(voter util.Uint160, candidateID *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "vote", voter, candidateID)
}

// VoteTransaction creates a transaction invoking `vote` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) VoteTransaction(voter util.Uint160, candidateID *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "vote", voter, candidateID)
}

// VoteUnsigned creates a transaction invoking `vote` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) VoteUnsigned(voter util.Uint160, candidateID *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "vote", nil, voter, candidateID)
}

// itemToCandidate converts stack item into *Candidate.
func itemToCandidate(item stackitem.Item, err error) (*Candidate, error) {
	if err != nil {
		return nil, err
	}
	var res = new(Candidate)
	err = res.FromStackItem(item)
	return res, err
}

// FromStackItem retrieves fields of Candidate from the given
// [stackitem.Item] or returns an error if it's not possible to do to so.
func (res *Candidate) FromStackItem(item stackitem.Item) error {
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 4 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err   error
	)
	index++
	res.ID, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field ID: %w", err)
	}

	index++
	res.Name, err = itemToUTF8String(arr[index])
	if err != nil {
		return fmt.Errorf("field Name: %w", err)
	}

	index++
	res.Party, err = itemToUTF8String(arr[index])
	if err != nil {
		return fmt.Errorf("field Party: %w", err)
	}

	index++
	res.VoteCount, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field VoteCount: %w", err)
	}

	return nil
}

// itemToDates converts stack item into *Dates.
func itemToDates(item stackitem.Item, err error) (*Dates, error) {
	if err != nil {
		return nil, err
	}
	var res = new(Dates)
	err = res.FromStackItem(item)
	return res, err
}

// FromStackItem retrieves fields of Dates from the given
// [stackitem.Item] or returns an error if it's not possible to do to so.
func (res *Dates) FromStackItem(item stackitem.Item) error {
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 2 {
		return errors.New("wrong number of structure elements")
	}

	var err error

	res.Start, err = arr[0].TryInteger()
	if err != nil {
		return fmt.Errorf("field Start: %w", err)
	}

	res.End, err = arr[1].TryInteger()
	if err != nil {
		return fmt.Errorf("field End: %w", err)
	}

	return nil
}

func itemToUTF8String(item stackitem.Item) (string, error) {
	b, err := item.TryBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.New("not a UTF-8 string")
	}
	return string(b), nil
}
