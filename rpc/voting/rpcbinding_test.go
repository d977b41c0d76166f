package voting

import (
	"errors"
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
)

type testInv struct {
	err error
	res *result.Invoke

	method string
	params []any
}

func (t *testInv) Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error) {
	t.method = operation
	t.params = params
	return t.res, t.err
}

type testAct struct {
	testInv

	sent []string
}

func (t *testAct) MakeCall(contract util.Uint160, method string, params ...any) (*transaction.Transaction, error) {
	return nil, errors.New("not implemented")
}

func (t *testAct) MakeUnsignedCall(contract util.Uint160, method string, attrs []transaction.Attribute, params ...any) (*transaction.Transaction, error) {
	return nil, errors.New("not implemented")
}

func (t *testAct) SendCall(contract util.Uint160, method string, params ...any) (util.Uint256, uint32, error) {
	t.sent = append(t.sent, method)
	t.params = params
	return util.Uint256{1}, 100, nil
}

func halt(items ...stackitem.Item) *result.Invoke {
	return &result.Invoke{State: "HALT", Stack: items}
}

func TestContractReader_GetCandidate(t *testing.T) {
	ti := new(testInv)
	r := NewReader(ti, util.Uint160{1, 2, 3})

	ti.err = errors.New("bad")
	_, err := r.GetCandidate(big.NewInt(1))
	require.Error(t, err)

	ti.err = nil
	ti.res = halt(stackitem.Make([]stackitem.Item{stackitem.Make(1)}))
	_, err = r.GetCandidate(big.NewInt(1))
	require.Error(t, err)

	ti.res = halt(stackitem.Make([]stackitem.Item{
		stackitem.Make(1),
		stackitem.Make([]byte{0xff, 0xfe}),
		stackitem.Make("Party"),
		stackitem.Make(0),
	}))
	_, err = r.GetCandidate(big.NewInt(1))
	require.ErrorContains(t, err, "field Name")

	ti.res = halt(stackitem.Make([]stackitem.Item{
		stackitem.Make(2),
		stackitem.Make("Alice"),
		stackitem.Make("Blue"),
		stackitem.Make(7),
	}))
	c, err := r.GetCandidate(big.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, "getCandidate", ti.method)
	require.EqualValues(t, 2, c.ID.Int64())
	require.Equal(t, "Alice", c.Name)
	require.Equal(t, "Blue", c.Party)
	require.EqualValues(t, 7, c.VoteCount.Int64())

	ti.res = &result.Invoke{State: "FAULT", FaultException: "candidate not found"}
	_, err = r.GetCandidate(big.NewInt(3))
	require.Error(t, err)
}

func TestContractReader_GetDates(t *testing.T) {
	ti := new(testInv)
	r := NewReader(ti, util.Uint160{1})

	ti.res = halt(stackitem.Make([]stackitem.Item{stackitem.Make(100)}))
	_, err := r.GetDates()
	require.Error(t, err)

	ti.res = halt(stackitem.Make([]stackitem.Item{stackitem.Make(100), stackitem.Make(200)}))
	d, err := r.GetDates()
	require.NoError(t, err)
	require.EqualValues(t, 100, d.Start.Int64())
	require.EqualValues(t, 200, d.End.Int64())
}

func TestContractReader_CheckVoteAndCount(t *testing.T) {
	ti := new(testInv)
	r := NewReader(ti, util.Uint160{1})
	voter := util.Uint160{9, 9}

	ti.res = halt(stackitem.Make(true))
	voted, err := r.CheckVote(voter)
	require.NoError(t, err)
	require.True(t, voted)
	require.Equal(t, []any{voter}, ti.params)

	ti.res = halt(stackitem.Make([]stackitem.Item{}))
	_, err = r.GetCountCandidates()
	require.Error(t, err)

	ti.res = halt(stackitem.Make(3))
	n, err := r.GetCountCandidates()
	require.NoError(t, err)
	require.EqualValues(t, 3, n.Int64())
}

func TestContract_Writes(t *testing.T) {
	ta := new(testAct)
	c := New(ta, util.Uint160{1})
	voter := util.Uint160{4}

	_, _, err := c.Vote(voter, big.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, []any{voter, big.NewInt(2)}, ta.params)

	_, _, err = c.AddCandidate("Alice", "Blue")
	require.NoError(t, err)

	_, _, err = c.SetDates(big.NewInt(1), big.NewInt(2))
	require.NoError(t, err)

	require.Equal(t, []string{"vote", "addCandidate", "setDates"}, ta.sent)
	require.Equal(t, util.Uint160{1}, c.Hash())
}
