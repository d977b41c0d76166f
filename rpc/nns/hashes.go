package nns

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// ID is the NNS contract ID assumed by InferHash. Networks deploying NNS
// first always give it an ID of 1.
const ID = 1

// ContractStateGetter is the interface required for contract state resolution
// using a known contract ID.
type ContractStateGetter interface {
	GetContractStateByID(int32) (*state.Contract, error)
}

// Invoker is used by Resolve to call the safe `resolve` method of NNS.
type Invoker interface {
	Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error)
}

// InferHash simplifies resolving NNS contract hash in networks that deploy it
// first. It assumes that NNS follows [ID] assignment assumptions which likely
// won't be the case for arbitrary networks, configure the hash explicitly
// there.
func InferHash(sg ContractStateGetter) (util.Uint160, error) {
	c, err := sg.GetContractStateByID(ID)
	if err != nil {
		return util.Uint160{}, err
	}

	return c.Hash, nil
}

// Resolve returns the contract address stored in the TXT records of the
// given domain. The first record that parses either as a Neo address or as a
// little-endian script hash wins.
func Resolve(inv Invoker, nnsHash util.Uint160, name string) (util.Uint160, error) {
	records, err := unwrap.ArrayOfUTF8Strings(inv.Call(nnsHash, "resolve", name, big.NewInt(TXT)))
	if err != nil {
		return util.Uint160{}, fmt.Errorf("resolve '%s' TXT records: %w", name, err)
	}

	if len(records) == 0 {
		return util.Uint160{}, fmt.Errorf("no TXT records for '%s'", name)
	}

	for i := range records {
		h, err := util.Uint160DecodeStringLE(records[i])
		if err == nil {
			return h, nil
		}

		h, err = address.StringToUint160(records[i])
		if err == nil {
			return h, nil
		}
	}

	return util.Uint160{}, errors.New("no valid contract address in TXT records")
}
