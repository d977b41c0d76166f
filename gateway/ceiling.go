package gateway

import (
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
)

// DefaultCostCeiling is the default upper bound of the transaction system
// fee in GAS fractions.
const DefaultCostCeiling = 6654755

// CostCeilingModifier returns actor.TransactionCheckerModifier which checks
// that invocation finished with 'HALT' state and that the resulting system
// fee does not exceed the ceiling. Failed checks are reported as rejections,
// such transactions are never signed.
func CostCeilingModifier(ceiling int64) actor.TransactionCheckerModifier {
	return func(r *result.Invoke, tx *transaction.Transaction) error {
		err := actor.DefaultCheckerModifier(r, tx)
		if err != nil {
			return rejected(r.FaultException, err)
		}

		if tx.SystemFee > ceiling {
			return rejected(fmt.Sprintf("system fee %d exceeds cost ceiling %d", tx.SystemFee, ceiling), nil)
		}

		return nil
	}
}
