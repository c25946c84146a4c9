package replay

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// balanceCaller answers balanceOf for a fixed set of tokens.
type balanceCaller struct {
	method   abi.Method
	balances map[common.Address]int64
}

func (b balanceCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	return b.method.Outputs.Pack(big.NewInt(b.balances[*msg.To]))
}
