package router

import "github.com/ethereum/go-ethereum/common"

func addressOf(s string) common.Address { return common.HexToAddress(s) }
