// Package chainabi holds the JSON ABI fragments for every on-chain contract
// the router calls, in the teacher's literal-[]byte-var style.
package chainabi

import "github.com/ethereum/go-ethereum/common"

// MessageSentTopic is the fixed event signature for MessageSent(bytes).
var MessageSentTopic = common.HexToHash("0x8c5261668696ce22758910d05bab8f186d6eb247ceac2af2e82c7dc17669b036")

// ERC20 fragments.

var ERC20BalanceOfABI = []byte(`[
	{
		"inputs": [{"name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`)

var ERC20AllowanceABI = []byte(`[
	{
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`)

var ERC20ApproveABI = []byte(`[
	{
		"inputs": [
			{"name": "spender", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`)

var ERC20TransferFromABI = []byte(`[
	{
		"inputs": [
			{"name": "from", "type": "address"},
			{"name": "to", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "transferFrom",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`)

var ERC20NoncesABI = []byte(`[
	{
		"inputs": [{"name": "owner", "type": "address"}],
		"name": "nonces",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`)

var ERC2612PermitABI = []byte(`[
	{
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "spender", "type": "address"},
			{"name": "value", "type": "uint256"},
			{"name": "deadline", "type": "uint256"},
			{"name": "v", "type": "uint8"},
			{"name": "r", "type": "bytes32"},
			{"name": "s", "type": "bytes32"}
		],
		"name": "permit",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`)

// AllowanceVault fragments.

var AllowanceVaultAllowanceABI = []byte(`[
	{
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "token", "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [
			{"name": "amount", "type": "uint160"},
			{"name": "expiration", "type": "uint48"},
			{"name": "nonce", "type": "uint48"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`)

var AllowanceVaultPermitABI = []byte(`[
	{
		"inputs": [
			{"name": "owner", "type": "address"},
			{
				"name": "permitSingle",
				"type": "tuple",
				"components": [
					{
						"name": "details",
						"type": "tuple",
						"components": [
							{"name": "token", "type": "address"},
							{"name": "amount", "type": "uint160"},
							{"name": "expiration", "type": "uint48"},
							{"name": "nonce", "type": "uint48"}
						]
					},
					{"name": "spender", "type": "address"},
					{"name": "sigDeadline", "type": "uint256"}
				]
			},
			{"name": "signature", "type": "bytes"}
		],
		"name": "permit",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`)

var AllowanceVaultTransferFromABI = []byte(`[
	{
		"inputs": [
			{"name": "from", "type": "address"},
			{"name": "to", "type": "address"},
			{"name": "amount", "type": "uint160"},
			{"name": "token", "type": "address"}
		],
		"name": "transferFrom",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`)

// CCTP-style burn-and-mint fragments.

var TokenMessengerDepositForBurnABI = []byte(`[
	{
		"inputs": [
			{"name": "amount", "type": "uint256"},
			{"name": "destinationDomain", "type": "uint32"},
			{"name": "mintRecipient", "type": "bytes32"},
			{"name": "burnToken", "type": "address"},
			{"name": "hookData", "type": "bytes32"},
			{"name": "maxFee", "type": "uint256"},
			{"name": "finalityThreshold", "type": "uint32"}
		],
		"name": "depositForBurn",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [{"indexed": false, "name": "message", "type": "bytes"}],
		"name": "MessageSent",
		"type": "event"
	}
]`)

var MessageTransmitterReceiveMessageABI = []byte(`[
	{
		"inputs": [
			{"name": "message", "type": "bytes"},
			{"name": "attestation", "type": "bytes"}
		],
		"name": "receiveMessage",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`)

// AddressToBytes32 left-pads an address to 32 bytes, the mintRecipient
// encoding depositForBurn expects.
func AddressToBytes32(addr common.Address) [32]byte {
	var out [32]byte
	copy(out[12:], addr.Bytes())
	return out
}
