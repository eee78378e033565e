package chain

// ABI fragments for the intent contract and ERC20 tokens. Only the methods
// the gateway actually calls are declared.

const intentABIJSON = `[
	{
		"inputs": [
			{"name": "recipient", "type": "address"},
			{"name": "amount", "type": "uint256"},
			{"name": "frequency", "type": "uint256"},
			{"name": "safetyBuffer", "type": "uint256"}
		],
		"name": "createIntent",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "intentId", "type": "uint256"}],
		"name": "executeIntent",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "intentId", "type": "uint256"}],
		"name": "pauseIntent",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "intentId", "type": "uint256"}],
		"name": "resumeIntent",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "intentId", "type": "uint256"}],
		"name": "deleteIntent",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

const erc20ABIJSON = `[
	{
		"inputs": [{"name": "owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	}
]`
