package registry

// ABI fragments used by the EVM plugins.
const (
	ERC20ABI = `[
		{"name":"name","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
		{"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
		{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
		{"name":"totalSupply","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
	]`

	// CurvesABI covers the trading, balance and ERC20 bridge surface of the curves bonding contract.
	CurvesABI = `[
		{"name":"getBuyPrice","type":"function","stateMutability":"view","inputs":[{"name":"curvesTokenSubject","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"getSellPrice","type":"function","stateMutability":"view","inputs":[{"name":"curvesTokenSubject","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"getBuyPriceAfterFee","type":"function","stateMutability":"view","inputs":[{"name":"curvesTokenSubject","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"getSellPriceAfterFee","type":"function","stateMutability":"view","inputs":[{"name":"curvesTokenSubject","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"curvesTokenBalance","type":"function","stateMutability":"view","inputs":[{"name":"curvesTokenSubject","type":"address"},{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"curvesTokenSupply","type":"function","stateMutability":"view","inputs":[{"name":"curvesTokenSubject","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"externalCurvesTokens","type":"function","stateMutability":"view","inputs":[{"name":"curvesTokenSubject","type":"address"}],"outputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"},{"name":"token","type":"address"}]},
		{"name":"buyCurvesToken","type":"function","stateMutability":"payable","inputs":[{"name":"curvesTokenSubject","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
		{"name":"sellCurvesToken","type":"function","stateMutability":"nonpayable","inputs":[{"name":"curvesTokenSubject","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
		{"name":"withdraw","type":"function","stateMutability":"nonpayable","inputs":[{"name":"curvesTokenSubject","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
		{"name":"deposit","type":"function","stateMutability":"nonpayable","inputs":[{"name":"curvesTokenSubject","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
		{"name":"mint","type":"function","stateMutability":"nonpayable","inputs":[{"name":"curvesTokenSubject","type":"address"}],"outputs":[]},
		{"name":"setNameAndSymbol","type":"function","stateMutability":"nonpayable","inputs":[{"name":"curvesTokenSubject","type":"address"},{"name":"name","type":"string"},{"name":"symbol","type":"string"}],"outputs":[]}
	]`
)
