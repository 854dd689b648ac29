package ankr

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ggonzalez94/agentkit/internal/out"
)

func formatBalance(wallet string, res AccountBalance) string {
	rows := [][]string{{"CHAIN", "TOKEN", "BALANCE", "USD"}}
	for _, a := range res.Assets {
		rows = append(rows, []string{a.Blockchain, a.TokenSymbol, a.Balance, formatUSD(a.BalanceUSD)})
	}
	if len(res.Assets) == 0 {
		rows = nil
	}
	header := fmt.Sprintf("Balances of %s (total $%s):", shortAddress(wallet), formatUSD(res.TotalBalanceUSD))
	return out.Table(header, rows)
}

func formatHolders(q query, res TokenHolders) string {
	rows := [][]string{{"#", "HOLDER", "BALANCE"}}
	for i, h := range res.Holders {
		rows = append(rows, []string{strconv.Itoa(i + 1), h.HolderAddress, h.Balance})
	}
	if len(res.Holders) == 0 {
		rows = nil
	}
	header := fmt.Sprintf("Holders of %s on %s (%d total):", shortAddress(q.Contract), q.Chain, res.HoldersCount)
	return out.Table(header, rows)
}

func formatHolderCount(q query, res TokenHoldersCount) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s has %d holders on %s", shortAddress(q.Contract), res.LatestHoldersCount, q.Chain)
	if len(res.History) == 0 {
		return b.String()
	}
	rows := [][]string{{"DATE", "HOLDERS", "TOTAL AMOUNT"}}
	for _, p := range res.History {
		rows = append(rows, []string{p.LastUpdatedAt, strconv.Itoa(p.HolderCount), p.TotalAmount})
	}
	return out.Table(b.String()+"\nHistory:", rows)
}

func formatTransfers(q query, res TokenTransfers) string {
	rows := [][]string{{"TOKEN", "AMOUNT", "FROM", "TO", "TX"}}
	for _, t := range res.Transfers {
		rows = append(rows, []string{t.TokenSymbol, t.Value, shortAddress(t.FromAddress), shortAddress(t.ToAddress), shortHash(t.TransactionHash)})
	}
	if len(res.Transfers) == 0 {
		rows = nil
	}
	return out.Table("Token transfers on "+q.Chain+":", rows)
}

func formatTransactions(header string, txs []Transaction) string {
	rows := [][]string{{"HASH", "FROM", "TO", "VALUE (WEI)", "BLOCK", "TIME"}}
	for _, t := range txs {
		rows = append(rows, []string{
			shortHash(t.Hash),
			shortAddress(t.From),
			shortAddress(t.To),
			decimalQuantity(t.Value),
			decimalQuantity(t.BlockNumber),
			formatTimestamp(t.Timestamp),
		})
	}
	if len(txs) == 0 {
		rows = nil
	}
	return out.Table(header+":", rows)
}

func formatNFTs(q query, res NFTsByOwner) string {
	rows := [][]string{{"CHAIN", "COLLECTION", "NAME", "TOKEN ID", "TYPE"}}
	for _, n := range res.Assets {
		rows = append(rows, []string{n.Blockchain, n.CollectionName, n.Name, n.TokenID, n.ContractType})
	}
	if len(res.Assets) == 0 {
		rows = nil
	}
	return out.Table("NFTs owned by "+shortAddress(q.Wallet)+":", rows)
}

func formatNFTMetadata(q query, res NFTMetadata) string {
	name := res.Attributes.Name
	if name == "" {
		name = "#" + q.Token
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) on %s\n", name, res.Metadata.CollectionName, q.Chain)
	if res.Attributes.Description != "" {
		fmt.Fprintf(&b, "%s\n", res.Attributes.Description)
	}
	if res.Attributes.ImageURL != "" {
		fmt.Fprintf(&b, "Image: %s\n", res.Attributes.ImageURL)
	}
	if len(res.Attributes.Traits) == 0 {
		return strings.TrimRight(b.String(), "\n")
	}
	rows := [][]string{{"TRAIT", "VALUE"}}
	for _, t := range res.Attributes.Traits {
		rows = append(rows, []string{t.TraitType, t.Value})
	}
	return out.Table(b.String()+"Traits:", rows)
}

func formatStats(res BlockchainStats) string {
	rows := [][]string{{"CHAIN", "LATEST BLOCK", "TXS", "BLOCK TIME (MS)", "NATIVE USD"}}
	for _, s := range res.Stats {
		rows = append(rows, []string{s.Blockchain, decimalQuantity(s.LatestBlockNumber), decimalQuantity(s.TotalTransactionsCount), decimalQuantity(s.BlockTimeMs), formatUSD(s.NativeCoinUSDPrice)})
	}
	if len(res.Stats) == 0 {
		rows = nil
	}
	return out.Table("Blockchain stats:", rows)
}

func formatCurrencies(q query, res Currencies) string {
	rows := [][]string{{"SYMBOL", "NAME", "DECIMALS", "ADDRESS"}}
	for i, c := range res.Currencies {
		if i >= q.Limit {
			break
		}
		rows = append(rows, []string{c.Symbol, c.Name, strconv.Itoa(c.Decimals), c.Address})
	}
	if len(res.Currencies) == 0 {
		rows = nil
	}
	return out.Table(fmt.Sprintf("Currencies on %s (%d total):", q.Chain, len(res.Currencies)), rows)
}

func formatBlocks(q query, res Blocks) string {
	rows := [][]string{{"NUMBER", "HASH", "TXS", "GAS USED", "TIME"}}
	for _, blk := range res.Blocks {
		rows = append(rows, []string{decimalQuantity(blk.Number), shortHash(blk.Hash), strconv.Itoa(len(blk.Transactions)), decimalQuantity(blk.GasUsed), formatTimestamp(blk.Timestamp)})
	}
	if len(res.Blocks) == 0 {
		rows = nil
	}
	return out.Table(fmt.Sprintf("Blocks %d-%d on %s:", q.FromBlock, q.ToBlock, q.Chain), rows)
}

func formatLogs(q query, res Logs) string {
	rows := [][]string{{"BLOCK", "ADDRESS", "TOPIC0", "TX"}}
	for i, l := range res.Logs {
		if i >= q.Limit {
			break
		}
		topic := ""
		if len(l.Topics) > 0 {
			topic = shortHash(l.Topics[0])
		}
		rows = append(rows, []string{decimalQuantity(l.BlockNumber), shortAddress(l.Address), topic, shortHash(l.TransactionHash)})
	}
	if len(res.Logs) == 0 {
		rows = nil
	}
	return out.Table(fmt.Sprintf("Logs on %s (%d found):", q.Chain, len(res.Logs)), rows)
}

// decimalQuantity renders hex quantities in base 10 and leaves anything else unchanged.
func decimalQuantity(q Quantity) string {
	s := strings.TrimSpace(string(q))
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if v, ok := new(big.Int).SetString(s[2:], 16); ok {
			return v.String()
		}
	}
	return s
}

func formatTimestamp(q Quantity) string {
	v, err := strconv.ParseInt(decimalQuantity(q), 10, 64)
	if err != nil || v <= 0 {
		return string(q)
	}
	return time.Unix(v, 0).UTC().Format(time.RFC3339)
}

func formatUSD(raw string) string {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return raw
	}
	if f != 0 && f < 0.01 {
		return strconv.FormatFloat(f, 'g', 4, 64)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

func shortHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:6] + "..." + h[len(h)-4:]
}
