// Package extract pulls structured fields out of free-form chat text.
package extract

import (
	"regexp"
	"strings"
)

var (
	evmAddressRe = regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)
	txHashRe     = regexp.MustCompile(`\b0x[a-fA-F0-9]{64}\b`)
	bech32Re     = regexp.MustCompile(`\b([a-z]{2,20})1[02-9ac-hj-np-z]{38,58}\b`)
	amountRe     = regexp.MustCompile(`^\$?(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)([A-Za-z][A-Za-z0-9]{1,9})?$`)
	groupedRe    = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
	integerRe    = regexp.MustCompile(`\b\d+\b`)
	symbolRe     = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]{1,9}$`)
)

// words that commonly follow an amount but are never token symbols
var notSymbols = map[string]bool{
	"to": true, "of": true, "for": true, "from": true, "on": true, "in": true,
	"at": true, "and": true, "gpu": true, "gpus": true, "tokens": true, "token": true,
	"units": true, "shares": true, "blocks": true, "with": true,
}

// Tag returns the trimmed value between [name] and [/name], matching the tag name case-insensitively.
func Tag(text, name string) string {
	re, err := regexp.Compile(`(?is)\[` + regexp.QuoteMeta(name) + `\](.*?)\[/` + regexp.QuoteMeta(name) + `\]`)
	if err != nil {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func EVMAddress(text string) string {
	return evmAddressRe.FindString(text)
}

func EVMAddresses(text string) []string {
	return evmAddressRe.FindAllString(text, -1)
}

func TxHash(text string) string {
	return txHashRe.FindString(text)
}

// Bech32Address returns the first bech32 account address and its human-readable prefix.
func Bech32Address(text string) (string, string) {
	m := bech32Re.FindStringSubmatch(strings.ToLower(text))
	if len(m) < 2 {
		return "", ""
	}
	return m[0], m[1]
}

// Amount returns the first decimal amount in text and the symbol written after it, if any.
func Amount(text string) (amount string, symbol string, ok bool) {
	fields := strings.Fields(text)
	for i, raw := range fields {
		tok := strings.TrimRight(raw, ",.!?;:")
		m := amountRe.FindStringSubmatch(tok)
		if m == nil {
			continue
		}
		amount = Ungroup(m[1])
		if m[2] != "" {
			return amount, strings.ToUpper(m[2]), true
		}
		if i+1 < len(fields) {
			next := strings.TrimRight(fields[i+1], ",.!?;:")
			if symbolRe.MatchString(next) && !notSymbols[strings.ToLower(next)] {
				return amount, strings.ToUpper(next), true
			}
		}
		return amount, "", true
	}
	return "", "", false
}

// Ungroup drops thousands separators from a well-formed grouped number such as 1,000.5.
// Anything else is returned unchanged.
func Ungroup(v string) string {
	v = strings.TrimSpace(v)
	if groupedRe.MatchString(v) {
		return strings.ReplaceAll(v, ",", "")
	}
	return v
}

// Integer returns the first whole number in text.
func Integer(text string) string {
	for _, m := range integerRe.FindAllStringIndex(text, -1) {
		// skip digits that are part of a hex literal like 0x12
		if m[1] < len(text) && (text[m[1]] == 'x' || text[m[1]] == 'X' || text[m[1]] == '.') {
			continue
		}
		return text[m[0]:m[1]]
	}
	return ""
}

// After returns the token following keyword, e.g. After("rent gpu on node-7", "on") == "node-7".
func After(text, keyword string) string {
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(keyword) + `\s+([A-Za-z0-9_\-\.:/]+)`)
	if err != nil {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimRight(m[1], ".,!?;:")
}

// OneOf returns the first of the candidate words found in text, in candidate order.
func OneOf(text string, candidates ...string) string {
	lower := " " + strings.ToLower(text) + " "
	lower = strings.NewReplacer(",", " ", ".", " ", "!", " ", "?", " ").Replace(lower)
	for _, c := range candidates {
		if strings.Contains(lower, " "+strings.ToLower(c)+" ") {
			return c
		}
	}
	return ""
}

// Lookup returns the first non-empty value.
func Lookup(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
