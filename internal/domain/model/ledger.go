package model

import (
	"encoding/json"
	"sort"
)

// 在庫台帳の保存キー（1ドキュメント）
const LedgerKey = "sold.json"

// purchaseToken → 売り切れフラグ。false→true にしか変わらない。
type InventoryLedger map[string]bool

func DecodeLedger(b []byte) (InventoryLedger, error) {
	l := InventoryLedger{}
	if len(b) == 0 {
		return l, nil
	}
	if err := json.Unmarshal(b, &l); err != nil {
		return InventoryLedger{}, err
	}
	if l == nil {
		l = InventoryLedger{}
	}
	return l, nil
}

func (l InventoryLedger) Encode() ([]byte, error) {
	if l == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(l)
}

func (l InventoryLedger) IsSold(token string) bool {
	return token != "" && l[token]
}

// 和集合でtrueを立てる。新しく立ったトークン数を返す。
func (l InventoryLedger) MarkSold(tokens []string) int {
	added := 0
	for _, t := range tokens {
		if t == "" || l[t] {
			continue
		}
		l[t] = true
		added++
	}
	return added
}

func (l InventoryLedger) Clone() InventoryLedger {
	out := make(InventoryLedger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// 売り切れのトークン（ソート済み）
func (l InventoryLedger) SoldTokens() []string {
	out := make([]string, 0, len(l))
	for k, v := range l {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
