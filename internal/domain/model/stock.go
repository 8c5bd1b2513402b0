package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// 在庫数。Known=false は未設定・数値以外（null, "abc" など）
type Stock struct {
	Value int64
	Known bool
}

// 数値として分かっている在庫
func KnownStock(n int64) Stock {
	return Stock{Value: n, Known: true}
}

func (s Stock) MarshalJSON() ([]byte, error) {
	if !s.Known {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(s.Value, 10)), nil
}

// 数値・数値文字列は Known、それ以外は不明扱い（エラーにはしない）
func (s *Stock) UnmarshalJSON(b []byte) error {
	*s = Stock{}

	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		s.set(f)
		return nil
	}

	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			s.set(f)
		}
	}
	return nil
}

func (s *Stock) set(f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return
	}
	// 端数は切り捨て。int64に収まらない値は端で止める
	f = math.Floor(f)
	switch {
	case f >= math.MaxInt64:
		s.Value = math.MaxInt64
	case f <= math.MinInt64:
		s.Value = math.MinInt64
	default:
		s.Value = int64(f)
	}
	s.Known = true
}
