package model

import (
	"encoding/json"
	"time"
)

// 確定済みセッションの記録。再送時に決済サービスを呼ばずに同じ結果を返す。
type ConfirmedSession struct {
	SessionID   string    `gorm:"primaryKey;type:varchar(255)" json:"session_id"`
	TokensJSON  string    `gorm:"type:text;not null" json:"-"`
	ConfirmedAt time.Time `gorm:"not null;index" json:"confirmed_at"`
}

func NewConfirmedSession(sessionID string, tokens []string, at time.Time) ConfirmedSession {
	b, _ := json.Marshal(tokens)
	return ConfirmedSession{
		SessionID:   sessionID,
		TokensJSON:  string(b),
		ConfirmedAt: at,
	}
}

func (c ConfirmedSession) Tokens() []string {
	var out []string
	if err := json.Unmarshal([]byte(c.TokensJSON), &out); err != nil {
		return []string{}
	}
	return out
}
