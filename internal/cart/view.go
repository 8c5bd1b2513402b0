package cart

import "storefront/internal/domain/model"

// カートの表示先（再描画とバッグを開く）
type View interface {
	Render(lines []model.CartLine)
	Reveal()
}

// ユーザー向けメッセージの表示先（トースト）
type Notifier interface {
	Notice(msg string)
}

type NotifierFunc func(msg string)

func (f NotifierFunc) Notice(msg string) { f(msg) }

// 何も表示しないView
type NopView struct{}

func (NopView) Render([]model.CartLine) {}
func (NopView) Reveal()                 {}

// Render/Revealの結果を保持するView（HTTPレスポンス用）
type RecordingView struct {
	Lines    []model.CartLine
	Renders  int
	Revealed bool
}

func (v *RecordingView) Render(lines []model.CartLine) {
	v.Lines = lines
	v.Renders++
}

func (v *RecordingView) Reveal() {
	v.Revealed = true
}

// 受け取ったメッセージを順に貯める
type NoticeList struct {
	Messages []string
}

func (n *NoticeList) Notice(msg string) {
	n.Messages = append(n.Messages, msg)
}
