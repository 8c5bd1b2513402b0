package model

// 決済サービスに渡す注文の1行
type OrderLine struct {
	PurchaseToken string `json:"price"`
	Quantity      int    `json:"quantity"`
}

// カートから作る決済サービス非依存の注文リクエスト
type OrderRequest struct {
	Items           []OrderLine `json:"items"`
	CustomerEmail   string      `json:"customer_email,omitempty"`
	ShippingCountry string      `json:"shipping_country,omitempty"`
	SubtotalCents   int64       `json:"subtotal_cents,omitempty"`
}

// 作成されたセッション（リダイレクト先URL）
type SessionHandle struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
