package model

// 決済サービスに送るセッション作成内容（サーバー側で確定したもの）
type SessionRequest struct {
	Lines             []SessionLine
	CustomerEmail     string
	ShippingCountry   string
	AllowedCountries  []string
	ShippingOptions   []ShippingOption
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	Metadata          map[string]string
}

// PurchaseToken か AdHoc のどちらか
type SessionLine struct {
	PurchaseToken string
	AdHoc         *AdHocPrice
	Quantity      int64
}

// 「今すぐ購入」用のその場の価格
type AdHocPrice struct {
	Name       string
	UnitAmount int64
	Currency   string
}

type ShippingOption struct {
	DisplayName string `json:"display_name"`
	AmountCents int64  `json:"amount"`
	Currency    string `json:"currency"`
	MinDays     int64  `json:"min_business_days"`
	MaxDays     int64  `json:"max_business_days"`
}

// 完了ページ向けのセッション概要
type SessionSummary struct {
	ID              string           `json:"id"`
	PaymentStatus   string           `json:"payment_status"`
	AmountTotal     int64            `json:"amount_total"`
	Currency        string           `json:"currency"`
	CustomerDetails *CustomerDetails `json:"customer_details"`
	LineItems       []SummaryLine    `json:"line_items"`
}

type CustomerDetails struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type SummaryLine struct {
	Quantity       int64  `json:"quantity"`
	AmountSubtotal int64  `json:"amount_subtotal"`
	AmountTotal    int64  `json:"amount_total"`
	Currency       string `json:"currency"`
	Description    string `json:"description"`
	UnitAmount     *int64 `json:"unit_amount"`
}
