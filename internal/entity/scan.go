package entity

import "time"

type ScanEventType string

const (
	ScanEventState   ScanEventType = "state"
	ScanEventDecoded ScanEventType = "decoded"
	ScanEventBanking ScanEventType = "banking"
	ScanEventError   ScanEventType = "error"
)

type ScanSource string

const (
	ScanSourceCamera ScanSource = "camera"
	ScanSourceRemote ScanSource = "remote"
	ScanSourceUpload ScanSource = "upload"
	ScanSourceDrop   ScanSource = "drop"
)

type Corner struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type BankingInfo struct {
	BankCode    string  `json:"bankCode"`
	AccountNo   string  `json:"accountNo"`
	AccountName string  `json:"accountName"`
	Amount      float64 `json:"amount,omitempty"`
	Memo        string  `json:"memo,omitempty"`
	// PaymentType is STATIC or DYNAMIC for QRIS payloads.
	PaymentType string `json:"paymentType,omitempty"`
}

type ScanEvent struct {
	Type      ScanEventType `json:"type"`
	SessionID string        `json:"session_id,omitempty"`
	Source    ScanSource    `json:"source,omitempty"`
	State     string        `json:"state,omitempty"`
	Text      string        `json:"text,omitempty"`
	Corners   []Corner      `json:"corners,omitempty"`
	Banking   *BankingInfo  `json:"banking,omitempty"`
	Code      string        `json:"code,omitempty"`
	Message   string        `json:"message,omitempty"`
	At        time.Time     `json:"at"`
}
