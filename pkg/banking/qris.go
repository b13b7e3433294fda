package banking

import (
	"QRScanner/internal/entity"
	"QRScanner/pkg/qris"
)

// FromQRIS fills the transfer form from a merchant QR. Indonesian PANs carry
// the issuer's national number as 9360 followed by the bank code.
func FromQRIS(p *qris.Payload) *entity.BankingInfo {
	account := p.PrimaryAccount()

	info := &entity.BankingInfo{
		BankCode:    account.GUID,
		AccountNo:   account.PAN,
		AccountName: p.MerchantName,
		Amount:      p.Amount + p.Fee(),
		PaymentType: p.PaymentType(),
	}
	if len(account.PAN) >= 8 && account.PAN[:4] == "9360" {
		info.BankCode = account.PAN[4:8]
	}
	if info.AccountNo == "" {
		info.AccountNo = account.MerchantID
	}

	switch {
	case p.Purpose != "":
		info.Memo = p.Purpose
	case p.BillNumber != "":
		info.Memo = p.BillNumber
	default:
		info.Memo = p.ReferenceLabel
	}
	return info
}
