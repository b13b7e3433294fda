package qris

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrNotQRIS   = errors.New("payload is not an EMV merchant QR")
	ErrMalformed = errors.New("malformed QRIS payload")
	ErrChecksum  = errors.New("QRIS checksum mismatch")
)

const (
	tagFormatIndicator   = "00"
	tagPointOfInitiation = "01"
	tagCategoryCode      = "52"
	tagCurrency          = "53"
	tagAmount            = "54"
	tagTipIndicator      = "55"
	tagFeeFixed          = "56"
	tagFeePercentage     = "57"
	tagCountryCode       = "58"
	tagMerchantName      = "59"
	tagMerchantCity      = "60"
	tagPostalCode        = "61"
	tagAdditionalData    = "62"
	tagCRC               = "63"
)

type MerchantAccount struct {
	Tag        string `json:"tag"`
	GUID       string `json:"guid"`
	PAN        string `json:"pan,omitempty"`
	MerchantID string `json:"merchant_id,omitempty"`
	Criteria   string `json:"criteria,omitempty"`
}

type Payload struct {
	PointOfInitiation string            `json:"point_of_initiation"`
	Merchants         []MerchantAccount `json:"merchants"`
	CategoryCode      string            `json:"category_code"`
	Currency          string            `json:"currency"`
	Amount            float64           `json:"amount,omitempty"`
	TipIndicator      string            `json:"tip_indicator,omitempty"`
	FeeFixed          float64           `json:"fee_fixed,omitempty"`
	FeePercentage     float64           `json:"fee_percentage,omitempty"`
	CountryCode       string            `json:"country_code"`
	MerchantName      string            `json:"merchant_name"`
	MerchantCity      string            `json:"merchant_city"`
	PostalCode        string            `json:"postal_code,omitempty"`
	BillNumber        string            `json:"bill_number,omitempty"`
	ReferenceLabel    string            `json:"reference_label,omitempty"`
	TerminalLabel     string            `json:"terminal_label,omitempty"`
	Purpose           string            `json:"purpose,omitempty"`
}

// IsPayload reports whether text starts like an EMV merchant presented QR.
func IsPayload(text string) bool {
	return strings.HasPrefix(text, "000201") && len(text) > 12
}

// Parse reads a QRIS string and verifies its trailing CRC.
func Parse(text string) (*Payload, error) {
	if !IsPayload(text) {
		return nil, ErrNotQRIS
	}

	fields, err := readTLV(text)
	if err != nil {
		return nil, err
	}

	last := fields[len(fields)-1]
	if last.tag != tagCRC || len(last.value) != 4 {
		return nil, fmt.Errorf("%w: missing CRC", ErrMalformed)
	}
	// the checksum covers everything up to and including "6304"
	body := text[:len(text)-4]
	if want := fmt.Sprintf("%04X", CRC16(body)); !strings.EqualFold(want, last.value) {
		return nil, fmt.Errorf("%w: got %s want %s", ErrChecksum, last.value, want)
	}

	p := &Payload{}
	for _, f := range fields {
		switch {
		case f.tag == tagPointOfInitiation:
			p.PointOfInitiation = f.value
		case isMerchantAccountTag(f.tag):
			account, err := parseMerchantAccount(f)
			if err != nil {
				return nil, err
			}
			p.Merchants = append(p.Merchants, account)
		case f.tag == tagCategoryCode:
			p.CategoryCode = f.value
		case f.tag == tagCurrency:
			p.Currency = f.value
		case f.tag == tagAmount:
			if p.Amount, err = parseAmount(f); err != nil {
				return nil, err
			}
		case f.tag == tagTipIndicator:
			p.TipIndicator = f.value
		case f.tag == tagFeeFixed:
			if p.FeeFixed, err = parseAmount(f); err != nil {
				return nil, err
			}
		case f.tag == tagFeePercentage:
			if p.FeePercentage, err = parseAmount(f); err != nil {
				return nil, err
			}
		case f.tag == tagCountryCode:
			p.CountryCode = f.value
		case f.tag == tagMerchantName:
			p.MerchantName = f.value
		case f.tag == tagMerchantCity:
			p.MerchantCity = f.value
		case f.tag == tagPostalCode:
			p.PostalCode = f.value
		case f.tag == tagAdditionalData:
			if err := p.readAdditionalData(f.value); err != nil {
				return nil, err
			}
		}
	}

	if p.MerchantName == "" || len(p.Merchants) == 0 {
		return nil, fmt.Errorf("%w: no merchant information", ErrMalformed)
	}
	return p, nil
}

func (p *Payload) PaymentType() string {
	switch p.PointOfInitiation {
	case "11":
		return "STATIC"
	case "12":
		return "DYNAMIC"
	default:
		return "UNKNOWN"
	}
}

// Fee returns the convenience fee charged on top of Amount.
func (p *Payload) Fee() float64 {
	switch p.TipIndicator {
	case "02":
		return p.FeeFixed
	case "03":
		return p.Amount * p.FeePercentage / 100
	default:
		return 0
	}
}

// PrimaryAccount is the first merchant account carrying a PAN, falling back
// to the first account.
func (p *Payload) PrimaryAccount() MerchantAccount {
	for _, m := range p.Merchants {
		if m.PAN != "" {
			return m
		}
	}
	return p.Merchants[0]
}

func (p *Payload) readAdditionalData(value string) error {
	fields, err := readTLV(value)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.tag {
		case "01":
			p.BillNumber = f.value
		case "05":
			p.ReferenceLabel = f.value
		case "07":
			p.TerminalLabel = f.value
		case "08":
			p.Purpose = f.value
		}
	}
	return nil
}

type field struct {
	tag   string
	value string
}

func readTLV(s string) ([]field, error) {
	var fields []field
	for i := 0; i < len(s); {
		if i+4 > len(s) {
			return nil, fmt.Errorf("%w: truncated header at %d", ErrMalformed, i)
		}
		tag := s[i : i+2]
		n, err := strconv.Atoi(s[i+2 : i+4])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad length for tag %s", ErrMalformed, tag)
		}
		start := i + 4
		if start+n > len(s) {
			return nil, fmt.Errorf("%w: tag %s overruns payload", ErrMalformed, tag)
		}
		fields = append(fields, field{tag: tag, value: s[start : start+n]})
		i = start + n
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}
	return fields, nil
}

func isMerchantAccountTag(tag string) bool {
	n, err := strconv.Atoi(tag)
	return err == nil && n >= 26 && n <= 51
}

func parseMerchantAccount(f field) (MerchantAccount, error) {
	sub, err := readTLV(f.value)
	if err != nil {
		return MerchantAccount{}, err
	}
	account := MerchantAccount{Tag: f.tag}
	for _, s := range sub {
		switch s.tag {
		case "00":
			account.GUID = s.value
		case "01":
			account.PAN = s.value
		case "02":
			account.MerchantID = s.value
		case "03":
			account.Criteria = s.value
		}
	}
	return account, nil
}

func parseAmount(f field) (float64, error) {
	v, err := strconv.ParseFloat(f.value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad amount in tag %s", ErrMalformed, f.tag)
	}
	return v, nil
}

// CRC16 is CRC-16/CCITT-FALSE as used by EMV QR codes.
func CRC16(s string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for b := 0; b < 8; b++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
