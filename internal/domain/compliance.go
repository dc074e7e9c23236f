package domain

import "time"

// ComplianceStatus is the verdict of a halal screening.
type ComplianceStatus string

const (
	StatusHalal    ComplianceStatus = "halal"
	StatusNotHalal ComplianceStatus = "not_halal"
	StatusDoubtful ComplianceStatus = "doubtful"
)

// IsHalal reports whether the status permits trading.
func (s ComplianceStatus) IsHalal() bool {
	return s == StatusHalal
}

// ComplianceRecord is a cached screening verdict for one symbol.
type ComplianceRecord struct {
	// Symbol is the equity ticker or the crypto base asset.
	Symbol string           `json:"symbol"`
	Status ComplianceStatus `json:"status"`
	// Source names where the verdict came from: provider, default_list,
	// allow_list, deny_list or rules.
	Source string `json:"source"`
	// MarketCap in USD, zero when unknown.
	MarketCap float64 `json:"market_cap,omitempty"`
	// Criteria traces which screening rule decided the verdict.
	Criteria  map[string]string `json:"criteria,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}
