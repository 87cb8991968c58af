package domain

// Venue identifies a trading venue. The set of venues is supplied by
// configuration; the core never interprets the value beyond routing.
type Venue string

// AssetClass distinguishes instrument types for adapters that care.
type AssetClass string

const (
	AssetClassCrypto   AssetClass = "crypto"
	AssetClassUSEquity AssetClass = "us_equity"
)

// Instrument is a tradable asset on a single venue. The ID is the
// process-internal key used everywhere in the core; Symbol is the
// venue-facing name.
type Instrument struct {
	ID     string
	Symbol string
	Venue  Venue
	Class  AssetClass
}
