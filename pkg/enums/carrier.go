package enums

// CarrierCode identifies a registered shipping carrier.
type CarrierCode string

const (
	CarrierDelhivery CarrierCode = "delhivery"
	CarrierBluedart  CarrierCode = "bluedart"
	CarrierDTDC      CarrierCode = "dtdc"
)
