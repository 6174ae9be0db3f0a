package scan

import "tinygo.org/x/bluetooth"

// manufacturerLabel names an unnamed BLE device after the manufacturer in
// its advertisement, e.g. "Apple EE:FF". Returns "" when unknown.
func manufacturerLabel(mfrs []bluetooth.ManufacturerDataElement, mac string) string {
	if len(mfrs) == 0 {
		return ""
	}
	name := LookupManufacturer(mfrs[0].CompanyID)
	if name == "" {
		return ""
	}
	if len(mac) >= 17 {
		return name + " " + mac[12:] // last 2 octets
	}
	return name
}

// LookupManufacturer returns a human-readable name for a Bluetooth SIG company ID.
// See: https://www.bluetooth.com/specifications/assigned-numbers/
func LookupManufacturer(companyID uint16) string {
	return companyNames[companyID]
}

var companyNames = map[uint16]string{
	0x004C: "Apple",
	0x0006: "Microsoft",
	0x00E0: "Google",
	0x0075: "Samsung",
	0x0310: "Xiaomi",
	0x0157: "Huawei",
	0x038F: "Garmin",
	0x0087: "Bose",
	0x012D: "Sony",
	0x00D2: "LG",
	0x0171: "Amazon",
	0x02FF: "Tile",
	0x0059: "Nordic",
	0x000D: "Texas Inst.",
	0x0822: "Tuya/Govee",
	0x0131: "JBL",
	0x0002: "Intel",
	0x000F: "Broadcom",
	0x000A: "Qualcomm",
	0x0499: "Ruuvi",
	0x015D: "Espressif",
	0x01DA: "Jabra",
	0x00AA: "Realtek",
	0x0958: "IKEA",
	0x09A7: "Ring",
	0x0246: "Logitech",
	0x03DA: "Fitbit",
	0x0988: "Sonos",
	0x0397: "TP-Link",
}
