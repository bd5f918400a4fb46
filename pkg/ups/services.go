package ups

// serviceNames maps UPS service codes to display names as used on shipping
// labels and the rate picker.
var serviceNames = map[string]string{
	"01": "UPS Next Day Air",
	"02": "UPS 2nd Day Air",
	"03": "UPS Ground",
	"07": "UPS Worldwide Express",
	"08": "UPS Worldwide Expedited",
	"11": "UPS Standard",
	"12": "UPS 3 Day Select",
	"13": "UPS Next Day Air Saver",
	"14": "UPS Next Day Air Early",
	"54": "UPS Worldwide Express Plus",
	"59": "UPS 2nd Day Air A.M.",
	"65": "UPS Worldwide Saver",
	"92": "UPS SurePost Less than 1 lb",
	"93": "UPS SurePost 1 lb or Greater",
}

// ServiceName resolves a UPS service code to its display name, falling back
// to the raw code for services not in the table.
func ServiceName(code string) string {
	if name, ok := serviceNames[code]; ok {
		return name
	}
	return "UPS " + code
}
