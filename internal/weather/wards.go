package weather

import (
	"sort"

	"github.com/urbanrisk/floodwatch/internal/domain"
)

// Mumbai city-center coordinates, used for wards missing from the catalog.
const (
	cityCenterLat = 19.0760
	cityCenterLon = 72.8777
)

// MumbaiWards returns the coordinate catalog for the BMC administrative
// wards.
func MumbaiWards() map[string]domain.Ward {
	return map[string]domain.Ward{
		"A":  {Code: "A", Name: "Colaba", Latitude: 18.9067, Longitude: 72.8147},
		"B":  {Code: "B", Name: "Fort", Latitude: 18.9220, Longitude: 72.8347},
		"C":  {Code: "C", Name: "Kalbadevi", Latitude: 18.9388, Longitude: 72.8354},
		"D":  {Code: "D", Name: "Girgaon", Latitude: 18.9515, Longitude: 72.8143},
		"E":  {Code: "E", Name: "Byculla", Latitude: 18.9647, Longitude: 72.8258},
		"FN": {Code: "FN", Name: "Parel", Latitude: 19.0138, Longitude: 72.8452},
		"FS": {Code: "FS", Name: "Lower Parel", Latitude: 19.0008, Longitude: 72.8300},
		"GN": {Code: "GN", Name: "Dadar", Latitude: 19.0176, Longitude: 72.8562},
		"GS": {Code: "GS", Name: "Mahim", Latitude: 19.0330, Longitude: 72.8570},
		"HE": {Code: "HE", Name: "Bandra East", Latitude: 19.0596, Longitude: 72.8656},
		"HW": {Code: "HW", Name: "Bandra West", Latitude: 19.0596, Longitude: 72.8295},
		"KE": {Code: "KE", Name: "Andheri East", Latitude: 19.1136, Longitude: 72.8697},
		"KW": {Code: "KW", Name: "Andheri West", Latitude: 19.1197, Longitude: 72.8464},
		"L":  {Code: "L", Name: "Kurla", Latitude: 19.0728, Longitude: 72.8826},
		"ME": {Code: "ME", Name: "Chembur", Latitude: 19.0330, Longitude: 72.8990},
		"MW": {Code: "MW", Name: "Trombay", Latitude: 19.0270, Longitude: 72.9500},
		"N":  {Code: "N", Name: "Ghatkopar", Latitude: 19.0896, Longitude: 72.9081},
		"PN": {Code: "PN", Name: "Malad", Latitude: 19.1872, Longitude: 72.8495},
		"PS": {Code: "PS", Name: "Kandivali", Latitude: 19.2094, Longitude: 72.8526},
		"RC": {Code: "RC", Name: "Borivali", Latitude: 19.2307, Longitude: 72.8567},
		"RN": {Code: "RN", Name: "Dahisar", Latitude: 19.2544, Longitude: 72.8656},
		"RS": {Code: "RS", Name: "Kandivali East", Latitude: 19.2094, Longitude: 72.8700},
		"S":  {Code: "S", Name: "Bhandup", Latitude: 19.1450, Longitude: 72.9342},
		"T":  {Code: "T", Name: "Mulund", Latitude: 19.1728, Longitude: 72.9342},
	}
}

func sortedCodes(wards map[string]domain.Ward) []string {
	codes := make([]string, 0, len(wards))
	for code := range wards {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
