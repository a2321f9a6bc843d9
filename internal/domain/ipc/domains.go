package ipc

import "strings"

// TechnicalDomain groups IPC prefixes under a business-facing technology name.
type TechnicalDomain struct {
	Name     string
	Prefixes []string
}

// TechnicalDomains is matched in order; the first domain with a matching
// prefix wins, so narrower prefixes come first.
var TechnicalDomains = []TechnicalDomain{
	{Name: "Quantum Computing", Prefixes: []string{"G06N10", "H01L39"}},
	{Name: "AI", Prefixes: []string{"G06N", "G06F16", "G06F17"}},
	{Name: "IoT", Prefixes: []string{"H04L29", "H04W4", "G08C17"}},
	{Name: "Blockchain", Prefixes: []string{"G06Q20", "H04L9"}},
	{Name: "Renewable Energy", Prefixes: []string{"H02J3", "H01L31", "F03D"}},
	{Name: "Autonomous Vehicles", Prefixes: []string{"G05D1", "B60W30", "G08G1"}},
	{Name: "Biotechnology", Prefixes: []string{"C12N", "C07K", "A61K38"}},
	{Name: "AR/VR", Prefixes: []string{"G06T19", "G02B27", "H04N13"}},
	{Name: "5G Communication", Prefixes: []string{"H04W72", "H04B7", "H04L5"}},
	{Name: "Advanced Materials", Prefixes: []string{"C01B", "C22C", "B82Y"}},
}

// DomainOf returns the technical domain of code by compact prefix match.
func DomainOf(code string) (string, bool) {
	c := Compact(code)
	if c == "" {
		return "", false
	}
	for _, d := range TechnicalDomains {
		for _, p := range d.Prefixes {
			if strings.HasPrefix(c, p) {
				return d.Name, true
			}
		}
	}
	return "", false
}
