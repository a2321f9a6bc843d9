package ipc

import (
	"sort"
	"strings"
)

// UnknownDescription is returned by Describe when no prefix matches.
const UnknownDescription = "Unknown"

// descriptions is the process-wide IPCMap. It is never mutated after init.
var descriptions = map[string]string{
	"A": "Human Necessities",
	"B": "Performing Operations; Transporting",
	"C": "Chemistry; Metallurgy",
	"D": "Textiles; Paper",
	"E": "Fixed Constructions",
	"F": "Mechanical Engineering; Lighting; Heating; Weapons; Blasting",
	"G": "Physics",
	"H": "Electricity",

	"A61":  "Medical or Veterinary Science; Hygiene",
	"A61K": "Preparations for Medical, Dental, or Toilet Purposes",
	"B60":  "Vehicles in General",
	"B60W": "Conjoint Control of Vehicle Sub-units",
	"C07":  "Organic Chemistry",
	"C12":  "Biochemistry; Microbiology; Enzymology; Genetic Engineering",
	"C12N": "Microorganisms or Enzymes; Genetic Engineering",
	"G05":  "Controlling; Regulating",
	"G06":  "Computing; Calculating; Counting",
	"G06F": "Electric Digital Data Processing",
	"G06N": "Computing Arrangements Based on Specific Computational Models",
	"G06Q": "Data Processing for Administrative, Commercial, Financial Purposes",
	"G06T": "Image Data Processing or Generation",
	"G08":  "Signalling",
	"H01":  "Basic Electric Elements",
	"H01L": "Semiconductor Devices",
	"H02":  "Generation, Conversion, or Distribution of Electric Power",
	"H04":  "Electric Communication Technique",
	"H04L": "Transmission of Digital Information",
	"H04N": "Pictorial Communication, e.g. Television",
	"H04W": "Wireless Communication Networks",
}

// Describe returns the most specific description for prefix: the full
// compact code, then the subclass, class and section prefixes, finally
// UnknownDescription.
func Describe(prefix string) string {
	s := Compact(prefix)
	if s == "" {
		return UnknownDescription
	}
	if d, ok := descriptions[s]; ok {
		return d
	}
	for _, n := range []int{4, 3, 1} {
		if len(s) > n {
			if d, ok := descriptions[s[:n]]; ok {
				return d
			}
		}
	}
	return UnknownDescription
}

// Descriptions returns a copy of the IPCMap.
func Descriptions() map[string]string {
	out := make(map[string]string, len(descriptions))
	for k, v := range descriptions {
		out[k] = v
	}
	return out
}

// Entry is one IPCMap row.
type Entry struct {
	Prefix      string `json:"prefix"`
	Description string `json:"description"`
}

// Entries returns the IPCMap sorted by prefix.
func Entries() []Entry {
	out := make([]Entry, 0, len(descriptions))
	for k, v := range descriptions {
		out = append(out, Entry{Prefix: k, Description: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix < out[j].Prefix })
	return out
}

// SectionName renders the cluster label for a section letter, "Section G".
func SectionName(section string) string {
	return "Section " + strings.ToUpper(section)
}
