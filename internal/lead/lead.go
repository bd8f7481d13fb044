// Package lead holds the Lead record and the fixed US state table it is
// grouped by.
package lead

import (
	"strings"
	"time"
)

// Temperature grades how urgent a lead is.
type Temperature string

const (
	Hot  Temperature = "hot"
	Warm Temperature = "warm"
)

// Lead is a candidate sales opportunity derived from one accepted search
// result. The JSON names are the ones the rendered pages read.
type Lead struct {
	ID          string      `json:"id"`
	State       string      `json:"state"`
	StateCode   string      `json:"stateCode"`
	Name        string      `json:"name"`
	Summary     string      `json:"summary"`
	Location    string      `json:"location"`
	Phone       string      `json:"phone"`
	Opening     string      `json:"opening"`
	Temperature Temperature `json:"temp"`
	Signage     []string    `json:"signage"`
	Revenue     string      `json:"revenue"`
	Source      string      `json:"source"`
	Discovered  time.Time   `json:"discovered"`
}

// State is one entry of the state table.
type State struct {
	Name string
	Code string
}

// Slug is the lowercase, hyphenated form used in file and publish paths,
// e.g. "new-york".
func (s State) Slug() string {
	return Slug(s.Name)
}

// Slug converts a state name into its path form.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// States lists the 50 states in run order.
var States = []State{
	{"Alabama", "AL"}, {"Alaska", "AK"}, {"Arizona", "AZ"}, {"Arkansas", "AR"},
	{"California", "CA"}, {"Colorado", "CO"}, {"Connecticut", "CT"}, {"Delaware", "DE"},
	{"Florida", "FL"}, {"Georgia", "GA"}, {"Hawaii", "HI"}, {"Idaho", "ID"},
	{"Illinois", "IL"}, {"Indiana", "IN"}, {"Iowa", "IA"}, {"Kansas", "KS"},
	{"Kentucky", "KY"}, {"Louisiana", "LA"}, {"Maine", "ME"}, {"Maryland", "MD"},
	{"Massachusetts", "MA"}, {"Michigan", "MI"}, {"Minnesota", "MN"}, {"Mississippi", "MS"},
	{"Missouri", "MO"}, {"Montana", "MT"}, {"Nebraska", "NE"}, {"Nevada", "NV"},
	{"New Hampshire", "NH"}, {"New Jersey", "NJ"}, {"New Mexico", "NM"}, {"New York", "NY"},
	{"North Carolina", "NC"}, {"North Dakota", "ND"}, {"Ohio", "OH"}, {"Oklahoma", "OK"},
	{"Oregon", "OR"}, {"Pennsylvania", "PA"}, {"Rhode Island", "RI"}, {"South Carolina", "SC"},
	{"South Dakota", "SD"}, {"Tennessee", "TN"}, {"Texas", "TX"}, {"Utah", "UT"},
	{"Vermont", "VT"}, {"Virginia", "VA"}, {"Washington", "WA"}, {"West Virginia", "WV"},
	{"Wisconsin", "WI"}, {"Wyoming", "WY"},
}

// LookupState finds a state by name, code or slug, case-insensitively.
func LookupState(s string) (State, bool) {
	s = strings.TrimSpace(s)
	for _, st := range States {
		if strings.EqualFold(st.Name, s) || strings.EqualFold(st.Code, s) || st.Slug() == strings.ToLower(s) {
			return st, true
		}
	}
	return State{}, false
}

// Code returns the two-letter code for a state name, or "" if unknown.
func Code(name string) string {
	if st, ok := LookupState(name); ok {
		return st.Code
	}
	return ""
}

// Counts tallies hot and warm leads.
func Counts(leads []Lead) (hot, warm int) {
	for _, l := range leads {
		if l.Temperature == Hot {
			hot++
		} else {
			warm++
		}
	}
	return hot, warm
}
