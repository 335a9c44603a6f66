package person

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	CategoryCriminal     = "criminal"
	CategoryCourt        = "court"
	CategoryProfessional = "professional"
	CategorySocial       = "social"
	CategoryPublic       = "public_records"
)

// Source is a place a record search can be run. None of them is queried
// automatically; most need an account or an official request.
type Source struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	Access   string `json:"access,omitempty"`
}

var states = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas", "CA": "California",
	"CO": "Colorado", "CT": "Connecticut", "DE": "Delaware", "DC": "District of Columbia",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho", "IL": "Illinois",
	"IN": "Indiana", "IA": "Iowa", "KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana",
	"ME": "Maine", "MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
	"MS": "Mississippi", "MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma", "OR": "Oregon",
	"PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina", "SD": "South Dakota",
	"TN": "Tennessee", "TX": "Texas", "UT": "Utah", "VT": "Vermont", "VA": "Virginia",
	"WA": "Washington", "WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
}

// ValidState reports whether code is one of the 50 states or DC.
func ValidState(code string) bool {
	_, ok := states[strings.ToUpper(code)]
	return ok
}

var stateCriminalSystems = map[string]string{
	"CA": "California Department of Justice",
	"NY": "New York State Division of Criminal Justice Services",
	"TX": "Texas Department of Public Safety",
	"FL": "Florida Department of Law Enforcement",
	"IL": "Illinois State Police",
	"PA": "Pennsylvania State Police",
	"OH": "Ohio Attorney General",
	"GA": "Georgia Bureau of Investigation",
	"NC": "North Carolina State Bureau of Investigation",
	"MI": "Michigan State Police",
}

var stateCourts = map[string]string{
	"CA": "https://www.courts.ca.gov/",
	"NY": "https://www.nycourts.gov/",
	"TX": "https://www.txcourts.gov/",
	"FL": "https://www.flcourts.org/",
	"IL": "https://www.illinoiscourts.gov/",
	"PA": "https://www.pacourts.us/",
	"OH": "https://www.supremecourt.ohio.gov/",
	"GA": "https://www.gasupreme.us/",
	"NC": "https://www.nccourts.gov/",
	"MI": "https://www.courts.michigan.gov/",
}

// sources lists the catalogue for name. State specific entries are only
// added for a valid state.
func sources(name, state string, stateValid bool) []Source {
	q := url.QueryEscape(name)
	out := []Source{
		{CategoryCriminal, "National Sex Offender Public Website", "https://www.nsopw.gov", "public"},
		{CategoryCriminal, "Federal Bureau of Prisons Inmate Locator", "https://www.bop.gov/inmateloc/", "public"},
	}
	if stateValid {
		system, ok := stateCriminalSystems[state]
		if !ok {
			system = state + " State Criminal Records"
		}
		out = append(out, Source{CategoryCriminal, system, "", "official background check request"})
	}

	out = append(out, Source{CategoryCourt, "PACER (Federal Courts)", "https://pacer.uscourts.gov", "account, fee based"})
	if stateValid {
		court, ok := stateCourts[state]
		if !ok {
			court = fmt.Sprintf("https://www.%scourts.gov", strings.ToLower(state))
		}
		out = append(out, Source{CategoryCourt, state + " State Courts", court, "public"})
	}
	out = append(out, Source{CategoryCourt, "County Courts", "", "county clerk of court"})

	out = append(out,
		Source{CategoryProfessional, "LinkedIn People Search", "https://www.linkedin.com/search/results/people/?keywords=" + url.QueryEscape(name), "account"},
		Source{CategoryProfessional, "State Medical Boards", "https://www.fsmb.org/fcvs/", "public"},
		Source{CategoryProfessional, "State Bar Associations", "", "public"},
		Source{CategorySocial, "Facebook", "https://www.facebook.com/search/people/?q=" + q, "account"},
		Source{CategorySocial, "Twitter", "https://twitter.com/search?q=" + q, "public"},
		Source{CategorySocial, "Instagram", "https://www.instagram.com/explore/tags/" + url.PathEscape(strings.ReplaceAll(name, " ", "")), "public"},
	)

	if stateValid {
		out = append(out,
			Source{CategoryPublic, state + " Vital Records Office", "", "official request"},
			Source{CategoryPublic, state + " Secretary of State - Elections Division", "", "public in some states"},
			Source{CategoryPublic, state + " Secretary of State - Business Division", "", "public"},
		)
	}
	out = append(out,
		Source{CategoryPublic, "County Assessor / Property Appraiser", "", "public"},
		Source{CategoryPublic, "SEC EDGAR Database", "https://www.sec.gov/edgar/searchedgar/companysearch.html", "public"},
	)
	return out
}
