package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type University struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ShortName  string `json:"short_name"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	LogoURL    string `json:"logo_url"`
	WebsiteURL string `json:"website_url"`
}

// The onboarding dropdown feed. Static for now; sorted by name.
var universities = []University{
	{ID: "asu", Name: "Arizona State University", ShortName: "ASU", City: "Tempe", State: "AZ", Country: "US", LogoURL: "/logos/asu.svg", WebsiteURL: "https://www.asu.edu"},
	{ID: "bu", Name: "Boston University", ShortName: "BU", City: "Boston", State: "MA", Country: "US", LogoURL: "/logos/bu.svg", WebsiteURL: "https://www.bu.edu"},
	{ID: "nyu", Name: "New York University", ShortName: "NYU", City: "New York", State: "NY", Country: "US", LogoURL: "/logos/nyu.svg", WebsiteURL: "https://www.nyu.edu"},
	{ID: "osu", Name: "Ohio State University", ShortName: "OSU", City: "Columbus", State: "OH", Country: "US", LogoURL: "/logos/osu.svg", WebsiteURL: "https://www.osu.edu"},
	{ID: "psu", Name: "Pennsylvania State University", ShortName: "Penn State", City: "University Park", State: "PA", Country: "US", LogoURL: "/logos/psu.svg", WebsiteURL: "https://www.psu.edu"},
	{ID: "ubc", Name: "University of British Columbia", ShortName: "UBC", City: "Vancouver", State: "BC", Country: "CA", LogoURL: "/logos/ubc.svg", WebsiteURL: "https://www.ubc.ca"},
	{ID: "ucla", Name: "University of California, Los Angeles", ShortName: "UCLA", City: "Los Angeles", State: "CA", Country: "US", LogoURL: "/logos/ucla.svg", WebsiteURL: "https://www.ucla.edu"},
	{ID: "umich", Name: "University of Michigan", ShortName: "UMich", City: "Ann Arbor", State: "MI", Country: "US", LogoURL: "/logos/umich.svg", WebsiteURL: "https://www.umich.edu"},
	{ID: "ut", Name: "University of Texas at Austin", ShortName: "UT Austin", City: "Austin", State: "TX", Country: "US", LogoURL: "/logos/ut.svg", WebsiteURL: "https://www.utexas.edu"},
	{ID: "uoft", Name: "University of Toronto", ShortName: "UofT", City: "Toronto", State: "ON", Country: "CA", LogoURL: "/logos/uoft.svg", WebsiteURL: "https://www.utoronto.ca"},
}

// GetUniversities lists universities for the onboarding form, optionally
// narrowed by a name/short-name search term and a country code.
func GetUniversities(c *fiber.Ctx) error {
	search := strings.ToLower(c.Query("search"))
	country := c.Query("country")

	out := make([]University, 0, len(universities))
	for _, u := range universities {
		if country != "" && u.Country != country {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Name), search) &&
			!strings.Contains(strings.ToLower(u.ShortName), search) {
			continue
		}
		out = append(out, u)
	}

	return c.JSON(fiber.Map{"universities": out})
}
