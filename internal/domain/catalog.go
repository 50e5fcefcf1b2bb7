package domain

import (
	"fmt"
	"strings"
)

// OtherCategoryCode is used for categories missing from the catalog.
const OtherCategoryCode = "OTH"

// Category is an equipment category and its asset-number code.
type Category struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

var builtinCategories = []Category{
	{Name: "Analytical Instruments", Code: "ANA"},
	{Name: "Microscopy", Code: "MIC"},
	{Name: "Centrifuges", Code: "CEN"},
	{Name: "Spectroscopy", Code: "SPE"},
	{Name: "Chromatography", Code: "CHR"},
	{Name: "Incubators", Code: "INC"},
	{Name: "Balances & Scales", Code: "BAL"},
	{Name: "Pipettes", Code: "PIP"},
	{Name: "Refrigeration", Code: "REF"},
	{Name: "Safety Equipment", Code: "SAF"},
	{Name: "General Lab Equipment", Code: "GEN"},
	{Name: "Computers & IT", Code: "COM"},
	{Name: "Other", Code: OtherCategoryCode},
}

var builtinLocations = []string{
	"Main Lab", "Lab A", "Lab B", "Clean Room", "Cold Room", "Storage", "Office",
}

// Catalog holds the known categories and locations.
type Catalog struct {
	categories []Category
	codes      map[string]string
	locations  []string
}

// NewCatalog returns the built-in catalog extended by extra entries.
// An extra category with a built-in name overrides its code.
func NewCatalog(extra []Category, extraLocations []string) *Catalog {
	c := &Catalog{codes: make(map[string]string)}
	for _, cat := range append(append([]Category(nil), builtinCategories...), extra...) {
		key := strings.ToLower(cat.Name)
		if _, seen := c.codes[key]; !seen {
			c.categories = append(c.categories, cat)
		} else {
			for i := range c.categories {
				if strings.EqualFold(c.categories[i].Name, cat.Name) {
					c.categories[i].Code = cat.Code
				}
			}
		}
		c.codes[key] = cat.Code
	}

	seen := make(map[string]bool)
	for _, loc := range append(append([]string(nil), builtinLocations...), extraLocations...) {
		if loc == "" || seen[loc] {
			continue
		}
		seen[loc] = true
		c.locations = append(c.locations, loc)
	}
	return c
}

// Code maps a category name to its code; unknown categories map to OTH.
func (c *Catalog) Code(category string) string {
	if code, ok := c.codes[strings.ToLower(strings.TrimSpace(category))]; ok {
		return code
	}
	return OtherCategoryCode
}

// Categories returns the categories in catalog order.
func (c *Catalog) Categories() []Category {
	return append([]Category(nil), c.categories...)
}

// Locations returns the known locations.
func (c *Catalog) Locations() []string {
	return append([]string(nil), c.locations...)
}

// FormatAssetNumber renders LAB-<year>-<code>-<seq>.
func FormatAssetNumber(year int, code string, seq int) string {
	return fmt.Sprintf("LAB-%d-%s-%03d", year, code, seq)
}
