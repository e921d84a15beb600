package model

// Category classifies tasks, warranties and service providers.
type Category string

const (
	CategoryHome        Category = "Home"
	CategoryElectronics Category = "Electronics"
	CategoryPlumbing    Category = "Plumbing"
	CategoryElectrical  Category = "Electrical"
	CategoryHVAC        Category = "HVAC"
	CategoryAppliances  Category = "Appliances"
	CategoryOutdoor     Category = "Outdoor"
	CategoryVehicles    Category = "Vehicles"
	CategoryOther       Category = "Other"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryHome,
	CategoryElectronics,
	CategoryPlumbing,
	CategoryElectrical,
	CategoryHVAC,
	CategoryAppliances,
	CategoryOutdoor,
	CategoryVehicles,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
