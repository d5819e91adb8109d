package registry

import (
	"time"

	"github.com/mkock/autolookup/vehicle"
)

// normalize projects the nested registry record onto the flat consumer
// record. It performs field selection only: absence at any level of a path
// stays absent in the output, and no value is ever substituted with a zero.
// A successfully decoded record always normalizes.
func normalize(raw rawRecord) vehicle.Info {
	var inf vehicle.Info
	if id := raw.Identity; id != nil {
		inf.RegNr = copyStr(id.Registration)
		inf.VIN = copyStr(id.Vin)
		inf.Ident = copyUint(id.Ident)
	}
	if own := raw.Ownership; own != nil {
		inf.OwnerName = copyStr(own.Name)
		inf.OwnerAddress = copyStr(own.Address)
	}
	if tech := raw.Technical; tech != nil {
		inf.Brand = copyStr(tech.Brand)
		inf.Model = copyStr(tech.Model)
		inf.ModelYear = copyInt(tech.ModelYear)
		inf.TotalWeight = copyInt(tech.TotalWeight)
		inf.OwnWeight = copyInt(tech.OwnWeight)
		inf.FuelType = copyStr(tech.FuelType)
	}
	if reg := raw.Registration; reg != nil {
		inf.FirstRegDate = parseDate(reg.FirstRegDate)
		inf.InspectionDue = parseDate(reg.InspectionDue)
	}
	return inf
}

// parseDate parses the registry's date format. A missing or unparsable date
// stays unset rather than failing the lookup.
func parseDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	d, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil
	}
	return &d
}

// The copy helpers detach the output from the decoder-owned record.

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

func copyUint(n *uint64) *uint64 {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}
