package webservice

import (
	"github.com/mkock/autolookup/vehicle"
)

const dateFmt = "2006-01-02"

// apiVehicle is the JSON shape we serve for a vehicle record. Fields the
// registry did not populate are omitted rather than zeroed, so consumers can
// tell "unknown" from "empty".
type apiVehicle struct {
	Hash          string  `json:"hash"`
	RegNr         *string `json:"regNr,omitempty"`
	VIN           *string `json:"vin,omitempty"`
	Ident         *uint64 `json:"ident,omitempty"`
	OwnerName     *string `json:"ownerName,omitempty"`
	OwnerAddress  *string `json:"ownerAddress,omitempty"`
	Brand         *string `json:"brand,omitempty"`
	Model         *string `json:"model,omitempty"`
	ModelYear     *int    `json:"modelYear,omitempty"`
	TotalWeight   *int    `json:"totalWeight,omitempty"`
	OwnWeight     *int    `json:"ownWeight,omitempty"`
	FuelType      *string `json:"fuelType,omitempty"`
	FirstRegDate  *string `json:"firstRegDate,omitempty"`
	InspectionDue *string `json:"inspectionDue,omitempty"`
	Source        string  `json:"source,omitempty"`
}

// vehicleToAPIType converts a vehicle record into its API representation,
// pretty-casing brand and fuel-type along the way.
func vehicleToAPIType(inf vehicle.Info) apiVehicle {
	api := apiVehicle{
		Hash:         vehicle.HashAsKey(inf.MetaData.Hash),
		RegNr:        inf.RegNr,
		VIN:          inf.VIN,
		Ident:        inf.Ident,
		OwnerName:    inf.OwnerName,
		OwnerAddress: inf.OwnerAddress,
		Model:        inf.Model,
		ModelYear:    inf.ModelYear,
		TotalWeight:  inf.TotalWeight,
		OwnWeight:    inf.OwnWeight,
		Source:       inf.MetaData.Source,
	}
	if inf.Brand != nil {
		pretty := vehicle.PrettyBrandName(*inf.Brand)
		api.Brand = &pretty
	}
	if inf.FuelType != nil {
		pretty := vehicle.PrettyFuelType(*inf.FuelType)
		api.FuelType = &pretty
	}
	if inf.FirstRegDate != nil {
		d := inf.FirstRegDate.Format(dateFmt)
		api.FirstRegDate = &d
	}
	if inf.InspectionDue != nil {
		d := inf.InspectionDue.Format(dateFmt)
		api.InspectionDue = &d
	}
	return api
}
