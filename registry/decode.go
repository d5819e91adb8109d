package registry

import (
	"encoding/json"
	"errors"
	"strings"
)

// lookupEnvelope is the outer response shape. The registry wraps everything
// in a "data" list and may return several records for one query.
type lookupEnvelope struct {
	Data []rawRecord `json:"data"`
}

// rawRecord mirrors the registry's nested vehicle schema. Sub-blocks may be
// absent entirely (ownership is redacted on privacy-protected records), and
// any leaf within a present block may still be missing, so everything is
// pointer-typed. Unknown fields are ignored.
type rawRecord struct {
	Identity     *rawIdentity     `json:"identity"`
	Ownership    *rawOwnership    `json:"ownership"`
	Technical    *rawTechnical    `json:"technical_data"`
	Registration *rawRegistration `json:"registration"`
}

type rawIdentity struct {
	Registration *string `json:"registration"`
	Vin          *string `json:"vin"`
	Ident        *uint64 `json:"id"`
}

type rawOwnership struct {
	Name    *string `json:"owner_name"`
	Address *string `json:"owner_address"`
}

type rawTechnical struct {
	Brand       *string `json:"brand"`
	Model       *string `json:"model"`
	ModelYear   *int    `json:"model_year"`
	TotalWeight *int    `json:"total_weight"`
	OwnWeight   *int    `json:"own_weight"`
	FuelType    *string `json:"fuel_type"`
}

type rawRegistration struct {
	FirstRegDate  *string `json:"first_registration_date"`
	InspectionDue *string `json:"next_inspection_date"`
}

// decodeBody parses a success body into the record for the requested key.
func decodeBody(body []byte, key lookupKey) (rawRecord, *APIError) {
	var envelope lookupEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return rawRecord{}, newDecodeError(err)
	}
	if len(envelope.Data) == 0 {
		return rawRecord{}, newDecodeError(errors.New("response contained no vehicle records"))
	}
	return pickRecord(envelope.Data, key), nil
}

// pickRecord returns the first record whose identity echoes the requested
// key. The registry reformats plates and VINs (spacing, casing), so when
// nothing matches exactly we settle for the first record.
func pickRecord(records []rawRecord, key lookupKey) rawRecord {
	for _, rec := range records {
		if rec.Identity == nil {
			continue
		}
		var echo *string
		switch key.kind {
		case vinKey:
			echo = rec.Identity.Vin
		default:
			echo = rec.Identity.Registration
		}
		if echo != nil && strings.EqualFold(canon(*echo), canon(key.value)) {
			return rec
		}
	}
	return records[0]
}

// canon strips the separators the registry is known to shuffle around.
func canon(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, s)
}
