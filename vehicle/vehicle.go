package vehicle

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/hashstructure"
)

// Absent is the marker used when rendering a field that the registry did not populate.
const Absent = "-"

// Meta contains metadata for each vehicle record.
type Meta struct {
	Hash        uint64
	Source      string
	LastUpdated time.Time
}

// Info is the flat vehicle record handed to consumers. Every data field is
// optional: nil means the registry did not populate it, which callers must be
// able to distinguish from an empty string or a zero.
// If ErrorMessage is set, none of the data fields are trustworthy.
type Info struct {
	MetaData      Meta `hash:"ignore"`
	RegNr         *string
	VIN           *string
	Ident         *uint64
	OwnerName     *string
	OwnerAddress  *string
	Brand         *string
	Model         *string
	ModelYear     *int
	TotalWeight   *int
	OwnWeight     *int
	FuelType      *string
	FirstRegDate  *time.Time
	InspectionDue *time.Time
	ErrorMessage  *string `hash:"ignore"`
}

// FromError returns an Info that carries nothing but an error message.
func FromError(msg string) Info {
	return Info{ErrorMessage: &msg}
}

// GenHash generates a unique hash value of the vehicle record. The hash is stored in the metadata.
// Metadata and the error message don't contribute to the hash, so two lookups of the same vehicle
// produce the same fingerprint regardless of when, and through which source, they were made.
func (inf *Info) GenHash() error {
	hash, err := hashstructure.Hash(inf, nil)
	if err != nil {
		return fmt.Errorf("unable to hash vehicle record: %s", err)
	}
	inf.MetaData.Hash = hash
	return nil
}

// String returns a stringified representation of the vehicle record.
func (inf Info) String() string {
	return inf.FlexString("", " ")
}

// FlexString returns a stringified multi-line representation of the vehicle record.
// Unpopulated fields are rendered with the absence marker.
func (inf Info) FlexString(lb, leftPad string) string {
	var txt strings.Builder
	fmt.Fprintf(&txt, "#%d%s", inf.MetaData.Hash, lb)
	fmt.Fprintf(&txt, "%sRegNr: %s%s", leftPad, StrOrAbsent(inf.RegNr), lb)
	fmt.Fprintf(&txt, "%sVIN: %s%s", leftPad, StrOrAbsent(inf.VIN), lb)
	fmt.Fprintf(&txt, "%sOwner: %s%s", leftPad, StrOrAbsent(inf.OwnerName), lb)
	fmt.Fprintf(&txt, "%sBrand: %s%s", leftPad, StrOrAbsent(inf.Brand), lb)
	fmt.Fprintf(&txt, "%sModel: %s%s", leftPad, StrOrAbsent(inf.Model), lb)
	fmt.Fprintf(&txt, "%sModelYear: %s%s", leftPad, IntOrAbsent(inf.ModelYear), lb)
	fmt.Fprintf(&txt, "%sFuelType: %s%s", leftPad, StrOrAbsent(inf.FuelType), lb)
	fmt.Fprintf(&txt, "%sRegDate: %s%s", leftPad, DateOrAbsent(inf.FirstRegDate), lb)
	return txt.String()
}

// StrOrAbsent returns the string value or the absence marker when the field is unpopulated.
func StrOrAbsent(s *string) string {
	if s == nil {
		return Absent
	}
	return *s
}

// IntOrAbsent returns the stringified int value or the absence marker when the field is unpopulated.
func IntOrAbsent(n *int) string {
	if n == nil {
		return Absent
	}
	return strconv.Itoa(*n)
}

// DateOrAbsent returns the date formatted as 2006-01-02, or the absence marker when the field
// is unpopulated.
func DateOrAbsent(d *time.Time) string {
	if d == nil {
		return Absent
	}
	return d.Format("2006-01-02")
}

// PrettyBrandName title-cases the given brand name unless its length is 3 or below, in which case
// everything is uppercased. This should handle most cases.
func PrettyBrandName(brand string) string {
	if len(brand) <= 3 {
		return strings.ToUpper(brand)
	}
	return strings.Title(strings.ToLower(brand))
}

// PrettyFuelType normalizes fuel-type by capitalizing the first letter only.
func PrettyFuelType(ft string) string {
	return strings.Title(strings.ToLower(ft))
}

// HashAsKey converts the given hash value into a string that consumers can use as a storage key.
func HashAsKey(hash uint64) string {
	return strconv.FormatUint(hash, 10)
}
