// Package validation holds the client-side rules a park draft must satisfy
// before it is submitted. All functions are pure.
package validation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ngmaloney/park-terminal/internal/models"
)

// Field identifies a form field of a park
type Field string

const (
	FieldName         Field = "name"
	FieldAbbreviation Field = "abbreviation"
	FieldImageURL     Field = "image_url"
	FieldAddress      Field = "address"
	FieldCity         Field = "city"
	FieldState        Field = "state"
	FieldPostalCode   Field = "postal_code"
	FieldLatitude     Field = "latitude"
	FieldLongitude    Field = "longitude"
)

var labels = map[Field]string{
	FieldName:         "Name",
	FieldAbbreviation: "Abbreviation",
	FieldImageURL:     "Image URL",
	FieldAddress:      "Address",
	FieldCity:         "City",
	FieldState:        "State",
	FieldPostalCode:   "Postal code",
	FieldLatitude:     "Latitude",
	FieldLongitude:    "Longitude",
}

// Fields returns every form field in display order
func Fields() []Field {
	return []Field{
		FieldName,
		FieldAbbreviation,
		FieldImageURL,
		FieldAddress,
		FieldCity,
		FieldState,
		FieldPostalCode,
		FieldLatitude,
		FieldLongitude,
	}
}

// Label returns the human-readable name of a field
func Label(f Field) string {
	if l, ok := labels[f]; ok {
		return l
	}
	return string(f)
}

var (
	nameRegex         = regexp.MustCompile(`^[\p{L}\s]+$`)
	abbreviationRegex = regexp.MustCompile(`^\p{L}+$`)
	imageURLRegex     = regexp.MustCompile(`(?i)^https?://[^\s/?#]+(/[^\s?#]*)?\.(jpg|jpeg|png|webp)(\?[^\s#]*)?$`)
	postalCodeRegex   = regexp.MustCompile(`^(760|761)\d{3}$`)
)

// Draft holds the raw, user-entered values of every field
type Draft map[Field]string

// Rules validates fields against a region bounding box
type Rules struct {
	Region models.Region
}

// Default returns rules for the default region
func Default() Rules {
	return Rules{Region: models.DefaultRegion}
}

// Validate checks a single field and returns an error message, or "" when valid
func Validate(field Field, raw string) string {
	return Default().Validate(field, raw)
}

// ValidateAll checks every field of the draft and returns only the failures
func ValidateAll(d Draft) map[Field]string {
	return Default().ValidateAll(d)
}

// Validate checks a single field and returns an error message, or "" when valid
func (r Rules) Validate(field Field, raw string) string {
	value := strings.TrimSpace(raw)

	switch field {
	case FieldName:
		if value == "" {
			return "Name is required"
		}
		if n := utf8.RuneCountInString(value); n < 3 || n > 100 {
			return "Name must be between 3 and 100 characters"
		}
		if !nameRegex.MatchString(value) {
			return "Name may only contain letters and spaces"
		}

	case FieldAbbreviation:
		if value == "" {
			return "Abbreviation is required"
		}
		if n := utf8.RuneCountInString(value); n < 2 || n > 10 {
			return "Abbreviation must be between 2 and 10 characters"
		}
		if !abbreviationRegex.MatchString(value) {
			return "Abbreviation may only contain letters"
		}

	case FieldImageURL:
		if value == "" {
			return "Image URL is required"
		}
		if !imageURLRegex.MatchString(value) {
			return "Image URL must be an http(s) link to a .jpg, .jpeg, .png or .webp file"
		}

	case FieldAddress:
		if value == "" {
			return "Address is required"
		}
		if n := utf8.RuneCountInString(value); n < 10 || n > 150 {
			return "Address must be between 10 and 150 characters"
		}

	case FieldCity:
		if !models.IsAllowedCity(value) {
			return fmt.Sprintf("City must be one of %s", cityList())
		}

	case FieldPostalCode:
		if !postalCodeRegex.MatchString(value) {
			return "Postal code must be 6 digits starting with 760 or 761"
		}

	case FieldLatitude:
		return checkRange("Latitude", value, r.Region.MinLatitude, r.Region.MaxLatitude)

	case FieldLongitude:
		return checkRange("Longitude", value, r.Region.MinLongitude, r.Region.MaxLongitude)
	}

	return ""
}

// ValidateAll checks every field of the draft and returns only the failures
func (r Rules) ValidateAll(d Draft) map[Field]string {
	errs := make(map[Field]string)
	for _, f := range Fields() {
		if msg := r.Validate(f, d[f]); msg != "" {
			errs[f] = msg
		}
	}
	return errs
}

func checkRange(label, value string, lo, hi float64) string {
	if value == "" {
		return label + " is required"
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return label + " must be a number"
	}
	if v < lo || v > hi {
		return fmt.Sprintf("%s must be between %g and %g", label, lo, hi)
	}
	return ""
}

func cityList() string {
	names := make([]string, 0, len(models.Cities()))
	for _, c := range models.Cities() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
