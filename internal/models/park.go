package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// City is one of the municipalities a park may belong to
type City string

const (
	CityCali    City = "Cali"
	CityPalmira City = "Palmira"
	CityJamundi City = "Jamundí"
	CityYumbo   City = "Yumbo"
)

// DefaultState is the province assigned to new parks
const DefaultState = "Valle del Cauca"

// Cities returns the allowed city set in display order
func Cities() []City {
	return []City{CityCali, CityPalmira, CityJamundi, CityYumbo}
}

// IsAllowedCity reports whether s names a city in the allowed set
func IsAllowedCity(s string) bool {
	for _, c := range Cities() {
		if string(c) == s {
			return true
		}
	}
	return false
}

// Region is the bounding box coordinates are checked against
type Region struct {
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
}

// DefaultRegion covers the metropolitan area of the allowed cities
var DefaultRegion = Region{
	MinLatitude:  3.0,
	MaxLatitude:  4.0,
	MinLongitude: -77.0,
	MaxLongitude: -76.0,
}

// Park represents a park record as exposed by the remote API.
// ID is assigned by the server and is never sent back in request bodies.
type Park struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Abbreviation string  `json:"abbreviation"`
	ImageURL     string  `json:"image_url,omitempty"`
	ImagePath    string  `json:"image_path,omitempty"`
	Address      string  `json:"address"`
	City         City    `json:"city"`
	State        string  `json:"state"`
	PostalCode   string  `json:"postal_code"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

// UnmarshalJSON accepts the identifier and postal code as either a JSON
// string or number
func (p *Park) UnmarshalJSON(data []byte) error {
	type alias Park
	aux := struct {
		ID         json.RawMessage `json:"id"`
		PostalCode json.RawMessage `json:"postal_code"`
		*alias
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	id, err := stringOrNumber(aux.ID)
	if err != nil {
		return fmt.Errorf("decoding park id: %w", err)
	}
	postal, err := stringOrNumber(aux.PostalCode)
	if err != nil {
		return fmt.Errorf("decoding postal code: %w", err)
	}
	p.ID = id
	p.PostalCode = postal
	return nil
}

// stringOrNumber decodes a raw JSON string or number. Null and absent
// values decode to "".
func stringOrNumber(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return "", nil
	case raw[0] == '"':
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	}
}

// ParkInput is the request body for create and update calls
type ParkInput struct {
	Name         string  `json:"name"`
	Abbreviation string  `json:"abbreviation"`
	ImageURL     string  `json:"image_url"`
	Address      string  `json:"address"`
	City         City    `json:"city"`
	State        string  `json:"state"`
	PostalCode   string  `json:"postal_code"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

// Input returns the writable fields of the park
func (p Park) Input() ParkInput {
	return ParkInput{
		Name:         p.Name,
		Abbreviation: p.Abbreviation,
		ImageURL:     p.ImageURL,
		Address:      p.Address,
		City:         p.City,
		State:        p.State,
		PostalCode:   p.PostalCode,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
	}
}

// Park builds a record from the input, attaching id when the server has assigned one
func (in ParkInput) Park(id string) Park {
	return Park{
		ID:           id,
		Name:         in.Name,
		Abbreviation: in.Abbreviation,
		ImageURL:     in.ImageURL,
		Address:      in.Address,
		City:         in.City,
		State:        in.State,
		PostalCode:   in.PostalCode,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
	}
}

// Summary is a one-line description used in confirmations and notifications
func (p Park) Summary() string {
	var b strings.Builder
	b.WriteString(p.Name)
	if p.Abbreviation != "" {
		fmt.Fprintf(&b, " (%s)", p.Abbreviation)
	}
	if p.City != "" {
		fmt.Fprintf(&b, " • %s", p.City)
	}
	return b.String()
}

// Missing returns the names of required fields that are empty
func (p Park) Missing() []string {
	var missing []string
	if strings.TrimSpace(p.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	return missing
}
