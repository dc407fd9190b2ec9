package models

import (
	"encoding/json"
	"testing"
)

func TestPark_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantID string
	}{
		{"string id", `{"id":"7","name":"Parque del Perro"}`, "7"},
		{"numeric id", `{"id":42,"name":"Parque del Perro"}`, "42"},
		{"uuid id", `{"id":"5f0c2a9e-1c1b-4d1e-8c55-0e6b0a3c9f11","name":"X"}`, "5f0c2a9e-1c1b-4d1e-8c55-0e6b0a3c9f11"},
		{"null id", `{"id":null,"name":"X"}`, ""},
		{"missing id", `{"name":"X"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Park
			if err := json.Unmarshal([]byte(tt.input), &p); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if p.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", p.ID, tt.wantID)
			}
		})
	}
}

func TestPark_UnmarshalJSONFields(t *testing.T) {
	input := `{
		"id": 3,
		"name": "Parque de la Caña",
		"abbreviation": "PDC",
		"image_path": "parks/cana.png",
		"address": "Avenida 3 Norte con Calle 70",
		"city": "Cali",
		"state": "Valle del Cauca",
		"postal_code": "760001",
		"latitude": 3.48,
		"longitude": -76.51
	}`

	var p Park
	if err := json.Unmarshal([]byte(input), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if p.City != CityCali {
		t.Errorf("City = %s, want Cali", p.City)
	}
	if p.ImagePath != "parks/cana.png" {
		t.Errorf("ImagePath = %s, want parks/cana.png", p.ImagePath)
	}
	if p.PostalCode != "760001" {
		t.Errorf("PostalCode = %s, want 760001", p.PostalCode)
	}
	if p.Latitude != 3.48 || p.Longitude != -76.51 {
		t.Errorf("coordinates = (%v, %v), want (3.48, -76.51)", p.Latitude, p.Longitude)
	}
}

func TestPark_UnmarshalJSONPostalCode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"string", `{"id":1,"name":"Parque","postal_code":"760045"}`, "760045", false},
		{"number", `{"id":1,"name":"Parque","postal_code":760045}`, "760045", false},
		{"null", `{"id":1,"name":"Parque","postal_code":null}`, "", false},
		{"missing", `{"id":1,"name":"Parque"}`, "", false},
		{"object", `{"id":1,"name":"Parque","postal_code":{"code":760045}}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Park
			err := json.Unmarshal([]byte(tt.input), &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if p.PostalCode != tt.want {
				t.Errorf("PostalCode = %q, want %q", p.PostalCode, tt.want)
			}
		})
	}
}

func TestParkInput_OmitsID(t *testing.T) {
	p := Park{ID: "9", Name: "Parque del Ingenio", City: CityCali}

	data, err := json.Marshal(p.Input())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, ok := fields["id"]; ok {
		t.Error("request body should not carry an id")
	}
	if fields["name"] != "Parque del Ingenio" {
		t.Errorf("name = %v", fields["name"])
	}
}

func TestPark_Summary(t *testing.T) {
	tests := []struct {
		park Park
		want string
	}{
		{Park{Name: "Parque del Perro", Abbreviation: "PDP", City: CityCali}, "Parque del Perro (PDP) • Cali"},
		{Park{Name: "Parque del Perro"}, "Parque del Perro"},
	}

	for _, tt := range tests {
		if got := tt.park.Summary(); got != tt.want {
			t.Errorf("Summary() = %q, want %q", got, tt.want)
		}
	}
}

func TestPark_Missing(t *testing.T) {
	if got := (Park{ID: "1", Name: "X"}).Missing(); len(got) != 0 {
		t.Errorf("Missing() = %v, want none", got)
	}
	if got := (Park{Name: " "}).Missing(); len(got) != 2 {
		t.Errorf("Missing() = %v, want [id name]", got)
	}
}

func TestIsAllowedCity(t *testing.T) {
	for _, c := range Cities() {
		if !IsAllowedCity(string(c)) {
			t.Errorf("IsAllowedCity(%s) = false", c)
		}
	}
	if IsAllowedCity("Medellín") {
		t.Error("IsAllowedCity(Medellín) = true")
	}
}
