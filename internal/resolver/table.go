package resolver

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed table.yaml
var defaultTable []byte

var validate = validator.New()

// Table is the versioned identity mapping.
type Table struct {
	Version string   `yaml:"version" validate:"required"`
	Records []Record `yaml:"records" validate:"required,min=1,dive"`
}

// Record maps one (region, crop) pair to upstream identifiers. Lat/Lon may
// be omitted when geocode_city is set and a geocoder fills them at load time.
type Record struct {
	Region         string   `yaml:"region" validate:"required"`
	Aliases        []string `yaml:"aliases"`
	Crop           string   `yaml:"crop" validate:"required"`
	CropAliases    []string `yaml:"crop_aliases"`
	Lat            float64  `yaml:"lat" validate:"required,latitude"`
	Lon            float64  `yaml:"lon" validate:"required,longitude"`
	AreaCode       string   `yaml:"area_code" validate:"required"`
	TempAreaCode   string   `yaml:"temp_area_code" validate:"required"`
	WarnAreaCode   string   `yaml:"warn_area_code" validate:"required"`
	CropCode       string   `yaml:"crop_code" validate:"required"`
	PestSidoCode   string   `yaml:"pest_sido_code" validate:"required"`
	PestRegionCode string   `yaml:"pest_region_code" validate:"required"`
	PestRegionName string   `yaml:"pest_region_name" validate:"required"`
	GeocodeCity    string   `yaml:"geocode_city"`
	GeocodeState   string   `yaml:"geocode_state"`
}

// DefaultTable returns the table compiled into the binary.
func DefaultTable() (Table, error) {
	return ParseTable(defaultTable)
}

// LoadTableFile reads a YAML table from disk.
func LoadTableFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open resolver table: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return Table{}, fmt.Errorf("read resolver table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes a YAML table without validating it; see Validate.
func ParseTable(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("decode resolver table: %w", err)
	}
	return t, nil
}

// Validate reports the first incomplete record.
func (t Table) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid resolver table %q: %w", t.Version, err)
	}
	return nil
}
