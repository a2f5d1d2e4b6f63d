package market

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"gopkg.in/yaml.v3"
)

// nameFields are the DBF attribute names searched, in order, for a market's name.
var nameFields = []string{"MARKET", "NAME"}

// LoadFile reads a catalog from path. The format follows the extension:
// .json and .yaml/.yml hold a list of {market, latitude, longitude} entries,
// .shp is a point shapefile with a MARKET or NAME attribute.
func LoadFile(path string) (*Catalog, error) {
	var (
		markets []Market
		err     error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		markets, err = readJSON(path)
	case ".yaml", ".yml":
		markets, err = readYAML(path)
	case ".shp":
		markets, err = readShapefile(path)
	default:
		return nil, fmt.Errorf("unsupported market catalog format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("loading markets from %s: %w", path, err)
	}

	c, err := NewCatalog(markets)
	if err != nil {
		return nil, fmt.Errorf("loading markets from %s: %w", path, err)
	}
	return c, nil
}

func readJSON(path string) ([]Market, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	var markets []Market
	if err := json.Unmarshal(data, &markets); err != nil {
		return nil, fmt.Errorf("parsing json: %w", err)
	}
	return markets, nil
}

func readYAML(path string) ([]Market, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	var markets []Market
	if err := yaml.Unmarshal(data, &markets); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	return markets, nil
}

// readShapefile loads point features. Non-point geometries are skipped.
func readShapefile(path string) ([]Market, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening shapefile: %w", err)
	}
	defer r.Close()

	nameIdx := -1
	fields := r.Fields()
	for _, want := range nameFields {
		for i, f := range fields {
			if strings.EqualFold(f.String(), want) {
				nameIdx = i
				break
			}
		}
		if nameIdx >= 0 {
			break
		}
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("no %s attribute in shapefile", strings.Join(nameFields, " or "))
	}

	var markets []Market
	for r.Next() {
		idx, shape := r.Shape()
		pt, ok := shape.(*shp.Point)
		if !ok {
			continue
		}
		name := strings.TrimSpace(strings.Trim(r.ReadAttribute(idx, nameIdx), "\x00"))
		markets = append(markets, Market{
			Name:      name,
			Latitude:  pt.Y,
			Longitude: pt.X,
		})
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("reading shapes: %w", err)
	}
	return markets, nil
}
