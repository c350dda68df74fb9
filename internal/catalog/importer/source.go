package importer

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format names an import file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ErrUnsupportedFormat indicates an unknown file extension or format name.
var ErrUnsupportedFormat = errors.New("importer: unsupported format")

// ParseFormat accepts a format name or a file path.
func ParseFormat(nameOrPath string) (Format, error) {
	key := strings.ToLower(strings.TrimSpace(nameOrPath))
	if ext := filepath.Ext(key); ext != "" {
		key = strings.TrimPrefix(ext, ".")
	}
	switch key {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, nameOrPath)
}

// Decode reads items in the given format.
func Decode(r io.Reader, format Format) ([]Item, error) {
	switch format {
	case FormatJSON:
		var items []Item
		if err := json.NewDecoder(r).Decode(&items); err != nil {
			return nil, fmt.Errorf("importer: decode json: %w", err)
		}
		return items, nil
	case FormatYAML:
		var items []Item
		if err := yaml.NewDecoder(r).Decode(&items); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("importer: decode yaml: %w", err)
		}
		return items, nil
	case FormatCSV:
		return decodeCSV(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// csvColumns maps normalised header names to item setters. Spreadsheet exports use
// "Selling Price" or "category_name" style headers; both are accepted.
var csvColumns = map[string]func(*Item, string) error{
	"name":           func(it *Item, v string) error { it.Name = v; return nil },
	"sku":            func(it *Item, v string) error { it.SKU = v; return nil },
	"category":       func(it *Item, v string) error { it.Category = v; return nil },
	"subcategory":    func(it *Item, v string) error { it.Subcategory = v; return nil },
	"unit":           func(it *Item, v string) error { it.Unit = v; return nil },
	"tax":            func(it *Item, v string) error { it.Tax = v; return nil },
	"supplier":       func(it *Item, v string) error { it.Supplier = v; return nil },
	"brand":          func(it *Item, v string) error { it.Brand = v; return nil },
	"color":          func(it *Item, v string) error { it.Color = v; return nil },
	"size":           func(it *Item, v string) error { it.Size = v; return nil },
	"description":    func(it *Item, v string) error { it.Description = v; return nil },
	"pct_or_hs_code": func(it *Item, v string) error { it.TariffCode = v; return nil },
	"purchase_rate":  func(it *Item, v string) error { return parseFloat(v, &it.PurchaseRate) },
	"selling_price":  func(it *Item, v string) error { return parseFloat(v, &it.SellingPrice) },
	"min_qty":        func(it *Item, v string) error { return parseIntPtr(v, &it.MinQty) },
	"max_qty":        func(it *Item, v string) error { return parseIntPtr(v, &it.MaxQty) },
	"is_featured": func(it *Item, v string) error {
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		it.IsFeatured = b
		return err
	},
	"discount_amount": func(it *Item, v string) error {
		if v == "" {
			return nil
		}
		var f float64
		if err := parseFloat(v, &f); err != nil {
			return err
		}
		it.Discount = &f
		return nil
	},
}

var headerAliases = map[string]string{
	"sales_rate_exc_dis_and_tax": "selling_price",
	"sales_rate_inc_dis_and_tax": "selling_price",
	"price":                      "selling_price",
	"hs_code":                    "pct_or_hs_code",
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.Join(strings.Fields(h), "_")
	if alias, ok := headerAliases[h]; ok {
		return alias
	}
	if base, ok := strings.CutSuffix(h, "_name"); ok {
		if _, known := csvColumns[base]; known {
			return base
		}
	}
	return h
}

func decodeCSV(r io.Reader) ([]Item, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("importer: read csv header: %w", err)
	}
	setters := make([]func(*Item, string) error, len(header))
	for i, h := range header {
		setters[i] = csvColumns[normalizeHeader(h)]
	}

	var items []Item
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("importer: read csv line %d: %w", line, err)
		}
		if blankRecord(record) {
			continue
		}
		var it Item
		for i, value := range record {
			if i >= len(setters) || setters[i] == nil {
				continue
			}
			if err := setters[i](&it, strings.TrimSpace(value)); err != nil {
				return nil, fmt.Errorf("importer: csv line %d column %q: %w", line, header[i], err)
			}
		}
		items = append(items, it)
	}
	return items, nil
}

func blankRecord(record []string) bool {
	return strings.TrimSpace(strings.Join(record, "")) == ""
}

func parseFloat(v string, dst *float64) error {
	if v == "" || strings.EqualFold(v, "default") {
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

func parseIntPtr(v string, dst **int) error {
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = &n
	return nil
}
