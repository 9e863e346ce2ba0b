package dashboard

import (
	"net/url"
	"sort"
	"strings"

	"scdash/internal/dataprocessing"
	"scdash/pkg/contracts/domain"
)

// Filter is an exact-match multi-select on location, product type and
// carrier. An empty selection matches every value.
type Filter struct {
	Locations    []string `json:"location,omitempty"`
	ProductTypes []string `json:"product_type,omitempty"`
	Carriers     []string `json:"shipping_carriers,omitempty"`
}

// FilterFromQuery reads repeated location, product_type and
// shipping_carriers query parameters. Blank values are ignored.
func FilterFromQuery(q url.Values) Filter {
	return Filter{
		Locations:    nonBlank(q[domain.ColLocation]),
		ProductTypes: nonBlank(q[domain.ColProductType]),
		Carriers:     nonBlank(q[domain.ColShippingCarriers]),
	}
}

// Query encodes f the way FilterFromQuery reads it.
func (f Filter) Query() url.Values {
	q := url.Values{}
	for _, v := range f.Locations {
		q.Add(domain.ColLocation, v)
	}
	for _, v := range f.ProductTypes {
		q.Add(domain.ColProductType, v)
	}
	for _, v := range f.Carriers {
		q.Add(domain.ColShippingCarriers, v)
	}
	return q
}

// IsEmpty reports whether f selects every row.
func (f Filter) IsEmpty() bool {
	return len(f.Locations) == 0 && len(f.ProductTypes) == 0 && len(f.Carriers) == 0
}

// Apply returns the rows of e matching f, keeping their derived values.
func (f Filter) Apply(e *dataprocessing.EnrichedTable) *dataprocessing.EnrichedTable {
	locs, types, carriers := set(f.Locations), set(f.ProductTypes), set(f.Carriers)

	idx := make([]int, 0, e.Len())
	for i, r := range e.Records {
		if matches(locs, r.Location) && matches(types, r.ProductType) && matches(carriers, r.ShippingCarrier) {
			idx = append(idx, i)
		}
	}
	return e.Select(idx)
}

// FilterOptions are the distinct values offered by each filter.
type FilterOptions struct {
	Locations    []string `json:"location"`
	ProductTypes []string `json:"product_type"`
	Carriers     []string `json:"shipping_carriers"`
}

// Options lists the sorted distinct filter values of e.
func Options(e *dataprocessing.EnrichedTable) FilterOptions {
	locs, types, carriers := map[string]bool{}, map[string]bool{}, map[string]bool{}
	for _, r := range e.Records {
		locs[r.Location] = true
		if r.ProductType != "" {
			types[r.ProductType] = true
		}
		if r.ShippingCarrier != "" {
			carriers[r.ShippingCarrier] = true
		}
	}
	return FilterOptions{
		Locations:    sortedKeys(locs),
		ProductTypes: sortedKeys(types),
		Carriers:     sortedKeys(carriers),
	}
}

func set(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

func matches(allowed map[string]bool, v string) bool {
	return allowed == nil || allowed[v]
}

func nonBlank(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
