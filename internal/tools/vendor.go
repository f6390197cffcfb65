package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/cropwise/plantclinic/internal/models"
)

// catalogEntry is one supplier in the built-in catalog, with per-product
// markup applied to the base price of each requested treatment.
type catalogEntry struct {
	name            string
	location        string
	contact         string
	deliveryOptions string
	markup          float64
}

// CatalogVendorLocator resolves treatments against a built-in supplier
// catalog. Prices are in rupees, derived from the treatment type plus a
// per-supplier markup. Stands in for a live marketplace integration.
type CatalogVendorLocator struct {
	suppliers []catalogEntry
}

// NewCatalogVendorLocator creates the built-in vendor locator.
func NewCatalogVendorLocator() *CatalogVendorLocator {
	return &CatalogVendorLocator{
		suppliers: []catalogEntry{
			{name: "AgriCare Solutions", location: "Bengaluru", contact: "+91-80-4123-7788", deliveryOptions: "2-3 days home delivery", markup: 1.0},
			{name: "Krishi Seva Kendra", location: "Mysuru", contact: "+91-82-1244-5566", deliveryOptions: "Same-day pickup", markup: 0.85},
			{name: "GreenGrow Agro Store", location: "Hubballi", contact: "+91-83-6233-9900", deliveryOptions: "3-5 days courier", markup: 1.15},
		},
	}
}

// basePrice estimates a treatment's base price in rupees from its type.
func basePrice(t models.Treatment) float64 {
	switch strings.ToLower(t.Type) {
	case "fungicide":
		return 450
	case "insecticide", "pesticide":
		return 520
	case "bactericide":
		return 600
	case "organic", "bio", "biological":
		return 380
	case "fertilizer", "nutrient":
		return 300
	default:
		return 400
	}
}

// FindVendors prices each treatment at each catalog supplier and returns the
// list cheapest first.
func (c *CatalogVendorLocator) FindVendors(ctx context.Context, in VendorInput) ([]models.Vendor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(in.Treatments) == 0 {
		return nil, fmt.Errorf("no treatments to price")
	}

	vendors := make([]models.Vendor, 0, len(c.suppliers))
	for _, s := range c.suppliers {
		v := models.Vendor{
			Name:            s.name,
			Location:        s.location,
			Contact:         s.contact,
			DeliveryOptions: s.deliveryOptions,
		}
		for _, t := range in.Treatments {
			price := basePrice(t) * s.markup
			v.Items = append(v.Items, models.VendorItem{Name: t.Name, Price: price})
			v.TotalPrice += price
		}
		vendors = append(vendors, v)
	}

	sort.Slice(vendors, func(i, j int) bool { return vendors[i].TotalPrice < vendors[j].TotalPrice })

	slog.Debug("CatalogVendorLocator.FindVendors: priced treatments",
		"treatments", len(in.Treatments), "vendors", len(vendors), "location", in.Location)
	return vendors, nil
}
