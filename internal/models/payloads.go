// Package models defines tool payload structures shared across modules.
package models

// ClassificationResult is the disease classifier's output for one image.
// Set exactly once by the classifying node and read-only afterward, until a
// restart clears it.
type ClassificationResult struct {
	DiseaseName string  `json:"disease_name"`
	Confidence  float64 `json:"confidence"`
	Severity    string  `json:"severity,omitempty"`
	Description string  `json:"description,omitempty"`
	// AttentionOverlay is a base64 PNG showing where the classifier
	// focused. Never streamed; retrievable on request in followup.
	AttentionOverlay string `json:"attention_overlay,omitempty"`
}

// Treatment is a single recommended remedy.
type Treatment struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Application string `json:"application,omitempty"`
	Dosage      string `json:"dosage,omitempty"`
	Frequency   string `json:"frequency,omitempty"`
	Duration    string `json:"duration,omitempty"`
}

// PrescriptionData is the prescriber's output for a diagnosed disease.
type PrescriptionData struct {
	Treatments         []Treatment `json:"treatments"`
	PreventiveMeasures []string    `json:"preventive_measures,omitempty"`
	Notes              string      `json:"notes,omitempty"`
}

// VendorItem is one product a vendor can supply.
type VendorItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Vendor is a supplier offering the recommended treatments.
type Vendor struct {
	Name            string       `json:"name"`
	Location        string       `json:"location,omitempty"`
	Contact         string       `json:"contact,omitempty"`
	DeliveryOptions string       `json:"delivery_options,omitempty"`
	TotalPrice      float64      `json:"total_price"`
	Items           []VendorItem `json:"items,omitempty"`
}

// OrderDetails is the synthesized order record produced by order booking.
type OrderDetails struct {
	OrderID           string      `json:"order_id"`
	Vendor            *Vendor     `json:"vendor,omitempty"`
	Items             []Treatment `json:"items,omitempty"`
	TotalAmount       float64     `json:"total_amount"`
	Status            string      `json:"status"`
	EstimatedDelivery string      `json:"estimated_delivery,omitempty"`
}

// FollowupIntent is the per-turn action classification produced for an
// already-engaged session, distinct from the one-time UserIntent.
type FollowupIntent struct {
	Action      string  `json:"action"`
	Response    string  `json:"response,omitempty"`
	OverlayType string  `json:"overlay_type,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// Followup actions recognized by the followup node.
const (
	FollowupActionClassify         = "classify"
	FollowupActionPrescribe        = "prescribe"
	FollowupActionShowVendors      = "show_vendors"
	FollowupActionAttentionOverlay = "attention_overlay"
	FollowupActionRestart          = "restart"
	FollowupActionComplete         = "complete"
	FollowupActionDirectResponse   = "direct_response"
)
