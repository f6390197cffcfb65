package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cropwise/plantclinic/internal/models"
)

// Reply keyword sets for the vendor yes/no question.
var (
	affirmativeWords = []string{"yes", "yeah", "yep", "sure", "okay", "ok", "please", "show", "vendors", "definitely"}
	negativeWords    = []string{"no", "nope", "skip", "later", "not now", "don't", "dont"}
	dosageWords      = []string{"dosage", "dose", "how much", "how many", "quantity", "how often", "how to apply"}
)

func hasWord(message string, words []string) bool {
	msg := strings.ToLower(message)
	for _, w := range words {
		if strings.Contains(msg, w) {
			return true
		}
	}
	return false
}

// formatClassification renders the diagnosis message.
func formatClassification(r *models.ClassificationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 **Diagnosis**: %s (%.0f%% confidence)\n", displayName(r.DiseaseName), r.Confidence*100)
	if r.Severity != "" {
		fmt.Fprintf(&b, "Severity: %s\n", r.Severity)
	}
	if r.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", r.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatPrescription renders the treatment plan message.
func formatPrescription(p *models.PrescriptionData) string {
	var b strings.Builder
	b.WriteString("💊 **Treatment plan**\n")
	for i, t := range p.Treatments {
		fmt.Fprintf(&b, "%d. %s", i+1, t.Name)
		if t.Dosage != "" {
			fmt.Fprintf(&b, " — %s", t.Dosage)
		}
		if t.Frequency != "" {
			fmt.Fprintf(&b, ", %s", t.Frequency)
		}
		if t.Duration != "" {
			fmt.Fprintf(&b, " for %s", t.Duration)
		}
		b.WriteString("\n")
	}
	if len(p.PreventiveMeasures) > 0 {
		b.WriteString("\n🛡️ **Prevention**\n")
		for _, m := range p.PreventiveMeasures {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}
	if p.Notes != "" {
		fmt.Fprintf(&b, "\nℹ️ %s\n", p.Notes)
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatVendors renders the numbered vendor list plus selection prompt.
func formatVendors(vendors []models.Vendor) string {
	var b strings.Builder
	b.WriteString("🛒 **Available suppliers**\n")
	for i, v := range vendors {
		fmt.Fprintf(&b, "%d. %s (%s) — ₹%.0f total", i+1, v.Name, v.Location, v.TotalPrice)
		if v.DeliveryOptions != "" {
			fmt.Fprintf(&b, ", %s", v.DeliveryOptions)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nReply with the number of the supplier you'd like to order from, or ask me anything else.")
	return b.String()
}

// formatOrder renders the order confirmation message.
func formatOrder(o *models.OrderDetails) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ **Order placed!**\nOrder ID: %s\n", o.OrderID)
	if o.Vendor != nil {
		fmt.Fprintf(&b, "Supplier: %s", o.Vendor.Name)
		if o.Vendor.Contact != "" {
			fmt.Fprintf(&b, " (%s)", o.Vendor.Contact)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Total: ₹%.0f\n", o.TotalAmount)
	if o.EstimatedDelivery != "" {
		fmt.Fprintf(&b, "Estimated delivery: %s\n", o.EstimatedDelivery)
	}
	b.WriteString("\nIs there anything else I can help you with?")
	return b.String()
}

// dosageInfo answers a dosage question from the stored prescription.
func dosageInfo(p *models.PrescriptionData) string {
	var b strings.Builder
	b.WriteString("💊 **Dosage details**\n")
	for _, t := range p.Treatments {
		fmt.Fprintf(&b, "- %s:", t.Name)
		if t.Dosage != "" {
			fmt.Fprintf(&b, " %s", t.Dosage)
		}
		if t.Application != "" {
			fmt.Fprintf(&b, ", %s", t.Application)
		}
		if t.Frequency != "" {
			fmt.Fprintf(&b, ", %s", t.Frequency)
		}
		if t.Dosage == "" && t.Application == "" && t.Frequency == "" {
			b.WriteString(" follow the label instructions")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// parseVendorSelection resolves a reply to one of the offered vendors, by
// list position or by name. Returns nil when no selection is present.
func parseVendorSelection(message string, vendors []models.Vendor) *models.Vendor {
	msg := strings.ToLower(message)
	for _, f := range strings.Fields(msg) {
		f = strings.Trim(f, ".,!#")
		if n, err := strconv.Atoi(f); err == nil && n >= 1 && n <= len(vendors) {
			return &vendors[n-1]
		}
	}
	for i, v := range vendors {
		if strings.Contains(msg, strings.ToLower(v.Name)) {
			return &vendors[i]
		}
	}
	return nil
}

// displayName turns a snake_case disease label into display form.
func displayName(name string) string {
	words := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// followupSuggestions picks up to three next-step prompts based on what the
// session has already produced, skipping topics the user already raised.
func followupSuggestions(s *models.WorkflowState) []string {
	type suggestion struct {
		text   string
		topics []string
	}
	var candidates []suggestion
	switch {
	case s.ClassificationResults == nil:
		candidates = append(candidates, suggestion{"Share a photo of your plant for a diagnosis 📸", []string{"photo", "diagnos", "classify"}})
	case s.PrescriptionData == nil:
		candidates = append(candidates, suggestion{"Ask for a treatment plan for " + displayName(s.ClassificationResults.DiseaseName) + " 💊", []string{"treatment", "cure", "prescription"}})
	case len(s.VendorOptions) == 0:
		candidates = append(candidates, suggestion{"Ask where to buy the recommended treatments 🛒", []string{"buy", "vendor", "shop"}})
	}
	if s.PrescriptionData != nil {
		candidates = append(candidates, suggestion{"Ask about dosage and application details", []string{"dosage", "dose", "apply"}})
	}
	if s.ClassificationResults != nil && s.ClassificationResults.AttentionOverlay != "" {
		candidates = append(candidates, suggestion{"See which leaf areas the diagnosis focused on", []string{"overlay", "attention", "focus"}})
	}
	candidates = append(candidates, suggestion{"Ask a general plant care question 🌱", nil})

	var transcript strings.Builder
	for _, m := range s.Messages {
		if m.Role == models.RoleUser {
			transcript.WriteString(strings.ToLower(m.Content))
			transcript.WriteString(" ")
		}
	}
	asked := transcript.String()

	var out []string
	for _, c := range candidates {
		if len(out) == 3 {
			break
		}
		seen := false
		for _, topic := range c.topics {
			if strings.Contains(asked, topic) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, c.text)
		}
	}
	return out
}
