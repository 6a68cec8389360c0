package domain

// ProductIdentity describes the product a lookup resolved to. It is fixed
// once resolved; identity fields are never merged across sources.
type ProductIdentity struct {
	Name     string `json:"name"`
	Brand    string `json:"brand,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	Barcode  string `json:"barcode,omitempty"`
}

// ServingInfo describes one serving of a product. Grams is always
// populated; 100 is used when no serving size could be determined.
type ServingInfo struct {
	DisplayLabel     string  `json:"displayLabel"`
	Grams            float64 `json:"grams"`
	WasCorrected     bool    `json:"wasCorrected"`
	CorrectionReason string  `json:"correctionReason,omitempty"`
}
