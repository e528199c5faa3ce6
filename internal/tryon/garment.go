package tryon

// Garment identifies one selectable clothing item. Catalog garments carry
// stable ids; uploaded garments get a freshly minted id and Custom set.
// Immutable once created, only ever referenced.
type Garment struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Image  string `json:"image"`
	Custom bool   `json:"custom,omitempty"`
}
