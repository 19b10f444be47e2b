package models

// Property is one listing in a tenant catalog. Personal-tier listings carry URL and
// ImageURL; co-brokered listings carry Image and Eflyer and never a URL.
// Snapshots are immutable once cached.
type Property struct {
	ID          string `json:"id"                    bson:"id"`
	ListingID   string `json:"listingId,omitempty"   bson:"listingId,omitempty"`
	Title       string `json:"title"                 bson:"title"`
	Location    string `json:"location"              bson:"location"`
	Price       string `json:"price"                 bson:"price"`
	Type        string `json:"type"                  bson:"type"`
	Bedrooms    int    `json:"bedrooms,omitempty"    bson:"bedrooms,omitempty"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	POI         string `json:"poi,omitempty"         bson:"poi,omitempty"`
	URL         string `json:"url,omitempty"         bson:"url,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"    bson:"imageUrl,omitempty"`
	Image       string `json:"image,omitempty"       bson:"image,omitempty"`
	Eflyer      string `json:"eflyer,omitempty"      bson:"eflyer,omitempty"`

	SourceTenant string `json:"sourceTenant,omitempty" bson:"-"`
	Level        int    `json:"level,omitempty"        bson:"-"`
	LevelLabel   string `json:"levelLabel,omitempty"   bson:"-"`
}

const (
	PropertyTypeSale = "Sale"
	PropertyTypeRent = "Rent"
)

// CoBrokered returns a copy tagged with its source and stripped of the direct URL.
func (p Property) CoBrokered(source string, level int, label string) Property {
	out := p
	out.URL = ""
	if out.Image == "" {
		out.Image = out.ImageURL
	}
	out.ImageURL = ""
	out.SourceTenant = source
	out.Level = level
	out.LevelLabel = label
	return out
}
