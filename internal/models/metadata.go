package models

// Metadata describes a website.
//
// For now it only holds the title; it grows once metadata extraction lands.
type Metadata struct {
	title *string
}

// NewMetadata creates a metadata description. A nil title means the website has none.
func NewMetadata(title *string) Metadata {
	if title == nil {
		return Metadata{}
	}
	t := *title
	return Metadata{title: &t}
}

// Title returns the website title and whether one is present
func (m Metadata) Title() (string, bool) {
	if m.title == nil {
		return "", false
	}
	return *m.title, true
}

func (m Metadata) String() string {
	if m.title == nil {
		return "Metadata(title: nil)"
	}
	return "Metadata(title: " + *m.title + ")"
}
