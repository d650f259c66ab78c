package models

// SellerDirectoryEntry is the read-only contract of the external seller
// directory service: a seller's name plus its known contact channels.
type SellerDirectoryEntry struct {
	Name           string `json:"name" yaml:"name"`
	Domain         string `json:"domain,omitempty" yaml:"domain,omitempty"`
	Phone          string `json:"phone,omitempty" yaml:"phone,omitempty"`
	WhatsappNumber string `json:"whatsapp_number,omitempty" yaml:"whatsapp_number,omitempty"`
}

// ContactNumber returns the preferred contact channel: phone first,
// WhatsApp number as fallback.
func (e SellerDirectoryEntry) ContactNumber() string {
	if e.Phone != "" {
		return e.Phone
	}
	return e.WhatsappNumber
}
