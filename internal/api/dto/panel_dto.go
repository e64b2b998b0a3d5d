package dto

// OpenPanelRequest selects the active floating panel surface.
type OpenPanelRequest struct {
	Panel string `json:"panel" form:"panel"`
}

// SendMessageRequest payload for the compose box.
type SendMessageRequest struct {
	PartnerID string `json:"partner_id" form:"partner_id"`
	Body      string `json:"body" form:"body"`
}
