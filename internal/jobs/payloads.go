package jobs

// InvitationPayload carries an admin invitation to an address with no account yet.
type InvitationPayload struct {
	Email     string `json:"email"`
	Link      string `json:"link"`
	InvitedBy string `json:"invitedBy,omitempty"`
}

// PasswordResetPayload is sent on self-service request or by an admin.
type PasswordResetPayload struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	Link        string `json:"link"`
	RequestedBy string `json:"requestedBy,omitempty"`
}

// EmailConfirmationPayload confirms a new sign-up or a change of address. Email is the
// address being confirmed.
type EmailConfirmationPayload struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Link   string `json:"link"`
	Change bool   `json:"change,omitempty"`
}
