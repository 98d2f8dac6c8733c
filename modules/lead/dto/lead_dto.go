package dto

type CreateLeadRequest struct {
	FirstName string  `json:"first_name" validate:"required"`
	Email     string  `json:"email" validate:"required,email"`
	Phone     *string `json:"phone"`
	Website   *string `json:"website"`
	Revenue   *string `json:"revenue"`
}

type LeadResponse struct {
	ID        string  `json:"id"`
	FirstName string  `json:"first_name"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone,omitempty"`
	Website   *string `json:"website,omitempty"`
	Revenue   *string `json:"revenue,omitempty"`
	Status    string  `json:"status"`
}
