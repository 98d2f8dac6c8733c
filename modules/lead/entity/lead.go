package entity

import (
	coreEntity "funnel-api/core/entity"
)

const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

type Lead struct {
	coreEntity.BaseEntity
	FirstName string  `db:"first_name" json:"first_name"`
	Email     string  `db:"email" json:"email"`
	Phone     *string `db:"phone" json:"phone,omitempty"`
	Website   *string `db:"website" json:"website,omitempty"`
	Revenue   *string `db:"revenue" json:"revenue,omitempty"`
	Status    string  `db:"status" json:"status"`
}
