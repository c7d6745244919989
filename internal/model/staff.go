package model

import (
	"time"
)

type StaffAccount struct {
	ID         string     `db:"id" json:"id"`
	Name       string     `db:"name" json:"name"`
	Role       StaffRole  `db:"role" json:"role"`
	TokenHash  string     `db:"token_hash" json:"-"`
	DisabledAt *time.Time `db:"disabled_at" json:"disabledAt,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

type CreateStaffAccountParams struct {
	Name      string
	Role      StaffRole
	TokenHash string
}
