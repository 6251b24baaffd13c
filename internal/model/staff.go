package model

import "time"

type Role string

const (
	RoleOwner    Role = "OWNER"
	RoleSalesRep Role = "SALES_REP"
)

type Shop struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// StaffMember is a user profile bound to exactly one shop.
type StaffMember struct {
	ID        string    `db:"id" json:"id"`
	ShopID    string    `db:"shop_id" json:"shop_id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
