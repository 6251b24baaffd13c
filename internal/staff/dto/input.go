package dto

type RegisterShopInput struct {
	OwnerUserID string
	OwnerName   string
	Email       string
	ShopName    string
}

type AddRepInput struct {
	UserID string // identity issued by the gateway; generated when empty
	Name   string
	Email  string
}
