package profile

// Profile is the storefront user as returned by GET /users/me.
type Profile struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	IsSeller  bool   `json:"is_seller"`
	IsActive  bool   `json:"is_active"`
	Store     *Store `json:"store,omitempty"`
}

// Store is the seller's shop, present only for sellers.
type Store struct {
	StoreID      int64  `json:"storeId"`
	StoreName    string `json:"storeName,omitempty"`
	Description  string `json:"description,omitempty"`
	CoverImageID string `json:"coverImageId,omitempty"`
	StoreImageID string `json:"storeImageId,omitempty"`
}
