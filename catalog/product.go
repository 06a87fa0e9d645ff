package catalog

// Product is a catalog entry as served by GET /products.
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	Paused      bool    `json:"paused,omitempty"`
	SellerID    int64   `json:"seller_id,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	RatingCount int     `json:"ratingCount,omitempty"`
}

// ListParams filters a product listing. Zero values are omitted.
type ListParams struct {
	Search   string
	Category string
	Sort     string
	StoreID  string
	Page     int
	PageSize int
}

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

type ProductPage struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}
