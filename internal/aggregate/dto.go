package aggregate

import "time"

// Wire DTOs for the aggregation pipelines. All fields use camelCase JSON
// names matching the downstream service contracts; decoding is
// case-insensitive by encoding/json semantics. Nullable upstream fields are
// pointers so that absent values round-trip as null.

// Store is a store profile record from the engagement service.
type Store struct {
	UserID        string `json:"userId"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	PhoneNumber   string `json:"phoneNumber"`
	Email         string `json:"email"`
	UserName      string `json:"userName"`
	ImageMasterID int    `json:"imageMasterId"`
}

// storeListEnvelope is the alternative enveloped shape some deployments of
// the engagement service return for the store roster.
type storeListEnvelope struct {
	IsSuccess bool    `json:"isSuccess"`
	Value     []Store `json:"value"`
	Message   *string `json:"message"`
}

// StoreWithImages is the enriched store roster entry returned by the
// stores-with-images pipeline.
type StoreWithImages struct {
	StoreID       string   `json:"storeId"`
	FirstName     string   `json:"firstName"`
	LastName      string   `json:"lastName"`
	PhoneNumber   string   `json:"phoneNumber"`
	Email         string   `json:"email"`
	UserName      string   `json:"userName"`
	ImageMasterID int      `json:"imageMasterId"`
	ImageURLs     []string `json:"imageUrls"`
}

// Product is a catalog service product record. ImageURLs is populated by the
// image join; the catalog itself returns it empty.
type Product struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Price         float64  `json:"price"`
	Stock         int      `json:"stock"`
	BrandID       int      `json:"brandId"`
	CategoryID    int      `json:"categoryId"`
	ImageMasterID int      `json:"imageMasterId"`
	Order         int      `json:"order"`
	ImageURLs     []string `json:"imageUrls"`
}

// ImageMaster is a file service record mapping an image master id to its
// ordered URL list.
type ImageMaster struct {
	MasterID  int      `json:"masterId"`
	ImageURLs []string `json:"imageUrls"`
}

// imagesByIDsRequest is the batch request body for the file service.
type imagesByIDsRequest struct {
	MasterIDs []int `json:"masterIds"`
}

// BasketLine is one line of a basket as returned by the order-management
// service.
type BasketLine struct {
	ProductID    int     `json:"productId"`
	Quantity     int     `json:"quantity"`
	UnitType     int     `json:"unitType"`
	ProductPrice float64 `json:"productPrice"`
	Weight       float64 `json:"weight"`
}

// BasketDetail is the basket header plus its line items.
type BasketDetail struct {
	UserID            string       `json:"userId"`
	StoreID           string       `json:"storeId"`
	BasketMasterID    int          `json:"basketMasterId"`
	DeliveryAddressID int          `json:"deliveryAddressId"`
	Items             []BasketLine `json:"items"`
}

// BasketLineDetail is a basket line enriched with the product name and a
// single representative image URL. Every field of the primary line carries
// through, price and weight included.
type BasketLineDetail struct {
	ProductID    int     `json:"productId"`
	ProductName  string  `json:"productName"`
	ImageURL     string  `json:"imageUrl"`
	Quantity     int     `json:"quantity"`
	UnitType     int     `json:"unitType"`
	ProductPrice float64 `json:"productPrice"`
	Weight       float64 `json:"weight"`
}

// BasketDetailView is the basket-detail pipeline output.
type BasketDetailView struct {
	UserID            string             `json:"userId"`
	StoreID           string             `json:"storeId"`
	BasketMasterID    int                `json:"basketMasterId"`
	DeliveryAddressID int                `json:"deliveryAddressId"`
	Items             []BasketLineDetail `json:"items"`
}

// Order is an order summary from the order-management service. StoreName and
// StoreImageURL are populated by the store-profile join.
type Order struct {
	ID             int64      `json:"id"`
	StoreID        string     `json:"storeId"`
	StoreName      string     `json:"storeName"`
	StoreImageURL  string     `json:"storeImageUrl"`
	CustomerID     string     `json:"customerId"`
	ShopperID      *string    `json:"shopperId"`
	BasketMasterID int        `json:"basketMasterId"`
	AssignedAtUTC  *time.Time `json:"assignedAtUtc"`
	Status         uint8      `json:"status"`
	Subtotal       *float64   `json:"subtotal"`
	DeliveryFee    *float64   `json:"deliveryFee"`
	ServiceFee     *float64   `json:"serviceFee"`
	Tip            *float64   `json:"tip"`
	Total          *float64   `json:"total"`
	Notes          *string    `json:"notes"`
}

// CustomerOrders is the enveloped response shape of the customer-orders
// endpoint: the customer id plus that customer's orders.
type CustomerOrders struct {
	CustomerID string  `json:"customerId"`
	Orders     []Order `json:"orders"`
}
