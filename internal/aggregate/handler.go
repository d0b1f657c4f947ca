package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/esats/OrderDispatcher.Apigateway/internal/config"
	"github.com/esats/OrderDispatcher.Apigateway/internal/downstream"
	"github.com/esats/OrderDispatcher.Apigateway/internal/middleware"
	"github.com/esats/OrderDispatcher.Apigateway/pkg/httputil"
	"github.com/esats/OrderDispatcher.Apigateway/pkg/logger"
	"github.com/esats/OrderDispatcher.Apigateway/pkg/validator"
)

// Handler serves the aggregation endpoints. Each endpoint runs a short
// linear pipeline: gate, primary fetch, key extraction, batch joins, compose.
// The downstream client set and operation paths are fixed at construction
// and shared read-only across requests.
type Handler struct {
	clients *downstream.Set
	cfg     *config.Config
	logger  *slog.Logger
}

// NewHandler creates the aggregation handler.
func NewHandler(clients *downstream.Set, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{clients: clients, cfg: cfg, logger: logger}
}

// Routes mounts the aggregation endpoints. They are registered with Handle
// rather than Get so the gate can answer non-GET methods with a bare 405.
func (h *Handler) Routes(r chi.Router) {
	r.Handle("/aggregate/engagement/stores-with-images", http.HandlerFunc(h.StoresWithImages))
	r.Handle("/aggregate/catalog/products-with-images", http.HandlerFunc(h.ProductsWithImages))
	r.Handle("/aggregate/order-management/basketDetail", http.HandlerFunc(h.BasketDetail))
	r.Handle("/aggregate/order-management/orders", http.HandlerFunc(h.Orders))
	r.Handle("/aggregate/order-management/customerOrders", http.HandlerFunc(h.CustomerOrders))
}

// gate enforces the entry contract shared by all pipelines: GET only, and an
// authenticated identity must be attached to the request. Rejections carry a
// bare status code and no body, and no downstream call is made.
func (h *Handler) gate(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	if _, ok := middleware.IdentityFromContext(r.Context()); !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

// respondUpstreamError terminates a pipeline after a required call failed.
// A non-success upstream status is mirrored verbatim; transport and decode
// failures map to 502. Either way the body stays empty.
func (h *Handler) respondUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var statusErr *downstream.StatusError
	if errors.As(err, &statusErr) {
		w.WriteHeader(statusErr.StatusCode)
		return
	}

	logger.FromContext(r.Context()).ErrorContext(r.Context(), "required downstream call failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	w.WriteHeader(http.StatusBadGateway)
}

// StoresWithImages returns the store roster with each store's image URL
// list joined on.
func (h *Handler) StoresWithImages(w http.ResponseWriter, r *http.Request) {
	if !h.gate(w, r) {
		return
	}
	ctx := r.Context()
	auth := r.Header.Get("Authorization")

	raw, err := getJSON[json.RawMessage](ctx, h.clients.Engagement, h.cfg.EngagementStoresPath, auth)
	if err != nil {
		h.respondUpstreamError(w, r, err)
		return
	}
	stores, err := decodeStores(raw)
	if err != nil {
		h.respondUpstreamError(w, r, err)
		return
	}

	masterIDs := collectKeys(stores, func(s Store) int { return s.ImageMasterID }, positiveID)
	images := h.imagesByMasterIDs(ctx, masterIDs, auth)

	out := make([]StoreWithImages, len(stores))
	for i, s := range stores {
		out[i] = StoreWithImages{
			StoreID:       s.UserID,
			FirstName:     s.FirstName,
			LastName:      s.LastName,
			PhoneNumber:   s.PhoneNumber,
			Email:         s.Email,
			UserName:      s.UserName,
			ImageMasterID: s.ImageMasterID,
			ImageURLs:     urlsOrEmpty(images, s.ImageMasterID),
		}
	}

	httputil.WriteJSON(w, http.StatusOK, out)
}

// ProductsWithImages returns a store's product catalog with each product's
// image URL list joined on.
func (h *Handler) ProductsWithImages(w http.ResponseWriter, r *http.Request) {
	if !h.gate(w, r) {
		return
	}
	ctx := r.Context()
	auth := r.Header.Get("Authorization")

	storeID := r.URL.Query().Get("storeId")

	products, err := getJSON[[]Product](ctx, h.clients.Catalog, h.cfg.CatalogProductPath+storeID, auth)
	if err != nil {
		h.respondUpstreamError(w, r, err)
		return
	}

	masterIDs := collectKeys(products, func(p Product) int { return p.ImageMasterID }, positiveID)
	images := h.imagesByMasterIDs(ctx, masterIDs, auth)

	out := make([]Product, len(products))
	for i, p := range products {
		p.ImageURLs = urlsOrEmpty(images, p.ImageMasterID)
		out[i] = p
	}

	httputil.WriteJSON(w, http.StatusOK, out)
}

// basketDetailParams are the required query parameters of the basket-detail
// pipeline.
type basketDetailParams struct {
	UserID  string `validate:"required"`
	StoreID string `validate:"required"`
}

// BasketDetail returns a basket with its line items enriched by a product
// lookup and, chained from each resolved product's image master, a single
// representative image URL.
func (h *Handler) BasketDetail(w http.ResponseWriter, r *http.Request) {
	if !h.gate(w, r) {
		return
	}
	ctx := r.Context()
	auth := r.Header.Get("Authorization")

	params := basketDetailParams{
		UserID:  r.URL.Query().Get("userId"),
		StoreID: r.URL.Query().Get("storeId"),
	}
	if err := validator.Validate(params); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	basketPath := h.cfg.BasketDetailPath + "?" + url.Values{
		"userId":  {params.UserID},
		"storeId": {params.StoreID},
	}.Encode()

	basket, err := getJSON[BasketDetail](ctx, h.clients.OrderManagement, basketPath, auth)
	if err != nil {
		h.respondUpstreamError(w, r, err)
		return
	}

	productIDs := collectKeys(basket.Items, func(l BasketLine) int { return l.ProductID }, positiveID)

	// The product batch is a required call: a failure aborts with status
	// pass-through. An empty key set skips it entirely and the items compose
	// against empty lookups.
	var products []Product
	if len(productIDs) > 0 {
		products, err = postJSON[[]Product](ctx, h.clients.Catalog, h.cfg.CatalogProductsByIDsPath, productIDs, auth)
		if err != nil {
			h.respondUpstreamError(w, r, err)
			return
		}
	}
	productMap := indexBy(products, func(p Product) int { return p.ID })

	masterIDs := collectKeys(products, func(p Product) int { return p.ImageMasterID }, positiveID)
	images := h.imagesByMasterIDs(ctx, masterIDs, auth)

	items := make([]BasketLineDetail, len(basket.Items))
	for i, line := range basket.Items {
		item := BasketLineDetail{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			UnitType:     line.UnitType,
			ProductPrice: line.ProductPrice,
			Weight:       line.Weight,
		}
		if product, ok := productMap[line.ProductID]; ok {
			item.ProductName = product.Name
			item.ImageURL = firstURL(images, product.ImageMasterID)
		}
		items[i] = item
	}

	httputil.WriteJSON(w, http.StatusOK, BasketDetailView{
		UserID:            basket.UserID,
		StoreID:           basket.StoreID,
		BasketMasterID:    basket.BasketMasterID,
		DeliveryAddressID: basket.DeliveryAddressID,
		Items:             items,
	})
}

// Orders returns all orders with store name and store image joined on.
func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	if !h.gate(w, r) {
		return
	}
	ctx := r.Context()
	auth := r.Header.Get("Authorization")

	orders, err := getJSON[[]Order](ctx, h.clients.OrderManagement, h.cfg.OrdersPath, auth)
	if err != nil {
		h.respondUpstreamError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, h.enrichOrders(ctx, orders, auth))
}

// CustomerOrders returns one customer's orders, with the same store join as
// Orders. The customerId filter is optional; without it the downstream call
// returns all orders in the caller's scope.
func (h *Handler) CustomerOrders(w http.ResponseWriter, r *http.Request) {
	if !h.gate(w, r) {
		return
	}
	ctx := r.Context()
	auth := r.Header.Get("Authorization")

	path := h.cfg.CustomerOrdersPath
	if customerID := r.URL.Query().Get("customerId"); customerID != "" {
		path = appendQuery(path, "customerId", customerID)
	}

	resp, err := getJSON[CustomerOrders](ctx, h.clients.OrderManagement, path, auth)
	if err != nil {
		h.respondUpstreamError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, CustomerOrders{
		CustomerID: resp.CustomerID,
		Orders:     h.enrichOrders(ctx, resp.Orders, auth),
	})
}

// enrichOrders joins store profiles and store images onto an order list,
// preserving order. Both joins are best-effort: a miss leaves the store name
// and image URL empty.
func (h *Handler) enrichOrders(ctx context.Context, orders []Order, auth string) []Order {
	log := h.requestLogger(ctx)

	storeIDs := collectKeys(orders, func(o Order) string { return o.StoreID }, nonEmptyID)
	storeMap := batchLookup(ctx, h.clients.Engagement, h.cfg.EngagementStoresByIDsPath, storeIDs,
		func(ids []string) any { return ids },
		func(s Store) string { return s.UserID },
		auth, log)

	stores := values(storeMap)
	masterIDs := collectKeys(stores, func(s Store) int { return s.ImageMasterID }, positiveID)
	images := h.imagesByMasterIDs(ctx, masterIDs, auth)

	out := make([]Order, len(orders))
	for i, o := range orders {
		if store, ok := storeMap[o.StoreID]; ok {
			o.StoreName = store.FirstName
			o.StoreImageURL = firstURL(images, store.ImageMasterID)
		}
		out[i] = o
	}
	return out
}

// imagesByMasterIDs runs the best-effort image batch join against the file
// service.
func (h *Handler) imagesByMasterIDs(ctx context.Context, masterIDs []int, auth string) map[int]ImageMaster {
	return batchLookup(ctx, h.clients.File, h.cfg.ImagesByMasterIDsPath, masterIDs,
		func(ids []int) any { return imagesByIDsRequest{MasterIDs: ids} },
		func(im ImageMaster) int { return im.MasterID },
		auth, h.requestLogger(ctx))
}

// requestLogger prefers the request-scoped logger from context.
func (h *Handler) requestLogger(ctx context.Context) *slog.Logger {
	if l := logger.FromContext(ctx); l != slog.Default() {
		return l
	}
	return h.logger
}

// urlsOrEmpty resolves an image master id to its URL list, or an empty (not
// nil) list on a miss so the field serializes as [].
func urlsOrEmpty(images map[int]ImageMaster, masterID int) []string {
	if im, ok := images[masterID]; ok && im.ImageURLs != nil {
		return im.ImageURLs
	}
	return []string{}
}

// firstURL resolves an image master id to the first URL of its list, or ""
// when the id is unknown or the list is empty.
func firstURL(images map[int]ImageMaster, masterID int) string {
	if im, ok := images[masterID]; ok && len(im.ImageURLs) > 0 {
		return im.ImageURLs[0]
	}
	return ""
}

// appendQuery appends one query parameter to a path that may or may not
// already carry a query string.
func appendQuery(path, key, value string) string {
	sep := "?"
	if u, err := url.Parse(path); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return path + sep + key + "=" + url.QueryEscape(value)
}
