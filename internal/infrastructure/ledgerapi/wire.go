package ledgerapi

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/storefront/ledgersync/internal/domain/ledger"
)

const dateLayout = "2006-01-02"

// ---------------------------------------------------------------------------
// Envelopes
// ---------------------------------------------------------------------------

type errorResponse struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

type itemEnvelope[T any] struct {
	Data T `json:"data"`
}

type pageMeta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
}

type pageEnvelope[T any] struct {
	Data []T      `json:"data"`
	Meta pageMeta `json:"meta"`
}

// ---------------------------------------------------------------------------
// Access token
// ---------------------------------------------------------------------------

type tokenRequest struct {
	APIKey string `json:"api_key"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	// ExpiresIn is the lifetime in seconds, zero when not reported
	ExpiresIn int64 `json:"expires_in"`
}

// ---------------------------------------------------------------------------
// Associates
// ---------------------------------------------------------------------------

// remoteID accepts both numeric and string identifiers
type remoteID string

func (id *remoteID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = remoteID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = remoteID(n.String())
	return nil
}

type addressPayload struct {
	ID       remoteID `json:"id,omitempty"`
	Address  string   `json:"address"`
	City     string   `json:"city"`
	District string   `json:"district"`
	Country  string   `json:"country,omitempty"`
}

type associateRequest struct {
	Name       string         `json:"name"`
	Surname    string         `json:"surname"`
	Email      string         `json:"email"`
	Phone      string         `json:"phone"`
	NationalID string         `json:"national_id"`
	Address    addressPayload `json:"address"`
	Tag        string         `json:"tag,omitempty"`
}

type associateResponse struct {
	ID        remoteID         `json:"id"`
	Name      string           `json:"name"`
	Surname   string           `json:"surname"`
	Email     string           `json:"email"`
	Phone     string           `json:"phone"`
	Addresses []addressPayload `json:"addresses"`
}

func toAssociateRequest(d ledger.CustomerDraft) associateRequest {
	return associateRequest{
		Name:       d.Name,
		Surname:    d.Surname,
		Email:      d.Email,
		Phone:      d.Phone,
		NationalID: d.NationalID,
		Address: addressPayload{
			Address:  d.Address,
			City:     d.City,
			District: d.District,
			Country:  d.Country,
		},
		Tag: d.Classification,
	}
}

func (r associateResponse) toDomain() ledger.RemoteCustomer {
	addresses := make([]ledger.RemoteAddress, 0, len(r.Addresses))
	for _, a := range r.Addresses {
		addresses = append(addresses, ledger.RemoteAddress{
			ID:       string(a.ID),
			Address:  a.Address,
			City:     a.City,
			District: a.District,
		})
	}
	return ledger.RemoteCustomer{
		ID:        string(r.ID),
		Name:      r.Name,
		Surname:   r.Surname,
		Email:     r.Email,
		Phone:     r.Phone,
		Addresses: addresses,
	}
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

type productRequest struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	VatRate decimal.Decimal `json:"vat_rate"`
	Price   decimal.Decimal `json:"price"`
	Type    string          `json:"type"`
	Tag     string          `json:"tag,omitempty"`
}

type productResponse struct {
	ID      remoteID        `json:"id"`
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	VatRate decimal.Decimal `json:"vat_rate"`
	Price   decimal.Decimal `json:"price"`
}

func toProductRequest(d ledger.ProductDraft) productRequest {
	return productRequest{
		Code:    d.Code,
		Name:    d.Name,
		VatRate: d.TaxRate,
		Price:   d.Price,
		Type:    d.Type,
		Tag:     d.Classification,
	}
}

func (r productResponse) toDomain() ledger.RemoteProduct {
	return ledger.RemoteProduct{
		ID:      string(r.ID),
		Code:    r.Code,
		Name:    r.Name,
		TaxRate: r.VatRate,
		Price:   r.Price,
	}
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

type orderItemPayload struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	VatRate   decimal.Decimal `json:"vat_rate"`
}

type orderRequest struct {
	AssociateID string `json:"associate_id"`
	AddressID   string `json:"address_id"`
	Date        string `json:"date"`
	OrderNumber string `json:"order_number"`
	ChannelID   string `json:"channel_id"`
	// Items is keyed by the line index as a string: {"0": {...}, "1": {...}}
	Items map[string]orderItemPayload `json:"items"`
}

type orderResponse struct {
	ID          remoteID `json:"id"`
	OrderNumber string   `json:"order_number"`
}

func toOrderRequest(d ledger.OrderDraft) orderRequest {
	items := make(map[string]orderItemPayload, len(d.Items))
	for i, item := range d.Items {
		items[strconv.Itoa(i)] = orderItemPayload{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			VatRate:   item.TaxRate,
		}
	}
	return orderRequest{
		AssociateID: d.CustomerID,
		AddressID:   d.AddressID,
		Date:        d.Date.Format(dateLayout),
		OrderNumber: d.OrderNumber,
		ChannelID:   d.ChannelID,
		Items:       items,
	}
}

func (r orderResponse) toDomain() ledger.RemoteOrder {
	return ledger.RemoteOrder{ID: string(r.ID), Number: r.OrderNumber}
}

func unmarshal(body []byte, v any) error {
	return json.Unmarshal(body, v)
}
