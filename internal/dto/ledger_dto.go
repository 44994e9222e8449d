package dto

import (
	"github.com/Danmoreng/mtg-pwa-sub001/internal/identity"

	"github.com/shopspring/decimal"
)

// LotFilter is bound from the query string of GET /v1/lots.
type LotFilter struct {
	CardID  string `form:"card_id"`
	SetCode string `form:"set_code"`
	Number  string `form:"number"`
	Name    string `form:"name"`
	Lang    string `form:"lang"`
	Finish  string `form:"finish"`
}

func (f LotFilter) Attributes() CardAttributes {
	return CardAttributes{
		CardID:  f.CardID,
		SetCode: f.SetCode,
		Number:  f.Number,
		Name:    f.Name,
		Lang:    f.Lang,
		Finish:  f.Finish,
	}
}

type LotResponse struct {
	ID               string  `json:"id"`
	CardID           string  `json:"card_id"`
	Fingerprint      string  `json:"fingerprint"`
	SetCode          string  `json:"set_code,omitempty"`
	Number           string  `json:"number,omitempty"`
	Name             string  `json:"name,omitempty"`
	Finish           string  `json:"finish"`
	Language         string  `json:"language"`
	Quantity         int     `json:"quantity"`
	UnitCostCent     int64   `json:"unit_cost_cent"`
	CostResidualCent int64   `json:"cost_residual_cent"`
	Condition        string  `json:"condition"`
	Foil             bool    `json:"foil"`
	Source           string  `json:"source"`
	PurchasedAt      string  `json:"purchased_at"`
	AcquisitionID    *string `json:"acquisition_id,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

type LotListResponse struct {
	Identity identity.Key  `json:"identity"`
	Data     []LotResponse `json:"data"`
}

type RemainingResponse struct {
	LotID     string `json:"lot_id"`
	Quantity  int    `json:"quantity"`
	Allocated int    `json:"allocated"`
	Remaining int    `json:"remaining"`
}

// ReconcileFailure is an event the reconciler could not settle in this run.
type ReconcileFailure struct {
	// EventID is empty for a rejected sale, which is never stored.
	EventID string `json:"event_id,omitempty"`
	Kind    string `json:"kind"` // scan | sale
	Reason  string `json:"reason"`
}

// ReconcileReport summarises one reconciliation run.
type ReconcileReport struct {
	ScansMatched           int                `json:"scans_matched"`
	UnitsAdded             int                `json:"units_added"`
	SalesAllocated         int                `json:"sales_allocated"`
	AllocationsCreated     int                `json:"allocations_created"`
	ProvisionalLotsCreated int                `json:"provisional_lots_created"`
	Failures               []ReconcileFailure `json:"failures"`
}

type AcquisitionResponse struct {
	ID               string        `json:"id"`
	Name             string        `json:"name,omitempty"`
	TotalCostCent    int64         `json:"total_cost_cent"`
	Currency         string        `json:"currency"`
	AllocationMethod string        `json:"allocation_method"`
	AcquiredAt       string        `json:"acquired_at"`
	Lots             []LotResponse `json:"lots"`
}

// PnLResponse is the realised profit and loss of one acquisition.
type PnLResponse struct {
	AcquisitionID string           `json:"acquisition_id"`
	Currency      string           `json:"currency"`
	RevenueCent   int64            `json:"revenue_cent"`
	CostCent      int64            `json:"cost_cent"`
	ProfitCent    int64            `json:"profit_cent"`
	MarginPct     *decimal.Decimal `json:"margin_pct"`
}

type PricePointResponse struct {
	ID         string `json:"id"`
	CardID     string `json:"card_id"`
	Provider   string `json:"provider"`
	Precedence int    `json:"precedence"`
	Finish     string `json:"finish"`
	Date       string `json:"date"`
	Currency   string `json:"currency"`
	PriceCent  int64  `json:"price_cent"`
	AsOf       string `json:"as_of"`
}

type PriceFeedImportResult struct {
	Imported int      `json:"imported"`
	CardIDs  []string `json:"card_ids"`
}

// SaleConflictResponse is returned with 409 when a sale could not be fully
// allocated. The sale is not stored; retry it once stock is added.
type SaleConflictResponse struct {
	Code   string          `json:"code"`
	Detail string          `json:"detail"`
	Report ReconcileReport `json:"report"`
}

// JobAcceptedResponse acknowledges an enqueued background job.
type JobAcceptedResponse struct {
	JobID string `json:"job_id"`
	Type  string `json:"type"`
}

type PrecedenceResponse struct {
	Provider   string `json:"provider"`
	Precedence int    `json:"precedence"`
	Known      bool   `json:"known"`
}
