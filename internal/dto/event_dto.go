package dto

import (
	"time"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/identity"
)

// CardAttributes are the raw, possibly partial attributes identifying a card
// variant on any incoming event.
type CardAttributes struct {
	CardID  string `json:"card_id"  validate:"omitempty,max=64"`
	SetCode string `json:"set_code" validate:"omitempty,max=16"`
	Number  string `json:"number"   validate:"omitempty,max=32"`
	Lang    string `json:"lang"     validate:"omitempty,max=32"`
	Finish  string `json:"finish"   validate:"omitempty,max=32"`
	Foil    *bool  `json:"foil"`
	Name    string `json:"name"     validate:"omitempty,max=200"`
}

// Input converts the attributes into normalizer input.
func (a CardAttributes) Input() identity.Input {
	return identity.Input{
		CardID:  a.CardID,
		SetCode: a.SetCode,
		Number:  a.Number,
		Lang:    a.Lang,
		Finish:  a.Finish,
		Foil:    a.Foil,
		Name:    a.Name,
	}
}

// ScanEvent is a physical verification of Quantity copies of a card.
type ScanEvent struct {
	ObservedAttributes CardAttributes `json:"observed_attributes"`
	Quantity           int            `json:"quantity"  validate:"min=1"`
	Timestamp          time.Time      `json:"timestamp"`
}

// SellEvent is a sale of Quantity copies at PriceCent per copy.
type SellEvent struct {
	CardAttributes CardAttributes `json:"card_attributes"`
	Quantity       int            `json:"quantity"   validate:"min=1"`
	PriceCent      int64          `json:"price_cent" validate:"min=0"`
	Currency       string         `json:"currency"   validate:"omitempty,len=3"`
	Timestamp      time.Time      `json:"timestamp"`
}

// AdjustmentEvent adds inventory that was neither purchased nor scanned,
// typically to resolve an insufficient-inventory failure.
type AdjustmentEvent struct {
	CardAttributes CardAttributes `json:"card_attributes"`
	Quantity       int            `json:"quantity"       validate:"min=1"`
	UnitCostCent   int64          `json:"unit_cost_cent" validate:"min=0"`
	Condition      string         `json:"condition"      validate:"omitempty,max=32"`
	Timestamp      time.Time      `json:"timestamp"`
}

// AcquisitionLotRow is one line of an acquisition import.
type AcquisitionLotRow struct {
	Card         CardAttributes `json:"card"`
	Quantity     int            `json:"quantity"       validate:"min=1"`
	UnitCostCent int64          `json:"unit_cost_cent" validate:"min=0"`
	Condition    string         `json:"condition"      validate:"omitempty,max=32"`
}

// AcquisitionImport creates an acquisition with its purchase lots.
type AcquisitionImport struct {
	Name             string              `json:"name"              validate:"omitempty,max=200"`
	TotalCostCent    int64               `json:"total_cost_cent"   validate:"min=0"`
	Currency         string              `json:"currency"          validate:"omitempty,len=3"`
	AllocationMethod string              `json:"allocation_method" validate:"omitempty,oneof=equal_per_card proportional_to_market_value manual"`
	AcquiredAt       time.Time           `json:"acquired_at"`
	Lots             []AcquisitionLotRow `json:"lots"              validate:"dive"`
}

// PriceFeedRow is one pre-fetched provider quote.
type PriceFeedRow struct {
	Provider  string     `json:"provider"   validate:"required,max=64"`
	CardID    string     `json:"card_id"    validate:"required,max=64"`
	Finish    string     `json:"finish"     validate:"omitempty,max=32"`
	Date      string     `json:"date"       validate:"required,datetime=2006-01-02"`
	Currency  string     `json:"currency"   validate:"omitempty,len=3"`
	PriceCent int64      `json:"price_cent" validate:"min=0"`
	AsOf      *time.Time `json:"as_of"`
}

type PriceFeedUpload struct {
	Rows []PriceFeedRow `json:"rows" validate:"required,min=1,dive"`
}

// ReconcileRequest narrows a reconciliation run to one identity; nil runs
// the full reconciler.
type ReconcileRequest struct {
	Identity *CardAttributes `json:"identity"`
}

type AllocateRequest struct {
	Method string `json:"method" validate:"omitempty,oneof=equal_per_card proportional_to_market_value manual"`
}
