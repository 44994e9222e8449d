package service

import (
	"time"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/dto"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/identity"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/model"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/repository"
)

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func lotToResponse(l *model.CardLot) dto.LotResponse {
	resp := dto.LotResponse{
		ID:               l.ID.String(),
		CardID:           l.CardID,
		Fingerprint:      l.Fingerprint,
		SetCode:          l.SetCode,
		Number:           l.Number,
		Name:             l.Name,
		Finish:           l.Finish,
		Language:         l.Language,
		Quantity:         l.Quantity,
		UnitCostCent:     l.UnitCostCent,
		CostResidualCent: l.CostResidualCent,
		Condition:        l.Condition,
		Foil:             l.Foil,
		Source:           l.Source,
		PurchasedAt:      formatTime(l.PurchasedAt),
		CreatedAt:        formatTime(l.CreatedAt),
		UpdatedAt:        formatTime(l.UpdatedAt),
	}
	if l.AcquisitionID != nil {
		id := l.AcquisitionID.String()
		resp.AcquisitionID = &id
	}
	return resp
}

func lotsToResponse(lots []model.CardLot) []dto.LotResponse {
	out := make([]dto.LotResponse, 0, len(lots))
	for i := range lots {
		out = append(out, lotToResponse(&lots[i]))
	}
	return out
}

// ToPricePointResponse maps a stored price point, annotating its provider precedence.
func ToPricePointResponse(p *model.PricePoint) *dto.PricePointResponse {
	return &dto.PricePointResponse{
		ID:         p.ID.String(),
		CardID:     p.CardID,
		Provider:   p.Provider,
		Precedence: SourcePrecedence(p.Provider),
		Finish:     p.Finish,
		Date:       p.Date.UTC().Format(time.DateOnly),
		Currency:   p.Currency,
		PriceCent:  p.PriceCent,
		AsOf:       formatTime(p.AsOf),
	}
}

// newLot builds an unsaved lot for key with the foil flag derived from the
// finish.
func newLot(key identity.Key, source string, quantity int, purchasedAt time.Time) *model.CardLot {
	return &model.CardLot{
		CardID:      key.LotCardID(),
		Fingerprint: key.Fingerprint,
		SetCode:     key.SetCode,
		Number:      key.Number,
		Name:        key.Name,
		Finish:      string(key.Finish),
		Language:    key.Lang,
		Quantity:    quantity,
		Condition:   model.DefaultCondition,
		Foil:        model.IsFoilFinish(string(key.Finish)),
		Source:      source,
		PurchasedAt: purchasedAt,
	}
}

func lotIdentity(key identity.Key) repository.LotIdentity {
	return repository.LotIdentity{
		CardID:      key.LotCardID(),
		Fingerprint: key.Fingerprint,
		Finish:      string(key.Finish),
		Language:    key.Lang,
	}
}

// Stored events keep the normalized identity, including the fingerprint, so
// re-running the reconciler never re-reads the clock for unknown cards.

func scanKey(s *model.Scan) identity.Key {
	return identity.Key{
		CardID:      s.CardID,
		SetCode:     s.SetCode,
		Number:      s.Number,
		Lang:        s.Language,
		Finish:      identity.Finish(s.Finish),
		Name:        s.Name,
		Fingerprint: s.Fingerprint,
	}
}

func saleKey(t *model.SellTransaction) identity.Key {
	return identity.Key{
		CardID:      t.CardID,
		SetCode:     t.SetCode,
		Number:      t.Number,
		Lang:        t.Language,
		Finish:      identity.Finish(t.Finish),
		Name:        t.Name,
		Fingerprint: t.Fingerprint,
	}
}

func acquisitionToResponse(a *model.Acquisition, lots []model.CardLot) *dto.AcquisitionResponse {
	return &dto.AcquisitionResponse{
		ID:               a.ID.String(),
		Name:             a.Name,
		TotalCostCent:    a.TotalCostCent,
		Currency:         a.Currency,
		AllocationMethod: a.AllocationMethod,
		AcquiredAt:       formatTime(a.AcquiredAt),
		Lots:             lotsToResponse(lots),
	}
}
