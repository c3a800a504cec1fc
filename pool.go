package bnpl

import (
	"context"

	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/pool"
	"github.com/xraph/bnpl/types"
)

// InitPool creates admin's advance pool backed by the custody account.
func (e *Engine) InitPool(ctx context.Context, admin types.Principal, custodyAccount string) (*pool.Pool, error) {
	var errs MultiError
	errs.Add(required("admin", admin.IsZero()))
	errs.Add(required("custody", custodyAccount == ""))
	if err := errs.ErrOrNil(); err != nil {
		return nil, err
	}

	p := pool.New(admin, custodyAccount, e.now())
	if err := e.locked(func() error {
		return e.store.CreatePool(ctx, p)
	}, p.ID); err != nil {
		return nil, err
	}

	e.logger.Info("advance pool initialized", "pool_id", p.ID.String(), "admin", admin)
	return p, nil
}

// GetPool returns a pool.
func (e *Engine) GetPool(ctx context.Context, poolID id.PoolID) (*pool.Pool, error) {
	return e.store.GetPool(ctx, poolID)
}

// Advance buys a note before maturity: the pool pays the current
// beneficiary the note amount less the policy discount and becomes the
// beneficiary. Pool admin only; this is the pool's delegated authority over
// notes it does not own.
func (e *Engine) Advance(ctx context.Context, signer types.Principal, poolID id.PoolID, noteID id.NoteID) (*note.Note, error) {
	var (
		n        *note.Note
		advanced pool.Advanced
		assigned note.BeneficiaryAssigned
		changed  note.StatusChanged
	)
	err := e.locked(func() error {
		p, err := e.store.GetPool(ctx, poolID)
		if err != nil {
			return err
		}
		if !p.IsAdmin(signer) {
			return ErrUnauthorized
		}
		n, err = e.store.GetNote(ctx, noteID)
		if err != nil {
			return err
		}
		if !n.Status.CanTransition(note.StatusAdvanced) {
			return ErrInvalidTransition
		}

		now := e.now()
		discount := e.discount.Discount(n, now).Min(n.Amount)
		net := n.Amount - discount
		payee := n.Beneficiary

		if err := e.transfer(ctx, types.Principal(p.Custody), payee, net, "advance:"+n.ID.String()); err != nil {
			return err
		}

		assigned = note.BeneficiaryAssigned{NoteID: n.ID, From: payee, To: p.Principal(), At: now}
		changed = note.StatusChanged{NoteID: n.ID, From: n.Status, To: note.StatusAdvanced, At: now}
		advanced = pool.Advanced{
			PoolID:   p.ID,
			NoteID:   n.ID,
			Payee:    payee,
			Gross:    n.Amount,
			Discount: discount,
			Net:      net,
			At:       now,
		}

		n.Beneficiary = p.Principal()
		n.Status = note.StatusAdvanced
		n.Touch(now)
		if err := e.store.UpdateNote(ctx, n); err != nil {
			e.reverse(ctx, types.Principal(p.Custody), payee, net, "advance:"+n.ID.String())
			return err
		}
		return nil
	}, poolID, noteID)
	if err != nil {
		return nil, err
	}

	e.plugins.EmitAdvanced(ctx, advanced)
	e.plugins.EmitBeneficiaryAssigned(ctx, assigned)
	e.plugins.EmitNoteStatusChanged(ctx, changed)
	return n, nil
}

// GuaranteeSettle settles a note from the guarantee reserve: the reserve is
// debited by the note amount, the current beneficiary is paid unless it is
// already the pool, and the note is settled with the pool as beneficiary.
// Pool admin only.
func (e *Engine) GuaranteeSettle(ctx context.Context, signer types.Principal, poolID id.PoolID, noteID id.NoteID) (*note.Note, error) {
	var (
		n        *note.Note
		settled  pool.GuaranteeSettled
		assigned *note.BeneficiaryAssigned
		changed  note.StatusChanged
	)
	err := e.locked(func() error {
		p, err := e.store.GetPool(ctx, poolID)
		if err != nil {
			return err
		}
		if !p.IsAdmin(signer) {
			return ErrUnauthorized
		}
		n, err = e.store.GetNote(ctx, noteID)
		if err != nil {
			return err
		}
		if !n.Status.CanTransition(note.StatusSettled) {
			return ErrInvalidTransition
		}
		reserve, err := p.GuaranteeReserve.Sub(n.Amount)
		if err != nil {
			return ErrInsufficientReserve
		}

		now := e.now()
		payee := n.Beneficiary
		var paid types.Amount
		if payee != p.Principal() {
			if err := e.transfer(ctx, types.Principal(p.Custody), payee, n.Amount, "settle:"+n.ID.String()); err != nil {
				return err
			}
			paid = n.Amount
			assigned = &note.BeneficiaryAssigned{NoteID: n.ID, From: payee, To: p.Principal(), At: now}
		}

		before := *p
		p.GuaranteeReserve = reserve
		p.Touch(now)
		if err := e.store.UpdatePool(ctx, p); err != nil {
			e.reverse(ctx, types.Principal(p.Custody), payee, paid, "settle:"+n.ID.String())
			return err
		}

		changed = note.StatusChanged{NoteID: n.ID, From: n.Status, To: note.StatusSettled, At: now}
		n.Beneficiary = p.Principal()
		n.Status = note.StatusSettled
		n.Touch(now)
		if err := e.store.UpdateNote(ctx, n); err != nil {
			if rbErr := e.store.UpdatePool(ctx, &before); rbErr != nil {
				e.logger.Error("failed to restore pool reserve after note update failure",
					"pool_id", p.ID.String(),
					"error", rbErr,
				)
			}
			e.reverse(ctx, types.Principal(p.Custody), payee, paid, "settle:"+n.ID.String())
			return err
		}

		settled = pool.GuaranteeSettled{
			PoolID:  p.ID,
			NoteID:  n.ID,
			Payee:   payee,
			Amount:  n.Amount,
			Reserve: reserve,
			At:      now,
		}
		return nil
	}, poolID, noteID)
	if err != nil {
		return nil, err
	}

	e.plugins.EmitGuaranteeSettled(ctx, settled)
	if assigned != nil {
		e.plugins.EmitBeneficiaryAssigned(ctx, *assigned)
	}
	e.plugins.EmitNoteStatusChanged(ctx, changed)
	return n, nil
}

// ReplenishReserve adds amount to the pool's guarantee reserve. Pool admin
// only; the reserve never decreases through this operation.
func (e *Engine) ReplenishReserve(ctx context.Context, signer types.Principal, poolID id.PoolID, amount types.Amount) (*pool.Pool, error) {
	var (
		p  *pool.Pool
		ev pool.ReserveReplenished
	)
	err := e.locked(func() error {
		var err error
		p, err = e.store.GetPool(ctx, poolID)
		if err != nil {
			return err
		}
		if !p.IsAdmin(signer) {
			return ErrUnauthorized
		}
		reserve, err := p.GuaranteeReserve.Add(amount)
		if err != nil {
			return err
		}
		if err := e.transfer(ctx, signer, types.Principal(p.Custody), amount, "replenish:"+p.ID.String()); err != nil {
			return err
		}

		now := e.now()
		p.GuaranteeReserve = reserve
		p.Touch(now)
		if err := e.store.UpdatePool(ctx, p); err != nil {
			e.reverse(ctx, signer, types.Principal(p.Custody), amount, "replenish:"+p.ID.String())
			return err
		}
		ev = pool.ReserveReplenished{PoolID: p.ID, Amount: amount, Reserve: reserve, At: now}
		return nil
	}, poolID)
	if err != nil {
		return nil, err
	}

	e.plugins.EmitReserveReplenished(ctx, ev)
	return p, nil
}
