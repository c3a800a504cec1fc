package bnpl

import (
	"context"
	"time"

	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/types"
)

// MintNote issues the note for installment index of an order. The merchant
// is its first beneficiary. A second mint of the same (order, index) fails
// with ErrAlreadyExists; consumers that deliver at least once treat that as
// already minted.
func (e *Engine) MintNote(ctx context.Context, orderID types.OrderID, index uint8, buyer, merchant types.Principal, amount types.Amount, dueAt time.Time) (*note.Note, error) {
	var errs MultiError
	errs.Add(required("buyer", buyer.IsZero()))
	errs.Add(required("merchant", merchant.IsZero()))
	errs.Add(required("order_id", orderID.IsZero()))
	errs.Add(required("due_at", dueAt.IsZero()))
	if amount == 0 {
		errs.Add(ValidationError{Field: "amount", Message: "must be positive"})
	}
	if err := errs.ErrOrNil(); err != nil {
		return nil, err
	}

	n := note.New(orderID, index, buyer, merchant, amount, dueAt, e.now())
	if err := e.locked(func() error {
		return e.store.CreateNote(ctx, n)
	}, n.ID); err != nil {
		return nil, err
	}

	e.plugins.EmitNoteIssued(ctx, note.Issued{
		NoteID:   n.ID,
		OrderID:  orderID,
		Index:    index,
		Buyer:    buyer,
		Merchant: merchant,
		Amount:   amount,
		DueAt:    n.DueAt,
	})
	return n, nil
}

// GetNote returns a note.
func (e *Engine) GetNote(ctx context.Context, noteID id.NoteID) (*note.Note, error) {
	return e.store.GetNote(ctx, noteID)
}

// ListNotes lists notes matching opts, earliest due first.
func (e *Engine) ListNotes(ctx context.Context, opts note.ListOpts) ([]*note.Note, error) {
	return e.store.ListNotes(ctx, opts)
}

// MarkPaid records that the buyer paid a note. Only the current beneficiary,
// who received the payment, may mark it.
func (e *Engine) MarkPaid(ctx context.Context, signer types.Principal, noteID id.NoteID) (*note.Note, error) {
	var (
		n  *note.Note
		ev note.StatusChanged
	)
	err := e.locked(func() error {
		var err error
		n, err = e.store.GetNote(ctx, noteID)
		if err != nil {
			return err
		}
		if signer.IsZero() || signer != n.Beneficiary {
			return ErrUnauthorized
		}
		if !n.Status.CanTransition(note.StatusPaid) {
			return ErrInvalidTransition
		}

		now := e.now()
		ev = note.StatusChanged{NoteID: n.ID, From: n.Status, To: note.StatusPaid, At: now}
		n.Status = note.StatusPaid
		n.Touch(now)
		return e.store.UpdateNote(ctx, n)
	}, noteID)
	if err != nil {
		return nil, err
	}

	e.plugins.EmitNoteStatusChanged(ctx, ev)
	return n, nil
}

// AssignBeneficiary transfers the right to a note's proceeds. Only the
// current beneficiary may assign, and only while the note is open.
func (e *Engine) AssignBeneficiary(ctx context.Context, signer types.Principal, noteID id.NoteID, to types.Principal) (*note.Note, error) {
	if err := required("beneficiary", to.IsZero()); err != nil {
		return nil, err
	}

	var (
		n  *note.Note
		ev note.BeneficiaryAssigned
	)
	err := e.locked(func() error {
		var err error
		n, err = e.store.GetNote(ctx, noteID)
		if err != nil {
			return err
		}
		if signer.IsZero() || signer != n.Beneficiary {
			return ErrUnauthorized
		}
		if n.Status.IsTerminal() {
			return ErrInvalidTransition
		}

		now := e.now()
		ev = note.BeneficiaryAssigned{NoteID: n.ID, From: n.Beneficiary, To: to, At: now}
		n.Beneficiary = to
		n.Touch(now)
		return e.store.UpdateNote(ctx, n)
	}, noteID)
	if err != nil {
		return nil, err
	}

	e.plugins.EmitBeneficiaryAssigned(ctx, ev)
	return n, nil
}

// AgeNote moves a note forward through due_upcoming, due_today, past_due and
// defaulted as time passes. The grace period before default is the risk
// configuration's GraceAnyDays.
func (e *Engine) AgeNote(ctx context.Context, noteID id.NoteID) (*note.Note, error) {
	cfg, err := e.store.GetRiskConfig(ctx, id.RiskConfigFor())
	if err != nil {
		return nil, err
	}
	grace := time.Duration(cfg.GraceAnyDays) * 24 * time.Hour

	var (
		n      *note.Note
		events []note.StatusChanged
	)
	err = e.locked(func() error {
		var err error
		n, err = e.store.GetNote(ctx, noteID)
		if err != nil {
			return err
		}

		now := e.now()
		for {
			next, moved := n.NextAged(now, grace)
			if !moved {
				break
			}
			events = append(events, note.StatusChanged{NoteID: n.ID, From: n.Status, To: next, At: now})
			n.Status = next
		}
		if len(events) == 0 {
			return nil
		}
		n.Touch(now)
		return e.store.UpdateNote(ctx, n)
	}, noteID)
	if err != nil {
		return nil, err
	}

	for _, ev := range events {
		e.plugins.EmitNoteStatusChanged(ctx, ev)
	}
	return n, nil
}
