package vms

import (
	"cmp"
	"slices"

	"github.com/samber/lo"

	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
)

// ReferenceChain cuotas de anticipo (ventas) de una misma orden, sin anuladas,
// ordenadas por (fecha de emisión, orden de creación).
type ReferenceChain struct {
	docs []*entity.FiscalDocument
}

// NewReferenceChain filtra y ordena los documentos de una orden.
// Notas crédito y documentos anulados no forman parte de la cadena.
func NewReferenceChain(orderDocs []*entity.FiscalDocument) ReferenceChain {
	docs := lo.Filter(orderDocs, func(d *entity.FiscalDocument, _ int) bool {
		return d != nil && d.IsAdvance() && !d.IsRefund() && !d.IsCancelled()
	})
	slices.SortStableFunc(docs, func(a, b *entity.FiscalDocument) int {
		if c := a.IssuedAt.Compare(b.IssuedAt); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Sequence, b.Sequence); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return ReferenceChain{docs: docs}
}

// Len cantidad de cuotas en la cadena.
func (c ReferenceChain) Len() int { return len(c.docs) }

// Documents copia de la cadena ordenada.
func (c ReferenceChain) Documents() []*entity.FiscalDocument {
	return slices.Clone(c.docs)
}

// Position posición 1-based del documento; 0 si no pertenece a la cadena.
func (c ReferenceChain) Position(documentID string) int {
	for i, d := range c.docs {
		if d.ID == documentID {
			return i + 1
		}
	}
	return 0
}

// Ordinal número de cuota del documento; 1 si no está en la cadena.
func (c ReferenceChain) Ordinal(documentID string) int {
	if pos := c.Position(documentID); pos > 0 {
		return pos
	}
	return 1
}

// Previous cuota inmediatamente anterior; nil para la primera o si no pertenece.
func (c ReferenceChain) Previous(documentID string) *entity.FiscalDocument {
	pos := c.Position(documentID)
	if pos <= 1 {
		return nil
	}
	return c.docs[pos-2]
}
