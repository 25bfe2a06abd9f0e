package fiscal

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/jhoicas/vms-fiscal/internal/application/dto"
	"github.com/jhoicas/vms-fiscal/internal/domain"
)

// BatchSubmitter envía varios documentos en paralelo con concurrencia acotada.
// Cada documento conserva su propio lock; un fallo no detiene al resto.
type BatchSubmitter struct {
	submissions *SubmissionService
	concurrency int
}

// NewBatchSubmitter construye el envío por lote; concurrency < 1 equivale a 1.
func NewBatchSubmitter(submissions *SubmissionService, concurrency int) *BatchSubmitter {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchSubmitter{submissions: submissions, concurrency: concurrency}
}

// SubmitBatch envía los documentos como originales. Los resultados respetan el
// orden de entrada.
func (b *BatchSubmitter) SubmitBatch(ctx context.Context, req dto.SubmitBatchRequest) (*dto.SubmitBatchResponse, error) {
	if err := dto.ValidateRequest(req); err != nil {
		return nil, err
	}

	results := make([]dto.BatchItemResult, len(req.DocumentIDs))
	p := pool.New().WithMaxGoroutines(b.concurrency)
	for i, id := range req.DocumentIDs {
		p.Go(func() {
			res, err := b.submissions.Submit(ctx, id)
			item := dto.BatchItemResult{DocumentID: id, Result: res}
			if err != nil {
				item.Code = domain.ErrorCode(err)
				item.Error = err.Error()
			}
			results[i] = item
		})
	}
	p.Wait()

	out := &dto.SubmitBatchResponse{Results: results}
	for _, r := range results {
		if r.Error == "" {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	return out, nil
}
