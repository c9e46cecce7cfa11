package pipeline

import (
	"context"
	"runtime"
	"sync"

	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"
)

// sequentialThreshold is the batch size below which workers are not started.
const sequentialThreshold = 4

// Input is one document of a batch.
type Input struct {
	Name string
	Data []byte
	MIME string
}

// Result pairs an input with its ledger or its fatal error.
type Result struct {
	Name   string
	Ledger *models.Ledger
	Err    error
}

// ProcessBatch processes inputs and returns one result per input, in input
// order. Inputs not started before ctx ends carry the cancellation error.
func (e *Engine) ProcessBatch(ctx context.Context, inputs []Input) []Result {
	if len(inputs) < sequentialThreshold || e.workerCount() == 1 {
		return e.processSequential(ctx, inputs)
	}
	return e.processConcurrent(ctx, inputs)
}

func (e *Engine) workerCount() int {
	if e.workers > 0 {
		return e.workers
	}
	return runtime.NumCPU()
}

func (e *Engine) processOne(ctx context.Context, in Input) Result {
	if err := ctx.Err(); err != nil {
		return Result{Name: in.Name, Err: e.fail(ctx, err)}
	}
	ledger, err := e.Process(ctx, in.Data, in.MIME)
	return Result{Name: in.Name, Ledger: ledger, Err: err}
}

func (e *Engine) processSequential(ctx context.Context, inputs []Input) []Result {
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		results = append(results, e.processOne(ctx, in))
	}
	return results
}

// indexedInput preserves the position of an input across workers.
type indexedInput struct {
	index int
	input Input
}

func (e *Engine) processConcurrent(ctx context.Context, inputs []Input) []Result {
	workers := e.workerCount()
	if workers > len(inputs) {
		workers = len(inputs)
	}

	work := make(chan indexedInput, workers)
	results := make([]Result, len(inputs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				results[item.index] = e.processOne(ctx, item.input)
			}
		}()
	}

	for i, in := range inputs {
		work <- indexedInput{index: i, input: in}
	}
	close(work)
	wg.Wait()

	e.logger.Debug("Concurrent batch completed",
		logging.F(logging.FieldCount, len(inputs)),
		logging.F(logging.FieldWorkers, workers))
	return results
}
