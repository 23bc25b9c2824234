package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

type Job func(ctx context.Context) error

var ErrPoolStopped = errors.New("working pool stopped")

type WorkingPool struct {
	Name       string
	NumWorkers int
	jobChan    chan Job
	stopped    chan struct{}
}

func NewWorkingPool(name string, numWorkers int, queueSize int) *WorkingPool {
	return &WorkingPool{
		Name:       name,
		NumWorkers: max(numWorkers, 1),
		jobChan:    make(chan Job, max(queueSize, 0)),
		stopped:    make(chan struct{}),
	}
}

// SubmitJob queues a job, blocking while the queue is full.
func (p *WorkingPool) SubmitJob(ctx context.Context, job Job) error {
	select {
	case <-p.stopped:
		return ErrPoolStopped
	default:
	}

	select {
	case p.jobChan <- job:
		return nil
	case <-p.stopped:
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start runs the workers until ctx is canceled, then waits for the jobs in
// flight to return.
func (p *WorkingPool) Start(ctx context.Context, managerWg *sync.WaitGroup) {
	defer managerWg.Done()

	var workerWg sync.WaitGroup
	for i := range p.NumWorkers {
		workerWg.Add(1)
		go p.worker(ctx, &workerWg, i+1)
	}

	<-ctx.Done()
	log.Printf("[WorkingPool %s] Shutdown signaled.\n", p.Name)
	close(p.stopped)

	workerWg.Wait()
	log.Printf("[WorkingPool %s] All workers stopped.\n", p.Name)
}

func (p *WorkingPool) worker(ctx context.Context, wg *sync.WaitGroup, id int) {
	defer wg.Done()
	log.Printf("[WorkingPool-Worker %d] Started and waiting for jobs.\n", id)

	for {
		select {
		case job := <-p.jobChan:
			p.safeExecution(ctx, job, id)
		case <-ctx.Done():
			log.Printf("[WorkingPool-Worker %d] Context canceled. Exiting.\n", id)
			return
		}
	}
}

func (p *WorkingPool) safeExecution(ctx context.Context, job Job, workerID int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WorkingPool-Worker %d] FATAL: Panic recovered in job: %v\n", workerID, r)
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	if err = job(ctx); err != nil {
		log.Printf("[WorkingPool-Worker %d] Error executing job: %s.\n", workerID, err)
	}
	return err
}
