package workerpool

import (
	"context"
)

// MaxWorkersCount - размер пула, если New передан неположительный размер.
const MaxWorkersCount = 10

type Worker struct{}

// Pool ограничивает число одновременно работающих обработчиков. Перед Handle
// нужно вызвать Create, Wait ждет возврата всех занятых воркеров.
type Pool[Data any] struct {
	size    int
	pool    chan *Worker
	handler func(ctx context.Context, msg Data) error
}

func New[Data any](size int, handler func(ctx context.Context, msg Data) error) *Pool[Data] {
	if size <= 0 {
		size = MaxWorkersCount
	}

	return &Pool[Data]{
		size:    size,
		pool:    make(chan *Worker, size),
		handler: handler,
	}
}

func (p *Pool[Data]) Size() int {
	return p.size
}

func (p *Pool[Data]) Create() {
	for range p.size {
		p.pool <- &Worker{}
	}
}

// Handle ждет свободного воркера либо завершения ctx.
func (p *Pool[Data]) Handle(ctx context.Context, data Data) error {
	var w *Worker

	select {
	case w = <-p.pool:
	case <-ctx.Done():
		return ctx.Err()
	}

	defer func() { p.pool <- w }()

	return p.handler(ctx, data)
}

func (p *Pool[Data]) Wait() {
	for range p.size {
		<-p.pool
	}
}
