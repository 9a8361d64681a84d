package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublisherNilConnIsNoOp(t *testing.T) {
	p := NewPublisher(nil, nil)

	assert.NotPanics(t, func() {
		p.PublishIterationStarted(context.Background(), 0)
		p.PublishBatchApplied(context.Background(), 3)
		p.PublishBatchBlocked(context.Background(), 1)
		p.PublishDiagnosticsError(context.Background(), []string{"boom"})
	})
}

func TestNilPublisherIsNoOp(t *testing.T) {
	var p *Publisher
	assert.NotPanics(t, func() {
		p.PublishIterationStarted(context.Background(), 0)
	})
}
