package signalman

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClose(t *testing.T) {
	var order []string

	RegisterFunc("b_kafka", func() error {
		order = append(order, "b_kafka")
		return fmt.Errorf("broker gone")
	})
	RegisterFunc("a_db", func() error {
		order = append(order, "a_db")
		return nil
	})

	err := Close()
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "b_kafka")
	assert.Equal(t, []string{"a_db", "b_kafka"}, order)

	// handlers only run once
	assert.Nil(t, Close())
	assert.Len(t, order, 2)
}

func TestStartCancelledBySignal(t *testing.T) {
	ctx, cancel := Start(context.Background())
	defer cancel()

	require.Nil(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled by SIGTERM")
	}
}

func TestStartCancelledByParent(t *testing.T) {
	parent, stop := context.WithCancel(context.Background())
	ctx, cancel := Start(parent)
	defer cancel()

	stop()

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled with its parent")
	}
}
