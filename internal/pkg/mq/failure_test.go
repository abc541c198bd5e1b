// internal/pkg/mq/failure_test.go
package mq

import (
	"context"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeForwarder struct {
	writes []struct {
		Topic string
		Msg   kafka.Message
	}
	err error
}

func (f *fakeForwarder) Forward(_ context.Context, topic string, msg kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, struct {
		Topic string
		Msg   kafka.Message
	}{topic, msg})
	return nil
}

func attemptsOf(t *testing.T, msg kafka.Message) int {
	t.Helper()
	for _, h := range msg.Headers {
		if h.Key == attemptsHeader {
			n, err := strconv.Atoi(string(h.Value))
			require.NoError(t, err)
			return n
		}
	}
	t.Fatal("message carries no attempts header")
	return 0
}

type deadEndError struct{ msg string }

func (e *deadEndError) Error() string     { return e.msg }
func (e *deadEndError) Unretryable() bool { return true }

func TestFailureHandlerRequeuesWithIncrementedAttempts(t *testing.T) {
	ctx := context.Background()
	bus := &fakeForwarder{}
	fh := NewFailureHandler(bus, 3)

	msg := kafka.Message{Key: []byte("order-1"), Value: []byte(`{}`)}
	err := fh.Handle(ctx, "payment.succeeded", msg, errors.New("db timeout"))
	require.NoError(t, err)

	require.Len(t, bus.writes, 1)
	assert.Equal(t, "payment.succeeded", bus.writes[0].Topic)
	assert.Equal(t, 1, attemptsOf(t, bus.writes[0].Msg))
	assert.Equal(t, msg.Key, bus.writes[0].Msg.Key)
}

func TestFailureHandlerMovesExhaustedMessageToDeadLetter(t *testing.T) {
	ctx := context.Background()
	bus := &fakeForwarder{}
	fh := NewFailureHandler(bus, 3)

	msg := kafka.Message{
		Key:     []byte("order-1"),
		Value:   []byte(`{}`),
		Headers: []kafka.Header{{Key: attemptsHeader, Value: []byte("2")}},
	}
	err := fh.Handle(ctx, "payment.succeeded", msg, errors.New("db timeout"))
	require.NoError(t, err)

	require.Len(t, bus.writes, 1)
	assert.Equal(t, "payment.succeeded.dlt", bus.writes[0].Topic)
	assert.Equal(t, 3, attemptsOf(t, bus.writes[0].Msg))
}

func TestFailureHandlerSendsUnretryableErrorStraightToDeadLetter(t *testing.T) {
	ctx := context.Background()
	bus := &fakeForwarder{}
	fh := NewFailureHandler(bus, 5)

	cause := errors.Wrap(&deadEndError{msg: "unknown payment type"}, "handle event")
	err := fh.Handle(ctx, "order.confirmed", kafka.Message{Value: []byte(`{}`)}, cause)
	require.NoError(t, err)

	require.Len(t, bus.writes, 1)
	assert.Equal(t, "order.confirmed.dlt", bus.writes[0].Topic)
}

// 回写和死信都失败时 Handle 必须报错，调用方据此跳过 commit，
// 消息留在 broker 里等待重投。
func TestFailureHandlerReportsFailedHandOff(t *testing.T) {
	ctx := context.Background()
	bus := &fakeForwarder{err: errors.New("all brokers down")}
	fh := NewFailureHandler(bus, 3)

	err := fh.Handle(ctx, "payment.succeeded", kafka.Message{Value: []byte(`{}`)}, errors.New("db timeout"))
	require.Error(t, err)

	// 死信路径同样不允许静默丢弃
	exhausted := kafka.Message{Headers: []kafka.Header{{Key: attemptsHeader, Value: []byte("9")}}}
	err = fh.Handle(ctx, "payment.succeeded", exhausted, errors.New("db timeout"))
	require.Error(t, err)
}
