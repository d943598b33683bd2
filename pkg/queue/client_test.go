package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Scheme:          "amqp",
		Username:        "test",
		Password:        "test",
		Host:            "localhost",
		Port:            5672,
		Vhost:           "/",
		Queue:           "jobs",
		QueueOptions:    DefaultQueueOptions(),
		ExchangeOptions: DefaultExchangeOptions(),
	}
}

// newTestClient wires a client to a mocked channel, skipping Connect.
func newTestClient(cfg Config, ch channel, opts ...ConnectionOption) *Client {
	client := NewClient(cfg, opts...)
	client.channel = ch

	return client
}

func expectTopology(m *MockChannel, queueName, exchangeName string) {
	m.On("exchangeDeclare", exchangeName, "direct", false, true, false, amqp.Table(nil)).Return(nil)
	m.On("queueDeclare", queueName, false, true, false, false, amqp.Table(nil)).Return(amqp.Queue{Name: queueName}, nil)
	m.On("queueBind", queueName, queueName, exchangeName, amqp.Table(nil)).Return(nil)
}

func TestClient_New(t *testing.T) {
	t.Parallel()

	config := testConfig()

	client := NewClient(config)

	assert.NotNil(t, client)
	assert.Equal(t, config, client.cfg)
	assert.NotNil(t, client.cache)
	assert.Nil(t, client.breaker)
	assert.False(t, client.IsConnected())
}

func TestClient_Options(t *testing.T) {
	t.Parallel()

	mockLogger := &MockLogger{}
	overrides := OptionsMap{}

	client := NewClient(testConfig(),
		WithLogger(mockLogger),
		WithOptionsProvider(overrides),
		WithCircuitBreaker(gobreaker.Settings{Name: "rabbitmq"}),
	)

	assert.Equal(t, mockLogger, client.logger)
	assert.NotNil(t, client.overrides)
	assert.NotNil(t, client.breaker)
}

func TestClient_IsConnected(t *testing.T) {
	t.Parallel()

	client := newTestClient(testConfig(), &MockChannel{})
	assert.True(t, client.IsConnected())

	client.closed = true
	assert.False(t, client.IsConnected())
}

func TestClient_EnqueueDeclaresTopologyOnce(t *testing.T) {
	t.Parallel()

	mockChannel := &MockChannel{}
	expectTopology(mockChannel, "jobs", "jobs")
	mockChannel.On("publish", "jobs", "jobs", mock.AnythingOfType("amqp091.Publishing")).Return(nil)

	client := newTestClient(testConfig(), mockChannel)

	for range 3 {
		_, err := client.Enqueue(context.Background(), "send_email", map[string]string{"to": "a@b.c"})
		require.NoError(t, err)
	}

	mockChannel.AssertNumberOfCalls(t, "exchangeDeclare", 1)
	mockChannel.AssertNumberOfCalls(t, "queueDeclare", 1)
	mockChannel.AssertNumberOfCalls(t, "queueBind", 1)
	mockChannel.AssertNumberOfCalls(t, "publish", 3)
}

func TestClient_EnqueueMessageProperties(t *testing.T) {
	t.Parallel()

	var captured amqp.Publishing

	mockChannel := &MockChannel{}
	expectTopology(mockChannel, "jobs", "jobs")
	mockChannel.On("publish", "jobs", "jobs", mock.AnythingOfType("amqp091.Publishing")).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(amqp.Publishing)
		}).
		Return(nil)

	client := newTestClient(testConfig(), mockChannel)

	id, err := client.Enqueue(context.Background(), "send_email", map[string]string{"to": "a@b.c"})
	require.NoError(t, err)

	assert.Equal(t, "application/json", captured.ContentType)
	assert.Equal(t, uint8(amqp.Persistent), captured.DeliveryMode)
	assert.NotEmpty(t, captured.CorrelationId)
	assert.Equal(t, id, captured.CorrelationId)
	assert.False(t, captured.Timestamp.IsZero())

	var payload Payload
	require.NoError(t, json.Unmarshal(captured.Body, &payload))
	assert.NotEmpty(t, payload.ID)
	assert.Equal(t, "send_email", payload.Job)
	assert.Equal(t, 0, payload.Attempts)

	var data map[string]string
	require.NoError(t, payload.Unmarshal(&data))
	assert.Equal(t, "a@b.c", data["to"])
}

func TestClient_CorrelationIDGenerated(t *testing.T) {
	t.Parallel()

	mockChannel := &MockChannel{}
	expectTopology(mockChannel, "jobs", "jobs")
	mockChannel.On("publish", "jobs", "jobs", mock.AnythingOfType("amqp091.Publishing")).Return(nil)

	client := newTestClient(testConfig(), mockChannel)

	first, err := client.Enqueue(context.Background(), "send_email", nil)
	require.NoError(t, err)

	second, err := client.Enqueue(context.Background(), "send_email", nil)
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEmpty(t, second)
	assert.NotEqual(t, first, second)
}

func TestClient_CorrelationIDOverride(t *testing.T) {
	t.Parallel()

	mockChannel := &MockChannel{}
	expectTopology(mockChannel, "jobs", "jobs")
	mockChannel.On("publish", "jobs", "jobs", mock.AnythingOfType("amqp091.Publishing")).Return(nil)

	client := newTestClient(testConfig(), mockChannel)
	client.SetCorrelationID("corr-42")

	// The override persists until changed again.
	for range 2 {
		id, err := client.Enqueue(context.Background(), "send_email", nil)
		require.NoError(t, err)
		assert.Equal(t, "corr-42", id)
	}

	perSend, err := client.Enqueue(context.Background(), "send_email", nil, WithCorrelationID("corr-43"))
	require.NoError(t, err)
	assert.Equal(t, "corr-43", perSend)
}

func TestClient_EnqueueDelayed(t *testing.T) {
	t.Parallel()

	var captured amqp.Publishing

	mockChannel := &MockChannel{}
	expectTopology(mockChannel, "jobs", "jobs")
	mockChannel.On("publish", "jobs", "jobs", mock.AnythingOfType("amqp091.Publishing")).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(amqp.Publishing)
		}).
		Return(nil)

	client := newTestClient(testConfig(), mockChannel)

	_, err := client.EnqueueDelayed(context.Background(), 30*time.Second, "send_email", nil)
	require.NoError(t, err)

	require.NotNil(t, captured.Headers)
	assert.Equal(t, int64(30000), captured.Headers["x-delay"])
}

func TestClient_EnqueueAtPast(t *testing.T) {
	t.Parallel()

	var captured amqp.Publishing

	mockChannel := &MockChannel{}
	expectTopology(mockChannel, "jobs", "jobs")
	mockChannel.On("publish", "jobs", "jobs", mock.AnythingOfType("amqp091.Publishing")).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(amqp.Publishing)
		}).
		Return(nil)

	client := newTestClient(testConfig(), mockChannel)

	_, err := client.EnqueueAt(context.Background(), time.Now().Add(-time.Hour), "send_email", nil)
	require.NoError(t, err)

	// A time in the past enqueues immediately, without a delay header.
	assert.Nil(t, captured.Headers)
}

func TestClient_Release(t *testing.T) {
	t.Parallel()

	var captured amqp.Publishing

	mockChannel := &MockChannel{}
	expectTopology(mockChannel, "jobs", "jobs")
	mockChannel.On("publish", "jobs", "jobs", mock.AnythingOfType("amqp091.Publishing")).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(amqp.Publishing)
		}).
		Return(nil)

	client := newTestClient(testConfig(), mockChannel)

	payload := Payload{ID: "id-1", Job: "send_email", Data: json.RawMessage(`{}`)}

	_, err := client.Release(context.Background(), 30*time.Second, payload, "jobs", 2)
	require.NoError(t, err)

	require.NotNil(t, captured.Headers)
	assert.Equal(t, "2", captured.Headers["x-retry-count"])
	assert.Equal(t, int64(30000), captured.Headers["x-delay"])

	var released Payload
	require.NoError(t, json.Unmarshal(captured.Body, &released))
	assert.Equal(t, "id-1", released.ID)
	assert.Equal(t, 2, released.Attempts)
}

func TestClient_RoutingKeyOverride(t *testing.T) {
	t.Parallel()

	mockChannel := &MockChannel{}
	expectTopology(mockChannel, "jobs", "jobs")
	mockChannel.On("publish", "jobs", "high", mock.AnythingOfType("amqp091.Publishing")).Return(nil)

	client := newTestClient(testConfig(), mockChannel)

	_, err := client.Enqueue(context.Background(), "send_email", nil, WithRoutingKey("high"))
	require.NoError(t, err)

	mockChannel.AssertExpectations(t)
}

func TestClient_SharedExchange(t *testing.T) {
	t.Parallel()

	config := testConfig()
	config.ExchangeOptions.Name = "work"

	mockChannel := &MockChannel{}
	mockChannel.On("exchangeDeclare", "work", "direct", false, true, false, amqp.Table(nil)).Return(nil)
	mockChannel.On("queueDeclare", "jobs", false, true, false, false, amqp.Table(nil)).Return(amqp.Queue{Name: "jobs"}, nil)
	mockChannel.On("queueBind", "jobs", "jobs", "work", amqp.Table(nil)).Return(nil)
	mockChannel.On("publish", "work", "jobs", mock.AnythingOfType("amqp091.Publishing")).Return(nil)

	client := newTestClient(config, mockChannel)

	_, err := client.Enqueue(context.Background(), "send_email", nil)
	require.NoError(t, err)

	mockChannel.AssertExpectations(t)
}

func TestClient_QueueOverrides(t *testing.T) {
	t.Parallel()

	overrides := OptionsMap{
		OverrideKey("notifications"): {Durable: false, Declare: true, Bind: false},
	}

	mockChannel := &MockChannel{}
	mockChannel.On("exchangeDeclare", "notifications", "direct", false, true, false, amqp.Table(nil)).Return(nil)
	mockChannel.On("queueDeclare", "notifications", false, false, false, false, amqp.Table(nil)).Return(amqp.Queue{Name: "notifications"}, nil)
	mockChannel.On("publish", "notifications", "notifications", mock.AnythingOfType("amqp091.Publishing")).Return(nil)

	client := newTestClient(testConfig(), mockChannel, WithOptionsProvider(overrides))

	payload, err := NewPayload("notify", nil)
	require.NoError(t, err)

	_, err = client.EnqueueRaw(context.Background(), payload, "notifications")
	require.NoError(t, err)

	mockChannel.AssertExpectations(t)
	mockChannel.AssertNotCalled(t, "queueBind", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClient_DeclareDisabled(t *testing.T) {
	t.Parallel()

	config := testConfig()
	config.QueueOptions.Declare = false
	config.ExchangeOptions.Declare = false

	mockChannel := &MockChannel{}
	mockChannel.On("publish", "jobs", "jobs", mock.AnythingOfType("amqp091.Publishing")).Return(nil)

	client := newTestClient(config, mockChannel)

	_, err := client.Enqueue(context.Background(), "send_email", nil)
	require.NoError(t, err)

	mockChannel.AssertExpectations(t)
	mockChannel.AssertNotCalled(t, "exchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockChannel.AssertNotCalled(t, "queueDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClient_TopologyConflict(t *testing.T) {
	t.Parallel()

	conflictErr := &amqp.Error{Code: amqp.PreconditionFailed, Reason: "inequivalent arg 'durable'"}

	mockChannel := &MockChannel{}
	mockChannel.On("exchangeDeclare", "jobs", "direct", false, true, false, amqp.Table(nil)).Return(nil)
	mockChannel.On("queueDeclare", "jobs", false, true, false, false, amqp.Table(nil)).Return(amqp.Queue{}, conflictErr)

	client := newTestClient(testConfig(), mockChannel)

	_, err := client.Enqueue(context.Background(), "send_email", nil)

	var conflict *TopologyConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "queue", conflict.Entity)
	assert.Equal(t, "jobs", conflict.Name)
	assert.ErrorIs(t, err, conflictErr)
}

func TestClient_TopologyConflictExchange(t *testing.T) {
	t.Parallel()

	conflictErr := &amqp.Error{Code: amqp.PreconditionFailed, Reason: "inequivalent arg 'type'"}

	mockChannel := &MockChannel{}
	mockChannel.On("exchangeDeclare", "jobs", "direct", false, true, false, amqp.Table(nil)).Return(conflictErr)

	client := newTestClient(testConfig(), mockChannel)

	_, err := client.Size(context.Background(), "")

	var conflict *TopologyConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "exchange", conflict.Entity)
}

func TestClient_RecoverThrottles(t *testing.T) {
	t.Parallel()

	brokerErr := errors.New("connection reset by peer")

	mockChannel := &MockChannel{}
	expectTopology(mockChannel, "jobs", "jobs")
	mockChannel.On("publish", "jobs", "jobs", mock.AnythingOfType("amqp091.Publishing")).Return(brokerErr)

	var slept []time.Duration

	client := newTestClient(testConfig(), mockChannel)
	client.sleep = func(d time.Duration) { slept = append(slept, d) }

	id, err := client.Enqueue(context.Background(), "send_email", nil)

	assert.NoError(t, err)
	assert.Empty(t, id)
	assert.Equal(t, []time.Duration{5 * time.Second}, slept)
}

func TestClient_RecoverCustomSleep(t *testing.T) {
	t.Parallel()

	config := testConfig()
	config.SleepOnError = time.Second

	mockChannel := &MockChannel{}
	expectTopology(mockChannel, "jobs", "jobs")
	mockChannel.On("inspect", "jobs").Return(amqp.Queue{}, errors.New("channel closed"))

	var slept []time.Duration

	client := newTestClient(config, mockChannel)
	client.sleep = func(d time.Duration) { slept = append(slept, d) }

	size, err := client.Size(context.Background(), "")

	assert.NoError(t, err)
	assert.Zero(t, size)
	assert.Equal(t, []time.Duration{time.Second}, slept)
}

func TestClient_RecoverFailFast(t *testing.T) {
	t.Parallel()

	config := testConfig()
	config.SleepOnError = SleepDisabled

	brokerErr := errors.New("connection reset by peer")

	mockChannel := &MockChannel{}
	expectTopology(mockChannel, "jobs", "jobs")
	mockChannel.On("publish", "jobs", "jobs", mock.AnythingOfType("amqp091.Publishing")).Return(brokerErr)

	client := newTestClient(config, mockChannel)
	client.sleep = func(time.Duration) { t.Fatal("sleep must not be called in fail-fast mode") }

	_, err := client.Enqueue(context.Background(), "send_email", nil)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "enqueue", connErr.Action)
	assert.ErrorIs(t, err, brokerErr)
}

func TestClient_RecoveryHook(t *testing.T) {
	t.Parallel()

	brokerErr := errors.New("connection reset by peer")

	mockChannel := &MockChannel{}
	expectTopology(mockChannel, "jobs", "jobs")
	mockChannel.On("publish", "jobs", "jobs", mock.AnythingOfType("amqp091.Publishing")).Return(brokerErr)

	var recovered []string

	client := newTestClient(testConfig(), mockChannel, WithRecoveryHook(func(action string) {
		recovered = append(recovered, action)
	}))
	client.sleep = func(time.Duration) {}

	_, err := client.Enqueue(context.Background(), "send_email", nil)

	assert.NoError(t, err)
	assert.Equal(t, []string{"enqueue"}, recovered)
}

func TestClient_RecoveryHookSkipsConflicts(t *testing.T) {
	t.Parallel()

	conflictErr := &amqp.Error{Code: amqp.PreconditionFailed, Reason: "PRECONDITION_FAILED"}

	mockChannel := &MockChannel{}
	mockChannel.On("exchangeDeclare", "jobs", "direct", false, true, false, amqp.Table(nil)).Return(conflictErr)

	client := newTestClient(testConfig(), mockChannel, WithRecoveryHook(func(string) {
		t.Fatal("topology conflicts must not trigger the recovery hook")
	}))

	_, err := client.Enqueue(context.Background(), "send_email", nil)

	var conflict *TopologyConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestClient_NotConnected(t *testing.T) {
	t.Parallel()

	config := testConfig()
	config.SleepOnError = SleepDisabled

	client := NewClient(config)

	_, err := client.Enqueue(context.Background(), "send_email", nil)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_DequeueOnceEmpty(t *testing.T) {
	t.Parallel()

	mockChannel := &MockChannel{}
	expectTopology(mockChannel, "jobs", "jobs")
	mockChannel.On("get", "jobs").Return(amqp.Delivery{}, false, nil)

	client := newTestClient(testConfig(), mockChannel)

	job, err := client.DequeueOnce(context.Background(), "")

	assert.NoError(t, err)
	assert.Nil(t, job)
}

func TestClient_DequeueOnce(t *testing.T) {
	t.Parallel()

	body, err := json.Marshal(Payload{ID: "id-1", Job: "send_email", Data: json.RawMessage(`{"to":"a@b.c"}`)})
	require.NoError(t, err)

	d := amqp.Delivery{
		Body:    body,
		Headers: amqp.Table{"x-retry-count": "3"},
	}

	mockChannel := &MockChannel{}
	expectTopology(mockChannel, "jobs", "jobs")
	mockChannel.On("get", "jobs").Return(d, true, nil)

	client := newTestClient(testConfig(), mockChannel)

	job, err := client.DequeueOnce(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, job)

	assert.Equal(t, "id-1", job.ID())
	assert.Equal(t, "send_email", job.Name())
	assert.Equal(t, 3, job.Attempts())
	assert.Equal(t, body, job.Body())
}

func TestClient_DequeueOnceMalformed(t *testing.T) {
	t.Parallel()

	d := amqp.Delivery{Body: []byte("not a payload")}

	mockChannel := &MockChannel{}
	expectTopology(mockChannel, "jobs", "jobs")
	mockChannel.On("get", "jobs").Return(d, true, nil)

	client := newTestClient(testConfig(), mockChannel)

	job, err := client.DequeueOnce(context.Background(), "")

	assert.NoError(t, err)
	assert.Nil(t, job)
}

func TestClient_Size(t *testing.T) {
	t.Parallel()

	mockChannel := &MockChannel{}
	expectTopology(mockChannel, "jobs", "jobs")
	mockChannel.On("inspect", "jobs").Return(amqp.Queue{Name: "jobs", Messages: 42}, nil)

	client := newTestClient(testConfig(), mockChannel)

	size, err := client.Size(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 42, size)
}

func TestClient_CircuitBreaker(t *testing.T) {
	t.Parallel()

	config := testConfig()
	config.SleepOnError = SleepDisabled
	config.QueueOptions.Declare = false
	config.ExchangeOptions.Declare = false

	brokerErr := errors.New("connection reset by peer")

	mockChannel := &MockChannel{}
	mockChannel.On("publish", "jobs", "jobs", mock.AnythingOfType("amqp091.Publishing")).Return(brokerErr)

	client := newTestClient(config, mockChannel, WithCircuitBreaker(gobreaker.Settings{
		Name: "rabbitmq",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	}))

	for range 2 {
		_, err := client.Enqueue(context.Background(), "send_email", nil)
		require.Error(t, err)
	}

	_, err := client.Enqueue(context.Background(), "send_email", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	// The open breaker fails fast without touching the broker.
	mockChannel.AssertNumberOfCalls(t, "publish", 2)
}

// Mock implementations for testing

type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug() LogEvent { return noopLogEvent{} }
func (m *MockLogger) Info() LogEvent  { return noopLogEvent{} }
func (m *MockLogger) Warn() LogEvent  { return noopLogEvent{} }
func (m *MockLogger) Error() LogEvent { return noopLogEvent{} }

type noopLogEvent struct{}

func (noopLogEvent) Msg(string)                    {}
func (e noopLogEvent) Err(error) LogEvent          { return e }
func (e noopLogEvent) Str(string, string) LogEvent { return e }
func (e noopLogEvent) Int(string, int) LogEvent    { return e }

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockChannel) exchangeDeclare(name, kind string, passive, durable, autoDelete bool, args amqp.Table) error {
	callArgs := m.Called(name, kind, passive, durable, autoDelete, args)
	return callArgs.Error(0)
}

func (m *MockChannel) queueDeclare(name string, passive, durable, exclusive, autoDelete bool, args amqp.Table) (amqp.Queue, error) {
	callArgs := m.Called(name, passive, durable, exclusive, autoDelete, args)
	return callArgs.Get(0).(amqp.Queue), callArgs.Error(1)
}

func (m *MockChannel) queueBind(name, key, exchange string, args amqp.Table) error {
	callArgs := m.Called(name, key, exchange, args)
	return callArgs.Error(0)
}

func (m *MockChannel) publish(exchange, key string, msg amqp.Publishing) error {
	callArgs := m.Called(exchange, key, msg)
	return callArgs.Error(0)
}

func (m *MockChannel) get(queue string) (amqp.Delivery, bool, error) {
	callArgs := m.Called(queue)
	return callArgs.Get(0).(amqp.Delivery), callArgs.Bool(1), callArgs.Error(2)
}

func (m *MockChannel) inspect(queue string) (amqp.Queue, error) {
	callArgs := m.Called(queue)
	return callArgs.Get(0).(amqp.Queue), callArgs.Error(1)
}
