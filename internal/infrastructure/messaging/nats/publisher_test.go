package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GanizaniSitara/controls-ux/internal/application/dto"
	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

type published struct {
	subject string
	data    []byte
}

// fakeJetStream records async publishes. Methods the publisher does not use
// fall through to the nil embedded interface.
type fakeJetStream struct {
	nats.JetStreamContext

	published  []published
	publishErr error
	streams    map[string]*nats.StreamConfig
	infoErr    error
	addErr     error
	complete   chan struct{}
}

func newFakeJetStream() *fakeJetStream {
	done := make(chan struct{})
	close(done)
	return &fakeJetStream{streams: map[string]*nats.StreamConfig{}, complete: done}
}

func (f *fakeJetStream) PublishAsync(subject string, data []byte, _ ...nats.PubOpt) (nats.PubAckFuture, error) {
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	f.published = append(f.published, published{subject: subject, data: data})
	return nil, nil
}

func (f *fakeJetStream) PublishAsyncComplete() <-chan struct{} { return f.complete }

func (f *fakeJetStream) StreamInfo(stream string, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	cfg, ok := f.streams[stream]
	if !ok {
		return nil, nats.ErrStreamNotFound
	}
	return &nats.StreamInfo{Config: *cfg}, nil
}

func (f *fakeJetStream) AddStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.streams[cfg.Name] = cfg
	return &nats.StreamInfo{Config: *cfg}, nil
}

func TestPublisher_PublishEventEncodesJSON(t *testing.T) {
	js := newFakeJetStream()
	p := newPublisher(js, func() {}, logger.New("error"))

	event := dto.RefreshEventDTO{SnapshotID: "snap-1", Applications: 3, Providers: []string{"inventory"}}
	require.NoError(t, p.PublishEvent(context.Background(), port.SubjectSnapshotRefreshed, event))

	require.Len(t, js.published, 1)
	assert.Equal(t, port.SubjectSnapshotRefreshed, js.published[0].subject)

	var decoded dto.RefreshEventDTO
	require.NoError(t, json.Unmarshal(js.published[0].data, &decoded))
	assert.Equal(t, "snap-1", decoded.SnapshotID)
	assert.Equal(t, 3, decoded.Applications)
}

func TestPublisher_PublishEventErrors(t *testing.T) {
	js := newFakeJetStream()
	js.publishErr = errors.New("no responders")
	p := newPublisher(js, func() {}, logger.New("error"))

	err := p.PublishEvent(context.Background(), port.SubjectRefreshFailed, map[string]string{"error": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no responders")

	err = p.PublishEvent(context.Background(), port.SubjectRefreshFailed, make(chan int))
	assert.ErrorContains(t, err, "failed to marshal event")
}

func TestPublisher_PublishEventHonoursCancelledContext(t *testing.T) {
	js := newFakeJetStream()
	p := newPublisher(js, func() {}, logger.New("error"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.PublishEvent(ctx, port.SubjectSnapshotRefreshed, struct{}{}), context.Canceled)
	assert.Empty(t, js.published)
}

func TestEnsureStream(t *testing.T) {
	js := newFakeJetStream()

	require.NoError(t, ensureStream(js, DefaultStream))
	require.Contains(t, js.streams, DefaultStream)
	assert.Equal(t, []string{"controls.>"}, js.streams[DefaultStream].Subjects)

	js.addErr = errors.New("should not be called")
	assert.NoError(t, ensureStream(js, DefaultStream), "existing stream is reused")

	js.infoErr = errors.New("timeout")
	assert.ErrorContains(t, ensureStream(js, "OTHER"), "failed to look up stream OTHER")
}

func TestPublisher_CloseWaitsForAcksOnce(t *testing.T) {
	js := newFakeJetStream()
	js.complete = make(chan struct{})
	closed := 0
	p := newPublisher(js, func() { closed++ }, logger.New("error"))
	p.ackTimeout = 10 * time.Millisecond

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, closed)
}
