package domain_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-rtps/ddserror"
	"github.com/joeycumines/go-rtps/domain"
	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/qos"
	"github.com/stretchr/testify/require"
)

func newEnabledParticipant(t *testing.T, domainID uint32) *domain.Participant {
	t.Helper()
	p, err := domain.NewDomainParticipant(domainID)
	require.NoError(t, err)
	require.NoError(t, p.Enable())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Close(ctx)
	})
	return p
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

// TestDomainParticipant_DiscoversAndMatches constructs two participants on
// the same domain and confirms SPDP/SEDP discovery wires a DataWriter on one
// to a matching DataReader on the other, and that a written sample is
// delivered end to end.
func TestDomainParticipant_DiscoversAndMatches(t *testing.T) {
	const domainID = 7

	pubParticipant := newEnabledParticipant(t, domainID)
	subParticipant := newEnabledParticipant(t, domainID)

	topicQos := qos.EndpointQos{}
	pubTopic, err := pubParticipant.CreateTopic("temperature", "ddsping.Sample", topicQos)
	require.NoError(t, err)
	subTopic, err := subParticipant.CreateTopic("temperature", "ddsping.Sample", topicQos)
	require.NoError(t, err)

	pub, err := pubParticipant.CreatePublisher()
	require.NoError(t, err)
	dw, err := pub.CreateDataWriter(pubTopic, qos.EndpointQos{})
	require.NoError(t, err)

	sub, err := subParticipant.CreateSubscriber()
	require.NoError(t, err)
	dr, err := sub.CreateDataReader(subTopic, qos.EndpointQos{})
	require.NoError(t, err)

	var received [][]byte
	require.NoError(t, dr.SetListener(domain.DataReaderListener{
		OnDataAvailable: func() {
			changes, err := dr.Take()
			if err != nil {
				return
			}
			for _, c := range changes {
				received = append(received, c.Data)
			}
		},
	}))

	require.NoError(t, dw.Write(guid.InstanceHandle{}, []byte("hello")))

	waitFor(t, 10*time.Second, func() bool {
		return len(received) > 0
	})
	require.Equal(t, []byte("hello"), received[0])
}

// TestParticipant_CreateTopic_RejectsConflictingType confirms a topic name
// already registered with a different type is rejected (spec §3 topic
// identity is (name, type)).
func TestParticipant_CreateTopic_RejectsConflictingType(t *testing.T) {
	p := newEnabledParticipant(t, 8)

	_, err := p.CreateTopic("sensor", "ddsping.Sample", qos.EndpointQos{})
	require.NoError(t, err)

	conflicting, err := p.CreateTopic("sensor", "ddsping.OtherSample", qos.EndpointQos{})
	require.ErrorIs(t, err, ddserror.ErrPreconditionNotMet)
	require.Nil(t, conflicting)
}

// TestDeleteTopic_FailsWhileReferenced confirms DeleteTopic refuses to
// remove a Topic still referenced by a live DataWriter.
func TestDeleteTopic_FailsWhileReferenced(t *testing.T) {
	p := newEnabledParticipant(t, 9)

	topic, err := p.CreateTopic("inuse", "ddsping.Sample", qos.EndpointQos{})
	require.NoError(t, err)

	pub, err := p.CreatePublisher()
	require.NoError(t, err)
	_, err = pub.CreateDataWriter(topic, qos.EndpointQos{})
	require.NoError(t, err)

	err = p.DeleteTopic(topic)
	require.Error(t, err)
}

// TestDataWriter_OfferedDeadlineMissed confirms a writer with a Deadline
// period that goes unwritten reports OfferedDeadlineMissedStatus with
// total_count starting at 1 and the written instance's handle, incrementing
// by 1 for each subsequent idle period (spec §8 scenario 6).
func TestDataWriter_OfferedDeadlineMissed(t *testing.T) {
	p := newEnabledParticipant(t, 10)

	topic, err := p.CreateTopic("heartbeat", "ddsping.Sample", qos.EndpointQos{})
	require.NoError(t, err)

	pub, err := p.CreatePublisher()
	require.NoError(t, err)
	dw, err := pub.CreateDataWriter(topic, qos.EndpointQos{
		Deadline: qos.DeadlineQos{Period: 30 * time.Millisecond},
		History:  qos.HistoryQos{Kind: qos.KeepLast, Depth: 1},
	})
	require.NoError(t, err)

	var mu sync.Mutex
	var statuses []domain.OfferedDeadlineMissedStatus
	require.NoError(t, dw.SetListener(domain.DataWriterListener{
		OnOfferedDeadlineMissed: func(status domain.OfferedDeadlineMissedStatus) {
			mu.Lock()
			statuses = append(statuses, status)
			mu.Unlock()
		},
	}))

	instance := guid.InstanceHandle{1, 2, 3}
	require.NoError(t, dw.Write(instance, []byte("beat")))

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) >= 2
	})

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, int32(1), statuses[0].TotalCount)
	require.Equal(t, int32(1), statuses[0].TotalCountChange)
	require.Equal(t, instance, statuses[0].LastInstanceHandle)
	require.Equal(t, int32(2), statuses[1].TotalCount)
}
