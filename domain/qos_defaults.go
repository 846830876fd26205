package domain

import (
	"reflect"
	"sync"

	"github.com/joeycumines/go-rtps/qos"
)

// isZeroQos reports whether q is the unset qos.EndpointQos{} a caller passes
// to mean "inherit the owning entity's default." EndpointQos embeds a slice
// field (DataRepresentation.Value), so it cannot use == against a literal.
func isZeroQos(q qos.EndpointQos) bool {
	return reflect.DeepEqual(q, qos.EndpointQos{})
}

// factoryQos is the process-wide cached default QoS new entities inherit
// absent an explicit value (spec §9 "Global state"), grounded on
// eventloop/logging.go's globalLogger: a package-level value guarded by a
// sync.RWMutex rather than threaded through every constructor.
var factoryQos = struct {
	sync.RWMutex
	topic      qos.EndpointQos
	dataWriter qos.EndpointQos
	dataReader qos.EndpointQos
}{
	topic:      qos.Default(),
	dataWriter: qos.Default(),
	dataReader: qos.Default(),
}

// SetDefaultTopicQos overrides the process-wide default Topic QoS new
// CreateTopic calls inherit when passed a zero qos.EndpointQos.
func SetDefaultTopicQos(q qos.EndpointQos) {
	factoryQos.Lock()
	defer factoryQos.Unlock()
	factoryQos.topic = q
}

func getDefaultTopicQos() qos.EndpointQos {
	factoryQos.RLock()
	defer factoryQos.RUnlock()
	return factoryQos.topic
}

// SetDefaultDataWriterQos overrides the process-wide default DataWriter
// QoS, the seed a Publisher's own DefaultDataWriterQos is initialized from.
func SetDefaultDataWriterQos(q qos.EndpointQos) {
	factoryQos.Lock()
	defer factoryQos.Unlock()
	factoryQos.dataWriter = q
}

func getDefaultDataWriterQos() qos.EndpointQos {
	factoryQos.RLock()
	defer factoryQos.RUnlock()
	return factoryQos.dataWriter
}

// SetDefaultDataReaderQos overrides the process-wide default DataReader
// QoS, the seed a Subscriber's own DefaultDataReaderQos is initialized from.
func SetDefaultDataReaderQos(q qos.EndpointQos) {
	factoryQos.Lock()
	defer factoryQos.Unlock()
	factoryQos.dataReader = q
}

func getDefaultDataReaderQos() qos.EndpointQos {
	factoryQos.RLock()
	defer factoryQos.RUnlock()
	return factoryQos.dataReader
}
