// Package events implements the Event Emitter (C4): fire-and-forget
// publication of registration-lifecycle events to Kafka, wire-encoded as
// protobuf without a generated .pb.go (the field numbers below are the
// contract).
package events

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Topic names the four logical channels C4 publishes to.
type Topic string

const (
	TopicServiceRegistered   Topic = "service-registered"
	TopicServiceUnregistered Topic = "service-unregistered"
	TopicModuleRegistered    Topic = "module-registered"
	TopicModuleUnregistered  Topic = "module-unregistered"
)

// ServiceRegistered is published once per successful RegisterService stream.
type ServiceRegistered struct {
	ServiceID   string
	ServiceName string
	Host        string
	Port        int32
	Version     string
	Timestamp   time.Time
}

// Marshal encodes the event as protobuf wire bytes, field numbers 1-6 in
// declaration order.
func (e ServiceRegistered) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, e.ServiceID)
	b = appendString(b, 2, e.ServiceName)
	b = appendString(b, 3, e.Host)
	b = appendVarint(b, 4, uint64(e.Port))
	b = appendString(b, 5, e.Version)
	b = appendVarint(b, 6, uint64(e.Timestamp.UnixMilli()))
	return b
}

// ServiceUnregistered is published once per successful UnregisterService.
type ServiceUnregistered struct {
	ServiceID   string
	ServiceName string
	Timestamp   time.Time
}

func (e ServiceUnregistered) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, e.ServiceID)
	b = appendString(b, 2, e.ServiceName)
	b = appendVarint(b, 3, uint64(e.Timestamp.UnixMilli()))
	return b
}

// ModuleRegistered is published once per successful RegisterModule stream.
type ModuleRegistered struct {
	ServiceID  string
	ModuleName string
	Host       string
	Port       int32
	Version    string
	SchemaID   string
	ArtifactID string
	Timestamp  time.Time
}

func (e ModuleRegistered) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, e.ServiceID)
	b = appendString(b, 2, e.ModuleName)
	b = appendString(b, 3, e.Host)
	b = appendVarint(b, 4, uint64(e.Port))
	b = appendString(b, 5, e.Version)
	b = appendString(b, 6, e.SchemaID)
	b = appendString(b, 7, e.ArtifactID)
	b = appendVarint(b, 8, uint64(e.Timestamp.UnixMilli()))
	return b
}

// ModuleUnregistered is published once per successful UnregisterModule.
type ModuleUnregistered struct {
	ServiceID  string
	ModuleName string
	Timestamp  time.Time
}

func (e ModuleUnregistered) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, e.ServiceID)
	b = appendString(b, 2, e.ModuleName)
	b = appendVarint(b, 3, uint64(e.Timestamp.UnixMilli()))
	return b
}

func appendString(b []byte, fieldNum protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, fieldNum, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarint(b []byte, fieldNum protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, fieldNum, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}
