package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestServiceRegisteredMarshalIsValidProtobufWire(t *testing.T) {
	evt := ServiceRegistered{
		ServiceID:   "orders-10-0-0-4-9090",
		ServiceName: "orders",
		Host:        "10.0.0.4",
		Port:        9090,
		Version:     "1.2.0",
		Timestamp:   time.Now(),
	}

	b := evt.Marshal()
	require.NotEmpty(t, b)

	fields := map[protowire.Number]string{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		require.Greater(t, n, 0)
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			require.GreaterOrEqual(t, n, 0)
			b = b[n:]
			fields[num] = string(v)
		case protowire.VarintType:
			_, n := protowire.ConsumeVarint(b)
			require.GreaterOrEqual(t, n, 0)
			b = b[n:]
		}
	}

	assert.Equal(t, "orders-10-0-0-4-9090", fields[1])
	assert.Equal(t, "orders", fields[2])
	assert.Equal(t, "10.0.0.4", fields[3])
}

func TestModuleRegisteredMarshalOmitsEmptyArtifactID(t *testing.T) {
	evt := ModuleRegistered{
		ServiceID:  "splitter-127-0-0-1-7000",
		ModuleName: "splitter",
		Host:       "127.0.0.1",
		Port:       7000,
		Version:    "1.0.0",
		SchemaID:   "splitter-v1_0_0",
		ArtifactID: "",
		Timestamp:  time.Now(),
	}

	b := evt.Marshal()

	sawArtifactField := false
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		b = b[n:]
		if typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			b = b[n:]
			if num == 7 {
				sawArtifactField = true
				_ = v
			}
		} else if typ == protowire.VarintType {
			_, n := protowire.ConsumeVarint(b)
			b = b[n:]
		}
	}

	assert.False(t, sawArtifactField, "空的artifactId字段不应出现在编码结果中")
}
