// Package modulerpc implements the "dynamic RPC stub factory" design note:
// given a module name, open a gRPC connection to its registered address and
// invoke GetServiceRegistration() without a generated .pb.go stub, using
// grpc.ClientConn.Invoke against a raw method name and a hand-rolled
// protowire codec.
package modulerpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/io-pipeline/platform-registration-service/internal/model"
)

const getServiceRegistrationMethod = "/ai.pipestream.data.module.PipeStepProcessor/GetServiceRegistration"

// AddressResolver locates a module's host:port, typically backed by C1's
// HealthyNodes lookup.
type AddressResolver interface {
	ModuleAddress(ctx context.Context, moduleName string) (string, bool)
}

// Factory opens stubs against resolved module addresses.
type Factory struct {
	resolver AddressResolver
}

// NewFactory builds a Factory.
func NewFactory(resolver AddressResolver) *Factory {
	return &Factory{resolver: resolver}
}

// Stub invokes GetServiceRegistration() on a single module instance.
type Stub struct {
	conn *grpc.ClientConn
}

// OpenStub resolves moduleName's address and dials it. The caller must
// Close() the returned Stub.
func (f *Factory) OpenStub(ctx context.Context, moduleName string) (*Stub, error) {
	addr, ok := f.resolver.ModuleAddress(ctx, moduleName)
	if !ok {
		return nil, fmt.Errorf("无法解析模块地址: %s", moduleName)
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("连接模块失败: %w", err)
	}
	return &Stub{conn: conn}, nil
}

// Close releases the underlying connection.
func (s *Stub) Close() error {
	return s.conn.Close()
}

// rawBytesCodec treats both request and response as opaque protobuf wire
// bytes, letting Invoke run against a method for which no generated Go
// type exists.
type rawBytesCodec struct{}

func (rawBytesCodec) Name() string { return "raw-protobuf-wire" }

func (rawBytesCodec) Marshal(v any) ([]byte, error) {
	b, _ := v.(*[]byte)
	if b == nil {
		return nil, nil
	}
	return *b, nil
}

func (rawBytesCodec) Unmarshal(data []byte, v any) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("rawBytesCodec: 目标类型不是*[]byte")
	}
	*b = append((*b)[:0], data...)
	return nil
}

// GetServiceRegistration calls the module's GetServiceRegistration RPC and
// decodes the response into a ServiceRegistrationMetadata. The request is
// empty: GetServiceRegistration() takes no arguments.
func (s *Stub) GetServiceRegistration(ctx context.Context) (*model.ServiceRegistrationMetadata, error) {
	req := []byte{}
	resp := []byte{}
	err := s.conn.Invoke(ctx, getServiceRegistrationMethod, &req, &resp, grpc.ForceCodec(rawBytesCodec{}))
	if err != nil {
		return nil, fmt.Errorf("调用GetServiceRegistration失败: %w", err)
	}
	return decodeServiceRegistrationMetadata(resp), nil
}

func decodeServiceRegistrationMetadata(b []byte) *model.ServiceRegistrationMetadata {
	meta := &model.ServiceRegistrationMetadata{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			break
		}
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return meta
			}
			b = b[n:]
			switch num {
			case 1:
				meta.JSONConfigSchema = string(v)
			case 2:
				meta.DisplayName = string(v)
			case 3:
				meta.Description = string(v)
			case 4:
				meta.Owner = string(v)
			case 5:
				meta.DocumentationURL = string(v)
			case 6:
				meta.Tags = append(meta.Tags, string(v))
			case 7:
				meta.Dependencies = append(meta.Dependencies, string(v))
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return meta
			}
			b = b[n:]
		}
	}
	return meta
}
