package reply

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// GenerateMethod is the unary RPC a self-hosted reply service must implement.
// Request and response are google.protobuf.Struct: {prompt, system} -> {text}.
const GenerateMethod = "/parley.reply.v1.ReplyService/Generate"

// GRPCBackend generates replies through a self-hosted gRPC service.
type GRPCBackend struct {
	Endpoint    string
	System      string
	DialTimeout time.Duration
	// Dialer overrides the network dialer; used with in-process listeners.
	Dialer func(context.Context, string) (net.Conn, error)

	mu   sync.Mutex
	conn *grpc.ClientConn
}

func (b *GRPCBackend) Submit(ctx context.Context, prompt string, credential string) (string, error) {
	conn, err := b.connect(ctx)
	if err != nil {
		return "", err
	}

	req, err := structpb.NewStruct(map[string]any{"prompt": prompt, "system": b.System})
	if err != nil {
		return "", fmt.Errorf("encode reply request: %w", err)
	}
	if credential != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+credential)
	}

	resp := &structpb.Struct{}
	if err := conn.Invoke(ctx, GenerateMethod, req, resp); err != nil {
		return "", fmt.Errorf("reply rpc: %w", err)
	}
	text := resp.GetFields()["text"].GetStringValue()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("reply service returned no text")
	}
	return text, nil
}

// Close releases the connection if one was opened.
func (b *GRPCBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

// connect lazily dials and waits for readiness before the first call.
func (b *GRPCBackend) connect(ctx context.Context) (*grpc.ClientConn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return b.conn, nil
	}

	conn, err := Dial(b.Endpoint, b.Dialer)
	if err != nil {
		return nil, err
	}

	timeout := b.DialTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for reply service readiness: %w", err)
	}

	b.conn = conn
	return conn, nil
}

// Dial creates a plaintext client connection to a reply service endpoint.
func Dial(endpoint string, dialer func(context.Context, string) (net.Conn, error)) (*grpc.ClientConn, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("reply service endpoint is empty")
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if dialer != nil {
		opts = append(opts, grpc.WithContextDialer(dialer))
	}
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial reply service %q: %w", endpoint, err)
	}
	return conn, nil
}

// waitForReady blocks until the connection enters Ready or fails.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
