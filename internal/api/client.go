package api

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client talks to a daemon over its unix socket.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon socket. The connection is established lazily
// on the first call.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (Resp, error) {
	var out Resp
	in, err := encode(req)
	if err != nil {
		return out, err
	}
	reply := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod(method), in, reply); err != nil {
		return out, err
	}
	err = decode(reply, &out)
	return out, err
}

func watch[Msg any](ctx context.Context, c *Client, desc *grpc.StreamDesc, req any, fn func(Msg) error) error {
	in, err := encode(req)
	if err != nil {
		return err
	}
	stream, err := c.conn.NewStream(ctx, desc, fullMethod(desc.StreamName))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(in); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		raw := new(structpb.Struct)
		if err := stream.RecvMsg(raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg Msg
		if err := decode(raw, &msg); err != nil {
			return err
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
}

func (c *Client) GetStatus(ctx context.Context) (StatusResponse, error) {
	return invoke[StatusResponse](ctx, c, "GetStatus", Empty{})
}

func (c *Client) TestConnection(ctx context.Context) (TestConnectionResponse, error) {
	return invoke[TestConnectionResponse](ctx, c, "TestConnection", Empty{})
}

func (c *Client) ListChats(ctx context.Context, req ListChatsRequest) (ListChatsResponse, error) {
	return invoke[ListChatsResponse](ctx, c, "ListChats", req)
}

func (c *Client) SummarizeChat(ctx context.Context, chatID int64) (SummarizeResponse, error) {
	return invoke[SummarizeResponse](ctx, c, "SummarizeChat", SummarizeRequest{ChatID: chatID})
}

func (c *Client) Route(ctx context.Context, query string) (RouteResponse, error) {
	return invoke[RouteResponse](ctx, c, "Route", RouteRequest{Query: query})
}

func (c *Client) SearchMessages(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	return invoke[SearchResponse](ctx, c, "SearchMessages", req)
}

func (c *Client) Priority(ctx context.Context) (PriorityResponse, error) {
	return invoke[PriorityResponse](ctx, c, "Priority", Empty{})
}

func (c *Client) StartSemanticSearch(ctx context.Context, query string) (SemanticPage, error) {
	return invoke[SemanticPage](ctx, c, "StartSemanticSearch", SemanticStartRequest{Query: query})
}

func (c *Client) NextSemanticPage(ctx context.Context, searchID string) (SemanticPage, error) {
	return invoke[SemanticPage](ctx, c, "NextSemanticPage", SemanticNextRequest{SearchID: searchID})
}

func (c *Client) Digest(ctx context.Context, period string) (DigestResponse, error) {
	return invoke[DigestResponse](ctx, c, "Digest", DigestRequest{Period: period})
}

func (c *Client) CategorizeDirect(ctx context.Context) (CategorizeResponse, error) {
	return invoke[CategorizeResponse](ctx, c, "CategorizeDirect", Empty{})
}

// WatchPipeline calls fn for every snapshot until the run finishes, fn
// returns an error or ctx ends.
func (c *Client) WatchPipeline(ctx context.Context, fn func(PipelineSnapshot) error) error {
	return watch(ctx, c, &ServiceDesc.Streams[0], Empty{}, fn)
}

// WatchEvents calls fn for every daemon event whose kind has prefix.
func (c *Client) WatchEvents(ctx context.Context, prefix string, fn func(Event) error) error {
	return watch(ctx, c, &ServiceDesc.Streams[1], WatchEventsRequest{Prefix: prefix}, fn)
}
