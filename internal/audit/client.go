package audit

import "context"

// Client describes where a request came from. HTTP handlers resolve it at the edge
// and attach it with WithClient; the Logger copies it onto events that lack it.
type Client struct {
	IP     string
	Device string
	Region string
}

type clientKey struct{}

func WithClient(ctx context.Context, c Client) context.Context {
	if c == (Client{}) {
		return ctx
	}
	return context.WithValue(ctx, clientKey{}, c)
}

func ClientFrom(ctx context.Context) Client {
	if c, ok := ctx.Value(clientKey{}).(Client); ok {
		return c
	}
	return Client{}
}
