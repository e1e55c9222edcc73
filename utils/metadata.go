package utils

import (
	"context"

	"google.golang.org/grpc/metadata"
)

const (
	userAgentKey = "x-user-agent"
	clientIPKey  = "x-client-ip"
)

// AppendClientMetadata attaches the caller identity headers the SSO service
// reads from incoming requests.
func AppendClientMetadata(ctx context.Context, userAgent, clientIP string) context.Context {
	var pairs []string
	if userAgent != "" {
		pairs = append(pairs, userAgentKey, userAgent)
	}
	if clientIP != "" {
		pairs = append(pairs, clientIPKey, clientIP)
	}
	if len(pairs) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

// ExtractRequestMetadata reads the caller identity headers from an incoming context.
func ExtractRequestMetadata(ctx context.Context) (userAgent, clientIP string) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", ""
	}

	if ips := md.Get(clientIPKey); len(ips) > 0 && ips[0] != "" {
		clientIP = ips[0]
	}

	if uas := md.Get(userAgentKey); len(uas) > 0 && uas[0] != "" {
		userAgent = uas[0]
	}

	if userAgent == "" {
		if uas := md.Get("user-agent"); len(uas) > 0 && uas[0] != "" {
			userAgent = uas[0]
		}
	}

	return userAgent, clientIP
}

type clientCtxKey struct{}

// ClientInfo identifies the popup connection a request came from.
type ClientInfo struct {
	UserAgent string
	IP        string
}

func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientCtxKey{}, info)
}

func ClientInfoFromContext(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientCtxKey{}).(ClientInfo)
	return info
}

func UserAgentFromContext(ctx context.Context) string {
	return ClientInfoFromContext(ctx).UserAgent
}
