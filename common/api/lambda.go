package api

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
)

// LambdaProxy serves API Gateway proxy events.
type LambdaProxy func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// NewLambdaHandler replays API Gateway proxy events through h, middleware
// chain included.
func NewLambdaHandler(h http.Handler) LambdaProxy {
	return httpadapter.New(h).ProxyWithContext
}
