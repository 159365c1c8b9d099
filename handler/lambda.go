package handler

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/core"

	"menu-planner/internal/usecase"
)

// Handle serves an API Gateway proxy event through the same router used by
// the HTTP server.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if event.IsBase64Encoded {
		if _, err := base64.StdEncoding.DecodeString(event.Body); err != nil {
			slog.WarnContext(ctx, "failed to decode proxy event body", "err", err, "path", event.Path)
			return invalidEventResponse()
		}
	}
	return h.adapter.ProxyWithContext(ctx, event)
}

// invalidEventResponse answers events the adapter cannot turn into a request.
// The adapter itself would fail the invocation, which API Gateway reports as
// a 502.
func invalidEventResponse() (events.APIGatewayProxyResponse, error) {
	w := core.NewProxyResponseWriter()
	writeErrorCode(w, http.StatusBadRequest, usecase.ErrorInvalidInput, "invalid_request", nil)
	return w.GetProxyResponse()
}
