package kratos

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/onepointalo/alo/identity"
	kratosclient "github.com/ory/kratos-client-go"
)

// Kratos UI message ids, see https://www.ory.sh/docs/kratos/concepts/ui-messages
const (
	msgInvalidCredentials = 4000006
	msgDuplicateIdentity  = 4000007
)

type uiMessage struct {
	ID int64 `json:"id"`
}

type flowErrorBody struct {
	UI struct {
		Messages []uiMessage `json:"messages"`
		Nodes    []struct {
			Messages []uiMessage `json:"messages"`
		} `json:"nodes"`
	} `json:"ui"`
	Error struct {
		Code int `json:"code"`
	} `json:"error"`
}

// classify maps a failed Kratos call onto the AuthError taxonomy.
func classify(op string, err error, httpResp *http.Response) *identity.AuthError {
	var body []byte
	var apiErr *kratosclient.GenericOpenAPIError
	if errors.As(err, &apiErr) {
		body = apiErr.Body()
	}
	status := httpStatus(httpResp)
	if status == 0 && isTransportError(err) {
		return identity.NewAuthError(identity.ReasonNetwork, op, err)
	}
	return identity.NewAuthError(reasonFor(status, body), op, err)
}

func reasonFor(status int, body []byte) identity.Reason {
	for _, id := range messageIDs(body) {
		switch id {
		case msgInvalidCredentials:
			return identity.ReasonInvalidCredentials
		case msgDuplicateIdentity:
			return identity.ReasonEmailTaken
		}
	}

	switch status {
	case 0:
		return identity.ReasonNetwork
	case http.StatusUnauthorized:
		return identity.ReasonInvalidCredentials
	case http.StatusConflict:
		return identity.ReasonEmailTaken
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return identity.ReasonNetwork
	}
	return identity.ReasonUnknown
}

func messageIDs(body []byte) []int64 {
	if len(body) == 0 {
		return nil
	}
	var fe flowErrorBody
	if err := json.Unmarshal(body, &fe); err != nil {
		return nil
	}
	ids := make([]int64, 0, len(fe.UI.Messages))
	for _, m := range fe.UI.Messages {
		ids = append(ids, m.ID)
	}
	for _, n := range fe.UI.Nodes {
		for _, m := range n.Messages {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isUnauthorized(resp *http.Response) bool {
	status := httpStatus(resp)
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func httpStatus(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
