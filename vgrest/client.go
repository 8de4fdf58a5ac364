package vgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// HttpRequestDoer performs HTTP requests. *http.Client satisfies it.
type HttpRequestDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	Server string
	Client HttpRequestDoer
}

type ClientOption func(*Client) error

func WithHTTPClient(doer HttpRequestDoer) ClientOption {
	return func(c *Client) error {
		c.Client = doer
		return nil
	}
}

func NewClient(server string, opts ...ClientOption) (*Client, error) {
	client := Client{Server: server}
	for _, o := range opts {
		if err := o(&client); err != nil {
			return nil, err
		}
	}
	if !strings.HasSuffix(client.Server, "/") {
		client.Server += "/"
	}
	if client.Client == nil {
		client.Client = &http.Client{}
	}
	return &client, nil
}

func (c *Client) CreateGeneration(ctx context.Context, body CreateGenerationJSONRequestBody) (*http.Response, error) {
	req, err := NewCreateGenerationRequest(c.Server, body)
	if err != nil {
		return nil, err
	}
	return c.Client.Do(req.WithContext(ctx))
}

func (c *Client) GetGeneration(ctx context.Context, uuid openapi_types.UUID) (*http.Response, error) {
	req, err := NewGetGenerationRequest(c.Server, uuid)
	if err != nil {
		return nil, err
	}
	return c.Client.Do(req.WithContext(ctx))
}

func NewCreateGenerationRequest(server string, body CreateGenerationJSONRequestBody) (*http.Request, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	serverURL, err := url.Parse(server)
	if err != nil {
		return nil, err
	}
	queryURL, err := serverURL.Parse("generations")
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, queryURL.String(), bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Add("Content-Type", "application/json")
	return req, nil
}

func NewGetGenerationRequest(server string, uuid openapi_types.UUID) (*http.Request, error) {
	pathParam, err := runtime.StyleParamWithLocation("simple", false, "uuid", runtime.ParamLocationPath, uuid)
	if err != nil {
		return nil, err
	}
	serverURL, err := url.Parse(server)
	if err != nil {
		return nil, err
	}
	queryURL, err := serverURL.Parse(fmt.Sprintf("generations/%s", pathParam))
	if err != nil {
		return nil, err
	}
	return http.NewRequest(http.MethodGet, queryURL.String(), nil)
}

// ClientWithResponses decodes responses into the typed field matching the
// status code.
type ClientWithResponses struct {
	*Client
}

func NewClientWithResponses(server string, opts ...ClientOption) (*ClientWithResponses, error) {
	client, err := NewClient(server, opts...)
	if err != nil {
		return nil, err
	}
	return &ClientWithResponses{client}, nil
}

type CreateGenerationResponse struct {
	Body         []byte
	HTTPResponse *http.Response
	JSON201      *Generation
	JSON400      *Error
	JSON409      *Error
	JSON500      *Error
}

func (r CreateGenerationResponse) StatusCode() int {
	if r.HTTPResponse != nil {
		return r.HTTPResponse.StatusCode
	}
	return 0
}

type GetGenerationResponse struct {
	Body         []byte
	HTTPResponse *http.Response
	JSON200      *Generation
	JSON404      *Error
	JSON500      *Error
}

func (r GetGenerationResponse) StatusCode() int {
	if r.HTTPResponse != nil {
		return r.HTTPResponse.StatusCode
	}
	return 0
}

func (c *ClientWithResponses) CreateGenerationWithResponse(ctx context.Context, body CreateGenerationJSONRequestBody) (*CreateGenerationResponse, error) {
	rsp, err := c.CreateGeneration(ctx, body)
	if err != nil {
		return nil, err
	}
	return ParseCreateGenerationResponse(rsp)
}

func (c *ClientWithResponses) GetGenerationWithResponse(ctx context.Context, uuid openapi_types.UUID) (*GetGenerationResponse, error) {
	rsp, err := c.GetGeneration(ctx, uuid)
	if err != nil {
		return nil, err
	}
	return ParseGetGenerationResponse(rsp)
}

func ParseCreateGenerationResponse(rsp *http.Response) (*CreateGenerationResponse, error) {
	body, err := io.ReadAll(rsp.Body)
	defer rsp.Body.Close()
	if err != nil {
		return nil, err
	}
	response := &CreateGenerationResponse{Body: body, HTTPResponse: rsp}

	if !isJSON(rsp) {
		return response, nil
	}
	switch rsp.StatusCode {
	case http.StatusCreated:
		response.JSON201 = &Generation{}
		return response, json.Unmarshal(body, response.JSON201)
	case http.StatusBadRequest:
		response.JSON400 = &Error{}
		return response, json.Unmarshal(body, response.JSON400)
	case http.StatusConflict:
		response.JSON409 = &Error{}
		return response, json.Unmarshal(body, response.JSON409)
	case http.StatusInternalServerError:
		response.JSON500 = &Error{}
		return response, json.Unmarshal(body, response.JSON500)
	}
	return response, nil
}

func ParseGetGenerationResponse(rsp *http.Response) (*GetGenerationResponse, error) {
	body, err := io.ReadAll(rsp.Body)
	defer rsp.Body.Close()
	if err != nil {
		return nil, err
	}
	response := &GetGenerationResponse{Body: body, HTTPResponse: rsp}

	if !isJSON(rsp) {
		return response, nil
	}
	switch rsp.StatusCode {
	case http.StatusOK:
		response.JSON200 = &Generation{}
		return response, json.Unmarshal(body, response.JSON200)
	case http.StatusNotFound:
		response.JSON404 = &Error{}
		return response, json.Unmarshal(body, response.JSON404)
	case http.StatusInternalServerError:
		response.JSON500 = &Error{}
		return response, json.Unmarshal(body, response.JSON500)
	}
	return response, nil
}

func isJSON(rsp *http.Response) bool {
	return strings.Contains(rsp.Header.Get("Content-Type"), "json")
}
