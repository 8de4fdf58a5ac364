package vgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// ServerInterface is the raw HTTP form of the API.
type ServerInterface interface {
	// (POST /generations)
	CreateGeneration(w http.ResponseWriter, r *http.Request)
	// (GET /generations/{uuid})
	GetGeneration(w http.ResponseWriter, r *http.Request, uuid openapi_types.UUID)
}

type CreateGenerationRequestObject struct {
	Body *CreateGenerationJSONRequestBody
}

type CreateGenerationResponseObject interface {
	VisitCreateGenerationResponse(w http.ResponseWriter) error
}

type CreateGeneration201JSONResponse Generation

func (response CreateGeneration201JSONResponse) VisitCreateGenerationResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusCreated, response)
}

type CreateGeneration400JSONResponse Error

func (response CreateGeneration400JSONResponse) VisitCreateGenerationResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusBadRequest, response)
}

type CreateGeneration409JSONResponse Error

func (response CreateGeneration409JSONResponse) VisitCreateGenerationResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusConflict, response)
}

type CreateGeneration500JSONResponse Error

func (response CreateGeneration500JSONResponse) VisitCreateGenerationResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusInternalServerError, response)
}

type GetGenerationRequestObject struct {
	Uuid openapi_types.UUID `json:"uuid"`
}

type GetGenerationResponseObject interface {
	VisitGetGenerationResponse(w http.ResponseWriter) error
}

type GetGeneration200JSONResponse Generation

func (response GetGeneration200JSONResponse) VisitGetGenerationResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusOK, response)
}

type GetGeneration404JSONResponse Error

func (response GetGeneration404JSONResponse) VisitGetGenerationResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusNotFound, response)
}

type GetGeneration500JSONResponse Error

func (response GetGeneration500JSONResponse) VisitGetGenerationResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusInternalServerError, response)
}

// StrictServerInterface is implemented by the application. Request bodies
// and path parameters arrive decoded; responses are typed per status code.
type StrictServerInterface interface {
	CreateGeneration(ctx context.Context, request CreateGenerationRequestObject) (CreateGenerationResponseObject, error)
	GetGeneration(ctx context.Context, request GetGenerationRequestObject) (GetGenerationResponseObject, error)
}

type StrictHandlerFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request, request any) (any, error)

type StrictMiddlewareFunc func(f StrictHandlerFunc, operationID string) StrictHandlerFunc

type StrictHTTPServerOptions struct {
	RequestErrorHandlerFunc  func(w http.ResponseWriter, r *http.Request, err error)
	ResponseErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func NewStrictHandler(ssi StrictServerInterface, middlewares []StrictMiddlewareFunc) ServerInterface {
	return NewStrictHandlerWithOptions(ssi, middlewares, StrictHTTPServerOptions{
		RequestErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
			writeJSON(w, http.StatusBadRequest, Error{Code: "INVALID_REQUEST", Message: err.Error()})
		},
		ResponseErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
			writeJSON(w, http.StatusInternalServerError, Error{Code: "INTERNAL_ERROR", Message: err.Error()})
		},
	})
}

func NewStrictHandlerWithOptions(ssi StrictServerInterface, middlewares []StrictMiddlewareFunc, options StrictHTTPServerOptions) ServerInterface {
	return &strictHandler{ssi: ssi, middlewares: middlewares, options: options}
}

type strictHandler struct {
	ssi         StrictServerInterface
	middlewares []StrictMiddlewareFunc
	options     StrictHTTPServerOptions
}

func (sh *strictHandler) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	var request CreateGenerationRequestObject

	var body CreateGenerationJSONRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sh.options.RequestErrorHandlerFunc(w, r, fmt.Errorf("can't decode JSON body: %w", err))
		return
	}
	request.Body = &body

	handler := func(ctx context.Context, w http.ResponseWriter, r *http.Request, request any) (any, error) {
		return sh.ssi.CreateGeneration(ctx, request.(CreateGenerationRequestObject))
	}
	for _, middleware := range sh.middlewares {
		handler = middleware(handler, "CreateGeneration")
	}

	response, err := handler(r.Context(), w, r, request)
	sh.visit(w, r, response, err, func(resp any) (bool, error) {
		v, ok := resp.(CreateGenerationResponseObject)
		if !ok {
			return false, nil
		}
		return true, v.VisitCreateGenerationResponse(w)
	})
}

func (sh *strictHandler) GetGeneration(w http.ResponseWriter, r *http.Request, uuid openapi_types.UUID) {
	request := GetGenerationRequestObject{Uuid: uuid}

	handler := func(ctx context.Context, w http.ResponseWriter, r *http.Request, request any) (any, error) {
		return sh.ssi.GetGeneration(ctx, request.(GetGenerationRequestObject))
	}
	for _, middleware := range sh.middlewares {
		handler = middleware(handler, "GetGeneration")
	}

	response, err := handler(r.Context(), w, r, request)
	sh.visit(w, r, response, err, func(resp any) (bool, error) {
		v, ok := resp.(GetGenerationResponseObject)
		if !ok {
			return false, nil
		}
		return true, v.VisitGetGenerationResponse(w)
	})
}

func (sh *strictHandler) visit(w http.ResponseWriter, r *http.Request, response any, err error, visit func(any) (bool, error)) {
	if err != nil {
		sh.options.ResponseErrorHandlerFunc(w, r, err)
		return
	}
	if response == nil {
		return
	}
	ok, err := visit(response)
	if err != nil {
		sh.options.ResponseErrorHandlerFunc(w, r, err)
	} else if !ok {
		sh.options.ResponseErrorHandlerFunc(w, r, fmt.Errorf("unexpected response type: %T", response))
	}
}

// ServerInterfaceWrapper binds path parameters before calling the handler.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	siw.Handler.CreateGeneration(w, r)
}

func (siw *ServerInterfaceWrapper) GetGeneration(w http.ResponseWriter, r *http.Request) {
	var uuid openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "uuid", chi.URLParam(r, "uuid"), &uuid, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("invalid format for parameter uuid: %w", err))
		return
	}
	siw.Handler.GetGeneration(w, r, uuid)
}

type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []func(http.Handler) http.Handler
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler mounts si on a new chi router behind request validation.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{
		Middlewares: []func(http.Handler) http.Handler{MustRequestValidator()},
	})
}

func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			writeJSON(w, http.StatusBadRequest, Error{Code: "INVALID_REQUEST", Message: err.Error()})
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:          si,
		ErrorHandlerFunc: options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Use(options.Middlewares...)
		r.Post(options.BaseURL+"/generations", wrapper.CreateGeneration)
		r.Get(options.BaseURL+"/generations/{uuid}", wrapper.GetGeneration)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
