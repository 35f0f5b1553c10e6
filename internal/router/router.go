package router

import (
	"io"

	"github.com/Brownie44l1/httpd/internal/files"
	"github.com/Brownie44l1/httpd/internal/headers"
	"github.com/Brownie44l1/httpd/internal/logger"
	"github.com/Brownie44l1/httpd/internal/request"
	"github.com/Brownie44l1/httpd/internal/response"
)

// Resolver finds the file behind a request path.
type Resolver interface {
	Resolve(target string) (files.File, error)
	Open(f files.File) (io.ReadCloser, error)
}

// Router decides the outcome of one request. It writes nothing; the
// caller sends the Outcome and closes its body.
type Router struct {
	files     Resolver
	validator headers.Validator
	log       logger.Logger
}

// New creates a router serving from files and gating headers with v.
func New(files Resolver, v headers.Validator, log logger.Logger) *Router {
	if log == nil {
		log = logger.NullLogger{}
	}
	return &Router{
		files:     files,
		validator: v,
		log:       log,
	}
}

// Dispatch maps a parsed request to an outcome. req may be nil when the
// request line never parsed; parseErr is the parser's verdict.
//
// Checks run in a fixed order: version, then header validity, then method,
// then the file lookup.
func (r *Router) Dispatch(req *request.Request, parseErr error) *response.Outcome {
	if req != nil && req.Version != request.Version11 {
		return response.ErrorOutcome(req.Proto(), response.StatusHTTPVersionNotSupported)
	}

	proto := "HTTP/1.1"
	if req == nil || parseErr != nil {
		return response.ErrorOutcome(proto, response.StatusBadRequest)
	}

	if err := req.Validate(r.validator); err != nil {
		r.log.Debug("rejected headers", logger.F("path", req.Path), logger.Err(err))
		return response.ErrorOutcome(proto, response.StatusBadRequest)
	}

	switch req.Method.Kind {
	case request.MethodHead:
		return r.serveFile(req, true)
	case request.MethodGet:
		return r.serveFile(req, false)
	default:
		return response.NotImplementedOutcome(proto)
	}
}

// serveFile opens the file even for HEAD so an unreadable file is a 404
// for both methods.
func (r *Router) serveFile(req *request.Request, head bool) *response.Outcome {
	proto := req.Proto()

	f, err := r.files.Resolve(req.Path)
	if err != nil {
		r.log.Debug("lookup failed", logger.F("path", req.Path), logger.Err(err))
		return response.ErrorOutcome(proto, response.StatusNotFound)
	}

	body, err := r.files.Open(f)
	if err != nil {
		r.log.Warn("cannot open file", logger.F("file", f.Path), logger.Err(err))
		return response.ErrorOutcome(proto, response.StatusNotFound)
	}
	if head {
		body.Close()
		body = nil
	}

	return response.FileOutcome(proto, f.Size, f.ContentType, body, head)
}
