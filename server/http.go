package server

import (
	"io"
	"net/http"

	"github.com/achilleasa/hessian2/encoding/hessian"
	"github.com/achilleasa/hessian2/transport"
)

// NewHTTPHandler returns a net/http handler that serves handler, for hosting
// a service inside an existing web server. POST requests carry a call
// envelope and receive a reply (200) or a fault (500). Other methods are
// rejected with 405.
//
// The WithTransport option has no effect on the returned handler.
func NewHTTPHandler(handler Handler, options ...Option) (http.Handler, error) {
	s, err := New("/", handler, options...)
	if err != nil {
		return nil, err
	}
	return &httpHandler{srv: s}, nil
}

type httpHandler struct {
	srv *Server
}

func (h *httpHandler) ServeHTTP(rw http.ResponseWriter, httpReq *http.Request) {
	if httpReq.Method != http.MethodPost {
		rw.Header().Set("Allow", http.MethodPost)
		http.Error(rw, "post me", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(httpReq.Body)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}

	req := transport.MakeGenericMessage()
	defer req.Close()
	req.EndpointField = httpReq.URL.Path
	req.PayloadField = payload
	for name, values := range httpReq.Header {
		if len(values) != 0 {
			req.SetHeader(name, values[0])
		}
	}

	res := transport.MakeGenericMessage()
	defer res.Close()
	res.EndpointField = req.EndpointField

	h.srv.Process(req, res)

	// Middleware errors have no HTTP status mapping here; report them as faults.
	if _, resErr := res.Payload(); resErr != nil {
		h.srv.writeFault(res, resErr)
	}

	status := http.StatusOK
	for name, value := range res.Headers() {
		if name == transport.HeaderFault {
			if value == "true" {
				status = http.StatusInternalServerError
			}
			continue
		}
		rw.Header().Set(name, value)
	}
	rw.Header().Set(transport.HeaderContentType, hessian.ContentType)

	body, _ := res.Payload()
	rw.WriteHeader(status)
	rw.Write(body)
}
